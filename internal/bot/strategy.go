// internal/bot/strategy.go
package bot

import (
	"github.com/mbeaudry/quarte/internal/config"
	"github.com/mbeaudry/quarte/internal/game"
	"github.com/mbeaudry/quarte/internal/models"
)

// Standin is the stand-in strategy driving bot seats and timed-out turns.
// It is deliberately conservative: it never raises a standing bet and plays
// low, so a converted seat drags its team as little as possible.
type Standin struct{}

var _ game.Strategy = (*Standin)(nil)

// ChooseBet skips whenever skipping is legal. A dealer facing an all-skip
// round must open, and does so at the minimum with trump.
func (Standin) ChooseBet(hand []models.Card, lead *models.Bet, isDealer bool, cfg config.Config) models.Bet {
	if isDealer && lead == nil {
		return models.Bet{Amount: cfg.MinBet}
	}
	return models.Bet{Skipped: true}
}

// ChooseCard plays the lowest legal card: lowest of the lead color when the
// hand can follow, otherwise the lowest overall.
func (Standin) ChooseCard(hand []models.Card, trick []game.PlayedCard, trump models.Color) models.Card {
	lowest := func(cards []models.Card) models.Card {
		best := cards[0]
		for _, c := range cards[1:] {
			if c.Rank < best.Rank {
				best = c
			}
		}
		return best
	}
	if len(trick) > 0 {
		leadColor := trick[0].Card.Color
		var follow []models.Card
		for _, c := range hand {
			if c.Color == leadColor {
				follow = append(follow, c)
			}
		}
		if len(follow) > 0 {
			return lowest(follow)
		}
	}
	return lowest(hand)
}
