// internal/game/trick.go
package game

import (
	"errors"

	"github.com/google/uuid"

	"github.com/mbeaudry/quarte/internal/config"
	"github.com/mbeaudry/quarte/internal/models"
)

// PlayedCard pairs a card with the connection that played it. Seat carries
// the stable name for event payloads and snapshots.
type PlayedCard struct {
	ConnID uuid.UUID   `json:"-"`
	Seat   string      `json:"seat"`
	Card   models.Card `json:"card"`
}

// ErrEmptyTrick is returned when a winner is requested for a trick with no
// cards in it.
var ErrEmptyTrick = errors.New("trick is empty")

// DetermineWinner returns the index into trick of the winning card. The lead
// color is the color of the first card; trump (if any) beats every non-trump
// card; within a color, higher rank wins. Off-color non-trump cards never
// win. With trump == models.ColorNone, only the lead color competes.
func DetermineWinner(trick []PlayedCard, trump models.Color) (int, error) {
	if len(trick) == 0 {
		return 0, ErrEmptyTrick
	}
	winner := 0
	for i := 1; i < len(trick); i++ {
		if beats(trick[i].Card, trick[winner].Card, trick[0].Card.Color, trump) {
			winner = i
		}
	}
	return winner, nil
}

// beats reports whether candidate takes the trick from current, given the
// lead color and trump.
func beats(candidate, current models.Card, lead, trump models.Color) bool {
	candTrump := trump != models.ColorNone && candidate.Color == trump
	curTrump := trump != models.ColorNone && current.Color == trump
	if candTrump != curTrump {
		return candTrump
	}
	if candidate.Color != current.Color {
		// Neither or both are trump; a color mismatch here means neither is
		// trump, so only the lead color can win.
		return candidate.Color == lead && current.Color != lead
	}
	return candidate.Rank > current.Rank
}

// TrickPoints values a completed trick: one base point, plus the bonus for a
// bonus-rank card, minus the penalty for a penalty-rank card. The result can
// be negative.
func TrickPoints(trick []PlayedCard, cfg config.Config) int {
	pts := 1
	for _, pc := range trick {
		if pc.Card.Rank == cfg.BonusRank {
			pts += cfg.BonusValue
		}
		if pc.Card.Rank == cfg.PenaltyRank {
			pts -= cfg.PenaltyValue
		}
	}
	return pts
}

// RoundDelta computes both teams' score deltas at the end of a round.
// offense is the betting team's captured points, defense the other team's.
// If the offense met its bet they gain their captured points, otherwise they
// lose the bet amount. The defense always gains its captured points. A
// without-trump bet doubles both deltas.
func RoundDelta(lead models.Bet, offense, defense int) (offDelta, defDelta int) {
	if offense >= lead.Amount {
		offDelta = offense
	} else {
		offDelta = -lead.Amount
	}
	defDelta = defense
	if lead.WithoutTrump {
		offDelta *= 2
		defDelta *= 2
	}
	return offDelta, defDelta
}
