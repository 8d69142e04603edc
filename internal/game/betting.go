// internal/game/betting.go
package game

import (
	"github.com/google/uuid"

	"github.com/mbeaudry/quarte/internal/models"
)

// BetView is the public projection of a bet, keyed by stable seat name.
type BetView struct {
	Seat         string `json:"seat"`
	Amount       int    `json:"amount"`
	WithoutTrump bool   `json:"withoutTrump"`
	Skipped      bool   `json:"skipped"`
}

// Outranks reports whether bet a strictly beats bet b. A higher amount always
// wins; at equal amounts a without-trump bet beats a with-trump one. Skipped
// bets never outrank anything.
func Outranks(a, b models.Bet) bool {
	if a.Skipped {
		return false
	}
	if b.Skipped {
		return true
	}
	if a.Amount != b.Amount {
		return a.Amount > b.Amount
	}
	return a.WithoutTrump && !b.WithoutTrump
}

// LeadingBet returns the winning bet among the placed bets. Ties in both
// amount and trump-mode resolve in favor of the dealer; non-dealers cannot
// produce such a tie because the validation gate makes them strictly raise.
//
// The second return is false when every bet was skipped.
func LeadingBet(bets []models.Bet, dealerConnID uuid.UUID) (models.Bet, bool) {
	var lead models.Bet
	found := false
	for _, b := range bets {
		if b.Skipped {
			continue
		}
		if !found {
			lead = b
			found = true
			continue
		}
		if Outranks(b, lead) {
			lead = b
			continue
		}
		// An exact tie goes to the dealer.
		if !Outranks(lead, b) && b.ConnID == dealerConnID {
			lead = b
		}
	}
	return lead, found
}

// AllSkipped reports whether every placed bet was a skip. Only meaningful
// once all four bets are in.
func AllSkipped(bets []models.Bet) bool {
	for _, b := range bets {
		if !b.Skipped {
			return false
		}
	}
	return len(bets) > 0
}
