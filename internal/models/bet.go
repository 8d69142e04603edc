// internal/models/bet.go
package models

import "github.com/google/uuid"

// Bet is one player's committed target point total for their team this
// round. WithoutTrump doubles the round stakes and acts as a tie-breaker
// between equal amounts. A Skipped bet carries no amount.
type Bet struct {
	ConnID       uuid.UUID `json:"-"`
	Amount       int       `json:"amount"`
	WithoutTrump bool      `json:"withoutTrump"`
	Skipped      bool      `json:"skipped"`
}
