// internal/models/seat.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// SeatStatus is the connection state of a seat.
type SeatStatus string

const (
	SeatConnected    SeatStatus = "connected"
	SeatDisconnected SeatStatus = "disconnected"
	SeatBot          SeatStatus = "bot"
)

// TeamNone marks a seat that has not picked a team yet.
const TeamNone = -1

// Seat is one of the four player slots in a session.
//
// ConnID is the volatile connection identifier; it changes on every
// reconnect. Name is the stable identity used for all cross-reconnect
// bookkeeping (session tokens, snapshots, public events).
type Seat struct {
	ConnID uuid.UUID `json:"-"`
	Name   string    `json:"name"`
	Team   int       `json:"team"`

	Hand      []Card `json:"-"`
	TricksWon int    `json:"tricksWon"`
	PointsWon int    `json:"pointsWon"`

	Status         SeatStatus `json:"status"`
	DisconnectedAt time.Time  `json:"-"`

	// IsBot marks an automated stand-in, either from the start or after the
	// reconnect grace period expired. Empty marks a voluntary leave.
	IsBot bool `json:"isBot"`
	Empty bool `json:"empty"`
}

// Connected reports whether a live human connection backs this seat.
func (s *Seat) Connected() bool {
	return s.Status == SeatConnected && !s.Empty
}

// HasCard reports whether the card is in the seat's hand.
func (s *Seat) HasCard(c Card) bool {
	for _, h := range s.Hand {
		if h == c {
			return true
		}
	}
	return false
}

// HasColor reports whether the seat holds at least one card of the color.
func (s *Seat) HasColor(color Color) bool {
	for _, h := range s.Hand {
		if h.Color == color {
			return true
		}
	}
	return false
}

// RemoveCard removes the first matching card from the hand. Returns false if
// the card was not present.
func (s *Seat) RemoveCard(c Card) bool {
	for i, h := range s.Hand {
		if h == c {
			s.Hand = append(s.Hand[:i], s.Hand[i+1:]...)
			return true
		}
	}
	return false
}
