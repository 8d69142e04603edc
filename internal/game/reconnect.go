// internal/game/reconnect.go
package game

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mbeaudry/quarte/internal/models"
)

// Reconnect errors, surfaced to the transport so it can answer a resume
// attempt with a precise failure.
var (
	ErrSeatNotFound  = errors.New("no seat for that identity")
	ErrSeatEmpty     = errors.New("seat was vacated")
	ErrSeatConverted = errors.New("seat was converted to a stand-in")
	ErrConcluded     = errors.New("match has concluded")
)

// HandleDisconnect marks the seat disconnected and starts the grace clock.
// Before the match starts a disconnect is a leave. During a match the seat
// keeps playing on the bot delay until the player returns or the grace
// period converts it permanently.
func (s *Session) HandleDisconnect(connID uuid.UUID) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	seat := s.seatByConnLocked(connID)
	if seat == nil {
		return
	}
	if !s.Started {
		s.applyLeaveLocked(seat)
		return
	}
	if seat.IsBot {
		return
	}

	seat.Status = models.SeatDisconnected
	seat.DisconnectedAt = time.Now()
	s.graceGen++
	gen := s.graceGen
	name := seat.Name

	s.broadcast(Event{
		Type: EventPlayerDisconnected,
		Seat: name,
		Payload: map[string]interface{}{
			"graceSeconds": s.Cfg.GracePeriod.Seconds(),
		},
	})

	// If it is their turn, swap the long human timer for the bot delay.
	if s.TurnIndex >= 0 && s.Seats[s.TurnIndex] == seat {
		s.armTurnTimerLocked()
	}

	time.AfterFunc(s.Cfg.GracePeriod, func() {
		s.Mu.Lock()
		defer s.Mu.Unlock()
		sl := s.seatByNameLocked(name)
		if sl == nil || s.graceGen != gen || sl.Status != models.SeatDisconnected {
			return
		}
		s.convertToBotLocked(sl)
	})

	s.checkEmptyLocked()
}

// convertToBotLocked permanently hands the seat to the stand-in strategy and
// invalidates the seat's resume token via the conversion hook. Assumes the
// lock is held.
func (s *Session) convertToBotLocked(seat *models.Seat) {
	seat.IsBot = true
	seat.Status = models.SeatBot
	s.broadcast(Event{Type: EventSeatConverted, Seat: seat.Name})
	if s.OnSeatConverted != nil {
		s.OnSeatConverted(seat.Name)
	}
	if s.Phase == PhaseScoring {
		s.ReadySet[seat.ConnID] = true
		s.maybeAdvanceFromScoringLocked()
	}
}

// HandleReconnect resumes a seat under a fresh connection id. Every piece of
// per-connection state is rewritten to the new id so no reference to the old
// connection survives.
func (s *Session) HandleReconnect(name string, newConnID uuid.UUID) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.Concluded {
		return ErrConcluded
	}
	seat := s.seatByNameLocked(name)
	if seat == nil {
		return ErrSeatNotFound
	}
	if seat.Empty {
		return ErrSeatEmpty
	}
	if seat.IsBot {
		return ErrSeatConverted
	}

	old := seat.ConnID
	s.migrateIdentityLocked(old, newConnID)
	seat.Status = models.SeatConnected
	seat.DisconnectedAt = time.Time{}
	s.graceGen++ // voids any pending grace callback

	s.broadcast(Event{Type: EventPlayerReconnected, Seat: name})
	s.broadcastTo(newConnID, Event{Type: EventPrivateStateSync, State: s.viewStateLocked(newConnID)})
	s.broadcastTo(newConnID, Event{Type: EventPrivateHand, Hand: append([]models.Card(nil), seat.Hand...)})

	// Restore the full human timeout if the returning player is on turn.
	if s.TurnIndex >= 0 && s.Seats[s.TurnIndex] == seat {
		s.armTurnTimerLocked()
	}
	return nil
}

// migrateIdentityLocked rewrites old -> new across every structure keyed by
// connection id: the seat itself, bets, the lead bet copy, both tricks, and
// the per-phase bookkeeping maps.
func (s *Session) migrateIdentityLocked(oldID, newID uuid.UUID) {
	for _, seat := range s.Seats {
		if seat.ConnID == oldID {
			seat.ConnID = newID
		}
	}
	for i := range s.Bets {
		if s.Bets[i].ConnID == oldID {
			s.Bets[i].ConnID = newID
		}
	}
	if s.LeadBet != nil && s.LeadBet.ConnID == oldID {
		s.LeadBet.ConnID = newID
	}
	for i := range s.CurrentTrick {
		if s.CurrentTrick[i].ConnID == oldID {
			s.CurrentTrick[i].ConnID = newID
		}
	}
	for i := range s.LastTrick {
		if s.LastTrick[i].ConnID == oldID {
			s.LastTrick[i].ConnID = newID
		}
	}
	migrateKey(s.ReadySet, oldID, newID)
	migrateKey(s.RematchVotes, oldID, newID)
	migrateKey(s.actedThisBet, oldID, newID)
	migrateKey(s.actedThisTrick, oldID, newID)
}

func migrateKey(m map[uuid.UUID]bool, oldID, newID uuid.UUID) {
	if v, ok := m[oldID]; ok {
		delete(m, oldID)
		m[newID] = v
	}
}
