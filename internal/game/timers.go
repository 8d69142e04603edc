// internal/game/timers.go
package game

import (
	"log"
	"time"

	"github.com/mbeaudry/quarte/internal/config"
	"github.com/mbeaudry/quarte/internal/models"
)

// setTurnLocked moves the acting turn, announces it, and arms the phase
// timer. Assumes the lock is held.
func (s *Session) setTurnLocked(idx int) {
	s.TurnIndex = idx
	s.TurnID++
	seat := s.Seats[idx]
	s.broadcast(Event{
		Type: EventPlayerTurn,
		Seat: seat.Name,
		Payload: map[string]interface{}{
			"phase":  s.Phase,
			"turnId": s.TurnID,
		},
	})
	s.armTurnTimerLocked()
}

func (s *Session) phaseTimeoutLocked() time.Duration {
	switch s.Phase {
	case PhaseBetting:
		return s.Cfg.BettingTimeout
	case PhasePlaying:
		return s.Cfg.PlayingTimeout
	case PhaseScoring:
		return s.Cfg.ScoringTimeout
	}
	return 0
}

// armTurnTimerLocked schedules expiry for the current turn. Bot seats get
// the short bot delay with no warning or progress ticks. Every callback
// captures TurnID and bails if the turn has moved on.
func (s *Session) armTurnTimerLocked() {
	s.stopTurnTimersLocked()

	d := s.phaseTimeoutLocked()
	if d <= 0 {
		return
	}
	seat := s.Seats[s.TurnIndex]
	if seat.IsBot || !seat.Connected() {
		// Disconnected seats inside the grace window act on the bot delay
		// too; the grace period only governs identity, not turn pace.
		d = s.Cfg.BotDelay
	}
	turnID := s.TurnID

	s.turnTimer = time.AfterFunc(d, func() {
		s.handleTurnExpiry(turnID)
	})

	if seat.IsBot || !seat.Connected() {
		return
	}

	if s.Cfg.TimeoutWarning > 0 && d > s.Cfg.TimeoutWarning {
		name := seat.Name
		s.warnTimer = time.AfterFunc(d-s.Cfg.TimeoutWarning, func() {
			s.Mu.Lock()
			defer s.Mu.Unlock()
			if s.TurnID != turnID || s.Concluded {
				return
			}
			s.broadcast(Event{
				Type: EventTimeoutWarning,
				Seat: name,
				Payload: map[string]interface{}{
					"remaining": s.Cfg.TimeoutWarning.Seconds(),
				},
			})
		})
	}

	if s.Cfg.TimeoutTick > 0 {
		stop := make(chan struct{})
		s.tickStop = stop
		deadline := time.Now().Add(d)
		name := seat.Name
		go func() {
			ticker := time.NewTicker(s.Cfg.TimeoutTick)
			defer ticker.Stop()
			for {
				select {
				case <-stop:
					return
				case <-ticker.C:
					remaining := time.Until(deadline)
					if remaining <= 0 {
						return
					}
					s.Mu.Lock()
					stale := s.TurnID != turnID || s.Concluded
					if !stale {
						s.broadcast(Event{
							Type: EventTimeoutProgress,
							Seat: name,
							Payload: map[string]interface{}{
								"remaining": remaining.Seconds(),
							},
						})
					}
					s.Mu.Unlock()
					if stale {
						return
					}
				}
			}
		}()
	}
}

// armScoringTimerLocked covers the scoring phase, which has no single acting
// seat: at expiry every unready human is auto-readied.
func (s *Session) armScoringTimerLocked() {
	s.stopTurnTimersLocked()
	s.TurnID++
	turnID := s.TurnID
	s.turnTimer = time.AfterFunc(s.Cfg.ScoringTimeout, func() {
		s.Mu.Lock()
		defer s.Mu.Unlock()
		if s.TurnID != turnID || s.Concluded || s.Phase != PhaseScoring {
			return
		}
		for _, seat := range s.Seats {
			if seat.Empty || s.ReadySet[seat.ConnID] {
				continue
			}
			if rej := s.applyActionLocked(seat.ConnID, models.Action{Kind: models.ActionSignalReady, Auto: true}); rej != nil {
				log.Printf("session %s: auto ready rejected: %s", s.ID, rej.Reason)
			}
			if s.Phase != PhaseScoring {
				return
			}
		}
	})
}

// stopTurnTimersLocked cancels the turn timer, warning, and progress ticks.
func (s *Session) stopTurnTimersLocked() {
	if s.turnTimer != nil {
		s.turnTimer.Stop()
		s.turnTimer = nil
	}
	if s.warnTimer != nil {
		s.warnTimer.Stop()
		s.warnTimer = nil
	}
	if s.tickStop != nil {
		close(s.tickStop)
		s.tickStop = nil
	}
}

// handleTurnExpiry fires when the acting seat ran out of time. The auto
// action goes through the same gate as a human one; a rejection here means
// the strategy produced an illegal move, which is logged, and a legal
// fallback is applied.
func (s *Session) handleTurnExpiry(turnID uint64) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.TurnID != turnID || s.Concluded {
		return
	}
	if s.TurnIndex < 0 || s.TurnIndex >= len(s.Seats) {
		return
	}
	seat := s.Seats[s.TurnIndex]
	act, ok := s.autoActionLocked(seat)
	if !ok {
		return
	}
	if rej := s.applyActionLocked(seat.ConnID, act); rej != nil {
		log.Printf("session %s: auto action %s for %s rejected: %s (%s)",
			s.ID, act.Kind, seat.Name, rej.Reason, rej.Detail)
		if fb, ok := s.fallbackActionLocked(seat); ok {
			if rej := s.applyActionLocked(seat.ConnID, fb); rej != nil {
				log.Printf("session %s: fallback action rejected: %s", s.ID, rej.Reason)
			}
		}
	}
}

// autoActionLocked asks the strategy for the seat's move, falling back to
// the built-in legal default when no strategy is wired.
func (s *Session) autoActionLocked(seat *models.Seat) (models.Action, bool) {
	switch s.Phase {
	case PhaseBetting:
		var bet models.Bet
		isDealer := s.Seats[s.DealerIndex] == seat
		if s.Strategy != nil {
			bet = s.Strategy.ChooseBet(seat.Hand, s.LeadBet, isDealer, s.Cfg)
		} else {
			bet = defaultBet(s.LeadBet, isDealer, s.Cfg)
		}
		return models.Action{Kind: models.ActionPlaceBet, Bet: &bet, Auto: true}, true
	case PhasePlaying:
		var card models.Card
		if s.Strategy != nil {
			card = s.Strategy.ChooseCard(seat.Hand, s.CurrentTrick, s.Trump)
		} else {
			card = defaultCard(seat, s.CurrentTrick)
		}
		return models.Action{Kind: models.ActionPlayCard, Card: &card, Auto: true}, true
	case PhaseScoring:
		return models.Action{Kind: models.ActionSignalReady, Auto: true}, true
	}
	return models.Action{}, false
}

// fallbackActionLocked is the last-resort legal move when a strategy's
// choice failed validation.
func (s *Session) fallbackActionLocked(seat *models.Seat) (models.Action, bool) {
	switch s.Phase {
	case PhaseBetting:
		isDealer := s.Seats[s.DealerIndex] == seat
		bet := defaultBet(s.LeadBet, isDealer, s.Cfg)
		return models.Action{Kind: models.ActionPlaceBet, Bet: &bet, Auto: true}, true
	case PhasePlaying:
		card := defaultCard(seat, s.CurrentTrick)
		return models.Action{Kind: models.ActionPlayCard, Card: &card, Auto: true}, true
	}
	return models.Action{}, false
}

// defaultBet skips whenever skipping is legal; a dealer facing an open round
// opens at the minimum.
func defaultBet(lead *models.Bet, isDealer bool, cfg config.Config) models.Bet {
	if isDealer && lead == nil {
		return models.Bet{Amount: cfg.MinBet}
	}
	return models.Bet{Skipped: true}
}

// defaultCard plays the lowest legal card: lowest of the lead color when the
// hand can follow, otherwise the overall lowest.
func defaultCard(seat *models.Seat, trick []PlayedCard) models.Card {
	pick := func(cards []models.Card) models.Card {
		best := cards[0]
		for _, c := range cards[1:] {
			if c.Rank < best.Rank {
				best = c
			}
		}
		return best
	}
	if len(trick) > 0 {
		lead := trick[0].Card.Color
		var follow []models.Card
		for _, c := range seat.Hand {
			if c.Color == lead {
				follow = append(follow, c)
			}
		}
		if len(follow) > 0 {
			return pick(follow)
		}
	}
	return pick(seat.Hand)
}
