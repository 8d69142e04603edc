// internal/game/validation.go
package game

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mbeaudry/quarte/internal/models"
)

// Session-level join errors, surfaced over the transport before a connection
// is seated.
var (
	ErrMatchStarted = errors.New("match already started")
	ErrNameTaken    = errors.New("name already seated")
	ErrTableFull    = errors.New("table is full")
)

// RejectReason is the machine-readable cause sent with action_rejected.
type RejectReason string

const (
	ReasonUnknownPlayer    RejectReason = "unknown_player"
	ReasonWrongPhase       RejectReason = "wrong_phase"
	ReasonTrickLocked      RejectReason = "trick_locked"
	ReasonNotYourTurn      RejectReason = "not_your_turn"
	ReasonMalformedPayload RejectReason = "malformed_payload"
	ReasonCardNotHeld      RejectReason = "card_not_held"
	ReasonDuplicateAction  RejectReason = "duplicate_action"

	ReasonBetOutOfRange  RejectReason = "bet_out_of_range"
	ReasonBetTooLow      RejectReason = "bet_too_low"
	ReasonDealerMustBet  RejectReason = "dealer_must_bet"
	ReasonMustFollow     RejectReason = "must_follow_color"
	ReasonInvalidTeam    RejectReason = "invalid_team"
	ReasonTeamFull       RejectReason = "team_full"
	ReasonUnknownTarget  RejectReason = "unknown_target"
	ReasonTeamsNotReady  RejectReason = "teams_not_ready"
	ReasonMatchConcluded RejectReason = "match_concluded"
)

// Rejection explains why an action was refused. Nothing is mutated when one
// is returned.
type Rejection struct {
	Reason RejectReason `json:"reason"`
	Detail string       `json:"detail,omitempty"`
}

func reject(reason RejectReason, format string, args ...interface{}) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// phaseActions maps each phase to the action kinds it accepts.
var phaseActions = map[Phase]map[models.ActionKind]bool{
	PhaseTeamSelection: {
		models.ActionSelectTeam: true,
		models.ActionSwapSeat:   true,
		models.ActionStartMatch: true,
		models.ActionLeave:      true,
	},
	PhaseBetting: {
		models.ActionPlaceBet: true,
		models.ActionLeave:    true,
	},
	PhasePlaying: {
		models.ActionPlayCard: true,
		models.ActionLeave:    true,
	},
	PhaseScoring: {
		models.ActionSignalReady: true,
		models.ActionLeave:       true,
	},
	PhaseGameOver: {
		models.ActionVoteRematch: true,
		models.ActionLeave:       true,
	},
}

// validateLocked runs the fixed-order gate. The order is observable: a
// request failing several checks always reports the earliest one. Assumes
// the lock is held.
func (s *Session) validateLocked(connID uuid.UUID, act models.Action) *Rejection {
	// 1. Actor must hold a seat in this session.
	seat := s.seatByConnLocked(connID)
	if seat == nil {
		return reject(ReasonUnknownPlayer, "connection is not seated")
	}

	// 2. Phase gate.
	if !phaseActions[s.Phase][act.Kind] {
		return reject(ReasonWrongPhase, "%s not allowed in %s", act.Kind, s.Phase)
	}

	// 3. Trick lock: plays are frozen during the trick display window. This
	// precedes the turn check so a racing play reports the lock, not a turn
	// error, once the resolved trick handed the turn elsewhere.
	if act.Kind == models.ActionPlayCard && s.TrickLocked {
		return reject(ReasonTrickLocked, "trick is being resolved")
	}

	// 4. Turn-bound kinds.
	if act.Kind == models.ActionPlaceBet || act.Kind == models.ActionPlayCard {
		if s.TurnIndex < 0 || s.Seats[s.TurnIndex] != seat {
			return reject(ReasonNotYourTurn, "it is %s's turn", s.turnNameLocked())
		}
	}

	// 5. Payload shape, including the numeric bet range.
	if rej := s.validateShapeLocked(act); rej != nil {
		return rej
	}

	// 6. Ownership.
	if act.Kind == models.ActionPlayCard && !seat.HasCard(*act.Card) {
		return reject(ReasonCardNotHeld, "%s is not in hand", act.Card)
	}

	// 7. Duplicate suppression.
	if rej := s.validateDuplicateLocked(seat, act); rej != nil {
		return rej
	}

	// 8. Rule-specific checks.
	return s.validateRulesLocked(seat, act)
}

func (s *Session) turnNameLocked() string {
	if s.TurnIndex < 0 || s.TurnIndex >= len(s.Seats) {
		return "nobody"
	}
	return s.Seats[s.TurnIndex].Name
}

func (s *Session) validateShapeLocked(act models.Action) *Rejection {
	switch act.Kind {
	case models.ActionSelectTeam:
		if act.Team == nil {
			return reject(ReasonMalformedPayload, "team is required")
		}
	case models.ActionSwapSeat:
		if act.TargetName == "" {
			return reject(ReasonMalformedPayload, "targetName is required")
		}
	case models.ActionPlaceBet:
		if act.Bet == nil {
			return reject(ReasonMalformedPayload, "bet is required")
		}
		if !act.Bet.Skipped && (act.Bet.Amount < s.Cfg.MinBet || act.Bet.Amount > s.Cfg.MaxBet) {
			return reject(ReasonBetOutOfRange, "bet must be between %d and %d", s.Cfg.MinBet, s.Cfg.MaxBet)
		}
	case models.ActionPlayCard:
		if act.Card == nil {
			return reject(ReasonMalformedPayload, "card is required")
		}
		if !act.Card.Valid() {
			return reject(ReasonMalformedPayload, "no such card: %s", act.Card)
		}
	}
	return nil
}

func (s *Session) validateDuplicateLocked(seat *models.Seat, act models.Action) *Rejection {
	switch act.Kind {
	case models.ActionPlaceBet:
		if s.actedThisBet[seat.ConnID] {
			return reject(ReasonDuplicateAction, "bet already placed this round")
		}
	case models.ActionPlayCard:
		if s.actedThisTrick[seat.ConnID] {
			return reject(ReasonDuplicateAction, "already played in this trick")
		}
	case models.ActionSignalReady:
		if s.ReadySet[seat.ConnID] {
			return reject(ReasonDuplicateAction, "already ready")
		}
	case models.ActionVoteRematch:
		if s.RematchVotes[seat.ConnID] {
			return reject(ReasonDuplicateAction, "already voted")
		}
	}
	return nil
}

func (s *Session) validateRulesLocked(seat *models.Seat, act models.Action) *Rejection {
	switch act.Kind {
	case models.ActionSelectTeam:
		return s.validateSelectTeamLocked(seat, *act.Team)
	case models.ActionSwapSeat:
		if s.seatByNameLocked(act.TargetName) == nil {
			return reject(ReasonUnknownTarget, "no seat named %q", act.TargetName)
		}
	case models.ActionStartMatch:
		return s.validateStartMatchLocked()
	case models.ActionPlaceBet:
		return s.validateBetLocked(seat, *act.Bet)
	case models.ActionPlayCard:
		return s.validatePlayLocked(seat, *act.Card)
	}
	return nil
}

func (s *Session) validateSelectTeamLocked(seat *models.Seat, team int) *Rejection {
	if team != 0 && team != 1 {
		return reject(ReasonInvalidTeam, "team must be 0 or 1")
	}
	if seat.Team != team && s.teamCountLocked(team) >= 2 {
		return reject(ReasonTeamFull, "team %d is full", team)
	}
	return nil
}

func (s *Session) validateStartMatchLocked() *Rejection {
	if len(s.Seats) < MaxPlayers {
		return reject(ReasonTeamsNotReady, "need %d players", MaxPlayers)
	}
	for _, seat := range s.Seats {
		if seat.Empty || seat.Team == models.TeamNone {
			return reject(ReasonTeamsNotReady, "every seat must pick a team")
		}
	}
	if s.teamCountLocked(0) != 2 || s.teamCountLocked(1) != 2 {
		return reject(ReasonTeamsNotReady, "teams must be two and two")
	}
	return nil
}

// validateBetLocked enforces the strict-raise rule for non-dealers and the
// dealer's obligation to bet when the round has no standing bet. The numeric
// range is a shape concern, checked earlier in the gate.
func (s *Session) validateBetLocked(seat *models.Seat, bet models.Bet) *Rejection {
	isDealer := s.Seats[s.DealerIndex] == seat
	lead, hasLead := LeadingBet(s.Bets, s.Seats[s.DealerIndex].ConnID)

	if bet.Skipped {
		if isDealer && !hasLead {
			return reject(ReasonDealerMustBet, "dealer must open when all others skipped")
		}
		return nil
	}
	if !hasLead {
		return nil
	}
	if Outranks(bet, lead) {
		return nil
	}
	// The dealer may match the standing bet exactly and win the tie.
	if isDealer && !Outranks(lead, bet) {
		return nil
	}
	return reject(ReasonBetTooLow, "bet must beat %d%s", lead.Amount, trumpSuffix(lead))
}

func trumpSuffix(b models.Bet) string {
	if b.WithoutTrump {
		return " without trump"
	}
	return ""
}

// validatePlayLocked enforces color following: a player holding the lead
// color must play it.
func (s *Session) validatePlayLocked(seat *models.Seat, card models.Card) *Rejection {
	if len(s.CurrentTrick) == 0 {
		return nil
	}
	lead := s.CurrentTrick[0].Card.Color
	if card.Color != lead && seat.HasColor(lead) {
		return reject(ReasonMustFollow, "must follow %s", lead)
	}
	return nil
}
