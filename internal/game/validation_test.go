// internal/game/validation_test.go
package game

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeaudry/quarte/internal/models"
)

func rejectionOf(t *testing.T, s *Session, connID uuid.UUID, act models.Action) *Rejection {
	t.Helper()
	rej := s.ApplyAction(connID, act)
	require.NotNil(t, rej, "expected %s to be rejected", act.Kind)
	return rej
}

func TestGateUnknownPlayer(t *testing.T) {
	s, _, _ := setupTestSession(t, newTestConfig())
	rej := rejectionOf(t, s, uuid.New(), models.Action{Kind: models.ActionStartMatch})
	assert.Equal(t, ReasonUnknownPlayer, rej.Reason)
}

func TestGateWrongPhase(t *testing.T) {
	s, ids, _ := setupTestSession(t, newTestConfig())

	// Playing a card during team selection.
	rej := rejectionOf(t, s, ids[0], models.Action{Kind: models.ActionPlayCard, Card: card(models.ColorRed, 1)})
	assert.Equal(t, ReasonWrongPhase, rej.Reason)

	// Betting during playing.
	forceRound(s, 3, monochromeHands())
	s.Mu.Lock()
	s.Phase = PhasePlaying
	s.Mu.Unlock()
	rej = rejectionOf(t, s, ids[0], models.Action{Kind: models.ActionPlaceBet, Bet: bet(4)})
	assert.Equal(t, ReasonWrongPhase, rej.Reason)
}

// TestGateOrderPhaseBeforeTurn: an action failing both the phase and turn
// checks reports the phase failure, because the gate order is fixed.
func TestGateOrderPhaseBeforeTurn(t *testing.T) {
	s, ids, _ := setupTestSession(t, newTestConfig())
	forceRound(s, 3, monochromeHands())
	// It is ana's (ids[0]) turn in betting; dia plays a card: wrong phase
	// AND wrong turn. Phase wins.
	rej := rejectionOf(t, s, ids[3], models.Action{Kind: models.ActionPlayCard, Card: card(models.ColorYellow, 1)})
	assert.Equal(t, ReasonWrongPhase, rej.Reason)
}

func TestGateNotYourTurn(t *testing.T) {
	s, ids, _ := setupTestSession(t, newTestConfig())
	forceRound(s, 3, monochromeHands())
	rej := rejectionOf(t, s, ids[2], models.Action{Kind: models.ActionPlaceBet, Bet: bet(4)})
	assert.Equal(t, ReasonNotYourTurn, rej.Reason)
}

func TestGateMalformedPayload(t *testing.T) {
	s, ids, _ := setupTestSession(t, newTestConfig())
	forceRound(s, 3, monochromeHands())

	rej := rejectionOf(t, s, ids[0], models.Action{Kind: models.ActionPlaceBet})
	assert.Equal(t, ReasonMalformedPayload, rej.Reason)

	s.Mu.Lock()
	s.Phase = PhasePlaying
	s.Mu.Unlock()
	rej = rejectionOf(t, s, ids[0], models.Action{Kind: models.ActionPlayCard})
	assert.Equal(t, ReasonMalformedPayload, rej.Reason)

	// A card outside the deck is shape-invalid, not merely not-held.
	rej = rejectionOf(t, s, ids[0], models.Action{Kind: models.ActionPlayCard, Card: &models.Card{Color: "purple", Rank: 3}})
	assert.Equal(t, ReasonMalformedPayload, rej.Reason)
	rej = rejectionOf(t, s, ids[0], models.Action{Kind: models.ActionPlayCard, Card: &models.Card{Color: models.ColorRed, Rank: 9}})
	assert.Equal(t, ReasonMalformedPayload, rej.Reason)
}

func TestGateCardNotHeld(t *testing.T) {
	s, ids, _ := setupTestSession(t, newTestConfig())
	forceRound(s, 3, monochromeHands())
	s.Mu.Lock()
	s.Phase = PhasePlaying
	s.Mu.Unlock()

	// Ana holds only red.
	rej := rejectionOf(t, s, ids[0], models.Action{Kind: models.ActionPlayCard, Card: card(models.ColorBlue, 1)})
	assert.Equal(t, ReasonCardNotHeld, rej.Reason)
}

func TestGateMustFollowColor(t *testing.T) {
	s, ids, _ := setupTestSession(t, newTestConfig())
	hands := monochromeHands()
	// Give ben one red card so following is possible for him.
	hands[1][0] = models.Card{Color: models.ColorRed, Rank: 8}
	forceRound(s, 3, hands)

	mustApply(t, s, ids[0], models.Action{Kind: models.ActionPlaceBet, Bet: bet(3)})
	mustApply(t, s, ids[1], models.Action{Kind: models.ActionPlaceBet, Bet: skip()})
	mustApply(t, s, ids[2], models.Action{Kind: models.ActionPlaceBet, Bet: skip()})
	mustApply(t, s, ids[3], models.Action{Kind: models.ActionPlaceBet, Bet: skip()})

	mustApply(t, s, ids[0], models.Action{Kind: models.ActionPlayCard, Card: card(models.ColorRed, 1)})

	// Ben holds red 8 and must play it rather than a blue card.
	rej := rejectionOf(t, s, ids[1], models.Action{Kind: models.ActionPlayCard, Card: card(models.ColorBlue, 2)})
	assert.Equal(t, ReasonMustFollow, rej.Reason)

	mustApply(t, s, ids[1], models.Action{Kind: models.ActionPlayCard, Card: card(models.ColorRed, 8)})

	// Cal has no red; any card is legal.
	mustApply(t, s, ids[2], models.Action{Kind: models.ActionPlayCard, Card: card(models.ColorGreen, 4)})
}

func TestGateBetRules(t *testing.T) {
	s, ids, _ := setupTestSession(t, newTestConfig())
	forceRound(s, 3, monochromeHands())

	// Out of range, both ends.
	rej := rejectionOf(t, s, ids[0], models.Action{Kind: models.ActionPlaceBet, Bet: bet(2)})
	assert.Equal(t, ReasonBetOutOfRange, rej.Reason)
	rej = rejectionOf(t, s, ids[0], models.Action{Kind: models.ActionPlaceBet, Bet: bet(8)})
	assert.Equal(t, ReasonBetOutOfRange, rej.Reason)

	mustApply(t, s, ids[0], models.Action{Kind: models.ActionPlaceBet, Bet: bet(5)})

	// Non-dealer must strictly raise: equal is too low.
	rej = rejectionOf(t, s, ids[1], models.Action{Kind: models.ActionPlaceBet, Bet: bet(5)})
	assert.Equal(t, ReasonBetTooLow, rej.Reason)
	rej = rejectionOf(t, s, ids[1], models.Action{Kind: models.ActionPlaceBet, Bet: bet(4)})
	assert.Equal(t, ReasonBetTooLow, rej.Reason)

	// Equal amount without trump is a strict raise.
	mustApply(t, s, ids[1], models.Action{Kind: models.ActionPlaceBet, Bet: &models.Bet{Amount: 5, WithoutTrump: true}})

	mustApply(t, s, ids[2], models.Action{Kind: models.ActionPlaceBet, Bet: skip()})

	// The dealer may match the standing bet exactly.
	mustApply(t, s, ids[3], models.Action{Kind: models.ActionPlaceBet, Bet: &models.Bet{Amount: 5, WithoutTrump: true}})

	s.Mu.Lock()
	defer s.Mu.Unlock()
	require.NotNil(t, s.LeadBet)
	assert.Equal(t, ids[3], s.LeadBet.ConnID, "dealer wins the exact tie")
}

func TestGateDealerMustOpen(t *testing.T) {
	s, ids, _ := setupTestSession(t, newTestConfig())
	forceRound(s, 3, monochromeHands())

	mustApply(t, s, ids[0], models.Action{Kind: models.ActionPlaceBet, Bet: skip()})
	mustApply(t, s, ids[1], models.Action{Kind: models.ActionPlaceBet, Bet: skip()})
	mustApply(t, s, ids[2], models.Action{Kind: models.ActionPlaceBet, Bet: skip()})

	// All three skipped; the dealer cannot.
	rej := rejectionOf(t, s, ids[3], models.Action{Kind: models.ActionPlaceBet, Bet: skip()})
	assert.Equal(t, ReasonDealerMustBet, rej.Reason)

	mustApply(t, s, ids[3], models.Action{Kind: models.ActionPlaceBet, Bet: bet(3)})

	s.Mu.Lock()
	defer s.Mu.Unlock()
	assert.Equal(t, PhasePlaying, s.Phase)
	require.NotNil(t, s.LeadBet)
	assert.Equal(t, ids[3], s.LeadBet.ConnID)
}

func TestGateTeamRules(t *testing.T) {
	cfg := newTestConfig()
	s := NewSession(cfg)
	mb := newMockBroadcaster()
	s.BroadcastFn = mb.broadcastFn
	s.BroadcastToPlayerFn = mb.broadcastToPlayerFn

	var ids [4]uuid.UUID
	for i := 0; i < 4; i++ {
		ids[i] = uuid.New()
		require.NoError(t, s.AddPlayer(ids[i], testNames[i]))
	}

	bad := 2
	rej := rejectionOf(t, s, ids[0], models.Action{Kind: models.ActionSelectTeam, Team: &bad})
	assert.Equal(t, ReasonInvalidTeam, rej.Reason)

	zero := 0
	mustApply(t, s, ids[0], models.Action{Kind: models.ActionSelectTeam, Team: &zero})
	mustApply(t, s, ids[1], models.Action{Kind: models.ActionSelectTeam, Team: &zero})

	// Third member of team 0 is refused.
	rej = rejectionOf(t, s, ids[2], models.Action{Kind: models.ActionSelectTeam, Team: &zero})
	assert.Equal(t, ReasonTeamFull, rej.Reason)

	// Start is refused until teams are two and two.
	rej = rejectionOf(t, s, ids[0], models.Action{Kind: models.ActionStartMatch})
	assert.Equal(t, ReasonTeamsNotReady, rej.Reason)

	one := 1
	mustApply(t, s, ids[2], models.Action{Kind: models.ActionSelectTeam, Team: &one})
	mustApply(t, s, ids[3], models.Action{Kind: models.ActionSelectTeam, Team: &one})
	mustApply(t, s, ids[0], models.Action{Kind: models.ActionStartMatch})

	s.Mu.Lock()
	defer s.Mu.Unlock()
	assert.Equal(t, PhaseBetting, s.Phase)
}

func TestGateSwapSeatUnknownTarget(t *testing.T) {
	s, ids, _ := setupTestSession(t, newTestConfig())
	rej := rejectionOf(t, s, ids[0], models.Action{Kind: models.ActionSwapSeat, TargetName: "zoe"})
	assert.Equal(t, ReasonUnknownTarget, rej.Reason)

	mustApply(t, s, ids[0], models.Action{Kind: models.ActionSwapSeat, TargetName: "cal"})
	s.Mu.Lock()
	defer s.Mu.Unlock()
	assert.Equal(t, "cal", s.Seats[0].Name)
	assert.Equal(t, "ana", s.Seats[2].Name)
}

func TestRejectionGoesOnlyToActor(t *testing.T) {
	s, ids, mb := setupTestSession(t, newTestConfig())
	forceRound(s, 3, monochromeHands())

	rejectionOf(t, s, ids[2], models.Action{Kind: models.ActionPlaceBet, Bet: bet(4)})

	ev := mb.lastPlayerEventOf(ids[2], EventActionRejected)
	require.NotNil(t, ev)
	assert.Equal(t, ReasonNotYourTurn, ev.Payload["reason"])
	assert.Nil(t, mb.lastPlayerEventOf(ids[0], EventActionRejected))
	assert.False(t, mb.hasEvent(EventActionRejected), "rejections are never broadcast")
}

func TestRejectionMutatesNothing(t *testing.T) {
	s, ids, _ := setupTestSession(t, newTestConfig())
	forceRound(s, 3, monochromeHands())

	before := s.SnapshotNow()
	rejectionOf(t, s, ids[2], models.Action{Kind: models.ActionPlaceBet, Bet: bet(4)})
	after := s.SnapshotNow()

	assert.Equal(t, before.Phase, after.Phase)
	assert.Equal(t, before.TurnIndex, after.TurnIndex)
	assert.Equal(t, before.Bets, after.Bets)
	assert.Equal(t, before.Seats, after.Seats)
}

// TestGateDuplicatePlaySameTrick: the per-trick marker rejects a second play
// by the same seat even when the turn pointer reads as theirs, which is what
// a racing replay sees before the turn advances.
func TestGateDuplicatePlaySameTrick(t *testing.T) {
	s, ids, _ := setupTestSession(t, newTestConfig())
	forceRound(s, 3, monochromeHands())

	mustApply(t, s, ids[0], models.Action{Kind: models.ActionPlaceBet, Bet: bet(3)})
	mustApply(t, s, ids[1], models.Action{Kind: models.ActionPlaceBet, Bet: skip()})
	mustApply(t, s, ids[2], models.Action{Kind: models.ActionPlaceBet, Bet: skip()})
	mustApply(t, s, ids[3], models.Action{Kind: models.ActionPlaceBet, Bet: skip()})

	mustApply(t, s, ids[0], models.Action{Kind: models.ActionPlayCard, Card: card(models.ColorRed, 1)})

	s.Mu.Lock()
	s.TurnIndex = 0
	s.Mu.Unlock()

	rej := rejectionOf(t, s, ids[0], models.Action{Kind: models.ActionPlayCard, Card: card(models.ColorRed, 2)})
	assert.Equal(t, ReasonDuplicateAction, rej.Reason)
}

// TestGateDuplicatePlayClearsNextTrick: the marker resets when the trick
// clears, so leading the next trick is legal for last trick's players.
func TestGateDuplicatePlayClearsNextTrick(t *testing.T) {
	s, ids, _ := setupTestSession(t, newTestConfig())
	forceRound(s, 3, monochromeHands())

	mustApply(t, s, ids[0], models.Action{Kind: models.ActionPlaceBet, Bet: bet(3)})
	mustApply(t, s, ids[1], models.Action{Kind: models.ActionPlaceBet, Bet: skip()})
	mustApply(t, s, ids[2], models.Action{Kind: models.ActionPlaceBet, Bet: skip()})
	mustApply(t, s, ids[3], models.Action{Kind: models.ActionPlaceBet, Bet: skip()})

	playTrick(t, s, ids, 1)

	// Red trump: ana took the trick and leads again.
	mustApply(t, s, ids[0], models.Action{Kind: models.ActionPlayCard, Card: card(models.ColorRed, 2)})
}

// TestGateBetRangeBeforeDuplicate: the numeric range lives in the payload
// shape check, which runs before duplicate suppression.
func TestGateBetRangeBeforeDuplicate(t *testing.T) {
	s, ids, _ := setupTestSession(t, newTestConfig())
	forceRound(s, 3, monochromeHands())

	s.Mu.Lock()
	s.actedThisBet[ids[0]] = true
	s.Mu.Unlock()

	rej := rejectionOf(t, s, ids[0], models.Action{Kind: models.ActionPlaceBet, Bet: bet(9)})
	assert.Equal(t, ReasonBetOutOfRange, rej.Reason, "range reported before the duplicate")

	rej = rejectionOf(t, s, ids[0], models.Action{Kind: models.ActionPlaceBet, Bet: bet(5)})
	assert.Equal(t, ReasonDuplicateAction, rej.Reason)
}
