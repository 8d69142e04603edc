// internal/game/timers_test.go
package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeaudry/quarte/internal/models"
)

func TestBettingTimeoutAppliesAutoSkip(t *testing.T) {
	cfg := newTestConfig()
	cfg.BettingTimeout = 30 * time.Millisecond
	s, ids, mb := setupTestSession(t, cfg)
	forceRound(s, 3, monochromeHands())

	// Arm the turn timer the way live play does.
	s.Mu.Lock()
	s.setTurnLocked(0)
	s.Mu.Unlock()

	require.Eventually(t, func() bool {
		s.Mu.Lock()
		defer s.Mu.Unlock()
		return len(s.Bets) == 1
	}, time.Second, 5*time.Millisecond, "timeout never produced an auto bet")

	s.Mu.Lock()
	defer s.Mu.Unlock()
	assert.True(t, s.Bets[0].Skipped, "built-in default for a non-dealer is a skip")
	assert.Equal(t, ids[0], s.Bets[0].ConnID)
	assert.Equal(t, 1, s.TurnIndex, "turn advanced past the timed-out seat")
	assert.True(t, mb.hasEvent(EventAutoActionTaken))
}

func TestDealerTimeoutOpensAtMinimum(t *testing.T) {
	cfg := newTestConfig()
	cfg.BettingTimeout = 30 * time.Millisecond
	s, ids, _ := setupTestSession(t, cfg)
	forceRound(s, 3, monochromeHands())

	s.Mu.Lock()
	// Three skips already in; the dealer is on the clock facing an open round.
	for i := 0; i < 3; i++ {
		s.Bets = append(s.Bets, models.Bet{ConnID: ids[i], Skipped: true})
		s.actedThisBet[ids[i]] = true
	}
	s.setTurnLocked(3)
	s.Mu.Unlock()

	require.Eventually(t, func() bool {
		s.Mu.Lock()
		defer s.Mu.Unlock()
		return s.Phase == PhasePlaying
	}, time.Second, 5*time.Millisecond)

	s.Mu.Lock()
	defer s.Mu.Unlock()
	require.NotNil(t, s.LeadBet)
	assert.Equal(t, ids[3], s.LeadBet.ConnID)
	assert.Equal(t, s.Cfg.MinBet, s.LeadBet.Amount)
	assert.False(t, s.LeadBet.Skipped)
}

// TestStaleTimerDiscarded: a timer armed for an earlier turn must not act
// once the turn has moved on.
func TestStaleTimerDiscarded(t *testing.T) {
	cfg := newTestConfig()
	cfg.BettingTimeout = 40 * time.Millisecond
	s, ids, _ := setupTestSession(t, cfg)
	forceRound(s, 3, monochromeHands())

	s.Mu.Lock()
	s.setTurnLocked(0)
	staleID := s.TurnID
	s.Mu.Unlock()

	// Ana acts in time; the pending timer for her turn is now stale.
	mustApply(t, s, ids[0], models.Action{Kind: models.ActionPlaceBet, Bet: bet(4)})

	// Fire the stale callback directly instead of waiting on wall time.
	s.handleTurnExpiry(staleID)

	s.Mu.Lock()
	defer s.Mu.Unlock()
	assert.Len(t, s.Bets, 1, "stale expiry must not add an action")
	assert.Equal(t, 1, s.TurnIndex)
}

// TestLateActionAfterTimeoutRejected: the human's action arriving after the
// timeout already acted for them is rejected, not double-applied.
func TestLateActionAfterTimeoutRejected(t *testing.T) {
	cfg := newTestConfig()
	cfg.BettingTimeout = 30 * time.Millisecond
	s, ids, _ := setupTestSession(t, cfg)
	forceRound(s, 3, monochromeHands())

	s.Mu.Lock()
	s.setTurnLocked(0)
	s.Mu.Unlock()

	require.Eventually(t, func() bool {
		s.Mu.Lock()
		defer s.Mu.Unlock()
		return len(s.Bets) == 1
	}, time.Second, 5*time.Millisecond)

	rej := s.ApplyAction(ids[0], models.Action{Kind: models.ActionPlaceBet, Bet: bet(4)})
	require.NotNil(t, rej)
	assert.Equal(t, ReasonNotYourTurn, rej.Reason)
}

func TestTimeoutWarningEmitted(t *testing.T) {
	cfg := newTestConfig()
	cfg.BettingTimeout = 60 * time.Millisecond
	cfg.TimeoutWarning = 30 * time.Millisecond
	s, _, mb := setupTestSession(t, cfg)
	forceRound(s, 3, monochromeHands())

	s.Mu.Lock()
	s.setTurnLocked(0)
	s.Mu.Unlock()

	require.Eventually(t, func() bool {
		return mb.hasEvent(EventTimeoutWarning)
	}, time.Second, 5*time.Millisecond)

	warn := mb.lastEventOf(EventTimeoutWarning)
	assert.Equal(t, "ana", warn.Seat)
}

func TestTimeoutProgressTicks(t *testing.T) {
	cfg := newTestConfig()
	cfg.BettingTimeout = 200 * time.Millisecond
	cfg.TimeoutTick = 20 * time.Millisecond
	s, _, mb := setupTestSession(t, cfg)
	forceRound(s, 3, monochromeHands())

	s.Mu.Lock()
	s.setTurnLocked(0)
	s.Mu.Unlock()

	require.Eventually(t, func() bool {
		return mb.hasEvent(EventTimeoutProgress)
	}, time.Second, 5*time.Millisecond)
}

func TestBotSeatActsOnBotDelay(t *testing.T) {
	cfg := newTestConfig()
	s, ids, _ := setupTestSession(t, cfg)
	forceRound(s, 3, monochromeHands())

	s.Mu.Lock()
	s.Seats[0].IsBot = true
	s.Seats[0].Status = models.SeatBot
	s.setTurnLocked(0)
	s.Mu.Unlock()

	// The bot delay (5ms) fires long before the 5s betting timeout would.
	require.Eventually(t, func() bool {
		s.Mu.Lock()
		defer s.Mu.Unlock()
		return len(s.Bets) == 1
	}, time.Second, time.Millisecond)

	s.Mu.Lock()
	defer s.Mu.Unlock()
	assert.Equal(t, ids[0], s.Bets[0].ConnID)
}

func TestScoringTimeoutAutoReadies(t *testing.T) {
	cfg := newTestConfig()
	cfg.ScoringTimeout = 30 * time.Millisecond
	s, ids, mb := setupTestSession(t, cfg)
	forceRound(s, 3, monochromeHands())

	s.Mu.Lock()
	s.Phase = PhaseScoring
	s.TurnIndex = -1
	s.armScoringTimerLocked()
	s.Mu.Unlock()

	// One player readies up voluntarily; the rest are carried by the timer.
	mustApply(t, s, ids[1], models.Action{Kind: models.ActionSignalReady})

	require.Eventually(t, func() bool {
		s.Mu.Lock()
		defer s.Mu.Unlock()
		return s.Phase == PhaseBetting
	}, time.Second, 5*time.Millisecond, "scoring never advanced")
	assert.True(t, mb.hasEvent(EventAutoActionTaken))
}
