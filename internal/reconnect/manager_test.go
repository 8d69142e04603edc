// internal/reconnect/manager_test.go
package reconnect

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeaudry/quarte/internal/auth"
	"github.com/mbeaudry/quarte/internal/config"
	"github.com/mbeaudry/quarte/internal/game"
	"github.com/mbeaudry/quarte/internal/models"
)

func TestMain(m *testing.M) {
	auth.Init()
	m.Run()
}

func newTestManager(t *testing.T) (*Manager, *game.Session) {
	t.Helper()
	registry := game.NewRegistry()
	s := game.NewSession(config.Default())
	for i, name := range []string{"ana", "ben", "cal", "dia"} {
		require.NoError(t, s.AddPlayer(uuid.New(), name))
		team := i % 2
		rej := s.ApplyAction(s.Seats[i].ConnID, models.Action{Kind: models.ActionSelectTeam, Team: &team})
		require.Nil(t, rej)
	}
	registry.Add(s)
	return NewManager(registry, NewMemoryTokenStore(), time.Minute), s
}

func TestIssueValidateRoundTrip(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()

	token, err := m.Issue(ctx, s.ID, "ana")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, seatName, err := m.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, s, got)
	assert.Equal(t, "ana", seatName)
}

func TestValidateRejectsGarbage(t *testing.T) {
	m, _ := newTestManager(t)
	_, _, err := m.Validate(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateRejectsRevokedToken(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()

	token, err := m.Issue(ctx, s.ID, "ana")
	require.NoError(t, err)

	m.Revoke(ctx, s.ID, "ana")

	_, _, err = m.Validate(ctx, token)
	assert.ErrorIs(t, err, ErrTokenExpired, "a revoked token reads as expired")
}

func TestReissueRevokesPreviousToken(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()

	first, err := m.Issue(ctx, s.ID, "ana")
	require.NoError(t, err)
	second, err := m.Issue(ctx, s.ID, "ana")
	require.NoError(t, err)

	_, _, err = m.Validate(ctx, first)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, seatName, err := m.Validate(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "ana", seatName)
}

func TestValidateSessionGone(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()

	token, err := m.Issue(ctx, s.ID, "ana")
	require.NoError(t, err)

	m.Registry.Remove(s.ID)

	_, _, err = m.Validate(ctx, token)
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestValidateConcludedSession(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()

	token, err := m.Issue(ctx, s.ID, "ana")
	require.NoError(t, err)

	s.Mu.Lock()
	s.Concluded = true
	s.Mu.Unlock()

	_, _, err = m.Validate(ctx, token)
	assert.ErrorIs(t, err, ErrGameConcluded)
}

func TestValidateConvertedSeat(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()

	token, err := m.Issue(ctx, s.ID, "ben")
	require.NoError(t, err)

	s.Mu.Lock()
	s.Seats[1].IsBot = true
	s.Seats[1].Status = models.SeatBot
	s.Mu.Unlock()

	_, _, err = m.Validate(ctx, token)
	assert.ErrorIs(t, err, ErrSeatConverted)
}

func TestMemoryTokenStoreTTL(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx := context.Background()
	tokenID, sessionID := uuid.New(), uuid.New()

	require.NoError(t, store.Put(ctx, tokenID, sessionID, "ana", 10*time.Millisecond))

	sid, seat, err := store.Get(ctx, tokenID)
	require.NoError(t, err)
	assert.Equal(t, sessionID, sid)
	assert.Equal(t, "ana", seat)

	time.Sleep(20 * time.Millisecond)
	_, _, err = store.Get(ctx, tokenID)
	assert.Error(t, err)
}
