// internal/game/game_store_test.go
package game

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRemoveFiresOnRemove(t *testing.T) {
	r := NewRegistry()
	s := NewSession(newTestConfig())
	r.Add(s)

	var removed []uuid.UUID
	r.OnRemove = func(id uuid.UUID) { removed = append(removed, id) }

	r.Remove(s.ID)

	assert.Equal(t, []uuid.UUID{s.ID}, removed)
	_, ok := r.Get(s.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())
}

func TestRegistryTeardownRemovesEmptySession(t *testing.T) {
	r := NewRegistry()
	s := NewSession(newTestConfig())
	r.Add(s)

	done := make(chan uuid.UUID, 1)
	r.OnRemove = func(id uuid.UUID) { done <- id }

	r.ScheduleTeardown(s.ID, 5*time.Millisecond)

	select {
	case id := <-done:
		assert.Equal(t, s.ID, id)
	case <-time.After(time.Second):
		t.Fatal("teardown never removed the session")
	}
	_, ok := r.Get(s.ID)
	assert.False(t, ok)
}

func TestRegistryCancelTeardownKeepsSession(t *testing.T) {
	r := NewRegistry()
	s := NewSession(newTestConfig())
	r.Add(s)

	r.OnRemove = func(id uuid.UUID) { t.Errorf("session %s removed after cancel", id) }

	r.ScheduleTeardown(s.ID, 10*time.Millisecond)
	r.CancelTeardown(s.ID)
	time.Sleep(30 * time.Millisecond)

	_, ok := r.Get(s.ID)
	require.True(t, ok)
}
