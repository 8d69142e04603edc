package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry tracks every live session in the process. Empty sessions linger
// for a teardown delay so a briefly-absent table can be rejoined.
type Registry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	pending  map[uuid.UUID]*time.Timer

	// OnRemove fires after a session leaves the registry, letting the
	// transport release per-session resources such as connection hubs.
	OnRemove func(id uuid.UUID)
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
		pending:  make(map[uuid.UUID]*time.Timer),
	}
}

// Add registers the session and wires its teardown hook.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	s.OnEmpty = func() {
		r.ScheduleTeardown(s.ID, s.Cfg.TeardownDelay)
	}
}

func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
}

func (r *Registry) removeLocked(id uuid.UUID) {
	if t, ok := r.pending[id]; ok {
		t.Stop()
		delete(r.pending, id)
	}
	if s, ok := r.sessions[id]; ok {
		s.Mu.Lock()
		s.stopTurnTimersLocked()
		s.Mu.Unlock()
		delete(r.sessions, id)
		if r.OnRemove != nil {
			r.OnRemove(id)
		}
	}
}

// ScheduleTeardown removes the session after the delay unless activity
// cancels it first.
func (r *Registry) ScheduleTeardown(id uuid.UUID, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return
	}
	if t, ok := r.pending[id]; ok {
		t.Stop()
	}
	r.pending[id] = time.AfterFunc(delay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		s, ok := r.sessions[id]
		if !ok {
			return
		}
		s.Mu.Lock()
		empty := s.connectedHumansLocked() == 0
		s.Mu.Unlock()
		if empty {
			r.removeLocked(id)
		} else {
			delete(r.pending, id)
		}
	})
}

// CancelTeardown voids a pending removal, typically on reconnect.
func (r *Registry) CancelTeardown(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.pending[id]; ok {
		t.Stop()
		delete(r.pending, id)
	}
}

// Count reports the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
