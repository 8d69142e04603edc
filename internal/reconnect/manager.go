// internal/reconnect/manager.go
package reconnect

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mbeaudry/quarte/internal/auth"
	"github.com/mbeaudry/quarte/internal/cache"
	"github.com/mbeaudry/quarte/internal/game"
)

// Resume failures, distinguished so the transport can tell the client
// exactly why a token no longer works.
var (
	ErrTokenInvalid   = errors.New("token invalid")
	ErrTokenExpired   = errors.New("token expired or revoked")
	ErrGameNotFound   = errors.New("session no longer exists")
	ErrSeatEmpty      = errors.New("seat was vacated")
	ErrSeatConverted  = errors.New("seat was permanently converted")
	ErrGameConcluded  = errors.New("session has concluded")
	ErrSeatNotMatched = errors.New("token does not match a seat")
)

// TokenStore is the durable side of resume tokens. The JWT signature proves
// authenticity; the store proves the token has not been revoked.
type TokenStore interface {
	Put(ctx context.Context, tokenID, sessionID uuid.UUID, seatName string, ttl time.Duration) error
	Get(ctx context.Context, tokenID uuid.UUID) (uuid.UUID, string, error)
	Delete(ctx context.Context, tokenID uuid.UUID) error
}

// MemoryTokenStore is the fallback store when Redis is not configured.
// Tokens then live only as long as the process.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]memoryToken
}

type memoryToken struct {
	sessionID uuid.UUID
	seatName  string
	expiresAt time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[uuid.UUID]memoryToken)}
}

func (m *MemoryTokenStore) Put(_ context.Context, tokenID, sessionID uuid.UUID, seatName string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp := time.Time{}
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	m.tokens[tokenID] = memoryToken{sessionID: sessionID, seatName: seatName, expiresAt: exp}
	return nil
}

func (m *MemoryTokenStore) Get(_ context.Context, tokenID uuid.UUID) (uuid.UUID, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[tokenID]
	if !ok {
		return uuid.Nil, "", cache.ErrTokenMissing
	}
	if !t.expiresAt.IsZero() && time.Now().After(t.expiresAt) {
		delete(m.tokens, tokenID)
		return uuid.Nil, "", cache.ErrTokenMissing
	}
	return t.sessionID, t.seatName, nil
}

func (m *MemoryTokenStore) Delete(_ context.Context, tokenID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, tokenID)
	return nil
}

// Manager issues and validates resume tokens against the live registry.
type Manager struct {
	Registry *game.Registry
	Store    TokenStore
	TokenTTL time.Duration

	// seatTokens maps session+seat to the currently issued token id so a
	// seat conversion or leave can revoke it.
	mu         sync.Mutex
	seatTokens map[seatKey]uuid.UUID
}

type seatKey struct {
	sessionID uuid.UUID
	seatName  string
}

func NewManager(registry *game.Registry, store TokenStore, ttl time.Duration) *Manager {
	if store == nil {
		store = NewMemoryTokenStore()
	}
	return &Manager{
		Registry:   registry,
		Store:      store,
		TokenTTL:   ttl,
		seatTokens: make(map[seatKey]uuid.UUID),
	}
}

// Issue mints a resume token for the seat and registers it in the durable
// store. Re-issuing for the same seat revokes the previous token.
func (m *Manager) Issue(ctx context.Context, sessionID uuid.UUID, seatName string) (string, error) {
	signed, claims, err := auth.CreateSessionToken(sessionID, seatName, m.TokenTTL)
	if err != nil {
		return "", err
	}
	if err := m.Store.Put(ctx, claims.TokenID, sessionID, seatName, m.TokenTTL); err != nil {
		return "", err
	}

	key := seatKey{sessionID: sessionID, seatName: seatName}
	m.mu.Lock()
	prev, had := m.seatTokens[key]
	m.seatTokens[key] = claims.TokenID
	m.mu.Unlock()
	if had {
		_ = m.Store.Delete(ctx, prev)
	}
	return signed, nil
}

// Validate checks a presented token end to end: signature, durable-store
// liveness, session existence, and seat resumability. On success it returns
// the session and the seat name; the caller completes the handshake with
// Session.HandleReconnect.
func (m *Manager) Validate(ctx context.Context, tokenString string) (*game.Session, string, error) {
	claims, err := auth.AuthenticateSessionToken(tokenString)
	if err != nil {
		return nil, "", ErrTokenInvalid
	}

	sid, seatName, err := m.Store.Get(ctx, claims.TokenID)
	if err != nil {
		if errors.Is(err, cache.ErrTokenMissing) {
			return nil, "", ErrTokenExpired
		}
		return nil, "", err
	}
	if sid != claims.SessionID || seatName != claims.SeatName {
		return nil, "", ErrSeatNotMatched
	}

	sess, ok := m.Registry.Get(sid)
	if !ok {
		return nil, "", ErrGameNotFound
	}

	sess.Mu.Lock()
	concluded := sess.Concluded
	var empty, converted, found bool
	for _, seat := range sess.Seats {
		if seat.Name == seatName {
			found = true
			empty = seat.Empty
			converted = seat.IsBot
			break
		}
	}
	sess.Mu.Unlock()

	switch {
	case concluded:
		return nil, "", ErrGameConcluded
	case !found || empty:
		return nil, "", ErrSeatEmpty
	case converted:
		return nil, "", ErrSeatConverted
	}
	return sess, seatName, nil
}

// Revoke drops the seat's current token, used when the grace period
// converts a seat or the player leaves for good.
func (m *Manager) Revoke(ctx context.Context, sessionID uuid.UUID, seatName string) {
	key := seatKey{sessionID: sessionID, seatName: seatName}
	m.mu.Lock()
	tokenID, ok := m.seatTokens[key]
	if ok {
		delete(m.seatTokens, key)
	}
	m.mu.Unlock()
	if ok {
		_ = m.Store.Delete(ctx, tokenID)
	}
}
