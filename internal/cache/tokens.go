// internal/cache/tokens.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrTokenMissing is returned when no stored token matches the id.
var ErrTokenMissing = errors.New("token not found")

// RedisTokenStore keeps resume-token ids in Redis with a TTL so tokens
// survive a server restart and can be revoked individually.
type RedisTokenStore struct {
	client *redis.Client
}

// NewRedisTokenStore wraps the given client, defaulting to the global Rdb.
func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	if client == nil {
		client = Rdb
	}
	return &RedisTokenStore{client: client}
}

func tokenKey(tokenID uuid.UUID) string {
	return "quarte_token:" + tokenID.String()
}

// Put stores tokenID -> "<sessionID>:<seatName>" with the given TTL.
func (s *RedisTokenStore) Put(ctx context.Context, tokenID, sessionID uuid.UUID, seatName string, ttl time.Duration) error {
	val := sessionID.String() + ":" + seatName
	if err := s.client.Set(ctx, tokenKey(tokenID), val, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// Get returns the session id and seat name bound to the token id.
func (s *RedisTokenStore) Get(ctx context.Context, tokenID uuid.UUID) (uuid.UUID, string, error) {
	val, err := s.client.Get(ctx, tokenKey(tokenID)).Result()
	if err == redis.Nil {
		return uuid.Nil, "", ErrTokenMissing
	}
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("failed to read token: %w", err)
	}
	sidStr, seat, ok := strings.Cut(val, ":")
	if !ok || seat == "" {
		return uuid.Nil, "", errors.New("malformed token record")
	}
	sid, err := uuid.Parse(sidStr)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("malformed token record: %w", err)
	}
	return sid, seat, nil
}

// Delete revokes the token id.
func (s *RedisTokenStore) Delete(ctx context.Context, tokenID uuid.UUID) error {
	if err := s.client.Del(ctx, tokenKey(tokenID)).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
