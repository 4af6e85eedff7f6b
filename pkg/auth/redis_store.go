package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StoreKey returns the Redis key holding the access token of clientID.
func StoreKey(clientID string) string {
	return "zoho:auth:access_token:" + clientID
}

// RedisStore shares access tokens through Redis. Entries expire together
// with the token.
type RedisStore struct {
	redis *redis.Client
	key   string
	now   func() time.Time
}

// NewRedisStore creates a store under key, usually StoreKey(clientID).
func NewRedisStore(redisClient *redis.Client, key string) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient, key: key, now: time.Now}
}

// Load returns the stored token.
func (s *RedisStore) Load(ctx context.Context) (Token, bool, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Token{}, false, nil
		}
		return Token{}, false, fmt.Errorf("redis get: %w", err)
	}

	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return Token{}, false, fmt.Errorf("decode stored token: %w", err)
	}
	return tok, true, nil
}

// Save stores tok for its remaining lifetime. Expired tokens are not stored.
func (s *RedisStore) Save(ctx context.Context, tok Token) error {
	ttl := tok.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := s.redis.Set(ctx, s.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
