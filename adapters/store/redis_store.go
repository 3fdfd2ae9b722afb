package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/layer-3/tonauth/ports"
)

// RedisStore is a Redis implementation of the Store interface
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) ports.Store {
	return &RedisStore{
		client: client,
		prefix: "tonauth:",
	}
}

// InvalidateToken marks a token as invalidated in Redis
func (s *RedisStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	key := s.prefix + "invalidated:" + tokenID

	if err := s.client.Set(ctx, key, "1", expiry).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}
	return nil
}

// IsTokenInvalidated checks if a token is invalidated in Redis
func (s *RedisStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	return s.exists(ctx, s.prefix+"invalidated:"+tokenID)
}

// ConsumeChallenge marks a challenge as spent using SETNX so that two
// concurrent checks of the same proof cannot both succeed
func (s *RedisStore) ConsumeChallenge(ctx context.Context, challengeID string, expiry time.Duration) (bool, error) {
	key := s.prefix + "consumed:" + challengeID

	ok, err := s.client.SetNX(ctx, key, "1", expiry).Result()
	if err != nil {
		return false, fmt.Errorf("failed to consume challenge: %w", err)
	}
	return ok, nil
}

// IsChallengeConsumed checks if a challenge has been spent
func (s *RedisStore) IsChallengeConsumed(ctx context.Context, challengeID string) (bool, error) {
	return s.exists(ctx, s.prefix+"consumed:"+challengeID)
}

func (s *RedisStore) exists(ctx context.Context, key string) (bool, error) {
	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", key, err)
	}
	return val > 0, nil
}
