package ports

import (
	"context"
	"time"
)

// Store tracks revoked access tokens and consumed challenges
type Store interface {
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)

	// ConsumeChallenge atomically marks a challenge as spent.
	// It reports false if the challenge had already been consumed.
	ConsumeChallenge(ctx context.Context, challengeID string, expiry time.Duration) (bool, error)
	IsChallengeConsumed(ctx context.Context, challengeID string) (bool, error)
}

// KeyValue is a small durable record store, e.g. the persisted wallet info
type KeyValue interface {
	// Get returns the value and whether the key was present
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
