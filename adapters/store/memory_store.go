package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/tonauth/ports"
)

// MemoryStore is an in-memory implementation of the Store interface.
// Entries expire lazily on read.
type MemoryStore struct {
	invalidatedTokens  map[string]time.Time
	consumedChallenges map[string]time.Time
	now                func() time.Time
	mu                 sync.Mutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() ports.Store {
	return newMemoryStore(time.Now)
}

func newMemoryStore(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		invalidatedTokens:  make(map[string]time.Time),
		consumedChallenges: make(map[string]time.Time),
		now:                now,
	}
}

// InvalidateToken marks a token as invalidated
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.invalidatedTokens[tokenID] = s.now().Add(expiry)
	return nil
}

// IsTokenInvalidated checks if a token is invalidated
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.live(s.invalidatedTokens, tokenID), nil
}

// ConsumeChallenge marks a challenge as spent, reporting false if it already was
func (s *MemoryStore) ConsumeChallenge(ctx context.Context, challengeID string, expiry time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live(s.consumedChallenges, challengeID) {
		return false, nil
	}
	s.consumedChallenges[challengeID] = s.now().Add(expiry)
	return true, nil
}

// IsChallengeConsumed checks if a challenge has been spent
func (s *MemoryStore) IsChallengeConsumed(ctx context.Context, challengeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.live(s.consumedChallenges, challengeID), nil
}

// live reports whether id is present and unexpired, dropping it otherwise.
// Callers hold s.mu.
func (s *MemoryStore) live(m map[string]time.Time, id string) bool {
	expiryTime, exists := m[id]
	if !exists {
		return false
	}
	if !s.now().Before(expiryTime) {
		delete(m, id)
		return false
	}
	return true
}
