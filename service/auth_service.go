package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/layer-3/tonauth/core"
	"github.com/layer-3/tonauth/internal/ton"
	"github.com/layer-3/tonauth/ports"
)

// Config holds the tunables of the authentication service
type Config struct {
	AllowedDomains []string
	ChallengeTTL   time.Duration
	AccessTTL      time.Duration
	ProofSkew      time.Duration

	// AllowChallengeReuse lets one challenge back several successful checks.
	// Demos use it to re-run verification; production should leave it off.
	AllowChallengeReuse bool
}

// AuthService handles authentication business logic
type AuthService struct {
	tokenizer ports.Tokenizer
	store     ports.Store
	eventPub  ports.EventPublisher
	verifier  *ProofVerifier
	logger    *slog.Logger
	now       func() time.Time

	allowedDomains []string
	challengeTTL   time.Duration
	accessTTL      time.Duration
	allowReuse     bool
}

// Option configures an AuthService
type Option func(*AuthService)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *AuthService) { s.logger = logger }
}

// NewAuthService creates a new authentication service
func NewAuthService(
	tokenizer ports.Tokenizer,
	store ports.Store,
	eventPub ports.EventPublisher,
	cfg Config,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		tokenizer:      tokenizer,
		store:          store,
		eventPub:       eventPub,
		logger:         slog.Default(),
		now:            time.Now,
		allowedDomains: cfg.AllowedDomains,
		challengeTTL:   cfg.ChallengeTTL,
		accessTTL:      cfg.AccessTTL,
		allowReuse:     cfg.AllowChallengeReuse,
	}
	if s.challengeTTL <= 0 {
		s.challengeTTL = 15 * time.Minute
	}
	if s.accessTTL <= 0 {
		s.accessTTL = time.Hour
	}
	for _, opt := range opts {
		opt(s)
	}
	s.verifier = NewProofVerifier(tokenizer, cfg.ProofSkew, s.now)
	return s
}

// CreateChallenge generates a new TonProof challenge
func (s *AuthService) CreateChallenge(ctx context.Context) (core.IssuedChallenge, error) {
	// Generate random nonce
	nonceBytes := make([]byte, 32)
	if _, err := rand.Read(nonceBytes); err != nil {
		return core.IssuedChallenge{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := s.now()
	challenge := &core.Challenge{
		ID:        uuid.New().String(),
		Nonce:     hex.EncodeToString(nonceBytes),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.challengeTTL),
	}

	token, err := s.tokenizer.ChallengeToToken(challenge)
	if err != nil {
		return core.IssuedChallenge{}, fmt.Errorf("failed to create token: %w", err)
	}

	return core.IssuedChallenge{
		Token:     token,
		Hash:      PayloadHash(token),
		IssuedAt:  challenge.IssuedAt,
		ExpiresAt: challenge.ExpiresAt,
	}, nil
}

// CheckProof verifies a proof against its challenge token and, if every
// check passes, consumes the challenge and returns an access token.
func (s *AuthService) CheckProof(ctx context.Context, req core.ProofCheckRequest) (core.ProofCheck, error) {
	if len(s.allowedDomains) == 0 {
		return core.ProofCheck{}, fmt.Errorf("no allowed domains: %w", core.ErrConfiguration)
	}

	result, err := s.verifier.Verify(req.Proof, req.Account, s.expectedDomain(req.Proof.Domain.Value), req.PayloadToken)
	if errors.Is(err, core.ErrConfiguration) {
		s.logger.Error("cannot check proof", "err", err)
		return core.ProofCheck{}, err
	}
	if err != nil {
		s.logger.Warn("malformed proof", "address", req.Account.Address, "err", err)
		return core.ProofCheck{Result: result}, err
	}

	challenge, _ := s.tokenizer.TokenToChallenge(req.PayloadToken)
	if challenge != nil && !s.allowReuse {
		consumed, err := s.store.IsChallengeConsumed(ctx, challenge.ID)
		if err != nil {
			return core.ProofCheck{}, fmt.Errorf("failed to check challenge: %w", err)
		}
		if consumed {
			result.TokenValid = false
			result.Message = "challenge already used"
		}
	}

	if !result.Valid() {
		s.logger.Info("proof rejected", "address", req.Account.Address, "failed", result.Failed())
		return core.ProofCheck{Result: result}, nil
	}

	if !s.allowReuse {
		ttl := challenge.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			ttl = time.Minute
		}
		first, err := s.store.ConsumeChallenge(ctx, challenge.ID, ttl)
		if err != nil {
			return core.ProofCheck{}, fmt.Errorf("failed to consume challenge: %w", err)
		}
		if !first {
			result.TokenValid = false
			result.Message = "challenge already used"
			return core.ProofCheck{Result: result}, nil
		}
	}

	addr, _ := ton.ParseAddress(req.Account.Address)
	now := s.now()
	session := &core.AuthSession{
		ID:           uuid.New().String(),
		Address:      ton.RawAddress(addr),
		Network:      req.Account.Chain,
		IssuedAt:     now,
		AccessExpiry: now.Add(s.accessTTL),
	}

	accessToken, err := s.tokenizer.SessionToAccessToken(session)
	if err != nil {
		return core.ProofCheck{}, fmt.Errorf("failed to create access token: %w", err)
	}

	s.logger.Info("proof accepted", "address", session.Address, "session", session.ID)
	return core.ProofCheck{Result: result, Token: accessToken}, nil
}

// expectedDomain picks the allow-list entry the proof domain matches, or the
// first entry so that a foreign domain fails the domain check
func (s *AuthService) expectedDomain(value string) string {
	for _, pattern := range s.allowedDomains {
		if DomainMatches(value, pattern) {
			return pattern
		}
	}
	return s.allowedDomains[0]
}

// ValidateAccessToken parses an access token and checks it has not been revoked
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.AuthSession, error) {
	session, err := s.tokenizer.AccessTokenToSession(accessToken)
	if err != nil {
		if errors.Is(err, core.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, fmt.Errorf("invalid access token: %w", err)
	}

	if s.now().After(session.AccessExpiry) {
		return nil, core.ErrTokenExpired
	}

	invalidated, err := s.store.IsTokenInvalidated(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	if invalidated {
		return nil, core.ErrTokenInvalidated
	}

	return session, nil
}

// Logout revokes an access token for the rest of its lifetime
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	session, err := s.ValidateAccessToken(ctx, accessToken)
	if err != nil {
		return err
	}

	if err := s.store.InvalidateToken(ctx, session.ID, session.AccessExpiry.Sub(s.now())); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	// The token is already invalidated in the store; a lost event is not fatal
	if err := s.eventPub.PublishLogout(ctx, session.Address, session.ID); err != nil {
		s.logger.Warn("failed to publish logout event", "address", session.Address, "err", err)
	}
	return nil
}
