package tokenizer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/layer-3/tonauth/core"
	"github.com/layer-3/tonauth/ports"
)

const AudienceChallenge = "tonauth:challenge"
const AudienceAccess = "tonauth:access"

// JWTTokenizer implements the Tokenizer interface using ES256 JWTs
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	now     func() time.Time
}

// Option configures a JWTTokenizer
type Option func(*JWTTokenizer)

// WithClock overrides the time source used to validate expiry
func WithClock(now func() time.Time) Option {
	return func(j *JWTTokenizer) { j.now = now }
}

// NewJWTTokenizer creates a new JWT tokenizer. A missing key is a
// configuration error.
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, opts ...Option) (ports.Tokenizer, error) {
	if signKey == nil {
		return nil, fmt.Errorf("no signing key: %w", core.ErrConfiguration)
	}
	j := &JWTTokenizer{signKey: signKey, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// ChallengeToToken converts a Challenge to a JWT token
func (j *JWTTokenizer) ChallengeToToken(challenge *core.Challenge) (string, error) {
	claims := ChallengeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   challenge.Address,
			ID:        challenge.ID,
			ExpiresAt: jwt.NewNumericDate(challenge.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(challenge.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceChallenge},
		},
		Nonce: challenge.Nonce,
	}
	return j.sign(claims)
}

// TokenToChallenge converts a JWT token to a Challenge
func (j *JWTTokenizer) TokenToChallenge(tokenStr string) (*core.Challenge, error) {
	claims := &ChallengeClaims{}
	if err := j.parse(tokenStr, claims, AudienceChallenge); err != nil {
		return nil, err
	}
	if claims.Nonce == "" {
		return nil, fmt.Errorf("challenge token has no nonce: %w", core.ErrInvalidToken)
	}

	return &core.Challenge{
		ID:        claims.ID,
		Address:   claims.Subject,
		Nonce:     claims.Nonce,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// SessionToAccessToken converts an AuthSession to an access JWT token
func (j *JWTTokenizer) SessionToAccessToken(session *core.AuthSession) (string, error) {
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.Address,
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.AccessExpiry),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceAccess},
		},
		Network: session.Network,
	}
	return j.sign(claims)
}

// AccessTokenToSession parses an access token and returns the associated session
func (j *JWTTokenizer) AccessTokenToSession(tokenStr string) (*core.AuthSession, error) {
	claims := &AccessClaims{}
	if err := j.parse(tokenStr, claims, AudienceAccess); err != nil {
		return nil, err
	}

	return &core.AuthSession{
		ID:           claims.ID,
		Address:      claims.Subject,
		Network:      claims.Network,
		IssuedAt:     claims.IssuedAt.Time,
		AccessExpiry: claims.ExpiresAt.Time,
	}, nil
}

func (j *JWTTokenizer) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signedToken, nil
}

func (j *JWTTokenizer) parse(tokenStr string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	},
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return core.ErrTokenExpired
		}
		return fmt.Errorf("failed to parse token: %v: %w", err, core.ErrInvalidToken)
	}

	if !token.Valid {
		return core.ErrInvalidToken
	}
	return nil
}
