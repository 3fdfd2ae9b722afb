package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/tonauth/core"
	"github.com/layer-3/tonauth/ports"
)

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func newTokenizer(t *testing.T, opts ...Option) ports.Tokenizer {
	t.Helper()
	tok, err := NewJWTTokenizer(newKey(t), opts...)
	require.NoError(t, err)
	return tok
}

func TestChallengeRoundTrip(t *testing.T) {
	tok := newTokenizer(t)
	now := time.Now().Truncate(time.Second)

	in := &core.Challenge{
		ID:        "c-1",
		Nonce:     "deadbeef",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Minute),
	}
	token, err := tok.ChallengeToToken(in)
	require.NoError(t, err)

	out, err := tok.TokenToChallenge(token)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Nonce, out.Nonce)
	assert.True(t, in.ExpiresAt.Equal(out.ExpiresAt))
}

func TestChallengeExpired(t *testing.T) {
	now := time.Now()
	tok := newTokenizer(t, WithClock(func() time.Time { return now.Add(time.Hour) }))

	token, err := tok.ChallengeToToken(&core.Challenge{
		ID: "c-1", Nonce: "n", IssuedAt: now, ExpiresAt: now.Add(time.Minute),
	})
	require.NoError(t, err)

	_, err = tok.TokenToChallenge(token)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestForeignKeyRejected(t *testing.T) {
	now := time.Now()
	issuer := newTokenizer(t)
	verifier := newTokenizer(t)

	token, err := issuer.ChallengeToToken(&core.Challenge{
		ID: "c-1", Nonce: "n", IssuedAt: now, ExpiresAt: now.Add(time.Minute),
	})
	require.NoError(t, err)

	_, err = verifier.TokenToChallenge(token)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestAudienceSeparation(t *testing.T) {
	tok := newTokenizer(t)
	now := time.Now()

	access, err := tok.SessionToAccessToken(&core.AuthSession{
		ID: "s-1", Address: "0:00", Network: core.NetworkMainnet, IssuedAt: now, AccessExpiry: now.Add(time.Hour),
	})
	require.NoError(t, err)

	_, err = tok.TokenToChallenge(access)
	assert.ErrorIs(t, err, core.ErrInvalidToken)

	session, err := tok.AccessTokenToSession(access)
	require.NoError(t, err)
	assert.Equal(t, "s-1", session.ID)
	assert.Equal(t, core.NetworkMainnet, session.Network)
}

func TestMissingKey(t *testing.T) {
	tok, err := NewJWTTokenizer(nil)
	assert.ErrorIs(t, err, core.ErrConfiguration)
	assert.Nil(t, tok)
}
