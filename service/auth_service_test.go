package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/tonauth/adapters/events"
	"github.com/layer-3/tonauth/core"
	"github.com/layer-3/tonauth/ports"
)

func checkRequest(t *testing.T, f *fixture) (core.ProofCheckRequest, core.IssuedChallenge) {
	t.Helper()
	issued, err := f.service.CreateChallenge(t.Context())
	require.NoError(t, err)
	w := f.wallet(t, testDomain, 0)
	return core.ProofCheckRequest{
		Account:      w.Account(),
		Proof:        w.SignProof(issued.Hash),
		PayloadToken: issued.Token,
	}, issued
}

func TestCheckProofIssuesAccessToken(t *testing.T) {
	f := newFixture(t, Config{})
	req, _ := checkRequest(t, f)

	check, err := f.service.CheckProof(t.Context(), req)
	require.NoError(t, err)
	require.True(t, check.Result.Valid(), check.Result.Describe())
	require.NotEmpty(t, check.Token)

	session, err := f.service.ValidateAccessToken(t.Context(), check.Token)
	require.NoError(t, err)
	assert.Equal(t, req.Account.Address, session.Address)
	assert.Equal(t, core.NetworkMainnet, session.Network)
	assert.Equal(t, testNow.Add(time.Hour), session.AccessExpiry)
}

func TestCheckProofChallengeIsSingleUse(t *testing.T) {
	f := newFixture(t, Config{})
	req, _ := checkRequest(t, f)

	first, err := f.service.CheckProof(t.Context(), req)
	require.NoError(t, err)
	require.True(t, first.Result.Valid())

	second, err := f.service.CheckProof(t.Context(), req)
	require.NoError(t, err)
	assert.False(t, second.Result.Valid())
	assert.False(t, second.Result.TokenValid)
	assert.Equal(t, "challenge already used", second.Result.Message)
	assert.Empty(t, second.Token)
}

func TestCheckProofChallengeReuseAllowed(t *testing.T) {
	f := newFixture(t, Config{AllowChallengeReuse: true})
	req, _ := checkRequest(t, f)

	for range 2 {
		check, err := f.service.CheckProof(t.Context(), req)
		require.NoError(t, err)
		assert.True(t, check.Result.Valid())
		assert.NotEmpty(t, check.Token)
	}
}

func TestCheckProofRejectedIssuesNoToken(t *testing.T) {
	f := newFixture(t, Config{})
	req, _ := checkRequest(t, f)
	req.Proof.Domain.LengthBytes = 0

	check, err := f.service.CheckProof(t.Context(), req)
	require.NoError(t, err)
	assert.False(t, check.Result.DomainAllowed)
	assert.Empty(t, check.Token)

	// a rejected attempt does not spend the challenge
	req.Proof.Domain.LengthBytes = uint32(len(testDomain))
	check, err = f.service.CheckProof(t.Context(), req)
	require.NoError(t, err)
	assert.True(t, check.Result.Valid())
}

func TestCheckProofExpiredChallenge(t *testing.T) {
	f := newFixture(t, Config{ChallengeTTL: time.Minute, ProofSkew: time.Hour})
	req, _ := checkRequest(t, f)

	*f.clock = testNow.Add(2 * time.Minute)

	check, err := f.service.CheckProof(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"token"}, check.Result.Failed())
	assert.Empty(t, check.Token)
}

func TestCheckProofWildcardDomain(t *testing.T) {
	f := newFixture(t, Config{AllowedDomains: []string{"other.org", "*.example.com"}})
	issued, err := f.service.CreateChallenge(t.Context())
	require.NoError(t, err)
	w := f.wallet(t, "app.example.com", 0)

	check, err := f.service.CheckProof(t.Context(), core.ProofCheckRequest{
		Account:      w.Account(),
		Proof:        w.SignProof(issued.Hash),
		PayloadToken: issued.Token,
	})
	require.NoError(t, err)
	assert.True(t, check.Result.Valid())
}

func TestCheckProofRequiresAllowedDomains(t *testing.T) {
	f := newFixture(t, Config{AllowedDomains: []string{}})
	req, _ := checkRequest(t, f)

	_, err := f.service.CheckProof(t.Context(), req)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestCheckProofMalformed(t *testing.T) {
	f := newFixture(t, Config{})
	req, _ := checkRequest(t, f)
	req.Account.PublicKey = "xyz"

	check, err := f.service.CheckProof(t.Context(), req)
	assert.ErrorIs(t, err, core.ErrMalformedProof)
	assert.False(t, check.Result.Valid())
	assert.Empty(t, check.Token)
}

// unconfiguredTokenizer signs nothing and parses nothing, like a deployment
// whose signing key went missing
type unconfiguredTokenizer struct {
	ports.Tokenizer
}

func (unconfiguredTokenizer) ChallengeToToken(*core.Challenge) (string, error) {
	return "", fmt.Errorf("no signing key: %w", core.ErrConfiguration)
}

func (unconfiguredTokenizer) TokenToChallenge(string) (*core.Challenge, error) {
	return nil, fmt.Errorf("no signing key: %w", core.ErrConfiguration)
}

func TestCreateChallengeWithoutKey(t *testing.T) {
	f := newFixture(t, Config{})
	s := NewAuthService(unconfiguredTokenizer{f.tokenizer}, f.store, events.NoopPublisher{}, Config{AllowedDomains: []string{testDomain}})

	_, err := s.CreateChallenge(t.Context())
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestCheckProofWithoutKeyIsConfigurationError(t *testing.T) {
	f := newFixture(t, Config{})
	req, _ := checkRequest(t, f)
	s := NewAuthService(unconfiguredTokenizer{f.tokenizer}, f.store, events.NoopPublisher{}, Config{AllowedDomains: []string{testDomain}},
		WithClock(f.now),
	)

	check, err := s.CheckProof(t.Context(), req)
	assert.ErrorIs(t, err, core.ErrConfiguration)
	assert.NotErrorIs(t, err, core.ErrMalformedProof)
	assert.Equal(t, core.ProofCheck{}, check)
}

func TestValidateAccessTokenExpired(t *testing.T) {
	f := newFixture(t, Config{AccessTTL: time.Minute})
	req, _ := checkRequest(t, f)
	check, err := f.service.CheckProof(t.Context(), req)
	require.NoError(t, err)

	*f.clock = testNow.Add(2 * time.Minute)

	_, err = f.service.ValidateAccessToken(t.Context(), check.Token)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestValidateAccessTokenRejectsChallengeToken(t *testing.T) {
	f := newFixture(t, Config{})
	issued, err := f.service.CreateChallenge(t.Context())
	require.NoError(t, err)

	_, err = f.service.ValidateAccessToken(t.Context(), issued.Token)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newFixture(t, Config{})

	pubSub := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })
	f.service.eventPub = events.NewWatermillPublisher(pubSub)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	messages, err := pubSub.Subscribe(ctx, events.TopicLogout)
	require.NoError(t, err)

	req, _ := checkRequest(t, f)
	check, err := f.service.CheckProof(t.Context(), req)
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(t.Context(), check.Token))

	_, err = f.service.ValidateAccessToken(t.Context(), check.Token)
	assert.ErrorIs(t, err, core.ErrTokenInvalidated)

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Contains(t, string(msg.Payload), req.Account.Address)
	case <-ctx.Done():
		t.Fatal("logout event not published")
	}

	// a second logout with the same token fails
	assert.ErrorIs(t, f.service.Logout(t.Context(), check.Token), core.ErrTokenInvalidated)
}
