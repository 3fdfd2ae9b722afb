package service

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/layer-3/tonauth/adapters/bridge/simwallet"
	"github.com/layer-3/tonauth/adapters/events"
	"github.com/layer-3/tonauth/adapters/store"
	"github.com/layer-3/tonauth/adapters/tokenizer"
	"github.com/layer-3/tonauth/ports"
)

const testDomain = "example.com"

var testNow = time.Unix(1_700_000_000, 0)

type fixture struct {
	service   *AuthService
	tokenizer ports.Tokenizer
	store     ports.Store
	clock     *time.Time
	walletKey ed25519.PrivateKey
}

func (f *fixture) now() time.Time { return *f.clock }

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	_, walletKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	clock := testNow
	f := &fixture{clock: &clock, walletKey: walletKey, store: store.NewMemoryStore()}
	f.tokenizer, err = tokenizer.NewJWTTokenizer(signKey, tokenizer.WithClock(f.now))
	require.NoError(t, err)

	if cfg.AllowedDomains == nil {
		cfg.AllowedDomains = []string{testDomain}
	}
	f.service = NewAuthService(f.tokenizer, f.store, events.NoopPublisher{}, cfg,
		WithClock(f.now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return f
}

// wallet returns a simulated wallet for the fixture key signing for domain,
// with its clock offset from the service clock
func (f *fixture) wallet(t *testing.T, domain string, offset time.Duration) *simwallet.Wallet {
	t.Helper()
	w, err := simwallet.New(domain,
		simwallet.WithKey(f.walletKey),
		simwallet.WithClock(func() time.Time { return f.now().Add(offset) }),
	)
	require.NoError(t, err)
	return w
}
