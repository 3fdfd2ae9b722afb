package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/tonauth/config"
	"github.com/layer-3/tonauth/core"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestSigningKeyRequired(t *testing.T) {
	key, err := signingKey(&config.Config{}, false, quiet)
	assert.ErrorIs(t, err, core.ErrConfiguration)
	assert.Nil(t, key)
}

func TestSigningKeyDevMode(t *testing.T) {
	key, err := signingKey(&config.Config{}, true, quiet)
	require.NoError(t, err)
	assert.Equal(t, elliptic.P256(), key.Curve)
}

func TestSigningKeyFromFile(t *testing.T) {
	want, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(want)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "key.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), 0o600))

	// a configured key wins over dev mode
	got, err := signingKey(&config.Config{SigningKeyPath: path}, true, quiet)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
}
