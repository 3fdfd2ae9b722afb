package simwallet

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/tonauth/core"
	"github.com/layer-3/tonauth/internal/ton"
)

func TestAccountDerivedFromStateInit(t *testing.T) {
	w, err := New("example.com")
	require.NoError(t, err)
	account := w.Account()

	addr, err := ton.ParseAddress(account.Address)
	require.NoError(t, err)
	si, err := ton.ParseStateInit(account.WalletStateInit)
	require.NoError(t, err)
	assert.True(t, si.MatchesAddress(addr))

	pub, err := hex.DecodeString(account.PublicKey)
	require.NoError(t, err)
	assert.True(t, si.HasPublicKey(ed25519.PublicKey(pub)))
	assert.Equal(t, core.NetworkMainnet, account.Chain)
}

func TestSignProofVerifies(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	w, err := New("example.com", WithClock(func() time.Time { return now }), WithNetwork(core.NetworkTestnet))
	require.NoError(t, err)

	proof := w.SignProof("abc")
	assert.Equal(t, now.Unix(), proof.Timestamp)
	assert.Equal(t, core.Domain{LengthBytes: 11, Value: "example.com"}, proof.Domain)

	addr, err := ton.ParseAddress(w.Account().Address)
	require.NoError(t, err)
	sig, err := base64.StdEncoding.DecodeString(proof.Signature)
	require.NoError(t, err)
	pub := w.key.Public().(ed25519.PublicKey)
	assert.True(t, ed25519.Verify(pub, ton.ProofDigest(addr, "example.com", now.Unix(), "abc"), sig))
	assert.Equal(t, core.NetworkTestnet, w.Account().Chain)
}

func TestRequestsNeedConnection(t *testing.T) {
	w, err := New("example.com")
	require.NoError(t, err)

	_, err = w.SignData(t.Context(), core.SignDataPayload{Type: core.SignDataText, Text: "x"})
	assert.ErrorIs(t, err, core.ErrBridge)

	wallet, err := w.Connect(t.Context(), core.ConnectRequest{})
	require.NoError(t, err)
	assert.Nil(t, wallet.Proof)

	_, err = w.SignData(t.Context(), core.SignDataPayload{Type: core.SignDataText, Text: "x"})
	assert.NoError(t, err)

	_, err = w.SendTransaction(t.Context(), core.Transaction{ValidUntil: time.Now().Add(-time.Minute).Unix()})
	assert.ErrorIs(t, err, core.ErrBridge)

	w.RejectNext()
	_, err = w.SendTransaction(t.Context(), core.Transaction{ValidUntil: time.Now().Add(time.Minute).Unix()})
	assert.ErrorIs(t, err, core.ErrUserRejected)
}

func TestRestoreAndDrop(t *testing.T) {
	w, err := New("example.com")
	require.NoError(t, err)

	var seen []*core.Wallet
	unsubscribe := w.OnStatusChange(func(wallet *core.Wallet) { seen = append(seen, wallet) }, nil)

	// nothing remembered yet
	require.NoError(t, w.RestoreConnection(t.Context()))
	assert.Empty(t, seen)

	_, err = w.Connect(t.Context(), core.ConnectRequest{ProofPayload: "p"})
	require.NoError(t, err)
	require.NoError(t, w.RestoreConnection(t.Context()))
	require.Len(t, seen, 1)
	assert.Equal(t, w.Account().Address, seen[0].Account.Address)

	w.Drop()
	require.Len(t, seen, 2)
	assert.Nil(t, seen[1])

	unsubscribe()
	w.Drop()
	assert.Len(t, seen, 2)
}
