package http

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/tonauth/adapters/bridge/simwallet"
	"github.com/layer-3/tonauth/adapters/events"
	"github.com/layer-3/tonauth/adapters/store"
	"github.com/layer-3/tonauth/adapters/tokenizer"
	"github.com/layer-3/tonauth/core"
	"github.com/layer-3/tonauth/service"
)

const testDomain = "example.com"

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tok, err := tokenizer.NewJWTTokenizer(key)
	require.NoError(t, err)
	authService := service.NewAuthService(
		tok,
		store.NewMemoryStore(),
		events.NoopPublisher{},
		service.Config{AllowedDomains: []string{testDomain}},
		service.WithLogger(logger),
	)
	return SetupRouter(authService, logger)
}

func do(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func issue(t *testing.T, router *gin.Engine) core.IssuedChallenge {
	t.Helper()
	w := do(t, router, http.MethodPost, "/api/generate_payload", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	return decode[core.IssuedChallenge](t, w)
}

func proofRequest(t *testing.T, router *gin.Engine, domain string) CheckProofRequest {
	t.Helper()
	issued := issue(t, router)
	wallet, err := simwallet.New(domain)
	require.NoError(t, err)
	return NewCheckProofRequest(core.ProofCheckRequest{
		Account:      wallet.Account(),
		Proof:        wallet.SignProof(issued.Hash),
		PayloadToken: issued.Token,
	})
}

func TestHealth(t *testing.T) {
	w := do(t, newTestRouter(t), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGeneratePayload(t *testing.T) {
	issued := issue(t, newTestRouter(t))
	assert.NotEmpty(t, issued.Token)
	assert.Equal(t, service.PayloadHash(issued.Token), issued.Hash)
	assert.True(t, issued.ExpiresAt.After(issued.IssuedAt))
}

func TestProofLoginFlow(t *testing.T) {
	router := newTestRouter(t)
	req := proofRequest(t, router, testDomain)

	w := do(t, router, http.MethodPost, "/api/check_proof", "", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[CheckProofResponse](t, w)
	assert.True(t, resp.Valid)
	assert.True(t, resp.Checks.Valid())
	assert.Empty(t, resp.Error)
	require.NotEmpty(t, resp.Token)

	w = do(t, router, http.MethodGet, "/api/get_account_info", resp.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[AccountInfoResponse](t, w)
	assert.Equal(t, req.Address, info.Address)
	assert.Equal(t, core.NetworkMainnet, info.Network)

	w = do(t, router, http.MethodPost, "/api/logout", resp.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/api/get_account_info", resp.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Token revoked")
}

func TestCheckProofChecksReported(t *testing.T) {
	router := newTestRouter(t)
	req := proofRequest(t, router, "evil.example.org")

	w := do(t, router, http.MethodPost, "/api/check_proof", "", req)
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, false, raw["valid"])
	assert.NotContains(t, raw, "token")
	assert.Equal(t, map[string]any{
		"jwtValid":       true,
		"payloadMatch":   true,
		"addressMatch":   true,
		"publicKeyMatch": true,
		"domainAllowed":  false,
		"timestampValid": true,
		"signatureValid": true,
	}, raw["checks"])
	assert.Equal(t, "domain check failed", raw["error"])
}

func TestCheckProofMalformed(t *testing.T) {
	router := newTestRouter(t)
	req := proofRequest(t, router, testDomain)
	req.PublicKey = "zz"

	w := do(t, router, http.MethodPost, "/api/check_proof", "", req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[CheckProofResponse](t, w)
	assert.False(t, resp.Valid)
	assert.NotEmpty(t, resp.Error)
}

func TestCheckProofInvalidBody(t *testing.T) {
	w := do(t, newTestRouter(t), http.MethodPost, "/api/check_proof", "", map[string]string{"address": "0:00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckSignData(t *testing.T) {
	router := newTestRouter(t)
	wallet, err := simwallet.New(testDomain)
	require.NoError(t, err)
	_, err = wallet.Connect(t.Context(), core.ConnectRequest{})
	require.NoError(t, err)

	res, err := wallet.SignData(t.Context(), core.SignDataPayload{Type: core.SignDataText, Text: "hello"})
	require.NoError(t, err)
	account := wallet.Account()
	req := CheckSignDataRequest{
		Address:         res.Address,
		Network:         account.Chain,
		PublicKey:       account.PublicKey,
		Signature:       res.Signature,
		Timestamp:       res.Timestamp,
		Domain:          res.Domain,
		Payload:         res.Payload,
		WalletStateInit: account.WalletStateInit,
	}

	w := do(t, router, http.MethodPost, "/api/check_sign_data", "", req)
	require.Equal(t, http.StatusOK, w.Code)
	check := decode[service.SignDataCheck](t, w)
	assert.True(t, check.Valid, check.Message)

	req.Payload.Text = "tampered"
	w = do(t, router, http.MethodPost, "/api/check_sign_data", "", req)
	require.Equal(t, http.StatusOK, w.Code)
	check = decode[service.SignDataCheck](t, w)
	assert.False(t, check.Valid)
	assert.False(t, check.Details.SignatureValid)

	req.Signature = "AAAA"
	w = do(t, router, http.MethodPost, "/api/check_sign_data", "", req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProtectedRoutesNeedBearer(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodGet, "/api/get_account_info", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodPost, "/api/logout", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid token")
}
