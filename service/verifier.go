package service

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/tonauth/core"
	"github.com/layer-3/tonauth/internal/ton"
	"github.com/layer-3/tonauth/ports"
)

// DefaultProofSkew is the allowed distance between a proof timestamp and now
const DefaultProofSkew = 15 * time.Minute

// ProofVerifier checks TonProof attestations. It holds no state between
// calls: the same inputs at the same instant always give the same result.
type ProofVerifier struct {
	tokenizer ports.Tokenizer
	skew      time.Duration
	now       func() time.Time
}

// NewProofVerifier creates a verifier that accepts proofs within skew of now
func NewProofVerifier(tokenizer ports.Tokenizer, skew time.Duration, now func() time.Time) *ProofVerifier {
	if skew <= 0 {
		skew = DefaultProofSkew
	}
	if now == nil {
		now = time.Now
	}
	return &ProofVerifier{tokenizer: tokenizer, skew: skew, now: now}
}

// PayloadHash is the challenge hash handed to the wallet for a token
func PayloadHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Verify runs every check against proof. Failed checks are reported in the
// result. An error wrapping core.ErrMalformedProof means the input cannot be
// parsed; core.ErrConfiguration means the verifier itself cannot check tokens.
func (v *ProofVerifier) Verify(proof core.Proof, account core.Account, expectedDomain string, token string) (core.VerificationResult, error) {
	var result core.VerificationResult

	// Token integrity and payload binding
	challenge, err := v.tokenizer.TokenToChallenge(token)
	if errors.Is(err, core.ErrConfiguration) {
		return core.VerificationResult{}, err
	}
	result.TokenValid = err == nil
	result.PayloadMatch = token != "" && PayloadHash(token) == proof.Payload

	result.TimestampValid = v.timestampValid(proof.Timestamp)
	result.DomainAllowed = DomainMatches(proof.Domain.Value, expectedDomain) &&
		proof.Domain.LengthBytes == uint32(len(proof.Domain.Value))

	addr, err := ton.ParseAddress(account.Address)
	if err != nil {
		return malformed(result, "address: %v", err)
	}
	publicKey, err := decodePublicKey(account.PublicKey)
	if err != nil {
		return malformed(result, "public key: %v", err)
	}
	signature, err := decodeSignature(proof.Signature)
	if err != nil {
		return malformed(result, "signature: %v", err)
	}

	stateInitB64 := proof.StateInit
	if stateInitB64 == "" {
		stateInitB64 = account.WalletStateInit
	}
	var stateInit *ton.StateInit
	if stateInitB64 != "" {
		if stateInit, err = ton.ParseStateInit(stateInitB64); err != nil {
			return malformed(result, "%v", err)
		}
	}

	// Address: bound challenge subject and state init derivation
	result.AddressMatch = true
	if challenge != nil && challenge.Address != "" {
		bound, err := ton.ParseAddress(challenge.Address)
		result.AddressMatch = err == nil && ton.SameAddress(bound, addr)
	}
	if stateInit != nil && !stateInit.MatchesAddress(addr) {
		result.AddressMatch = false
	}

	// Public key: derived from state init when present, otherwise the
	// bridge-provided mapping is trusted
	result.PublicKeyMatch = stateInit == nil || stateInit.HasPublicKey(publicKey)

	digest := ton.ProofDigest(addr, proof.Domain.Value, proof.Timestamp, proof.Payload)
	result.SignatureValid = ed25519.Verify(publicKey, digest, signature)

	if !result.Valid() {
		result.Message = result.Describe()
	}
	return result, nil
}

func (v *ProofVerifier) timestampValid(ts int64) bool {
	diff := v.now().Unix() - ts
	if diff < 0 {
		diff = -diff
	}
	return diff <= int64(v.skew/time.Second)
}

// DomainMatches compares a proof domain with an allow-list pattern.
// "*.example.com" matches any subdomain of example.com, but not example.com itself.
func DomainMatches(value, pattern string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if value == "" || pattern == "" {
		return false
	}
	if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
		return strings.HasSuffix(value, "."+suffix)
	}
	return value == pattern
}

func decodePublicKey(s string) (ed25519.PublicKey, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("not hex")
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("want %d bytes, got %d", ed25519.PublicKeySize, len(b))
	}
	return ed25519.PublicKey(b), nil
}

func decodeSignature(s string) ([]byte, error) {
	b, err := ton.DecodeBase64(s)
	if err != nil {
		return nil, err
	}
	if len(b) != ed25519.SignatureSize {
		return nil, fmt.Errorf("want %d bytes, got %d", ed25519.SignatureSize, len(b))
	}
	return b, nil
}

// malformed finalises a result whose remaining checks could not be computed
func malformed(result core.VerificationResult, format string, args ...any) (core.VerificationResult, error) {
	result.AddressMatch = false
	result.PublicKeyMatch = false
	result.SignatureValid = false
	result.Message = fmt.Sprintf(format, args...)
	return result, fmt.Errorf("%s: %w", result.Message, core.ErrMalformedProof)
}
