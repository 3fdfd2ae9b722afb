package service

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/layer-3/tonauth/core"
	"github.com/layer-3/tonauth/internal/ton"
)

// SignDataCheckRequest is a sign-data response together with the account that produced it
type SignDataCheckRequest struct {
	Address         string
	Network         string
	PublicKey       string
	Signature       string
	Timestamp       int64
	Domain          string
	Payload         core.SignDataPayload
	WalletStateInit string
}

// SignDataDetails breaks a sign-data check into its parts
type SignDataDetails struct {
	AddressMatch   bool `json:"addressMatch"`
	PublicKeyMatch bool `json:"publicKeyMatch"`
	SignatureValid bool `json:"signatureValid"`
	DomainAllowed  bool `json:"domainAllowed"`
	TimestampValid bool `json:"timestampValid"`
}

// SignDataCheck is the outcome of a sign-data verification
type SignDataCheck struct {
	Valid   bool            `json:"valid"`
	Message string          `json:"message"`
	Details SignDataDetails `json:"details"`
}

// CheckSignData verifies the signature on a sign-data response
func (s *AuthService) CheckSignData(ctx context.Context, req SignDataCheckRequest) (SignDataCheck, error) {
	var check SignDataCheck

	addr, err := ton.ParseAddress(req.Address)
	if err != nil {
		return malformedSignData(check, "address: %v", err)
	}
	publicKey, err := decodePublicKey(req.PublicKey)
	if err != nil {
		return malformedSignData(check, "public key: %v", err)
	}
	signature, err := decodeSignature(req.Signature)
	if err != nil {
		return malformedSignData(check, "signature: %v", err)
	}
	digest, err := ton.SignDataDigest(addr, req.Domain, req.Timestamp, req.Payload)
	if err != nil {
		return malformedSignData(check, "payload: %v", err)
	}

	check.Details.AddressMatch = true
	check.Details.PublicKeyMatch = true
	if req.WalletStateInit != "" {
		si, err := ton.ParseStateInit(req.WalletStateInit)
		if err != nil {
			return malformedSignData(check, "%v", err)
		}
		check.Details.AddressMatch = si.MatchesAddress(addr)
		check.Details.PublicKeyMatch = si.HasPublicKey(publicKey)
	}

	check.Details.SignatureValid = ed25519.Verify(publicKey, digest, signature)
	check.Details.TimestampValid = s.verifier.timestampValid(req.Timestamp)
	for _, pattern := range s.allowedDomains {
		if DomainMatches(req.Domain, pattern) {
			check.Details.DomainAllowed = true
			break
		}
	}

	var failed []string
	for _, c := range []struct {
		name string
		ok   bool
	}{
		{"address", check.Details.AddressMatch},
		{"public key", check.Details.PublicKeyMatch},
		{"signature", check.Details.SignatureValid},
		{"domain", check.Details.DomainAllowed},
		{"timestamp", check.Details.TimestampValid},
	} {
		if !c.ok {
			failed = append(failed, c.name)
		}
	}

	check.Valid = len(failed) == 0
	if check.Valid {
		check.Message = "signature is valid"
	} else {
		check.Message = strings.Join(failed, ", ") + " check failed"
		s.logger.Info("sign-data rejected", "address", req.Address, "failed", failed)
	}
	return check, nil
}

func malformedSignData(check SignDataCheck, format string, args ...any) (SignDataCheck, error) {
	check.Message = fmt.Sprintf(format, args...)
	return check, fmt.Errorf("%s: %w", check.Message, core.ErrMalformedProof)
}
