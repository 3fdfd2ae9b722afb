package http

import (
	"time"

	"github.com/layer-3/tonauth/core"
	"github.com/layer-3/tonauth/service"
)

// CheckProofRequest is the body of POST /api/check_proof
type CheckProofRequest struct {
	Address      string     `json:"address" binding:"required"`
	Network      string     `json:"network"`
	PublicKey    string     `json:"public_key" binding:"required"`
	Proof        core.Proof `json:"proof"`
	PayloadToken string     `json:"payloadToken" binding:"required"`
}

// NewCheckProofRequest builds the wire request for a proof check
func NewCheckProofRequest(req core.ProofCheckRequest) CheckProofRequest {
	proof := req.Proof
	proof.StateInit = req.StateInit()
	return CheckProofRequest{
		Address:      req.Account.Address,
		Network:      req.Account.Chain,
		PublicKey:    req.Account.PublicKey,
		Proof:        proof,
		PayloadToken: req.PayloadToken,
	}
}

// ProofCheckRequest converts the wire request to the domain form
func (r CheckProofRequest) ProofCheckRequest() core.ProofCheckRequest {
	return core.ProofCheckRequest{
		Account: core.Account{
			Address:         r.Address,
			Chain:           r.Network,
			PublicKey:       r.PublicKey,
			WalletStateInit: r.Proof.StateInit,
		},
		Proof:        r.Proof,
		PayloadToken: r.PayloadToken,
	}
}

// CheckProofResponse is the body returned by POST /api/check_proof
type CheckProofResponse struct {
	Valid  bool                    `json:"valid"`
	Token  string                  `json:"token,omitempty"`
	Checks core.VerificationResult `json:"checks"`
	Error  string                  `json:"error,omitempty"`
}

// CheckSignDataRequest is the body of POST /api/check_sign_data
type CheckSignDataRequest struct {
	Address         string               `json:"address" binding:"required"`
	Network         string               `json:"network"`
	PublicKey       string               `json:"public_key" binding:"required"`
	Signature       string               `json:"signature" binding:"required"`
	Timestamp       int64                `json:"timestamp" binding:"required"`
	Domain          string               `json:"domain" binding:"required"`
	Payload         core.SignDataPayload `json:"payload"`
	WalletStateInit string               `json:"walletStateInit"`
}

// SignDataCheckRequest converts the wire request to the domain form
func (r CheckSignDataRequest) SignDataCheckRequest() service.SignDataCheckRequest {
	return service.SignDataCheckRequest{
		Address:         r.Address,
		Network:         r.Network,
		PublicKey:       r.PublicKey,
		Signature:       r.Signature,
		Timestamp:       r.Timestamp,
		Domain:          r.Domain,
		Payload:         r.Payload,
		WalletStateInit: r.WalletStateInit,
	}
}

// AccountInfoResponse is the body returned by GET /api/get_account_info
type AccountInfoResponse struct {
	Address   string    `json:"address"`
	Network   string    `json:"network"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}
