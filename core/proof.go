package core

import "strings"

// Network identifiers used by TON Connect
const (
	NetworkMainnet = "-239"
	NetworkTestnet = "-3"
)

// Domain is the application domain claimed inside a proof
type Domain struct {
	LengthBytes uint32 `json:"lengthBytes"`
	Value       string `json:"value"`
}

// Proof is a wallet-signed attestation over a challenge hash
type Proof struct {
	Timestamp int64  `json:"timestamp"`
	Domain    Domain `json:"domain"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`            // base64, 64 bytes
	StateInit string `json:"state_init,omitempty"` // base64 BOC
}

// Account is the wallet account reported by the bridge
type Account struct {
	Address         string `json:"address"`
	Chain           string `json:"chain"`
	PublicKey       string `json:"publicKey"`                 // hex, 32 bytes
	WalletStateInit string `json:"walletStateInit,omitempty"` // base64 BOC
}

// VerificationResult reports every check made against a proof.
// The checks are kept separate so a failure can always be attributed.
type VerificationResult struct {
	TokenValid     bool   `json:"jwtValid"`
	PayloadMatch   bool   `json:"payloadMatch"`
	AddressMatch   bool   `json:"addressMatch"`
	PublicKeyMatch bool   `json:"publicKeyMatch"`
	DomainAllowed  bool   `json:"domainAllowed"`
	TimestampValid bool   `json:"timestampValid"`
	SignatureValid bool   `json:"signatureValid"`
	Message        string `json:"-"`
}

// Valid is the conjunction of all checks
func (r VerificationResult) Valid() bool {
	return r.TokenValid &&
		r.PayloadMatch &&
		r.AddressMatch &&
		r.PublicKeyMatch &&
		r.DomainAllowed &&
		r.TimestampValid &&
		r.SignatureValid
}

// Failed returns the names of the failing checks in a stable order
func (r VerificationResult) Failed() []string {
	var failed []string
	for _, c := range []struct {
		name string
		ok   bool
	}{
		{"token", r.TokenValid},
		{"payload", r.PayloadMatch},
		{"address", r.AddressMatch},
		{"public key", r.PublicKeyMatch},
		{"domain", r.DomainAllowed},
		{"timestamp", r.TimestampValid},
		{"signature", r.SignatureValid},
	} {
		if !c.ok {
			failed = append(failed, c.name)
		}
	}
	return failed
}

// Describe returns Message, or a summary of the failing checks when Message is empty
func (r VerificationResult) Describe() string {
	if r.Message != "" {
		return r.Message
	}
	failed := r.Failed()
	if len(failed) == 0 {
		return "proof is valid"
	}
	return strings.Join(failed, ", ") + " check failed"
}

// ProofCheckRequest is what a client submits to have a proof checked
type ProofCheckRequest struct {
	Account      Account `json:"account"`
	Proof        Proof   `json:"proof"`
	PayloadToken string  `json:"payloadToken"`
}

// StateInit returns the state init carried by the proof, falling back to the account's
func (r ProofCheckRequest) StateInit() string {
	if r.Proof.StateInit != "" {
		return r.Proof.StateInit
	}
	return r.Account.WalletStateInit
}

// ProofCheck is the outcome of a proof check. Token is only set when Result is valid.
type ProofCheck struct {
	Result VerificationResult
	Token  string
}
