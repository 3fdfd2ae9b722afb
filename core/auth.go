package core

import "time"

// Challenge represents the contents of a TonProof challenge envelope
type Challenge struct {
	ID        string    // Unique identifier for the challenge
	Address   string    // Optional wallet address the challenge is bound to
	Nonce     string    // Random entropy, hex encoded
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge expires
}

// IssuedChallenge is what the issuer hands back to the client.
// Only Hash is ever sent to the wallet; Token stays with the client
// and is returned to the backend for verification.
type IssuedChallenge struct {
	Token     string    `json:"payloadToken"`
	Hash      string    `json:"payloadTokenHash"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthSession represents an authenticated wallet session on the backend
type AuthSession struct {
	ID           string    // Unique session identifier
	Address      string    // Wallet address in raw form
	Network      string    // Chain identifier, e.g. "-239"
	IssuedAt     time.Time // When the session was created
	AccessExpiry time.Time // When the access token expires
}
