package core

import (
	"errors"
	"fmt"
)

var (
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenInvalidated = errors.New("token has been invalidated")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidChallenge = errors.New("invalid challenge")

	// ErrConfiguration is a fatal setup-time failure, e.g. a missing signing key
	ErrConfiguration = errors.New("configuration error")

	// ErrMalformedProof means the wallet or transport produced input that cannot be parsed
	ErrMalformedProof = errors.New("malformed proof")

	// ErrNotConnected is returned when an operation needs a wallet session
	ErrNotConnected = errors.New("wallet not connected")

	// ErrAlreadyConnected is returned by Connect while a wallet is connected
	ErrAlreadyConnected = errors.New("wallet already connected")

	// ErrUserRejected means the user declined the request in the wallet
	ErrUserRejected = errors.New("user rejected the request")

	// ErrBridge wraps transport and protocol failures, including timeouts
	ErrBridge = errors.New("bridge error")

	// ErrValidation means an outbound payload failed local checks
	ErrValidation = errors.New("validation error")

	ErrNoProof     = errors.New("no proof captured for this session")
	ErrNoChallenge = errors.New("no challenge issued")

	// ErrSuperseded is returned by an operation whose result was discarded
	// because a disconnect or a newer operation replaced it
	ErrSuperseded = errors.New("operation superseded")
)

// ValidationError describes a single rejected field of an outbound request
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrValidation) match
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid builds a ValidationError
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
