package ports

import "github.com/layer-3/tonauth/core"

// Tokenizer converts between domain objects and signed envelopes
type Tokenizer interface {
	// Challenge token operations
	ChallengeToToken(challenge *core.Challenge) (string, error)
	TokenToChallenge(token string) (*core.Challenge, error)

	// Access token operations
	SessionToAccessToken(session *core.AuthSession) (string, error)
	AccessTokenToSession(token string) (*core.AuthSession, error)
}
