package ports

import (
	"context"

	"github.com/layer-3/tonauth/core"
)

// ChallengeSource issues TonProof challenges
type ChallengeSource interface {
	CreateChallenge(ctx context.Context) (core.IssuedChallenge, error)
}

// ProofChecker verifies a proof and, when it is valid, mints an access token
type ProofChecker interface {
	CheckProof(ctx context.Context, req core.ProofCheckRequest) (core.ProofCheck, error)
}
