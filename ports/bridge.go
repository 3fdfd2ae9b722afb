package ports

import (
	"context"

	"github.com/layer-3/tonauth/core"
)

// Bridge is the wallet transport. Implementations map a user decline to
// core.ErrUserRejected; any other failure is treated as a bridge error.
type Bridge interface {
	// Connect opens a connection. A nil wallet with a nil error means the
	// user closed the wallet picker without connecting.
	Connect(ctx context.Context, req core.ConnectRequest) (*core.Wallet, error)
	RestoreConnection(ctx context.Context) error
	Disconnect(ctx context.Context) error

	SendTransaction(ctx context.Context, tx core.Transaction) (core.TransactionResult, error)
	SignData(ctx context.Context, payload core.SignDataPayload) (core.SignDataResult, error)

	// OnStatusChange registers callbacks for wallet changes pushed by the bridge
	OnStatusChange(onWallet func(*core.Wallet), onError func(error)) (unsubscribe func())
}

// ActionSink receives UI side effects for dispatched requests
type ActionSink interface {
	SetAction(action core.Action)
	ClearAction()
}
