package ports

import (
	"context"

	"github.com/layer-3/tonauth/core"
)

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishLogout(ctx context.Context, address string, tokenID string) error
	PublishConnection(ctx context.Context, event core.ConnectionEvent) error
}
