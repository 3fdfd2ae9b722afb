package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/layer-3/tonauth/core"
)

// NATSPublisher publishes JSON-encoded events to NATS subjects named after the topics
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the NATS server at url
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

// PublishLogout publishes a logout event on the logout subject
func (p *NATSPublisher) PublishLogout(ctx context.Context, address string, tokenID string) error {
	return p.publish(TopicLogout, LogoutEvent{Address: address, TokenID: tokenID})
}

// PublishConnection publishes a wallet connection event
func (p *NATSPublisher) PublishConnection(ctx context.Context, event core.ConnectionEvent) error {
	return p.publish(TopicConnection, event)
}

func (p *NATSPublisher) publish(subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	return p.conn.Publish(subject, data)
}

// Close flushes buffered events and closes the NATS connection
func (p *NATSPublisher) Close() error {
	defer p.conn.Close()
	if err := p.conn.Flush(); err != nil {
		return fmt.Errorf("flushing NATS events: %w", err)
	}
	return nil
}

// NoopPublisher drops every event (used when no broker is configured)
type NoopPublisher struct{}

// PublishLogout discards the event
func (NoopPublisher) PublishLogout(ctx context.Context, address string, tokenID string) error {
	return nil
}

// PublishConnection discards the event
func (NoopPublisher) PublishConnection(ctx context.Context, event core.ConnectionEvent) error {
	return nil
}
