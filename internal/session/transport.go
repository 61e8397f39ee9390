package session

import (
	"context"

	"github.com/hellodits/dee-POS-sub002/internal/core/domain"
)

// Transport is one established connection to the gateway.
type Transport interface {
	Send(ctx context.Context, msg domain.ControlMessage) error
	Receive(ctx context.Context) (domain.OutboundMessage, error)
	Close() error
}

// Dialer opens a new transport. It is called once per connection attempt.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (Transport, error)

func (f DialerFunc) Dial(ctx context.Context) (Transport, error) {
	return f(ctx)
}
