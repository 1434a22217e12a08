package provider

import (
	"context"

	"github.com/campushq/messaging/internal/domain"
)

// Provider is the outbound transport port for one channel. The dispatcher
// owns the record lifecycle; a provider only normalizes destinations, builds
// the transport payload, and performs the send.
type Provider interface {
	Channel() domain.Channel
	NormalizeDestination(to string) (string, error)
	Send(ctx context.Context, msg domain.Message) (*Response, error)
}

// Response stores transport call metadata for audit and persistence.
type Response struct {
	// MessageID is the transport-assigned id (provider message id / SID).
	MessageID  string
	StatusCode int
	Body       string
}
