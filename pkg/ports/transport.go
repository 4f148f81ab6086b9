package ports

import "context"

// Sender delivers outbound text to an identity through the transport gateway.
type Sender interface {
	Send(ctx context.Context, identity, text string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, identity, text string) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, identity, text string) error {
	return f(ctx, identity, text)
}
