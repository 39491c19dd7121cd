// Package broker defines the message channel contract: at-least-once
// delivery, no cross-key ordering guarantee, no uniqueness guarantee.
package broker

import "context"

// Message is one payload on the channel. Key groups messages that
// belong to the same account so transports with partition support can
// preserve per-account ordering; MessageID is the dispatch idempotency
// token (the external transaction id).
type Message struct {
	Key       string
	MessageID string
	Body      []byte
}

type Publisher interface {
	Publish(ctx context.Context, queue string, msg Message) error
}

// Handler processes one delivered message. Returning an error requests
// redelivery; handlers must therefore be idempotent.
type Handler func(ctx context.Context, msg Message) error

type Consumer interface {
	// Consume blocks delivering messages from queue to handler until
	// ctx is cancelled or the transport fails.
	Consume(ctx context.Context, queue string, handler Handler) error
}
