// Package memory provides an in-process message channel with the same
// at-least-once contract as the RabbitMQ adapter, for tests and for
// running the server without a broker.
package memory

import (
	"context"
	"sync"

	"github.com/api-sage/txn-settlement-processor/internal/adapter/broker"
)

const redeliveryLimit = 3

var (
	_ broker.Publisher = (*Broker)(nil)
	_ broker.Consumer  = (*Broker)(nil)
)

type Broker struct {
	mu       sync.RWMutex
	handlers map[string]broker.Handler
	backlog  map[string][]broker.Message
}

func New() *Broker {
	return &Broker{
		handlers: make(map[string]broker.Handler),
		backlog:  make(map[string][]broker.Message),
	}
}

// Publish delivers synchronously to the queue's handler, retrying up to
// the redelivery limit on handler error. Messages published before any
// consumer exists are held back and replayed on Consume.
func (b *Broker) Publish(ctx context.Context, queue string, msg broker.Message) error {
	b.mu.RLock()
	handler, ok := b.handlers[queue]
	b.mu.RUnlock()

	if !ok {
		b.mu.Lock()
		b.backlog[queue] = append(b.backlog[queue], msg)
		b.mu.Unlock()
		return nil
	}

	b.deliver(ctx, handler, msg)
	return nil
}

func (b *Broker) Consume(ctx context.Context, queue string, handler broker.Handler) error {
	b.mu.Lock()
	b.handlers[queue] = handler
	pending := b.backlog[queue]
	delete(b.backlog, queue)
	b.mu.Unlock()

	for _, msg := range pending {
		b.deliver(ctx, handler, msg)
	}

	<-ctx.Done()
	return ctx.Err()
}

func (b *Broker) deliver(ctx context.Context, handler broker.Handler, msg broker.Message) {
	for attempt := 0; attempt < redeliveryLimit; attempt++ {
		if err := handler(ctx, msg); err == nil {
			return
		}
	}
}
