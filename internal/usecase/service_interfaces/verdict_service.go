package service_interfaces

import (
	"context"

	"github.com/api-sage/txn-settlement-processor/internal/adapter/broker"
	"github.com/api-sage/txn-settlement-processor/internal/domain"
)

type VerdictService interface {
	OnVerdict(ctx context.Context, verdict domain.TransactionVerdict) error
	// HandleMessage adapts a raw channel delivery: it decodes the verdict,
	// applies it, and translates the outcome into ack (nil) or redelivery
	// (non-nil) for the consumer.
	HandleMessage(ctx context.Context, msg broker.Message) error
}
