package service_interfaces

import (
	"context"

	"github.com/api-sage/txn-settlement-processor/internal/domain"
)

type DispatchService interface {
	Dispatch(ctx context.Context, request domain.TransactionRequest) error
}
