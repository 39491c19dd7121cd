package service_interfaces

import (
	"context"

	"github.com/api-sage/txn-settlement-processor/internal/adapter/http/models"
	"github.com/api-sage/txn-settlement-processor/internal/commons"
)

type TransactionService interface {
	Register(ctx context.Context, req models.RegisterTransactionRequest) (commons.Response[models.TransactionResponse], error)
	GetByTransactionID(ctx context.Context, transactionID string) (commons.Response[models.TransactionResponse], error)
	GetByAccountID(ctx context.Context, accountID string) (commons.Response[[]models.TransactionResponse], error)
	AmendAmount(ctx context.Context, transactionID string, req models.AmendTransactionRequest) (commons.Response[models.TransactionResponse], error)
	DeleteByTransactionID(ctx context.Context, transactionID string) (commons.Response[models.TransactionResponse], error)
}
