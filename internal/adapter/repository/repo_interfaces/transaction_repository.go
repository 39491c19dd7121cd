package repo_interfaces

import (
	"context"

	"github.com/api-sage/txn-settlement-processor/internal/domain"
)

// TransactionRepository is the transaction half of the ledger store.
// Create returns domain.ErrDuplicateTransactionID when the external
// transaction id is already taken; Save follows the same optimistic
// concurrency contract as AccountRepository.Save.
type TransactionRepository interface {
	Create(ctx context.Context, transaction domain.Transaction) (domain.Transaction, error)
	GetByTransactionID(ctx context.Context, transactionID string) (domain.Transaction, error)
	GetByAccountID(ctx context.Context, accountID string) ([]domain.Transaction, error)
	Save(ctx context.Context, transaction domain.Transaction) (domain.Transaction, error)
	DeleteByTransactionID(ctx context.Context, transactionID string) error
}
