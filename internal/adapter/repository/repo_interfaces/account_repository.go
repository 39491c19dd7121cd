package repo_interfaces

import (
	"context"

	"github.com/api-sage/txn-settlement-processor/internal/domain"
)

// AccountRepository is the account half of the ledger store. Save uses
// the record's Version for optimistic concurrency and returns
// commons.ErrConflict when the stored version moved on.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) (domain.Account, error)
	GetByID(ctx context.Context, id string) (domain.Account, error)
	Save(ctx context.Context, account domain.Account) (domain.Account, error)
}
