package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/api-sage/txn-settlement-processor/internal/commons"
	"github.com/api-sage/txn-settlement-processor/internal/domain"
)

type TransactionRepository struct {
	mu           sync.RWMutex
	transactions map[string]domain.Transaction // keyed by external transaction id
}

func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{transactions: make(map[string]domain.Transaction)}
}

func (r *TransactionRepository) Create(ctx context.Context, transaction domain.Transaction) (domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.transactions[transaction.TransactionID]; exists {
		return domain.Transaction{}, domain.ErrDuplicateTransactionID
	}

	if transaction.ID == "" {
		transaction.ID = uuid.NewString()
	}

	now := time.Now()
	transaction.Version = 1
	transaction.CreatedAt = now
	transaction.UpdatedAt = now
	r.transactions[transaction.TransactionID] = transaction

	return transaction, nil
}

func (r *TransactionRepository) GetByTransactionID(ctx context.Context, transactionID string) (domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	transaction, exists := r.transactions[transactionID]
	if !exists {
		return domain.Transaction{}, commons.ErrRecordNotFound
	}
	return transaction, nil
}

func (r *TransactionRepository) GetByAccountID(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Transaction
	for _, transaction := range r.transactions {
		if transaction.AccountID == accountID {
			result = append(result, transaction)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (r *TransactionRepository) Save(ctx context.Context, transaction domain.Transaction) (domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.transactions[transaction.TransactionID]
	if !exists {
		return domain.Transaction{}, commons.ErrRecordNotFound
	}
	if stored.Version != transaction.Version {
		return domain.Transaction{}, commons.ErrConflict
	}

	transaction.Version++
	transaction.UpdatedAt = time.Now()
	r.transactions[transaction.TransactionID] = transaction

	return transaction, nil
}

func (r *TransactionRepository) DeleteByTransactionID(ctx context.Context, transactionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.transactions[transactionID]; !exists {
		return commons.ErrRecordNotFound
	}

	delete(r.transactions, transactionID)
	return nil
}
