package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/api-sage/txn-settlement-processor/internal/commons"
	"github.com/api-sage/txn-settlement-processor/internal/domain"
)

type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{accounts: make(map[string]domain.Account)}
}

func (r *AccountRepository) Create(ctx context.Context, account domain.Account) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if _, exists := r.accounts[account.ID]; exists {
		return domain.Account{}, fmt.Errorf("create account %s: already exists", account.ID)
	}

	now := time.Now()
	account.Version = 1
	account.CreatedAt = now
	account.UpdatedAt = now
	r.accounts[account.ID] = account

	return account, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, exists := r.accounts[id]
	if !exists {
		return domain.Account{}, commons.ErrRecordNotFound
	}
	return account, nil
}

func (r *AccountRepository) Save(ctx context.Context, account domain.Account) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.accounts[account.ID]
	if !exists {
		return domain.Account{}, commons.ErrRecordNotFound
	}
	if stored.Version != account.Version {
		return domain.Account{}, commons.ErrConflict
	}

	account.Version++
	account.UpdatedAt = time.Now()
	r.accounts[account.ID] = account

	return account, nil
}
