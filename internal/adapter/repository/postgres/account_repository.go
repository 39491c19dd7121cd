package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/api-sage/txn-settlement-processor/internal/commons"
	"github.com/api-sage/txn-settlement-processor/internal/domain"
	"github.com/api-sage/txn-settlement-processor/internal/logger"
)

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account domain.Account) (domain.Account, error) {
	logger.Info("account repository create", logger.Fields{
		"clientId": account.ClientID,
	})

	const query = `
INSERT INTO accounts (
	client_id,
	balance,
	frozen_amount,
	state
) VALUES ($1, $2, $3, $4)
RETURNING id, version, created_at, updated_at`

	if err := r.db.QueryRowContext(
		ctx,
		query,
		account.ClientID,
		account.Balance,
		account.FrozenAmount,
		account.State,
	).Scan(&account.ID, &account.Version, &account.CreatedAt, &account.UpdatedAt); err != nil {
		logger.Error("account repository create failed", err, logger.Fields{
			"clientId": account.ClientID,
		})
		return domain.Account{}, fmt.Errorf("create account: %w", err)
	}

	return account, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (domain.Account, error) {
	const query = `
SELECT id, client_id, balance, frozen_amount, state, version, created_at, updated_at
FROM accounts
WHERE id = $1`

	var account domain.Account
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&account.ID,
		&account.ClientID,
		&account.Balance,
		&account.FrozenAmount,
		&account.State,
		&account.Version,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, commons.ErrRecordNotFound
		}
		logger.Error("account repository get by id failed", err, logger.Fields{
			"accountId": id,
		})
		return domain.Account{}, fmt.Errorf("get account by id: %w", err)
	}

	return account, nil
}

// Save persists a loaded account. The WHERE clause on version makes the
// load-mutate-save cycle fail with commons.ErrConflict when another
// writer got in between.
func (r *AccountRepository) Save(ctx context.Context, account domain.Account) (domain.Account, error) {
	const query = `
UPDATE accounts
SET balance = $2,
	frozen_amount = $3,
	state = $4,
	version = version + 1,
	updated_at = NOW()
WHERE id = $1 AND version = $5
RETURNING version, updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		account.ID,
		account.Balance,
		account.FrozenAmount,
		account.State,
		account.Version,
	).Scan(&account.Version, &account.UpdatedAt)
	if err == nil {
		return account, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, account.ID); getErr != nil {
			return domain.Account{}, getErr
		}
		logger.Info("account repository save version conflict", logger.Fields{
			"accountId": account.ID,
			"version":   account.Version,
		})
		return domain.Account{}, commons.ErrConflict
	}

	logger.Error("account repository save failed", err, logger.Fields{
		"accountId": account.ID,
	})
	return domain.Account{}, fmt.Errorf("save account: %w", err)
}
