package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/api-sage/txn-settlement-processor/internal/commons"
	"github.com/api-sage/txn-settlement-processor/internal/domain"
	"github.com/api-sage/txn-settlement-processor/internal/logger"
)

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, transaction domain.Transaction) (domain.Transaction, error) {
	logger.Info("transaction repository create", logger.Fields{
		"transactionId": transaction.TransactionID,
		"accountId":     transaction.AccountID,
	})

	const query = `
INSERT INTO transactions (
	transaction_id,
	account_id,
	amount,
	ts,
	state
) VALUES ($1, $2, $3, $4, $5)
RETURNING id, version, created_at, updated_at`

	if err := r.db.QueryRowContext(
		ctx,
		query,
		transaction.TransactionID,
		transaction.AccountID,
		transaction.Amount,
		transaction.Timestamp,
		transaction.State,
	).Scan(&transaction.ID, &transaction.Version, &transaction.CreatedAt, &transaction.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.Transaction{}, domain.ErrDuplicateTransactionID
		}
		logger.Error("transaction repository create failed", err, logger.Fields{
			"transactionId": transaction.TransactionID,
		})
		return domain.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	return transaction, nil
}

func (r *TransactionRepository) GetByTransactionID(ctx context.Context, transactionID string) (domain.Transaction, error) {
	const query = `
SELECT id, transaction_id, account_id, amount, ts, state, version, created_at, updated_at
FROM transactions
WHERE transaction_id = $1`

	var transaction domain.Transaction
	if err := r.db.QueryRowContext(ctx, query, transactionID).Scan(
		&transaction.ID,
		&transaction.TransactionID,
		&transaction.AccountID,
		&transaction.Amount,
		&transaction.Timestamp,
		&transaction.State,
		&transaction.Version,
		&transaction.CreatedAt,
		&transaction.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Transaction{}, commons.ErrRecordNotFound
		}
		logger.Error("transaction repository get by transaction id failed", err, logger.Fields{
			"transactionId": transactionID,
		})
		return domain.Transaction{}, fmt.Errorf("get transaction by transaction id: %w", err)
	}

	return transaction, nil
}

func (r *TransactionRepository) GetByAccountID(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	const query = `
SELECT id, transaction_id, account_id, amount, ts, state, version, created_at, updated_at
FROM transactions
WHERE account_id = $1
ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		logger.Error("transaction repository get by account id failed", err, logger.Fields{
			"accountId": accountID,
		})
		return nil, fmt.Errorf("get transactions by account id: %w", err)
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var transaction domain.Transaction
		if err := rows.Scan(
			&transaction.ID,
			&transaction.TransactionID,
			&transaction.AccountID,
			&transaction.Amount,
			&transaction.Timestamp,
			&transaction.State,
			&transaction.Version,
			&transaction.CreatedAt,
			&transaction.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		transactions = append(transactions, transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}

	return transactions, nil
}

func (r *TransactionRepository) Save(ctx context.Context, transaction domain.Transaction) (domain.Transaction, error) {
	const query = `
UPDATE transactions
SET amount = $2,
	state = $3,
	version = version + 1,
	updated_at = NOW()
WHERE transaction_id = $1 AND version = $4
RETURNING version, updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		transaction.TransactionID,
		transaction.Amount,
		transaction.State,
		transaction.Version,
	).Scan(&transaction.Version, &transaction.UpdatedAt)
	if err == nil {
		return transaction, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetByTransactionID(ctx, transaction.TransactionID); getErr != nil {
			return domain.Transaction{}, getErr
		}
		logger.Info("transaction repository save version conflict", logger.Fields{
			"transactionId": transaction.TransactionID,
			"version":       transaction.Version,
		})
		return domain.Transaction{}, commons.ErrConflict
	}

	logger.Error("transaction repository save failed", err, logger.Fields{
		"transactionId": transaction.TransactionID,
	})
	return domain.Transaction{}, fmt.Errorf("save transaction: %w", err)
}

func (r *TransactionRepository) DeleteByTransactionID(ctx context.Context, transactionID string) error {
	const query = `DELETE FROM transactions WHERE transaction_id = $1`

	result, err := r.db.ExecContext(ctx, query, transactionID)
	if err != nil {
		logger.Error("transaction repository delete failed", err, logger.Fields{
			"transactionId": transactionID,
		})
		return fmt.Errorf("delete transaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction rows affected: %w", err)
	}
	if affected == 0 {
		return commons.ErrRecordNotFound
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == "23505"
	}
	return false
}
