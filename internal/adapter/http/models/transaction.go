package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/api-sage/txn-settlement-processor/internal/domain"
)

type RegisterTransactionRequest struct {
	AccountID string          `json:"accountId"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

func (r RegisterTransactionRequest) Validate() error {
	var errs []string

	if strings.TrimSpace(r.AccountID) == "" {
		errs = append(errs, "accountId is required")
	}
	if !r.Amount.IsPositive() {
		errs = append(errs, "amount must be greater than zero")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

type AmendTransactionRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (r AmendTransactionRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return errors.New("amount must be greater than zero")
	}
	return nil
}

type TransactionResponse struct {
	TransactionID string    `json:"transactionId"`
	AccountID     string    `json:"accountId"`
	Amount        string    `json:"amount"`
	Timestamp     time.Time `json:"timestamp"`
	State         string    `json:"state"`
}

func TransactionToResponse(transaction domain.Transaction) TransactionResponse {
	return TransactionResponse{
		TransactionID: transaction.TransactionID,
		AccountID:     transaction.AccountID,
		Amount:        transaction.Amount.StringFixed(2),
		Timestamp:     transaction.Timestamp,
		State:         string(transaction.State),
	}
}
