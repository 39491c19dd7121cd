package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRequest is the outbound verification request. It carries
// enough context for the external verifier to decide without querying
// the store. AccountBalance is the balance after the hold was taken.
type TransactionRequest struct {
	ClientID          string          `json:"clientId"`
	AccountID         string          `json:"accountId"`
	TransactionID     string          `json:"transactionId"`
	Timestamp         time.Time       `json:"timestamp"`
	TransactionAmount decimal.Decimal `json:"transactionAmount"`
	AccountBalance    decimal.Decimal `json:"accountBalance"`
}

// TransactionVerdict is the inbound decision for one transaction.
type TransactionVerdict struct {
	TransactionID string           `json:"transactionId"`
	AccountID     string           `json:"accountId"`
	State         TransactionState `json:"state"`
}
