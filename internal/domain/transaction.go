package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionState string

const (
	TransactionStateNew       TransactionState = "NEW"
	TransactionStateRequested TransactionState = "REQUESTED"
	TransactionStateAccepted  TransactionState = "ACCEPTED"
	TransactionStateBlocked   TransactionState = "BLOCKED"
	TransactionStateRejected  TransactionState = "REJECTED"
)

// IsTerminal reports whether no further transition is permitted.
// BLOCKED is excluded: an external unblock workflow may still resolve it.
func (s TransactionState) IsTerminal() bool {
	return s == TransactionStateAccepted || s == TransactionStateRejected
}

type Transaction struct {
	ID            string
	TransactionID string
	AccountID     string
	Amount        decimal.Decimal
	Timestamp     time.Time
	State         TransactionState
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewTransaction(transactionID, accountID string, amount decimal.Decimal, timestamp time.Time) Transaction {
	return Transaction{
		TransactionID: transactionID,
		AccountID:     accountID,
		Amount:        amount,
		Timestamp:     timestamp,
		State:         TransactionStateNew,
	}
}

func (t *Transaction) MarkRequested() error {
	return t.transition(TransactionStateRequested, TransactionStateNew)
}

func (t *Transaction) MarkAccepted() error {
	return t.transition(TransactionStateAccepted, TransactionStateRequested)
}

func (t *Transaction) MarkBlocked() error {
	return t.transition(TransactionStateBlocked, TransactionStateRequested)
}

func (t *Transaction) MarkRejected() error {
	return t.transition(TransactionStateRejected, TransactionStateRequested)
}

func (t *Transaction) transition(to TransactionState, from ...TransactionState) error {
	for _, valid := range from {
		if t.State == valid {
			t.State = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.State, to)
}
