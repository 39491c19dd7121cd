package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountState string

const (
	AccountStateOpen    AccountState = "OPEN"
	AccountStateBlocked AccountState = "BLOCKED"
)

type Account struct {
	ID           string
	ClientID     string
	Balance      decimal.Decimal
	FrozenAmount decimal.Decimal
	State        AccountState
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Reserve places an optimistic hold by deducting amount from the balance.
// The hold is reversed later by Release or ApplyReject.
func (a *Account) Reserve(amount decimal.Decimal) error {
	if a.State != AccountStateOpen {
		return ErrAccountNotOpen
	}
	if a.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	a.Balance = a.Balance.Sub(amount)
	return nil
}

// ApplyAccept settles an accepted transaction. The funds were already
// deducted at reservation time, so the account itself does not change.
func (a *Account) ApplyAccept() {}

// ApplyBlock freezes the held amount and blocks the account.
func (a *Account) ApplyBlock(amount decimal.Decimal) {
	a.State = AccountStateBlocked
	a.FrozenAmount = amount
}

// ApplyReject refunds the held amount back to the balance.
func (a *Account) ApplyReject(amount decimal.Decimal) {
	a.Balance = a.Balance.Add(amount)
}

// Release reverses a hold outside the verdict path, e.g. when dispatch
// of the verification request failed after funds were reserved.
func (a *Account) Release(amount decimal.Decimal) {
	a.Balance = a.Balance.Add(amount)
}

// Reopen returns a blocked account to the open state. It is invoked by
// an external operational workflow once the blocked transaction has been
// resolved; settling the frozen amount is that workflow's concern.
func (a *Account) Reopen() {
	a.State = AccountStateOpen
}
