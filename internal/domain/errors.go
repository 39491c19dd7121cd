package domain

import "errors"

var ErrAccountNotOpen = errors.New("Account is not open")
var ErrInsufficientFunds = errors.New("Insufficient funds")
var ErrDuplicateTransactionID = errors.New("Duplicate transaction id")
var ErrInvalidTransition = errors.New("Invalid transaction state transition")
var ErrUnknownTransaction = errors.New("Unknown transaction")
var ErrChannelUnavailable = errors.New("Message channel unavailable")
