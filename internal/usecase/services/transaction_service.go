package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/api-sage/txn-settlement-processor/internal/adapter/http/models"
	"github.com/api-sage/txn-settlement-processor/internal/adapter/repository/repo_interfaces"
	"github.com/api-sage/txn-settlement-processor/internal/commons"
	"github.com/api-sage/txn-settlement-processor/internal/domain"
	"github.com/api-sage/txn-settlement-processor/internal/logger"
	"github.com/api-sage/txn-settlement-processor/internal/usecase/service_interfaces"
	"github.com/api-sage/txn-settlement-processor/pkg/keymutex"
	"github.com/api-sage/txn-settlement-processor/pkg/metrics"
)

const createRetryLimit = 5
const persistRetryLimit = 3

// TransactionService owns the registration path: hold funds, record the
// transaction as REQUESTED and hand the verification request to the
// dispatcher. Account mutations run inside the per-account exclusive
// section; publishing happens after the section is released so the
// critical section never spans a network call.
type TransactionService struct {
	transactionRepo repo_interfaces.TransactionRepository
	accountRepo     repo_interfaces.AccountRepository
	dispatcher      service_interfaces.DispatchService
	locks           *keymutex.KeyMutex
	collector       *metrics.Collector
}

func NewTransactionService(
	transactionRepo repo_interfaces.TransactionRepository,
	accountRepo repo_interfaces.AccountRepository,
	dispatcher service_interfaces.DispatchService,
	locks *keymutex.KeyMutex,
	collector *metrics.Collector,
) *TransactionService {
	return &TransactionService{
		transactionRepo: transactionRepo,
		accountRepo:     accountRepo,
		dispatcher:      dispatcher,
		locks:           locks,
		collector:       collector,
	}
}

func (s *TransactionService) Register(ctx context.Context, req models.RegisterTransactionRequest) (commons.Response[models.TransactionResponse], error) {
	logger.Info("transaction service register request", logger.Fields{
		"payload": logger.SanitizePayload(req),
	})

	if err := req.Validate(); err != nil {
		return commons.ErrorResponse[models.TransactionResponse]("validation failed", err.Error()), err
	}

	start := time.Now()
	timestamp := req.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	var transaction domain.Transaction
	var request domain.TransactionRequest

	err := s.locks.WithLock(req.AccountID, func() error {
		account, err := s.accountRepo.GetByID(ctx, req.AccountID)
		if err != nil {
			return err
		}

		if err := account.Reserve(req.Amount); err != nil {
			return err
		}

		account, err = s.accountRepo.Save(ctx, account)
		if err != nil {
			return err
		}

		transaction, err = s.createRequested(ctx, req.AccountID, req.Amount, timestamp)
		if err != nil {
			// The hold is already durable; reverse it before surfacing
			// the error so no funds stay reserved without a transaction.
			if releaseErr := s.releaseHold(ctx, req.AccountID, req.Amount); releaseErr != nil {
				logger.Error("transaction service hold rollback failed", releaseErr, logger.Fields{
					"accountId": req.AccountID,
					"amount":    req.Amount.StringFixed(2),
				})
			}
			return err
		}

		request = domain.TransactionRequest{
			ClientID:          account.ClientID,
			AccountID:         account.ID,
			TransactionID:     transaction.TransactionID,
			Timestamp:         timestamp,
			TransactionAmount: transaction.Amount,
			AccountBalance:    account.Balance,
		}
		return nil
	})
	if err != nil {
		return s.registerError(err), err
	}

	if err := s.dispatcher.Dispatch(ctx, request); err != nil {
		logger.Error("transaction service dispatch failed", err, logger.Fields{
			"transactionId": transaction.TransactionID,
		})
		s.compensateDispatchFailure(ctx, transaction)
		return commons.ErrorResponse[models.TransactionResponse]("dispatch failed", "Verification request could not be delivered"), domain.ErrChannelUnavailable
	}

	s.collector.RecordReservation(time.Since(start))
	logger.Info("transaction service registered", logger.Fields{
		"transactionId": transaction.TransactionID,
		"accountId":     transaction.AccountID,
	})

	return commons.SuccessResponse("Transaction registered", models.TransactionToResponse(transaction)), nil
}

// createRequested persists a new REQUESTED transaction, regenerating the
// external id on the unlikely collision with an existing one.
func (s *TransactionService) createRequested(ctx context.Context, accountID string, amount decimal.Decimal, timestamp time.Time) (domain.Transaction, error) {
	var err error
	for attempt := 0; attempt < createRetryLimit; attempt++ {
		transaction := domain.NewTransaction(uuid.NewString(), accountID, amount, timestamp)
		if err = transaction.MarkRequested(); err != nil {
			return domain.Transaction{}, err
		}

		var created domain.Transaction
		created, err = s.transactionRepo.Create(ctx, transaction)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, domain.ErrDuplicateTransactionID) {
			return domain.Transaction{}, err
		}
	}

	return domain.Transaction{}, err
}

func (s *TransactionService) registerError(err error) commons.Response[models.TransactionResponse] {
	switch {
	case errors.Is(err, commons.ErrRecordNotFound):
		s.collector.RecordReservationRejected("account_not_found")
		return commons.ErrorResponse[models.TransactionResponse]("Account not found")
	case errors.Is(err, domain.ErrAccountNotOpen):
		s.collector.RecordReservationRejected("account_not_open")
		return commons.ErrorResponse[models.TransactionResponse]("Account is not open", err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		s.collector.RecordReservationRejected("insufficient_funds")
		return commons.ErrorResponse[models.TransactionResponse]("Insufficient funds", err.Error())
	case errors.Is(err, commons.ErrConflict):
		s.collector.RecordReservationRejected("conflict")
		return commons.ErrorResponse[models.TransactionResponse]("failed to register transaction", "Account was modified concurrently, retry the request")
	default:
		s.collector.RecordReservationRejected("internal")
		return commons.ErrorResponse[models.TransactionResponse]("failed to register transaction", "Unable to register transaction right now")
	}
}

// compensateDispatchFailure reverses the hold and parks the transaction
// as REJECTED after the dispatcher exhausted its retries. Failing safe
// toward returning funds beats holding them with no verdict coming.
func (s *TransactionService) compensateDispatchFailure(ctx context.Context, transaction domain.Transaction) {
	err := s.locks.WithLock(transaction.AccountID, func() error {
		if err := s.releaseHold(ctx, transaction.AccountID, transaction.Amount); err != nil {
			return err
		}

		for attempt := 0; attempt < persistRetryLimit; attempt++ {
			stored, err := s.transactionRepo.GetByTransactionID(ctx, transaction.TransactionID)
			if err != nil {
				return err
			}
			if err := stored.MarkRejected(); err != nil {
				return err
			}
			if _, err = s.transactionRepo.Save(ctx, stored); err == nil {
				return nil
			} else if !errors.Is(err, commons.ErrConflict) {
				return err
			}
		}
		return commons.ErrConflict
	})
	if err != nil {
		logger.Error("transaction service dispatch compensation failed", err, logger.Fields{
			"transactionId": transaction.TransactionID,
			"accountId":     transaction.AccountID,
		})
	}
}

// releaseHold refunds a reserved amount. Callers hold the per-account
// section; the retry loop only guards against external writers bumping
// the version between load and save.
func (s *TransactionService) releaseHold(ctx context.Context, accountID string, amount decimal.Decimal) error {
	var err error
	for attempt := 0; attempt < persistRetryLimit; attempt++ {
		var account domain.Account
		account, err = s.accountRepo.GetByID(ctx, accountID)
		if err != nil {
			return err
		}

		account.Release(amount)
		if _, err = s.accountRepo.Save(ctx, account); err == nil {
			return nil
		}
		if !errors.Is(err, commons.ErrConflict) {
			return err
		}
	}

	return err
}

func (s *TransactionService) GetByTransactionID(ctx context.Context, transactionID string) (commons.Response[models.TransactionResponse], error) {
	transaction, err := s.transactionRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, commons.ErrRecordNotFound) {
			return commons.ErrorResponse[models.TransactionResponse]("Transaction not found"), err
		}
		return commons.ErrorResponse[models.TransactionResponse]("failed to fetch transaction"), err
	}

	return commons.SuccessResponse("Transaction found", models.TransactionToResponse(transaction)), nil
}

func (s *TransactionService) GetByAccountID(ctx context.Context, accountID string) (commons.Response[[]models.TransactionResponse], error) {
	transactions, err := s.transactionRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		return commons.ErrorResponse[[]models.TransactionResponse]("failed to fetch transactions"), err
	}

	responses := make([]models.TransactionResponse, 0, len(transactions))
	for _, transaction := range transactions {
		responses = append(responses, models.TransactionToResponse(transaction))
	}

	return commons.SuccessResponse("Transactions found", responses), nil
}

// AmendAmount only applies to transactions that never entered the
// pipeline. Once REQUESTED, the amount is bound to a durable hold and a
// published verification request, so amending it would desynchronize
// the ledger from the verifier.
func (s *TransactionService) AmendAmount(ctx context.Context, transactionID string, req models.AmendTransactionRequest) (commons.Response[models.TransactionResponse], error) {
	if err := req.Validate(); err != nil {
		return commons.ErrorResponse[models.TransactionResponse]("validation failed", err.Error()), err
	}

	transaction, err := s.transactionRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, commons.ErrRecordNotFound) {
			return commons.ErrorResponse[models.TransactionResponse]("Transaction not found"), err
		}
		return commons.ErrorResponse[models.TransactionResponse]("failed to amend transaction"), err
	}

	if transaction.State != domain.TransactionStateNew {
		err := domain.ErrInvalidTransition
		return commons.ErrorResponse[models.TransactionResponse]("Transaction already dispatched", "Only transactions that were never dispatched can be amended"), err
	}

	transaction.Amount = req.Amount
	transaction, err = s.transactionRepo.Save(ctx, transaction)
	if err != nil {
		return commons.ErrorResponse[models.TransactionResponse]("failed to amend transaction"), err
	}

	return commons.SuccessResponse("Transaction amended", models.TransactionToResponse(transaction)), nil
}

// DeleteByTransactionID removes a settled transaction. In-flight
// records cannot be deleted: an open hold or pending verdict still
// references them.
func (s *TransactionService) DeleteByTransactionID(ctx context.Context, transactionID string) (commons.Response[models.TransactionResponse], error) {
	transaction, err := s.transactionRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, commons.ErrRecordNotFound) {
			return commons.ErrorResponse[models.TransactionResponse]("Transaction not found"), err
		}
		return commons.ErrorResponse[models.TransactionResponse]("failed to delete transaction"), err
	}

	if !transaction.State.IsTerminal() {
		err := domain.ErrInvalidTransition
		return commons.ErrorResponse[models.TransactionResponse]("Transaction is still in flight", "Only settled transactions can be deleted"), err
	}

	if err := s.transactionRepo.DeleteByTransactionID(ctx, transactionID); err != nil {
		return commons.ErrorResponse[models.TransactionResponse]("failed to delete transaction"), err
	}

	return commons.SuccessResponse("Transaction deleted", models.TransactionToResponse(transaction)), nil
}
