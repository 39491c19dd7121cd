package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/api-sage/txn-settlement-processor/internal/adapter/broker"
	"github.com/api-sage/txn-settlement-processor/internal/adapter/repository/repo_interfaces"
	"github.com/api-sage/txn-settlement-processor/internal/commons"
	"github.com/api-sage/txn-settlement-processor/internal/domain"
	"github.com/api-sage/txn-settlement-processor/internal/logger"
	"github.com/api-sage/txn-settlement-processor/pkg/keymutex"
	"github.com/api-sage/txn-settlement-processor/pkg/metrics"
)

// VerdictService applies inbound verdicts to the transaction and its
// account. The channel delivers at least once, so every path here must
// tolerate duplicates: the transaction's state is the idempotence guard.
type VerdictService struct {
	transactionRepo repo_interfaces.TransactionRepository
	accountRepo     repo_interfaces.AccountRepository
	locks           *keymutex.KeyMutex
	collector       *metrics.Collector
}

func NewVerdictService(
	transactionRepo repo_interfaces.TransactionRepository,
	accountRepo repo_interfaces.AccountRepository,
	locks *keymutex.KeyMutex,
	collector *metrics.Collector,
) *VerdictService {
	return &VerdictService{
		transactionRepo: transactionRepo,
		accountRepo:     accountRepo,
		locks:           locks,
		collector:       collector,
	}
}

func (s *VerdictService) OnVerdict(ctx context.Context, verdict domain.TransactionVerdict) error {
	transaction, err := s.transactionRepo.GetByTransactionID(ctx, verdict.TransactionID)
	if err != nil {
		if errors.Is(err, commons.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrUnknownTransaction, verdict.TransactionID)
		}
		return err
	}

	return s.locks.WithLock(transaction.AccountID, func() error {
		return s.apply(ctx, verdict)
	})
}

func (s *VerdictService) apply(ctx context.Context, verdict domain.TransactionVerdict) error {
	// Reload inside the exclusive section: the state may have moved
	// between the pre-check and acquiring the lock.
	transaction, err := s.transactionRepo.GetByTransactionID(ctx, verdict.TransactionID)
	if err != nil {
		if errors.Is(err, commons.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrUnknownTransaction, verdict.TransactionID)
		}
		return err
	}

	if transaction.State.IsTerminal() {
		logger.Info("verdict service duplicate verdict for settled transaction", logger.Fields{
			"transactionId": verdict.TransactionID,
			"state":         string(transaction.State),
		})
		s.collector.RecordVerdictDropped("duplicate")
		return nil
	}

	if transaction.State == domain.TransactionStateBlocked {
		if verdict.State == domain.TransactionStateBlocked {
			s.collector.RecordVerdictDropped("duplicate")
			return nil
		}
		return fmt.Errorf("%w: verdict %s for blocked transaction %s", domain.ErrInvalidTransition, verdict.State, verdict.TransactionID)
	}

	if transaction.State != domain.TransactionStateRequested {
		return fmt.Errorf("%w: verdict %s for transaction %s in state %s", domain.ErrInvalidTransition, verdict.State, verdict.TransactionID, transaction.State)
	}

	var mutateAccount func(account *domain.Account)
	switch verdict.State {
	case domain.TransactionStateAccepted:
		if err := transaction.MarkAccepted(); err != nil {
			return err
		}
		mutateAccount = func(account *domain.Account) { account.ApplyAccept() }
	case domain.TransactionStateBlocked:
		if err := transaction.MarkBlocked(); err != nil {
			return err
		}
		amount := transaction.Amount
		mutateAccount = func(account *domain.Account) { account.ApplyBlock(amount) }
	case domain.TransactionStateRejected:
		if err := transaction.MarkRejected(); err != nil {
			return err
		}
		amount := transaction.Amount
		mutateAccount = func(account *domain.Account) { account.ApplyReject(amount) }
	default:
		return fmt.Errorf("%w: unrecognized verdict %q", domain.ErrInvalidTransition, verdict.State)
	}

	// The transaction is persisted first: once its state is terminal,
	// redelivered copies of this verdict no-op. A conflict here means
	// another writer raced us; redelivery retries the whole application.
	if _, err := s.transactionRepo.Save(ctx, transaction); err != nil {
		return err
	}

	// Redelivery no-ops after the transaction save above, so account
	// conflicts are retried here instead of being thrown back to the
	// channel.
	var saveErr error
	for attempt := 0; attempt < persistRetryLimit; attempt++ {
		var account domain.Account
		account, saveErr = s.accountRepo.GetByID(ctx, transaction.AccountID)
		if saveErr != nil {
			return saveErr
		}

		mutateAccount(&account)
		if _, saveErr = s.accountRepo.Save(ctx, account); saveErr == nil {
			break
		}
		if !errors.Is(saveErr, commons.ErrConflict) {
			return saveErr
		}
	}
	if saveErr != nil {
		return saveErr
	}

	s.collector.RecordVerdictApplied(string(verdict.State))
	logger.Info("verdict service applied verdict", logger.Fields{
		"transactionId": verdict.TransactionID,
		"accountId":     transaction.AccountID,
		"verdict":       string(verdict.State),
	})

	return nil
}

// HandleMessage is the channel-facing entry point. It decides which
// failures are redelivered and which are dropped: malformed payloads,
// unknown transactions and protocol violations gain nothing from a
// retry, while persistence errors do.
func (s *VerdictService) HandleMessage(ctx context.Context, msg broker.Message) error {
	var verdict domain.TransactionVerdict
	if err := json.Unmarshal(msg.Body, &verdict); err != nil {
		logger.Error("verdict service malformed verdict payload", err, logger.Fields{
			"messageId": msg.MessageID,
		})
		s.collector.RecordVerdictDropped("malformed")
		return nil
	}

	err := s.OnVerdict(ctx, verdict)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrUnknownTransaction):
		logger.Info("verdict service dropping verdict for unknown transaction", logger.Fields{
			"transactionId": verdict.TransactionID,
		})
		s.collector.RecordVerdictDropped("unknown_transaction")
		return nil
	case errors.Is(err, domain.ErrInvalidTransition):
		logger.Error("verdict service protocol violation", err, logger.Fields{
			"transactionId": verdict.TransactionID,
			"verdict":       string(verdict.State),
		})
		s.collector.RecordVerdictDropped("invalid_transition")
		return nil
	default:
		return err
	}
}
