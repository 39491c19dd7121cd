package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/api-sage/txn-settlement-processor/internal/adapter/http/models"
	repomemory "github.com/api-sage/txn-settlement-processor/internal/adapter/repository/memory"
	"github.com/api-sage/txn-settlement-processor/internal/domain"
	"github.com/api-sage/txn-settlement-processor/internal/usecase/services"
	"github.com/api-sage/txn-settlement-processor/pkg/keymutex"
	"github.com/api-sage/txn-settlement-processor/pkg/metrics"
)

type fakeDispatcher struct {
	mu       sync.Mutex
	err      error
	requests []domain.TransactionRequest
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, request domain.TransactionRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.requests = append(d.requests, request)
	return nil
}

type registerFixture struct {
	svc             *services.TransactionService
	accountRepo     *repomemory.AccountRepository
	transactionRepo *repomemory.TransactionRepository
	dispatcher      *fakeDispatcher
	account         domain.Account
}

func newRegisterFixture(t *testing.T, balance int64) *registerFixture {
	t.Helper()

	accountRepo := repomemory.NewAccountRepository()
	transactionRepo := repomemory.NewTransactionRepository()
	dispatcher := &fakeDispatcher{}

	account, err := accountRepo.Create(context.Background(), domain.Account{
		ClientID: "client-1",
		Balance:  decimal.NewFromInt(balance),
		State:    domain.AccountStateOpen,
	})
	if err != nil {
		t.Fatalf("unexpected account create error: %v", err)
	}

	svc := services.NewTransactionService(transactionRepo, accountRepo, dispatcher, keymutex.New(), metrics.NewCollector())

	return &registerFixture{
		svc:             svc,
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		dispatcher:      dispatcher,
		account:         account,
	}
}

func (f *registerFixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()

	account, err := f.accountRepo.GetByID(context.Background(), f.account.ID)
	if err != nil {
		t.Fatalf("unexpected account fetch error: %v", err)
	}
	return account.Balance
}

func TestTransactionServiceRegisterHoldsFundsAndDispatches(t *testing.T) {
	f := newRegisterFixture(t, 100)

	resp, err := f.svc.Register(context.Background(), models.RegisterTransactionRequest{
		AccountID: f.account.ID,
		Amount:    decimal.NewFromInt(40),
	})
	if err != nil {
		t.Fatalf("unexpected register error: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success response, got %+v", resp)
	}
	if resp.Data.State != string(domain.TransactionStateRequested) {
		t.Fatalf("expected REQUESTED transaction, got %s", resp.Data.State)
	}

	if got := f.balance(t); !got.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected balance 60 after hold, got %s", got)
	}

	if len(f.dispatcher.requests) != 1 {
		t.Fatalf("expected 1 dispatched request, got %d", len(f.dispatcher.requests))
	}
	request := f.dispatcher.requests[0]
	if request.AccountID != f.account.ID || request.TransactionID != resp.Data.TransactionID {
		t.Fatalf("unexpected dispatched request: %+v", request)
	}
	if !request.AccountBalance.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected post-hold balance 60 in request, got %s", request.AccountBalance)
	}
	if !request.TransactionAmount.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected amount 40 in request, got %s", request.TransactionAmount)
	}

	stored, err := f.transactionRepo.GetByTransactionID(context.Background(), resp.Data.TransactionID)
	if err != nil {
		t.Fatalf("unexpected transaction fetch error: %v", err)
	}
	if stored.State != domain.TransactionStateRequested {
		t.Fatalf("expected stored transaction REQUESTED, got %s", stored.State)
	}
}

func TestTransactionServiceRegisterInsufficientFunds(t *testing.T) {
	f := newRegisterFixture(t, 100)

	resp, err := f.svc.Register(context.Background(), models.RegisterTransactionRequest{
		AccountID: f.account.ID,
		Amount:    decimal.NewFromInt(150),
	})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if resp.Success {
		t.Fatalf("expected error response, got %+v", resp)
	}

	if got := f.balance(t); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("rejected reservation must leave the balance at 100, got %s", got)
	}
	if len(f.dispatcher.requests) != 0 {
		t.Fatalf("expected no dispatched requests, got %d", len(f.dispatcher.requests))
	}

	transactions, err := f.transactionRepo.GetByAccountID(context.Background(), f.account.ID)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(transactions) != 0 {
		t.Fatalf("expected no persisted transaction, got %d", len(transactions))
	}
}

func TestTransactionServiceRegisterAccountNotOpen(t *testing.T) {
	f := newRegisterFixture(t, 100)

	account, err := f.accountRepo.GetByID(context.Background(), f.account.ID)
	if err != nil {
		t.Fatalf("unexpected account fetch error: %v", err)
	}
	account.State = domain.AccountStateBlocked
	if _, err := f.accountRepo.Save(context.Background(), account); err != nil {
		t.Fatalf("unexpected account save error: %v", err)
	}

	_, err = f.svc.Register(context.Background(), models.RegisterTransactionRequest{
		AccountID: f.account.ID,
		Amount:    decimal.NewFromInt(10),
	})
	if !errors.Is(err, domain.ErrAccountNotOpen) {
		t.Fatalf("expected ErrAccountNotOpen, got %v", err)
	}
}

func TestTransactionServiceRegisterUnknownAccount(t *testing.T) {
	f := newRegisterFixture(t, 100)

	resp, err := f.svc.Register(context.Background(), models.RegisterTransactionRequest{
		AccountID: "missing",
		Amount:    decimal.NewFromInt(10),
	})
	if err == nil {
		t.Fatal("expected error for unknown account")
	}
	if resp.Message != "Account not found" {
		t.Fatalf("unexpected response message: %q", resp.Message)
	}
}

func TestTransactionServiceRegisterValidation(t *testing.T) {
	f := newRegisterFixture(t, 100)

	if _, err := f.svc.Register(context.Background(), models.RegisterTransactionRequest{}); err == nil {
		t.Fatal("expected validation error for empty register request")
	}
	if _, err := f.svc.Register(context.Background(), models.RegisterTransactionRequest{
		AccountID: f.account.ID,
		Amount:    decimal.NewFromInt(-5),
	}); err == nil {
		t.Fatal("expected validation error for negative amount")
	}
}

func TestTransactionServiceRegisterCompensatesDispatchFailure(t *testing.T) {
	f := newRegisterFixture(t, 100)
	f.dispatcher.err = errors.New("channel down")

	resp, err := f.svc.Register(context.Background(), models.RegisterTransactionRequest{
		AccountID: f.account.ID,
		Amount:    decimal.NewFromInt(40),
	})
	if !errors.Is(err, domain.ErrChannelUnavailable) {
		t.Fatalf("expected ErrChannelUnavailable, got %v", err)
	}
	if resp.Success {
		t.Fatalf("expected error response, got %+v", resp)
	}

	if got := f.balance(t); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected hold reversed to 100, got %s", got)
	}

	transactions, listErr := f.transactionRepo.GetByAccountID(context.Background(), f.account.ID)
	if listErr != nil {
		t.Fatalf("unexpected list error: %v", listErr)
	}
	if len(transactions) != 1 {
		t.Fatalf("expected 1 parked transaction, got %d", len(transactions))
	}
	if transactions[0].State != domain.TransactionStateRejected {
		t.Fatalf("expected REJECTED transaction after compensation, got %s", transactions[0].State)
	}
}

func TestTransactionServiceConcurrentRegistersNoDoubleReservation(t *testing.T) {
	f := newRegisterFixture(t, 100)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.Register(context.Background(), models.RegisterTransactionRequest{
				AccountID: f.account.ID,
				Amount:    decimal.NewFromInt(60),
			})
		}(i)
	}
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInsufficientFunds):
			rejected++
		default:
			t.Fatalf("unexpected register error: %v", err)
		}
	}
	if succeeded != 1 || rejected != 1 {
		t.Fatalf("expected exactly one success and one insufficient-funds rejection, got %d/%d", succeeded, rejected)
	}

	if got := f.balance(t); !got.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected balance 40 after a single hold, got %s", got)
	}
}

func TestTransactionServiceGetByTransactionID(t *testing.T) {
	f := newRegisterFixture(t, 100)

	registered, err := f.svc.Register(context.Background(), models.RegisterTransactionRequest{
		AccountID: f.account.ID,
		Amount:    decimal.NewFromInt(40),
	})
	if err != nil {
		t.Fatalf("unexpected register error: %v", err)
	}

	resp, err := f.svc.GetByTransactionID(context.Background(), registered.Data.TransactionID)
	if err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	if resp.Data.TransactionID != registered.Data.TransactionID {
		t.Fatalf("unexpected transaction returned: %+v", resp.Data)
	}

	if _, err := f.svc.GetByTransactionID(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown transaction id")
	}
}

func TestTransactionServiceAmendRejectedOnceDispatched(t *testing.T) {
	f := newRegisterFixture(t, 100)

	registered, err := f.svc.Register(context.Background(), models.RegisterTransactionRequest{
		AccountID: f.account.ID,
		Amount:    decimal.NewFromInt(40),
	})
	if err != nil {
		t.Fatalf("unexpected register error: %v", err)
	}

	resp, err := f.svc.AmendAmount(context.Background(), registered.Data.TransactionID, models.AmendTransactionRequest{
		Amount: decimal.NewFromInt(50),
	})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for dispatched transaction, got %v", err)
	}
	if resp.Message != "Transaction already dispatched" {
		t.Fatalf("unexpected response message: %q", resp.Message)
	}
}

func TestTransactionServiceDeleteRequiresTerminalState(t *testing.T) {
	f := newRegisterFixture(t, 100)

	registered, err := f.svc.Register(context.Background(), models.RegisterTransactionRequest{
		AccountID: f.account.ID,
		Amount:    decimal.NewFromInt(40),
	})
	if err != nil {
		t.Fatalf("unexpected register error: %v", err)
	}
	transactionID := registered.Data.TransactionID

	if _, err := f.svc.DeleteByTransactionID(context.Background(), transactionID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for in-flight delete, got %v", err)
	}

	verdicts := services.NewVerdictService(f.transactionRepo, f.accountRepo, keymutex.New(), metrics.NewCollector())
	if err := verdicts.OnVerdict(context.Background(), domain.TransactionVerdict{
		TransactionID: transactionID,
		AccountID:     f.account.ID,
		State:         domain.TransactionStateAccepted,
	}); err != nil {
		t.Fatalf("unexpected verdict error: %v", err)
	}

	if _, err := f.svc.DeleteByTransactionID(context.Background(), transactionID); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if _, err := f.transactionRepo.GetByTransactionID(context.Background(), transactionID); err == nil {
		t.Fatal("expected transaction to be gone after delete")
	}
}
