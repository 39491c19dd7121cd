package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/api-sage/txn-settlement-processor/internal/commons"
	"github.com/api-sage/txn-settlement-processor/internal/domain"
)

func TestAccountRepositorySaveBumpsVersion(t *testing.T) {
	repo := NewAccountRepository()
	ctx := context.Background()

	account, err := repo.Create(ctx, domain.Account{
		ClientID: "client-1",
		Balance:  decimal.NewFromInt(100),
		State:    domain.AccountStateOpen,
	})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if account.Version != 1 {
		t.Fatalf("expected version 1 after create, got %d", account.Version)
	}

	account.Balance = decimal.NewFromInt(60)
	saved, err := repo.Save(ctx, account)
	if err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if saved.Version != 2 {
		t.Fatalf("expected version 2 after save, got %d", saved.Version)
	}
}

func TestAccountRepositorySaveStaleVersionConflicts(t *testing.T) {
	repo := NewAccountRepository()
	ctx := context.Background()

	account, err := repo.Create(ctx, domain.Account{
		ClientID: "client-1",
		Balance:  decimal.NewFromInt(100),
		State:    domain.AccountStateOpen,
	})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	stale := account
	if _, err := repo.Save(ctx, account); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	if _, err := repo.Save(ctx, stale); !errors.Is(err, commons.ErrConflict) {
		t.Fatalf("expected ErrConflict for stale version, got %v", err)
	}
}

func TestAccountRepositoryGetByIDNotFound(t *testing.T) {
	repo := NewAccountRepository()

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, commons.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestTransactionRepositoryCreateDuplicateID(t *testing.T) {
	repo := NewTransactionRepository()
	ctx := context.Background()

	transaction := domain.NewTransaction("txn-1", "acc-1", decimal.NewFromInt(40), time.Now())
	if _, err := repo.Create(ctx, transaction); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	if _, err := repo.Create(ctx, transaction); !errors.Is(err, domain.ErrDuplicateTransactionID) {
		t.Fatalf("expected ErrDuplicateTransactionID, got %v", err)
	}
}

func TestTransactionRepositoryGetByAccountIDOrdersByCreation(t *testing.T) {
	repo := NewTransactionRepository()
	ctx := context.Background()

	for _, id := range []string{"txn-1", "txn-2", "txn-3"} {
		if _, err := repo.Create(ctx, domain.NewTransaction(id, "acc-1", decimal.NewFromInt(10), time.Now())); err != nil {
			t.Fatalf("unexpected create error: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := repo.Create(ctx, domain.NewTransaction("txn-other", "acc-2", decimal.NewFromInt(10), time.Now())); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	transactions, err := repo.GetByAccountID(ctx, "acc-1")
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(transactions) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(transactions))
	}
	for i, want := range []string{"txn-1", "txn-2", "txn-3"} {
		if transactions[i].TransactionID != want {
			t.Fatalf("expected %s at position %d, got %s", want, i, transactions[i].TransactionID)
		}
	}
}

func TestTransactionRepositorySaveConflict(t *testing.T) {
	repo := NewTransactionRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, domain.NewTransaction("txn-1", "acc-1", decimal.NewFromInt(40), time.Now()))
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	stale := created
	if _, err := repo.Save(ctx, created); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	if _, err := repo.Save(ctx, stale); !errors.Is(err, commons.ErrConflict) {
		t.Fatalf("expected ErrConflict for stale version, got %v", err)
	}
}

func TestTransactionRepositoryDelete(t *testing.T) {
	repo := NewTransactionRepository()
	ctx := context.Background()

	if _, err := repo.Create(ctx, domain.NewTransaction("txn-1", "acc-1", decimal.NewFromInt(40), time.Now())); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	if err := repo.DeleteByTransactionID(ctx, "txn-1"); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if _, err := repo.GetByTransactionID(ctx, "txn-1"); !errors.Is(err, commons.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound after delete, got %v", err)
	}
	if err := repo.DeleteByTransactionID(ctx, "txn-1"); !errors.Is(err, commons.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound for double delete, got %v", err)
	}
}
