package worker

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finledger/internal/core"
	"finledger/internal/mirror"
)

type fakeRemote struct {
	accountsOwner string
	accounts      []core.Account

	categories []core.Category

	transactionsOwner string
	transactions      []core.Transaction

	budgetsOwner string
	budgets      []core.Budget
}

func (f *fakeRemote) ReplaceAccounts(_ context.Context, ownerID string, accounts []core.Account) error {
	f.accountsOwner = ownerID
	f.accounts = accounts
	return nil
}

func (f *fakeRemote) ReplaceCategories(_ context.Context, categories []core.Category) error {
	f.categories = categories
	return nil
}

func (f *fakeRemote) ReplaceTransactions(_ context.Context, ownerID string, transactions []core.Transaction) error {
	f.transactionsOwner = ownerID
	f.transactions = transactions
	return nil
}

func (f *fakeRemote) ReplaceBudgets(_ context.Context, ownerID string, budgets []core.Budget) error {
	f.budgetsOwner = ownerID
	f.budgets = budgets
	return nil
}

func TestHandleMessageAccounts(t *testing.T) {
	remote := &fakeRemote{}
	w := NewMirrorWorker(remote)

	msg := &mirror.SyncMessage{
		Kind:    mirror.KindAccounts,
		OwnerID: "user-1",
		Accounts: []core.Account{
			{ID: "a1", UserID: "user-1", Name: "Cash", Type: core.AccountCash, OpeningBalance: decimal.NewFromInt(100), Currency: "COP"},
		},
		Timestamp: time.Now().UTC(),
	}

	if err := w.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if remote.accountsOwner != "user-1" {
		t.Errorf("owner = %q, want user-1", remote.accountsOwner)
	}
	if len(remote.accounts) != 1 || remote.accounts[0].ID != "a1" {
		t.Errorf("accounts = %+v", remote.accounts)
	}
}

func TestHandleMessageCategoriesWithoutOwner(t *testing.T) {
	remote := &fakeRemote{}
	w := NewMirrorWorker(remote)

	msg := &mirror.SyncMessage{
		Kind:       mirror.KindCategories,
		Categories: []core.Category{{ID: "c1", Name: "Comida"}},
		Timestamp:  time.Now().UTC(),
	}

	if err := w.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(remote.categories) != 1 || remote.categories[0].Name != "Comida" {
		t.Errorf("categories = %+v", remote.categories)
	}
}

func TestHandleMessageEmptySliceStillReplaces(t *testing.T) {
	remote := &fakeRemote{transactionsOwner: "stale"}
	w := NewMirrorWorker(remote)

	msg := &mirror.SyncMessage{
		Kind:      mirror.KindTransactions,
		OwnerID:   "user-2",
		Timestamp: time.Now().UTC(),
	}

	if err := w.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if remote.transactionsOwner != "user-2" {
		t.Errorf("owner = %q, want user-2", remote.transactionsOwner)
	}
	if len(remote.transactions) != 0 {
		t.Errorf("transactions = %+v, want empty", remote.transactions)
	}
}

func TestHandleMessageRejectsUnknownKind(t *testing.T) {
	w := NewMirrorWorker(&fakeRemote{})

	msg := &mirror.SyncMessage{Kind: "settings", OwnerID: "user-1"}
	if err := w.HandleMessage(context.Background(), msg); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestHandleMessageRejectsMissingOwner(t *testing.T) {
	w := NewMirrorWorker(&fakeRemote{})

	msg := &mirror.SyncMessage{Kind: mirror.KindBudgets}
	if err := w.HandleMessage(context.Background(), msg); err == nil {
		t.Fatal("expected error for missing owner")
	}
}
