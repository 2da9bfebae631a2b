package core

import (
	"errors"
	"testing"
	"time"
)

func TestTransactionValidate(t *testing.T) {
	dest := "a2"
	base := Transaction{
		ID:        "t1",
		UserID:    "u1",
		Date:      time.Now(),
		AccountID: "a1",
		Type:      TypeExpense,
		Amount:    dec(t, "10"),
	}

	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr error
	}{
		{"valid expense", func(tx *Transaction) {}, nil},
		{"zero date", func(tx *Transaction) { tx.Date = time.Time{} }, ErrZeroDate},
		{"missing account", func(tx *Transaction) { tx.AccountID = "" }, ErrMissingAccount},
		{"bad type", func(tx *Transaction) { tx.Type = "refund" }, ErrInvalidType},
		{"zero amount", func(tx *Transaction) { tx.Amount = dec(t, "0") }, ErrInvalidAmount},
		{"negative amount", func(tx *Transaction) { tx.Amount = dec(t, "-5") }, ErrInvalidAmount},
		{"transfer without destination", func(tx *Transaction) { tx.Type = TypeTransfer }, ErrMissingDestination},
		{"valid transfer", func(tx *Transaction) {
			tx.Type = TypeTransfer
			tx.ToAccountID = &dest
		}, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tx := base
			tc.mutate(&tx)
			err := tx.Validate()
			if tc.wantErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestAccountValidate(t *testing.T) {
	account := Account{Name: "Efectivo", Type: AccountCash, Currency: "COP"}
	if err := account.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	account.Type = "wallet"
	if err := account.Validate(); !errors.Is(err, ErrInvalidAccountType) {
		t.Errorf("expected ErrInvalidAccountType, got %v", err)
	}

	account.Type = AccountBank
	account.Name = "   "
	if err := account.Validate(); !errors.Is(err, ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}
}

func TestBudgetValidate(t *testing.T) {
	budget := Budget{Month: NewMonth(2025, time.August), Amount: dec(t, "100")}
	if err := budget.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	budget.Amount = dec(t, "0")
	if err := budget.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}

	budget = Budget{Amount: dec(t, "100")}
	if err := budget.Validate(); !errors.Is(err, ErrInvalidMonth) {
		t.Errorf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2025-08")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Year != 2025 || m.Mon != time.August {
		t.Errorf("expected 2025-08, got %s", m)
	}
	if m.String() != "2025-08" {
		t.Errorf("round trip failed: %s", m)
	}

	if _, err := ParseMonth("2025-13"); !errors.Is(err, ErrInvalidMonth) {
		t.Errorf("expected ErrInvalidMonth, got %v", err)
	}
	if _, err := ParseMonth("august"); !errors.Is(err, ErrInvalidMonth) {
		t.Errorf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestMonthInterval(t *testing.T) {
	m := NewMonth(2025, time.December)
	start, end := m.Interval()

	if !start.Equal(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("bad start: %v", start)
	}
	if !end.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("interval must roll over the year, got end %v", end)
	}
}

func TestLastMonths(t *testing.T) {
	months := LastMonths(NewMonth(2025, time.February), 4)
	want := []string{"2024-11", "2024-12", "2025-01", "2025-02"}
	if len(months) != len(want) {
		t.Fatalf("expected %d months, got %d", len(want), len(months))
	}
	for i, w := range want {
		if months[i].String() != w {
			t.Errorf("position %d: expected %s, got %s", i, w, months[i])
		}
	}
}

func TestMonthTextRoundTrip(t *testing.T) {
	var m Month
	if err := m.UnmarshalText([]byte("2025-03")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := m.MarshalText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != "2025-03" {
		t.Errorf("expected 2025-03, got %s", b)
	}
}

func TestSeedDataConsistency(t *testing.T) {
	snap := SeedData("u1")

	if len(snap.Accounts) == 0 || len(snap.Categories) == 0 || len(snap.Transactions) == 0 || len(snap.Budgets) == 0 {
		t.Fatal("seed data must populate all four collections")
	}
	for _, a := range snap.Accounts {
		if a.UserID != "u1" {
			t.Errorf("account %s has wrong owner %s", a.ID, a.UserID)
		}
	}
	for _, tx := range snap.Transactions {
		if err := tx.Validate(); err != nil {
			t.Errorf("seed transaction %s invalid: %v", tx.ID, err)
		}
	}
	for _, b := range snap.Budgets {
		if err := b.Validate(); err != nil {
			t.Errorf("seed budget %s invalid: %v", b.ID, err)
		}
	}
}
