package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func testAccount(t *testing.T, id, opening string) Account {
	t.Helper()
	return Account{
		ID:             id,
		UserID:         "u1",
		Name:           "acct-" + id,
		Type:           AccountCash,
		Currency:       "COP",
		OpeningBalance: dec(t, opening),
		CurrentBalance: dec(t, opening),
	}
}

func testTxn(t *testing.T, accountID string, kind TransactionType, amount string, date time.Time) Transaction {
	t.Helper()
	return Transaction{
		ID:        "t-" + accountID + "-" + amount,
		UserID:    "u1",
		Date:      date,
		AccountID: accountID,
		Type:      kind,
		Amount:    dec(t, amount),
	}
}

func TestRecomputeBalances_SingleExpense(t *testing.T) {
	accounts := []Account{testAccount(t, "a1", "500000")}
	txns := []Transaction{testTxn(t, "a1", TypeExpense, "30000", time.Now())}

	got := RecomputeBalances(accounts, txns)

	if want := dec(t, "470000"); !got[0].CurrentBalance.Equal(want) {
		t.Errorf("expected balance %s, got %s", want, got[0].CurrentBalance)
	}
	if !got[0].OpeningBalance.Equal(dec(t, "500000")) {
		t.Errorf("opening balance must pass through unchanged, got %s", got[0].OpeningBalance)
	}
}

func TestRecomputeBalances_AllEffects(t *testing.T) {
	accounts := []Account{
		testAccount(t, "a1", "1000"),
		testAccount(t, "a2", "0"),
	}
	dest := "a2"
	now := time.Now()
	txns := []Transaction{
		testTxn(t, "a1", TypeIncome, "500", now),
		testTxn(t, "a1", TypeExpense, "200", now),
		{
			ID: "tr1", UserID: "u1", Date: now,
			AccountID: "a1", ToAccountID: &dest,
			Type: TypeTransfer, Amount: dec(t, "300"),
		},
	}

	got := RecomputeBalances(accounts, txns)

	// 1000 + 500 - 200 - 300 outgoing transfer
	if want := dec(t, "1000"); !got[0].CurrentBalance.Equal(want) {
		t.Errorf("source account: expected %s, got %s", want, got[0].CurrentBalance)
	}
	// 0 + 300 incoming transfer
	if want := dec(t, "300"); !got[1].CurrentBalance.Equal(want) {
		t.Errorf("destination account: expected %s, got %s", want, got[1].CurrentBalance)
	}
}

func TestRecomputeBalances_IgnoresUnrelatedTransactions(t *testing.T) {
	accounts := []Account{testAccount(t, "a1", "100")}
	txns := []Transaction{testTxn(t, "other", TypeExpense, "40", time.Now())}

	got := RecomputeBalances(accounts, txns)

	if want := dec(t, "100"); !got[0].CurrentBalance.Equal(want) {
		t.Errorf("expected untouched balance %s, got %s", want, got[0].CurrentBalance)
	}
}

func TestRecomputeBalances_DestinationOnlyCountsTransfers(t *testing.T) {
	accounts := []Account{testAccount(t, "a2", "0")}
	dest := "a2"
	txn := testTxn(t, "a1", TypeExpense, "50", time.Now())
	txn.ToAccountID = &dest // malformed record: destination on a non-transfer

	got := RecomputeBalances(accounts, []Transaction{txn})

	if !got[0].CurrentBalance.IsZero() {
		t.Errorf("non-transfer destination must not affect balance, got %s", got[0].CurrentBalance)
	}
}

func TestRecomputeBalances_Idempotent(t *testing.T) {
	accounts := []Account{testAccount(t, "a1", "500")}
	txns := []Transaction{
		testTxn(t, "a1", TypeIncome, "100", time.Now()),
		testTxn(t, "a1", TypeExpense, "25", time.Now()),
	}

	once := RecomputeBalances(accounts, txns)
	twice := RecomputeBalances(once, txns)

	if !once[0].CurrentBalance.Equal(twice[0].CurrentBalance) {
		t.Errorf("recompute must be idempotent: %s vs %s", once[0].CurrentBalance, twice[0].CurrentBalance)
	}
}

func TestRecomputeBalances_DeleteLeavesNoResidual(t *testing.T) {
	accounts := []Account{testAccount(t, "a1", "500")}
	txns := []Transaction{
		testTxn(t, "a1", TypeExpense, "100", time.Now()),
		testTxn(t, "a1", TypeIncome, "50", time.Now()),
	}

	withAll := RecomputeBalances(accounts, txns)
	afterDelete := RecomputeBalances(withAll, txns[1:])
	fresh := RecomputeBalances(accounts, txns[1:])

	if !afterDelete[0].CurrentBalance.Equal(fresh[0].CurrentBalance) {
		t.Errorf("deleting a transaction must leave no residual contribution: %s vs %s",
			afterDelete[0].CurrentBalance, fresh[0].CurrentBalance)
	}
}
