package core

import (
	"testing"
	"time"
)

func testBudget(t *testing.T, id string, month Month, categoryID *string, amount string) Budget {
	t.Helper()
	return Budget{
		ID:         id,
		UserID:     "u1",
		Month:      month,
		CategoryID: categoryID,
		Amount:     dec(t, amount),
		Spent:      dec(t, "0"),
	}
}

func TestRecomputeSpent_CategoryAndGlobalBudgets(t *testing.T) {
	month := NewMonth(2025, time.August)
	c1, c2 := "c1", "c2"
	august := time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)

	txns := []Transaction{
		{ID: "t1", UserID: "u1", Date: august, AccountID: "a1", Type: TypeExpense, CategoryID: &c1, Amount: dec(t, "50")},
		{ID: "t2", UserID: "u1", Date: august, AccountID: "a1", Type: TypeExpense, CategoryID: &c2, Amount: dec(t, "30")},
		{ID: "t3", UserID: "u1", Date: august, AccountID: "a1", Type: TypeIncome, Amount: dec(t, "200")},
	}
	budgets := []Budget{
		testBudget(t, "b1", month, &c1, "100"),
		testBudget(t, "b2", month, nil, "500"),
	}

	got := RecomputeSpent(txns, budgets)

	if want := dec(t, "50"); !got[0].Spent.Equal(want) {
		t.Errorf("category budget: expected spent %s, got %s", want, got[0].Spent)
	}
	if want := dec(t, "80"); !got[1].Spent.Equal(want) {
		t.Errorf("global budget: expected spent %s, got %s", want, got[1].Spent)
	}
	if want := dec(t, "100"); !got[0].Amount.Equal(want) {
		t.Errorf("allocation must pass through unchanged, got %s", got[0].Amount)
	}
}

func TestRecomputeSpent_GlobalBudgetIncludesUncategorized(t *testing.T) {
	month := NewMonth(2025, time.August)
	txns := []Transaction{
		{ID: "t1", UserID: "u1", Date: time.Date(2025, 8, 3, 0, 0, 0, 0, time.UTC),
			AccountID: "a1", Type: TypeExpense, Amount: dec(t, "70")},
	}
	budgets := []Budget{testBudget(t, "b1", month, nil, "100")}

	got := RecomputeSpent(txns, budgets)

	if want := dec(t, "70"); !got[0].Spent.Equal(want) {
		t.Errorf("uncategorized expense must count toward the global budget, got %s", got[0].Spent)
	}
}

func TestRecomputeSpent_MonthBoundaryIsHalfOpen(t *testing.T) {
	month := NewMonth(2025, time.August)
	budgets := []Budget{testBudget(t, "b1", month, nil, "100")}

	firstOfMonth := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	firstOfNext := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	txns := []Transaction{
		{ID: "in", UserID: "u1", Date: firstOfMonth, AccountID: "a1", Type: TypeExpense, Amount: dec(t, "10")},
		{ID: "out", UserID: "u1", Date: firstOfNext, AccountID: "a1", Type: TypeExpense, Amount: dec(t, "99")},
	}

	got := RecomputeSpent(txns, budgets)

	if want := dec(t, "10"); !got[0].Spent.Equal(want) {
		t.Errorf("first instant of month counts, first instant of next month does not; got %s", got[0].Spent)
	}
}

func TestRecomputeSpent_BucketsByWallClockMonth(t *testing.T) {
	august := NewMonth(2025, time.August)
	september := NewMonth(2025, time.September)
	budgets := []Budget{
		testBudget(t, "b-aug", august, nil, "100"),
		testBudget(t, "b-sep", september, nil, "100"),
	}

	// Wall-clock first instant of September, but as an absolute instant it
	// precedes the UTC month boundary.
	firstOfSeptember := time.Date(2025, 9, 1, 0, 0, 0, 0, time.FixedZone("UTC+2", 2*60*60))

	txns := []Transaction{
		{ID: "t1", UserID: "u1", Date: firstOfSeptember, AccountID: "a1", Type: TypeExpense, Amount: dec(t, "100")},
	}

	got := RecomputeSpent(txns, budgets)

	if !got[0].Spent.IsZero() {
		t.Errorf("august budget must not count a September wall-clock date, got %s", got[0].Spent)
	}
	if want := dec(t, "100"); !got[1].Spent.Equal(want) {
		t.Errorf("september budget: expected spent %s, got %s", want, got[1].Spent)
	}

	stats := ComputeDashboardStats(nil, txns, nil, september)
	if !got[1].Spent.Equal(stats.MonthlyExpenses) {
		t.Errorf("budget and dashboard disagree over the same month: %s vs %s", got[1].Spent, stats.MonthlyExpenses)
	}
}

func TestRecomputeSpent_Idempotent(t *testing.T) {
	month := NewMonth(2025, time.August)
	c1 := "c1"
	txns := []Transaction{
		{ID: "t1", UserID: "u1", Date: time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC),
			AccountID: "a1", Type: TypeExpense, CategoryID: &c1, Amount: dec(t, "40")},
	}
	budgets := []Budget{testBudget(t, "b1", month, &c1, "100")}

	once := RecomputeSpent(txns, budgets)
	twice := RecomputeSpent(txns, once)

	if !once[0].Spent.Equal(twice[0].Spent) {
		t.Errorf("recompute must be idempotent: %s vs %s", once[0].Spent, twice[0].Spent)
	}
}

func TestRecomputeSpent_DeleteLeavesNoResidual(t *testing.T) {
	month := NewMonth(2025, time.August)
	txns := []Transaction{
		{ID: "t1", UserID: "u1", Date: time.Date(2025, 8, 5, 0, 0, 0, 0, time.UTC),
			AccountID: "a1", Type: TypeExpense, Amount: dec(t, "60")},
		{ID: "t2", UserID: "u1", Date: time.Date(2025, 8, 6, 0, 0, 0, 0, time.UTC),
			AccountID: "a1", Type: TypeExpense, Amount: dec(t, "25")},
	}
	budgets := []Budget{testBudget(t, "b1", month, nil, "500")}

	withAll := RecomputeSpent(txns, budgets)
	afterDelete := RecomputeSpent(txns[:1], withAll)

	if want := dec(t, "60"); !afterDelete[0].Spent.Equal(want) {
		t.Errorf("deleted transaction must not contribute, expected %s got %s", want, afterDelete[0].Spent)
	}
}
