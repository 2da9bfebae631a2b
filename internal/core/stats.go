package core

import "github.com/shopspring/decimal"

// FallbackCategoryLabel stands in for a dangling or absent category
// reference. Category links are advisory: deleting a category never cascades
// to the transactions pointing at it.
const FallbackCategoryLabel = "uncategorized"

type (
	// CategoryAmount is one slice of the expenses-by-category breakdown.
	CategoryAmount struct {
		Name   string          `json:"category"`
		Color  string          `json:"color"`
		Amount decimal.Decimal `json:"amount"`
	}

	// MonthFlow is one point of the income/expense trend series.
	MonthFlow struct {
		Month    Month           `json:"month"`
		Income   decimal.Decimal `json:"income"`
		Expenses decimal.Decimal `json:"expenses"`
	}

	DashboardStats struct {
		TotalBalance       decimal.Decimal  `json:"totalBalance"`
		MonthlyIncome      decimal.Decimal  `json:"monthlyIncome"`
		MonthlyExpenses    decimal.Decimal  `json:"monthlyExpenses"`
		MonthlyNet         decimal.Decimal  `json:"monthlyNet"`
		ExpensesByCategory []CategoryAmount `json:"expensesByCategory"`
		MonthlyTrend       []MonthFlow      `json:"monthlyTrend"`
	}
)

// ComputeDashboardStats aggregates the reporting view for one month: total
// balance across all accounts, the month's income/expense/net flows, the
// month's expenses grouped by category, and a 12-month trend ending at the
// given month. Aggregation assumes a single reporting currency per user; no
// conversion is performed.
func ComputeDashboardStats(accounts []Account, transactions []Transaction, categories []Category, month Month) DashboardStats {
	stats := DashboardStats{
		TotalBalance:    decimal.Zero,
		MonthlyIncome:   decimal.Zero,
		MonthlyExpenses: decimal.Zero,
	}

	for _, a := range accounts {
		stats.TotalBalance = stats.TotalBalance.Add(a.CurrentBalance)
	}

	byCategory := make(map[string]decimal.Decimal)
	var order []string
	for _, t := range transactions {
		if !month.Contains(t.Date) {
			continue
		}
		switch t.Type {
		case TypeIncome:
			stats.MonthlyIncome = stats.MonthlyIncome.Add(t.Amount)
		case TypeExpense:
			stats.MonthlyExpenses = stats.MonthlyExpenses.Add(t.Amount)
			key := ""
			if t.CategoryID != nil {
				key = *t.CategoryID
			}
			if _, seen := byCategory[key]; !seen {
				order = append(order, key)
			}
			byCategory[key] = byCategory[key].Add(t.Amount)
		}
	}
	stats.MonthlyNet = stats.MonthlyIncome.Sub(stats.MonthlyExpenses)

	for _, key := range order {
		name, color := FallbackCategoryLabel, ""
		if cat, ok := findCategory(categories, key); ok {
			name, color = cat.Name, cat.Color
		}
		stats.ExpensesByCategory = append(stats.ExpensesByCategory, CategoryAmount{
			Name:   name,
			Color:  color,
			Amount: byCategory[key],
		})
	}

	for _, m := range LastMonths(month, 12) {
		flow := MonthFlow{Month: m, Income: decimal.Zero, Expenses: decimal.Zero}
		for _, t := range transactions {
			if !m.Contains(t.Date) {
				continue
			}
			switch t.Type {
			case TypeIncome:
				flow.Income = flow.Income.Add(t.Amount)
			case TypeExpense:
				flow.Expenses = flow.Expenses.Add(t.Amount)
			}
		}
		stats.MonthlyTrend = append(stats.MonthlyTrend, flow)
	}

	return stats
}

func findCategory(categories []Category, id string) (Category, bool) {
	for _, c := range categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// ResolveCategoryName looks a category reference up for display, falling back
// to FallbackCategoryLabel when the reference is nil or dangling.
func ResolveCategoryName(categories []Category, id *string) string {
	if id == nil {
		return FallbackCategoryLabel
	}
	if cat, ok := findCategory(categories, *id); ok {
		return cat.Name
	}
	return FallbackCategoryLabel
}
