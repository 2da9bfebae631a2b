package core

import "github.com/shopspring/decimal"

// RecomputeSpent derives every budget's spent amount: the sum of expense
// transactions dated inside the budget's month whose category matches. Month
// membership is by wall-clock fields, the same bucketing the dashboard uses,
// so a date at the first instant of the next month counts into that next
// month regardless of its offset. A budget without a category is global for
// its month and counts every expense, including transactions that carry no
// category themselves.
//
// Pure function: allocations and all other fields pass through unchanged.
func RecomputeSpent(transactions []Transaction, budgets []Budget) []Budget {
	out := make([]Budget, len(budgets))
	for i, budget := range budgets {
		spent := decimal.Zero
		for _, t := range transactions {
			if t.Type != TypeExpense {
				continue
			}
			if !budget.Month.Contains(t.Date) {
				continue
			}
			if budget.CategoryID != nil {
				if t.CategoryID == nil || *t.CategoryID != *budget.CategoryID {
					continue
				}
			}
			spent = spent.Add(t.Amount)
		}
		budget.Spent = spent
		out[i] = budget
	}
	return out
}
