package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionFilter is a conjunctive predicate over the transaction
// collection. Nil (or empty, for Search and Tags) fields match everything;
// specified fields are AND-ed together.
type TransactionFilter struct {
	DateFrom   *time.Time       `json:"dateFrom,omitempty"`
	DateTo     *time.Time       `json:"dateTo,omitempty"`
	AccountID  *string          `json:"accountId,omitempty"`
	CategoryID *string          `json:"categoryId,omitempty"`
	Type       *TransactionType `json:"type,omitempty"`
	AmountFrom *decimal.Decimal `json:"amountFrom,omitempty"`
	AmountTo   *decimal.Decimal `json:"amountTo,omitempty"`
	Search     string           `json:"search,omitempty"`
	Tags       []string         `json:"tags,omitempty"`
}

// FilterTransactions returns the matching subsequence in the original
// relative order. Date and amount bounds are inclusive; AccountID matches the
// source account only, so a transfer is not found through its destination.
// Search is a case-insensitive substring match against the note or any tag,
// and Tags matches on a non-empty intersection with the transaction's tags.
func FilterTransactions(transactions []Transaction, filter TransactionFilter) []Transaction {
	var out []Transaction
	for _, t := range transactions {
		if filter.matches(t) {
			out = append(out, t)
		}
	}
	return out
}

func (f TransactionFilter) matches(t Transaction) bool {
	if f.DateFrom != nil && t.Date.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && t.Date.After(*f.DateTo) {
		return false
	}
	if f.AccountID != nil && t.AccountID != *f.AccountID {
		return false
	}
	if f.CategoryID != nil && (t.CategoryID == nil || *t.CategoryID != *f.CategoryID) {
		return false
	}
	if f.Type != nil && t.Type != *f.Type {
		return false
	}
	if f.AmountFrom != nil && t.Amount.LessThan(*f.AmountFrom) {
		return false
	}
	if f.AmountTo != nil && t.Amount.GreaterThan(*f.AmountTo) {
		return false
	}
	if f.Search != "" && !matchesSearch(t, f.Search) {
		return false
	}
	if len(f.Tags) > 0 && !intersects(f.Tags, t.Tags) {
		return false
	}
	return true
}

func matchesSearch(t Transaction, search string) bool {
	term := strings.ToLower(search)
	if strings.Contains(strings.ToLower(t.Note), term) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

func intersects(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}
