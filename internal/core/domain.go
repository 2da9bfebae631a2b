package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	AccountCash AccountType = "cash"
	AccountBank AccountType = "bank"
	AccountCard AccountType = "card"
)

const (
	TypeIncome   TransactionType = "income"
	TypeExpense  TransactionType = "expense"
	TypeTransfer TransactionType = "transfer"
)

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

type (
	AccountType     string
	TransactionType string
	Theme           string

	// User carries identity and display preferences. PasswordHash is an
	// opaque credential reference and never leaves the process as JSON.
	User struct {
		ID           string    `json:"id"`
		Email        string    `json:"email"`
		Name         string    `json:"name"`
		PasswordHash string    `json:"-"`
		Currency     string    `json:"currency"`
		Locale       string    `json:"locale"`
		Theme        Theme     `json:"theme"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	// Account's CurrentBalance is derived by the balance engine and is
	// never authored directly.
	Account struct {
		ID             string          `json:"id"`
		UserID         string          `json:"userId"`
		Name           string          `json:"name"`
		Type           AccountType     `json:"type"`
		Currency       string          `json:"currency"`
		OpeningBalance decimal.Decimal `json:"openingBalance"`
		CurrentBalance decimal.Decimal `json:"currentBalance"`
		CreatedAt      time.Time       `json:"createdAt"`
		UpdatedAt      time.Time       `json:"updatedAt"`
	}

	// Category is global, not user-scoped. A transaction may keep a
	// dangling CategoryID after its category is deleted; the reference is
	// advisory and resolved at display time with a fallback label.
	Category struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		ParentID  *string   `json:"parentId"`
		Color     string    `json:"color"`
		Icon      string    `json:"icon"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// Transaction amount is an unsigned magnitude; the sign of its effect
	// on a balance is implied by Type. ToAccountID is populated only for
	// transfers.
	Transaction struct {
		ID            string          `json:"id"`
		UserID        string          `json:"userId"`
		Date          time.Time       `json:"date"`
		AccountID     string          `json:"accountId"`
		ToAccountID   *string         `json:"toAccountId,omitempty"`
		Type          TransactionType `json:"type"`
		CategoryID    *string         `json:"categoryId"`
		Amount        decimal.Decimal `json:"amount"`
		Note          string          `json:"note"`
		Tags          []string        `json:"tags"`
		AttachmentURL *string         `json:"attachmentUrl"`
		CreatedAt     time.Time       `json:"createdAt"`
		UpdatedAt     time.Time       `json:"updatedAt"`
	}

	// Budget's Spent is derived by the budget engine. A nil CategoryID
	// makes the budget aggregate all expense categories for its month.
	Budget struct {
		ID         string          `json:"id"`
		UserID     string          `json:"userId"`
		Month      Month           `json:"month"`
		CategoryID *string         `json:"categoryId"`
		Amount     decimal.Decimal `json:"amount"`
		Spent      decimal.Decimal `json:"spent"`
		CreatedAt  time.Time       `json:"createdAt"`
		UpdatedAt  time.Time       `json:"updatedAt"`
	}

	// Snapshot is the authoritative in-memory ledger state for one user.
	Snapshot struct {
		Accounts     []Account     `json:"accounts"`
		Categories   []Category    `json:"categories"`
		Transactions []Transaction `json:"transactions"`
		Budgets      []Budget      `json:"budgets"`
	}
)

var (
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrEmptyName          = errors.New("empty name")
	ErrEmptyCurrency      = errors.New("empty currency code")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrMissingAccount     = errors.New("missing account reference")
	ErrMissingDestination = errors.New("transfer requires a destination account")
	ErrZeroDate           = errors.New("date cannot be zero")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrNotFound           = errors.New("not found")
)

func (t AccountType) IsValid() bool {
	switch t {
	case AccountCash, AccountBank, AccountCard:
		return true
	}
	return false
}

func (t TransactionType) IsValid() bool {
	switch t {
	case TypeIncome, TypeExpense, TypeTransfer:
		return true
	}
	return false
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if !a.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidAccountType, a.Type)
	}
	if strings.TrimSpace(a.Currency) == "" {
		return ErrEmptyCurrency
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	if t.AccountID == "" {
		return ErrMissingAccount
	}
	if !t.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, t.Type)
	}
	if t.Type == TypeTransfer && (t.ToAccountID == nil || *t.ToAccountID == "") {
		return ErrMissingDestination
	}
	if t.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (b Budget) Validate() error {
	if b.Month.IsZero() {
		return ErrInvalidMonth
	}
	if b.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
