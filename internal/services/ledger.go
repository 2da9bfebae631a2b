// Package services hosts the ledger coordinator: the single entry point for
// every mutation of a user's financial state. It owns the in-memory snapshot,
// runs the derivation engines after each change, persists through the storage
// adapter and fans the committed snapshot out to subscribers.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finledger/internal/core"
	"finledger/internal/storage"
)

var ErrNoSession = errors.New("no active session")

// RemoteReader hydrates a full snapshot from the remote replica.
type RemoteReader interface {
	FetchAll(ctx context.Context, ownerID string) (core.Snapshot, error)
}

// Ledger coordinates one user session at a time. Every mutation follows the
// same path: validate, apply to a working copy, rerun the derivation engines,
// persist, and only then commit the copy and notify subscribers. A failed
// persist leaves the in-memory state untouched.
type Ledger struct {
	store  *storage.Store
	remote RemoteReader

	mu      sync.Mutex
	userID  string
	state   core.Snapshot
	subs    map[int]func(core.Snapshot)
	nextSub int
}

func NewLedger(store *storage.Store) *Ledger {
	return &Ledger{
		store: store,
		subs:  make(map[int]func(core.Snapshot)),
	}
}

// SetRemote attaches the replica used by PullRemote. Pass nil to detach.
func (l *Ledger) SetRemote(r RemoteReader) {
	l.remote = r
}

// Open loads the owner's collections from the durable store and recomputes
// the derived fields, so a stale or hand-edited store self-heals on load.
func (l *Ledger) Open(ctx context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	accounts, err := l.store.Accounts(ctx, userID)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	categories, err := l.store.Categories(ctx)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	transactions, err := l.store.Transactions(ctx, userID)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	budgets, err := l.store.Budgets(ctx, userID)
	if err != nil {
		return fmt.Errorf("load budgets: %w", err)
	}

	l.userID = userID
	l.state = core.Snapshot{
		Accounts:     core.RecomputeBalances(accounts, transactions),
		Categories:   categories,
		Transactions: transactions,
		Budgets:      core.RecomputeSpent(transactions, budgets),
	}
	return nil
}

// Close ends the session and erases the durable store, matching the logout
// contract: nothing of the user's data survives locally.
func (l *Ledger) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.userID = ""
	l.state = core.Snapshot{}
	return l.store.Clear(ctx)
}

// Subscribe registers a callback invoked with a copy of the snapshot after
// every committed mutation. The returned function unsubscribes.
func (l *Ledger) Subscribe(fn func(core.Snapshot)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subs, id)
	}
}

// Snapshot returns a copy of the committed state.
func (l *Ledger) Snapshot() core.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return copySnapshot(l.state)
}

// FilteredTransactions applies the filter to the committed transaction list,
// preserving insertion order.
func (l *Ledger) FilteredTransactions(filter core.TransactionFilter) []core.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return core.FilterTransactions(l.state.Transactions, filter)
}

// Stats aggregates the committed state into dashboard figures for the month.
func (l *Ledger) Stats(month core.Month) core.DashboardStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return core.ComputeDashboardStats(l.state.Accounts, l.state.Transactions, l.state.Categories, month)
}

type CreateAccountParams struct {
	Name           string
	Type           core.AccountType
	Currency       string
	OpeningBalance decimal.Decimal
}

func (l *Ledger) CreateAccount(ctx context.Context, params CreateAccountParams) (core.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.userID == "" {
		return core.Account{}, ErrNoSession
	}

	now := time.Now().UTC()
	account := core.Account{
		ID:             uuid.NewString(),
		UserID:         l.userID,
		Name:           params.Name,
		Type:           params.Type,
		Currency:       params.Currency,
		OpeningBalance: params.OpeningBalance,
		CurrentBalance: params.OpeningBalance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := account.Validate(); err != nil {
		return core.Account{}, err
	}

	next := copySnapshot(l.state)
	next.Accounts = append(next.Accounts, account)
	if err := l.commitAccounts(ctx, next); err != nil {
		return core.Account{}, err
	}
	return l.accountByID(account.ID), nil
}

type UpdateAccountParams struct {
	Name           *string
	Type           *core.AccountType
	Currency       *string
	OpeningBalance *decimal.Decimal
}

func (l *Ledger) UpdateAccount(ctx context.Context, id string, params UpdateAccountParams) (core.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.userID == "" {
		return core.Account{}, ErrNoSession
	}

	next := copySnapshot(l.state)
	idx := accountIndex(next.Accounts, id)
	if idx < 0 {
		return core.Account{}, fmt.Errorf("account %s: %w", id, core.ErrNotFound)
	}

	account := next.Accounts[idx]
	if params.Name != nil {
		account.Name = *params.Name
	}
	if params.Type != nil {
		account.Type = *params.Type
	}
	if params.Currency != nil {
		account.Currency = *params.Currency
	}
	if params.OpeningBalance != nil {
		account.OpeningBalance = *params.OpeningBalance
	}
	account.UpdatedAt = time.Now().UTC()
	if err := account.Validate(); err != nil {
		return core.Account{}, err
	}

	next.Accounts[idx] = account
	if err := l.commitAccounts(ctx, next); err != nil {
		return core.Account{}, err
	}
	return l.accountByID(id), nil
}

// DeleteAccount removes the account. Transactions that referenced it keep
// their dangling reference; the balance engine simply stops finding a match.
func (l *Ledger) DeleteAccount(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.userID == "" {
		return ErrNoSession
	}

	next := copySnapshot(l.state)
	idx := accountIndex(next.Accounts, id)
	if idx < 0 {
		return fmt.Errorf("account %s: %w", id, core.ErrNotFound)
	}
	next.Accounts = append(next.Accounts[:idx], next.Accounts[idx+1:]...)
	return l.commitAccounts(ctx, next)
}

type CreateCategoryParams struct {
	Name     string
	ParentID *string
	Color    string
	Icon     string
}

func (l *Ledger) CreateCategory(ctx context.Context, params CreateCategoryParams) (core.Category, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.userID == "" {
		return core.Category{}, ErrNoSession
	}

	category := core.Category{
		ID:        uuid.NewString(),
		Name:      params.Name,
		ParentID:  params.ParentID,
		Color:     params.Color,
		Icon:      params.Icon,
		CreatedAt: time.Now().UTC(),
	}
	if err := category.Validate(); err != nil {
		return core.Category{}, err
	}

	next := copySnapshot(l.state)
	next.Categories = append(next.Categories, category)
	if err := l.commitCategories(ctx, next); err != nil {
		return core.Category{}, err
	}
	return category, nil
}

type UpdateCategoryParams struct {
	Name  *string
	Color *string
	Icon  *string
}

func (l *Ledger) UpdateCategory(ctx context.Context, id string, params UpdateCategoryParams) (core.Category, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.userID == "" {
		return core.Category{}, ErrNoSession
	}

	next := copySnapshot(l.state)
	idx := categoryIndex(next.Categories, id)
	if idx < 0 {
		return core.Category{}, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}

	category := next.Categories[idx]
	if params.Name != nil {
		category.Name = *params.Name
	}
	if params.Color != nil {
		category.Color = *params.Color
	}
	if params.Icon != nil {
		category.Icon = *params.Icon
	}
	if err := category.Validate(); err != nil {
		return core.Category{}, err
	}

	next.Categories[idx] = category
	if err := l.commitCategories(ctx, next); err != nil {
		return core.Category{}, err
	}
	return category, nil
}

// DeleteCategory removes the category without touching transactions or
// budgets that reference it. Dangling references resolve to a fallback label
// at display time and global budgets keep aggregating as before.
func (l *Ledger) DeleteCategory(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.userID == "" {
		return ErrNoSession
	}

	next := copySnapshot(l.state)
	idx := categoryIndex(next.Categories, id)
	if idx < 0 {
		return fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	next.Categories = append(next.Categories[:idx], next.Categories[idx+1:]...)
	return l.commitCategories(ctx, next)
}

type CreateTransactionParams struct {
	Date          time.Time
	AccountID     string
	ToAccountID   *string
	Type          core.TransactionType
	CategoryID    *string
	Amount        decimal.Decimal
	Note          string
	Tags          []string
	AttachmentURL *string
}

func (l *Ledger) CreateTransaction(ctx context.Context, params CreateTransactionParams) (core.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.userID == "" {
		return core.Transaction{}, ErrNoSession
	}

	now := time.Now().UTC()
	txn := core.Transaction{
		ID:            uuid.NewString(),
		UserID:        l.userID,
		Date:          params.Date,
		AccountID:     params.AccountID,
		ToAccountID:   params.ToAccountID,
		Type:          params.Type,
		CategoryID:    params.CategoryID,
		Amount:        params.Amount,
		Note:          params.Note,
		Tags:          params.Tags,
		AttachmentURL: params.AttachmentURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := txn.Validate(); err != nil {
		return core.Transaction{}, err
	}

	next := copySnapshot(l.state)
	next.Transactions = append(next.Transactions, txn)
	if err := l.commitTransactions(ctx, next); err != nil {
		return core.Transaction{}, err
	}
	return txn, nil
}

// UpdateTransactionParams patches a transaction. Nil fields are untouched.
// ClearCategory removes the category reference; changing the type away from
// transfer drops the destination account automatically.
type UpdateTransactionParams struct {
	Date          *time.Time
	AccountID     *string
	ToAccountID   *string
	Type          *core.TransactionType
	CategoryID    *string
	ClearCategory bool
	Amount        *decimal.Decimal
	Note          *string
	Tags          []string
	AttachmentURL *string
}

func (l *Ledger) UpdateTransaction(ctx context.Context, id string, params UpdateTransactionParams) (core.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.userID == "" {
		return core.Transaction{}, ErrNoSession
	}

	next := copySnapshot(l.state)
	idx := transactionIndex(next.Transactions, id)
	if idx < 0 {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}

	txn := next.Transactions[idx]
	if params.Date != nil {
		txn.Date = *params.Date
	}
	if params.AccountID != nil {
		txn.AccountID = *params.AccountID
	}
	if params.ToAccountID != nil {
		txn.ToAccountID = params.ToAccountID
	}
	if params.Type != nil {
		txn.Type = *params.Type
	}
	if txn.Type != core.TypeTransfer {
		txn.ToAccountID = nil
	}
	if params.ClearCategory {
		txn.CategoryID = nil
	} else if params.CategoryID != nil {
		txn.CategoryID = params.CategoryID
	}
	if params.Amount != nil {
		txn.Amount = *params.Amount
	}
	if params.Note != nil {
		txn.Note = *params.Note
	}
	if params.Tags != nil {
		txn.Tags = params.Tags
	}
	if params.AttachmentURL != nil {
		txn.AttachmentURL = params.AttachmentURL
	}
	txn.UpdatedAt = time.Now().UTC()
	if err := txn.Validate(); err != nil {
		return core.Transaction{}, err
	}

	next.Transactions[idx] = txn
	if err := l.commitTransactions(ctx, next); err != nil {
		return core.Transaction{}, err
	}
	return txn, nil
}

func (l *Ledger) DeleteTransaction(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.userID == "" {
		return ErrNoSession
	}

	next := copySnapshot(l.state)
	idx := transactionIndex(next.Transactions, id)
	if idx < 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	next.Transactions = append(next.Transactions[:idx], next.Transactions[idx+1:]...)
	return l.commitTransactions(ctx, next)
}

type CreateBudgetParams struct {
	Month      core.Month
	CategoryID *string
	Amount     decimal.Decimal
}

func (l *Ledger) CreateBudget(ctx context.Context, params CreateBudgetParams) (core.Budget, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.userID == "" {
		return core.Budget{}, ErrNoSession
	}

	now := time.Now().UTC()
	budget := core.Budget{
		ID:         uuid.NewString(),
		UserID:     l.userID,
		Month:      params.Month,
		CategoryID: params.CategoryID,
		Amount:     params.Amount,
		Spent:      decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := budget.Validate(); err != nil {
		return core.Budget{}, err
	}

	next := copySnapshot(l.state)
	next.Budgets = append(next.Budgets, budget)
	if err := l.commitBudgets(ctx, next); err != nil {
		return core.Budget{}, err
	}
	return l.budgetByID(budget.ID), nil
}

type UpdateBudgetParams struct {
	Month  *core.Month
	Amount *decimal.Decimal
}

func (l *Ledger) UpdateBudget(ctx context.Context, id string, params UpdateBudgetParams) (core.Budget, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.userID == "" {
		return core.Budget{}, ErrNoSession
	}

	next := copySnapshot(l.state)
	idx := budgetIndex(next.Budgets, id)
	if idx < 0 {
		return core.Budget{}, fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}

	budget := next.Budgets[idx]
	if params.Month != nil {
		budget.Month = *params.Month
	}
	if params.Amount != nil {
		budget.Amount = *params.Amount
	}
	budget.UpdatedAt = time.Now().UTC()
	if err := budget.Validate(); err != nil {
		return core.Budget{}, err
	}

	next.Budgets[idx] = budget
	if err := l.commitBudgets(ctx, next); err != nil {
		return core.Budget{}, err
	}
	return l.budgetByID(id), nil
}

func (l *Ledger) DeleteBudget(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.userID == "" {
		return ErrNoSession
	}

	next := copySnapshot(l.state)
	idx := budgetIndex(next.Budgets, id)
	if idx < 0 {
		return fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	next.Budgets = append(next.Budgets[:idx], next.Budgets[idx+1:]...)
	return l.commitBudgets(ctx, next)
}

// SeedIfEmpty installs the default categories and demo data when the session
// opens onto a completely empty ledger.
func (l *Ledger) SeedIfEmpty(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.userID == "" {
		return ErrNoSession
	}
	if len(l.state.Accounts) > 0 || len(l.state.Transactions) > 0 {
		return nil
	}

	next := core.SeedData(l.userID)
	if len(l.state.Categories) > 0 {
		next.Categories = copySlice(l.state.Categories)
	}
	return l.commitAll(ctx, next)
}

// PullRemote replaces the local state with the remote replica's copy, writes
// it through the store and publishes the hydrated snapshot.
func (l *Ledger) PullRemote(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.userID == "" {
		return ErrNoSession
	}
	if l.remote == nil {
		return errors.New("no remote configured")
	}

	snapshot, err := l.remote.FetchAll(ctx, l.userID)
	if err != nil {
		return fmt.Errorf("fetch remote snapshot: %w", err)
	}
	return l.commitAll(ctx, snapshot)
}

// commitAll rederives, persists all four collections and commits.
func (l *Ledger) commitAll(ctx context.Context, next core.Snapshot) error {
	next.Accounts = core.RecomputeBalances(next.Accounts, next.Transactions)
	next.Budgets = core.RecomputeSpent(next.Transactions, next.Budgets)

	if err := l.store.WriteCategories(ctx, next.Categories); err != nil {
		return err
	}
	if err := l.store.WriteTransactions(ctx, l.userID, next.Transactions); err != nil {
		return err
	}
	if err := l.store.WriteAccounts(ctx, l.userID, next.Accounts); err != nil {
		return err
	}
	if err := l.store.WriteBudgets(ctx, l.userID, next.Budgets); err != nil {
		return err
	}
	l.commit(next)
	return nil
}

// commitTransactions persists a transaction change along with both derived
// collections, then commits. Persist failures leave the committed state as
// it was.
func (l *Ledger) commitTransactions(ctx context.Context, next core.Snapshot) error {
	next.Accounts = core.RecomputeBalances(next.Accounts, next.Transactions)
	next.Budgets = core.RecomputeSpent(next.Transactions, next.Budgets)

	if err := l.store.WriteTransactions(ctx, l.userID, next.Transactions); err != nil {
		return err
	}
	if err := l.store.WriteAccounts(ctx, l.userID, next.Accounts); err != nil {
		return err
	}
	if err := l.store.WriteBudgets(ctx, l.userID, next.Budgets); err != nil {
		return err
	}
	l.commit(next)
	return nil
}

func (l *Ledger) commitAccounts(ctx context.Context, next core.Snapshot) error {
	next.Accounts = core.RecomputeBalances(next.Accounts, next.Transactions)

	if err := l.store.WriteAccounts(ctx, l.userID, next.Accounts); err != nil {
		return err
	}
	l.commit(next)
	return nil
}

func (l *Ledger) commitCategories(ctx context.Context, next core.Snapshot) error {
	if err := l.store.WriteCategories(ctx, next.Categories); err != nil {
		return err
	}
	l.commit(next)
	return nil
}

func (l *Ledger) commitBudgets(ctx context.Context, next core.Snapshot) error {
	next.Budgets = core.RecomputeSpent(next.Transactions, next.Budgets)

	if err := l.store.WriteBudgets(ctx, l.userID, next.Budgets); err != nil {
		return err
	}
	l.commit(next)
	return nil
}

// commit swaps in the new state and notifies subscribers. Called with the
// mutex held; each subscriber gets its own copy.
func (l *Ledger) commit(next core.Snapshot) {
	l.state = next
	for _, fn := range l.subs {
		fn(copySnapshot(next))
	}
}

func (l *Ledger) accountByID(id string) core.Account {
	if idx := accountIndex(l.state.Accounts, id); idx >= 0 {
		return l.state.Accounts[idx]
	}
	return core.Account{}
}

func (l *Ledger) budgetByID(id string) core.Budget {
	if idx := budgetIndex(l.state.Budgets, id); idx >= 0 {
		return l.state.Budgets[idx]
	}
	return core.Budget{}
}

func accountIndex(accounts []core.Account, id string) int {
	for i, a := range accounts {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func categoryIndex(categories []core.Category, id string) int {
	for i, c := range categories {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func transactionIndex(transactions []core.Transaction, id string) int {
	for i, t := range transactions {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func budgetIndex(budgets []core.Budget, id string) int {
	for i, b := range budgets {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func copySnapshot(s core.Snapshot) core.Snapshot {
	return core.Snapshot{
		Accounts:     copySlice(s.Accounts),
		Categories:   copySlice(s.Categories),
		Transactions: copySlice(s.Transactions),
		Budgets:      copySlice(s.Budgets),
	}
}

func copySlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
