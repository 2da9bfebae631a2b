// Package storage is the durable persistence adapter: an owner-partitioned
// SQLite store for the four ledger collections plus the session singletons,
// with an optional best-effort mirror hook that replicates every write to a
// remote store without ever blocking or failing the local write.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"finledger/internal/core"

	_ "modernc.org/sqlite"
)

const (
	keySessionUser  = "user"
	keySessionToken = "token"
	keyTheme        = "theme"
)

// Mirror receives a copy of every successful local write. Implementations are
// expected to replicate asynchronously; errors are logged and swallowed by
// the store, never surfaced to the caller.
type Mirror interface {
	MirrorAccounts(ctx context.Context, ownerID string, accounts []core.Account) error
	MirrorCategories(ctx context.Context, categories []core.Category) error
	MirrorTransactions(ctx context.Context, ownerID string, transactions []core.Transaction) error
	MirrorBudgets(ctx context.Context, ownerID string, budgets []core.Budget) error
}

type Store struct {
	db     *sql.DB
	mirror Mirror
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// sqlite allows a single writer; one pooled connection serializes
	// concurrent handlers instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// SetMirror attaches the best-effort replication hook. Pass nil to detach.
func (s *Store) SetMirror(m Mirror) {
	s.mirror = m
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Clear erases every durable key for the current session: all four
// collections, all users and the session singletons. Used on logout and
// reset-to-empty flows.
func (s *Store) Clear(ctx context.Context) error {
	tables := []string{"budgets", "transactions", "categories", "accounts", "users", "settings"}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer tx.Rollback()

	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}

	slog.InfoContext(ctx, "Durable store cleared")
	return nil
}

// Accounts returns the owner's slice of the shared account collection. Read
// failures degrade to an empty collection rather than surfacing; the durable
// copy stays authoritative and the caller starts from scratch.
func (s *Store) Accounts(ctx context.Context, ownerID string) ([]core.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, type, currency, opening_balance, current_balance, created_at, updated_at
		FROM accounts WHERE user_id = ? ORDER BY created_at, id`, ownerID)
	if err != nil {
		slog.WarnContext(ctx, "Read accounts failed, treating as empty", "owner", ownerID, "error", err)
		return nil, nil
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var (
			a                core.Account
			opening, current string
			created, updated string
			kind             string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &kind, &a.Currency, &opening, &current, &created, &updated); err != nil {
			slog.WarnContext(ctx, "Scan account failed, treating as empty", "error", err)
			return nil, nil
		}
		a.Type = core.AccountType(kind)
		if a.OpeningBalance, err = parseDecimal(opening); err != nil {
			slog.WarnContext(ctx, "Parse account balance failed, treating as empty", "error", err)
			return nil, nil
		}
		if a.CurrentBalance, err = parseDecimal(current); err != nil {
			slog.WarnContext(ctx, "Parse account balance failed, treating as empty", "error", err)
			return nil, nil
		}
		a.CreatedAt = parseTime(created)
		a.UpdatedAt = parseTime(updated)
		accounts = append(accounts, a)
	}
	return accounts, nil
}

// WriteAccounts replaces exactly one owner's slice of the shared account
// collection, leaving every other owner's records untouched. An empty slice
// erases the owner's records.
func (s *Store) WriteAccounts(ctx context.Context, ownerID string, accounts []core.Account) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM accounts WHERE user_id = ?", ownerID); err != nil {
			return fmt.Errorf("delete owner accounts: %w", err)
		}
		for _, a := range accounts {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO accounts (id, user_id, name, type, currency, opening_balance, current_balance, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				a.ID, a.UserID, a.Name, string(a.Type), a.Currency,
				a.OpeningBalance.String(), a.CurrentBalance.String(),
				formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
			if err != nil {
				return fmt.Errorf("insert account %s: %w", a.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write accounts: %w", err)
	}

	s.dispatchMirror("accounts", func(ctx context.Context) error {
		return s.mirror.MirrorAccounts(ctx, ownerID, accounts)
	})
	return nil
}

// CreateAccount appends a single account row. Unlike WriteAccounts it never
// rewrites the owner's slice, so concurrent creates for the same owner cannot
// interleave a stale read back in.
func (s *Store) CreateAccount(ctx context.Context, account core.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, name, type, currency, opening_balance, current_balance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID, account.UserID, account.Name, string(account.Type), account.Currency,
		account.OpeningBalance.String(), account.CurrentBalance.String(),
		formatTime(account.CreatedAt), formatTime(account.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert account %s: %w", account.ID, err)
	}

	// The mirror contract is whole owner slices; skip the dispatch when the
	// readback degrades rather than erase the remote slice.
	if accounts, _ := s.Accounts(ctx, account.UserID); len(accounts) > 0 {
		s.dispatchMirror("accounts", func(ctx context.Context) error {
			return s.mirror.MirrorAccounts(ctx, account.UserID, accounts)
		})
	}
	return nil
}

// Categories returns the whole category collection; categories are global and
// not partitioned by owner.
func (s *Store) Categories(ctx context.Context) ([]core.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, parent_id, color, icon, created_at
		FROM categories ORDER BY created_at, id`)
	if err != nil {
		slog.WarnContext(ctx, "Read categories failed, treating as empty", "error", err)
		return nil, nil
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var (
			c       core.Category
			parent  sql.NullString
			created string
		)
		if err := rows.Scan(&c.ID, &c.Name, &parent, &c.Color, &c.Icon, &created); err != nil {
			slog.WarnContext(ctx, "Scan category failed, treating as empty", "error", err)
			return nil, nil
		}
		c.ParentID = nullableString(parent)
		c.CreatedAt = parseTime(created)
		categories = append(categories, c)
	}
	return categories, nil
}

// WriteCategories replaces the whole global category collection.
func (s *Store) WriteCategories(ctx context.Context, categories []core.Category) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM categories"); err != nil {
			return fmt.Errorf("delete categories: %w", err)
		}
		for _, c := range categories {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO categories (id, name, parent_id, color, icon, created_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				c.ID, c.Name, nullString(c.ParentID), c.Color, c.Icon, formatTime(c.CreatedAt))
			if err != nil {
				return fmt.Errorf("insert category %s: %w", c.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write categories: %w", err)
	}

	s.dispatchMirror("categories", func(ctx context.Context) error {
		return s.mirror.MirrorCategories(ctx, categories)
	})
	return nil
}

// Transactions returns the owner's slice of the shared transaction
// collection, in insertion order.
func (s *Store) Transactions(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, date, account_id, to_account_id, type, category_id, amount, note, tags, attachment_url, created_at, updated_at
		FROM transactions WHERE user_id = ? ORDER BY created_at, id`, ownerID)
	if err != nil {
		slog.WarnContext(ctx, "Read transactions failed, treating as empty", "owner", ownerID, "error", err)
		return nil, nil
	}
	defer rows.Close()

	var transactions []core.Transaction
	for rows.Next() {
		var (
			t                      core.Transaction
			date, amount           string
			toAccount, category    sql.NullString
			attachment             sql.NullString
			tags, created, updated string
			kind                   string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &date, &t.AccountID, &toAccount, &kind, &category,
			&amount, &t.Note, &tags, &attachment, &created, &updated); err != nil {
			slog.WarnContext(ctx, "Scan transaction failed, treating as empty", "error", err)
			return nil, nil
		}
		t.Date = parseTime(date)
		t.ToAccountID = nullableString(toAccount)
		t.Type = core.TransactionType(kind)
		t.CategoryID = nullableString(category)
		if t.Amount, err = parseDecimal(amount); err != nil {
			slog.WarnContext(ctx, "Parse transaction amount failed, treating as empty", "error", err)
			return nil, nil
		}
		if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
			slog.WarnContext(ctx, "Parse transaction tags failed, treating as empty", "error", err)
			return nil, nil
		}
		t.AttachmentURL = nullableString(attachment)
		t.CreatedAt = parseTime(created)
		t.UpdatedAt = parseTime(updated)
		transactions = append(transactions, t)
	}
	return transactions, nil
}

// WriteTransactions replaces one owner's slice of the shared transaction
// collection.
func (s *Store) WriteTransactions(ctx context.Context, ownerID string, transactions []core.Transaction) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM transactions WHERE user_id = ?", ownerID); err != nil {
			return fmt.Errorf("delete owner transactions: %w", err)
		}
		for _, t := range transactions {
			tags, err := json.Marshal(tagsOrEmpty(t.Tags))
			if err != nil {
				return fmt.Errorf("marshal tags for %s: %w", t.ID, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO transactions (id, user_id, date, account_id, to_account_id, type, category_id, amount, note, tags, attachment_url, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				t.ID, t.UserID, formatTime(t.Date), t.AccountID, nullString(t.ToAccountID),
				string(t.Type), nullString(t.CategoryID), t.Amount.String(), t.Note,
				string(tags), nullString(t.AttachmentURL), formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
			if err != nil {
				return fmt.Errorf("insert transaction %s: %w", t.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write transactions: %w", err)
	}

	s.dispatchMirror("transactions", func(ctx context.Context) error {
		return s.mirror.MirrorTransactions(ctx, ownerID, transactions)
	})
	return nil
}

// Budgets returns the owner's slice of the shared budget collection.
func (s *Store) Budgets(ctx context.Context, ownerID string) ([]core.Budget, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, month, category_id, amount, spent, created_at, updated_at
		FROM budgets WHERE user_id = ? ORDER BY created_at, id`, ownerID)
	if err != nil {
		slog.WarnContext(ctx, "Read budgets failed, treating as empty", "owner", ownerID, "error", err)
		return nil, nil
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		var (
			b                    core.Budget
			month, amount, spent string
			category             sql.NullString
			created, updated     string
		)
		if err := rows.Scan(&b.ID, &b.UserID, &month, &category, &amount, &spent, &created, &updated); err != nil {
			slog.WarnContext(ctx, "Scan budget failed, treating as empty", "error", err)
			return nil, nil
		}
		parsedMonth, err := core.ParseMonth(month)
		if err != nil {
			slog.WarnContext(ctx, "Parse budget month failed, treating as empty", "error", err)
			return nil, nil
		}
		b.Month = parsedMonth
		b.CategoryID = nullableString(category)
		if b.Amount, err = parseDecimal(amount); err != nil {
			slog.WarnContext(ctx, "Parse budget amount failed, treating as empty", "error", err)
			return nil, nil
		}
		if b.Spent, err = parseDecimal(spent); err != nil {
			slog.WarnContext(ctx, "Parse budget spent failed, treating as empty", "error", err)
			return nil, nil
		}
		b.CreatedAt = parseTime(created)
		b.UpdatedAt = parseTime(updated)
		budgets = append(budgets, b)
	}
	return budgets, nil
}

// WriteBudgets replaces one owner's slice of the shared budget collection.
func (s *Store) WriteBudgets(ctx context.Context, ownerID string, budgets []core.Budget) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM budgets WHERE user_id = ?", ownerID); err != nil {
			return fmt.Errorf("delete owner budgets: %w", err)
		}
		for _, b := range budgets {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO budgets (id, user_id, month, category_id, amount, spent, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				b.ID, b.UserID, b.Month.String(), nullString(b.CategoryID),
				b.Amount.String(), b.Spent.String(), formatTime(b.CreatedAt), formatTime(b.UpdatedAt))
			if err != nil {
				return fmt.Errorf("insert budget %s: %w", b.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write budgets: %w", err)
	}

	s.dispatchMirror("budgets", func(ctx context.Context) error {
		return s.mirror.MirrorBudgets(ctx, ownerID, budgets)
	})
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// dispatchMirror runs the replication leg fire-and-forget: the local write
// has already committed, the caller never waits, and failures are logged and
// dropped. A crash between the local commit and this publish silently skips
// the mirror write, which is acceptable for a best-effort replica.
func (s *Store) dispatchMirror(kind string, fn func(ctx context.Context) error) {
	if s.mirror == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			slog.WarnContext(ctx, "Mirror write failed", "kind", kind, "error", err)
		}
	}()
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
