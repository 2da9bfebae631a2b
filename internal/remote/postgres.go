// Package remote is the optional relational replica: one table per
// collection, every row carrying its owning user, upserts keyed by entity id
// with last-writer-wins semantics. It is eventually consistent with the local
// store and is read back only to hydrate a fresh device.
package remote

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"finledger/internal/core"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	db *sqlx.DB
}

func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ReplaceAccounts brings one owner's remote slice in step with the local one:
// rows the owner no longer has are deleted, the rest are upserted by id.
func (s *Store) ReplaceAccounts(ctx context.Context, ownerID string, accounts []core.Account) error {
	return s.replaceSlice(ctx, "accounts", ownerID, entityIDs(accounts, func(a core.Account) string { return a.ID }),
		func(tx *sqlx.Tx) error {
			for _, a := range accounts {
				_, err := tx.ExecContext(ctx, `
					INSERT INTO accounts (id, user_id, name, type, currency, opening_balance, current_balance, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
					ON CONFLICT (id) DO UPDATE SET
						user_id = EXCLUDED.user_id,
						name = EXCLUDED.name,
						type = EXCLUDED.type,
						currency = EXCLUDED.currency,
						opening_balance = EXCLUDED.opening_balance,
						current_balance = EXCLUDED.current_balance,
						updated_at = EXCLUDED.updated_at`,
					a.ID, a.UserID, a.Name, string(a.Type), a.Currency,
					a.OpeningBalance, a.CurrentBalance, a.CreatedAt, a.UpdatedAt)
				if err != nil {
					return fmt.Errorf("upsert account %s: %w", a.ID, err)
				}
			}
			return nil
		})
}

// ReplaceCategories replaces the global category collection.
func (s *Store) ReplaceCategories(ctx context.Context, categories []core.Category) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM categories"); err != nil {
		return fmt.Errorf("delete categories: %w", err)
	}
	for _, c := range categories {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO categories (id, name, parent_id, color, icon, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				parent_id = EXCLUDED.parent_id,
				color = EXCLUDED.color,
				icon = EXCLUDED.icon`,
			c.ID, c.Name, c.ParentID, c.Color, c.Icon, c.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert category %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// ReplaceTransactions brings one owner's remote transaction slice in step
// with the local one.
func (s *Store) ReplaceTransactions(ctx context.Context, ownerID string, transactions []core.Transaction) error {
	return s.replaceSlice(ctx, "transactions", ownerID, entityIDs(transactions, func(t core.Transaction) string { return t.ID }),
		func(tx *sqlx.Tx) error {
			for _, t := range transactions {
				tags, err := json.Marshal(t.Tags)
				if err != nil {
					return fmt.Errorf("marshal tags for %s: %w", t.ID, err)
				}
				_, err = tx.ExecContext(ctx, `
					INSERT INTO transactions (id, user_id, date, account_id, to_account_id, type, category_id, amount, note, tags, attachment_url, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
					ON CONFLICT (id) DO UPDATE SET
						user_id = EXCLUDED.user_id,
						date = EXCLUDED.date,
						account_id = EXCLUDED.account_id,
						to_account_id = EXCLUDED.to_account_id,
						type = EXCLUDED.type,
						category_id = EXCLUDED.category_id,
						amount = EXCLUDED.amount,
						note = EXCLUDED.note,
						tags = EXCLUDED.tags,
						attachment_url = EXCLUDED.attachment_url,
						updated_at = EXCLUDED.updated_at`,
					t.ID, t.UserID, t.Date, t.AccountID, t.ToAccountID, string(t.Type),
					t.CategoryID, t.Amount, t.Note, string(tags), t.AttachmentURL,
					t.CreatedAt, t.UpdatedAt)
				if err != nil {
					return fmt.Errorf("upsert transaction %s: %w", t.ID, err)
				}
			}
			return nil
		})
}

// ReplaceBudgets brings one owner's remote budget slice in step with the
// local one.
func (s *Store) ReplaceBudgets(ctx context.Context, ownerID string, budgets []core.Budget) error {
	return s.replaceSlice(ctx, "budgets", ownerID, entityIDs(budgets, func(b core.Budget) string { return b.ID }),
		func(tx *sqlx.Tx) error {
			for _, b := range budgets {
				_, err := tx.ExecContext(ctx, `
					INSERT INTO budgets (id, user_id, month, category_id, amount, spent, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
					ON CONFLICT (id) DO UPDATE SET
						user_id = EXCLUDED.user_id,
						month = EXCLUDED.month,
						category_id = EXCLUDED.category_id,
						amount = EXCLUDED.amount,
						spent = EXCLUDED.spent,
						updated_at = EXCLUDED.updated_at`,
					b.ID, b.UserID, b.Month.String(), b.CategoryID, b.Amount, b.Spent,
					b.CreatedAt, b.UpdatedAt)
				if err != nil {
					return fmt.Errorf("upsert budget %s: %w", b.ID, err)
				}
			}
			return nil
		})
}

// replaceSlice deletes the owner's rows that are absent from keep, then runs
// the per-row upserts, all in one transaction.
func (s *Store) replaceSlice(ctx context.Context, table, ownerID string, keep []string, upserts func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if len(keep) == 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE user_id = $1", ownerID); err != nil {
			return fmt.Errorf("delete owner rows: %w", err)
		}
	} else {
		query, args, err := sqlx.In(
			"DELETE FROM "+table+" WHERE user_id = ? AND id NOT IN (?)", ownerID, keep)
		if err != nil {
			return fmt.Errorf("build delete: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("delete removed rows: %w", err)
		}
	}

	if err := upserts(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func entityIDs[T any](entities []T, id func(T) string) []string {
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = id(e)
	}
	return ids
}

type accountRow struct {
	ID             string          `db:"id"`
	UserID         string          `db:"user_id"`
	Name           string          `db:"name"`
	Type           string          `db:"type"`
	Currency       string          `db:"currency"`
	OpeningBalance decimal.Decimal `db:"opening_balance"`
	CurrentBalance decimal.Decimal `db:"current_balance"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

type categoryRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	ParentID  *string   `db:"parent_id"`
	Color     string    `db:"color"`
	Icon      string    `db:"icon"`
	CreatedAt time.Time `db:"created_at"`
}

type transactionRow struct {
	ID            string          `db:"id"`
	UserID        string          `db:"user_id"`
	Date          time.Time       `db:"date"`
	AccountID     string          `db:"account_id"`
	ToAccountID   *string         `db:"to_account_id"`
	Type          string          `db:"type"`
	CategoryID    *string         `db:"category_id"`
	Amount        decimal.Decimal `db:"amount"`
	Note          string          `db:"note"`
	Tags          []byte          `db:"tags"`
	AttachmentURL *string         `db:"attachment_url"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

type budgetRow struct {
	ID         string          `db:"id"`
	UserID     string          `db:"user_id"`
	Month      string          `db:"month"`
	CategoryID *string         `db:"category_id"`
	Amount     decimal.Decimal `db:"amount"`
	Spent      decimal.Decimal `db:"spent"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

// FetchAll pulls one user's four collections from the replica, used to
// hydrate local state after authenticating on a new device. Categories are
// global and come back in full.
func (s *Store) FetchAll(ctx context.Context, ownerID string) (core.Snapshot, error) {
	var snap core.Snapshot

	var accountRows []accountRow
	if err := s.db.SelectContext(ctx, &accountRows,
		"SELECT * FROM accounts WHERE user_id = $1 ORDER BY created_at, id", ownerID); err != nil {
		return snap, fmt.Errorf("fetch accounts: %w", err)
	}
	for _, r := range accountRows {
		snap.Accounts = append(snap.Accounts, core.Account{
			ID: r.ID, UserID: r.UserID, Name: r.Name, Type: core.AccountType(r.Type),
			Currency: r.Currency, OpeningBalance: r.OpeningBalance, CurrentBalance: r.CurrentBalance,
			CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
		})
	}

	var categoryRows []categoryRow
	if err := s.db.SelectContext(ctx, &categoryRows,
		"SELECT * FROM categories ORDER BY created_at, id"); err != nil {
		return snap, fmt.Errorf("fetch categories: %w", err)
	}
	for _, r := range categoryRows {
		snap.Categories = append(snap.Categories, core.Category{
			ID: r.ID, Name: r.Name, ParentID: r.ParentID, Color: r.Color, Icon: r.Icon,
			CreatedAt: r.CreatedAt,
		})
	}

	var transactionRows []transactionRow
	if err := s.db.SelectContext(ctx, &transactionRows,
		"SELECT * FROM transactions WHERE user_id = $1 ORDER BY created_at, id", ownerID); err != nil {
		return snap, fmt.Errorf("fetch transactions: %w", err)
	}
	for _, r := range transactionRows {
		var tags []string
		if len(r.Tags) > 0 {
			if err := json.Unmarshal(r.Tags, &tags); err != nil {
				return snap, fmt.Errorf("decode tags for %s: %w", r.ID, err)
			}
		}
		snap.Transactions = append(snap.Transactions, core.Transaction{
			ID: r.ID, UserID: r.UserID, Date: r.Date, AccountID: r.AccountID,
			ToAccountID: r.ToAccountID, Type: core.TransactionType(r.Type),
			CategoryID: r.CategoryID, Amount: r.Amount, Note: r.Note, Tags: tags,
			AttachmentURL: r.AttachmentURL, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
		})
	}

	var budgetRows []budgetRow
	if err := s.db.SelectContext(ctx, &budgetRows,
		"SELECT * FROM budgets WHERE user_id = $1 ORDER BY created_at, id", ownerID); err != nil {
		return snap, fmt.Errorf("fetch budgets: %w", err)
	}
	for _, r := range budgetRows {
		month, err := core.ParseMonth(r.Month)
		if err != nil {
			return snap, fmt.Errorf("decode month for %s: %w", r.ID, err)
		}
		snap.Budgets = append(snap.Budgets, core.Budget{
			ID: r.ID, UserID: r.UserID, Month: month, CategoryID: r.CategoryID,
			Amount: r.Amount, Spent: r.Spent, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
		})
	}

	return snap, nil
}
