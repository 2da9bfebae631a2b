package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"finledger/internal/core"

	"github.com/shopspring/decimal"
)

// CreateUser inserts a new user row. The email column is unique; registering
// an existing address surfaces the constraint error to the caller.
func (s *Store) CreateUser(ctx context.Context, user core.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, currency, locale, theme, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, user.PasswordHash,
		user.Currency, user.Locale, string(user.Theme), formatTime(user.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UserByEmail returns nil without error when no user matches.
func (s *Store) UserByEmail(ctx context.Context, email string) (*core.User, error) {
	return s.userBy(ctx, "email", email)
}

// UserByID returns nil without error when no user matches.
func (s *Store) UserByID(ctx context.Context, id string) (*core.User, error) {
	return s.userBy(ctx, "id", id)
}

func (s *Store) userBy(ctx context.Context, column, value string) (*core.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, currency, locale, theme, created_at
		FROM users WHERE `+column+` = ?`, value)

	var (
		user    core.User
		theme   string
		created string
	)
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash,
		&user.Currency, &user.Locale, &theme, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user by %s: %w", column, err)
	}
	user.Theme = core.Theme(theme)
	user.CreatedAt = parseTime(created)
	return &user, nil
}

// SaveSession stores the active user and credential handle singletons.
func (s *Store) SaveSession(ctx context.Context, user core.User, token string) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal session user: %w", err)
	}
	if err := s.setSetting(ctx, keySessionUser, string(payload)); err != nil {
		return err
	}
	return s.setSetting(ctx, keySessionToken, token)
}

// SessionUser returns the persisted active user, or nil when no session is
// stored or the stored value cannot be decoded.
func (s *Store) SessionUser(ctx context.Context) (*core.User, error) {
	raw, ok := s.getSetting(ctx, keySessionUser)
	if !ok {
		return nil, nil
	}
	var user core.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, nil
	}
	return &user, nil
}

// SessionToken returns the persisted credential handle, empty when absent.
func (s *Store) SessionToken(ctx context.Context) string {
	raw, _ := s.getSetting(ctx, keySessionToken)
	return raw
}

func (s *Store) SaveTheme(ctx context.Context, theme core.Theme) error {
	return s.setSetting(ctx, keyTheme, string(theme))
}

// Theme returns the persisted theme preference, defaulting to light.
func (s *Store) Theme(ctx context.Context) core.Theme {
	raw, ok := s.getSetting(ctx, keyTheme)
	if !ok || raw == "" {
		return core.ThemeLight
	}
	return core.Theme(raw)
}

func (s *Store) setSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Store) getSetting(ctx context.Context, key string) (string, bool) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", false
	}
	return value, true
}

func parseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
