package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// BalanceType says whether an account counts toward the balance sheet.
type BalanceType string

const (
	OnBalanceSheet  BalanceType = "on_balance_sheet"
	OffBalanceSheet BalanceType = "off_balance_sheet"
)

// ErrInvalidBalanceType is returned for balance types outside the enum.
var ErrInvalidBalanceType = errors.New("invalid balance type")

// ParseBalanceType accepts the two enum values; "" means on balance sheet.
func ParseBalanceType(s string) (BalanceType, error) {
	switch BalanceType(strings.ToLower(strings.TrimSpace(s))) {
	case "", OnBalanceSheet:
		return OnBalanceSheet, nil
	case OffBalanceSheet:
		return OffBalanceSheet, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidBalanceType, s)
}

// Account is a row of the accounts table.
type Account struct {
	ID           int64       `db:"id"`
	UserID       int64       `db:"user_id"`
	Name         string      `db:"name"`
	BalanceCents int64       `db:"balance_cents"`
	BalanceType  BalanceType `db:"balance_type"`
	CreatedAt    time.Time   `db:"created_at"`
}

// NewAccount is the input to CreateAccount.
type NewAccount struct {
	UserID       int64
	Name         string
	BalanceCents int64
	BalanceType  BalanceType
}

const accountColumns = `id, user_id, name, balance_cents, balance_type, created_at`

// CreateAccount inserts an account for an existing user.
func (s *Store) CreateAccount(ctx context.Context, a NewAccount) (*Account, error) {
	balanceType, err := ParseBalanceType(string(a.BalanceType))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(a.Name) == "" {
		return nil, errors.New("account name is required")
	}

	var id int64
	query := s.db.Rebind(`
		INSERT INTO accounts (user_id, name, balance_cents, balance_type)
		VALUES (?, ?, ?, ?)
		RETURNING id`)
	err = s.db.GetContext(ctx, &id, query, a.UserID, strings.TrimSpace(a.Name), a.BalanceCents, string(balanceType))
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	var account Account
	query = s.db.Rebind(`SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`)
	if err := s.db.GetContext(ctx, &account, query, id); err != nil {
		return nil, fmt.Errorf("failed to read account: %w", err)
	}
	return &account, nil
}

// ListAccounts returns a user's accounts ordered by id.
func (s *Store) ListAccounts(ctx context.Context, userID int64) ([]Account, error) {
	var accounts []Account
	query := s.db.Rebind(`SELECT ` + accountColumns + ` FROM accounts WHERE user_id = ? ORDER BY id`)
	if err := s.db.SelectContext(ctx, &accounts, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// BalanceSheetTotal sums the balances of a user's on-balance-sheet accounts.
func (s *Store) BalanceSheetTotal(ctx context.Context, userID int64) (int64, error) {
	var total int64
	query := s.db.Rebind(`
		SELECT CAST(COALESCE(SUM(balance_cents), 0) AS BIGINT) FROM accounts
		WHERE user_id = ? AND balance_type = ?`)
	if err := s.db.GetContext(ctx, &total, query, userID, string(OnBalanceSheet)); err != nil {
		return 0, fmt.Errorf("failed to total balances: %w", err)
	}
	return total, nil
}
