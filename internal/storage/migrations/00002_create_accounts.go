package migrations

import (
	"context"

	"github.com/mfenderov/ledgerkit/internal/schema"
)

func init() {
	register(2, "create accounts", upCreateAccounts, downCreateAccounts)
}

var createAccounts = map[schema.Dialect][]string{
	schema.Postgres: {
		`CREATE TABLE accounts (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			balance_cents BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX idx_accounts_user ON accounts(user_id)`,
	},
	schema.SQLite: {
		`CREATE TABLE accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			balance_cents INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX idx_accounts_user ON accounts(user_id)`,
	},
}

func upCreateAccounts(ctx context.Context, ed schema.Editor, _ Options) error {
	return execStatements(ctx, ed, createAccounts[ed.Dialect()])
}

func downCreateAccounts(ctx context.Context, ed schema.Editor, _ Options) error {
	_, err := ed.Exec(ctx, `DROP TABLE IF EXISTS accounts`)
	return err
}
