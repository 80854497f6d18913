package migrations

import (
	"context"

	"github.com/mfenderov/ledgerkit/internal/schema"
)

func init() {
	register(1, "create users", upCreateUsers, downCreateUsers)
}

var createUsers = map[schema.Dialect][]string{
	schema.Postgres: {`
		CREATE TABLE users (
			id BIGSERIAL PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			password VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	},
	schema.SQLite: {`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	},
}

func upCreateUsers(ctx context.Context, ed schema.Editor, _ Options) error {
	return execStatements(ctx, ed, createUsers[ed.Dialect()])
}

func downCreateUsers(ctx context.Context, ed schema.Editor, _ Options) error {
	_, err := ed.Exec(ctx, `DROP TABLE IF EXISTS users`)
	return err
}
