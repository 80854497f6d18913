package migrations

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUp_00004(t *testing.T) {
	logger, buf := bufferLogger()
	db, p := applyUpToPrev(t, Options{Logger: logger})
	execNoErr(t, db, `INSERT INTO users (email, password) VALUES ('ada@example.com', 'secret')`)
	execNoErr(t, db, `INSERT INTO accounts (user_id, name) VALUES (1, 'checking'), (1, 'savings')`)

	applyNext(t, p)

	var types []string
	require.NoError(t, db.Select(&types, `SELECT balance_type FROM accounts ORDER BY id`))
	assert.Equal(t, []string{"on_balance_sheet", "on_balance_sheet"}, types)

	ctx := context.Background()
	info, ok, err := sqliteEditor(t, db).Column(ctx, "accounts", "balance_type")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, info.Nullable)
	assert.Equal(t, "'on_balance_sheet'", info.Default)
	assert.Equal(t, []string{"on_balance_sheet", "off_balance_sheet"}, info.Values)

	execNoErr(t, db, `INSERT INTO accounts (user_id, name, balance_type) VALUES (1, 'escrow', 'off_balance_sheet')`)
	_, err = db.Exec(`INSERT INTO accounts (user_id, name, balance_type) VALUES (1, 'bad', 'memo')`)
	require.Error(t, err)

	// The default covered every row, so the backfill had nothing to do.
	assert.NotContains(t, buf.String(), "Backfill updated rows")
}

func TestUp_00004_SkipBackfill(t *testing.T) {
	logger, buf := bufferLogger()
	db, p := applyUpToPrev(t, Options{SkipBackfill: true, Logger: logger})
	execNoErr(t, db, `INSERT INTO users (email, password) VALUES ('ada@example.com', 'secret')`)
	execNoErr(t, db, `INSERT INTO accounts (user_id, name) VALUES (1, 'checking')`)

	applyNext(t, p)

	var balanceType string
	require.NoError(t, db.Get(&balanceType, `SELECT balance_type FROM accounts`))
	assert.Equal(t, "on_balance_sheet", balanceType)
	assert.Contains(t, buf.String(), "Skipping backfill")
}

func TestDown_00004(t *testing.T) {
	db, p := applyUpTo(t, Options{})
	revertLast(t, p)

	ctx := context.Background()
	ed := sqliteEditor(t, db)

	_, ok, err := ed.Column(ctx, "accounts", "balance_type")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = ed.EnumValues(ctx, AccountBalanceTypeEnum)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAddAccountBalanceTypePostgres(t *testing.T) {
	ctx := context.Background()
	addColumn := func(mock sqlmock.Sqlmock) {
		mock.ExpectExec(regexp.QuoteMeta(`CREATE TYPE "enum_accounts_balance_type" AS ENUM ('on_balance_sheet', 'off_balance_sheet')`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "accounts" ADD COLUMN "balance_type" "enum_accounts_balance_type" NOT NULL DEFAULT 'on_balance_sheet'`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	t.Run("backfill touching rows is flagged", func(t *testing.T) {
		mock, ed := mockPostgresEditor(t)
		addColumn(mock)
		mock.ExpectExec(regexp.QuoteMeta(backfillBalanceType)).WillReturnResult(sqlmock.NewResult(0, 3))

		logger, buf := bufferLogger()
		require.NoError(t, upAddAccountBalanceType(ctx, ed, Options{Logger: logger}))
		require.NoError(t, mock.ExpectationsWereMet())
		assert.Contains(t, buf.String(), "Backfill updated rows")
		assert.Contains(t, buf.String(), "rows=3")
	})

	t.Run("skip backfill", func(t *testing.T) {
		mock, ed := mockPostgresEditor(t)
		addColumn(mock)

		logger, _ := bufferLogger()
		require.NoError(t, upAddAccountBalanceType(ctx, ed, Options{SkipBackfill: true, Logger: logger}))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("backfill failure surfaces", func(t *testing.T) {
		mock, ed := mockPostgresEditor(t)
		addColumn(mock)
		mock.ExpectExec(regexp.QuoteMeta(backfillBalanceType)).WillReturnError(assert.AnError)

		err := upAddAccountBalanceType(ctx, ed, Options{})
		require.ErrorIs(t, err, assert.AnError)
		assert.Contains(t, err.Error(), "backfill accounts.balance_type")
	})

	t.Run("down", func(t *testing.T) {
		mock, ed := mockPostgresEditor(t)
		mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "accounts" DROP COLUMN "balance_type"`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(`DROP TYPE IF EXISTS "enum_accounts_balance_type"`)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, downAddAccountBalanceType(ctx, ed, Options{}))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
