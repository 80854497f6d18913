package migrations

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mfenderov/ledgerkit/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUp_00003(t *testing.T) {
	db, p := applyUpToPrev(t, Options{})
	execNoErr(t, db, `INSERT INTO users (email, password) VALUES ('ada@example.com', 'secret')`)

	applyNext(t, p)

	ctx := context.Background()
	ed := sqliteEditor(t, db)

	info, ok, err := ed.Column(ctx, "users", "authType")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, info.Nullable)
	assert.Equal(t, "'local'", info.Default)
	assert.Equal(t, []string{"ldap", "local"}, info.Values)

	values, ok, err := ed.EnumValues(ctx, UserAuthTypeEnum)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"ldap", "local"}, values)

	password, ok, err := ed.Column(ctx, "users", "password")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, password.Nullable)

	var authType string
	require.NoError(t, db.Get(&authType, `SELECT "authType" FROM users WHERE email = 'ada@example.com'`))
	assert.Equal(t, "local", authType)

	execNoErr(t, db, `INSERT INTO users (email, password, "authType") VALUES ('grace@corp.example', NULL, 'ldap')`)
	_, err = db.Exec(`INSERT INTO users (email, password, "authType") VALUES ('eve@example.com', 'x', 'oauth')`)
	require.Error(t, err)
}

func TestDown_00003(t *testing.T) {
	tests := []struct {
		name     string
		policy   RevertPolicy
		keepEnum bool
	}{
		{name: "authored", policy: RevertAsAuthored, keepEnum: true},
		{name: "complete", policy: RevertComplete, keepEnum: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := bufferLogger()
			db, p := applyUpTo(t, Options{Revert: tt.policy, Logger: logger})
			execNoErr(t, db, `INSERT INTO users (email, password) VALUES ('ada@example.com', 'secret')`)

			revertLast(t, p)

			ctx := context.Background()
			ed := sqliteEditor(t, db)

			_, ok, err := ed.Column(ctx, "users", "authType")
			require.NoError(t, err)
			assert.False(t, ok)

			password, ok, err := ed.Column(ctx, "users", "password")
			require.NoError(t, err)
			require.True(t, ok)
			assert.False(t, password.Nullable)

			_, ok, err = ed.EnumValues(ctx, UserAuthTypeEnum)
			require.NoError(t, err)
			assert.Equal(t, tt.keepEnum, ok)
			if tt.keepEnum {
				assert.Contains(t, buf.String(), "Keeping enum type")
			}

			var count int
			require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM users`))
			assert.Equal(t, 1, count)
		})
	}
}

func TestDown_00003_PasswordlessUsersBlockRevert(t *testing.T) {
	db, p := applyUpTo(t, Options{})
	execNoErr(t, db, `INSERT INTO users (email, password, "authType") VALUES ('grace@corp.example', NULL, 'ldap')`)

	_, err := p.Down(context.Background())
	require.Error(t, err)

	v, err := p.GetDBVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), v, "a failed revert leaves the unit applied")

	_, ok, err := sqliteEditor(t, db).Column(context.Background(), "users", "authType")
	require.NoError(t, err)
	assert.True(t, ok)
}

func mockPostgresEditor(t *testing.T) (sqlmock.Sqlmock, schema.Editor) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ed, err := schema.NewEditor(schema.Postgres, db)
	require.NoError(t, err)
	return mock, ed
}

func TestAddUserAuthTypePostgres(t *testing.T) {
	ctx := context.Background()

	t.Run("up", func(t *testing.T) {
		mock, ed := mockPostgresEditor(t)
		mock.ExpectExec(regexp.QuoteMeta(`CREATE TYPE "enum_users_authType" AS ENUM ('ldap', 'local')`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "users" ADD COLUMN "authType" "enum_users_authType" NOT NULL DEFAULT 'local'`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "users" ALTER COLUMN "password" TYPE VARCHAR(255), ALTER COLUMN "password" DROP NOT NULL`)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, upAddUserAuthType(ctx, ed, Options{}))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("down authored", func(t *testing.T) {
		mock, ed := mockPostgresEditor(t)
		mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "users" DROP COLUMN "authType"`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "users" ALTER COLUMN "password" TYPE VARCHAR(255), ALTER COLUMN "password" SET NOT NULL`)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		logger, _ := bufferLogger()
		require.NoError(t, downAddUserAuthType(ctx, ed, Options{Logger: logger}))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("down complete", func(t *testing.T) {
		mock, ed := mockPostgresEditor(t)
		mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "users" DROP COLUMN "authType"`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "users" ALTER COLUMN "password"`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(`DROP TYPE IF EXISTS "enum_users_authType"`)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, downAddUserAuthType(ctx, ed, Options{Revert: RevertComplete}))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("down stops at not null failure", func(t *testing.T) {
		mock, ed := mockPostgresEditor(t)
		mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "users" DROP COLUMN "authType"`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "users" ALTER COLUMN "password"`)).
			WillReturnError(assert.AnError)

		err := downAddUserAuthType(ctx, ed, Options{Revert: RevertComplete})
		require.ErrorIs(t, err, assert.AnError)
		require.NoError(t, mock.ExpectationsWereMet(), "the enum must not be dropped after a failure")
	})
}
