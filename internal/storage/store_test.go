package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mfenderov/ledgerkit/internal/schema"
	"github.com/mfenderov/ledgerkit/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := storage.NewStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	assert.FileExists(t, dbPath)
	assert.Equal(t, schema.SQLite, store.Dialect())
}

func TestNewStore_InMemory(t *testing.T) {
	store, err := storage.NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Migrate(context.Background()))
}

func TestOpen_UnknownDialect(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "oracle.db")

	store, err := storage.Open(schema.Dialect("oracle"), dbPath)
	require.ErrorIs(t, err, schema.ErrUnknownDialect)
	assert.Nil(t, store)

	_, statErr := os.Stat(dbPath)
	assert.ErrorIs(t, statErr, os.ErrNotExist, "no database file should be created")
}

func TestStore_ListTables(t *testing.T) {
	store := newTestStore(t)

	tables, err := store.ListTables(context.Background())
	require.NoError(t, err)
	for _, expected := range []string{"users", "accounts", "goose_db_version", "_enum_types"} {
		assert.Contains(t, tables, expected)
	}
}

func TestStore_Close(t *testing.T) {
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	assert.NoError(t, store.Close())
}

// newTestStore returns a migrated store backed by a temp file.
func newTestStore(t *testing.T, opts ...storage.Option) *storage.Store {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "test.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}
