package credstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreMissingFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "nested", "credentials"))

	v, ok, err := s.Get(context.Background(), TokenKey)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)

	require.NoError(t, s.Delete(context.Background(), TokenKey))
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials")
	s := NewFileStore(path)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, TokenKey, "abc123"))
	require.NoError(t, s.Set(ctx, "other", "x"))

	v, ok, err := s.Get(ctx, TokenKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc123", v)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePerms), info.Mode().Perm())
	dir, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(fileDirPerms), dir.Mode().Perm())

	require.NoError(t, s.Delete(ctx, TokenKey))
	_, ok, err = s.Get(ctx, TokenKey)
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err = s.Get(ctx, "other")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestFileStoreReadsFreshOnEveryGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials")
	s := NewFileStore(path)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(path, []byte("values:\n  userToken: first\n"), 0o600))
	v, _, err := s.Get(ctx, TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	// Another process logs in again.
	require.NoError(t, NewFileStore(path).Set(ctx, TokenKey, "second"))
	v, _, err = s.Get(ctx, TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "second", v)
}

func TestFileStoreMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials")
	require.NoError(t, os.WriteFile(path, []byte("values: [unterminated"), 0o600))

	_, ok, err := NewFileStore(path).Get(context.Background(), TokenKey)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "unmarshal credentials")
}

func TestFileStoreUnreadable(t *testing.T) {
	// A directory where the file should be cannot be read as one.
	path := t.TempDir()

	_, _, err := NewFileStore(path).Get(context.Background(), TokenKey)
	require.Error(t, err)
}

func TestFileStoreCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewFileStore(filepath.Join(t.TempDir(), "credentials")).Get(ctx, TokenKey)
	require.ErrorIs(t, err, context.Canceled)
}
