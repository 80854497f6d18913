package storage_test

import (
	"context"
	"testing"

	"github.com/mfenderov/ledgerkit/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestUser(t *testing.T, store *storage.Store) *storage.User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), storage.NewUser{Email: "ada@example.com", Password: "secret"})
	require.NoError(t, err)
	return user
}

func TestCreateAccount_DefaultsOnBalanceSheet(t *testing.T) {
	store := newTestStore(t)
	user := createTestUser(t, store)

	account, err := store.CreateAccount(context.Background(), storage.NewAccount{UserID: user.ID, Name: "checking", BalanceCents: 1000})
	require.NoError(t, err)
	assert.Equal(t, storage.OnBalanceSheet, account.BalanceType)
	assert.Equal(t, user.ID, account.UserID)
	assert.Equal(t, int64(1000), account.BalanceCents)
}

func TestCreateAccount_Validation(t *testing.T) {
	store := newTestStore(t)
	user := createTestUser(t, store)
	ctx := context.Background()

	_, err := store.CreateAccount(ctx, storage.NewAccount{UserID: user.ID, Name: "memo", BalanceType: "memo"})
	assert.ErrorIs(t, err, storage.ErrInvalidBalanceType)

	_, err = store.CreateAccount(ctx, storage.NewAccount{UserID: user.ID})
	assert.Error(t, err, "empty name")

	_, err = store.CreateAccount(ctx, storage.NewAccount{UserID: user.ID + 100, Name: "orphan"})
	assert.Error(t, err, "foreign key violation")
}

func TestListAccounts_AndBalanceSheetTotal(t *testing.T) {
	store := newTestStore(t)
	user := createTestUser(t, store)
	ctx := context.Background()

	for _, a := range []storage.NewAccount{
		{UserID: user.ID, Name: "checking", BalanceCents: 1000},
		{UserID: user.ID, Name: "savings", BalanceCents: 2500},
		{UserID: user.ID, Name: "escrow", BalanceCents: 9999, BalanceType: storage.OffBalanceSheet},
	} {
		_, err := store.CreateAccount(ctx, a)
		require.NoError(t, err)
	}

	accounts, err := store.ListAccounts(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	assert.Equal(t, storage.OffBalanceSheet, accounts[2].BalanceType)

	total, err := store.BalanceSheetTotal(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3500), total)
}

func TestAccounts_CascadeOnUserDelete(t *testing.T) {
	store := newTestStore(t)
	user := createTestUser(t, store)
	ctx := context.Background()

	_, err := store.CreateAccount(ctx, storage.NewAccount{UserID: user.ID, Name: "checking"})
	require.NoError(t, err)
	require.NoError(t, store.DeleteUser(ctx, user.Email))

	accounts, err := store.ListAccounts(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, accounts, "accounts are removed with their user")

	assert.ErrorIs(t, store.DeleteUser(ctx, user.Email), storage.ErrNotFound)
}
