package accounts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccount(username string) Account {
	return Account{
		Host:            "imap.example.com",
		Port:            993,
		UseTLS:          true,
		Username:        username,
		EncryptedSecret: "b3BhcXVl",
		Keywords:        []string{"invoice"},
		Folders:         []string{"Receipts"},
	}
}

func TestLoadMissingFileYieldsEmptyStore(t *testing.T) {
	store, err := Load(filepath.Join(t.TempDir(), "nope", "accounts.yaml"))
	require.NoError(t, err)
	assert.Empty(t, store.Accounts)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "dir", "accounts.yaml")

	store := &Store{}
	store.Upsert(testAccount("alice"))
	store.Upsert(testAccount("bob"))
	require.NoError(t, store.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, store.Accounts, loaded.Accounts)
}

func TestSaveWritesOnlyEncryptedSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yaml")

	store := &Store{Accounts: []Account{testAccount("alice")}}
	require.NoError(t, store.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "b3BhcXVl")
	assert.NotContains(t, string(data), "password")
}

func TestUpsertReplacesByIdentity(t *testing.T) {
	store := &Store{}
	store.Upsert(testAccount("alice"))
	store.Upsert(testAccount("bob"))

	updated := testAccount("alice")
	updated.Keywords = []string{"receipt", "order"}
	store.Upsert(updated)

	require.Len(t, store.Accounts, 2)
	assert.Equal(t, []string{"receipt", "order"}, store.Accounts[0].Keywords)
	assert.Equal(t, "bob", store.Accounts[1].Username)
}

func TestUpsertDistinguishesHostAndPort(t *testing.T) {
	store := &Store{}
	store.Upsert(testAccount("alice"))

	other := testAccount("alice")
	other.Port = 143
	store.Upsert(other)

	assert.Len(t, store.Accounts, 2)
}

func TestRemove(t *testing.T) {
	store := &Store{}
	store.Upsert(testAccount("alice"))
	store.Upsert(testAccount("bob"))

	store.Remove(Account{Host: "imap.example.com", Port: 993, Username: "alice"})

	require.Len(t, store.Accounts, 1)
	assert.Equal(t, "bob", store.Accounts[0].Username)

	// Removing a non-existent account is a no-op.
	store.Remove(Account{Host: "imap.example.com", Port: 993, Username: "carol"})
	assert.Len(t, store.Accounts, 1)
}
