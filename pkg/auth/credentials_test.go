package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestCredentialManager(t *testing.T) {
	manager, mockStore := NewMockManager()

	account := &Account{Profile: "research", Token: "abcd1234efgh5678", Dashboard: "Elections"}
	require.NoError(t, manager.Store(account))
	assert.False(t, account.LastModified.IsZero())

	retrieved, err := manager.Retrieve("research")
	require.NoError(t, err)
	assert.Equal(t, "abcd1234efgh5678", retrieved.Token)
	assert.Equal(t, "Elections", retrieved.Dashboard)

	token, err := manager.Token("research")
	require.NoError(t, err)
	assert.Equal(t, "abcd1234efgh5678", token)

	accounts, err := manager.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	require.NoError(t, manager.Delete("research"))
	_, err = manager.Retrieve("research")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.Equal(t, 0, mockStore.Count())

	assert.ErrorIs(t, manager.Delete("research"), ErrCredentialsNotFound)
}

func TestManagerDefaultsProfile(t *testing.T) {
	manager, _ := NewMockManager()

	require.NoError(t, manager.Store(&Account{Token: "tok-default-1234"}))
	token, err := manager.Token("")
	require.NoError(t, err)
	assert.Equal(t, "tok-default-1234", token)

	assert.Error(t, manager.Store(&Account{Profile: "x"}))
	assert.ErrorIs(t, manager.Store(nil), ErrInvalidCredentials)
}

func TestManagerFallsBack(t *testing.T) {
	failing := NewMockStore()
	failing.StoreError = errors.New("locked")
	failing.RetrieveError = errors.New("locked")
	working := NewMockStore()

	manager := NewManagerWithStores(failing, working)
	require.NoError(t, manager.Store(&Account{Profile: "p", Token: "token-value-123"}))
	assert.Equal(t, 1, working.Count())

	token, err := manager.Token("p")
	require.NoError(t, err)
	assert.Equal(t, "token-value-123", token)
}

func TestManagerStoreAllFail(t *testing.T) {
	only := NewMockStore()
	only.StoreError = errors.New("disk full")

	err := NewManagerWithStores(only).Store(&Account{Profile: "p", Token: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestSanitizeAccount(t *testing.T) {
	account := &Account{Profile: "p", Token: "abcd1234efgh5678"}
	sanitized := SanitizeAccount(account)

	assert.Equal(t, "abcd...5678", sanitized.Token)
	assert.Equal(t, "p", sanitized.Profile)
	assert.Equal(t, "********", MaskToken("short"))
	assert.Nil(t, SanitizeAccount(nil))
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv(PassphraseEnvVar, "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Store(&Account{Profile: "one", Token: "secret-token-one"}))
	require.NoError(t, store.Store(&Account{Profile: "two", Token: "secret-token-two"}))

	retrieved, err := store.Retrieve("one")
	require.NoError(t, err)
	assert.Equal(t, "secret-token-one", retrieved.Token)
	assert.True(t, store.Exists("two"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(content, []byte("secret-token")), "file contains a plaintext token")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	accounts, err := store.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
	for _, account := range accounts {
		assert.NotContains(t, account.Token, "secret-token", "List exposes a full token")
	}

	require.NoError(t, store.Delete("one"))
	_, err = store.Retrieve("one")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	require.NoError(t, store.Delete("two"))
	assert.NoFileExists(t, path)
}

func TestEncryptedFileStoreTokenBoundToProfile(t *testing.T) {
	t.Setenv(PassphraseEnvVar, "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Profile: "research", Token: "research-token-1234"}))
	require.NoError(t, store.Store(&Account{Profile: "press", Token: "press-token-5678"}))

	// copy the sealed research token onto the press profile
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	var vault tokenVault
	require.NoError(t, json.Unmarshal(content, &vault))
	press := vault.Profiles["press"]
	press.Token = vault.Profiles["research"].Token
	vault.Profiles["press"] = press
	content, err = json.Marshal(vault)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, content, 0600))

	_, err = store.Retrieve("press")
	assert.Error(t, err)

	account, err := store.Retrieve("research")
	require.NoError(t, err)
	assert.Equal(t, "research-token-1234", account.Token)
}

func TestEncryptedFileStoreRejectsEmptyToken(t *testing.T) {
	t.Setenv(PassphraseEnvVar, "test_passphrase_123")
	store, err := NewEncryptedFileStore(filepath.Join(t.TempDir(), "credentials.enc"))
	require.NoError(t, err)

	assert.ErrorIs(t, store.Store(&Account{Profile: "p"}), ErrInvalidCredentials)
	assert.False(t, store.Exists("p"))
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")

	t.Setenv(PassphraseEnvVar, "first")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Profile: "p", Token: "token"}))

	t.Setenv(PassphraseEnvVar, "second")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = other.Retrieve("p")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEnvironmentStore(t *testing.T) {
	store := NewEnvironmentStore()

	t.Setenv(TokenEnvVar, "")
	_, err := store.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.False(t, store.Exists(""))

	t.Setenv(TokenEnvVar, "env-token")
	account, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "env-token", account.Token)
	assert.Equal(t, DefaultProfile, account.Profile)

	assert.ErrorIs(t, store.Store(&Account{}), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("x"), ErrStoreUnavailable)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	require.NoError(t, store.Store(&Account{Profile: "a", Token: "token-a"}))
	require.NoError(t, store.Store(&Account{Profile: "b", Token: "token-b"}))
	assert.True(t, store.Exists("a"))

	account, err := store.Retrieve("b")
	require.NoError(t, err)
	assert.Equal(t, "token-b", account.Token)

	accounts, err := store.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	require.NoError(t, store.Delete("a"))
	assert.False(t, store.Exists("a"))
	assert.ErrorIs(t, store.Delete("a"), ErrCredentialsNotFound)

	accounts, err = store.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestManagerPrefersStoredTokenOverEnvironment(t *testing.T) {
	t.Setenv(TokenEnvVar, "env-token")
	stored := NewMockStore()
	manager := NewManagerWithStores(stored, NewEnvironmentStore())

	token, err := manager.Token("")
	require.NoError(t, err)
	assert.Equal(t, "env-token", token)

	require.NoError(t, manager.Store(&Account{Token: "stored-token"}))
	token, err = manager.Token("")
	require.NoError(t, err)
	assert.Equal(t, "stored-token", token)
}

func TestMockStore(t *testing.T) {
	store := NewMockStore()

	accounts, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, accounts)

	require.NoError(t, store.Store(&Account{Profile: "mock", Token: "t"}))
	assert.Equal(t, 1, store.Count())
	assert.True(t, store.Exists("mock"))

	store.ListError = errors.New("injected error")
	_, err = store.List()
	assert.EqualError(t, err, "injected error")

	store.Clear()
	assert.Equal(t, 0, store.Count())
}
