package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "ctpull"
	keyringPrefix  = "crowdtangle_"
	// keyringIndex holds the stored profile names, since go-keyring cannot list keys
	keyringIndex = "profiles"
)

// KeyringStore implements CredentialStore using the system keychain
type KeyringStore struct{}

// NewKeyringStore creates a keyring store after checking the keyring works
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	err := keyring.Set(keyringService, testKey, "test")
	if err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves the account to the system keychain
func (k *KeyringStore) Store(account *Account) error {
	if account == nil || account.Profile == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	if err := keyring.Set(keyringService, keyringPrefix+account.Profile, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	return k.updateIndex(func(profiles map[string]bool) { profiles[account.Profile] = true })
}

// Retrieve gets the account from the system keychain
func (k *KeyringStore) Retrieve(profile string) (*Account, error) {
	if profile == "" {
		return nil, ErrInvalidCredentials
	}

	data, err := keyring.Get(keyringService, keyringPrefix+profile)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var account Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}

	return &account, nil
}

// List returns the accounts named in the profile index
func (k *KeyringStore) List() ([]*Account, error) {
	profiles, err := k.index()
	if err != nil {
		return nil, err
	}

	accounts := []*Account{}
	for profile := range profiles {
		account, err := k.Retrieve(profile)
		if err != nil {
			continue
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// Delete removes the account from the system keychain
func (k *KeyringStore) Delete(profile string) error {
	if profile == "" {
		return ErrInvalidCredentials
	}

	err := keyring.Delete(keyringService, keyringPrefix+profile)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	return k.updateIndex(func(profiles map[string]bool) { delete(profiles, profile) })
}

// Exists checks if the profile is in the keychain
func (k *KeyringStore) Exists(profile string) bool {
	if profile == "" {
		return false
	}

	_, err := keyring.Get(keyringService, keyringPrefix+profile)
	return err == nil
}

func (k *KeyringStore) index() (map[string]bool, error) {
	profiles := make(map[string]bool)

	data, err := keyring.Get(keyringService, keyringIndex)
	if errors.Is(err, keyring.ErrNotFound) {
		return profiles, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring index: %w", err)
	}

	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("failed to parse keyring index: %w", err)
	}
	for _, name := range names {
		profiles[name] = true
	}
	return profiles, nil
}

func (k *KeyringStore) updateIndex(update func(map[string]bool)) error {
	profiles, err := k.index()
	if err != nil {
		return err
	}
	update(profiles)

	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return keyring.Set(keyringService, keyringIndex, string(data))
}
