package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"
)

// DefaultProfile is used when no profile name is given
const DefaultProfile = "default"

// Account is a named CrowdTangle API token. A dashboard token only sees the
// lists of its own dashboard, so users with several dashboards keep one
// profile per dashboard.
type Account struct {
	Profile      string    `json:"profile"`
	Token        string    `json:"token"`
	Dashboard    string    `json:"dashboard,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving tokens
type CredentialStore interface {
	// Store saves the token of an account
	Store(account *Account) error

	// Retrieve gets the account for a profile
	Retrieve(profile string) (*Account, error)

	// List returns all stored accounts
	List() ([]*Account, error)

	// Delete removes the account for a profile
	Delete(profile string) error

	// Exists checks if a profile is stored
	Exists(profile string) bool
}

// Manager handles token storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a manager over the system keyring, an encrypted file
// and the environment, in that order
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over the given stores, tried in order
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the account in the first store that accepts it
func (m *Manager) Store(account *Account) error {
	if account == nil {
		return ErrInvalidCredentials
	}
	if account.Profile == "" {
		account.Profile = DefaultProfile
	}
	if account.Token == "" {
		return errors.New("token is required")
	}

	account.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(account); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store token: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets the account from the first store that has it
func (m *Manager) Retrieve(profile string) (*Account, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	for _, store := range m.stores {
		if account, err := store.Retrieve(profile); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w: profile %s", ErrCredentialsNotFound, profile)
}

// Token returns the API token for a profile
func (m *Manager) Token(profile string) (string, error) {
	account, err := m.Retrieve(profile)
	if err != nil {
		return "", err
	}
	return account.Token, nil
}

// List returns all stored accounts, newest version per profile, sorted by profile
func (m *Manager) List() ([]*Account, error) {
	accountMap := make(map[string]*Account)

	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			if existing, ok := accountMap[account.Profile]; !ok || account.LastModified.After(existing.LastModified) {
				accountMap[account.Profile] = account
			}
		}
	}

	result := make([]*Account, 0, len(accountMap))
	for _, account := range accountMap {
		result = append(result, account)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Profile < result[j].Profile })

	return result, nil
}

// Delete removes the profile from all stores
func (m *Manager) Delete(profile string) error {
	if profile == "" {
		profile = DefaultProfile
	}

	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(profile); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil && !errors.Is(lastErr, ErrCredentialsNotFound) && !errors.Is(lastErr, ErrStoreUnavailable) {
		return fmt.Errorf("failed to delete token: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w: profile %s", ErrCredentialsNotFound, profile)
	}

	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "ctpull")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "ctpull")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "ctpull")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "ctpull")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// SanitizeAccount creates a copy of the account with the token masked
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}

	return &Account{
		Profile:      account.Profile,
		Token:        MaskToken(account.Token),
		Dashboard:    account.Dashboard,
		LastModified: account.LastModified,
	}
}

// MaskToken masks all but the first 4 and last 4 characters of a token
func MaskToken(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("token not found")
	ErrInvalidCredentials  = errors.New("invalid account")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
