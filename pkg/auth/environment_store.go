package auth

import (
	"os"
	"time"
)

// TokenEnvVar holds a token for environments without a keyring, such as CI
const TokenEnvVar = "CTPULL_API_TOKEN"

// EnvironmentStore implements CredentialStore using environment variables.
// It is read-only and answers for every profile.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the token from CTPULL_API_TOKEN
func (e *EnvironmentStore) Retrieve(profile string) (*Account, error) {
	token := os.Getenv(TokenEnvVar)
	if token == "" {
		return nil, ErrCredentialsNotFound
	}

	if profile == "" {
		profile = DefaultProfile
	}

	return &Account{
		Profile:      profile,
		Token:        token,
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if the variable is set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(profile string) error {
	return ErrStoreUnavailable
}

// Exists checks if the variable is set
func (e *EnvironmentStore) Exists(profile string) bool {
	return os.Getenv(TokenEnvVar) != ""
}
