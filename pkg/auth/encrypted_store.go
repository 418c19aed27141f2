package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000

	vaultVersion = 2
)

// PassphraseEnvVar overrides the generated passphrase of the encrypted store
const PassphraseEnvVar = "CTPULL_PASSPHRASE"

// EncryptedFileStore keeps API tokens in a file where every token is sealed
// on its own with AES-GCM. Profile names and dashboards are stored in the
// clear, so checking for a profile needs no key.
type EncryptedFileStore struct {
	path       string
	passphrase string

	mu sync.RWMutex

	// key is derived once per salt
	keyMu   sync.Mutex
	key     []byte
	keySalt string
}

// tokenVault is the on-disk layout
type tokenVault struct {
	Version  int                    `json:"version"`
	Salt     string                 `json:"salt"`
	Modified time.Time              `json:"modified"`
	Profiles map[string]sealedToken `json:"profiles"`
}

type sealedToken struct {
	Dashboard    string    `json:"dashboard,omitempty"`
	LastModified time.Time `json:"last_modified"`
	// Token is base64(nonce || ciphertext), with the profile name as
	// additional data so a sealed token cannot be moved to another profile
	Token string `json:"token"`
}

// NewEncryptedFileStore opens the token file at path, creating its
// directory when needed
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	passphrase, err := loadPassphrase()
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}

	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

// Store seals the account's token under its profile
func (e *EncryptedFileStore) Store(account *Account) error {
	if account == nil || account.Profile == "" || account.Token == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	vault, err := e.read()
	if err != nil {
		return err
	}

	aead, err := e.aead(vault.Salt)
	if err != nil {
		return err
	}
	sealed, err := sealToken(aead, account.Profile, account.Token)
	if err != nil {
		return fmt.Errorf("failed to encrypt token: %w", err)
	}

	modified := account.LastModified
	if modified.IsZero() {
		modified = time.Now()
	}
	vault.Profiles[account.Profile] = sealedToken{
		Dashboard:    account.Dashboard,
		LastModified: modified,
		Token:        sealed,
	}

	return e.write(vault)
}

// Retrieve opens the token of a profile
func (e *EncryptedFileStore) Retrieve(profile string) (*Account, error) {
	if profile == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	vault, err := e.read()
	if err != nil {
		return nil, err
	}
	entry, ok := vault.Profiles[profile]
	if !ok {
		return nil, ErrCredentialsNotFound
	}

	aead, err := e.aead(vault.Salt)
	if err != nil {
		return nil, err
	}
	token, err := openToken(aead, profile, entry.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt token for profile %s: %w", profile, err)
	}

	return &Account{
		Profile:      profile,
		Token:        token,
		Dashboard:    entry.Dashboard,
		LastModified: entry.LastModified,
	}, nil
}

// List returns the stored profiles with masked tokens. A token that does
// not open with the current passphrase fails the listing.
func (e *EncryptedFileStore) List() ([]*Account, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	vault, err := e.read()
	if err != nil {
		return nil, err
	}
	if len(vault.Profiles) == 0 {
		return []*Account{}, nil
	}

	aead, err := e.aead(vault.Salt)
	if err != nil {
		return nil, err
	}

	accounts := make([]*Account, 0, len(vault.Profiles))
	for profile, entry := range vault.Profiles {
		token, err := openToken(aead, profile, entry.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt token for profile %s: %w", profile, err)
		}
		accounts = append(accounts, &Account{
			Profile:      profile,
			Token:        MaskToken(token),
			Dashboard:    entry.Dashboard,
			LastModified: entry.LastModified,
		})
	}
	return accounts, nil
}

// Delete removes a profile. The file goes away with the last one.
func (e *EncryptedFileStore) Delete(profile string) error {
	if profile == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	vault, err := e.read()
	if err != nil {
		return err
	}
	if _, ok := vault.Profiles[profile]; !ok {
		return ErrCredentialsNotFound
	}
	delete(vault.Profiles, profile)

	if len(vault.Profiles) == 0 {
		return os.Remove(e.path)
	}
	return e.write(vault)
}

// Exists reports whether a profile is stored, without opening its token
func (e *EncryptedFileStore) Exists(profile string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	vault, err := e.read()
	if err != nil {
		return false
	}
	_, ok := vault.Profiles[profile]
	return ok
}

// read loads the vault. A missing file is an empty vault with a fresh salt.
func (e *EncryptedFileStore) read() (*tokenVault, error) {
	content, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		salt := make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
		return &tokenVault{
			Version:  vaultVersion,
			Salt:     base64.StdEncoding.EncodeToString(salt),
			Profiles: make(map[string]sealedToken),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var vault tokenVault
	if err := json.Unmarshal(content, &vault); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	if vault.Version != vaultVersion {
		return nil, fmt.Errorf("unsupported token file version %d", vault.Version)
	}
	if vault.Profiles == nil {
		vault.Profiles = make(map[string]sealedToken)
	}
	return &vault, nil
}

func (e *EncryptedFileStore) write(vault *tokenVault) error {
	vault.Version = vaultVersion
	vault.Modified = time.Now()

	content, err := json.MarshalIndent(vault, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token file: %w", err)
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return os.Rename(tmp, e.path)
}

// aead returns the cipher for a vault salt. PBKDF2 runs only when the salt
// changes, which in practice is once per process.
func (e *EncryptedFileStore) aead(salt string) (cipher.AEAD, error) {
	e.keyMu.Lock()
	defer e.keyMu.Unlock()

	if e.key == nil || e.keySalt != salt {
		raw, err := base64.StdEncoding.DecodeString(salt)
		if err != nil {
			return nil, fmt.Errorf("failed to decode salt: %w", err)
		}
		e.key = pbkdf2.Key([]byte(e.passphrase), raw, iterations, keySize, sha256.New)
		e.keySalt = salt
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func sealToken(aead cipher.AEAD, profile, token string) (string, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	out := aead.Seal(nonce, nonce, []byte(token), []byte(profile))
	return base64.StdEncoding.EncodeToString(out), nil
}

func openToken(aead cipher.AEAD, profile, sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", errors.New("sealed token too short")
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(profile))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// loadPassphrase reads the passphrase from the environment or from the
// config directory, generating one on first use
func loadPassphrase() (string, error) {
	if pass := os.Getenv(PassphraseEnvVar); pass != "" {
		return pass, nil
	}

	configDir, err := getConfigDir()
	if err != nil {
		return "", err
	}
	passphraseFile := filepath.Join(configDir, ".passphrase")

	if content, err := os.ReadFile(passphraseFile); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := base64.URLEncoding.EncodeToString(b)

	if err := os.WriteFile(passphraseFile, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}
