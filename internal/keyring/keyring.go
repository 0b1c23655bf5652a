// Package keyring stores Superset passwords for local runs.
//
// Passwords live in the system keychain when one is available:
//   - macOS: Keychain
//   - Linux: Secret Service (GNOME Keyring, KWallet)
//   - Windows: Credential Manager
//
// Headless machines fall back to a YAML file under the state directory
// with 0600 permissions. CI runs never read the store; they take the
// password from SUPERSET_PASSWORD.
package keyring

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"

	"github.com/majorcontext/superset-import/internal/config"
)

const (
	// ServiceName is the keychain service identifier.
	ServiceName = "superset-import"
	// EnvService overrides ServiceName, for test isolation.
	EnvService = "SUPERSET_IMPORT_KEYRING_SERVICE"
	// FileName is the fallback file inside the state directory.
	FileName = "credentials.yaml"
)

// ErrNotFound is returned when no password is stored for an account.
var ErrNotFound = errors.New("no stored password")

// Account returns the account name a password is stored under.
func Account(username, host string) string {
	return username + "@" + host
}

func serviceName() string {
	if name := os.Getenv(EnvService); name != "" {
		return name
	}
	return ServiceName
}

// Backend is one place passwords can be kept.
type Backend interface {
	Get(account string) (string, error)
	Set(account, password string) error
	Delete(account string) error
	Name() string
}

// keychainBackend stores passwords in the system keychain.
type keychainBackend struct{}

func (k *keychainBackend) Get(account string) (string, error) {
	pw, err := keyring.Get(serviceName(), account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keychain get: %w", err)
	}
	return pw, nil
}

func (k *keychainBackend) Set(account, password string) error {
	if err := keyring.Set(serviceName(), account, password); err != nil {
		return fmt.Errorf("keychain set: %w", err)
	}
	return nil
}

func (k *keychainBackend) Delete(account string) error {
	err := keyring.Delete(serviceName(), account)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("keychain delete: %w", err)
	}
	return nil
}

func (k *keychainBackend) Name() string {
	return "system keychain"
}

// Store reads from the keychain first and the file second, and writes to
// the keychain unless it is unavailable.
type Store struct {
	primary  Backend
	fallback Backend
}

// New returns a Store backed by the system keychain and the fallback file
// in config.StateDir().
func New() *Store {
	return NewWithBackends(&keychainBackend{}, &fileBackend{path: DefaultFilePath()})
}

// NewWithBackends returns a Store over explicit backends.
func NewWithBackends(primary, fallback Backend) *Store {
	return &Store{primary: primary, fallback: fallback}
}

// DefaultFilePath is the fallback file location.
func DefaultFilePath() string {
	return filepath.Join(config.StateDir(), FileName)
}

// Get returns the stored password for account, or ErrNotFound.
func (s *Store) Get(account string) (string, error) {
	pw, primaryErr := s.primary.Get(account)
	if primaryErr == nil {
		return pw, nil
	}
	if !errors.Is(primaryErr, ErrNotFound) {
		slog.Debug("keychain lookup failed, trying file", "error", primaryErr)
	}
	return s.fallback.Get(account)
}

// Set stores password for account and returns the name of the backend
// that holds it.
func (s *Store) Set(account, password string) (string, error) {
	primaryErr := s.primary.Set(account, password)
	if primaryErr == nil {
		return s.primary.Name(), nil
	}

	slog.Info("system keychain unavailable, using file-based password storage",
		"fallback", s.fallback.Name(), "error", primaryErr)
	if err := s.fallback.Set(account, password); err != nil {
		return "", fmt.Errorf("storing password failed.\n"+
			"  Keychain (%s): %v\n"+
			"  File (%s): %v",
			s.primary.Name(), primaryErr, s.fallback.Name(), err)
	}
	return s.fallback.Name(), nil
}

// Delete removes account from both backends. It returns ErrNotFound when
// neither held a password.
func (s *Store) Delete(account string) error {
	primaryErr := s.primary.Delete(account)
	fallbackErr := s.fallback.Delete(account)

	switch {
	case primaryErr == nil || fallbackErr == nil:
		return nil
	case errors.Is(fallbackErr, ErrNotFound):
		// An unavailable keychain cannot hold the password either.
		if !errors.Is(primaryErr, ErrNotFound) {
			slog.Debug("keychain delete failed", "error", primaryErr)
		}
		return ErrNotFound
	}
	return fmt.Errorf("deleting password: %w", errors.Join(
		fmt.Errorf("keychain: %w", primaryErr),
		fmt.Errorf("file: %w", fallbackErr),
	))
}
