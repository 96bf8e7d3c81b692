package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Token is a bearer token for an authenticated search endpoint
type Token struct {
	Account      string    `json:"account"`
	Value        string    `json:"value"`
	Endpoint     string    `json:"endpoint,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store is the interface for storing and retrieving tokens
type Store interface {
	Store(tok *Token) error
	Retrieve(account string) (*Token, error)
	List() ([]*Token, error)
	Delete(account string) error
}

// Manager handles token storage with fallback mechanisms
type Manager struct {
	stores []Store
}

// NewManager creates a manager with keyring, encrypted file and environment
// stores, in that order. The encrypted file lives in configDir.
func NewManager(configDir string) (*Manager, error) {
	var stores []Store

	if ks, err := NewKeyringStore(); err == nil {
		stores = append(stores, ks)
	}

	if configDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		configDir = dir
	}

	fs, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"), "")
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, fs, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores builds a manager over explicit backends
func NewManagerWithStores(stores ...Store) *Manager {
	return &Manager{stores: stores}
}

// Store saves the token using the first store that accepts it
func (m *Manager) Store(tok *Token) error {
	if tok == nil || tok.Account == "" {
		return errors.New("account is required")
	}
	if tok.Value == "" {
		return errors.New("token value is required")
	}
	tok.LastModified = time.Now()

	var lastErr error
	for _, s := range m.stores {
		err := s.Store(tok)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return fmt.Errorf("failed to store token: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets the token from the first store that has it
func (m *Manager) Retrieve(account string) (*Token, error) {
	for _, s := range m.stores {
		if tok, err := s.Retrieve(account); err == nil && tok != nil {
			return tok, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, account)
}

// Lookup returns the stored token value for account, or "" when there is none
func (m *Manager) Lookup(account string) string {
	tok, err := m.Retrieve(account)
	if err != nil {
		return ""
	}
	return tok.Value
}

// List returns all tokens across stores, newest copy per account
func (m *Manager) List() ([]*Token, error) {
	byAccount := make(map[string]*Token)
	for _, s := range m.stores {
		toks, err := s.List()
		if err != nil {
			continue
		}
		for _, t := range toks {
			if existing, ok := byAccount[t.Account]; !ok || t.LastModified.After(existing.LastModified) {
				byAccount[t.Account] = t
			}
		}
	}

	result := make([]*Token, 0, len(byAccount))
	for _, t := range byAccount {
		result = append(result, t)
	}
	return result, nil
}

// Delete removes the token from all stores
func (m *Manager) Delete(account string) error {
	var deleted bool
	var lastErr error
	for _, s := range m.stores {
		if err := s.Delete(account); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete token: %w", lastErr)
	}
	return fmt.Errorf("%w: %s", ErrNotFound, account)
}

// ConfigDir returns the per-user picharvest configuration directory
func ConfigDir() (string, error) {
	var dir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "Library", "Application Support", "picharvest")
	case "windows":
		dir = filepath.Join(os.Getenv("APPDATA"), "picharvest")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			dir = filepath.Join(xdg, "picharvest")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dir = filepath.Join(home, ".config", "picharvest")
		}
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// Mask returns a copy of tok safe for printing
func Mask(tok *Token) *Token {
	if tok == nil {
		return nil
	}
	masked := *tok
	masked.Value = maskString(tok.Value)
	return &masked
}

func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

var (
	ErrNotFound         = errors.New("token not found")
	ErrInvalidToken     = errors.New("invalid token")
	ErrStoreUnavailable = errors.New("credential store unavailable")
)
