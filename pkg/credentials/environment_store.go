package credentials

import (
	"os"
	"time"
)

// TokenEnv is the environment variable read by EnvironmentStore
const TokenEnv = "PICHARVEST_SEARCH_TOKEN"

// EnvironmentStore reads a single token from the environment. It is read-only.
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Store(tok *Token) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment token under whatever account is asked for
func (e *EnvironmentStore) Retrieve(account string) (*Token, error) {
	v := os.Getenv(TokenEnv)
	if v == "" {
		return nil, ErrNotFound
	}
	if account == "" {
		account = "default"
	}
	return &Token{Account: account, Value: v, LastModified: time.Now()}, nil
}

func (e *EnvironmentStore) List() ([]*Token, error) {
	tok, err := e.Retrieve("")
	if err != nil {
		return nil, nil
	}
	return []*Token{tok}, nil
}

func (e *EnvironmentStore) Delete(account string) error {
	return ErrStoreUnavailable
}
