package credentials

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "picharvest"

// KeyringStore keeps tokens in the system keychain
type KeyringStore struct{}

// NewKeyringStore returns a KeyringStore if the keychain is usable here
func NewKeyringStore() (*KeyringStore, error) {
	const checkKey = "availability_check"
	if err := keyring.Set(keyringService, checkKey, "ok"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, checkKey)
	return &KeyringStore{}, nil
}

func (k *KeyringStore) Store(tok *Token) error {
	if tok == nil || tok.Account == "" {
		return ErrInvalidToken
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := keyring.Set(keyringService, tok.Account, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

func (k *KeyringStore) Retrieve(account string) (*Token, error) {
	if account == "" {
		return nil, ErrInvalidToken
	}
	data, err := keyring.Get(keyringService, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var tok Token
	if err := json.Unmarshal([]byte(data), &tok); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	return &tok, nil
}

// List is empty: go-keyring cannot enumerate entries
func (k *KeyringStore) List() ([]*Token, error) {
	return nil, nil
}

func (k *KeyringStore) Delete(account string) error {
	if account == "" {
		return ErrInvalidToken
	}
	if err := keyring.Delete(keyringService, account); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}
