package credentials

import "sync"

// MemoryStore keeps tokens in process memory. Tests use it in place of the
// keychain; the error fields inject failures.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]Token

	StoreError  error
	DeleteError error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]Token)}
}

func (m *MemoryStore) Store(tok *Token) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if tok == nil || tok.Account == "" {
		return ErrInvalidToken
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[tok.Account] = *tok
	return nil
}

func (m *MemoryStore) Retrieve(account string) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tok, ok := m.tokens[account]
	if !ok {
		return nil, ErrNotFound
	}
	return &tok, nil
}

func (m *MemoryStore) List() ([]*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Token, 0, len(m.tokens))
	for _, t := range m.tokens {
		t := t
		out = append(out, &t)
	}
	return out, nil
}

func (m *MemoryStore) Delete(account string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[account]; !ok {
		return ErrNotFound
	}
	delete(m.tokens, account)
	return nil
}

// Count returns the number of stored tokens
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tokens)
}
