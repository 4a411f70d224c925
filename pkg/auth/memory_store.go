package auth

import (
	"sort"
	"sync"
)

// MemoryStore keeps keys for the life of the process. Tests use it in
// place of the keychain; the error fields inject failures.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[Service]Credential

	StoreError  error
	DeleteError error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[Service]Credential)}
}

func (m *MemoryStore) Store(c *Credential) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if c == nil || c.Service == "" || c.APIKey == "" {
		return ErrInvalidCredentials
	}
	m.mu.Lock()
	m.creds[c.Service] = *c
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Retrieve(s Service) (*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.creds[s]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &c, nil
}

func (m *MemoryStore) List() ([]*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Credential, 0, len(m.creds))
	for _, c := range m.creds {
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out, nil
}

func (m *MemoryStore) Delete(s Service) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.creds[s]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.creds, s)
	return nil
}

func (m *MemoryStore) Exists(s Service) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.creds[s]
	return ok
}

// Count returns how many keys are held.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.creds)
}
