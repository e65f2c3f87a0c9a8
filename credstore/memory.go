package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	socialconnect "github.com/mselvan/social-connect"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time // zero value = never expires
}

// Memory is an in-process Store. Credentials are kept encoded so callers
// never share a value with the store.
type Memory struct {
	mu    sync.Mutex
	items map[string]memoryEntry
	now   func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]memoryEntry),
		now:   time.Now,
	}
}

// Save stores c under key, replacing any previous credential.
func (m *Memory) Save(_ context.Context, key string, c *socialconnect.Credential) error {
	data, err := json.Marshal(c)
	if err != nil {
		return errors.Join(ErrMarshal, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = memoryEntry{data: data, expiresAt: c.ExpiresAt()}
	return nil
}

// Load returns the credential stored under key.
// Returns ErrNotFound if the key does not exist or the credential has expired.
func (m *Memory) Load(_ context.Context, key string) (*socialconnect.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !e.expiresAt.IsZero() && !e.expiresAt.After(m.now()) {
		delete(m.items, key)
		return nil, ErrNotFound
	}

	var c socialconnect.Credential
	if err := json.Unmarshal(e.data, &c); err != nil {
		return nil, errors.Join(ErrUnmarshal, err)
	}
	return &c, nil
}

// Delete removes the credential stored under key. Deleting a missing key is not an error.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
