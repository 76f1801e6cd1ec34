package driver

import (
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore in-memory KeyValueDB, used by tests and in ephemeral mode
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
}

var _ KeyValueDB = &MemoryStore{}

// NewMemoryStore create an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]memoryEntry)}
}

// Set implement KeyValueDB
func (m *MemoryStore) Set(key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = memoryEntry{value: value}
	return nil
}

// SetEX implement KeyValueDB
func (m *MemoryStore) SetEX(key string, value string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = memoryEntry{value: value, expiresAt: time.Now().Add(expiration)}
	return nil
}

// Get implement KeyValueDB
func (m *MemoryStore) Get(key string) (string, error) {
	m.mu.RLock()
	entry, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return "", ErrKeyNotFound
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.Del(key)
		return "", ErrKeyNotFound
	}
	return entry.value, nil
}

// Del implement KeyValueDB
func (m *MemoryStore) Del(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Exists implement KeyValueDB
func (m *MemoryStore) Exists(key string) (bool, error) {
	if _, err := m.Get(key); err != nil {
		if err == ErrKeyNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Ping implement KeyValueDB
func (m *MemoryStore) Ping() error {
	return nil
}

// Close implement KeyValueDB
func (m *MemoryStore) Close() error {
	return nil
}
