package secretstore

import (
	"maps"
	"sync"
)

// Memory is a thread-safe in-memory Store for tests and one-shot runs.
type Memory struct {
	mu     sync.RWMutex
	data   map[string]string
	writes int
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{data: map[string]string{}}
}

func (m *Memory) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (m *Memory) Set(key, value string) error {
	return m.SetMany(Entry{Key: key, Value: value})
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) SetMany(entries ...Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.data[e.Key] = e.Value
	}
	m.writes++
	return nil
}

// Snapshot returns a copy of every stored key.
func (m *Memory) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.data)
}

// Writes counts Set/SetMany calls.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}
