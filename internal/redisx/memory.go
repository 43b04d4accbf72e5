package redisx

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	value   string
	expires time.Time
}

// MemoryKV is a process-local KV with TTLs, used when the service runs without
// Redis.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]memEntry
	Now  func() time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]memEntry)}
}

func (m *MemoryKV) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// live returns the entry at key if present and not expired. Callers hold m.mu.
func (m *MemoryKV) live(key string) (memEntry, bool) {
	e, ok := m.data[key]
	if !ok {
		return memEntry{}, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.data, key)
		return memEntry{}, false
	}
	return e, true
}

func (m *MemoryKV) put(key, value string, ttl time.Duration) {
	e := memEntry{value: value}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.data[key] = e
}

func (m *MemoryKV) Claim(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(key); ok {
		return false, nil
	}
	m.put(key, value, ttl)
	return true, nil
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	return e.value, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	m.put(key, value, ttl)
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.data, k)
	}
	m.mu.Unlock()
	return nil
}
