package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxEntries bounds a Memory cache built with a zero limit.
const DefaultMaxEntries = 10_000

type entry[V any] struct {
	value   V
	expires time.Time
}

// Memory is an in-process Cache guarded by a mutex.
type Memory[V any] struct {
	mu         sync.Mutex
	entries    map[string]entry[V]
	maxEntries int
	now        func() time.Time
}

// NewMemory builds an empty cache holding at most maxEntries keys.
func NewMemory[V any](maxEntries int) *Memory[V] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Memory[V]{
		entries:    make(map[string]entry[V]),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *Memory[V]) Get(_ context.Context, key string) (V, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	e, ok := m.entries[key]
	if !ok {
		return zero, false, nil
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return zero, false, nil
	}
	return e.value, true, nil
}

func (m *Memory[V]) Set(_ context.Context, key string, v V, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxEntries {
		m.evict()
	}
	m.entries[key] = entry[V]{value: v, expires: m.now().Add(ttl)}
	return nil
}

// evict drops expired entries, or one arbitrary entry when none expired.
// Callers hold mu.
func (m *Memory[V]) evict() {
	now := m.now()
	removed := false
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
			removed = true
		}
	}
	if removed {
		return
	}
	for k := range m.entries {
		delete(m.entries, k)
		return
	}
}

func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory[V]) Clear(context.Context) error {
	m.mu.Lock()
	clear(m.entries)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

var _ Cache[string] = (*Memory[string])(nil)
