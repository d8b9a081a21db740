package kv

import (
	"context"
	"sort"
	"sync"
)

// CacheEntry is one cached key.
type CacheEntry struct {
	Key   string
	Value []byte
	// Deleted marks a tombstone for a delete made in local mode.
	Deleted bool
	// Synced is false for writes the remote store has not seen yet.
	Synced bool
}

// Cache keeps the last known value of every key. The client refreshes it
// after successful remote calls and serves from it in local mode.
type Cache interface {
	Load(ctx context.Context, key string) (CacheEntry, bool, error)
	Store(ctx context.Context, key string, value []byte, synced bool) error
	Remove(ctx context.Context, key string, synced bool) error
	Keys(ctx context.Context) ([]string, error)
	Pending(ctx context.Context) ([]CacheEntry, error)
	MarkSynced(ctx context.Context, key string) error
}

// MemoryCache is a Cache that lives only as long as the process.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]CacheEntry
}

// NewMemoryCache returns an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]CacheEntry{}}
}

func (m *MemoryCache) Load(_ context.Context, key string) (CacheEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return e, ok, nil
}

func (m *MemoryCache) Store(_ context.Context, key string, value []byte, synced bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = CacheEntry{Key: key, Value: append([]byte(nil), value...), Synced: synced}
	return nil
}

func (m *MemoryCache) Remove(_ context.Context, key string, synced bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if synced {
		delete(m.entries, key)
		return nil
	}
	m.entries[key] = CacheEntry{Key: key, Deleted: true}
	return nil
}

func (m *MemoryCache) Keys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := []string{}
	for k, e := range m.entries {
		if !e.Deleted {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryCache) Pending(_ context.Context) ([]CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []CacheEntry
	for _, e := range m.entries {
		if !e.Synced {
			pending = append(pending, e)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Key < pending[j].Key })
	return pending, nil
}

func (m *MemoryCache) MarkSynced(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil
	}
	if e.Deleted {
		delete(m.entries, key)
		return nil
	}
	e.Synced = true
	m.entries[key] = e
	return nil
}
