package uploadcache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// MemoryCache is a process-local cache with lazy expiry. Entries are checked
// against their deadline on read; nothing sweeps in the background.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryCache) Get(_ context.Context, key string) (*Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	me, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if m.now().After(me.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	e := me.entry
	return &e, true, nil
}

func (m *MemoryCache) Put(_ context.Context, key string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{entry: *entry, expiresAt: m.now().Add(ttl)}
	return nil
}
