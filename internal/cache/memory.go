package cache

import (
	"context"
	"sync"
	"time"

	"github.com/chrbailey/restaurant-scheduler-sub005/internal/model"
)

type memoryEntry struct {
	rep       model.NetworkReputation
	expiresAt time.Time
}

// MemoryCache is an in-process Cache for development and tests. Expired
// entries are dropped lazily on read; the keyspace is bounded by worker
// identities so no sweeper is needed.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (*model.NetworkReputation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, nil
	}
	rep := e.rep
	return &rep, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, rep model.NetworkReputation, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{rep: rep, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *MemoryCache) Close() error {
	return nil
}
