package cache

import (
	"context"
	"sync"
	"time"
)

type MemoryCache struct {
	mu          sync.RWMutex
	entries     map[string]Entry
	lastRefresh time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]Entry),
	}
}

func (c *MemoryCache) Get(_ context.Context, symbol string) (Entry, bool, error) {
	key := normalize(symbol)
	if key == "" {
		return Entry{}, false, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	return e, ok, nil
}

func (c *MemoryCache) Put(_ context.Context, e Entry) (bool, error) {
	key := normalize(e.Data.Symbol)
	if key == "" {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.entries[key]; ok && cur.Generation >= e.Generation {
		return false, nil
	}
	e.Data.Symbol = key
	c.entries[key] = e
	c.lastRefresh = time.Now().UTC()
	return true, nil
}

func (c *MemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}
