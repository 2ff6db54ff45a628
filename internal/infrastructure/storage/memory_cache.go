package storage

import (
	"context"
	"sync"
	"time"

	"atompub/internal/domain/repository"
)

type memoryCache struct {
	mu       sync.RWMutex
	seen     map[string]map[string]time.Time
	capacity int
}

// NewMemoryCacheRepository is the in-process fallback used when the sqlite
// cache cannot be opened. Dedup still works within the process lifetime;
// a restart reseeds every feed.
func NewMemoryCacheRepository(capacity int) repository.SeenCache {
	if capacity <= 0 {
		capacity = defaultCapacityPerFeed
	}
	return &memoryCache{
		seen:     make(map[string]map[string]time.Time),
		capacity: capacity,
	}
}

func (c *memoryCache) Seen(ctx context.Context, feed, entryID string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.seen[feed][entryID]
	return ok, nil
}

func (c *memoryCache) Mark(ctx context.Context, feed, entryID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, ok := c.seen[feed]
	if !ok {
		ids = make(map[string]time.Time)
		c.seen[feed] = ids
	}
	ids[entryID] = time.Now()
	evictOldest(ids, c.capacity)

	return nil
}

func (c *memoryCache) Seed(ctx context.Context, feed string, entryIDs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, ok := c.seen[feed]
	if !ok {
		ids = make(map[string]time.Time, len(entryIDs))
		c.seen[feed] = ids
	}

	// The index offset preserves the feed's native order for eviction.
	now := time.Now()
	for i, entryID := range entryIDs {
		ids[entryID] = now.Add(time.Duration(i))
	}
	evictOldest(ids, c.capacity)

	return nil
}

func evictOldest(ids map[string]time.Time, capacity int) {
	for len(ids) > capacity {
		var oldestID string
		var oldest time.Time
		for id, at := range ids {
			if oldestID == "" || at.Before(oldest) {
				oldestID = id
				oldest = at
			}
		}
		delete(ids, oldestID)
	}
}

func (c *memoryCache) Count(ctx context.Context, feed string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.seen[feed]), nil
}

func (c *memoryCache) Close() error {
	return nil
}
