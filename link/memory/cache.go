// Package memory implements link.Cache on a mutex-guarded map.
// Used for development and tests; production deployments use link/redis.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/marcelsud/shortlink-edge/link"
)

type entry struct {
	rec link.Record
	// expiresAt is zero for entries cached without expiry (webhook links).
	expiresAt time.Time
}

type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	normalizer *link.Normalizer
	nowFunc    func() time.Time
}

// NewCache creates an empty in-memory cache using the given key normalizer
func NewCache(normalizer *link.Normalizer) *Cache {
	return &Cache{
		entries:    make(map[string]entry),
		normalizer: normalizer,
		nowFunc:    time.Now,
	}
}

// Get retrieves a cached record, expiring it lazily
func (c *Cache) Get(ctx context.Context, domain, key string) (link.Record, error) {
	mapKey := c.mapKey(domain, key)

	c.mu.RLock()
	e, exists := c.entries[mapKey]
	c.mu.RUnlock()

	if !exists {
		return link.Record{}, link.ErrCacheMiss
	}
	if !e.expiresAt.IsZero() && c.nowFunc().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock, a concurrent Set may have refreshed it.
		if cur, ok := c.entries[mapKey]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, mapKey)
		}
		c.mu.Unlock()
		return link.Record{}, link.ErrCacheMiss
	}
	return e.rec, nil
}

// Set stores a record, applying the webhook-aware TTL policy
func (c *Cache) Set(ctx context.Context, rec link.Record) error {
	cp := rec.CacheableCopy()

	var expiresAt time.Time
	if ttl := link.CacheTTL(cp); ttl > 0 {
		expiresAt = c.nowFunc().Add(ttl)
	}

	c.mu.Lock()
	c.entries[c.mapKey(cp.Domain, cp.Key)] = entry{rec: cp, expiresAt: expiresAt}
	c.mu.Unlock()
	return nil
}

// Invalidate removes a record from the cache
func (c *Cache) Invalidate(ctx context.Context, domain, key string) error {
	c.mu.Lock()
	delete(c.entries, c.mapKey(domain, key))
	c.mu.Unlock()
	return nil
}

// Len returns the number of live entries, counting expired ones until read.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) mapKey(domain, key string) string {
	domain, key = c.normalizer.Normalize(domain, key)
	return domain + "/" + key
}
