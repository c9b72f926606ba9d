package feed

import (
	"sync"
	"time"

	"github.com/italyre/casafeed/pkg/domain"
)

// Cache is a small TTL cache for aggregation results. Entries expire on read;
// no size bound, the number of distinct keys is tiny.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	value  *domain.AggregationResult
	stored time.Time
}

// NewCache creates a cache with the given TTL, using the wall clock
func NewCache(ttl time.Duration) *Cache {
	return NewCacheWithClock(ttl, time.Now)
}

// NewCacheWithClock creates a cache with a caller-supplied clock, for tests
func NewCacheWithClock(ttl time.Duration, now func() time.Time) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     now,
	}
}

// Get returns the cached value when present and younger than the TTL
func (c *Cache) Get(key string) (*domain.AggregationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.stored) >= c.ttl {
		return nil, false
	}
	return e.value, true
}

// GetStale returns the cached value regardless of age, for degraded responses
func (c *Cache) GetStale(key string) (*domain.AggregationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Set stores a value stamped with the current time
func (c *Cache) Set(key string, value *domain.AggregationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, stored: c.now()}
}

// Clear empties all entries
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
