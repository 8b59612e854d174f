// Package cache provides an in-process TTL+LRU cache for job reads, plus an
// optional Redis-backed overlay that publishes aggregate stats so multiple
// API processes can observe a shared hit-rate figure.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// entry is the value stored behind each key, along with its LRU handle and
// expiry.
type entry struct {
	key       string
	value     any
	expiresAt time.Time
	elem      *list.Element
}

// Stats is a snapshot of cache counters, returned by the /jobs/stats
// endpoint's "cache" sub-document.
type Stats struct {
	Hits      int64
	Misses    int64
	Sets      int64
	Deletes   int64
	Evictions int64
	Size      int
	HitRate   float64
	// BytesEstimate is a rough sizing figure, not an accounting-grade
	// measurement: len(key) + a fixed per-entry overhead.
	BytesEstimate int64
}

const perEntryOverhead = 64

// Cache is a thread-safe, bounded TTL+LRU cache. The zero value is not
// usable; construct with New.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	entries    map[string]*entry
	order      *list.List // front = most recently used

	hits, misses, sets, deletes, evictions int64
}

// New returns a Cache bounded to maxEntries. maxEntries <= 0 means
// unbounded (eviction never triggers).
func New(maxEntries int) *Cache {
	return &Cache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
		order:      list.New(),
	}
}

// Get returns the cached value for key, or (nil, false) if absent or
// expired. A hit moves key to the front of the LRU order.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.removeLocked(e)
		c.misses++
		return nil, false
	}
	c.order.MoveToFront(e.elem)
	c.hits++
	return e.value, true
}

// Set stores value under key with the given ttl. ttl <= 0 means no
// expiry. If the cache is at capacity, the least-recently-used ~10% of
// entries are evicted to make room.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	if existing, ok := c.entries[key]; ok {
		existing.value = value
		existing.expiresAt = expiresAt
		c.order.MoveToFront(existing.elem)
		c.sets++
		return
	}

	e := &entry{key: key, value: value, expiresAt: expiresAt}
	e.elem = c.order.PushFront(e)
	c.entries[key] = e
	c.sets++

	c.evictIfOverCapacityLocked()
}

// Delete removes key, if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.removeLocked(e)
		c.deletes++
	}
}

// Has reports whether key is present and unexpired, without affecting LRU
// order or hit/miss counters.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	return e.expiresAt.IsZero() || !time.Now().After(e.expiresAt)
}

// Keys returns a snapshot of all live (unexpired) keys.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	keys := make([]string, 0, len(c.entries))
	for k, e := range c.entries {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

// Clear removes every entry without incrementing per-key delete counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.order.Init()
}

// Stats returns a snapshot of the cache's counters and current size.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var bytes int64
	for k := range c.entries {
		bytes += int64(len(k)) + perEntryOverhead
	}

	total := c.hits + c.misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		Sets:          c.sets,
		Deletes:       c.deletes,
		Evictions:     c.evictions,
		Size:          len(c.entries),
		HitRate:       hitRate,
		BytesEstimate: bytes,
	}
}

func (c *Cache) removeLocked(e *entry) {
	c.order.Remove(e.elem)
	delete(c.entries, e.key)
}

func (c *Cache) evictIfOverCapacityLocked() {
	if c.maxEntries <= 0 || len(c.entries) <= c.maxEntries {
		return
	}
	// Evict roughly 10% of capacity in one pass, so a hot key that keeps
	// nudging us over the limit doesn't trigger an eviction on every Set.
	batch := c.maxEntries / 10
	if batch < 1 {
		batch = 1
	}
	for i := 0; i < batch && len(c.entries) > 0; i++ {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest.Value.(*entry))
		c.evictions++
	}
}
