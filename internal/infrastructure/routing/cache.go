package routing

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const DefaultCacheTTL = 12 * time.Second

type cacheEntry struct {
	createdAt time.Time
	result    Result
}

// Cache holds route results per directional coordinate pair. An entry is
// valid only while younger than the TTL; stale entries read as absent.
type Cache struct {
	entries map[string]cacheEntry
	ttl     time.Duration
	clock   clockwork.Clock
	mu      sync.Mutex
}

func NewCache(ttl time.Duration, clock clockwork.Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

// CacheKey renders "dir:from->to" with both ends rounded to five decimals.
func CacheKey(dir Direction, from, to Coordinate) string {
	return string(dir) + ":" + from.String() + "->" + to.String()
}

func (c *Cache) Get(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}
	if c.clock.Since(entry.createdAt) >= c.ttl {
		delete(c.entries, key)
		return Result{}, false
	}
	return entry.result, true
}

func (c *Cache) Set(key string, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.entries[key] = cacheEntry{createdAt: now, result: result}

	// sweep while holding the lock; the table is small and per-process
	for k, e := range c.entries {
		if now.Sub(e.createdAt) >= c.ttl {
			delete(c.entries, k)
		}
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
