package ratelimiter

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type inMemoryEntry struct {
	value     int64
	expiresAt time.Time
}

type InMemory struct {
	cache     map[string]inMemoryEntry
	clock     clockwork.Clock
	mu        sync.RWMutex
	stopClean chan struct{}
	cleanOnce sync.Once
}

func NewInMemory(clock clockwork.Clock) *InMemory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	im := &InMemory{
		cache:     make(map[string]inMemoryEntry),
		clock:     clock,
		stopClean: make(chan struct{}),
	}

	go im.cleanupExpired()

	return im
}

func (i *InMemory) Get(key string) (int64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	entry, ok := i.cache[key]
	if !ok {
		return 0, ErrCacheMiss
	}

	if !entry.expiresAt.IsZero() && i.clock.Now().After(entry.expiresAt) {
		return 0, ErrCacheMiss
	}

	return entry.value, nil
}

func (i *InMemory) SetWithExpiration(key string, value int64, expiration time.Duration) error {
	var expiresAt time.Time
	if expiration > 0 {
		expiresAt = i.clock.Now().Add(expiration)
	}

	i.mu.Lock()
	i.cache[key] = inMemoryEntry{
		value:     value,
		expiresAt: expiresAt,
	}
	i.mu.Unlock()

	return nil
}

func (i *InMemory) cleanupExpired() {
	ticker := i.clock.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			i.removeExpired()
		case <-i.stopClean:
			return
		}
	}
}

func (i *InMemory) removeExpired() {
	now := i.clock.Now()

	i.mu.Lock()
	defer i.mu.Unlock()

	for key, entry := range i.cache {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(i.cache, key)
		}
	}
}

func (i *InMemory) Close() error {
	i.cleanOnce.Do(func() {
		close(i.stopClean)
	})
	return nil
}
