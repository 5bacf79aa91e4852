package cache

import (
	"sync"
	"time"
)

type ttlEntry struct {
	value    []byte
	deadline time.Time
}

// TTLCache is the in-process BytesCache fallback. Expiry is lazy: an
// entry past its deadline is dropped by the read that finds it, so there
// is no sweeper goroutine to manage.
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]ttlEntry
}

func NewTTLCache() *TTLCache {
	return &TTLCache{entries: make(map[string]ttlEntry)}
}

func (c *TTLCache) GetBytes(key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if !e.deadline.IsZero() && time.Now().After(e.deadline) {
		c.mu.Lock()
		// A writer may have refreshed the key between locks; only drop
		// the entry we actually saw expire.
		if cur, ok := c.entries[key]; ok && cur.deadline.Equal(e.deadline) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

// SetBytes stores the value as given. A ttl of zero or less means the
// entry never expires.
func (c *TTLCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	var deadline time.Time
	if ttl > 0 {
		deadline = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = ttlEntry{value: value, deadline: deadline}
	c.mu.Unlock()
	return nil
}

var _ BytesCache = (*TTLCache)(nil)
