package cache

import (
	"sync"
	"time"
)

// Cache is a process-local TTL cache for small, rarely changing
// reads such as the staff roster. Entries expire lazily on access.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]item
}

type item struct {
	value     any
	expiresAt time.Time
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &Cache{
		ttl:     ttl,
		entries: make(map[string]item),
	}
}

func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	it, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if time.Now().After(it.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// replaced the entry since the read above.
		if cur, ok := c.entries[key]; ok && cur.expiresAt.Equal(it.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return it.value, true
}

func (c *Cache) Set(key string, val any) {
	c.mu.Lock()
	c.entries[key] = item{value: val, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear drops every entry. Writers call it after mutations that
// invalidate list results.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]item)
	c.mu.Unlock()
}
