package data

import (
	"sync"
	"time"
)

type cacheEntry struct {
	body      []byte
	expiresAt time.Time
}

// ResponseCache keeps raw GME responses in memory for a TTL, keyed by the
// request URL. It is a development aid for repeated runs against the same
// ranges. A nil cache is valid and never hits.
type ResponseCache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
	now   func() time.Time
}

func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		store: make(map[string]cacheEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get retrieves a cached response if available and not expired
func (c *ResponseCache) Get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.store[key]
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.body, true
}

// Set stores a response and drops any expired entries.
func (c *ResponseCache) Set(key string, body []byte) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.store {
		if now.After(e.expiresAt) {
			delete(c.store, k)
		}
	}
	c.store[key] = cacheEntry{body: body, expiresAt: now.Add(c.ttl)}
}

func (c *ResponseCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Clear removes all entries from the cache
func (c *ResponseCache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = make(map[string]cacheEntry)
}
