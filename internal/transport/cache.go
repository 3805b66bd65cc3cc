package transport

import (
	"net/http"
	"strings"
	"sync"
)

// FetchCache holds the last successful response per request key. It backs the
// stale fallback after exhausted transport retries.
type FetchCache struct {
	mu      sync.RWMutex
	entries map[string]Raw
}

// NewFetchCache creates an empty cache.
func NewFetchCache() *FetchCache {
	return &FetchCache{entries: make(map[string]Raw)}
}

// Get returns the cached response for key.
func (c *FetchCache) Get(key string) (Raw, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[key]
	return r, ok
}

// Put stores a successful response. Failed envelopes are not cached.
func (c *FetchCache) Put(key string, r Raw) {
	if !r.Success {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = r
}

// InvalidatePath drops the cached GET responses for path under any query.
// A successful write to path makes them stale.
func (c *FetchCache) InvalidatePath(path string) {
	prefix := http.MethodGet + " " + path
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key == prefix || strings.HasPrefix(key, prefix+"?") {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of cached keys.
func (c *FetchCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Reset drops every entry.
func (c *FetchCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Raw)
}
