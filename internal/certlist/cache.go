package certlist

import "sync"

// Cache holds the last certificate list retrieved in full. It is a single
// slot: Set replaces it, Reset empties it.
type Cache struct {
	mu    sync.RWMutex
	certs []Certificate
	set   bool
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Get returns the cached list. The slice is shared with the cache and with
// every other caller; it must not be modified.
func (c *Cache) Get() ([]Certificate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.certs, c.set
}

func (c *Cache) Set(certs []Certificate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.certs = certs
	c.set = true
}

func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.certs = nil
	c.set = false
}
