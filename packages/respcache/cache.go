// Package respcache holds fetched response bodies for a short time so a later
// download call can retrieve them. Entries expire after a TTL and the store is
// capacity-bounded: when full it evicts the oldest third rather than failing.
package respcache

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTTL is how long an entry stays retrievable.
	DefaultTTL = 5 * time.Minute
	// DefaultCapacity is the maximum number of live entries.
	DefaultCapacity = 100

	fallbackContentType = "application/octet-stream"
)

type entry struct {
	expiresAt   time.Time
	raw         []byte
	contentType string
}

// Cache is a capacity-bounded, TTL'd in-memory store. The cache exclusively
// owns stored byte slices after Put. Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[string]*entry
	order    []string // insertion order, oldest first
	now      func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the default entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCapacity overrides the default entry limit.
func WithCapacity(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// withClock injects a fake clock for tests.
func withClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New builds a Cache. There is no package-level instance; callers construct
// one and pass it where it is needed.
func New(opts ...Option) *Cache {
	c := &Cache{
		ttl:      DefaultTTL,
		capacity: DefaultCapacity,
		entries:  make(map[string]*entry),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Put stores raw bytes with their content type and returns a fresh opaque
// identifier. It never fails: expired entries are swept lazily and, if the
// cache is still full, the oldest third of entries is evicted to make room.
func (c *Cache) Put(raw []byte, contentType string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweepLocked(now)
	if len(c.entries) >= c.capacity {
		n := len(c.entries) / 3
		if n < 1 {
			n = 1
		}
		c.evictOldestLocked(n)
	}

	if raw == nil {
		raw = []byte{}
	}
	if contentType == "" {
		contentType = fallbackContentType
	}

	id := c.newIDLocked()
	c.entries[id] = &entry{
		expiresAt:   now.Add(c.ttl),
		raw:         raw,
		contentType: contentType,
	}
	c.order = append(c.order, id)
	return id
}

// Get returns the stored bytes and content type for id. The entry is left in
// place, so reads repeat within the TTL. Expired or unknown identifiers
// report ok=false.
func (c *Cache) Get(id string) ([]byte, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweepLocked(now)

	e, ok := c.entries[id]
	if !ok {
		return nil, "", false
	}
	if now.After(e.expiresAt) {
		c.removeLocked(id)
		return nil, "", false
	}
	return e.raw, e.contentType, true
}

// Len reports the number of live entries, after sweeping expired ones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked(c.now())
	return len(c.entries)
}

func (c *Cache) sweepLocked(now time.Time) {
	kept := c.order[:0]
	for _, id := range c.order {
		e, ok := c.entries[id]
		if !ok {
			continue
		}
		if now.After(e.expiresAt) {
			delete(c.entries, id)
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept
}

func (c *Cache) evictOldestLocked(n int) {
	for i := 0; i < n && len(c.order) > 0; i++ {
		id := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, id)
	}
}

func (c *Cache) removeLocked(id string) {
	delete(c.entries, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// newIDLocked generates a URL-safe identifier that does not collide with a
// live entry.
func (c *Cache) newIDLocked() string {
	for {
		id := uuid.NewString()
		if _, exists := c.entries[id]; !exists {
			return id
		}
	}
}
