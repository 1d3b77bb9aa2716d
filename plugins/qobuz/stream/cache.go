package stream

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vitiko98/mopidy-qobuz/backend"
	"github.com/vitiko98/mopidy-qobuz/backend/platform"
)

const (
	DefaultCacheSize = 1024
	// DefaultValidity is how long a signed URL is served from cache.
	DefaultValidity = 4 * time.Minute
)

// Cache is a bounded, expiry-aware LRU of playable descriptors.
type Cache struct {
	mu       sync.Mutex
	entries  *lru.Cache[Key, Descriptor]
	size     int
	validity time.Duration
	now      func() time.Time
	logger   backend.Logger
}

// CacheOption customises a Cache.
type CacheOption func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCacheLogger sets the logger used for expiry and eviction messages.
func WithCacheLogger(logger backend.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}

// NewCache creates a cache holding at most size entries, each valid for validity.
func NewCache(size int, validity time.Duration, opts ...CacheOption) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if validity <= 0 {
		validity = DefaultValidity
	}
	entries, err := lru.New[Key, Descriptor](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	c := &Cache{
		entries:  entries,
		size:     size,
		validity: validity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns a live descriptor. Stale entries are dropped and reported as misses.
func (c *Cache) Get(trackID string, format platform.Quality) (Descriptor, bool) {
	key := Key{TrackID: trackID, Format: format}

	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.entries.Get(key)
	if !ok {
		return Descriptor{}, false
	}
	if c.stale(d) {
		c.entries.Remove(key)
		if c.logger != nil {
			c.logger.Debug("cached url expired", "track_id", trackID, "format", format.FormatID(), "age", c.now().Sub(d.IssuedAt))
		}
		return Descriptor{}, false
	}
	return d, true
}

// Put stores a descriptor. Demo descriptors are never stored.
func (c *Cache) Put(d Descriptor) bool {
	if d.Demo || d.URL == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := d.Key()
	if !c.entries.Contains(key) && c.entries.Len() >= c.size {
		c.sweepLocked()
	}
	if evicted := c.entries.Add(key, d); evicted && c.logger != nil {
		c.logger.Debug("evicted least recently used url", "size", c.size)
	}
	return true
}

// Invalidate removes one entry.
func (c *Cache) Invalidate(trackID string, format platform.Quality) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Remove(Key{TrackID: trackID, Format: format})
}

// Purge empties the cache.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
}

// Len counts entries, stale ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Validity returns the configured validity window.
func (c *Cache) Validity() time.Duration {
	return c.validity
}

func (c *Cache) stale(d Descriptor) bool {
	return c.now().Sub(d.IssuedAt) >= c.validity
}

// sweepLocked drops stale entries, oldest first, so that a full cache evicts
// expired URLs before live ones.
func (c *Cache) sweepLocked() {
	for _, key := range c.entries.Keys() {
		d, ok := c.entries.Peek(key)
		if ok && c.stale(d) {
			c.entries.Remove(key)
		}
	}
}
