package lru

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/rr-certoverride/internal/certs/domain"
	"github.com/haukened/rr-certoverride/internal/certs/repos/overrides"
)

// lookupCache is an LRU-backed overrides.LookupCache that counts hits,
// misses and evictions.
type lookupCache struct {
	lru       *lru.Cache[string, domain.Override]
	hits      uint64
	misses    uint64
	evictions uint64
}

// disabledCache always misses.
type disabledCache struct{}

// New creates a LookupCache holding up to size entries. A size <= 0 returns a
// disabled cache.
func New(size int) (overrides.LookupCache, error) {
	if size <= 0 {
		return &disabledCache{}, nil
	}

	var c lookupCache
	cache, err := lru.NewWithEvict(size, func(string, domain.Override) {
		atomic.AddUint64(&c.evictions, 1)
	})
	if err != nil {
		return nil, err
	}
	c.lru = cache
	return &c, nil
}

func (c *lookupCache) Get(key string) (domain.Override, bool) {
	if o, ok := c.lru.Get(key); ok {
		atomic.AddUint64(&c.hits, 1)
		return o, true
	}
	atomic.AddUint64(&c.misses, 1)
	return domain.Override{}, false
}

func (c *lookupCache) Put(key string, o domain.Override) { c.lru.Add(key, o) }

// Remove drops key. Explicit removals are counted as evictions.
func (c *lookupCache) Remove(key string) { c.lru.Remove(key) }

func (c *lookupCache) Len() int { return c.lru.Len() }

func (c *lookupCache) Purge() { c.lru.Purge() }

func (c *lookupCache) Stats() (hits, misses, evictions uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses), atomic.LoadUint64(&c.evictions)
}

func (d *disabledCache) Get(string) (domain.Override, bool) { return domain.Override{}, false }
func (d *disabledCache) Put(string, domain.Override)        {}
func (d *disabledCache) Remove(string)                      {}
func (d *disabledCache) Len() int                           { return 0 }
func (d *disabledCache) Purge()                             {}
func (d *disabledCache) Stats() (uint64, uint64, uint64)    { return 0, 0, 0 }

var _ overrides.LookupCache = (*lookupCache)(nil)
var _ overrides.LookupCache = (*disabledCache)(nil)
