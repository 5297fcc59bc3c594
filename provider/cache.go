package provider

import (
	"encoding/hex"
	"hash/fnv"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const (
	DefaultCacheCapacity = 100
	DefaultCacheTTL      = 30 * time.Second
)

// CacheEntry is a cached candidate list and the time it was stored.
type CacheEntry struct {
	Candidates []string
	CreatedAt  time.Time
}

// Cache holds recent in-line suggestions. Reads refresh recency but never
// extend an entry's lifetime. Entries are shared by every session of the
// process.
type Cache struct {
	items *ttlcache.Cache[string, CacheEntry]
	ttl   time.Duration
	now   func() time.Time
}

// NewCache creates a cache holding at most capacity entries for ttl each.
// Zero values fall back to the defaults.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		items: ttlcache.New[string, CacheEntry](
			ttlcache.WithTTL[string, CacheEntry](ttl),
			ttlcache.WithCapacity[string, CacheEntry](uint64(capacity)),
			ttlcache.WithDisableTouchOnHit[string, CacheEntry](),
		),
		ttl: ttl,
		now: time.Now,
	}
}

// SetClock replaces the time source used for entry ages.
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

// Get returns the candidates stored under key. An entry whose age reached
// the TTL is removed and reported as a miss.
func (c *Cache) Get(key string) ([]string, bool) {
	item := c.items.Get(key)
	if item == nil {
		return nil, false
	}
	entry := item.Value()
	if c.now().Sub(entry.CreatedAt) >= c.ttl {
		c.items.Delete(key)
		return nil, false
	}
	return entry.Candidates, true
}

// Set stores candidates under key, evicting the least recently used entry
// when the cache is full.
func (c *Cache) Set(key string, candidates []string) {
	c.items.Set(key, CacheEntry{
		Candidates: append([]string(nil), candidates...),
		CreatedAt:  c.now(),
	}, ttlcache.DefaultTTL)
}

// Len reports the number of stored entries, expired ones included until
// they are looked up.
func (c *Cache) Len() int {
	return c.items.Len()
}

// CacheKey identifies a request by file type, line prefix and a hash of the
// context text.
func CacheKey(fileType, linePrefix, context string) string {
	h := fnv.New64a()
	h.Write([]byte(context))
	return fileType + ":" + linePrefix + ":" + hex.EncodeToString(h.Sum(nil))
}
