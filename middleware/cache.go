package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/ohler55/ojg/oj"
	"golang.org/x/sync/singleflight"

	"github.com/agentstation/runnable"
)

// CacheStats contains cache statistics.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Sets      int64
	Evictions int64
	Size      int
	MaxSize   int
}

// LRUCache is a size-bounded result cache with per-entry expiry. It is safe
// for concurrent use.
type LRUCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]*cacheEntry
	head    *cacheEntry
	tail    *cacheEntry
	stats   CacheStats
	now     func() time.Time
}

type cacheEntry struct {
	key        string
	value      any
	expiry     time.Time
	prev, next *cacheEntry
}

// NewLRUCache returns a cache holding at most maxSize entries.
func NewLRUCache(maxSize int) *LRUCache {
	c := &LRUCache{
		maxSize: max(maxSize, 1),
		entries: make(map[string]*cacheEntry),
		now:     time.Now,
	}
	c.stats.MaxSize = c.maxSize

	// sentinels
	c.head = &cacheEntry{}
	c.tail = &cacheEntry{}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns the live value stored under key.
func (c *LRUCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if !e.expiry.IsZero() && c.now().After(e.expiry) {
		c.remove(e)
		c.stats.Misses++
		return nil, false
	}
	c.unlink(e)
	c.pushFront(e)
	c.stats.Hits++
	return e.value, true
}

// Set stores value under key. A zero ttl never expires.
func (c *LRUCache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Sets++
	var expiry time.Time
	if ttl > 0 {
		expiry = c.now().Add(ttl)
	}
	if e, ok := c.entries[key]; ok {
		e.value, e.expiry = value, expiry
		c.unlink(e)
		c.pushFront(e)
		return
	}

	e := &cacheEntry{key: key, value: value, expiry: expiry}
	c.entries[key] = e
	c.pushFront(e)
	c.stats.Size++
	if c.stats.Size > c.maxSize {
		c.remove(c.tail.prev)
		c.stats.Evictions++
	}
}

// Clear removes every entry.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.head.next = c.tail
	c.tail.prev = c.head
	c.stats.Size = 0
}

// Stats returns a snapshot of the cache statistics.
func (c *LRUCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *LRUCache) remove(e *cacheEntry) {
	delete(c.entries, e.key)
	c.unlink(e)
	c.stats.Size--
}

func (c *LRUCache) unlink(e *cacheEntry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (c *LRUCache) pushFront(e *cacheEntry) {
	e.next = c.head.next
	e.prev = c.head
	c.head.next.prev = e
	c.head.next = e
}

// KeyFunc derives the cache key of an input.
type KeyFunc func(name string, input any) string

// HashKey keys an input by the runnable name and a SHA-256 of its JSON
// form with sorted object keys.
func HashKey(name string, input any) string {
	sum := sha256.Sum256([]byte(oj.JSON(input, &oj.Options{Sort: true})))
	return name + ":" + hex.EncodeToString(sum[:])
}

// CacheOption configures Cache.
type CacheOption func(*cacheOptions)

type cacheOptions struct {
	ttl time.Duration
	key KeyFunc
}

// WithTTL expires cached results after d.
func WithTTL(d time.Duration) CacheOption {
	return func(o *cacheOptions) { o.ttl = d }
}

// WithKeyFunc replaces HashKey.
func WithKeyFunc(fn KeyFunc) CacheOption {
	return func(o *cacheOptions) { o.key = fn }
}

// Cache serves repeated invocations from cache. Concurrent misses on the same
// key share one call. Failed results are not stored and streams pass through
// uncached.
func Cache(cache *LRUCache, opts ...CacheOption) Middleware {
	o := cacheOptions{key: HashKey}
	for _, opt := range opts {
		opt(&o)
	}
	return func(r runnable.Runnable) runnable.Runnable {
		var group singleflight.Group
		return Wrap(r, func(ctx context.Context, input any, cfg runnable.Config) (any, error) {
			key := o.key(r.Name(), input)
			if v, ok := cache.Get(key); ok {
				return v, nil
			}
			v, err, _ := group.Do(key, func() (any, error) {
				if v, ok := cache.Get(key); ok {
					return v, nil
				}
				out, err := r.Invoke(ctx, input, cfg)
				if err != nil {
					return nil, err
				}
				cache.Set(key, out, o.ttl)
				return out, nil
			})
			return v, err
		}, nil)
	}
}
