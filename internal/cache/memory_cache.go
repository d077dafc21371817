package cache

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/qolzam/telar/apps/relay/internal/pkg/log"
)

// cacheItem represents an item in the memory cache
type cacheItem struct {
	key        string
	value      []byte
	expiration time.Time
	index      int
}

// expiryHeap orders items by expiration, soonest first.
type expiryHeap []*cacheItem

func (h expiryHeap) Len() int           { return len(h) }
func (h expiryHeap) Less(i, j int) bool { return h[i].expiration.Before(h[j].expiration) }
func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *expiryHeap) Push(x any) {
	item := x.(*cacheItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// MemoryCache implements Cache in process memory. Entries live until their
// TTL passes; a full cache refuses new keys rather than dropping live ones.
type MemoryCache struct {
	items      map[string]*cacheItem
	expiry     expiryHeap
	mutex      sync.Mutex
	maxEntries int
	hits       int64
	misses     int64
	rejected   int64
	now        func() time.Time
	done       chan struct{}
	closeOnce  sync.Once
	closed     bool
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(config *CacheConfig) *MemoryCache {
	if config == nil {
		config = DefaultCacheConfig()
	}

	cache := &MemoryCache{
		items:      make(map[string]*cacheItem),
		maxEntries: config.MaxEntries,
		now:        time.Now,
		done:       make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		go cache.startCleanup(config.CleanupInterval)
	}

	return cache
}

// Add stores the key if it is absent or expired
func (c *MemoryCache) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return false, ErrCacheClosed
	}

	now := c.now()
	if item, exists := c.items[key]; exists {
		if now.Before(item.expiration) {
			atomic.AddInt64(&c.hits, 1)
			return false, nil
		}
		c.removeLocked(item)
	}

	if c.maxEntries > 0 && len(c.items) >= c.maxEntries {
		c.removeExpiredLocked(now)
		if len(c.items) >= c.maxEntries {
			atomic.AddInt64(&c.rejected, 1)
			log.Warn("Memory cache is full (%d live entries); refusing new keys", len(c.items))
			return false, ErrCacheFull
		}
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	item := &cacheItem{key: key, value: valueCopy, expiration: now.Add(ttl)}
	c.items[key] = item
	heap.Push(&c.expiry, item)

	atomic.AddInt64(&c.misses, 1)
	return true, nil
}

// Delete removes a value from cache
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if item, exists := c.items[key]; exists {
		c.removeLocked(item)
	}
	return nil
}

// Close stops the cleanup goroutine and drops all entries
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)

		c.mutex.Lock()
		defer c.mutex.Unlock()
		c.items = make(map[string]*cacheItem)
		c.expiry = nil
		c.closed = true
	})
	return nil
}

// Stats returns cache statistics
func (c *MemoryCache) Stats() CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	active := int64(0)
	for _, item := range c.items {
		if now.Before(item.expiration) {
			active++
		}
	}

	return CacheStats{
		Hits:     atomic.LoadInt64(&c.hits),
		Misses:   atomic.LoadInt64(&c.misses),
		Keys:     active,
		Rejected: atomic.LoadInt64(&c.rejected),
	}
}

func (c *MemoryCache) removeLocked(item *cacheItem) {
	delete(c.items, item.key)
	if item.index >= 0 && item.index < len(c.expiry) && c.expiry[item.index] == item {
		heap.Remove(&c.expiry, item.index)
	}
}

// startCleanup runs a background goroutine to clean up expired items
func (c *MemoryCache) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-c.done:
			return
		}
	}
}

// cleanupExpired removes expired items from the cache
func (c *MemoryCache) cleanupExpired() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.removeExpiredLocked(c.now())
}

func (c *MemoryCache) removeExpiredLocked(now time.Time) {
	for len(c.expiry) > 0 && !now.Before(c.expiry[0].expiration) {
		c.removeLocked(c.expiry[0])
	}
}
