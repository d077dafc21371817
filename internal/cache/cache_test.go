package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMemoryCache(t *testing.T, maxEntries int) (*MemoryCache, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Unix(1700000000, 0)}
	c := NewMemoryCache(&CacheConfig{Backend: CacheTypeMemory, MaxEntries: maxEntries})
	c.now = clock.Now
	t.Cleanup(func() { _ = c.Close() })
	return c, clock
}

// live reports whether key is stored and not yet expired.
func live(c *MemoryCache, key string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	item, ok := c.items[key]
	return ok && c.now().Before(item.expiration)
}

func TestNewCache(t *testing.T) {
	t.Run("CreateMemoryCache", func(t *testing.T) {
		config := DefaultCacheConfig()
		config.Backend = CacheTypeMemory

		c, err := NewCache(config)
		require.NoError(t, err)
		assert.IsType(t, &MemoryCache{}, c)
		assert.NoError(t, c.Close())
	})

	t.Run("InvalidCacheType", func(t *testing.T) {
		config := DefaultCacheConfig()
		config.Backend = CacheType("invalid")

		_, err := NewCache(config)
		assert.ErrorIs(t, err, ErrInvalidCacheType)
	})
}

func TestMemoryCache_AddOnce(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemoryCache(t, 0)

	stored, err := c.Add(ctx, "sig:1", []byte("1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = c.Add(ctx, "sig:1", []byte("2"), time.Minute)
	require.NoError(t, err)
	assert.False(t, stored)

	assert.Equal(t, []byte("1"), c.items["sig:1"].value)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Keys)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestMemoryCache(t, 0)

	_, err := c.Add(ctx, "k", []byte("v"), time.Minute)
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	assert.True(t, live(c, "k"))
	stored, err := c.Add(ctx, "k", []byte("v2"), time.Minute)
	require.NoError(t, err)
	assert.False(t, stored)

	clock.Advance(time.Second)
	assert.False(t, live(c, "k"))

	stored, err = c.Add(ctx, "k", []byte("v2"), time.Minute)
	require.NoError(t, err)
	assert.True(t, stored, "expired key can be stored again")
}

func TestMemoryCache_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestMemoryCache(t, 0)

	for i := 0; i < 5; i++ {
		_, err := c.Add(ctx, fmt.Sprintf("k%d", i), nil, time.Duration(i+1)*time.Second)
		require.NoError(t, err)
	}

	clock.Advance(3 * time.Second)
	c.cleanupExpired()

	assert.Len(t, c.items, 2)
	assert.Len(t, c.expiry, 2)
}

func TestMemoryCache_FullRefusesNewKeys(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestMemoryCache(t, 2)

	_, err := c.Add(ctx, "short", nil, time.Second)
	require.NoError(t, err)
	_, err = c.Add(ctx, "long", nil, time.Hour)
	require.NoError(t, err)

	stored, err := c.Add(ctx, "new", nil, time.Minute)
	assert.ErrorIs(t, err, ErrCacheFull)
	assert.False(t, stored)
	assert.True(t, live(c, "short"), "live entries are never dropped")
	assert.True(t, live(c, "long"))
	assert.Equal(t, int64(1), c.Stats().Rejected)

	// Once an entry expires its slot is reclaimed.
	clock.Advance(time.Second)
	stored, err = c.Add(ctx, "new", nil, time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)
	assert.False(t, live(c, "short"))
	assert.True(t, live(c, "new"))
	assert.Equal(t, int64(2), c.Stats().Keys)
}

func TestMemoryCache_Delete(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemoryCache(t, 0)

	_, err := c.Add(ctx, "k", nil, time.Minute)
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, "k"))
	require.NoError(t, c.Delete(ctx, "missing"))

	assert.False(t, live(c, "k"))
	assert.Empty(t, c.expiry)
}

func TestMemoryCache_InvalidTTLAndClosed(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemoryCache(t, 0)

	_, err := c.Add(ctx, "k", nil, 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.Add(ctx, "k", nil, time.Minute)
	assert.ErrorIs(t, err, ErrCacheClosed)
}

func TestMemoryCache_ConcurrentAddSingleWinner(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(DefaultCacheConfig())
	defer c.Close()

	var winners int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if stored, err := c.Add(ctx, "same", nil, time.Minute); err == nil && stored {
				atomic.AddInt64(&winners, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), winners)
}
