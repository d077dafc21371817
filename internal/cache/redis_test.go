package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_Add(t *testing.T) {
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		t.Skip("REDIS_ADDRESS not set, skipping redis integration test")
	}

	config := DefaultCacheConfig()
	config.Backend = CacheTypeRedis
	config.Redis.Address = addr
	config.Redis.Password = os.Getenv("REDIS_PASSWORD")

	c, err := NewCache(config)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	key := "relay:test:" + uuid.Must(uuid.NewV4()).String()
	defer c.Delete(ctx, key)

	stored, err := c.Add(ctx, key, []byte("1"), time.Minute)
	require.NoError(t, err)
	require.True(t, stored)

	stored, err = c.Add(ctx, key, []byte("2"), time.Minute)
	require.NoError(t, err)
	require.False(t, stored)

	require.Equal(t, int64(1), c.Stats().Hits)
	require.Equal(t, int64(1), c.Stats().Misses)

	require.NoError(t, c.Delete(ctx, key))
	stored, err = c.Add(ctx, key, []byte("3"), time.Minute)
	require.NoError(t, err)
	require.True(t, stored)
}

func TestRedisCache_Unavailable(t *testing.T) {
	config := DefaultCacheConfig()
	config.Backend = CacheTypeRedis
	config.Redis.Address = "127.0.0.1:1"

	_, err := NewRedisCache(config)
	require.ErrorIs(t, err, ErrCacheUnavailable)
}
