package cache

import (
	"context"
	"errors"
	"time"
)

// Cache is a TTL key/value store. The relay uses it to remember recently
// accepted signatures; Add is the atomic "first writer wins" primitive.
type Cache interface {
	// Add stores value under key only if the key is absent or expired.
	// It reports whether this call stored the key.
	Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes a value from cache by key
	Delete(ctx context.Context, key string) error

	// Close closes the cache connection
	Close() error

	// Stats returns cache statistics
	Stats() CacheStats
}

// CacheConfig holds configuration for cache instances
type CacheConfig struct {
	// Backend specifies the cache backend (memory, redis)
	Backend CacheType `json:"backend" yaml:"backend"`

	// MaxEntries bounds the memory backend. Expired entries are reclaimed
	// first; when every entry is live, Add fails with ErrCacheFull.
	// Zero means unbounded.
	MaxEntries int `json:"max_entries" yaml:"max_entries"`

	// CleanupInterval for expired item cleanup
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`

	// Redis configuration
	Redis RedisConfig `json:"redis" yaml:"redis"`
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	// Address is the Redis server address
	Address string `json:"address" yaml:"address"`

	// Password for Redis authentication
	Password string `json:"-" yaml:"-"`

	// Database number
	Database int `json:"database" yaml:"database"`

	// PoolSize is the maximum number of connections
	PoolSize int `json:"pool_size" yaml:"pool_size"`

	// MinIdleConns is the minimum number of idle connections
	MinIdleConns int `json:"min_idle_conns" yaml:"min_idle_conns"`
}

// CacheStats provides cache statistics
type CacheStats struct {
	// Hits is the number of Add calls that found the key already present
	Hits int64 `json:"hits"`

	// Misses is the number of Add calls that stored a new key
	Misses int64 `json:"misses"`

	// Keys is the current number of live keys in cache
	Keys int64 `json:"keys"`

	// Rejected is the number of Add calls refused because the cache was full
	Rejected int64 `json:"rejected"`
}

// Common cache errors
var (
	// ErrCacheUnavailable is returned when cache backend is unavailable
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrInvalidTTL is returned when TTL is invalid
	ErrInvalidTTL = errors.New("invalid TTL")

	// ErrInvalidCacheType is returned when cache type is invalid
	ErrInvalidCacheType = errors.New("invalid cache type")

	// ErrCacheClosed is returned after Close
	ErrCacheClosed = errors.New("cache closed")

	// ErrCacheFull is returned when MaxEntries live entries are stored
	ErrCacheFull = errors.New("cache full")
)

// DefaultCacheConfig returns default cache configuration
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Backend:         CacheTypeMemory,
		MaxEntries:      100000,
		CleanupInterval: time.Minute,
		Redis: RedisConfig{
			Address:      "localhost:6379",
			PoolSize:     10,
			MinIdleConns: 2,
		},
	}
}

// CacheType represents different cache backend types
type CacheType string

const (
	// CacheTypeMemory represents in-memory cache
	CacheTypeMemory CacheType = "memory"

	// CacheTypeRedis represents Redis cache
	CacheTypeRedis CacheType = "redis"
)
