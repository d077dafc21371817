package cache

import (
	"fmt"

	platformconfig "github.com/qolzam/telar/apps/relay/internal/platform/config"
)

// NewCache creates a cache instance based on the provided configuration
func NewCache(config *CacheConfig) (Cache, error) {
	if config == nil {
		config = DefaultCacheConfig()
	}

	switch config.Backend {
	case CacheTypeMemory:
		return NewMemoryCache(config), nil
	case CacheTypeRedis:
		return NewRedisCache(config)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidCacheType, config.Backend)
	}
}

// ConfigFromPlatform converts the platform cache section
func ConfigFromPlatform(cfg platformconfig.CacheConfig) *CacheConfig {
	return &CacheConfig{
		Backend:         CacheType(cfg.Backend),
		MaxEntries:      cfg.MaxEntries,
		CleanupInterval: cfg.CleanupInterval,
		Redis: RedisConfig{
			Address:      cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			Database:     cfg.Redis.Database,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		},
	}
}
