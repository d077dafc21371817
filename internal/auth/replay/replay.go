// Package replay rejects signed submissions that were already accepted
// within the freshness window.
package replay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/qolzam/telar/apps/relay/internal/cache"
)

// ErrReplayed is returned when a digest has been seen inside the window.
var ErrReplayed = errors.New("signature already used")

// Guard remembers accepted digests for the lifetime of their timestamps.
type Guard interface {
	// Remember records digest. It returns ErrReplayed if the digest was
	// already recorded and has not yet expired.
	Remember(ctx context.Context, digest string, timestamp int64) error

	// Forget drops a recorded digest so an identical request can be
	// retried after a failure that happened downstream of the guard.
	Forget(ctx context.Context, digest string) error
}

// CacheGuard stores digests in a cache.Cache.
type CacheGuard struct {
	store  cache.Cache
	prefix string
	window time.Duration
	now    func() time.Time
}

// NewCacheGuard creates a guard for signatures that stay fresh for window.
func NewCacheGuard(store cache.Cache, prefix string, window time.Duration) *CacheGuard {
	return &CacheGuard{store: store, prefix: prefix, window: window, now: time.Now}
}

// Remember implements Guard. An entry lives until its timestamp leaves the
// freshness window, and at least for window, so a future dated signature
// stays blocked for as long as it would be accepted.
func (g *CacheGuard) Remember(ctx context.Context, digest string, timestamp int64) error {
	stored, err := g.store.Add(ctx, g.key(digest), []byte(strconv.FormatInt(timestamp, 10)), g.ttl(timestamp))
	if err != nil {
		return fmt.Errorf("replay cache: %w", err)
	}
	if !stored {
		return ErrReplayed
	}
	return nil
}

func (g *CacheGuard) ttl(timestamp int64) time.Duration {
	ttl := time.UnixMilli(timestamp).Add(g.window).Sub(g.now())
	if ttl < g.window {
		return g.window
	}
	return ttl
}

// Forget implements Guard
func (g *CacheGuard) Forget(ctx context.Context, digest string) error {
	if err := g.store.Delete(ctx, g.key(digest)); err != nil {
		return fmt.Errorf("replay cache: %w", err)
	}
	return nil
}

func (g *CacheGuard) key(digest string) string {
	return g.prefix + digest
}

// Disabled accepts every digest.
type Disabled struct{}

// Remember implements Guard
func (Disabled) Remember(context.Context, string, int64) error { return nil }

// Forget implements Guard
func (Disabled) Forget(context.Context, string) error { return nil }
