// Package cache implements the read-through link cache sitting in front
// of the durable store. The cache is a pure latency optimization: any
// cache-store failure falls through to a direct storage read.
package cache

import (
	"LINKR-Backend/internal/domain"
	"LINKR-Backend/internal/repository"
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrMiss is returned by a Store when the key is absent.
var ErrMiss = errors.New("cache miss")

// Store is the raw key-value store backing the cache. Implementations
// must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// LinkCache is a cache-aside layer keyed by short code.
type LinkCache struct {
	store   Store
	storage repository.Storage
	ttl     time.Duration
	log     *zap.Logger
}

// New creates a LinkCache with the given TTL for populated entries.
func New(store Store, storage repository.Storage, ttl time.Duration, log *zap.Logger) *LinkCache {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &LinkCache{
		store:   store,
		storage: storage,
		ttl:     ttl,
		log:     log,
	}
}

func cacheKey(shortCode string) string {
	return "link:" + shortCode
}

// GetLink returns the link for the given short code, probing the cache
// first and falling back to the durable store on miss or on any cache
// error. Misses are never cached, so a link created moments after a
// lookup under the same code resolves immediately.
func (c *LinkCache) GetLink(ctx context.Context, shortCode string) (*domain.ShortLink, error) {
	data, err := c.store.Get(ctx, cacheKey(shortCode))
	if err == nil {
		var link domain.ShortLink
		if jsonErr := json.Unmarshal(data, &link); jsonErr == nil {
			return &link, nil
		} else {
			// Corrupt entry: drop it and fall through to storage.
			c.log.Warn("failed to decode cached link, invalidating",
				zap.String("short_code", shortCode), zap.Error(jsonErr))
			c.Invalidate(ctx, shortCode)
		}
	} else if err != ErrMiss {
		// Cache store degradation must never break redirects. Skip the
		// re-populate step too: the store is presumed unhealthy.
		c.log.Warn("cache store unavailable, falling through to storage",
			zap.String("short_code", shortCode), zap.Error(err))
		return c.storage.GetLinkByCode(ctx, shortCode)
	}

	link, err := c.storage.GetLinkByCode(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(link); err == nil {
		if err := c.store.Set(ctx, cacheKey(shortCode), data, c.ttl); err != nil {
			c.log.Warn("failed to populate cache", zap.String("short_code", shortCode), zap.Error(err))
		}
	}

	return link, nil
}

// Invalidate unconditionally deletes the cache entry for the code.
// Every write path mutating cached fields must call this (both the old
// and the new code on a rename).
func (c *LinkCache) Invalidate(ctx context.Context, shortCode string) {
	if err := c.store.Del(ctx, cacheKey(shortCode)); err != nil {
		c.log.Warn("failed to invalidate cache entry", zap.String("short_code", shortCode), zap.Error(err))
	}
}

// Warm pre-populates the cache entry for a freshly created link so the
// first redirect is not a guaranteed miss.
func (c *LinkCache) Warm(ctx context.Context, link *domain.ShortLink) {
	data, err := json.Marshal(link)
	if err != nil {
		c.log.Warn("failed to encode link for warming", zap.String("short_code", link.ShortCode), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, cacheKey(link.ShortCode), data, c.ttl); err != nil {
		c.log.Warn("failed to warm cache", zap.String("short_code", link.ShortCode), zap.Error(err))
	}
}

