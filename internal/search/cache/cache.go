// Package cache is the redis-backed query result cache for the search
// service. Concurrent identical queries share one computation through
// singleflight.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/babelindex/babelindex/internal/engine/tokenizer"
	"github.com/babelindex/babelindex/pkg/config"
	pkgredis "github.com/babelindex/babelindex/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "search:"

type QueryCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, query, docType string, offset, limit int) ([]byte, bool) {
	key := c.buildKey(query, docType, offset, limit)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "query", query, "key", key)
	return []byte(data), true
}

func (c *QueryCache) Set(ctx context.Context, query, docType string, offset, limit int, payload []byte) {
	key := c.buildKey(query, docType, offset, limit)
	if err := c.client.Set(ctx, key, payload, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached payload for the query, or computes, stores
// and returns it. The second return reports whether the cache served it.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query, docType string,
	offset, limit int,
	computeFn func() ([]byte, error),
) ([]byte, bool, error) {
	if payload, ok := c.Get(ctx, query, docType, offset, limit); ok {
		return payload, true, nil
	}
	key := c.buildKey(query, docType, offset, limit)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if payload, ok := c.Get(ctx, query, docType, offset, limit); ok {
			return payload, nil
		}
		payload, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, docType, offset, limit, payload)
		return payload, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]byte), false, nil
}

// Invalidate drops every cached search result. Called after document or
// vocabulary mutations.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) buildKey(query, docType string, offset, limit int) string {
	words := tokenizer.GetWords(query)
	raw := fmt.Sprintf("%s|type=%s|offset=%d|limit=%d", strings.Join(words, " "), docType, offset, limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
