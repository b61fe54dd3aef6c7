// Package prefixcache maintains an in-memory cache of known indexable
// spellings keyed by their first two characters. Segmentation probes "does
// this substring exist as a spelling" for O(n²) substrings of each token;
// caching per prefix bounds vocabulary-store round trips to one per distinct
// prefix instead of one per probe.
package prefixcache

import (
	"context"
	"log/slog"
	"sync"

	"github.com/babelindex/babelindex/pkg/metrics"
)

// SpellingSource is the single vocabulary-store call the cache depends on:
// all indexable spellings sharing a prefix.
type SpellingSource interface {
	FindWordsWithPrefix(ctx context.Context, prefix string) (map[string]struct{}, error)
}

// Cache lazily populates one spelling set per prefix and is kept current by
// explicit Add/Discard calls whenever the store's word set changes. A cached
// empty set still short-circuits future queries for that prefix.
type Cache struct {
	mu        sync.RWMutex
	source    SpellingSource
	prefixLen int
	prefixes  map[string]map[string]struct{}
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// New creates a Cache over the given source. prefixLen values below 1 fall
// back to 2. The metrics argument may be nil.
func New(source SpellingSource, prefixLen int, m *metrics.Metrics) *Cache {
	if prefixLen < 1 {
		prefixLen = 2
	}
	return &Cache{
		source:    source,
		prefixLen: prefixLen,
		prefixes:  make(map[string]map[string]struct{}),
		logger:    slog.Default().With("component", "prefix-cache"),
		metrics:   m,
	}
}

// Contains reports whether spelling is a known indexable spelling, seeding
// the spelling's prefix from the store on first sight.
func (c *Cache) Contains(ctx context.Context, spelling string) (bool, error) {
	if spelling == "" {
		return false, nil
	}
	prefix := c.prefixOf(spelling)

	c.mu.RLock()
	set, cached := c.prefixes[prefix]
	if cached {
		_, ok := set[spelling]
		c.mu.RUnlock()
		if c.metrics != nil {
			c.metrics.PrefixCacheHits.Inc()
		}
		return ok, nil
	}
	c.mu.RUnlock()

	if err := c.seedPrefix(ctx, prefix); err != nil {
		return false, err
	}
	c.mu.RLock()
	_, ok := c.prefixes[prefix][spelling]
	c.mu.RUnlock()
	return ok, nil
}

// Seed batch-warms the cache for many spellings with at most one store round
// trip per new prefix. Already-cached prefixes are skipped.
func (c *Cache) Seed(ctx context.Context, spellings []string) error {
	wanted := make(map[string]struct{})
	c.mu.RLock()
	for _, spelling := range spellings {
		if spelling == "" {
			continue
		}
		prefix := c.prefixOf(spelling)
		if _, cached := c.prefixes[prefix]; !cached {
			wanted[prefix] = struct{}{}
		}
	}
	c.mu.RUnlock()

	for prefix := range wanted {
		if err := c.seedPrefix(ctx, prefix); err != nil {
			return err
		}
	}
	return nil
}

// Add records a newly created spelling in its prefix's cached set. Prefixes
// never seen by the cache are left alone; they will be fetched complete on
// first use.
func (c *Cache) Add(spelling string) {
	if spelling == "" {
		return
	}
	prefix := c.prefixOf(spelling)
	c.mu.Lock()
	defer c.mu.Unlock()
	if set, cached := c.prefixes[prefix]; cached {
		set[spelling] = struct{}{}
	}
}

// Discard removes a deleted spelling from its prefix's cached set. Removing
// the last member drops the prefix entry entirely.
func (c *Cache) Discard(spelling string) {
	if spelling == "" {
		return
	}
	prefix := c.prefixOf(spelling)
	c.mu.Lock()
	defer c.mu.Unlock()
	set, cached := c.prefixes[prefix]
	if !cached {
		return
	}
	delete(set, spelling)
	if len(set) == 0 {
		delete(c.prefixes, prefix)
	}
}

// Invalidate forgets everything, forcing re-seeding on next use.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.prefixes = make(map[string]map[string]struct{})
	c.mu.Unlock()
}

func (c *Cache) seedPrefix(ctx context.Context, prefix string) error {
	spellings, err := c.source.FindWordsWithPrefix(ctx, prefix)
	if err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.PrefixCacheFetches.Inc()
	}
	set := make(map[string]struct{}, len(spellings))
	for spelling := range spellings {
		set[spelling] = struct{}{}
	}
	c.mu.Lock()
	if _, cached := c.prefixes[prefix]; !cached {
		c.prefixes[prefix] = set
	}
	c.mu.Unlock()
	c.logger.Debug("prefix seeded", "prefix", prefix, "spellings", len(set))
	return nil
}

func (c *Cache) prefixOf(spelling string) string {
	r := []rune(spelling)
	if len(r) <= c.prefixLen {
		return spelling
	}
	return string(r[:c.prefixLen])
}
