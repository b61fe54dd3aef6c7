// Package search runs meaning-based queries end to end: resolve the query
// text to meanings, score indexed documents against them, and attach the
// matching documents.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/babelindex/babelindex/internal/engine/resolver"
	"github.com/babelindex/babelindex/internal/engine/scorer"
	"github.com/babelindex/babelindex/internal/search/cache"
	"github.com/babelindex/babelindex/internal/store"
	"github.com/babelindex/babelindex/internal/vocab"
	"github.com/babelindex/babelindex/pkg/config"
	apperrors "github.com/babelindex/babelindex/pkg/errors"
	"github.com/babelindex/babelindex/pkg/metrics"
	"github.com/babelindex/babelindex/pkg/tracing"
)

// Hit is one search result: a document reference, its relevance percentage,
// and the stored document text.
type Hit struct {
	Document vocab.DocumentRef `json:"document"`
	Score    int               `json:"score"`
	Text     string            `json:"text,omitempty"`
}

// Result is a complete answer to one query.
type Result struct {
	Query   string `json:"query"`
	DocType string `json:"doc_type,omitempty"`
	Offset  int    `json:"offset"`
	Limit   int    `json:"limit"`
	Hits    []Hit  `json:"hits"`
	TookMs  int64  `json:"took_ms"`
}

// Service ties the resolver, scorer and document source together.
type Service struct {
	resolver *resolver.Resolver
	scorer   *scorer.Scorer
	docs     store.DocumentSource
	qcache   *cache.QueryCache
	cfg      config.SearchConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New creates a Service. qcache and m may be nil; a nil cache means every
// query is computed.
func New(
	res *resolver.Resolver,
	sc *scorer.Scorer,
	docs store.DocumentSource,
	qcache *cache.QueryCache,
	cfg config.SearchConfig,
	m *metrics.Metrics,
) *Service {
	return &Service{
		resolver: res,
		scorer:   sc,
		docs:     docs,
		qcache:   qcache,
		cfg:      cfg,
		logger:   slog.Default().With("component", "search"),
		metrics:  m,
	}
}

// Search resolves, scores and pages. The second return reports whether the
// result came from the query cache.
func (s *Service) Search(ctx context.Context, query, docType string, offset, limit int) (*Result, bool, error) {
	if query == "" {
		return nil, false, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "empty query")
	}
	offset, limit = s.clamp(offset, limit)

	start := time.Now()
	result, cached, err := s.run(ctx, query, docType, offset, limit)
	if s.metrics != nil {
		s.metrics.SearchQueriesTotal.WithLabelValues(resultType(result, cached, err)).Inc()
		status := "miss"
		if cached {
			status = "hit"
		}
		s.metrics.SearchLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
	return result, cached, err
}

func (s *Service) run(ctx context.Context, query, docType string, offset, limit int) (*Result, bool, error) {
	if s.qcache == nil {
		result, err := s.compute(ctx, query, docType, offset, limit)
		return result, false, err
	}

	payload, cached, err := s.qcache.GetOrCompute(ctx, query, docType, offset, limit, func() ([]byte, error) {
		result, err := s.compute(ctx, query, docType, offset, limit)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})
	if err != nil {
		return nil, false, err
	}
	if s.metrics != nil {
		if cached {
			s.metrics.CacheHitsTotal.Inc()
		} else {
			s.metrics.CacheMissesTotal.Inc()
		}
	}
	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, false, err
	}
	return &result, cached, nil
}

func resultType(result *Result, cached bool, err error) string {
	switch {
	case err != nil:
		return "error"
	case len(result.Hits) == 0:
		return "zero_result"
	case cached:
		return "hit"
	default:
		return "miss"
	}
}

// CacheStats reports query cache hit counters; enabled is false when no
// cache is configured.
func (s *Service) CacheStats() (hits, misses int64, enabled bool) {
	if s.qcache == nil {
		return 0, 0, false
	}
	hits, misses = s.qcache.Stats()
	return hits, misses, true
}

// InvalidateCache drops cached results after a mutation. No-op without a
// cache.
func (s *Service) InvalidateCache(ctx context.Context) {
	if s.qcache == nil {
		return
	}
	if err := s.qcache.Invalidate(ctx); err != nil {
		s.logger.Error("cache invalidation failed", "error", err)
	}
}

func (s *Service) compute(ctx context.Context, query, docType string, offset, limit int) (*Result, error) {
	ctx, span := tracing.StartChildSpan(ctx, "search.compute")
	defer span.End()

	start := time.Now()
	resolved, err := s.resolver.LookupSentence(ctx, query)
	if err != nil {
		return nil, err
	}
	scored, err := s.scorer.ScoreDocuments(ctx, docType, resolved, offset, limit)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(scored))
	for _, sd := range scored {
		hit := Hit{Document: sd.Document, Score: sd.Score}
		doc, err := s.docs.GetDocument(ctx, sd.Document)
		switch {
		case err == nil:
			hit.Text = doc.Text
		case errors.Is(err, apperrors.ErrDocumentNotFound):
			// index row outlived its document; still report the reference
		default:
			return nil, err
		}
		hits = append(hits, hit)
	}

	result := &Result{
		Query:   query,
		DocType: docType,
		Offset:  offset,
		Limit:   limit,
		Hits:    hits,
		TookMs:  time.Since(start).Milliseconds(),
	}
	s.logger.Debug("query executed",
		"query", query,
		"doc_type", docType,
		"hits", len(hits),
		"took_ms", result.TookMs,
	)
	return result, nil
}

func (s *Service) clamp(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if s.cfg.MaxResults > 0 && limit > s.cfg.MaxResults {
		limit = s.cfg.MaxResults
	}
	return offset, limit
}
