// Package metrics defines the Prometheus metric collectors used across the
// engine and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SegmentationsTotal   *prometheus.CounterVec
	SegmentationDepth    prometheus.Histogram
	PrefixCacheFetches   prometheus.Counter
	PrefixCacheHits      prometheus.Counter
	WordsCreatedTotal    prometheus.Counter
	MeaningsCreatedTotal prometheus.Counter
	DocsIndexedTotal     prometheus.Counter
	DocsReindexedTotal   prometheus.Counter
	IndexEntriesWritten  prometheus.Counter
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, miss, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SegmentationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "segmentations_total",
				Help: "Token segmentation attempts by outcome (whole, compound, created, no_match).",
			},
			[]string{"outcome"},
		),
		SegmentationDepth: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "segmentation_parts",
				Help:    "Number of parts in accepted compound divisions.",
				Buckets: []float64{1, 2, 3, 4, 5, 6},
			},
		),
		PrefixCacheFetches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "prefix_cache_fetches_total",
				Help: "Vocabulary store round trips made to seed prefix cache entries.",
			},
		),
		PrefixCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "prefix_cache_hits_total",
				Help: "Prefix cache membership probes answered without a store round trip.",
			},
		),
		WordsCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "words_created_total",
				Help: "Vocabulary words created, including create-missing fallbacks.",
			},
		),
		MeaningsCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "meanings_created_total",
				Help: "Meanings created, including single-word fallback meanings.",
			},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "documents_indexed_total",
				Help: "Documents run through the indexing path.",
			},
		),
		DocsReindexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "documents_reindexed_total",
				Help: "Documents re-indexed by the background worker.",
			},
		),
		IndexEntriesWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_entries_written_total",
				Help: "Index entry rows written to the document index store.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "query_cache_hits_total",
				Help: "Search result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "query_cache_misses_total",
				Help: "Search result cache misses.",
			},
		),
	}
	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SegmentationsTotal,
		m.SegmentationDepth,
		m.PrefixCacheFetches,
		m.PrefixCacheHits,
		m.WordsCreatedTotal,
		m.MeaningsCreatedTotal,
		m.DocsIndexedTotal,
		m.DocsReindexedTotal,
		m.IndexEntriesWritten,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)
	return m
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
