// Package metrics holds the Prometheus collectors shared by the searcher,
// indexer and ingestion services. Every collector lives under the
// "fuzzysearch" namespace and is registered on the Registerer passed to New,
// so tests can use an isolated registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fuzzysearch"

type Metrics struct {
	// HTTP
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Query engine
	SearchQueriesTotal *prometheus.CounterVec
	SearchLatency      *prometheus.HistogramVec
	SearchResultsCount prometheus.Histogram
	CandidatePoolSize  prometheus.Histogram
	PostingsVisited    prometheus.Histogram

	// Query cache
	CacheHitsTotal    prometheus.Counter
	CacheMissesTotal  prometheus.Counter
	CacheBreakerState prometheus.Gauge

	// Index
	DocsUpsertedTotal *prometheus.CounterVec
	DocsRemovedTotal  prometheus.Counter
	IndexDocuments    prometheus.Gauge
	IndexTerms        prometheus.Gauge
	IndexTermEntries  prometheus.Gauge
	IndexMemoryBytes  prometheus.Gauge
}

// New registers every collector on reg; nil means the default registerer.
// Registering twice on the same registry panics.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	latency := []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, route pattern and status.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help: "HTTP request latency.", Buckets: latency,
		}, []string{"method", "path"}),
		HTTPRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_in_flight",
			Help: "HTTP requests being served.",
		}),

		SearchQueriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "search", Name: "queries_total",
			Help: "Queries by result type (hit, zero_result, empty_query, error).",
		}, []string{"result_type"}),
		SearchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "search", Name: "latency_seconds",
			Help: "Query latency split by cache status.", Buckets: latency,
		}, []string{"cache_status"}),
		SearchResultsCount: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "search", Name: "results_count",
			Help: "Results returned per query.", Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		}),
		CandidatePoolSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "search", Name: "candidate_pool_size",
			Help: "Candidates admitted to the pool per query.", Buckets: []float64{0, 1, 10, 25, 50, 100, 150, 200, 400},
		}),
		PostingsVisited: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "search", Name: "postings_visited",
			Help: "Postings walked per query.", Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),

		CacheHitsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "hits_total",
			Help: "Query cache hits.",
		}),
		CacheMissesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "misses_total",
			Help: "Query cache misses.",
		}),
		CacheBreakerState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cache", Name: "breaker_state",
			Help: "Query cache circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}),

		DocsUpsertedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "index", Name: "docs_upserted_total",
			Help: "Upserts by outcome (added, updated, unchanged, skipped, cleared).",
		}, []string{"outcome"}),
		DocsRemovedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "index", Name: "docs_removed_total",
			Help: "Documents removed from the index.",
		}),
		IndexDocuments: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "index", Name: "documents",
			Help: "Documents currently indexed.",
		}),
		IndexTerms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "index", Name: "term_count",
			Help: "Total n-gram occurrences across indexed documents.",
		}),
		IndexTermEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "index", Name: "term_entries",
			Help: "Distinct term entries held by the in-memory backend.",
		}),
		IndexMemoryBytes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "index", Name: "memory_bytes",
			Help: "Estimated bytes held by the in-memory backend's postings.",
		}),
	}
}
