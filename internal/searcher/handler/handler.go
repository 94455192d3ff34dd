// Package handler exposes the query engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/metrics"
)

type SearchExecutor interface {
	Search(ctx context.Context, text string, minQuality float64, limit int, profile bool) (*executor.SearchResult, error)
}

type StatsReader interface {
	Stats(ctx context.Context) (index.CorpusStats, error)
}

type Handler struct {
	executor SearchExecutor
	stats    StatsReader
	cache    *cache.QueryCache
	cfg      config.SearchConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New wires the search endpoints. queryCache and m may be nil.
func New(exec SearchExecutor, stats StatsReader, queryCache *cache.QueryCache, cfg config.SearchConfig, m *metrics.Metrics) *Handler {
	return &Handler{
		executor: exec,
		stats:    stats,
		cache:    queryCache,
		cfg:      cfg,
		metrics:  m,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

type searchRequest struct {
	query      string
	limit      int
	minQuality float64
	profile    bool
}

var errMissingQuery = errors.New("query parameter 'q' is required")

// parseSearch applies the configured defaults and clamps limit to MaxResults.
func (h *Handler) parseSearch(params url.Values) (searchRequest, error) {
	req := searchRequest{limit: h.cfg.DefaultLimit, minQuality: h.cfg.MinQuality}
	if !params.Has("q") {
		return req, errMissingQuery
	}
	req.query = params.Get("q")

	if raw := params.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return req, errors.New("limit must be a positive integer")
		}
		req.limit = min(n, h.cfg.MaxResults)
	}
	if raw := params.Get("min_quality"); raw != "" {
		q, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(q) || math.IsInf(q, 0) {
			return req, errors.New("min_quality must be a number")
		}
		req.minQuality = q
	}
	req.profile, _ = strconv.ParseBool(params.Get("profile"))
	return req, nil
}

// lookup answers from the cache when one is configured. Profiled queries
// always run against the index.
func (h *Handler) lookup(ctx context.Context, req searchRequest) (*executor.SearchResult, bool, error) {
	run := func(ctx context.Context) (*executor.SearchResult, error) {
		return h.executor.Search(ctx, req.query, req.minQuality, req.limit, req.profile)
	}
	if h.cache == nil || req.profile {
		res, err := run(ctx)
		return res, false, err
	}
	key := cache.Key{Query: req.query, MinQuality: req.minQuality, Limit: req.limit}
	return h.cache.GetOrCompute(ctx, key, run)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	req, err := h.parseSearch(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.query) == "" {
		h.observe("empty_query", "skip", start, 0)
		writeJSON(w, http.StatusOK, &executor.SearchResult{Query: req.query, Results: []ranker.Result{}})
		return
	}

	log := logger.FromContext(ctx).With("query", req.query)
	result, cacheHit, err := h.lookup(ctx, req)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Error("search execution failed", "error", err, "status_code", status)
		h.observe("error", "miss", start, 0)
		writeError(w, status, "search failed")
		return
	}

	outcome, cacheStatus := "hit", "miss"
	if len(result.Results) == 0 {
		outcome = "zero_result"
	}
	if cacheHit {
		cacheStatus = "hit"
	}
	h.observe(outcome, cacheStatus, start, len(result.Results))

	log.Info("search completed",
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		h.logger.Error("reading index stats failed", "error", err)
		writeError(w, apperrors.HTTPStatusCode(err), "index stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_documents":  stats.TotalDocuments,
		"total_term_count": stats.TotalTermCount,
		"avg_doc_length":   stats.AvgDocLength(),
	})
}

// CacheStats reports hit counters and the state of the cache's breaker.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	lookups := hits + misses
	rate := 0.0
	if lookups > 0 {
		rate = 100 * float64(hits) / float64(lookups)
	}
	breaker := h.cache.Breaker()
	writeJSON(w, http.StatusOK, map[string]any{
		"hits":             hits,
		"misses":           misses,
		"total":            lookups,
		"hit_rate":         fmt.Sprintf("%.1f%%", rate),
		"breaker":          breaker.State.String(),
		"breaker_failures": breaker.Failures,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) observe(outcome, cacheStatus string, start time.Time, returned int) {
	if h.metrics == nil {
		return
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	h.metrics.SearchResultsCount.Observe(float64(returned))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
