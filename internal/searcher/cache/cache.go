// Package cache memoises search responses in Redis. Concurrent identical
// queries are collapsed with singleflight, Redis calls go through a circuit
// breaker, and the whole cache is dropped whenever the index changes.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/resilience"
)

const (
	keyPrefix             = config.CacheKeyNamespace + ":"
	defaultComputeTimeout = 10 * time.Second
)

// Backend is the subset of the Redis client the cache needs.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Key identifies a cached response.
type Key struct {
	Query      string
	MinQuality float64
	Limit      int
}

type QueryCache struct {
	backend Backend
	cfg     config.RedisConfig
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger

	computeTimeout time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache over backend. m may be nil.
func New(backend Backend, cfg config.RedisConfig, m *metrics.Metrics) *QueryCache {
	breakerCfg := resilience.CircuitBreakerConfig{
		FailureThreshold:    5,
		ResetTimeout:        15 * time.Second,
		HalfOpenMaxRequests: 1,
	}
	if m != nil {
		breakerCfg.OnStateChange = func(_, to resilience.State) {
			m.CacheBreakerState.Set(float64(to))
		}
	}
	return &QueryCache{
		backend: backend,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker("query-cache", breakerCfg),
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),

		computeTimeout: defaultComputeTimeout,
	}
}

var _ Backend = (*pkgredis.Client)(nil)

// Get reports a miss for absent keys, undecodable entries and Redis failures
// alike.
func (c *QueryCache) Get(ctx context.Context, key Key) (*executor.SearchResult, bool) {
	k := buildKey(key)
	result, err := c.fetch(ctx, k)
	switch {
	case err != nil:
		c.logger.Warn("cache read failed", "key", k, "error", err)
	case result != nil:
		c.hit()
		c.logger.Debug("cache hit", "query", key.Query, "key", k)
		return result, true
	}
	c.miss()
	return nil, false
}

func (c *QueryCache) fetch(ctx context.Context, k string) (*executor.SearchResult, error) {
	var raw string
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		v, err := c.backend.Get(ctx, k)
		if pkgredis.IsNilError(err) {
			return nil
		}
		raw = v
		return err
	})
	if err != nil || raw == "" {
		return nil, err
	}
	var result executor.SearchResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("decoding cached response: %w", err)
	}
	return &result, nil
}

// Set stores result for the configured TTL. Failures are logged only.
func (c *QueryCache) Set(ctx context.Context, key Key, result *executor.SearchResult) {
	k := buildKey(key)
	payload, err := json.Marshal(result)
	if err == nil {
		err = c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.backend.Set(ctx, k, payload, c.cfg.CacheTTL)
		})
	}
	if err != nil {
		c.logger.Warn("cache write failed", "key", k, "error", err)
	}
}

// GetOrCompute returns the cached response for key, or runs compute once per
// key across concurrent callers and stores its result. The bool reports a
// cache hit. The shared computation does not inherit the caller's
// cancellation, so one caller going away does not fail the others; it is
// bounded by computeTimeout instead.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key Key,
	compute func(ctx context.Context) (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	ch := c.group.DoChan(buildKey(key), func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.computeTimeout)
		defer cancel()
		result, err := compute(ctx)
		if err == nil {
			c.Set(ctx, key, result)
		}
		return result, err
	})
	select {
	case <-ctx.Done():
		return nil, false, context.Cause(ctx)
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*executor.SearchResult), false, nil
	}
}

// Invalidate drops every cached response.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	var deleted int64
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = c.backend.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Breaker reports the state of the circuit guarding Redis.
func (c *QueryCache) Breaker() resilience.BreakerSnapshot {
	return c.breaker.Snapshot()
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func buildKey(key Key) string {
	raw := normalizeQuery(key.Query) +
		"|q=" + strconv.FormatFloat(key.MinQuality, 'g', -1, 64) +
		"|limit=" + strconv.Itoa(key.Limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// normalizeQuery lower-cases the query and collapses whitespace. Word order
// is kept: n-grams spanning two words depend on it.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
