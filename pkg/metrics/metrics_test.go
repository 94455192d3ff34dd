package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersOnIsolatedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.DocsUpsertedTotal.WithLabelValues("added").Inc()
	m.DocsUpsertedTotal.WithLabelValues("added").Inc()
	m.SearchQueriesTotal.WithLabelValues("hit").Inc()

	assert.InDelta(t, 2, testutil.ToFloat64(m.DocsUpsertedTotal.WithLabelValues("added")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("hit")), 1e-9)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewTwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

func TestCollectorsAreNamespaced(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.CacheBreakerState.Set(1)
	m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/search", "200").Inc()

	n, err := testutil.GatherAndCount(reg, "fuzzysearch_cache_breaker_state", "fuzzysearch_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
