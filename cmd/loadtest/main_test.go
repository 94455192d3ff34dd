package main

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/dataset"
)

func TestRecorderSummary(t *testing.T) {
	r := newRecorder()
	r.record(3*time.Millisecond, http.StatusOK, nil)
	r.record(time.Millisecond, http.StatusAccepted, nil)
	r.record(2*time.Millisecond, http.StatusTooManyRequests, nil)
	r.record(0, 0, errors.New("refused"))
	r.noteEmpty()

	s := r.summary()
	assert.Equal(t, 4, s.total)
	assert.Equal(t, 2, s.ok)
	assert.Equal(t, 2, s.failed)
	assert.Equal(t, 1, s.empty)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}, s.latencies)
}

func TestUpsertAllPutsEveryDocument(t *testing.T) {
	var (
		paths  = make(chan string, 8)
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			paths <- r.URL.EscapedPath()
			w.WriteHeader(http.StatusAccepted)
		}))
	)
	defer server.Close()

	d := &driver{client: server.Client(), base: server.URL, rec: newRecorder()}
	docs := []dataset.Document{{ID: "a", Text: "alpha"}, {ID: "b c", Text: "beta"}}
	require.NoError(t, d.upsertAll(t.Context(), docs, 2))
	close(paths)

	var got []string
	for p := range paths {
		got = append(got, p)
	}
	assert.ElementsMatch(t, []string{"/api/v1/documents/a", "/api/v1/documents/b%20c"}, got)
	assert.Equal(t, 2, d.rec.summary().ok)
}

func TestPrintReportFlagsNoTraffic(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, printReport(&buf, newRecorder().summary(), time.Second))
	assert.Contains(t, buf.String(), "No requests completed")
}

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4}
	assert.Equal(t, time.Duration(2), percentile(sorted, 50))
	assert.Equal(t, time.Duration(4), percentile(sorted, 99))
	assert.Zero(t, percentile(nil, 50))
}
