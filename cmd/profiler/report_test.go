package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/searcher/executor"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		expected []string
		ranked   []string
		p, r, f1 float64
		top1     bool
	}{
		{"perfect", []string{"a", "b"}, []string{"a", "b"}, 1, 1, 1, true},
		{"half", []string{"a", "b"}, []string{"a", "x"}, 0.5, 0.5, 0.5, true},
		{"miss first", []string{"b"}, []string{"x", "b"}, 0.5, 1, 2.0 / 3.0, false},
		{"nothing returned", []string{"a"}, nil, 0, 0, 0, false},
		{"truncated to k", []string{"f"}, []string{"a", "b", "c", "d", "e", "f"}, 0, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := evaluate("q", tt.expected, tt.ranked, 5)
			assert.InDelta(t, tt.p, ev.Precision, 1e-9)
			assert.InDelta(t, tt.r, ev.Recall, 1e-9)
			assert.InDelta(t, tt.f1, ev.F1, 1e-9)
			assert.Equal(t, tt.top1, ev.Top1)
			assert.LessOrEqual(t, len(ev.Actual), 5)
		})
	}
}

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(sorted, 50))
	assert.Equal(t, time.Duration(10), percentile(sorted, 95))
	assert.Equal(t, time.Duration(1), percentile(sorted, 0))
	assert.Equal(t, time.Duration(0), percentile(nil, 50))
}

func TestReportsPrintSummaries(t *testing.T) {
	profiles := []*executor.Profile{
		{Query: "slow", Timings: executor.Timings{TotalMs: 3}, Counts: executor.Counts{CandidateDocs: 4}},
		{Query: "fast", Timings: executor.Timings{TotalMs: 1}},
	}
	var buf bytes.Buffer
	printTimingReport(&buf, profiles, []time.Duration{time.Millisecond, 3 * time.Millisecond})
	out := buf.String()
	assert.Contains(t, out, "Runs:         2")
	assert.Contains(t, out, `1. "slow"`)

	buf.Reset()
	printQualityReport(&buf, []Evaluation{evaluate("q", []string{"a"}, []string{"b"}, 5)}, 5)
	assert.Contains(t, buf.String(), "Queries Needing Attention")
}
