package main

import (
	"fmt"
	"io"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/searcher/executor"
)

// Evaluation scores one ranked answer against the expected IDs.
type Evaluation struct {
	Query     string
	Expected  []string
	Actual    []string
	Precision float64
	Recall    float64
	F1        float64
	Top1      bool
}

func evaluate(query string, expected, ranked []string, k int) Evaluation {
	actual := ranked
	if len(actual) > k {
		actual = actual[:k]
	}
	relevant := 0
	for _, id := range actual {
		if slices.Contains(expected, id) {
			relevant++
		}
	}
	ev := Evaluation{Query: query, Expected: expected, Actual: actual}
	if len(actual) > 0 {
		ev.Precision = float64(relevant) / float64(len(actual))
		ev.Top1 = slices.Contains(expected, actual[0])
	}
	if len(expected) > 0 {
		ev.Recall = float64(relevant) / float64(len(expected))
	}
	if ev.Precision+ev.Recall > 0 {
		ev.F1 = 2 * ev.Precision * ev.Recall / (ev.Precision + ev.Recall)
	}
	return ev
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func printTimingReport(w io.Writer, profiles []*executor.Profile, wallTimes []time.Duration) {
	if len(profiles) == 0 {
		fmt.Fprintln(w, "No profiles captured")
		return
	}
	sorted := slices.Clone(wallTimes)
	slices.Sort(sorted)
	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	fmt.Fprintln(w, "=== Query Wall Time Summary ===")
	fmt.Fprintf(w, "Runs:         %d\n", len(profiles))
	fmt.Fprintf(w, "Avg wall ms:  %.3f\n", ms(sum/time.Duration(len(sorted))))
	fmt.Fprintf(w, "P50 wall ms:  %.3f\n", ms(percentile(sorted, 50)))
	fmt.Fprintf(w, "P95 wall ms:  %.3f\n", ms(percentile(sorted, 95)))
	fmt.Fprintf(w, "Max wall ms:  %.3f\n", ms(sorted[len(sorted)-1]))

	var t executor.Timings
	var c struct{ ngrams, unique, missing, postings, candidates, scored, results float64 }
	for _, p := range profiles {
		t.TotalMs += p.Timings.TotalMs
		t.NgramMs += p.Timings.NgramMs
		t.TermStatsMs += p.Timings.TermStatsMs
		t.CandidateAccumulationMs += p.Timings.CandidateAccumulationMs
		t.ScoringMs += p.Timings.ScoringMs
		t.SortMs += p.Timings.SortMs
		c.ngrams += float64(p.Counts.NgramCount)
		c.unique += float64(p.Counts.UniqueNgramCount)
		c.missing += float64(p.Counts.MissingTerms)
		c.postings += float64(p.Counts.PostingsVisited)
		c.candidates += float64(p.Counts.CandidateDocs)
		c.scored += float64(p.Counts.ScoredDocs)
		c.results += float64(p.Counts.ResultsReturned)
	}
	n := float64(len(profiles))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Average Phase Breakdown (ms) ===")
	fmt.Fprintf(w, "Total %.3f | ngrams %.3f, termStats %.3f, candidates %.3f, scoring %.3f, sort %.3f\n",
		t.TotalMs/n, t.NgramMs/n, t.TermStatsMs/n, t.CandidateAccumulationMs/n, t.ScoringMs/n, t.SortMs/n)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Average Counters ===")
	fmt.Fprintf(w, "ngrams %.1f, unique %.1f, missing %.1f, postingsVisited %.1f, candidates %.1f, scored %.1f, results %.1f\n",
		c.ngrams/n, c.unique/n, c.missing/n, c.postings/n, c.candidates/n, c.scored/n, c.results/n)

	slowest := slices.Clone(profiles)
	sort.SliceStable(slowest, func(i, j int) bool {
		return slowest[i].Timings.TotalMs > slowest[j].Timings.TotalMs
	})
	if len(slowest) > 5 {
		slowest = slowest[:5]
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Slowest Queries ===")
	for i, p := range slowest {
		fmt.Fprintf(w, "%d. %q -> %.3fms (candidates %d, postings %d)\n",
			i+1, p.Query, p.Timings.TotalMs, p.Counts.CandidateDocs, p.Counts.PostingsVisited)
	}
}

func printQualityReport(w io.Writer, evals []Evaluation, k int) {
	if len(evals) == 0 {
		return
	}
	var p, r, f, top1 float64
	perfect, good, poor := 0, 0, 0
	for _, e := range evals {
		p += e.Precision
		r += e.Recall
		f += e.F1
		if e.Top1 {
			top1++
		}
		switch {
		case e.F1 == 1:
			perfect++
			good++
		case e.F1 > 0.8:
			good++
		case e.F1 < 0.5:
			poor++
		}
	}
	n := float64(len(evals))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "=== Ranking Quality (k=%d) ===\n", k)
	fmt.Fprintf(w, "Queries:      %d\n", len(evals))
	fmt.Fprintf(w, "Precision:    %.3f\n", p/n)
	fmt.Fprintf(w, "Recall:       %.3f\n", r/n)
	fmt.Fprintf(w, "F1:           %.3f\n", f/n)
	fmt.Fprintf(w, "Top-1:        %.3f\n", top1/n)
	fmt.Fprintf(w, "Perfect/Good/Poor: %d/%d/%d\n", perfect, good, poor)

	weak := make([]Evaluation, 0)
	for _, e := range evals {
		if e.F1 < 0.8 {
			weak = append(weak, e)
		}
	}
	sort.SliceStable(weak, func(i, j int) bool { return weak[i].F1 < weak[j].F1 })
	if len(weak) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Queries Needing Attention ===")
		for _, e := range weak {
			fmt.Fprintf(w, "%q F1=%.2f expected=%v got=%v\n", e.Query, e.F1, e.Expected, e.Actual)
		}
	}
}
