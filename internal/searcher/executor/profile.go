package executor

import "time"

// Timings breaks one query's wall time into phases, in milliseconds.
type Timings struct {
	NgramMs                 float64 `json:"ngram_ms"`
	TermStatsMs             float64 `json:"term_stats_ms"`
	CandidateAccumulationMs float64 `json:"candidate_accumulation_ms"`
	ScoringMs               float64 `json:"scoring_ms"`
	SortMs                  float64 `json:"sort_ms"`
	TotalMs                 float64 `json:"total_ms"`
}

// Counts records how much work one query did.
type Counts struct {
	NgramCount       int `json:"ngram_count"`
	UniqueNgramCount int `json:"unique_ngram_count"`
	MissingTerms     int `json:"missing_terms"`
	PostingsVisited  int `json:"postings_visited"`
	CandidateDocs    int `json:"candidate_docs"`
	ScoredDocs       int `json:"scored_docs"`
	ResultsReturned  int `json:"results_returned"`
}

// Profile is the trace of a single query.
type Profile struct {
	Query   string  `json:"query"`
	Timings Timings `json:"timings"`
	Counts  Counts  `json:"counts"`
}

// phaseTimer measures consecutive phases; a nil receiver records nothing.
type phaseTimer struct {
	start time.Time
	last  time.Time
}

func newPhaseTimer() *phaseTimer {
	now := time.Now()
	return &phaseTimer{start: now, last: now}
}

// lap returns milliseconds since the previous lap.
func (t *phaseTimer) lap() float64 {
	if t == nil {
		return 0
	}
	now := time.Now()
	d := now.Sub(t.last)
	t.last = now
	return float64(d) / float64(time.Millisecond)
}

func (t *phaseTimer) total() float64 {
	if t == nil {
		return 0
	}
	return float64(time.Since(t.start)) / float64(time.Millisecond)
}
