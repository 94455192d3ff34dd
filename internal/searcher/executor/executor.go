// Package executor answers free-text queries against the inverted index.
//
// Query n-grams are walked rarest first. Every posting of a walked n-gram
// either adds to a document already in the candidate pool or, while the
// pool has room, admits a new document. The walk never stops early, so
// admitted candidates keep collecting score from the commoner n-grams that
// follow. The pool capacity is the only bound on per-query work.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/metrics"
)

// DefaultPoolSize is the candidate pool capacity used when none is set.
const DefaultPoolSize = 200

// SearchResult is the response body of a search.
type SearchResult struct {
	Query     string          `json:"query"`
	TotalHits int             `json:"total_hits"`
	Results   []ranker.Result `json:"results"`
	Profile   *Profile        `json:"profile,omitempty"`
}

type Option func(*Executor)

// WithPoolSize sets the candidate pool capacity. Values below 1 are
// ignored.
func WithPoolSize(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.poolSize = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

type Executor struct {
	tok      *tokenizer.Tokenizer
	store    index.Store
	poolSize int
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New builds an executor over idx. tok must be configured exactly as the
// tokenizer that built the index.
func New(tok *tokenizer.Tokenizer, idx *index.InvertedIndex, opts ...Option) *Executor {
	e := &Executor{
		tok:      tok,
		store:    idx.Store(),
		poolSize: DefaultPoolSize,
		logger:   slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query returns every document scoring at least minQuality, best first.
// Blank text yields an empty result.
func (e *Executor) Query(ctx context.Context, text string, minQuality float64) ([]ranker.Result, error) {
	if strings.TrimSpace(text) == "" {
		return []ranker.Result{}, nil
	}
	return e.search(ctx, e.tok.Terms(text), minQuality, nil)
}

// Profile runs Query and also reports per-phase timings and work counters.
func (e *Executor) Profile(ctx context.Context, text string, minQuality float64) ([]ranker.Result, *Profile, error) {
	prof := &Profile{Query: text}
	if strings.TrimSpace(text) == "" {
		return []ranker.Result{}, prof, nil
	}
	timer := newPhaseTimer()
	terms := e.tok.Terms(text)
	prof.Timings.NgramMs = timer.lap()
	results, err := e.searchTimed(ctx, terms, minQuality, prof, timer)
	if err != nil {
		return nil, nil, err
	}
	prof.Timings.TotalMs = timer.total()
	return results, prof, nil
}

// Search runs Query and wraps the first limit results. limit <= 0 returns
// everything.
func (e *Executor) Search(ctx context.Context, text string, minQuality float64, limit int, profile bool) (*SearchResult, error) {
	var (
		results []ranker.Result
		prof    *Profile
		err     error
	)
	if profile {
		results, prof, err = e.Profile(ctx, text, minQuality)
	} else {
		results, err = e.Query(ctx, text, minQuality)
	}
	if err != nil {
		return nil, err
	}
	total := len(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return &SearchResult{
		Query:     text,
		TotalHits: total,
		Results:   results,
		Profile:   prof,
	}, nil
}

func (e *Executor) search(ctx context.Context, terms []string, minQuality float64, prof *Profile) ([]ranker.Result, error) {
	return e.searchTimed(ctx, terms, minQuality, prof, nil)
}

func (e *Executor) searchTimed(ctx context.Context, terms []string, minQuality float64, prof *Profile, timer *phaseTimer) ([]ranker.Result, error) {
	if len(terms) == 0 {
		return []ranker.Result{}, nil
	}
	unique := uniqueTerms(terms)

	dfs, err := e.store.DocCounts(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("reading document frequencies: %w", err)
	}
	order := make([]int, len(unique))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return dfs[a] - dfs[b] })

	stats, err := e.store.CorpusStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading corpus stats: %w", err)
	}
	avgDocLen := stats.AvgDocLength()
	t := timer.lap()
	if prof != nil {
		prof.Timings.TermStatsMs = t
	}

	pool := ranker.NewPool(e.poolSize)
	docLens := make(map[string]int)
	missing, visited := 0, 0
	for _, i := range order {
		ngram, df := unique[i], dfs[i]
		if df == 0 {
			missing++
			continue
		}
		entry, err := e.store.TermEntry(ctx, ngram)
		if err != nil {
			return nil, fmt.Errorf("reading postings of %q: %w", ngram, err)
		}
		if entry == nil {
			missing++
			continue
		}
		idf := ranker.IDF(stats.TotalDocuments, df)
		for _, docID := range entry.DocIDs() {
			visited++
			if !pool.Admits(docID) {
				continue
			}
			docLen, ok := docLens[docID]
			if !ok {
				meta, err := e.store.DocMeta(ctx, docID)
				if err != nil {
					return nil, fmt.Errorf("reading meta of %q: %w", docID, err)
				}
				if meta != nil {
					docLen = meta.TermCount
				}
				docLens[docID] = docLen
			}
			posting := entry.Postings[docID]
			pool.Add(docID, idf*ranker.TFWeight(posting.Frequency, docLen, avgDocLen))
		}
	}
	t = timer.lap()
	if prof != nil {
		prof.Timings.CandidateAccumulationMs = t
	}

	results := pool.Score(len(unique), minQuality)
	t = timer.lap()
	if prof != nil {
		prof.Timings.ScoringMs = t
	}
	ranker.Sort(results)
	t = timer.lap()
	if prof != nil {
		prof.Timings.SortMs = t
		prof.Counts = Counts{
			NgramCount:       len(terms),
			UniqueNgramCount: len(unique),
			MissingTerms:     missing,
			PostingsVisited:  visited,
			CandidateDocs:    pool.Len(),
			ScoredDocs:       pool.Scored(),
			ResultsReturned:  len(results),
		}
	}

	if e.metrics != nil {
		e.metrics.CandidatePoolSize.Observe(float64(pool.Len()))
		e.metrics.PostingsVisited.Observe(float64(visited))
	}
	e.logger.Debug("query executed",
		"ngrams", len(unique),
		"missing_terms", missing,
		"postings_visited", visited,
		"candidates", pool.Len(),
		"results", len(results),
	)
	return results, nil
}

// uniqueTerms returns the distinct terms in first-occurrence order.
func uniqueTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
