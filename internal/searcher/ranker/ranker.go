// Package ranker scores candidate documents with BM25 plus a query coverage
// bonus, and bounds how many candidates a single query may score.
package ranker

import (
	"math"
	"slices"
	"strings"
)

const (
	k1 = 1.2
	b  = 0.75

	bm25Weight     = 0.85
	coverageWeight = 0.15
)

type Result struct {
	ID      string  `json:"id"`
	Quality float64 `json:"quality"`
}

// IDF is ln((N - df + 0.5) / (df + 0.5)). It goes negative for n-grams that
// occur in more than half the corpus and is deliberately left unclamped.
func IDF(totalDocs, docFreq int) float64 {
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator / denominator)
}

// TFWeight is the BM25 saturated term frequency with length normalisation.
func TFWeight(termFreq, docLength int, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	tf := float64(termFreq)
	lengthRatio := float64(docLength) / avgDocLength
	denominator := tf + k1*(1-b+b*lengthRatio)
	return (tf * (k1 + 1)) / denominator
}

// Quality blends the BM25 score with the share of distinct query n-grams
// the document matched.
func Quality(bm25 float64, coverage, uniqueTerms int) float64 {
	if uniqueTerms == 0 {
		return bm25 * bm25Weight
	}
	return bm25*bm25Weight + math.Sqrt(float64(coverage)/float64(uniqueTerms))*coverageWeight
}

type candidate struct {
	bm25     float64
	coverage int
}

// Pool accumulates per-document scores for at most Capacity documents.
// Once full, documents already admitted keep accumulating but new ones are
// turned away. Not safe for concurrent use.
type Pool struct {
	capacity   int
	candidates map[string]*candidate
}

func NewPool(capacity int) *Pool {
	return &Pool{
		capacity:   capacity,
		candidates: make(map[string]*candidate, min(capacity, 256)),
	}
}

// Add folds one matched (n-gram, document) pair into the pool and reports
// whether the document is a candidate.
func (p *Pool) Add(docID string, partial float64) bool {
	c, ok := p.candidates[docID]
	if !ok {
		if len(p.candidates) >= p.capacity {
			return false
		}
		c = &candidate{}
		p.candidates[docID] = c
	}
	c.bm25 += partial
	c.coverage++
	return true
}

// Tracked reports whether docID has been admitted.
func (p *Pool) Tracked(docID string) bool {
	_, ok := p.candidates[docID]
	return ok
}

// Admits reports whether Add would accept docID.
func (p *Pool) Admits(docID string) bool {
	return p.Tracked(docID) || !p.Full()
}

// Full reports whether new documents are being turned away.
func (p *Pool) Full() bool {
	return len(p.candidates) >= p.capacity
}

func (p *Pool) Len() int { return len(p.candidates) }

// Scored counts candidates with a non-zero BM25 score.
func (p *Pool) Scored() int {
	n := 0
	for _, c := range p.candidates {
		if c.bm25 != 0 {
			n++
		}
	}
	return n
}

// Score converts every candidate with a non-zero BM25 score into a Result
// and keeps those at or above minQuality, in no particular order.
func (p *Pool) Score(uniqueTerms int, minQuality float64) []Result {
	results := make([]Result, 0, len(p.candidates))
	for id, c := range p.candidates {
		if c.bm25 == 0 {
			continue
		}
		q := Quality(c.bm25, c.coverage, uniqueTerms)
		if q < minQuality {
			continue
		}
		results = append(results, Result{ID: id, Quality: q})
	}
	return results
}

// Sort orders results by descending quality, breaking ties by ascending ID.
func Sort(results []Result) {
	slices.SortFunc(results, func(x, y Result) int {
		switch {
		case x.Quality > y.Quality:
			return -1
		case x.Quality < y.Quality:
			return 1
		}
		return strings.Compare(x.ID, y.ID)
	})
}
