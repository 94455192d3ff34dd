package index

import (
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Doc is a document already reduced to its term sequence.
type Doc struct {
	ID    string
	Terms []string
}

// Posting records one term's occurrences in one document. Positions are
// 0-based indices into the document's term sequence, ascending.
type Posting struct {
	Frequency int   `json:"f"`
	Positions []int `json:"p"`
}

// TermEntry is everything the index knows about one term. DocCount always
// equals len(Postings).
type TermEntry struct {
	DocCount int                `json:"d"`
	Postings map[string]Posting `json:"p"`
}

// DocIDs returns the posting keys in ascending order.
func (e *TermEntry) DocIDs() []string {
	ids := make([]string, 0, len(e.Postings))
	for id := range e.Postings {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// DocumentMeta is the per-document bookkeeping needed to undo or diff an
// earlier write.
type DocumentMeta struct {
	Hash        uint64   `json:"h"`
	TermCount   int      `json:"c"`
	UniqueTerms []string `json:"u"`
}

// CorpusStats aggregates the whole index.
type CorpusStats struct {
	TotalDocuments int `json:"total_documents"`
	TotalTermCount int `json:"total_term_count"`
}

// AvgDocLength is TotalTermCount / TotalDocuments, or 0 for an empty corpus.
func (s CorpusStats) AvgDocLength() float64 {
	if s.TotalDocuments == 0 {
		return 0
	}
	return float64(s.TotalTermCount) / float64(s.TotalDocuments)
}

// TermMeta computes, for every distinct term, its frequency and ascending
// positions within terms.
func TermMeta(terms []string) map[string]Posting {
	meta := make(map[string]Posting)
	for i, term := range terms {
		p := meta[term]
		p.Frequency++
		p.Positions = append(p.Positions, i)
		meta[term] = p
	}
	return meta
}

// ComputeDocMeta fingerprints the term sequence and records its length and
// distinct terms in first-occurrence order.
func ComputeDocMeta(terms []string) DocumentMeta {
	seen := make(map[string]struct{}, len(terms))
	unique := make([]string, 0, len(terms))
	for _, term := range terms {
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		unique = append(unique, term)
	}
	return DocumentMeta{
		Hash:        xxhash.Sum64String(strings.Join(terms, "\x00")),
		TermCount:   len(terms),
		UniqueTerms: unique,
	}
}
