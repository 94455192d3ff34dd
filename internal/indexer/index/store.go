package index

import "context"

// Store is the storage collaborator behind an InvertedIndex: three logical
// maps (term -> TermEntry, docID -> DocumentMeta, and the corpus stats
// record) with per-key atomic operations. Absent keys are reported as zero
// values, never as errors. Each call must observe every write the caller
// issued before it.
type Store interface {
	// TermEntry returns the entry for term, or nil when it does not exist.
	TermEntry(ctx context.Context, term string) (*TermEntry, error)
	// DocCounts returns the DocCount of each term, 0 for absent terms.
	DocCounts(ctx context.Context, terms []string) ([]int, error)
	// PutPosting writes or overwrites the posting of docID under term,
	// creating the entry if needed, and reports whether the posting key is
	// new under that term. It does not touch DocCount.
	PutPosting(ctx context.Context, term, docID string, p Posting) (created bool, err error)
	// DeletePosting removes the posting of docID under term and reports
	// whether one existed. It does not touch DocCount.
	DeletePosting(ctx context.Context, term, docID string) (deleted bool, err error)
	// AdjustDocCount atomically adds delta to the term's DocCount and
	// returns the new value.
	AdjustDocCount(ctx context.Context, term string, delta int) (int, error)
	// PruneTerm deletes the entry for term only if it has no postings and a
	// zero DocCount, reporting whether it did.
	PruneTerm(ctx context.Context, term string) (bool, error)

	// DocMeta returns the meta for docID, or nil when it is not indexed.
	DocMeta(ctx context.Context, docID string) (*DocumentMeta, error)
	PutDocMeta(ctx context.Context, docID string, meta DocumentMeta) error
	DeleteDocMeta(ctx context.Context, docID string) error

	CorpusStats(ctx context.Context) (CorpusStats, error)
	// AdjustCorpusStats atomically adds the deltas, flooring each field at
	// zero, and returns the new stats.
	AdjustCorpusStats(ctx context.Context, docsDelta, termsDelta int) (CorpusStats, error)

	// Reset drops everything.
	Reset(ctx context.Context) error
}
