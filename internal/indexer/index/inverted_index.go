// Package index maintains the n-gram inverted index: postings per term,
// per-document metadata and corpus statistics, kept mutually consistent
// under add, remove and upsert. State lives in an injected Store.
//
// Mutations of the same document ID must be serialized by the caller.
// Mutations of distinct IDs may run concurrently because every Store
// operation the index issues is a per-key atomic read-modify-write.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/errors"
)

// Outcome reports what an Upsert did. The index never reports
// OutcomeCleared itself; callers use it when they drop an indexed document
// because its new text yields no terms.
type Outcome string

const (
	OutcomeAdded     Outcome = "added"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeCleared   Outcome = "cleared"
)

// Changed reports whether the outcome altered what queries can see.
func (o Outcome) Changed() bool {
	return o == OutcomeAdded || o == OutcomeUpdated || o == OutcomeCleared
}

// Option configures an InvertedIndex.
type Option func(*InvertedIndex)

// WithRetainEmptyTerms keeps a TermEntry around after its last posting is
// removed instead of pruning it.
func WithRetainEmptyTerms(retain bool) Option {
	return func(idx *InvertedIndex) { idx.retainEmpty = retain }
}

func WithLogger(l *slog.Logger) Option {
	return func(idx *InvertedIndex) { idx.logger = l }
}

type InvertedIndex struct {
	store       Store
	retainEmpty bool
	logger      *slog.Logger
}

func New(store Store, opts ...Option) *InvertedIndex {
	idx := &InvertedIndex{
		store:  store,
		logger: slog.Default().With("component", "inverted-index"),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Store exposes the backing store for read paths such as query execution.
func (idx *InvertedIndex) Store() Store {
	return idx.store
}

// Add indexes a document that is not yet present. Adding an ID that is
// already indexed fails with ErrInvalidInput; use Upsert instead. A document
// without terms is ignored.
func (idx *InvertedIndex) Add(ctx context.Context, doc Doc) error {
	if len(doc.Terms) == 0 {
		return nil
	}
	old, err := idx.store.DocMeta(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("reading meta for %q: %w", doc.ID, err)
	}
	if old != nil {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusConflict,
			"document %q is already indexed", doc.ID)
	}
	return idx.add(ctx, doc, ComputeDocMeta(doc.Terms))
}

func (idx *InvertedIndex) add(ctx context.Context, doc Doc, meta DocumentMeta) error {
	if err := idx.store.PutDocMeta(ctx, doc.ID, meta); err != nil {
		return fmt.Errorf("writing meta for %q: %w", doc.ID, err)
	}
	if _, err := idx.store.AdjustCorpusStats(ctx, 1, meta.TermCount); err != nil {
		return fmt.Errorf("updating corpus stats: %w", err)
	}
	if _, err := idx.writePostings(ctx, doc.ID, doc.Terms); err != nil {
		return err
	}
	return nil
}

// Remove drops every trace of docID and reports whether it was indexed.
func (idx *InvertedIndex) Remove(ctx context.Context, docID string) (bool, error) {
	meta, err := idx.store.DocMeta(ctx, docID)
	if err != nil {
		return false, fmt.Errorf("reading meta for %q: %w", docID, err)
	}
	if meta == nil {
		return false, nil
	}
	if _, err := idx.store.AdjustCorpusStats(ctx, -1, -meta.TermCount); err != nil {
		return false, fmt.Errorf("updating corpus stats: %w", err)
	}
	for _, term := range meta.UniqueTerms {
		if err := idx.dropPosting(ctx, term, docID); err != nil {
			return false, err
		}
	}
	if err := idx.store.DeleteDocMeta(ctx, docID); err != nil {
		return false, fmt.Errorf("deleting meta for %q: %w", docID, err)
	}
	return true, nil
}

// Upsert brings the index in line with doc. Re-submitting identical terms
// issues no writes at all.
func (idx *InvertedIndex) Upsert(ctx context.Context, doc Doc) (Outcome, error) {
	if len(doc.Terms) == 0 {
		return OutcomeSkipped, nil
	}
	old, err := idx.store.DocMeta(ctx, doc.ID)
	if err != nil {
		return "", fmt.Errorf("reading meta for %q: %w", doc.ID, err)
	}
	meta := ComputeDocMeta(doc.Terms)
	if old == nil {
		if err := idx.add(ctx, doc, meta); err != nil {
			return "", err
		}
		return OutcomeAdded, nil
	}
	if old.Hash == meta.Hash {
		return OutcomeUnchanged, nil
	}

	keep := make(map[string]struct{}, len(meta.UniqueTerms))
	for _, term := range meta.UniqueTerms {
		keep[term] = struct{}{}
	}
	dropped := 0
	for _, term := range old.UniqueTerms {
		if _, ok := keep[term]; ok {
			continue
		}
		if err := idx.dropPosting(ctx, term, doc.ID); err != nil {
			return "", err
		}
		dropped++
	}
	if delta := meta.TermCount - old.TermCount; delta != 0 {
		if _, err := idx.store.AdjustCorpusStats(ctx, 0, delta); err != nil {
			return "", fmt.Errorf("updating corpus stats: %w", err)
		}
	}
	if err := idx.store.PutDocMeta(ctx, doc.ID, meta); err != nil {
		return "", fmt.Errorf("writing meta for %q: %w", doc.ID, err)
	}
	gained, err := idx.writePostings(ctx, doc.ID, doc.Terms)
	if err != nil {
		return "", err
	}
	idx.logger.Debug("document terms updated",
		"doc_id", doc.ID,
		"terms_dropped", dropped,
		"terms_gained", gained,
		"term_count", meta.TermCount,
	)
	return OutcomeUpdated, nil
}

// Stats returns the corpus statistics.
func (idx *InvertedIndex) Stats(ctx context.Context) (CorpusStats, error) {
	stats, err := idx.store.CorpusStats(ctx)
	if err != nil {
		return CorpusStats{}, fmt.Errorf("reading corpus stats: %w", err)
	}
	return stats, nil
}

// Reset empties the index.
func (idx *InvertedIndex) Reset(ctx context.Context) error {
	if err := idx.store.Reset(ctx); err != nil {
		return fmt.Errorf("resetting store: %w", err)
	}
	return nil
}

// writePostings writes one posting per distinct term of terms and bumps
// DocCount for each posting key that did not exist before. It returns the
// number of such new postings.
func (idx *InvertedIndex) writePostings(ctx context.Context, docID string, terms []string) (int, error) {
	created := 0
	for term, posting := range TermMeta(terms) {
		isNew, err := idx.store.PutPosting(ctx, term, docID, posting)
		if err != nil {
			return created, fmt.Errorf("writing posting %q/%q: %w", term, docID, err)
		}
		if !isNew {
			continue
		}
		if _, err := idx.store.AdjustDocCount(ctx, term, 1); err != nil {
			return created, fmt.Errorf("incrementing doc count of %q: %w", term, err)
		}
		created++
	}
	return created, nil
}

func (idx *InvertedIndex) dropPosting(ctx context.Context, term, docID string) error {
	deleted, err := idx.store.DeletePosting(ctx, term, docID)
	if err != nil {
		return fmt.Errorf("deleting posting %q/%q: %w", term, docID, err)
	}
	if !deleted {
		return nil
	}
	count, err := idx.store.AdjustDocCount(ctx, term, -1)
	if err != nil {
		return fmt.Errorf("decrementing doc count of %q: %w", term, err)
	}
	if count <= 0 && !idx.retainEmpty {
		if _, err := idx.store.PruneTerm(ctx, term); err != nil {
			return fmt.Errorf("pruning %q: %w", term, err)
		}
	}
	return nil
}
