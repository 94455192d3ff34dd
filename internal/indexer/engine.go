// Package indexer ties the tokenizer to the inverted index: it turns
// documents into n-gram terms, applies them to the index, and rebuilds the
// index from the document repository when the tokenization scheme changes.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/tracing"
)

// Document is the unit the engine indexes.
type Document struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// DocumentSource streams every stored document, for rebuilds.
type DocumentSource interface {
	ForEach(ctx context.Context, fn func(id, text string) error) error
}

// fingerprinter is implemented by stores that remember which tokenizer
// scheme the index was built with.
type fingerprinter interface {
	TokenizerFingerprint(ctx context.Context) (string, error)
	SetTokenizerFingerprint(ctx context.Context, fp string) error
}

// sizer is implemented by in-process stores that can estimate their footprint.
type sizer interface {
	Size() int64
	TermCount() int
}

type Engine struct {
	tok     *tokenizer.Tokenizer
	idx     *index.InvertedIndex
	cfg     config.IndexerConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewEngine wires a tokenizer to an index. m may be nil.
func NewEngine(tok *tokenizer.Tokenizer, idx *index.InvertedIndex, cfg config.IndexerConfig, m *metrics.Metrics) *Engine {
	return &Engine{
		tok:     tok,
		idx:     idx,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "indexer"),
	}
}

func (e *Engine) Tokenizer() *tokenizer.Tokenizer { return e.tok }

func (e *Engine) Index() *index.InvertedIndex { return e.idx }

// Upsert tokenizes doc and applies it to the index. Text that yields no
// n-grams cannot be indexed: an earlier version of the document is removed
// (OutcomeCleared), otherwise the document is skipped.
func (e *Engine) Upsert(ctx context.Context, doc Document) (index.Outcome, error) {
	_, span := tracing.StartChild(ctx, "tokenize")
	terms := e.tok.Terms(doc.Text)
	span.SetAttr("terms", len(terms))
	span.End()

	var (
		outcome index.Outcome
		err     error
	)
	if len(terms) == 0 {
		_, span = tracing.StartChild(ctx, "index-clear")
		outcome, err = e.clear(ctx, doc.ID)
	} else {
		_, span = tracing.StartChild(ctx, "index-upsert")
		outcome, err = e.idx.Upsert(ctx, index.Doc{ID: doc.ID, Terms: terms})
	}
	span.End()
	if err != nil {
		return "", fmt.Errorf("upserting document %s: %w", doc.ID, err)
	}
	if e.metrics != nil {
		e.metrics.DocsUpsertedTotal.WithLabelValues(string(outcome)).Inc()
	}
	e.logger.Debug("document upserted",
		"doc_id", doc.ID,
		"outcome", outcome,
		"term_count", len(terms),
	)
	if outcome.Changed() {
		e.refreshGauges(ctx)
	}
	return outcome, nil
}

func (e *Engine) clear(ctx context.Context, docID string) (index.Outcome, error) {
	removed, err := e.idx.Remove(ctx, docID)
	if err != nil || !removed {
		return index.OutcomeSkipped, err
	}
	return index.OutcomeCleared, nil
}

// Remove drops docID from the index and reports whether it was present.
func (e *Engine) Remove(ctx context.Context, docID string) (bool, error) {
	removed, err := e.idx.Remove(ctx, docID)
	if err != nil {
		return false, fmt.Errorf("removing document %s: %w", docID, err)
	}
	if removed {
		if e.metrics != nil {
			e.metrics.DocsRemovedTotal.Inc()
		}
		e.refreshGauges(ctx)
		e.logger.Debug("document removed", "doc_id", docID)
	}
	return removed, nil
}

func (e *Engine) Stats(ctx context.Context) (index.CorpusStats, error) {
	return e.idx.Stats(ctx)
}

// Rebuild empties the index and re-indexes every document from src within
// the configured rebuild timeout. It returns the number of documents
// indexed.
func (e *Engine) Rebuild(ctx context.Context, src DocumentSource) (int, error) {
	start := time.Now()
	indexed := 0
	err := resilience.WithTimeout(ctx, e.cfg.RebuildTimeout, "index rebuild", func(ctx context.Context) error {
		if err := e.idx.Reset(ctx); err != nil {
			return err
		}
		err := src.ForEach(ctx, func(id, text string) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outcome, err := e.Upsert(ctx, Document{ID: id, Text: text})
			if err != nil {
				return err
			}
			if outcome == index.OutcomeAdded || outcome == index.OutcomeUnchanged {
				indexed++
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("streaming documents: %w", err)
		}
		return e.stampFingerprint(ctx)
	})
	if err != nil {
		return indexed, fmt.Errorf("rebuilding index: %w", err)
	}
	e.logger.Info("index rebuilt",
		"documents", indexed,
		"duration", time.Since(start),
	)
	return indexed, nil
}

// Bootstrap makes sure the index matches the current tokenizer scheme. An
// index stamped with a different fingerprint, or any index when
// RebuildOnStart is set, is rebuilt from src. A fresh empty index is only
// stamped. It reports whether a rebuild ran.
func (e *Engine) Bootstrap(ctx context.Context, src DocumentSource) (bool, error) {
	current := e.tok.Fingerprint()
	fp, ok := e.idx.Store().(fingerprinter)
	stored := current
	if ok {
		var err error
		if stored, err = fp.TokenizerFingerprint(ctx); err != nil {
			return false, fmt.Errorf("reading index fingerprint: %w", err)
		}
	}

	stats, err := e.idx.Stats(ctx)
	if err != nil {
		return false, err
	}
	rebuild := e.cfg.RebuildOnStart
	switch {
	case stored == "" && stats.TotalDocuments == 0:
	case stored != current:
		e.logger.Warn("tokenizer scheme changed, index must be rebuilt",
			"stored_fingerprint", stored,
			"current_fingerprint", current,
		)
		rebuild = true
	}

	if rebuild && src != nil {
		if _, err := e.Rebuild(ctx, src); err != nil {
			return false, err
		}
		return true, nil
	}
	if rebuild {
		e.logger.Warn("rebuild required but no document source configured")
	}
	if stored == "" {
		if err := e.stampFingerprint(ctx); err != nil {
			return false, err
		}
	}
	e.refreshGauges(ctx)
	return false, nil
}

func (e *Engine) stampFingerprint(ctx context.Context) error {
	fp, ok := e.idx.Store().(fingerprinter)
	if !ok {
		return nil
	}
	if err := fp.SetTokenizerFingerprint(ctx, e.tok.Fingerprint()); err != nil {
		return fmt.Errorf("stamping index fingerprint: %w", err)
	}
	return nil
}

func (e *Engine) refreshGauges(ctx context.Context) {
	if e.metrics == nil {
		return
	}
	stats, err := e.idx.Stats(ctx)
	if err != nil {
		e.logger.Warn("reading corpus stats for metrics failed", "error", err)
		return
	}
	e.metrics.IndexDocuments.Set(float64(stats.TotalDocuments))
	e.metrics.IndexTerms.Set(float64(stats.TotalTermCount))
	if sz, ok := e.idx.Store().(sizer); ok {
		e.metrics.IndexTermEntries.Set(float64(sz.TermCount()))
		e.metrics.IndexMemoryBytes.Set(float64(sz.Size()))
	}
}
