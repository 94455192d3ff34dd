// Package consumer reads document events from Kafka and applies them to the
// index via the indexer engine, then tells searchers to drop cached results.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/tracing"
)

// Mutator is the part of the engine the consumer drives.
type Mutator interface {
	Upsert(ctx context.Context, doc indexer.Document) (index.Outcome, error)
	Remove(ctx context.Context, docID string) (bool, error)
}

// Publisher sends events to Kafka.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// StatusUpdater records indexing progress on the stored document and
// deletes rows whose removal the index has applied.
type StatusUpdater interface {
	MarkStatus(ctx context.Context, docID, status string) error
	Purge(ctx context.Context, docID string) (bool, error)
}

// IndexConsumer wraps a Kafka consumer to drive the indexing pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IndexConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a Kafka MessageHandler that applies each document
// event to engine. invalidations and statuses may be nil. Malformed events
// are logged and dropped; engine failures are returned so the message is
// not committed.
func HandleMessage(engine Mutator, invalidations Publisher, statuses StatusUpdater) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.DocumentEvent](value)
		if err != nil {
			logger.Error("failed to decode document event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if event.DocumentID == "" {
			logger.Error("document event without id", "key", string(key))
			return nil
		}

		ctx, span := tracing.Start(ctx, "document-event", event.DocumentID)
		span.SetAttr("op", event.Op)
		defer func() {
			span.End()
			span.Log(ctx, logger, slog.LevelDebug)
		}()

		changed := false
		switch event.Op {
		case ingestion.OpUpsert:
			outcome, err := engine.Upsert(ctx, indexer.Document{ID: event.DocumentID, Text: event.Text})
			if err != nil {
				updateDocStatus(ctx, statuses, event.DocumentID, ingestion.StatusFailed, logger)
				return fmt.Errorf("indexing document %s: %w", event.DocumentID, err)
			}
			updateDocStatus(ctx, statuses, event.DocumentID, ingestion.StatusIndexed, logger)
			span.SetAttr("outcome", outcome)
			changed = outcome.Changed()
			logger.Info("document indexed",
				"doc_id", event.DocumentID,
				"outcome", outcome,
			)
		case ingestion.OpRemove:
			removed, err := engine.Remove(ctx, event.DocumentID)
			if err != nil {
				return fmt.Errorf("removing document %s: %w", event.DocumentID, err)
			}
			changed = removed
			purgeDocument(ctx, statuses, event.DocumentID, logger)
			logger.Info("document removed",
				"doc_id", event.DocumentID,
				"was_indexed", removed,
			)
		default:
			logger.Error("unknown document event op",
				"doc_id", event.DocumentID,
				"op", event.Op,
			)
			return nil
		}

		if changed && invalidations != nil {
			_, pubSpan := tracing.StartChild(ctx, "publish-invalidation")
			defer pubSpan.End()
			inv := kafka.Event{
				Key: event.DocumentID,
				Value: ingestion.InvalidationEvent{
					DocumentID: event.DocumentID,
					Op:         event.Op,
					At:         time.Now().UTC(),
				},
			}
			if err := invalidations.Publish(ctx, inv); err != nil {
				logger.Warn("failed to publish cache invalidation",
					"doc_id", event.DocumentID,
					"error", err,
				)
			}
		}
		return nil
	}
}

func updateDocStatus(ctx context.Context, statuses StatusUpdater, docID, status string, logger *slog.Logger) {
	if statuses == nil {
		return
	}
	_, span := tracing.StartChild(ctx, "mark-status")
	defer span.End()
	span.SetAttr("status", status)
	if err := statuses.MarkStatus(ctx, docID, status); err != nil {
		logger.Error("failed to update document status",
			"doc_id", docID,
			"status", status,
			"error", err,
		)
	}
}

// purgeDocument deletes the row left in DELETING state by the ingestion
// service. A failure leaves the row for a retried delete request.
func purgeDocument(ctx context.Context, statuses StatusUpdater, docID string, logger *slog.Logger) {
	if statuses == nil {
		return
	}
	_, span := tracing.StartChild(ctx, "purge-row")
	defer span.End()
	purged, err := statuses.Purge(ctx, docID)
	if err != nil {
		logger.Error("failed to purge removed document", "doc_id", docID, "error", err)
		return
	}
	span.SetAttr("purged", purged)
}
