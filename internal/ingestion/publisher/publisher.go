// Package publisher persists documents to PostgreSQL and publishes change
// events to Kafka for downstream indexing. Writes are idempotent: storing the
// same text twice publishes nothing the second time.
package publisher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/resilience"
)

// DocumentStore is the persistence side of a document write.
type DocumentStore interface {
	Save(ctx context.Context, id, text, contentHash string) (bool, error)
	MarkDeleting(ctx context.Context, id string) (bool, error)
}

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Publisher coordinates document persistence and Kafka event production.
type Publisher struct {
	store    DocumentStore
	producer EventPublisher
	retry    resilience.RetryConfig
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Publisher with the given store and Kafka producer.
func New(store DocumentStore, producer EventPublisher) *Publisher {
	return &Publisher{
		store:    store,
		producer: producer,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     time.Second,
		},
		logger: slog.Default().With("component", "publisher"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ContentHash returns the hex SHA-256 of text.
func ContentHash(text string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(text)))
}

// Upsert stores the document and publishes an upsert event when its text
// changed. An unchanged document yields StatusUnchanged and no event. If the
// event cannot be published the row stays PENDING and a retried request
// publishes again.
func (p *Publisher) Upsert(ctx context.Context, id string, req *ingestion.UpsertRequest) (*ingestion.DocumentResponse, error) {
	hash := ContentHash(req.Text)
	changed, err := p.store.Save(ctx, id, req.Text, hash)
	if err != nil {
		return nil, fmt.Errorf("persisting document: %w", err)
	}
	if !changed {
		p.logger.Debug("document unchanged", "doc_id", id)
		return &ingestion.DocumentResponse{
			DocumentID:  id,
			Status:      ingestion.StatusUnchanged,
			ContentHash: hash,
		}, nil
	}

	event := ingestion.DocumentEvent{
		Op:          ingestion.OpUpsert,
		DocumentID:  id,
		Text:        req.Text,
		PublishedAt: p.now(),
	}
	if err := p.publish(ctx, event); err != nil {
		p.logger.Error("failed to publish upsert, document left PENDING",
			"doc_id", id,
			"error", err,
		)
		return nil, err
	}
	return &ingestion.DocumentResponse{
		DocumentID:  id,
		Status:      ingestion.StatusPending,
		ContentHash: hash,
	}, nil
}

// Remove marks the document DELETING and publishes a remove event; the
// indexer deletes the row once the index has dropped it. If the event cannot
// be published the row stays DELETING and a retried request publishes
// again. It returns ErrDocumentNotFound when no such document is stored.
func (p *Publisher) Remove(ctx context.Context, id string) (*ingestion.DocumentResponse, error) {
	marked, err := p.store.MarkDeleting(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("marking document for deletion: %w", err)
	}
	if !marked {
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "document %s", id)
	}
	event := ingestion.DocumentEvent{
		Op:          ingestion.OpRemove,
		DocumentID:  id,
		PublishedAt: p.now(),
	}
	if err := p.publish(ctx, event); err != nil {
		p.logger.Error("failed to publish remove, document left DELETING",
			"doc_id", id,
			"error", err,
		)
		return nil, err
	}
	return &ingestion.DocumentResponse{
		DocumentID: id,
		Status:     ingestion.StatusDeleting,
	}, nil
}

func (p *Publisher) publish(ctx context.Context, event ingestion.DocumentEvent) error {
	err := resilience.Retry(ctx, "publish-document-event", p.retry, func() error {
		return p.producer.Publish(ctx, kafka.Event{Key: event.DocumentID, Value: event})
	})
	if err != nil {
		return apperrors.Newf(apperrors.ErrUnavailable, http.StatusServiceUnavailable,
			"publishing %s event for %s: %v", event.Op, event.DocumentID, err)
	}
	return nil
}
