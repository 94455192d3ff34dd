// Package ingestion defines the request/response types and Kafka event schemas
// used by the document ingestion pipeline.
package ingestion

import "time"

// Event operations carried by DocumentEvent.
const (
	OpUpsert = "upsert"
	OpRemove = "remove"
)

// Document statuses stored in PostgreSQL. StatusUnchanged only appears in
// responses. A DELETING row is hidden from rebuilds and is deleted once the
// indexer has applied the remove event.
const (
	StatusPending   = "PENDING"
	StatusIndexed   = "INDEXED"
	StatusFailed    = "FAILED"
	StatusDeleting  = "DELETING"
	StatusUnchanged = "UNCHANGED"
)

// UpsertRequest is the JSON body accepted by PUT /api/v1/documents/{id}.
type UpsertRequest struct {
	Text string `json:"text"`
}

// DocumentResponse is returned to the caller after a change is accepted.
type DocumentResponse struct {
	DocumentID  string `json:"document_id"`
	Status      string `json:"status"`
	ContentHash string `json:"content_hash,omitempty"`
}

// DocumentEvent is the Kafka message payload produced after a document is
// persisted or deleted. Events are keyed by DocumentID so that changes to
// one document are consumed in order.
type DocumentEvent struct {
	Op          string    `json:"op"`
	DocumentID  string    `json:"document_id"`
	Text        string    `json:"text,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// InvalidationEvent tells searchers that cached query results may be stale.
type InvalidationEvent struct {
	DocumentID string    `json:"document_id"`
	Op         string    `json:"op"`
	At         time.Time `json:"at"`
}
