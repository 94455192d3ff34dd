// Package repository stores the source documents in PostgreSQL. The table is
// the system of record: the index can always be rebuilt from it.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	text         TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'PENDING',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	indexed_at   TIMESTAMPTZ
)`

// Document is a stored row.
type Document struct {
	ID          string
	Text        string
	ContentHash string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	IndexedAt   *time.Time
}

type Repository struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Repository {
	return &Repository{
		db:     db,
		logger: slog.Default().With("component", "document-repository"),
	}
}

// EnsureSchema creates the documents table if it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}
	return nil
}

// Save inserts or replaces a document and reports whether anything changed.
// A row whose hash matches and which is already indexed is left untouched;
// a matching row still pending or failed counts as changed so that its
// event is published again.
func (r *Repository) Save(ctx context.Context, id, text, contentHash string) (bool, error) {
	var saved string
	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx,
			`INSERT INTO documents (id, text, content_hash, status)
		VALUES ($1, $2, $3, 'PENDING')
		ON CONFLICT (id) DO UPDATE
		SET text = EXCLUDED.text,
			content_hash = EXCLUDED.content_hash,
			status = 'PENDING',
			updated_at = NOW()
		WHERE documents.content_hash <> EXCLUDED.content_hash
			OR documents.status <> 'INDEXED'
		RETURNING id`, id, text, contentHash).Scan(&saved)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: saving document %s: %w", apperrors.ErrStorage, id, err)
	}
	return true, nil
}

// MarkDeleting flags a document for removal and reports whether it exists.
// Marking a row that is already DELETING succeeds again.
func (r *Repository) MarkDeleting(ctx context.Context, id string) (bool, error) {
	return r.affected(ctx, "marking document "+id+" for deletion",
		`UPDATE documents SET status = 'DELETING', updated_at = NOW() WHERE id = $1`, id)
}

// Purge deletes a document only while it is still DELETING, so a row
// re-created by a later upsert survives the earlier remove.
func (r *Repository) Purge(ctx context.Context, id string) (bool, error) {
	return r.affected(ctx, "purging document "+id,
		`DELETE FROM documents WHERE id = $1 AND status = 'DELETING'`, id)
}

// Delete removes a document unconditionally and reports whether it existed.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	return r.affected(ctx, "deleting document "+id, `DELETE FROM documents WHERE id = $1`, id)
}

func (r *Repository) affected(ctx context.Context, op, query string, args ...any) (bool, error) {
	res, err := r.db.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", apperrors.ErrStorage, op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", apperrors.ErrStorage, op, err)
	}
	return n > 0, nil
}

// Get returns one document or ErrDocumentNotFound.
func (r *Repository) Get(ctx context.Context, id string) (*Document, error) {
	var doc Document
	var indexedAt sql.NullTime
	err := r.db.DB.QueryRowContext(ctx,
		`SELECT id, text, content_hash, status, created_at, updated_at, indexed_at
		FROM documents WHERE id = $1`, id).
		Scan(&doc.ID, &doc.Text, &doc.ContentHash, &doc.Status, &doc.CreatedAt, &doc.UpdatedAt, &indexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "document %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading document %s: %w", apperrors.ErrStorage, id, err)
	}
	if indexedAt.Valid {
		doc.IndexedAt = &indexedAt.Time
	}
	return &doc, nil
}

// MarkStatus records indexing progress. INDEXED also stamps indexed_at. A
// DELETING row keeps its status.
func (r *Repository) MarkStatus(ctx context.Context, id, status string) error {
	_, err := r.db.DB.ExecContext(ctx,
		`UPDATE documents
		SET status = $1,
			indexed_at = CASE WHEN $1 = 'INDEXED' THEN NOW() ELSE indexed_at END
		WHERE id = $2 AND status <> 'DELETING'`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("%w: updating status of %s: %w", apperrors.ErrStorage, id, err)
	}
	return nil
}

// ForEach streams every document not marked DELETING, in ID order.
func (r *Repository) ForEach(ctx context.Context, fn func(id, text string) error) error {
	rows, err := r.db.DB.QueryContext(ctx, `SELECT id, text FROM documents WHERE status <> 'DELETING' ORDER BY id`)
	if err != nil {
		return fmt.Errorf("%w: listing documents: %w", apperrors.ErrStorage, err)
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			return fmt.Errorf("scanning document row: %w", err)
		}
		if err := fn(id, text); err != nil {
			return err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: iterating documents: %w", apperrors.ErrStorage, err)
	}
	r.logger.Debug("documents streamed", "count", n)
	return nil
}

// Counts returns the number of documents per status.
func (r *Repository) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("%w: counting documents: %w", apperrors.ErrStorage, err)
	}
	defer rows.Close()
	counts := map[string]int{
		ingestion.StatusPending:  0,
		ingestion.StatusIndexed:  0,
		ingestion.StatusFailed:   0,
		ingestion.StatusDeleting: 0,
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
