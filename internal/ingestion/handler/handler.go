package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/ingestion/repository"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/logger"
)

// bodyOverhead covers the JSON framing around the text field.
const bodyOverhead = 4096

type DocumentWriter interface {
	Upsert(ctx context.Context, id string, req *ingestion.UpsertRequest) (*ingestion.DocumentResponse, error)
	Remove(ctx context.Context, id string) (*ingestion.DocumentResponse, error)
}

type DocumentReader interface {
	Get(ctx context.Context, id string) (*repository.Document, error)
	Counts(ctx context.Context) (map[string]int, error)
}

type Handler struct {
	writer        DocumentWriter
	reader        DocumentReader
	maxTextLength int
	logger        *slog.Logger
}

func New(writer DocumentWriter, reader DocumentReader, maxTextLength int) *Handler {
	if maxTextLength <= 0 {
		maxTextLength = validator.DefaultMaxTextLength
	}
	return &Handler{
		writer:        writer,
		reader:        reader,
		maxTextLength: maxTextLength,
		logger:        slog.Default().With("component", "ingestion-handler"),
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("PUT /api/v1/documents/{id}", h.Upsert)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.Remove)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Get)
	mux.HandleFunc("GET /api/v1/documents/stats", h.Stats)
	mux.HandleFunc("GET /health", h.Health)
}

func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	id := r.PathValue("id")

	r.Body = http.MaxBytesReader(w, r.Body, int64(h.maxTextLength+bodyOverhead))
	var req ingestion.UpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateUpsert(id, &req, h.maxTextLength); err != nil {
		h.writeValidationError(w, err)
		return
	}

	resp, err := h.writer.Upsert(ctx, id, &req)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("document upsert failed",
			"doc_id", id,
			"error", err,
			"status_code", statusCode,
		)
		h.writeError(w, statusCode, "document upsert failed")
		return
	}
	status := http.StatusAccepted
	if resp.Status == ingestion.StatusUnchanged {
		status = http.StatusOK
	}
	log.Info("document accepted", "doc_id", id, "status", resp.Status)
	h.writeJSON(w, status, resp)
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	id := r.PathValue("id")
	if err := validator.ValidateID(id); err != nil {
		h.writeValidationError(w, err)
		return
	}

	resp, err := h.writer.Remove(ctx, id)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		if statusCode == http.StatusNotFound {
			h.writeError(w, statusCode, "document not found")
			return
		}
		log.Error("document removal failed",
			"doc_id", id,
			"error", err,
			"status_code", statusCode,
		)
		h.writeError(w, statusCode, "document removal failed")
		return
	}
	log.Info("document removed", "doc_id", id)
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		h.writeError(w, http.StatusNotImplemented, "document reads are not enabled")
		return
	}
	id := r.PathValue("id")
	doc, err := h.reader.Get(r.Context(), id)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		if statusCode != http.StatusNotFound {
			logger.FromContext(r.Context()).Error("document read failed", "doc_id", id, "error", err)
		}
		h.writeError(w, statusCode, http.StatusText(statusCode))
		return
	}
	body := map[string]any{
		"document_id":  doc.ID,
		"text":         doc.Text,
		"content_hash": doc.ContentHash,
		"status":       doc.Status,
		"updated_at":   doc.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if doc.IndexedAt != nil {
		body["indexed_at"] = doc.IndexedAt.UTC().Format(time.RFC3339)
	}
	h.writeJSON(w, http.StatusOK, body)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		h.writeError(w, http.StatusNotImplemented, "document reads are not enabled")
		return
	}
	counts, err := h.reader.Counts(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("document counts failed", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "document counts unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"documents_by_status": counts})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeValidationError(w http.ResponseWriter, err error) {
	var validationErr *validator.ValidationError
	if errors.As(err, &validationErr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": validationErr.Fields,
		})
		return
	}
	h.writeError(w, http.StatusBadRequest, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
