package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/ingestion/repository"
	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/errors"
)

type fakeWriter struct {
	texts map[string]string
	err   error
}

func (f *fakeWriter) Upsert(_ context.Context, id string, req *ingestion.UpsertRequest) (*ingestion.DocumentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	status := ingestion.StatusPending
	if f.texts[id] == req.Text {
		status = ingestion.StatusUnchanged
	}
	f.texts[id] = req.Text
	return &ingestion.DocumentResponse{DocumentID: id, Status: status}, nil
}

func (f *fakeWriter) Remove(_ context.Context, id string) (*ingestion.DocumentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.texts[id]; !ok {
		return nil, apperrors.New(apperrors.ErrDocumentNotFound, http.StatusNotFound, id)
	}
	delete(f.texts, id)
	return &ingestion.DocumentResponse{DocumentID: id, Status: ingestion.StatusDeleting}, nil
}

type fakeReader struct{ writer *fakeWriter }

func (f fakeReader) Get(_ context.Context, id string) (*repository.Document, error) {
	text, ok := f.writer.texts[id]
	if !ok {
		return nil, apperrors.New(apperrors.ErrDocumentNotFound, http.StatusNotFound, id)
	}
	return &repository.Document{ID: id, Text: text, Status: ingestion.StatusPending, UpdatedAt: time.Now()}, nil
}

func (f fakeReader) Counts(context.Context) (map[string]int, error) {
	return map[string]int{ingestion.StatusPending: len(f.writer.texts)}, nil
}

func newTestServer(t *testing.T, maxText int) (*httptest.Server, *fakeWriter) {
	t.Helper()
	writer := &fakeWriter{texts: map[string]string{}}
	mux := http.NewServeMux()
	New(writer, fakeReader{writer: writer}, maxText).Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, writer
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestUpsertLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	url := srv.URL + "/api/v1/documents/doc-1"

	resp, body := do(t, http.MethodPut, url, `{"text":"the quick fox"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "PENDING", body["status"])

	resp, body = do(t, http.MethodPut, url, `{"text":"the quick fox"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "UNCHANGED", body["status"])

	resp, body = do(t, http.MethodGet, url, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "the quick fox", body["text"])

	resp, body = do(t, http.MethodDelete, url, "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "DELETING", body["status"])

	resp, _ = do(t, http.MethodDelete, url, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, url, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpsertRejectsBadInput(t *testing.T) {
	srv, _ := newTestServer(t, 10)
	url := srv.URL + "/api/v1/documents/doc-1"

	resp, _ := do(t, http.MethodPut, url, `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := do(t, http.MethodPut, url, `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["fields"], "text")

	resp, body = do(t, http.MethodPut, url, `{"text":"far more than ten bytes"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["fields"], "text")
}

func TestUpsertBodyTooLarge(t *testing.T) {
	srv, _ := newTestServer(t, 10)
	big := `{"text":"` + strings.Repeat("a", 2*bodyOverhead) + `"}`
	resp, _ := do(t, http.MethodPut, srv.URL+"/api/v1/documents/doc-1", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestWriterUnavailable(t *testing.T) {
	srv, writer := newTestServer(t, 0)
	writer.err = apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "kafka down")
	resp, _ := do(t, http.MethodPut, srv.URL+"/api/v1/documents/doc-1", `{"text":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStats(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	do(t, http.MethodPut, srv.URL+"/api/v1/documents/a", `{"text":"x"}`)
	resp, body := do(t, http.MethodGet, srv.URL+"/api/v1/documents/stats", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	counts := body["documents_by_status"].(map[string]any)
	assert.Equal(t, float64(1), counts["PENDING"])
}
