package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/resilience"
)

type memStore struct {
	hashes   map[string]string
	deleting map[string]bool
	err      error
}

func (s *memStore) Save(_ context.Context, id, _, hash string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.hashes[id] == hash && !s.deleting[id] {
		return false, nil
	}
	s.hashes[id] = hash
	delete(s.deleting, id)
	return true, nil
}

func (s *memStore) MarkDeleting(_ context.Context, id string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.hashes[id]; !ok {
		return false, nil
	}
	s.deleting[id] = true
	return true, nil
}

type recordingProducer struct {
	events   []kafka.Event
	failures int
}

func (p *recordingProducer) Publish(_ context.Context, event kafka.Event) error {
	if p.failures > 0 {
		p.failures--
		return errors.New("broker down")
	}
	p.events = append(p.events, event)
	return nil
}

func newTestPublisher() (*Publisher, *memStore, *recordingProducer) {
	store := &memStore{hashes: map[string]string{}, deleting: map[string]bool{}}
	prod := &recordingProducer{}
	p := New(store, prod)
	p.retry = resilience.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	p.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return p, store, prod
}

func TestUpsertPublishesOnChange(t *testing.T) {
	p, _, prod := newTestPublisher()
	ctx := context.Background()

	resp, err := p.Upsert(ctx, "d1", &ingestion.UpsertRequest{Text: "quick fox"})
	require.NoError(t, err)
	assert.Equal(t, ingestion.StatusPending, resp.Status)
	assert.Equal(t, ContentHash("quick fox"), resp.ContentHash)
	require.Len(t, prod.events, 1)
	assert.Equal(t, "d1", prod.events[0].Key)
	event := prod.events[0].Value.(ingestion.DocumentEvent)
	assert.Equal(t, ingestion.OpUpsert, event.Op)
	assert.Equal(t, "quick fox", event.Text)

	resp, err = p.Upsert(ctx, "d1", &ingestion.UpsertRequest{Text: "quick fox"})
	require.NoError(t, err)
	assert.Equal(t, ingestion.StatusUnchanged, resp.Status)
	assert.Len(t, prod.events, 1)
}

func TestUpsertRetriesPublish(t *testing.T) {
	p, _, prod := newTestPublisher()
	prod.failures = 1
	_, err := p.Upsert(context.Background(), "d1", &ingestion.UpsertRequest{Text: "x"})
	require.NoError(t, err)
	assert.Len(t, prod.events, 1)
}

func TestUpsertPublishFailureIsUnavailable(t *testing.T) {
	p, _, prod := newTestPublisher()
	prod.failures = 5
	_, err := p.Upsert(context.Background(), "d1", &ingestion.UpsertRequest{Text: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
	assert.Equal(t, 503, apperrors.HTTPStatusCode(err))
}

func TestUpsertStoreFailure(t *testing.T) {
	p, store, prod := newTestPublisher()
	store.err = apperrors.ErrStorage
	_, err := p.Upsert(context.Background(), "d1", &ingestion.UpsertRequest{Text: "x"})
	assert.ErrorIs(t, err, apperrors.ErrStorage)
	assert.Empty(t, prod.events)
}

func TestRemove(t *testing.T) {
	p, store, prod := newTestPublisher()
	ctx := context.Background()

	_, err := p.Remove(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
	assert.Equal(t, 404, apperrors.HTTPStatusCode(err))

	_, err = p.Upsert(ctx, "d1", &ingestion.UpsertRequest{Text: "x"})
	require.NoError(t, err)
	resp, err := p.Remove(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, ingestion.StatusDeleting, resp.Status)
	assert.True(t, store.deleting["d1"], "row is kept until the indexer purges it")
	require.Len(t, prod.events, 2)
	event := prod.events[1].Value.(ingestion.DocumentEvent)
	assert.Equal(t, ingestion.OpRemove, event.Op)
	assert.Empty(t, event.Text)
}

func TestRemovePublishFailureCanBeRetried(t *testing.T) {
	p, store, prod := newTestPublisher()
	ctx := context.Background()
	_, err := p.Upsert(ctx, "d1", &ingestion.UpsertRequest{Text: "x"})
	require.NoError(t, err)

	prod.failures = 5
	_, err = p.Remove(ctx, "d1")
	require.Error(t, err)
	assert.Equal(t, 503, apperrors.HTTPStatusCode(err))
	assert.True(t, store.deleting["d1"])

	prod.failures = 0
	resp, err := p.Remove(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, ingestion.StatusDeleting, resp.Status)
	require.Len(t, prod.events, 2)
	assert.Equal(t, ingestion.OpRemove, prod.events[1].Value.(ingestion.DocumentEvent).Op)
}

func TestUpsertAfterRemoveRepublishes(t *testing.T) {
	p, store, prod := newTestPublisher()
	ctx := context.Background()
	_, err := p.Upsert(ctx, "d1", &ingestion.UpsertRequest{Text: "x"})
	require.NoError(t, err)
	_, err = p.Remove(ctx, "d1")
	require.NoError(t, err)

	resp, err := p.Upsert(ctx, "d1", &ingestion.UpsertRequest{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, ingestion.StatusPending, resp.Status)
	assert.False(t, store.deleting["d1"])
	assert.Len(t, prod.events, 3)
}
