package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func TestConsumerCommitsOnlyHandledMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &fakeReader{
		cancel: cancel,
		msgs: []kafka.Message{
			{Key: []byte("a"), Value: []byte("ok"), Offset: 1},
			{Key: []byte("b"), Value: []byte("fail"), Offset: 2},
			{Key: []byte("c"), Value: []byte("ok"), Offset: 3},
		},
	}
	var seen []string
	c := newConsumer(reader, "docs", func(_ context.Context, key, value []byte) error {
		seen = append(seen, string(key))
		if string(value) == "fail" {
			return errors.New("handler failed")
		}
		return nil
	})

	require.NoError(t, c.Start(ctx))
	assert.Equal(t, []string{"a", "b", "c"}, seen)
	assert.Equal(t, []int64{1, 3}, reader.committed)
	assert.True(t, reader.closed)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducerPublishEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "docs")

	err := p.Publish(context.Background(), Event{Key: "doc-1", Value: map[string]string{"op": "upsert"}})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "doc-1", string(w.msgs[0].Key))

	decoded, err := DecodeJSON[map[string]string](w.msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "upsert", decoded["op"])
}

func TestProducerPublishWrapsWriterError(t *testing.T) {
	p := newProducer(&fakeWriter{err: errors.New("broker down")}, "docs")
	err := p.Publish(context.Background(), Event{Key: "k", Value: 1})
	assert.ErrorContains(t, err, "broker down")
}

func TestDecodeJSONError(t *testing.T) {
	_, err := DecodeJSON[struct{ A int }](json.RawMessage(`{"A":"x"}`))
	assert.Error(t, err)
}

type flakyReader struct {
	fakeReader
	failures int
}

func (r *flakyReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r.failures > 0 {
		r.failures--
		return kafka.Message{}, errors.New("broker unreachable")
	}
	return r.fakeReader.FetchMessage(ctx)
}

func TestConsumerBacksOffOnFetchErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &flakyReader{
		failures:   2,
		fakeReader: fakeReader{cancel: cancel, msgs: []kafka.Message{{Key: []byte("a"), Offset: 7}}},
	}
	c := newConsumer(reader, "docs", func(context.Context, []byte, []byte) error { return nil })
	c.fetchBackoff = time.Millisecond

	require.NoError(t, c.Start(ctx))
	assert.Equal(t, []int64{7}, reader.committed)
}

func TestProducerSetsContentType(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newProducer(w, "docs").Publish(context.Background(), Event{Key: "k", Value: 1}))
	require.Len(t, w.msgs[0].Headers, 1)
	assert.Equal(t, "content-type", w.msgs[0].Headers[0].Key)
}
