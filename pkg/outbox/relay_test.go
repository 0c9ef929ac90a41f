package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	pending []Event
	sent    []int64
	failed  map[int64]string
}

func (s *memStore) LockBatch(_ context.Context, _ string, batchSize int, _ time.Duration) ([]Event, error) {
	n := min(batchSize, len(s.pending))
	batch := s.pending[:n]
	s.pending = s.pending[n:]
	return batch, nil
}

func (s *memStore) MarkSent(_ context.Context, ids []int64) error {
	s.sent = append(s.sent, ids...)
	return nil
}

func (s *memStore) MarkFailed(_ context.Context, id int64, msg string) error {
	s.failed[id] = msg
	return nil
}

type memProducer struct {
	msgs   []kafka.Message
	failOn string
}

func (p *memProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		if string(m.Key) == p.failOn {
			return errors.New("broker unavailable")
		}
		p.msgs = append(p.msgs, m)
	}
	return nil
}

func TestFlushDispatchesAndRecordsOutcome(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &memStore{failed: map[int64]string{}, pending: []Event{
		{ID: 1, AggregateID: "o1", Type: "OrderReconciled", Payload: []byte(`{}`), Traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"},
		{ID: 2, AggregateID: "bad", Type: "ReconcileRetry", Payload: []byte(`{}`)},
		{ID: 3, AggregateID: "o3", Type: "ReconcileRetry", Payload: []byte(`{}`), Headers: map[string]string{"source": "webhook"}},
	}}
	producer := &memProducer{failOn: "bad"}
	relay := NewRelay(log, store, NewDispatcher(log, producer, "storefront.events"), "relay-1")

	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 3}, store.sent)
	assert.Contains(t, store.failed[2], "broker unavailable")

	require.Len(t, producer.msgs, 2)
	first := headerMap(producer.msgs[0].Headers)
	assert.Equal(t, "storefront.events", producer.msgs[0].Topic)
	assert.Equal(t, "OrderReconciled", first[EventTypeHeader])
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", first["traceparent"])
	assert.Equal(t, "webhook", headerMap(producer.msgs[1].Headers)["source"])

	n, err = relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func headerMap(h []kafka.Header) map[string]string {
	out := map[string]string{}
	for _, hh := range h {
		out[hh.Key] = string(hh.Value)
	}
	return out
}
