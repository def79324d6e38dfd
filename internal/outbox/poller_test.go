package outbox

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_shop/internal/order"
)

type mockWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockWriter) Close() error { return nil }

type mockSource struct {
	mu        sync.Mutex
	events    []*order.OutboxEvent
	processed []int64
	err       error
}

func (m *mockSource) UnprocessedEvents(_ context.Context, limit int) ([]*order.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if len(m.events) > limit {
		return m.events[:limit], nil
	}
	return m.events, nil
}

func (m *mockSource) MarkEventProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed = append(m.processed, id)
	for i, e := range m.events {
		if e.ID == id {
			m.events = append(m.events[:i], m.events[i+1:]...)
			break
		}
	}
	return nil
}

func event(id int64, eventType string) *order.OutboxEvent {
	return &order.OutboxEvent{
		ID:          id,
		AggregateID: fmt.Sprintf("order-%d", id),
		EventType:   eventType,
		Payload:     []byte(`{"order_id":"x"}`),
	}
}

func TestProcessUnpublishedEvents_PublishesAndMarks(t *testing.T) {
	source := &mockSource{events: []*order.OutboxEvent{
		event(1, order.EventOrderCreated),
		event(2, order.EventOrderCancelled),
	}}
	writer := &mockWriter{}
	p := &Poller{source: source, writer: writer}

	p.processUnpublishedEvents(context.Background())

	require.Len(t, writer.messages, 2)
	assert.Equal(t, []byte("order-1"), writer.messages[0].Key)
	require.Len(t, writer.messages[0].Headers, 1)
	assert.Equal(t, "event_type", writer.messages[0].Headers[0].Key)
	assert.Equal(t, []byte(order.EventOrderCreated), writer.messages[0].Headers[0].Value)

	assert.Equal(t, []int64{1, 2}, source.processed)
	assert.Empty(t, source.events)
}

func TestProcessUnpublishedEvents_PublishFailureLeavesEventUnprocessed(t *testing.T) {
	source := &mockSource{events: []*order.OutboxEvent{event(1, order.EventOrderCreated)}}
	writer := &mockWriter{err: fmt.Errorf("broker unavailable")}
	p := &Poller{source: source, writer: writer}

	p.processUnpublishedEvents(context.Background())

	// Nothing marked: the event will be retried on the next tick
	assert.Empty(t, source.processed)
	require.Len(t, source.events, 1)
}

func TestProcessUnpublishedEvents_SourceErrorIsSwallowed(t *testing.T) {
	source := &mockSource{err: fmt.Errorf("database gone")}
	writer := &mockWriter{}
	p := &Poller{source: source, writer: writer}

	// Must not panic, must not publish
	p.processUnpublishedEvents(context.Background())
	assert.Empty(t, writer.messages)
}
