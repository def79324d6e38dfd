// Package outbox publishes order lifecycle events that were written in the
// same transaction as the order mutation they describe.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjod/go_shop/internal/order"
	"github.com/segmentio/kafka-go"
)

// EventSource is the slice of the order repository the poller needs.
type EventSource interface {
	UnprocessedEvents(ctx context.Context, limit int) ([]*order.OutboxEvent, error)
	MarkEventProcessed(ctx context.Context, id int64) error
}

// messageWriter is the part of kafka.Writer the poller uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Poller struct {
	tick   time.Duration
	source EventSource
	writer messageWriter
}

func NewPoller(source EventSource, brokers ...string) *Poller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  "order-events",
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &Poller{tick: time.Second, source: source, writer: w}
}

func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) Close() error {
	return p.writer.Close()
}

func (p *Poller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.source.UnprocessedEvents(ctx, 100)
	if err != nil {
		slog.ErrorContext(ctx, "failed to fetch outbox events", "error", err)
		return
	}

	for _, event := range events {
		if errPublish := p.publish(ctx, event); errPublish != nil {
			slog.ErrorContext(ctx, "failed to publish event",
				"event_id", event.ID, "error", errPublish)
			continue
		}

		if errMark := p.source.MarkEventProcessed(ctx, event.ID); errMark != nil {
			slog.ErrorContext(ctx, "failed to mark event as processed",
				"event_id", event.ID, "error", errMark)
			continue
		}
	}
}

func (p *Poller) publish(ctx context.Context, event *order.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order_id for per-order ordering
		Value: event.Payload,             // Already JSON from the outbox table
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	return p.writer.WriteMessages(ctx, msg)
}
