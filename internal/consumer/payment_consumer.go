// Package consumer applies payment outcomes arriving on Kafka to orders. The
// payment provider is external; its result is just a status label here.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/order"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type PaymentEvent struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type Consumer struct {
	orders *order.Service
	reader *kafka.Reader
}

func NewConsumer(orders *order.Service, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    "payment-events",
		GroupID:  "go-shop-orders",
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{orders: orders, reader: reader}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		slog.Error("error closing kafka reader", "error", err)
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		slog.ErrorContext(ctx, "error reading message", "error", err)
		return
	}

	c.applyEvent(ctx, m.Value)
}

// applyEvent handles one payment event. Delivery is at-least-once, so
// duplicates and out-of-order events show up as invalid transitions; those
// are logged and skipped, never retried.
func (c *Consumer) applyEvent(ctx context.Context, value []byte) {
	var event PaymentEvent
	if err := json.Unmarshal(value, &event); err != nil {
		slog.ErrorContext(ctx, "error parsing payment event", "error", err)
		return
	}

	orderID, err := uuid.Parse(event.OrderID)
	if err != nil {
		slog.ErrorContext(ctx, "invalid order_id in payment event",
			"order_id", event.OrderID, "error", err)
		return
	}

	status := domain.PaymentStatus(event.Status)
	if !status.Valid() {
		slog.ErrorContext(ctx, "unknown payment status in event",
			"order_id", event.OrderID, "status", event.Status)
		return
	}

	if _, err := c.orders.TransitionPayment(ctx, orderID, status); err != nil {
		var invalid *order.InvalidTransitionError
		if errors.Is(err, order.ErrOrderNotFound) || errors.As(err, &invalid) {
			slog.WarnContext(ctx, "skipping payment event",
				"order_id", event.OrderID, "status", event.Status, "reason", err)
			return
		}
		slog.ErrorContext(ctx, "failed to apply payment event",
			"order_id", event.OrderID, "error", err)
		return
	}

	slog.InfoContext(ctx, "payment status applied",
		"order_id", event.OrderID, "status", event.Status)
}
