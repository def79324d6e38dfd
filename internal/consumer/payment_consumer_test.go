package consumer

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_shop/internal/catalog"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/order"
	"github.com/fjod/go_shop/internal/pricing"
)

func newConsumerFixture(t *testing.T) (*Consumer, *order.Service, *domain.Order) {
	t.Helper()
	ctx := context.Background()

	products := catalog.NewMemoryStore()
	p := &domain.Product{
		Name:     "Widget",
		Price:    decimal.RequireFromString("10.00"),
		Stock:    10,
		IsActive: true,
	}
	require.NoError(t, products.CreateProduct(ctx, p))

	orders := order.NewService(
		order.NewMemoryRepository(products),
		products,
		pricing.NewEngine(pricing.DefaultConfig()),
	)

	o, err := orders.Create(ctx, order.CreateOrderInput{
		UserID:          "alice",
		Items:           []order.CreateItem{{ProductID: p.ID, Quantity: 1}},
		ShippingAddress: "1 Main St",
	})
	require.NoError(t, err)

	return &Consumer{orders: orders}, orders, o
}

func paymentEvent(orderID, status string) []byte {
	return []byte(fmt.Sprintf(`{"order_id":%q,"status":%q}`, orderID, status))
}

func TestApplyEvent_MovesPaymentToPaid(t *testing.T) {
	sut, orders, o := newConsumerFixture(t)
	ctx := context.Background()

	sut.applyEvent(ctx, paymentEvent(o.ID.String(), "PAID"))

	got, err := orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, got.PaymentStatus)
}

func TestApplyEvent_DuplicateIsSkipped(t *testing.T) {
	sut, orders, o := newConsumerFixture(t)
	ctx := context.Background()

	sut.applyEvent(ctx, paymentEvent(o.ID.String(), "PAID"))
	// Redelivery of the same event is an invalid transition and gets dropped
	sut.applyEvent(ctx, paymentEvent(o.ID.String(), "PAID"))

	got, err := orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, got.PaymentStatus)
}

func TestApplyEvent_BadPayloadsAreDropped(t *testing.T) {
	sut, orders, o := newConsumerFixture(t)
	ctx := context.Background()

	sut.applyEvent(ctx, []byte(`not json`))
	sut.applyEvent(ctx, paymentEvent("not-a-uuid", "PAID"))
	sut.applyEvent(ctx, paymentEvent(o.ID.String(), "GOLD"))

	got, err := orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, got.PaymentStatus)
}
