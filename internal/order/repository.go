package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderNotDeletable guards hard deletion: once an order has shipped
	// its history must survive.
	ErrOrderNotDeletable = errors.New("order already shipped, cannot be deleted")
)

// InvalidTransitionError reports a status or payment change outside the
// adjacency rules. It is a client error and never retried.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

type ListFilter struct {
	Status *domain.OrderStatus
	UserID string
}

// DetailsPatch updates free-text order fields. Nil means "leave unchanged";
// status, payment and items are never touched through this path.
type DetailsPatch struct {
	ShippingAddress *string
	BillingAddress  *string
	TrackingNumber  *string
	Notes           *string
}

// OrderRepository owns the Order/OrderItem rows. Every method that moves
// status validates against the currently persisted row, not a value read
// earlier in the request. UpdateStatus does not accept CANCELLED: a
// cancellation must release reserved stock atomically with the transition,
// which is what CancelOrder does.
type OrderRepository interface {
	// CreateOrder reserves stock for every item and persists the order and
	// its items in one atomic step. On any failure nothing is written and no
	// stock is decremented.
	CreateOrder(ctx context.Context, order *domain.Order) error

	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]*domain.Order, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, to domain.OrderStatus) (*domain.Order, error)
	UpdatePayment(ctx context.Context, id uuid.UUID, to domain.PaymentStatus) (*domain.Order, error)

	// CancelOrder transitions to CANCELLED and releases the order's stock in
	// the same transaction. Cancelling an already-cancelled order is a no-op
	// success.
	CancelOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)

	// DeleteOrder hard-deletes a PENDING or PROCESSING order, releasing its
	// stock in the same transaction.
	DeleteOrder(ctx context.Context, id uuid.UUID) error

	UpdateDetails(ctx context.Context, id uuid.UUID, patch DetailsPatch) (*domain.Order, error)
}

// OutboxEvent is an order lifecycle event written in the same transaction as
// the order mutation it describes and published asynchronously.
type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

const (
	EventOrderCreated   = "order_created"
	EventOrderCancelled = "order_cancelled"
	EventOrderDeleted   = "order_deleted"
	EventStatusChanged  = "order_status_changed"
	EventPaymentChanged = "order_payment_changed"
)
