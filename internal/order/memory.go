package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_shop/internal/catalog"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/inventory"
	"github.com/google/uuid"
)

// MemoryRepository implements OrderRepository against a catalog.MemoryStore.
// It keeps the same all-or-nothing reservation semantics as the Postgres
// implementation and backs unit tests and infrastructure-free local runs.
type MemoryRepository struct {
	mu       sync.Mutex
	products *catalog.MemoryStore
	orders   map[uuid.UUID]*domain.Order
	events   []*OutboxEvent
	nextID   int64
}

func NewMemoryRepository(products *catalog.MemoryStore) *MemoryRepository {
	return &MemoryRepository{
		products: products,
		orders:   make(map[uuid.UUID]*domain.Order),
		nextID:   1,
	}
}

func (r *MemoryRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines := make([]inventory.Line, len(order.Items))
	for i, item := range order.Items {
		lines[i] = inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	if err := r.reserve(ctx, lines); err != nil {
		return err
	}

	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	r.orders[order.ID] = copyOrder(order)
	r.appendEvent(order.ID, EventOrderCreated, orderEventPayload(order))
	return nil
}

func (r *MemoryRepository) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(id)
}

func (r *MemoryRepository) ListOrders(_ context.Context, filter ListFilter) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var orders []*domain.Order
	for _, order := range r.orders {
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		if filter.UserID != "" && order.UserID != filter.UserID {
			continue
		}
		orders = append(orders, copyOrder(order))
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to domain.OrderStatus) (*domain.Order, error) {
	if to == domain.OrderStatusCancelled {
		return r.CancelOrder(ctx, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if !order.Status.CanTransitionTo(to) {
		return nil, &InvalidTransitionError{From: order.Status.String(), To: to.String()}
	}
	if to == domain.OrderStatusRefunded && order.PaymentStatus != domain.PaymentStatusPaid {
		return nil, &InvalidTransitionError{From: order.Status.String(), To: to.String()}
	}

	from := order.Status
	order.Status = to
	order.UpdatedAt = time.Now()
	r.appendEvent(id, EventStatusChanged, statusEventPayload(id, from.String(), to.String()))
	return copyOrder(order), nil
}

func (r *MemoryRepository) UpdatePayment(_ context.Context, id uuid.UUID, to domain.PaymentStatus) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if !order.PaymentStatus.CanTransitionTo(to) {
		return nil, &InvalidTransitionError{From: order.PaymentStatus.String(), To: to.String()}
	}

	from := order.PaymentStatus
	order.PaymentStatus = to
	order.UpdatedAt = time.Now()
	r.appendEvent(id, EventPaymentChanged, statusEventPayload(id, from.String(), to.String()))
	return copyOrder(order), nil
}

func (r *MemoryRepository) CancelOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if order.Status == domain.OrderStatusCancelled {
		return copyOrder(order), nil
	}
	if !order.Status.CanTransitionTo(domain.OrderStatusCancelled) {
		return nil, &InvalidTransitionError{From: order.Status.String(), To: domain.OrderStatusCancelled.String()}
	}

	r.release(ctx, order.Items)
	from := order.Status
	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = time.Now()
	r.appendEvent(id, EventOrderCancelled, statusEventPayload(id, from.String(), domain.OrderStatusCancelled.String()))
	return copyOrder(order), nil
}

func (r *MemoryRepository) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if order.Status != domain.OrderStatusPending && order.Status != domain.OrderStatusProcessing {
		return ErrOrderNotDeletable
	}

	r.release(ctx, order.Items)
	delete(r.orders, id)
	r.appendEvent(id, EventOrderDeleted, statusEventPayload(id, order.Status.String(), ""))
	return nil
}

func (r *MemoryRepository) UpdateDetails(_ context.Context, id uuid.UUID, patch DetailsPatch) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if patch.ShippingAddress != nil {
		order.ShippingAddress = *patch.ShippingAddress
	}
	if patch.BillingAddress != nil {
		order.BillingAddress = *patch.BillingAddress
	}
	if patch.TrackingNumber != nil {
		order.TrackingNumber = *patch.TrackingNumber
	}
	if patch.Notes != nil {
		order.Notes = *patch.Notes
	}
	order.UpdatedAt = time.Now()
	return copyOrder(order), nil
}

func (r *MemoryRepository) UnprocessedEvents(_ context.Context, limit int) ([]*OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var events []*OutboxEvent
	for _, e := range r.events {
		if len(events) == limit {
			break
		}
		events = append(events, e)
	}
	return events, nil
}

func (r *MemoryRepository) MarkEventProcessed(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.events {
		if e.ID == id {
			r.events = append(r.events[:i], r.events[i+1:]...)
			return nil
		}
	}
	return nil
}

// reserve applies the same validate-then-apply discipline as the SQL ledger:
// decrements in ascending product id order, and on the first failure every
// prior decrement is undone.
func (r *MemoryRepository) reserve(ctx context.Context, lines []inventory.Line) error {
	sorted := make([]inventory.Line, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	for i, line := range sorted {
		err := r.products.AdjustStock(ctx, line.ProductID, -line.Quantity)
		if err == nil {
			continue
		}
		for _, applied := range sorted[:i] {
			_ = r.products.AdjustStock(ctx, applied.ProductID, applied.Quantity)
		}
		if errors.Is(err, catalog.ErrStockConflict) {
			return &inventory.InsufficientStockError{ProductID: line.ProductID}
		}
		if errors.Is(err, catalog.ErrProductNotFound) {
			return inventory.ErrProductNotFound
		}
		return fmt.Errorf("reserve stock for product %d: %w", line.ProductID, err)
	}
	return nil
}

func (r *MemoryRepository) release(ctx context.Context, items []domain.OrderItem) {
	for _, item := range items {
		if err := r.products.AdjustStock(ctx, item.ProductID, item.Quantity); err != nil {
			slog.WarnContext(ctx, "releasing stock for missing product, skipping",
				"product_id", item.ProductID,
				"quantity", item.Quantity)
		}
	}
}

func (r *MemoryRepository) getLocked(id uuid.UUID) (*domain.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return copyOrder(order), nil
}

func (r *MemoryRepository) appendEvent(orderID uuid.UUID, eventType string, payload any) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return
	}
	r.events = append(r.events, &OutboxEvent{
		ID:          r.nextID,
		AggregateID: orderID.String(),
		EventType:   eventType,
		Payload:     payloadJSON,
		CreatedAt:   time.Now(),
	})
	r.nextID++
}

func copyOrder(order *domain.Order) *domain.Order {
	cp := *order
	cp.Items = make([]domain.OrderItem, len(order.Items))
	copy(cp.Items, order.Items)
	return &cp
}
