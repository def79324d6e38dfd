package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/inventory"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db     *sql.DB
	ledger *inventory.Ledger
}

func NewPostgresRepository(db *sql.DB, ledger *inventory.Ledger) *PostgresRepository {
	return &PostgresRepository{db: db, ledger: ledger}
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *PostgresRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create order tx: %w", err)
	}
	defer tx.Rollback()

	lines := make([]inventory.Line, len(order.Items))
	for i, item := range order.Items {
		lines[i] = inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	if err := r.ledger.Reserve(ctx, tx, lines); err != nil {
		return err
	}

	insertOrder := `INSERT INTO orders
	    (id, user_id, status, payment_status, subtotal, tax, shipping, total,
	     shipping_address, billing_address, tracking_number, notes, created_at, updated_at)
	    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
	    RETURNING created_at, updated_at`

	err = tx.QueryRowContext(ctx, insertOrder,
		order.ID,
		order.UserID,
		order.Status,
		order.PaymentStatus,
		order.Subtotal,
		order.Tax,
		order.Shipping,
		order.Total,
		order.ShippingAddress,
		order.BillingAddress,
		order.TrackingNumber,
		order.Notes,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	insertItem := `INSERT INTO order_items
	    (order_id, product_id, product_name, quantity, unit_price, subtotal)
	    VALUES ($1, $2, $3, $4, $5, $6)`
	for _, item := range order.Items {
		if _, err := tx.ExecContext(ctx, insertItem,
			order.ID,
			item.ProductID,
			item.ProductName,
			item.Quantity,
			item.UnitPrice,
			item.Subtotal,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := insertEvent(ctx, tx, order.ID, EventOrderCreated, orderEventPayload(order)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create order tx: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT id, user_id, status, payment_status, subtotal, tax, shipping, total,
	                 shipping_address, billing_address, tracking_number, notes, created_at, updated_at
	          FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	items, err := loadItems(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (r *PostgresRepository) ListOrders(ctx context.Context, filter ListFilter) ([]*domain.Order, error) {
	query := `SELECT id, user_id, status, payment_status, subtotal, tax, shipping, total,
	                 shipping_address, billing_address, tracking_number, notes, created_at, updated_at
	          FROM orders WHERE 1=1`
	args := []any{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	for _, order := range orders {
		items, err := loadItems(ctx, r.db, order.ID)
		if err != nil {
			return nil, err
		}
		order.Items = items
	}
	return orders, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to domain.OrderStatus) (*domain.Order, error) {
	if to == domain.OrderStatusCancelled {
		return r.CancelOrder(ctx, id)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin status tx: %w", err)
	}
	defer tx.Rollback()

	current, payment, err := lockStatus(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if !current.CanTransitionTo(to) {
		return nil, &InvalidTransitionError{From: current.String(), To: to.String()}
	}
	// The refund edge out of DELIVERED/CANCELLED only exists for paid orders.
	if to == domain.OrderStatusRefunded && payment != domain.PaymentStatusPaid {
		return nil, &InvalidTransitionError{From: current.String(), To: to.String()}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, to,
	); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	if err := insertEvent(ctx, tx, id, EventStatusChanged, statusEventPayload(id, current.String(), to.String())); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit status tx: %w", err)
	}
	return r.GetOrder(ctx, id)
}

func (r *PostgresRepository) UpdatePayment(ctx context.Context, id uuid.UUID, to domain.PaymentStatus) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin payment tx: %w", err)
	}
	defer tx.Rollback()

	_, current, err := lockStatus(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if !current.CanTransitionTo(to) {
		return nil, &InvalidTransitionError{From: current.String(), To: to.String()}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET payment_status = $2, updated_at = NOW() WHERE id = $1`,
		id, to,
	); err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}

	if err := insertEvent(ctx, tx, id, EventPaymentChanged, statusEventPayload(id, current.String(), to.String())); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit payment tx: %w", err)
	}
	return r.GetOrder(ctx, id)
}

func (r *PostgresRepository) CancelOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin cancel tx: %w", err)
	}
	defer tx.Rollback()

	current, _, err := lockStatus(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if current == domain.OrderStatusCancelled {
		// Already cancelled: idempotent no-op, stock was released then.
		return r.GetOrder(ctx, id)
	}
	if !current.CanTransitionTo(domain.OrderStatusCancelled) {
		return nil, &InvalidTransitionError{From: current.String(), To: domain.OrderStatusCancelled.String()}
	}

	items, err := loadItems(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := r.ledger.Release(ctx, tx, itemLines(items)); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, domain.OrderStatusCancelled,
	); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	if err := insertEvent(ctx, tx, id, EventOrderCancelled, statusEventPayload(id, current.String(), domain.OrderStatusCancelled.String())); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cancel tx: %w", err)
	}
	return r.GetOrder(ctx, id)
}

func (r *PostgresRepository) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback()

	current, _, err := lockStatus(ctx, tx, id)
	if err != nil {
		return err
	}

	if current != domain.OrderStatusPending && current != domain.OrderStatusProcessing {
		return ErrOrderNotDeletable
	}

	items, err := loadItems(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := r.ledger.Release(ctx, tx, itemLines(items)); err != nil {
		return err
	}

	// order_items rows go with the order via ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	if err := insertEvent(ctx, tx, id, EventOrderDeleted, statusEventPayload(id, current.String(), "")); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete tx: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateDetails(ctx context.Context, id uuid.UUID, patch DetailsPatch) (*domain.Order, error) {
	query := `UPDATE orders SET
	    shipping_address = COALESCE($2, shipping_address),
	    billing_address  = COALESCE($3, billing_address),
	    tracking_number  = COALESCE($4, tracking_number),
	    notes            = COALESCE($5, notes),
	    updated_at       = NOW()
	    WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		id,
		patch.ShippingAddress,
		patch.BillingAddress,
		patch.TrackingNumber,
		patch.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("update order details: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update details rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrOrderNotFound
	}
	return r.GetOrder(ctx, id)
}

// UnprocessedEvents returns outbox rows that have not been published yet,
// oldest first.
func (r *PostgresRepository) UnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM outbox_events WHERE processed_at IS NULL ORDER BY id LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		e := &OutboxEvent{}
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *PostgresRepository) MarkEventProcessed(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id,
	); err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	order := &domain.Order{}
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.Status,
		&order.PaymentStatus,
		&order.Subtotal,
		&order.Tax,
		&order.Shipping,
		&order.Total,
		&order.ShippingAddress,
		&order.BillingAddress,
		&order.TrackingNumber,
		&order.Notes,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return order, nil
}

func loadItems(ctx context.Context, q querier, orderID uuid.UUID) ([]domain.OrderItem, error) {
	query := `SELECT product_id, product_name, quantity, unit_price, subtotal
	          FROM order_items WHERE order_id = $1 ORDER BY id`

	rows, err := q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPrice, &item.Subtotal); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

// lockStatus reads the order's status and payment status under FOR UPDATE so
// the transition is validated against the current row, not a stale read.
func lockStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID) (domain.OrderStatus, domain.PaymentStatus, error) {
	var status domain.OrderStatus
	var payment domain.PaymentStatus
	err := tx.QueryRowContext(ctx,
		`SELECT status, payment_status FROM orders WHERE id = $1 FOR UPDATE`, id,
	).Scan(&status, &payment)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrOrderNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("lock order: %w", err)
	}
	return status, payment, nil
}

func itemLines(items []domain.OrderItem) []inventory.Line {
	lines := make([]inventory.Line, len(items))
	for i, item := range items {
		lines[i] = inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return lines
}

func insertEvent(ctx context.Context, tx *sql.Tx, orderID uuid.UUID, eventType string, payload any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
		 VALUES ($1, $2, $3, NOW())`,
		orderID.String(), eventType, payloadJSON,
	); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func orderEventPayload(order *domain.Order) map[string]any {
	items := make([]map[string]any, len(order.Items))
	for i, item := range order.Items {
		items[i] = map[string]any{
			"product_id": item.ProductID,
			"quantity":   item.Quantity,
			"unit_price": item.UnitPrice,
		}
	}
	return map[string]any{
		"order_id":       order.ID,
		"user_id":        order.UserID,
		"status":         order.Status,
		"payment_status": order.PaymentStatus,
		"total":          order.Total,
		"items":          items,
	}
}

func statusEventPayload(id uuid.UUID, from, to string) map[string]any {
	return map[string]any{
		"order_id": id,
		"from":     from,
		"to":       to,
	}
}
