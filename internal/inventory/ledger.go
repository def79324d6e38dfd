// Package inventory owns every mutation of the product stock counter. Both
// operations run against a caller-owned transaction: reservation commits or
// rolls back together with the order rows it accounts for.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

var ErrProductNotFound = errors.New("product not found")

// InsufficientStockError names the first product whose reservation failed so
// the cart UI can highlight it.
type InsufficientStockError struct {
	ProductID int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d", e.ProductID)
}

type Line struct {
	ProductID int64
	Quantity  int
}

type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Reserve locks each product row and decrements its stock. Rows are locked in
// ascending product id order so two concurrent multi-item reservations cannot
// deadlock. Any failure leaves the transaction poisoned for rollback; nothing
// is partially reserved once the caller rolls back.
func (l *Ledger) Reserve(ctx context.Context, tx *sql.Tx, lines []Line) error {
	for _, line := range sortedByProductID(lines) {
		var stock int
		err := tx.QueryRowContext(ctx,
			`SELECT stock FROM products WHERE id = $1 FOR UPDATE`,
			line.ProductID,
		).Scan(&stock)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProductNotFound
		}
		if err != nil {
			return fmt.Errorf("lock product %d: %w", line.ProductID, err)
		}

		if stock < line.Quantity {
			return &InsufficientStockError{ProductID: line.ProductID}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = stock - $2 WHERE id = $1`,
			line.ProductID, line.Quantity,
		); err != nil {
			return fmt.Errorf("decrement stock for product %d: %w", line.ProductID, err)
		}
	}
	return nil
}

// Release returns previously reserved stock. A product deleted since the
// order was placed has no stock row to return to; that release is logged and
// skipped rather than failing the cancellation.
func (l *Ledger) Release(ctx context.Context, tx *sql.Tx, lines []Line) error {
	for _, line := range sortedByProductID(lines) {
		result, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = stock + $2 WHERE id = $1`,
			line.ProductID, line.Quantity,
		)
		if err != nil {
			return fmt.Errorf("increment stock for product %d: %w", line.ProductID, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("release rows affected: %w", err)
		}
		if affected == 0 {
			slog.WarnContext(ctx, "releasing stock for missing product, skipping",
				"product_id", line.ProductID,
				"quantity", line.Quantity)
		}
	}
	return nil
}

func sortedByProductID(lines []Line) []Line {
	sorted := make([]Line, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductID < sorted[j].ProductID
	})
	return sorted
}
