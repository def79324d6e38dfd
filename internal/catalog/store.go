package catalog

import (
	"context"
	"errors"

	"github.com/fjod/go_shop/internal/domain"
)

var (
	ErrProductNotFound = errors.New("product not found")

	// ErrStockConflict is returned by AdjustStock when the adjustment would
	// drive the stock counter below zero. Nothing is written in that case.
	ErrStockConflict = errors.New("stock adjustment would go negative")
)

// ProductStore is the catalog contract this core consumes. GetProduct returns
// inactive products too; callers that only sell active products check IsActive
// themselves.
type ProductStore interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
	SetStock(ctx context.Context, id int64, stock int) error

	// AdjustStock atomically applies delta to the product's stock counter,
	// failing without a partial write if the result would be negative.
	AdjustStock(ctx context.Context, id int64, delta int) error
}
