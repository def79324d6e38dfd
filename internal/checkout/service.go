// Package checkout is the façade composed from the cart, pricing, inventory
// and order components. It contains no persistence of its own.
package checkout

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fjod/go_shop/internal/cart"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/order"
	"github.com/google/uuid"
)

var (
	ErrEmptyCart              = errors.New("cart is empty, nothing to checkout")
	ErrMissingShippingAddress = errors.New("shipping address is required")
)

type ShippingDetails struct {
	ShippingAddress string
	BillingAddress  string
	Notes           string
}

type Service struct {
	carts  *cart.Service
	orders *order.Service
}

func NewService(carts *cart.Service, orders *order.Service) *Service {
	return &Service{
		carts:  carts,
		orders: orders,
	}
}

// Checkout turns the user's cart into an order. Lines are re-priced at the
// current catalog price, never the cart's captured snapshot, so a stale cart
// cannot lock in an old price. If order creation fails for any reason the
// cart is left untouched so the user can adjust quantities and retry.
func (s *Service) Checkout(ctx context.Context, userID string, details ShippingDetails) (*domain.Order, error) {
	if details.ShippingAddress == "" {
		return nil, ErrMissingShippingAddress
	}

	c, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]order.CreateItem, len(c.Items))
	for i, item := range c.Items {
		items[i] = order.CreateItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}

	created, err := s.orders.Create(ctx, order.CreateOrderInput{
		UserID:          userID,
		Items:           items,
		ShippingAddress: details.ShippingAddress,
		BillingAddress:  details.BillingAddress,
		Notes:           details.Notes,
	})
	if err != nil {
		return nil, err
	}

	// The order is committed; a failed clear must not fail the checkout.
	// Clear is idempotent, so a retry or the cart TTL cleans up.
	if errClear := s.carts.Clear(ctx, userID); errClear != nil {
		slog.WarnContext(ctx, "failed to clear cart after checkout",
			"user_id", userID,
			"order_id", created.ID,
			"error", errClear)
	}

	return created, nil
}

// AdminCreate creates an order from an explicit item list, bypassing the
// cart. Used by admin and seed tooling.
func (s *Service) AdminCreate(ctx context.Context, in order.CreateOrderInput) (*domain.Order, error) {
	return s.orders.Create(ctx, in)
}

// UpdateOrder applies field-level updates (tracking number, notes,
// addresses) without touching status, payment or items.
func (s *Service) UpdateOrder(ctx context.Context, id uuid.UUID, patch order.DetailsPatch) (*domain.Order, error) {
	return s.orders.UpdateDetails(ctx, id, patch)
}
