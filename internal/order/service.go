package order

import (
	"context"
	"errors"

	"github.com/fjod/go_shop/internal/catalog"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/pricing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNoItems         = errors.New("order must contain at least one item")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

type CreateItem struct {
	ProductID int64
	Quantity  int
}

type CreateOrderInput struct {
	UserID          string
	Items           []CreateItem
	ShippingAddress string
	BillingAddress  string
	Notes           string
}

// Service owns order lifecycle: creation (pricing + reservation + persist),
// status and payment transitions, cancellation and hard deletion.
type Service struct {
	repo     OrderRepository
	products catalog.ProductStore
	pricer   *pricing.Engine
}

func NewService(repo OrderRepository, products catalog.ProductStore, pricer *pricing.Engine) *Service {
	return &Service{
		repo:     repo,
		products: products,
		pricer:   pricer,
	}
}

// Create prices the items at the product's current catalog price and persists
// the order with its stock reservation in one atomic step. The order starts
// in PENDING/PENDING.
func (s *Service) Create(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if len(in.Items) == 0 {
		return nil, ErrNoItems
	}

	items := make([]domain.OrderItem, len(in.Items))
	lines := make([]pricing.Line, len(in.Items))
	for i, item := range in.Items {
		if item.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}

		p, err := s.products.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if !p.IsActive {
			return nil, catalog.ErrProductNotFound
		}

		qty := decimal.NewFromInt(int64(item.Quantity))
		items[i] = domain.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    item.Quantity,
			UnitPrice:   p.Price,
			Subtotal:    p.Price.Mul(qty),
		}
		lines[i] = pricing.Line{UnitPrice: p.Price, Quantity: item.Quantity}
	}

	quote := s.pricer.Price(lines)

	order := &domain.Order{
		ID:              uuid.New(),
		UserID:          in.UserID,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		Subtotal:        quote.Subtotal,
		Tax:             quote.Tax,
		Shipping:        quote.Shipping,
		Total:           quote.Total,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		Notes:           in.Notes,
		Items:           items,
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*domain.Order, error) {
	return s.repo.ListOrders(ctx, filter)
}

// TransitionStatus applies a fulfillment transition. A transition to
// CANCELLED goes through Cancel so reserved stock is released with it.
func (s *Service) TransitionStatus(ctx context.Context, id uuid.UUID, to domain.OrderStatus) (*domain.Order, error) {
	if !to.Valid() {
		return nil, &InvalidTransitionError{From: "", To: to.String()}
	}
	if to == domain.OrderStatusCancelled {
		return s.Cancel(ctx, id)
	}
	return s.repo.UpdateStatus(ctx, id, to)
}

func (s *Service) TransitionPayment(ctx context.Context, id uuid.UUID, to domain.PaymentStatus) (*domain.Order, error) {
	if !to.Valid() {
		return nil, &InvalidTransitionError{From: "", To: to.String()}
	}
	return s.repo.UpdatePayment(ctx, id, to)
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.repo.CancelOrder(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteOrder(ctx, id)
}

func (s *Service) UpdateDetails(ctx context.Context, id uuid.UUID, patch DetailsPatch) (*domain.Order, error) {
	return s.repo.UpdateDetails(ctx, id, patch)
}
