package cart

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/go_shop/internal/catalog"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Service owns per-user cart contents. Carts never reserve inventory: stock
// is only touched at checkout.
type Service struct {
	repo     CartRepository
	cache    CartCache
	products catalog.ProductStore
	sfg      singleflight.Group // Prevents cache stampede
}

// NewService accepts a nil cache; the service then reads through to the
// repository on every call.
func NewService(repo CartRepository, cache CartCache, products catalog.ProductStore) *Service {
	if cache == nil {
		cache = nopCache{}
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		products: products,
	}
}

func (s *Service) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {

		cached, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cached, nil // cart is in cache
		}

		if !errors.Is(err, ErrCacheMiss) {
			slog.WarnContext(ctx, "cache get error", "error", err) // log cache error but continue
		}

		c, errGet := s.repo.GetCart(ctx, userID)
		if errGet != nil && errors.Is(errGet, ErrCartNotFound) { // no cart yet, return an empty one
			return &domain.Cart{
				UserID:    userID,
				Items:     nil,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		go func() {
			errSet := s.cache.Set(context.Background(), userID, c)
			if errSet != nil {
				slog.Warn("cache set error", "error", errSet)
			}
		}()

		return c, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddItem validates the product against the catalog and adds it to the cart,
// capturing the current unit price. Adding a product already in the cart
// increments its quantity and keeps the originally captured price.
func (s *Service) AddItem(ctx context.Context, userID string, productID int64, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, catalog.ErrProductNotFound
	}

	item := domain.CartItem{
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: p.Price,
	}

	existing, err := s.repo.GetCart(ctx, userID)
	if err != nil && !errors.Is(err, ErrCartNotFound) {
		return nil, err
	}
	if existing != nil {
		for _, existingItem := range existing.Items {
			if existingItem.ProductID == productID {
				item.Quantity = existingItem.Quantity + quantity
				item.UnitPrice = existingItem.UnitPrice
				break
			}
		}
	}

	if errAdd := s.repo.AddItem(ctx, userID, item); errAdd != nil {
		slog.WarnContext(ctx, "repo add item error", "error", errAdd)
		return nil, errAdd
	}

	s.invalidateCache(userID)
	return s.GetCart(ctx, userID)
}

// SetQuantity replaces an item's quantity in place. Zero is not a removal
// here; callers use RemoveItem for that.
func (s *Service) SetQuantity(ctx context.Context, userID string, productID int64, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	if errUpdate := s.repo.UpdateItemQuantity(ctx, userID, productID, quantity); errUpdate != nil {
		return nil, errUpdate
	}

	s.invalidateCache(userID)
	return s.GetCart(ctx, userID)
}

// RemoveItem is an idempotent delete: removing an item that is not in the
// cart (or from a cart that does not exist) is a success, so checkout retries
// cannot fail on an already-emptied cart.
func (s *Service) RemoveItem(ctx context.Context, userID string, productID int64) error {
	errRemove := s.repo.RemoveItem(ctx, userID, productID)
	if errRemove != nil && !errors.Is(errRemove, ErrCartNotFound) && !errors.Is(errRemove, ErrItemNotFound) {
		slog.WarnContext(ctx, "repo remove item error", "error", errRemove)
		return errRemove
	}

	s.invalidateCache(userID)
	return nil
}

// Clear deletes the whole cart; clearing an absent cart is a no-op success.
func (s *Service) Clear(ctx context.Context, userID string) error {
	errDelete := s.repo.DeleteCart(ctx, userID)
	if errDelete != nil && !errors.Is(errDelete, ErrCartNotFound) {
		slog.WarnContext(ctx, "repo delete cart error", "error", errDelete)
		return errDelete
	}

	s.invalidateCache(userID)
	return nil
}

// ComputeTotal sums captured price times quantity over the user's cart.
func (s *Service) ComputeTotal(ctx context.Context, userID string) (decimal.Decimal, error) {
	c, err := s.GetCart(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return c.Total(), nil
}

func (s *Service) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		slog.Warn("cache invalidate error", "error", err)
	}
}
