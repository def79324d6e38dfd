package cart

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_shop/internal/domain"
)

// MemoryRepository keeps carts in a map, for tests and single-process runs.
// It follows the same sentinel contract as the MongoDB repository.
type MemoryRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		carts: make(map[string]*domain.Cart),
	}
}

func (r *MemoryRepository) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.carts[userID]
	if !ok {
		return nil, ErrCartNotFound
	}
	return copyCart(c), nil
}

func (r *MemoryRepository) AddItem(_ context.Context, userID string, item domain.CartItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	item.AddedAt = now

	c, ok := r.carts[userID]
	if !ok {
		r.carts[userID] = &domain.Cart{
			UserID:    userID,
			Items:     []domain.CartItem{item},
			CreatedAt: now,
			UpdatedAt: now,
		}
		return nil
	}

	for i, existing := range c.Items {
		if existing.ProductID == item.ProductID {
			// The captured unit price stays as it was at first add.
			c.Items[i].Quantity = item.Quantity
			c.Items[i].AddedAt = now
			c.UpdatedAt = now
			return nil
		}
	}

	c.Items = append(c.Items, item)
	c.UpdatedAt = now
	return nil
}

func (r *MemoryRepository) UpdateItemQuantity(_ context.Context, userID string, productID int64, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[userID]
	if !ok {
		return ErrItemNotFound
	}
	for i, item := range c.Items {
		if item.ProductID == productID {
			c.Items[i].Quantity = quantity
			c.UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrItemNotFound
}

func (r *MemoryRepository) RemoveItem(_ context.Context, userID string, productID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[userID]
	if !ok {
		return ErrCartNotFound
	}
	for i, item := range c.Items {
		if item.ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			break
		}
	}
	c.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) DeleteCart(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.carts[userID]; !ok {
		return ErrCartNotFound
	}
	delete(r.carts, userID)
	return nil
}

func copyCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Items = make([]domain.CartItem, len(c.Items))
	copy(cp.Items, c.Items)
	return &cp
}
