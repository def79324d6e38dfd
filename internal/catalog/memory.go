package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_shop/internal/domain"
)

// MemoryStore implements ProductStore with in-memory storage. It backs unit
// tests and infrastructure-free local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[int64]*domain.Product
	nextID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[int64]*domain.Product),
		nextID:   1,
	}
}

func (s *MemoryStore) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListProducts(_ context.Context) ([]*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]*domain.Product, 0, len(s.products))
	for id := int64(1); id < s.nextID; id++ {
		if p, ok := s.products[id]; ok {
			cp := *p
			products = append(products, &cp)
		}
	}
	return products, nil
}

func (s *MemoryStore) CreateProduct(_ context.Context, p *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.nextID
	s.nextID++
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *MemoryStore) SetStock(_ context.Context, id int64, stock int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return ErrProductNotFound
	}
	p.Stock = stock
	return nil
}

func (s *MemoryStore) AdjustStock(_ context.Context, id int64, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return ErrProductNotFound
	}
	if p.Stock+delta < 0 {
		return ErrStockConflict
	}
	p.Stock += delta
	return nil
}
