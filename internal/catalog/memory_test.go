package catalog

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_shop/internal/domain"
)

func seed(t *testing.T, s *MemoryStore, stock int) int64 {
	t.Helper()
	p := &domain.Product{
		Name:     "Widget",
		Price:    decimal.RequireFromString("10.00"),
		Stock:    stock,
		IsActive: true,
	}
	require.NoError(t, s.CreateProduct(context.Background(), p))
	return p.ID
}

func TestAdjustStock_NeverGoesNegative(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id := seed(t, s, 3)

	require.NoError(t, s.AdjustStock(ctx, id, -3))
	err := s.AdjustStock(ctx, id, -1)
	require.ErrorIs(t, err, ErrStockConflict)

	p, err := s.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
}

func TestAdjustStock_UnknownProduct(t *testing.T) {
	s := NewMemoryStore()

	err := s.AdjustStock(context.Background(), 42, -1)
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestAdjustStock_ConcurrentDecrements(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id := seed(t, s, 100)

	var wg sync.WaitGroup
	errs := make(chan error, 150)
	for i := 0; i < 150; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.AdjustStock(ctx, id, -1)
		}()
	}
	wg.Wait()
	close(errs)

	var conflicts int
	for err := range errs {
		if err != nil {
			require.ErrorIs(t, err, ErrStockConflict)
			conflicts++
		}
	}
	assert.Equal(t, 50, conflicts)

	p, err := s.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
}

func TestGetProduct_ReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id := seed(t, s, 5)

	p, err := s.GetProduct(ctx, id)
	require.NoError(t, err)
	p.Stock = 999

	again, err := s.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 5, again.Stock)
}

func TestListProducts_OrderedByID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := seed(t, s, 1)
	second := seed(t, s, 2)

	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, first, products[0].ID)
	assert.Equal(t, second, products[1].ID)
}
