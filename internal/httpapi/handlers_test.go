package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_shop/internal/cart"
	"github.com/fjod/go_shop/internal/catalog"
	"github.com/fjod/go_shop/internal/checkout"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/order"
	"github.com/fjod/go_shop/internal/pricing"
)

// testServer runs the full router over in-memory stores.
type testServer struct {
	handler  http.Handler
	products *catalog.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	products := catalog.NewMemoryStore()
	orderSvc := order.NewService(
		order.NewMemoryRepository(products),
		products,
		pricing.NewEngine(pricing.DefaultConfig()),
	)
	cartSvc := cart.NewService(cart.NewMemoryRepository(), nil, products)
	checkoutSvc := checkout.NewService(cartSvc, orderSvc)

	timeout := 5 * time.Second
	handler := NewRouter(
		NewCartHandler(cartSvc, timeout),
		NewCheckoutHandler(checkoutSvc, timeout),
		NewOrderHandler(orderSvc, checkoutSvc, timeout),
		NewProductHandler(products, timeout),
		timeout,
	)

	return &testServer{handler: handler, products: products}
}

func (s *testServer) seedProduct(t *testing.T, name, price string, stock int) int64 {
	t.Helper()
	p := &domain.Product{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
	require.NoError(t, s.products.CreateProduct(context.Background(), p))
	return p.ID
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

// do issues a request as the given user/role and decodes the JSON response
// into out (when out is non-nil).
func (s *testServer) do(t *testing.T, method, path, userID, role string, body, out interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}
