package httpapi

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartAddItem_Success(t *testing.T) {
	srv := newTestServer(t)
	productID := srv.seedProduct(t, "Widget", "19.99", 10)

	var got CartDTO
	rec := srv.do(t, http.MethodPost, "/api/v1/cart/items", "alice", "",
		AddItemRequestDTO{ProductID: productID, Quantity: 2}, &got)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, got.Items, 1)
	assert.Equal(t, productID, got.Items[0].ProductID)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.Equal(t, "19.99", got.Items[0].UnitPrice)
	assert.Equal(t, "39.98", got.Total)
}

func TestCartAddItem_RequiresAuth(t *testing.T) {
	srv := newTestServer(t)
	productID := srv.seedProduct(t, "Widget", "19.99", 10)

	rec := srv.do(t, http.MethodPost, "/api/v1/cart/items", "", "",
		AddItemRequestDTO{ProductID: productID, Quantity: 2}, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCartAddItem_ValidatesBody(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/cart/items", "alice", "",
		AddItemRequestDTO{ProductID: -1, Quantity: 2}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/v1/cart/items", "alice", "",
		AddItemRequestDTO{ProductID: 1, Quantity: 100}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartAddItem_UnknownProductIs404(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/cart/items", "alice", "",
		AddItemRequestDTO{ProductID: 999, Quantity: 1}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartGet_EmptyForNewUser(t *testing.T) {
	srv := newTestServer(t)

	var got CartDTO
	rec := srv.do(t, http.MethodGet, "/api/v1/cart", "alice", "", nil, &got)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", got.UserID)
	assert.Empty(t, got.Items)
	assert.Equal(t, "0.00", got.Total)
}

func TestCartRemoveItem_IsIdempotent(t *testing.T) {
	srv := newTestServer(t)
	productID := srv.seedProduct(t, "Widget", "19.99", 10)

	srv.do(t, http.MethodPost, "/api/v1/cart/items", "alice", "",
		AddItemRequestDTO{ProductID: productID, Quantity: 1}, nil)

	path := fmt.Sprintf("/api/v1/cart/items/%d", productID)
	rec := srv.do(t, http.MethodDelete, path, "alice", "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Removing again still succeeds and returns the (empty) cart
	var got CartDTO
	rec = srv.do(t, http.MethodDelete, path, "alice", "", nil, &got)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, got.Items)
}

func TestCartUpdateQuantity(t *testing.T) {
	srv := newTestServer(t)
	productID := srv.seedProduct(t, "Widget", "19.99", 10)

	srv.do(t, http.MethodPost, "/api/v1/cart/items", "alice", "",
		AddItemRequestDTO{ProductID: productID, Quantity: 1}, nil)

	var got CartDTO
	rec := srv.do(t, http.MethodPut, fmt.Sprintf("/api/v1/cart/items/%d", productID), "alice", "",
		UpdateQuantityRequestDTO{Quantity: 5}, &got)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 5, got.Items[0].Quantity)
}

func TestCartClear(t *testing.T) {
	srv := newTestServer(t)
	productID := srv.seedProduct(t, "Widget", "19.99", 10)

	srv.do(t, http.MethodPost, "/api/v1/cart/items", "alice", "",
		AddItemRequestDTO{ProductID: productID, Quantity: 1}, nil)

	rec := srv.do(t, http.MethodDelete, "/api/v1/cart", "alice", "", nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	var got CartDTO
	srv.do(t, http.MethodGet, "/api/v1/cart", "alice", "", nil, &got)
	assert.Empty(t, got.Items)
}

func TestCarts_AreScopedPerUser(t *testing.T) {
	srv := newTestServer(t)
	productID := srv.seedProduct(t, "Widget", "19.99", 10)

	srv.do(t, http.MethodPost, "/api/v1/cart/items", "alice", "",
		AddItemRequestDTO{ProductID: productID, Quantity: 1}, nil)

	var got CartDTO
	srv.do(t, http.MethodGet, "/api/v1/cart", "bob", "", nil, &got)
	assert.Empty(t, got.Items)
}
