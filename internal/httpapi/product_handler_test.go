package httpapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductList_Public(t *testing.T) {
	srv := newTestServer(t)
	srv.seedProduct(t, "Widget", "19.99", 10)
	srv.seedProduct(t, "Gadget", "2.50", 5)

	var got []ProductDTO
	rec := srv.do(t, http.MethodGet, "/api/v1/products", "", "", nil, &got)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, got, 2)
	assert.Equal(t, "Widget", got[0].Name)
	assert.Equal(t, "19.99", got[0].Price)
}

func TestProductGet_NotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/v1/products/42", "", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProductCreate_StaffOnly(t *testing.T) {
	srv := newTestServer(t)

	body := CreateProductRequestDTO{Name: "Widget", Price: "19.99", Stock: 10}

	rec := srv.do(t, http.MethodPost, "/api/v1/products", "alice", "", body, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var got ProductDTO
	rec = srv.do(t, http.MethodPost, "/api/v1/products", "carol", RoleSeller, body, &got)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotZero(t, got.ID)
	assert.Equal(t, "19.99", got.Price)
	assert.True(t, got.IsActive)
}

func TestProductCreate_Validation(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/products", "carol", RoleAdmin,
		CreateProductRequestDTO{Name: "", Price: "1.00"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/v1/products", "carol", RoleAdmin,
		CreateProductRequestDTO{Name: "Widget", Price: "not-a-number"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/v1/products", "carol", RoleAdmin,
		CreateProductRequestDTO{Name: "Widget", Price: "-1.00"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductSetStock(t *testing.T) {
	srv := newTestServer(t)
	productID := srv.seedProduct(t, "Widget", "19.99", 10)

	rec := srv.do(t, http.MethodPut, "/api/v1/products/"+itoa(productID)+"/stock", "alice", "",
		SetStockRequestDTO{Stock: 50}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var got ProductDTO
	rec = srv.do(t, http.MethodPut, "/api/v1/products/"+itoa(productID)+"/stock", "carol", RoleSeller,
		SetStockRequestDTO{Stock: 50}, &got)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, got.Stock)
}
