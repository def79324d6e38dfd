package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fjod/go_shop/internal/catalog"
	"github.com/fjod/go_shop/internal/domain"
)

type ProductHandler struct {
	products catalog.ProductStore
	timeout  time.Duration
}

func NewProductHandler(products catalog.ProductStore, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		products: products,
		timeout:  timeout,
	}
}

type CreateProductRequestDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Stock       int    `json:"stock"`
	IsActive    *bool  `json:"is_active"`
}

type SetStockRequestDTO struct {
	Stock int `json:"stock"`
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	products, err := h.products.ListProducts(ctx)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]ProductDTO, len(products))
	for i, p := range products {
		out[i] = toProductDTO(p)
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	p, err := h.products.GetProduct(ctx, productID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toProductDTO(p))
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	if _, ok := requireStaff(w, r); !ok {
		return
	}

	var req CreateProductRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		respondError(w, http.StatusBadRequest, "invalid_price", "price must be a non-negative decimal string")
		return
	}
	if req.Stock < 0 {
		respondError(w, http.StatusBadRequest, "invalid_stock", "stock cannot be negative")
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	product := &domain.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		Stock:       req.Stock,
		IsActive:    active,
	}
	if err := h.products.CreateProduct(ctx, product); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toProductDTO(product))
}

// SetStock overwrites the stock counter, for restocking and corrections.
// Reservation traffic goes through orders, never through this endpoint.
func (h *ProductHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	if _, ok := requireStaff(w, r); !ok {
		return
	}

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req SetStockRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Stock < 0 {
		respondError(w, http.StatusBadRequest, "invalid_stock", "stock cannot be negative")
		return
	}

	if err := h.products.SetStock(ctx, productID, req.Stock); err != nil {
		handleServiceError(w, err)
		return
	}

	p, err := h.products.GetProduct(ctx, productID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toProductDTO(p))
}
