package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fjod/go_shop/internal/checkout"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/order"
)

type OrderHandler struct {
	orders    *order.Service
	checkouts *checkout.Service
	timeout   time.Duration
}

func NewOrderHandler(orders *order.Service, checkouts *checkout.Service, timeout time.Duration) *OrderHandler {
	return &OrderHandler{
		orders:    orders,
		checkouts: checkouts,
		timeout:   timeout,
	}
}

type CreateOrderItemDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type CreateOrderRequestDTO struct {
	UserID          string               `json:"user_id"`
	Items           []CreateOrderItemDTO `json:"items"`
	ShippingAddress string               `json:"shipping_address"`
	BillingAddress  string               `json:"billing_address"`
	Notes           string               `json:"notes"`
}

type UpdateOrderRequestDTO struct {
	ShippingAddress *string `json:"shipping_address"`
	BillingAddress  *string `json:"billing_address"`
	TrackingNumber  *string `json:"tracking_number"`
	Notes           *string `json:"notes"`
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
}

type UpdatePaymentRequestDTO struct {
	PaymentStatus string `json:"payment_status"`
}

// List returns the caller's orders. Staff may list any user's orders and
// filter by status; customers always get their own regardless of the query.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	p, ok := requireUser(w, r)
	if !ok {
		return
	}

	var filter order.ListFilter
	if p.IsStaff() {
		filter.UserID = r.URL.Query().Get("user_id")
	} else {
		filter.UserID = p.ID
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.OrderStatus(raw)
		if !status.Valid() {
			respondError(w, http.StatusBadRequest, "invalid_status", "unknown order status: "+raw)
			return
		}
		filter.Status = &status
	}

	orders, err := h.orders.List(ctx, filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toOrderDTOs(orders))
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	p, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	o, err := h.orders.Get(ctx, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// Hide other users' orders from customers rather than confirm they exist.
	if !p.IsStaff() && o.UserID != p.ID {
		respondError(w, http.StatusNotFound, "not_found", order.ErrOrderNotFound.Error())
		return
	}

	respondJSON(w, http.StatusOK, toOrderDTO(o))
}

// Create places an order with explicit items, bypassing the cart. Staff only;
// customers go through checkout.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	if _, ok := requireStaff(w, r); !ok {
		return
	}

	var req CreateOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	items := make([]order.CreateItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = order.CreateItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	o, err := h.checkouts.AdminCreate(ctx, order.CreateOrderInput{
		UserID:          req.UserID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Notes:           req.Notes,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toOrderDTO(o))
}

func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	if _, ok := requireStaff(w, r); !ok {
		return
	}

	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	o, err := h.checkouts.UpdateOrder(ctx, id, order.DetailsPatch{
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		TrackingNumber:  req.TrackingNumber,
		Notes:           req.Notes,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toOrderDTO(o))
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	if _, ok := requireStaff(w, r); !ok {
		return
	}

	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	o, err := h.orders.TransitionStatus(ctx, id, domain.OrderStatus(req.Status))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toOrderDTO(o))
}

func (h *OrderHandler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	if _, ok := requireStaff(w, r); !ok {
		return
	}

	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req UpdatePaymentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	o, err := h.orders.TransitionPayment(ctx, id, domain.PaymentStatus(req.PaymentStatus))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toOrderDTO(o))
}

// Cancel moves the order to CANCELLED and puts the reserved stock back.
// Customers may cancel their own orders; staff may cancel any.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	p, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	if !p.IsStaff() {
		existing, err := h.orders.Get(ctx, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if existing.UserID != p.ID {
			respondError(w, http.StatusNotFound, "not_found", order.ErrOrderNotFound.Error())
			return
		}
	}

	o, err := h.orders.Cancel(ctx, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toOrderDTO(o))
}

// Delete removes the order entirely. Only admins, and only before shipment.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	p, ok := requireUser(w, r)
	if !ok {
		return
	}
	if p.Role != RoleAdmin {
		respondError(w, http.StatusForbidden, "permission_denied", "only admins can delete orders")
		return
	}

	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	if err := h.orders.Delete(ctx, id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "order_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
