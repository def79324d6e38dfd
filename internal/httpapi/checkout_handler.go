package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/go_shop/internal/checkout"
)

type CheckoutHandler struct {
	checkouts *checkout.Service
	timeout   time.Duration
}

func NewCheckoutHandler(checkouts *checkout.Service, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkouts: checkouts,
		timeout:   timeout,
	}
}

type CheckoutRequestDTO struct {
	ShippingAddress string `json:"shipping_address"`
	BillingAddress  string `json:"billing_address"`
	Notes           string `json:"notes"`
}

// Checkout converts the caller's cart into an order. On success the cart is
// emptied and the created order is returned.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	p, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	o, err := h.checkouts.Checkout(ctx, p.ID, checkout.ShippingDetails{
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
