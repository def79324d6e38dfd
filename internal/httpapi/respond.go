package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_shop/internal/cart"
	"github.com/fjod/go_shop/internal/catalog"
	"github.com/fjod/go_shop/internal/checkout"
	"github.com/fjod/go_shop/internal/inventory"
	"github.com/fjod/go_shop/internal/order"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: "",
	})
}

// handleServiceError maps the typed errors of the service layer onto HTTP
// status codes. Anything unrecognized is a 500 with the detail kept out of
// the response body.
func handleServiceError(w http.ResponseWriter, err error) {
	var stockErr *inventory.InsufficientStockError
	if errors.As(err, &stockErr) {
		respondJSON(w, http.StatusConflict, struct {
			ErrorResponse
			ProductID int64 `json:"product_id"`
		}{
			ErrorResponse: ErrorResponse{Error: stockErr.Error(), Code: "insufficient_stock"},
			ProductID:     stockErr.ProductID,
		})
		return
	}

	var transitionErr *order.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		respondError(w, http.StatusConflict, "invalid_transition", transitionErr.Error())
		return
	}

	switch {
	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, cart.ErrCartNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, inventory.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())

	case errors.Is(err, order.ErrNoItems),
		errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrMissingShippingAddress):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())

	case errors.Is(err, order.ErrOrderNotDeletable),
		errors.Is(err, catalog.ErrStockConflict):
		respondError(w, http.StatusConflict, "conflict", err.Error())

	default:
		slog.Error("unhandled service error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func contextWithTimeout(r *http.Request, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), timeout)
}

func requireUser(w http.ResponseWriter, r *http.Request) (Principal, bool) {
	p := principalFromContext(r.Context())
	if p.ID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return Principal{}, false
	}
	return p, true
}

func requireStaff(w http.ResponseWriter, r *http.Request) (Principal, bool) {
	p, ok := requireUser(w, r)
	if !ok {
		return Principal{}, false
	}
	if !p.IsStaff() {
		respondError(w, http.StatusForbidden, "permission_denied",
			fmt.Sprintf("role %s cannot perform this operation", p.Role))
		return Principal{}, false
	}
	return p, true
}
