package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires all handlers under /api/v1 with the shared middleware
// stack. Product reads are public; everything else requires a caller
// identity.
func NewRouter(
	carts *CartHandler,
	checkouts *CheckoutHandler,
	orders *OrderHandler,
	products *ProductHandler,
	requestTimeout time.Duration,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(AuthMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", products.List)
			r.Post("/", products.Create)
			r.Get("/{product_id}", products.Get)
			r.Put("/{product_id}/stock", products.SetStock)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", carts.GetCart)
			r.Delete("/", carts.ClearCart)
			r.Post("/items", carts.AddItem)
			r.Put("/items/{product_id}", carts.UpdateQuantity)
			r.Delete("/items/{product_id}", carts.RemoveItem)
		})

		r.Post("/checkout", checkouts.Checkout)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orders.List)
			r.Post("/", orders.Create)
			r.Route("/{order_id}", func(r chi.Router) {
				r.Get("/", orders.Get)
				r.Patch("/", orders.Update)
				r.Patch("/status", orders.UpdateStatus)
				r.Patch("/payment", orders.UpdatePayment)
				r.Post("/cancel", orders.Cancel)
				r.Delete("/", orders.Delete)
			})
		})
	})

	return r
}
