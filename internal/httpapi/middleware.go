package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const (
	RoleCustomer = "CUSTOMER"
	RoleSeller   = "SELLER"
	RoleAdmin    = "ADMIN"
)

// Principal is the authenticated caller. ID keys the caller's cart and orders.
type Principal struct {
	ID   string
	Role string
}

func (p Principal) IsStaff() bool {
	return p.Role == RoleSeller || p.Role == RoleAdmin
}

type contextKey string

const (
	principalKey contextKey = "principal"
	requestIDKey contextKey = "request_id"
)

// AuthMiddleware reads the caller identity from X-User-ID / X-User-Role
// headers. A real deployment would sit behind a gateway that validates a JWT
// and injects these headers; the handlers only ever see a Principal.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		role := r.Header.Get("X-User-Role")
		if role == "" {
			role = RoleCustomer
		}

		ctx := context.WithValue(r.Context(), principalKey, Principal{ID: userID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("req-%d", time.Now().UnixNano())
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalKey).(Principal); ok {
		return p
	}
	return Principal{}
}

func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}
