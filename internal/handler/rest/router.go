package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/webitel/klaviyo-delivery-service/internal/service"
)

const requestIDHeader = "X-Request-Id"

// NewRouter mounts the delivery endpoints.
func NewRouter(h *DeliveryHandler) chi.Router {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Post("/identify", h.Identify)
		r.Post("/track", h.Track)
	})

	return r
}

// requestID keeps a caller supplied id or mints a UUID, and exposes it
// through chi's request id key and as the forwarding trace id.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		ctx = service.WithTraceID(ctx, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
