package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the full central-service surface. Everything under the
// authenticated group runs through the token middleware first; /api/login
// and /metrics are the only open routes.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/api/login", h.HandleLogin)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(h.auth.Middleware)
		r.Post("/api/data", h.HandleIngest)
		r.Get("/api/history", h.HandleHistory)
		r.Get("/api/alerts", h.HandleAlerts)
		r.Get("/api/predict/temperature", h.HandlePredict)
		r.Get("/api/status", h.HandleStatus)
		r.Get("/ws", h.HandleWebSocket)
	})

	return r
}
