// Package api serves sessions over a read-only JSON HTTP interface.
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates the Chi router with all routes and middleware.
func NewRouter(svc *Service, defaultSize int, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	h := NewHandler(svc, defaultSize)

	r.Get("/health", h.Health)
	r.Route("/lists", func(r chi.Router) {
		r.Get("/", h.Lists)
		r.Get("/{list}/patches", h.Patches)
		r.Get("/{list}/patch", h.Patch)
	})

	return r
}
