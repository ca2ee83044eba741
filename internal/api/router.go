package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates the status router. Health checks are open; everything under
// /api requires "Authorization: Bearer <token>" when token is non-empty. events,
// when non-nil, is mounted at /api/events.
func NewRouter(h *Handler, events http.Handler, token string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", h.Live)
	r.Get("/health/ready", h.Ready)

	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(token != "", token))
		r.Get("/stats", h.Stats)
		r.Get("/runs/last", h.LastRun)
		if events != nil {
			r.Method(http.MethodGet, "/events", events)
		}
	})

	return r
}
