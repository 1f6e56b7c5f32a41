package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// WebSocket session gateway. Authentication is resolved inside the
	// handler: device firmware connects bare, observers carry a ticket.
	r.Get("/ws/{client_id}", s.handleSession)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// WS ticket requires authentication: the caller must be
			// logged in before it can open an observer session.
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/garages", func(r chi.Router) {
				r.Get("/", s.handleListGarages)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetGarage)
					r.Get("/state", s.handleGetGarageState)
					r.Post("/command", s.handleGarageCommand)
					r.With(s.adminMiddleware).Post("/approve", s.handleApproveGarage)
					r.With(s.adminMiddleware).Patch("/", s.handleRenameGarage)
				})
			})

			// Access log (admin only)
			r.With(s.adminMiddleware).Get("/logs", s.handleListLogs)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   s.version,
		"connected": s.registry.Count(),
		"observers": s.broadcaster.ObserverCount(),
	})
}
