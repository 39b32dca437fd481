// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gatehouse/gatehouse/internal/observability"
)

// NewRouter wires the public API under /api. metrics may be nil when the
// observability server is disabled.
func NewRouter(h *Handler, metrics *observability.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(requestMetrics(metrics))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/", h.handleHealth)
		r.Get("/health", h.handleHealth)
		r.Get("/ping", h.handlePing)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.handleSignup)
			r.Post("/signin", h.handleSignin)
			r.Post("/signout", h.handleSignout)
		})

		r.Route("/user", func(r chi.Router) {
			r.Get("/me", h.handleMe)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, CodeNotFound, "")
	})

	return r
}
