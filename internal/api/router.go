// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/murmur/internal/auth"
	"github.com/tomtom215/murmur/internal/middleware"
)

// NewRouter builds the chi route tree.
func NewRouter(h *Handler, cfg MiddlewareConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware(cfg))
	r.Use(middleware.PrometheusMetrics(h.deps.Metrics))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "route not found", nil)
	})

	// The gateway authenticates after the upgrade itself.
	r.Get("/ws", h.deps.Gateway.ServeHTTP)

	if h.deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimitMiddleware(cfg))
		r.Use(auth.RequireBearer(h.deps.Auth))
		if h.deps.Authorize != nil {
			r.Use(h.deps.Authorize)
		}

		r.Post("/events", h.PostEvent)

		if h.deps.Recent != nil {
			r.Get("/activity/recent", h.RecentActivity)
		}
		if h.deps.Activity != nil {
			r.Get("/activity/stats", h.ActivityStats)
		}

		if h.deps.DeadLetters != nil {
			r.Get("/deadletters", h.ListDeadLetters)
			r.Delete("/deadletters/{id}", h.DeleteDeadLetter)
			if h.deps.Replayer != nil {
				r.Post("/deadletters/{id}/replay", h.ReplayDeadLetter)
			}
		}
	})

	return r
}
