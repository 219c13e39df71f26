// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tomtom215/murmur/internal/activity"
	"github.com/tomtom215/murmur/internal/auth"
	"github.com/tomtom215/murmur/internal/deadletter"
	"github.com/tomtom215/murmur/internal/fanout"
	"github.com/tomtom215/murmur/internal/metrics"
	"github.com/tomtom215/murmur/internal/models"
)

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

// EventDispatcher delivers an event locally and to the other instances.
type EventDispatcher interface {
	Dispatch(ctx context.Context, ev models.ChatEvent) error
}

// RecentActivity lists recently active users.
type RecentActivity interface {
	Recent(ctx context.Context, limit int64) ([]models.RecentActivity, error)
}

// ActivityStats exposes batcher counters.
type ActivityStats interface {
	Stats() activity.Stats
}

// Replayer resends an envelope on the fanout transport.
type Replayer interface {
	Send(ctx context.Context, env *fanout.Envelope) error
}

// Deps are the collaborators of the HTTP handlers. Gateway, Dispatcher and
// Auth are required; the rest may be nil, which disables their routes.
type Deps struct {
	Gateway     http.Handler
	Dispatcher  EventDispatcher
	Auth        auth.Authenticator
	Recent      RecentActivity
	Activity    ActivityStats
	DeadLetters deadletter.Store
	Replayer    Replayer
	Gatherer    prometheus.Gatherer
	Metrics     *metrics.Metrics

	// Authorize runs after bearer authentication on every /api/v1 route.
	// Nil allows every authenticated caller.
	Authorize func(http.Handler) http.Handler

	// Checks run on readiness, keyed by dependency name.
	Checks map[string]Checker

	Instance   string
	FanoutMode string
}

// Handler holds the HTTP handlers.
type Handler struct {
	deps Deps
}

// NewHandler creates the handlers.
func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps}
}
