// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/tomtom215/murmur/internal/models"
)

const checkTimeout = 2 * time.Second

// HealthLive reports that the process is serving HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	respondData(w, http.StatusOK, models.HealthStatus{
		Status:     "alive",
		Instance:   h.deps.Instance,
		FanoutMode: h.deps.FanoutMode,
	}, start)
}

// HealthReady runs every dependency check. Any failure makes the instance
// not ready.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	names := make([]string, 0, len(h.deps.Checks))
	for name := range h.deps.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make(map[string]string, len(names))
	ready := true
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := h.deps.Checks[name](ctx)
		cancel()
		if err != nil {
			ready = false
			deps[name] = "down: " + sanitizeLogValue(err.Error())
			continue
		}
		deps[name] = "up"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	respondData(w, code, models.HealthStatus{
		Status:       status,
		Instance:     h.deps.Instance,
		FanoutMode:   h.deps.FanoutMode,
		Dependencies: deps,
	}, start)
}
