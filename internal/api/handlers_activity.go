// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package api

import (
	"net/http"
	"time"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 1000
)

// RecentActivity lists the most recently active users, newest first.
func (h *Handler) RecentActivity(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	limit, ok := intParam(r, "limit", defaultRecentLimit, maxRecentLimit)
	if !ok {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a positive integer", nil)
		return
	}

	users, err := h.deps.Recent.Recent(r.Context(), int64(limit))
	if err != nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "recent activity unavailable", err)
		return
	}
	respondData(w, http.StatusOK, users, start)
}

// ActivityStats returns the batcher counters.
func (h *Handler) ActivityStats(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, h.deps.Activity.Stats(), time.Now())
}
