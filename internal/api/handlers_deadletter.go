// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/murmur/internal/deadletter"
	"github.com/tomtom215/murmur/internal/fanout"
)

const (
	defaultDeadLetterLimit = 100
	maxDeadLetterLimit     = 1000
)

// DeadLetterList is the body of GET /api/v1/deadletters.
type DeadLetterList struct {
	Entries []*deadletter.Entry `json:"entries"`
	Total   int64               `json:"total"`
	Limit   int                 `json:"limit"`
}

// ListDeadLetters returns stored failed envelopes, oldest first.
func (h *Handler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	limit, ok := intParam(r, "limit", defaultDeadLetterLimit, maxDeadLetterLimit)
	if !ok {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a positive integer", nil)
		return
	}

	entries, err := h.deps.DeadLetters.List(r.Context(), limit)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to list dead letters", err)
		return
	}
	total, err := h.deps.DeadLetters.Count(r.Context())
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to count dead letters", err)
		return
	}
	if entries == nil {
		entries = []*deadletter.Entry{}
	}
	respondData(w, http.StatusOK, DeadLetterList{Entries: entries, Total: total, Limit: limit}, start)
}

// DeleteDeadLetter discards one entry.
func (h *Handler) DeleteDeadLetter(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")
	if err := h.deps.DeadLetters.Delete(r.Context(), id); err != nil {
		h.deadLetterError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"deleted": id}, start)
}

// ReplayDeadLetter resends one entry and removes it once the transport
// accepts it.
func (h *Handler) ReplayDeadLetter(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")

	entry, err := h.deps.DeadLetters.Get(r.Context(), id)
	if err != nil {
		h.deadLetterError(w, r, err)
		return
	}
	env, err := fanout.Decode(entry.Envelope)
	if err != nil {
		respondError(w, r, http.StatusUnprocessableEntity, ErrCodeUnprocessable, "stored envelope is malformed", err)
		return
	}
	if entry.PartitionKey != "" {
		env.SetPartitionKey(entry.PartitionKey)
	}
	if err := h.deps.Replayer.Send(r.Context(), env); err != nil {
		respondError(w, r, http.StatusBadGateway, ErrCodeUpstreamFailed, "fanout transport rejected the envelope", err)
		return
	}
	if err := h.deps.DeadLetters.Delete(r.Context(), id); err != nil && !errors.Is(err, deadletter.ErrNotFound) {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "replayed but failed to remove entry", err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"replayed": id}, start)
}

func (h *Handler) deadLetterError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, deadletter.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "dead letter not found", nil)
		return
	}
	respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "dead letter store failed", err)
}
