// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/murmur/internal/auth"
	"github.com/tomtom215/murmur/internal/chat"
	"github.com/tomtom215/murmur/internal/models"
	"github.com/tomtom215/murmur/internal/validation"
)

const maxEventBodyBytes = 1 << 20

// PostEvent dispatches a chat event on behalf of the authenticated user.
// A message without sender_id is attributed to the caller; a message whose
// sender is someone else is refused.
func (h *Handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	caller, _ := auth.IdentityFromContext(r.Context())

	var req models.EventRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBodyBytes))
	if err := dec.Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "request body must be a JSON event", err)
		return
	}

	if req.Message != nil {
		if req.Message.SenderID == "" {
			req.Message.SenderID = caller.ID
		}
		if req.Message.SenderID != caller.ID {
			respondError(w, r, http.StatusForbidden, ErrCodeForbidden, "cannot send messages as another user", nil)
			return
		}
		if req.Message.CreatedAt.IsZero() {
			req.Message.CreatedAt = start.UTC()
		}
	}
	if req.Group != nil && req.Group.CreatedAt.IsZero() {
		req.Group.CreatedAt = start.UTC()
	}

	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, verr)
		return
	}

	ev := eventFromRequest(&req)
	if err := h.deps.Dispatcher.Dispatch(r.Context(), ev); err != nil {
		switch {
		case errors.Is(err, chat.ErrUnresolvable):
			respondError(w, r, http.StatusUnprocessableEntity, ErrCodeUnprocessable, "event has no recipients", err)
		case errors.Is(err, models.ErrUnknownKind), errors.Is(err, models.ErrNoRecipients), errors.Is(err, models.ErrPayloadMismatch):
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), err)
		default:
			respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "could not resolve recipients", err)
		}
		return
	}

	respondData(w, http.StatusAccepted, models.EventAccepted{
		Type:       req.Type,
		Recipients: len(ev.Recipients),
	}, start)
}

// eventFromRequest maps a validated request to an event with normalized
// explicit recipients.
func eventFromRequest(req *models.EventRequest) models.ChatEvent {
	switch models.EventKind(req.Type) {
	case models.KindGroupCreated:
		return models.NewGroupCreatedEvent(req.Group, req.Recipients)
	default:
		return models.NewMessageEvent(req.Message, req.Recipients)
	}
}
