// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package authz

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/murmur/internal/auth"
	"github.com/tomtom215/murmur/internal/logging"
	"github.com/tomtom215/murmur/internal/metrics"
	"github.com/tomtom215/murmur/internal/models"
)

// Authorizer is the decision interface used by Middleware.
type Authorizer interface {
	EnforceWithRoles(userID string, roles []string, object, action string) (bool, error)
}

// Middleware enforces the policy on REST requests. It must run after
// auth.RequireBearer.
type Middleware struct {
	authorizer Authorizer
	metrics    *metrics.Metrics
}

// NewMiddleware creates the middleware. m may be nil.
func NewMiddleware(a Authorizer, m *metrics.Metrics) *Middleware {
	return &Middleware{authorizer: a, metrics: m}
}

// AuthorizeRequest derives the action from the method and authorizes the
// request path.
func (m *Middleware) AuthorizeRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "no authentication context")
			return
		}

		action := methodToAction(r.Method)
		allowed, err := m.authorizer.EnforceWithRoles(id.ID, id.Roles, r.URL.Path, action)
		if err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Msg("Authorization error")
			m.metrics.RecordAuthzDecision("error")
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "authorization unavailable")
			return
		}
		if !allowed {
			logging.Ctx(r.Context()).Warn().
				Str("user_id", logging.SanitizeUserID(id.ID)).
				Str("path", r.URL.Path).
				Str("action", action).
				Msg("Request denied by policy")
			m.metrics.RecordAuthzDecision("deny")
			writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
			return
		}
		m.metrics.RecordAuthzDecision("allow")
		next.ServeHTTP(w, r)
	})
}

func methodToAction(method string) string {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return ActionWrite
	case http.MethodDelete:
		return ActionDelete
	default:
		return ActionRead
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may have gone away
	json.NewEncoder(w).Encode(&models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    code,
			Message: msg,
		},
	})
}
