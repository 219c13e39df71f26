// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package auth

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/murmur/internal/logging"
)

type contextKey string

const identityKey contextKey = "auth_identity"

// ContextWithIdentity stores id in ctx.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity stored by RequireBearer.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// RequireBearer rejects requests without a valid Authorization bearer token.
// Unlike the websocket handshake, the query parameter is not consulted.
func RequireBearer(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				writeUnauthorized(w, ErrMissingToken)
				return
			}
			id, err := a.Authenticate(r.Context(), token)
			if err != nil {
				logging.Ctx(r.Context()).Warn().
					Str("code", ErrorCode(err)).
					Str("token", logging.SanitizeToken(token)).
					Msg("API authentication failed")
				writeUnauthorized(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="murmur"`)
	w.WriteHeader(http.StatusUnauthorized)
	//nolint:errcheck // client may have gone away
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "error",
		"error": map[string]string{
			"code":    ErrorCode(err),
			"message": err.Error(),
		},
	})
}
