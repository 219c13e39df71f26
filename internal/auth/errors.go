// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package auth

import "errors"

var (
	// ErrMissingToken is returned when the request carries no credential.
	ErrMissingToken = errors.New("missing token")

	// ErrInvalidToken is returned for malformed, tampered or wrongly signed tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned for tokens past their exp claim.
	ErrTokenExpired = errors.New("token expired")
)

// Error codes sent to clients.
const (
	CodeMissingToken = "missing_token"
	CodeInvalidToken = "invalid_token"
	CodeTokenExpired = "token_expired"
)

// ErrorCode maps an authentication error to its client-facing code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrMissingToken):
		return CodeMissingToken
	case errors.Is(err, ErrTokenExpired):
		return CodeTokenExpired
	default:
		return CodeInvalidToken
	}
}
