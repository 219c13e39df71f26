// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

/*
Package auth verifies the bearer credentials presented by websocket clients and
API callers.

Tokens are HS256 JWTs signed with a secret shared with the service that issues
them. The subject claim is the user id; an optional name claim is echoed back
in the gateway welcome message.

# Token Extraction

TokenFromRequest looks in two places, in order:

 1. the dedicated "token" query parameter (browsers cannot set headers on a
    websocket handshake)
 2. the standard "Authorization: Bearer <token>" header

# Errors

Failures map to stable codes sent to clients in auth_error frames:

	ErrMissingToken -> missing_token
	ErrTokenExpired -> token_expired
	ErrInvalidToken -> invalid_token
*/
package auth
