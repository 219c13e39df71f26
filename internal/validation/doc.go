// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

// Package validation validates HTTP request bodies with go-playground/validator v10.
//
// A single validator instance is shared by every handler; it caches struct
// metadata and is safe for concurrent use. Field names in errors are the JSON
// names clients send, not Go field names:
//
//	var req models.EventRequest
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    respondValidationError(w, r, verr)
//	    return
//	}
//
// Custom tags:
//   - userid: a non-empty id without whitespace or control characters
package validation
