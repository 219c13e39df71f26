// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package fanout

import "errors"

var (
	// ErrUnknownMode is returned for publisher modes outside the closed set.
	ErrUnknownMode = errors.New("unknown fanout mode")

	// ErrInvalidEvent is returned when an event cannot be turned into an envelope.
	ErrInvalidEvent = errors.New("invalid fanout event")

	// ErrMalformedEnvelope is returned when bytes from a feed do not decode.
	ErrMalformedEnvelope = errors.New("malformed fanout envelope")

	// ErrNoFeed is returned for modes that have no consumable feed.
	ErrNoFeed = errors.New("fanout mode has no feed")

	// ErrPublisherClosed is returned by senders used after Close.
	ErrPublisherClosed = errors.New("fanout publisher is closed")

	// ErrMissingTransport is returned when the factory lacks the client a mode needs.
	ErrMissingTransport = errors.New("fanout transport not configured")
)
