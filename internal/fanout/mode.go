// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package fanout

import (
	"fmt"
	"strings"
)

// Mode selects the publisher strategy. The zero value is not a valid mode.
type Mode uint8

const (
	ModePubSub Mode = iota + 1
	ModeStream
	ModeBroker
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pubsub":
		return ModePubSub, nil
	case "stream":
		return ModeStream, nil
	case "broker":
		return ModeBroker, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

func (m Mode) String() string {
	switch m {
	case ModePubSub:
		return "pubsub"
	case ModeStream:
		return "stream"
	case ModeBroker:
		return "broker"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// HasFeed reports whether other instances can consume what this mode publishes.
func (m Mode) HasFeed() bool {
	return m == ModePubSub || m == ModeBroker
}
