// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

// Package identity generates the token that names this process on the fanout bus.
//
// Every envelope a process publishes carries its identity in the source field,
// and the gateway discards envelopes bearing its own identity. The token is
// created once at startup and never changes for the life of the process.
package identity

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Instance is an immutable process identity.
type Instance struct {
	id string
}

// New builds an identity from hostname, pid, start time and a random suffix.
// Two processes started in the same millisecond on the same host still
// differ by the suffix.
func New() Instance {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "murmur"
	}
	return fromParts(host, os.Getpid(), time.Now(), uuid.New())
}

func fromParts(host string, pid int, start time.Time, u uuid.UUID) Instance {
	host = strings.ReplaceAll(host, "-", "_")
	suffix := strings.ReplaceAll(u.String(), "-", "")[:8]
	return Instance{id: fmt.Sprintf("%s-%d-%d-%s", host, pid, start.UnixMilli(), suffix)}
}

// Parse wraps an existing token, e.g. one pinned through configuration.
func Parse(s string) (Instance, error) {
	if strings.TrimSpace(s) == "" {
		return Instance{}, fmt.Errorf("identity: empty instance id")
	}
	return Instance{id: s}, nil
}

// String returns the token.
func (i Instance) String() string { return i.id }

// IsZero reports whether i was never initialized.
func (i Instance) IsZero() bool { return i.id == "" }

// Matches reports whether source names this instance.
func (i Instance) Matches(source string) bool {
	return i.id != "" && source == i.id
}
