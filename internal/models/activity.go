// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package models

import "time"

// ActivityRecord says a user was observed active at a point in time.
type ActivityRecord struct {
	UserID     string
	ObservedAt time.Time
}

// RecentActivity is one entry of the recent-activity listing.
type RecentActivity struct {
	UserID     string    `json:"user_id"`
	LastSeenAt time.Time `json:"last_seen_at"`
}
