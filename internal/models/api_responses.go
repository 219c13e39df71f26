// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package models

import "time"

// APIResponse is the standard wrapper for every HTTP endpoint.
//
//	{"status": "success", "data": {...}, "metadata": {"timestamp": "..."}}
//	{"status": "error", "error": {"code": "VALIDATION_ERROR", "message": "..."}, "metadata": {...}}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response timing.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// EventRequest is the body of POST /api/v1/events. Recipients may be omitted,
// in which case they are resolved from the conversation or group.
type EventRequest struct {
	Type       string     `json:"type" validate:"required,oneof=message group_created"`
	Recipients []string   `json:"recipients" validate:"omitempty,max=10000,dive,userid,max=128"`
	Message    *Message   `json:"message,omitempty" validate:"required_if=Type message"`
	Group      *GroupInfo `json:"group,omitempty" validate:"required_if=Type group_created"`
}

// EventAccepted is returned by the event ingest endpoint. Recipients counts
// the explicit recipients and is omitted when they were resolved from
// conversation membership.
type EventAccepted struct {
	Type       string `json:"type"`
	Recipients int    `json:"recipients,omitempty"`
}

// HealthStatus is returned by the readiness endpoint.
type HealthStatus struct {
	Status       string            `json:"status"`
	Instance     string            `json:"instance"`
	FanoutMode   string            `json:"fanout_mode"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}
