// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

// Package api exposes Murmur over HTTP using the chi router.
//
// Routes:
//
//	GET    /ws                                 websocket gateway (token in query or header)
//	GET    /metrics                            Prometheus exposition
//	GET    /api/v1/health/live                 liveness
//	GET    /api/v1/health/ready                readiness (dependency checks)
//	POST   /api/v1/events                      dispatch a chat event (bearer)
//	GET    /api/v1/activity/recent?limit=N     most recently active users (bearer)
//	GET    /api/v1/activity/stats              batcher counters (bearer)
//	GET    /api/v1/deadletters?limit=N         failed envelopes (bearer)
//	POST   /api/v1/deadletters/{id}/replay     resend a failed envelope (bearer)
//	DELETE /api/v1/deadletters/{id}            discard a failed envelope (bearer)
//
// Every JSON response uses models.APIResponse. Global middleware adds a
// request id to the logging context, recovers panics, applies CORS and
// records per-route Prometheus metrics; /api/v1 routes are rate limited by
// client IP.
package api
