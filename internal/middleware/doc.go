// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

// Package middleware provides HTTP middleware shared by every route:
// request id propagation into the logging context and Prometheus request
// instrumentation keyed by chi route pattern.
package middleware
