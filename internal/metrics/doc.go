// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

/*
Package metrics provides Prometheus instrumentation for Murmur.

All collectors live on a *Metrics value built by New against a
prometheus.Registerer. The server builds one on a private registry and exposes
it at /metrics:

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

# Available Metrics

Fanout:
  - murmur_fanout_published_total{mode,type}
  - murmur_fanout_publish_failed_total{mode}
  - murmur_fanout_publish_duration_seconds{mode}
  - murmur_fanout_retries_total{mode}
  - murmur_fanout_dead_lettered_total{mode}
  - murmur_fanout_dropped_total{reason}: queue_full, invalid, closed, panic
  - murmur_fanout_queue_depth
  - murmur_fanout_received_total{type}
  - murmur_fanout_discarded_total{reason}: self_origin, malformed, unknown_type, panic

Gateway:
  - murmur_gateway_connections
  - murmur_gateway_auth_failures_total{code}
  - murmur_gateway_emitted_total{type,origin}
  - murmur_gateway_slow_clients_dropped_total
  - murmur_gateway_rate_limited_total

Activity:
  - murmur_activity_enqueued_total
  - murmur_activity_flushed_total
  - murmur_activity_flush_ok_total
  - murmur_activity_flush_fail_total
  - murmur_activity_last_flush_timestamp_seconds
  - murmur_activity_last_flush_duration_seconds
  - murmur_activity_queue_length

Every Record* method is safe on a nil receiver.
*/
package metrics
