// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "murmur"

// Metrics holds every collector the process exports. It is built once at
// startup and handed to each component; nothing here is package-global.
//
// A nil *Metrics is valid and records nothing, which keeps tests that do not
// care about instrumentation free of setup.
type Metrics struct {
	// Fanout publisher
	FanoutPublished       *prometheus.CounterVec
	FanoutPublishFailed   *prometheus.CounterVec
	FanoutPublishDuration *prometheus.HistogramVec
	FanoutRetries         *prometheus.CounterVec
	FanoutDeadLettered    *prometheus.CounterVec
	FanoutDropped         *prometheus.CounterVec
	FanoutQueueDepth      prometheus.Gauge

	// Fanout consumer
	FanoutReceived  *prometheus.CounterVec
	FanoutDiscarded *prometheus.CounterVec

	// Circuit breaker
	CircuitBreakerState       *prometheus.GaugeVec
	CircuitBreakerTransitions *prometheus.CounterVec

	// Gateway
	GatewayConnections  prometheus.Gauge
	GatewayAuthFailures *prometheus.CounterVec
	GatewayEmitted      *prometheus.CounterVec
	GatewaySlowClients  prometheus.Counter
	GatewayRateLimited  prometheus.Counter

	// Activity batcher
	ActivityEnqueued          prometheus.Counter
	ActivityFlushed           prometheus.Counter
	ActivityFlushOK           prometheus.Counter
	ActivityFlushFail         prometheus.Counter
	ActivityLastFlushTime     prometheus.Gauge
	ActivityLastFlushDuration prometheus.Gauge
	ActivityQueueLength       prometheus.Gauge

	// HTTP
	APIRequests        *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	AuthzDecisions     *prometheus.CounterVec
}

// New registers all collectors on reg. Passing a fresh prometheus.NewRegistry()
// per test keeps tests independent.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		FanoutPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fanout",
			Name: "published_total",
			Help: "Envelopes handed to the transport successfully",
		}, []string{"mode", "type"}),
		FanoutPublishFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fanout",
			Name: "publish_failed_total",
			Help: "Envelopes the transport rejected after all retries",
		}, []string{"mode"}),
		FanoutPublishDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "fanout",
			Name:    "publish_duration_seconds",
			Help:    "Time spent handing one envelope to the transport, retries included",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"mode"}),
		FanoutRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fanout",
			Name: "retries_total",
			Help: "Publish attempts beyond the first",
		}, []string{"mode"}),
		FanoutDeadLettered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fanout",
			Name: "dead_lettered_total",
			Help: "Envelopes written to the dead letter store",
		}, []string{"mode"}),
		FanoutDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fanout",
			Name: "dropped_total",
			Help: "Events dropped before reaching the transport",
		}, []string{"reason"}),
		FanoutQueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "fanout",
			Name: "queue_depth",
			Help: "Envelopes waiting for the background publisher",
		}),
		FanoutReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fanout",
			Name: "received_total",
			Help: "Envelopes from other instances emitted to local rooms",
		}, []string{"type"}),
		FanoutDiscarded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fanout",
			Name: "discarded_total",
			Help: "Envelopes read from the feed but not emitted",
		}, []string{"reason"}),
		CircuitBreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"name"}),
		CircuitBreakerTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions",
		}, []string{"name", "from", "to"}),
		GatewayConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "gateway",
			Name: "connections",
			Help: "Authenticated websocket connections",
		}),
		GatewayAuthFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "gateway",
			Name: "auth_failures_total",
			Help: "Rejected websocket handshakes",
		}, []string{"code"}),
		GatewayEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "gateway",
			Name: "emitted_total",
			Help: "Messages delivered to local rooms",
		}, []string{"type", "origin"}),
		GatewaySlowClients: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "gateway",
			Name: "slow_clients_dropped_total",
			Help: "Connections closed because their send buffer was full",
		}),
		GatewayRateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "gateway",
			Name: "rate_limited_total",
			Help: "Inbound client frames dropped by the per-connection limiter",
		}),
		ActivityEnqueued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "activity",
			Name: "enqueued_total",
			Help: "Activity records accepted by the batcher",
		}),
		ActivityFlushed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "activity",
			Name: "flushed_total",
			Help: "Activity records written to the recency store",
		}),
		ActivityFlushOK: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "activity",
			Name: "flush_ok_total",
			Help: "Successful batch writes",
		}),
		ActivityFlushFail: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "activity",
			Name: "flush_fail_total",
			Help: "Batches requeued after exhausting retries",
		}),
		ActivityLastFlushTime: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "activity",
			Name: "last_flush_timestamp_seconds",
			Help: "Unix time of the last successful flush",
		}),
		ActivityLastFlushDuration: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "activity",
			Name: "last_flush_duration_seconds",
			Help: "Duration of the last successful flush, retries included",
		}),
		ActivityQueueLength: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "activity",
			Name: "queue_length",
			Help: "Activity records waiting to be flushed",
		}),
		APIRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		APIRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		}, []string{"method", "route"}),
		AuthzDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authz_decisions_total",
			Help:      "REST authorization decisions (allow, deny, error)",
		}, []string{"decision"}),
	}
}

// RecordPublish records the outcome of one transport hand-off.
func (m *Metrics) RecordPublish(mode, eventType string, duration time.Duration, retries int, err error) {
	if m == nil {
		return
	}
	m.FanoutPublishDuration.WithLabelValues(mode).Observe(duration.Seconds())
	if retries > 0 {
		m.FanoutRetries.WithLabelValues(mode).Add(float64(retries))
	}
	if err != nil {
		m.FanoutPublishFailed.WithLabelValues(mode).Inc()
		return
	}
	m.FanoutPublished.WithLabelValues(mode, eventType).Inc()
}

// RecordDeadLetter counts an envelope written to the dead letter store.
func (m *Metrics) RecordDeadLetter(mode string) {
	if m == nil {
		return
	}
	m.FanoutDeadLettered.WithLabelValues(mode).Inc()
}

// RecordDropped counts an event dropped before it reached the transport.
func (m *Metrics) RecordDropped(reason string) {
	if m == nil {
		return
	}
	m.FanoutDropped.WithLabelValues(reason).Inc()
}

// SetQueueDepth updates the publisher queue gauge.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.FanoutQueueDepth.Set(float64(n))
}

// RecordReceived counts an envelope from another instance emitted locally.
func (m *Metrics) RecordReceived(eventType string) {
	if m == nil {
		return
	}
	m.FanoutReceived.WithLabelValues(eventType).Inc()
}

// RecordDiscarded counts an envelope read from the feed but not emitted.
func (m *Metrics) RecordDiscarded(reason string) {
	if m == nil {
		return
	}
	m.FanoutDiscarded.WithLabelValues(reason).Inc()
}

// RecordBreakerState records a circuit breaker transition. States follow
// gobreaker ordering: 0 closed, 1 half-open, 2 open.
func (m *Metrics) RecordBreakerState(name string, from, to string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
	m.CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// ConnectionOpened increments the live connection gauge.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.GatewayConnections.Inc()
}

// ConnectionClosed decrements the live connection gauge.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.GatewayConnections.Dec()
}

// RecordAuthFailure counts a rejected handshake by error code.
func (m *Metrics) RecordAuthFailure(code string) {
	if m == nil {
		return
	}
	m.GatewayAuthFailures.WithLabelValues(code).Inc()
}

// RecordEmit counts messages delivered to local sockets. origin is "local"
// for events produced on this instance and "fanout" for deliveries from peers.
func (m *Metrics) RecordEmit(eventType, origin string, sockets int) {
	if m == nil || sockets == 0 {
		return
	}
	m.GatewayEmitted.WithLabelValues(eventType, origin).Add(float64(sockets))
}

// RecordSlowClient counts a connection dropped for a full send buffer.
func (m *Metrics) RecordSlowClient() {
	if m == nil {
		return
	}
	m.GatewaySlowClients.Inc()
}

// RecordRateLimited counts an inbound frame dropped by the limiter.
func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.GatewayRateLimited.Inc()
}

// RecordEnqueued counts one accepted activity record.
func (m *Metrics) RecordEnqueued(queueLen int) {
	if m == nil {
		return
	}
	m.ActivityEnqueued.Inc()
	m.ActivityQueueLength.Set(float64(queueLen))
}

// RecordFlush records a batch write outcome.
func (m *Metrics) RecordFlush(records int, duration time.Duration, at time.Time, queueLen int, err error) {
	if m == nil {
		return
	}
	m.ActivityQueueLength.Set(float64(queueLen))
	if err != nil {
		m.ActivityFlushFail.Inc()
		return
	}
	m.ActivityFlushOK.Inc()
	m.ActivityFlushed.Add(float64(records))
	m.ActivityLastFlushTime.Set(float64(at.UnixNano()) / 1e9)
	m.ActivityLastFlushDuration.Set(duration.Seconds())
}

// RecordAPIRequest records one HTTP request.
func (m *Metrics) RecordAPIRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAuthzDecision counts one policy decision.
func (m *Metrics) RecordAuthzDecision(decision string) {
	if m == nil {
		return
	}
	m.AuthzDecisions.WithLabelValues(decision).Inc()
}
