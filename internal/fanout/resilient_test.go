// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package fanout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/murmur/internal/deadletter"
	"github.com/tomtom215/murmur/internal/metrics"
)

var fastRetry = RetryConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

func testEnvelope(t *testing.T) *Envelope {
	t.Helper()
	env, err := NewEnvelope(testMessageEvent("c1", "bob"), "node-a", time.UnixMilli(1))
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func TestResilientSender_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())
	inner := &fakeSender{failFirst: 2}
	r := NewResilientSender(inner, fastRetry, WithMetrics(m))

	if err := r.Send(context.Background(), testEnvelope(t)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if inner.Calls() != 3 {
		t.Errorf("calls = %d, want 3", inner.Calls())
	}
	if got := testutil.ToFloat64(m.FanoutRetries.WithLabelValues("pubsub")); got != 2 {
		t.Errorf("retries = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.FanoutPublished.WithLabelValues("pubsub", "message")); got != 1 {
		t.Errorf("published = %v, want 1", got)
	}
}

func TestResilientSender_DeadLettersOnExhaustion(t *testing.T) {
	t.Parallel()

	store, err := deadletter.Open(deadletter.Config{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	m := metrics.New(prometheus.NewRegistry())
	inner := &fakeSender{failFirst: 100}
	r := NewResilientSender(inner, fastRetry, WithMetrics(m), WithDeadLetters(store))

	err = r.Send(context.Background(), testEnvelope(t))
	if !errors.Is(err, errTransport) {
		t.Fatalf("Send error = %v, want wrapped transport error", err)
	}
	if inner.Calls() != 3 {
		t.Errorf("calls = %d, want 3 (1 + 2 retries)", inner.Calls())
	}

	entries, err := store.List(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("dead letters = %d, want 1", len(entries))
	}
	if entries[0].Attempts != 3 || entries[0].Mode != "pubsub" || entries[0].Type != "message" {
		t.Errorf("entry = %+v", entries[0])
	}
	if got := testutil.ToFloat64(m.FanoutDeadLettered.WithLabelValues("pubsub")); got != 1 {
		t.Errorf("dead lettered = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.FanoutPublishFailed.WithLabelValues("pubsub")); got != 1 {
		t.Errorf("publish failed = %v, want 1", got)
	}
}

func TestResilientSender_OpenBreakerStopsRetrying(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(BreakerConfig{Name: "test", FailureThreshold: 1, Timeout: time.Minute}, nil)
	inner := &fakeSender{failFirst: 100}
	r := NewResilientSender(inner, RetryConfig{MaxRetries: 5, InitialInterval: time.Millisecond}, WithBreaker(cb))

	err := r.Send(context.Background(), testEnvelope(t))
	if err == nil {
		t.Fatal("expected error")
	}
	// First attempt trips the breaker; the retry hits the open state and stops.
	if inner.Calls() != 1 {
		t.Errorf("calls = %d, want 1", inner.Calls())
	}
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("error = %v, want ErrOpenState", err)
	}
	if cb.State() != gobreaker.StateOpen {
		t.Errorf("breaker state = %s, want open", cb.State())
	}
}

func TestResilientSender_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inner := &fakeSender{failFirst: 100}
	r := NewResilientSender(inner, RetryConfig{MaxRetries: 10, InitialInterval: time.Hour})
	if err := r.Send(ctx, testEnvelope(t)); err == nil {
		t.Fatal("expected error")
	}
	if inner.Calls() > 1 {
		t.Errorf("calls = %d, want at most 1", inner.Calls())
	}
}
