// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package fanout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/murmur/internal/deadletter"
	"github.com/tomtom215/murmur/internal/logging"
	"github.com/tomtom215/murmur/internal/metrics"
)

// RetryConfig bounds the retries of one send. MaxRetries counts retries
// after the first attempt.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// ResilientSender decorates a Sender with retry, an optional circuit
// breaker, metrics and a dead letter store for envelopes that exhaust
// their retries.
type ResilientSender struct {
	inner       Sender
	retry       RetryConfig
	breaker     *gobreaker.CircuitBreaker[interface{}]
	deadLetters deadletter.Store
	metrics     *metrics.Metrics
	now         func() time.Time
}

// ResilientOption configures a ResilientSender.
type ResilientOption func(*ResilientSender)

// WithBreaker routes every attempt through cb. An open breaker fails the
// send without further retries.
func WithBreaker(cb *gobreaker.CircuitBreaker[interface{}]) ResilientOption {
	return func(r *ResilientSender) { r.breaker = cb }
}

// WithDeadLetters stores envelopes that could not be sent.
func WithDeadLetters(store deadletter.Store) ResilientOption {
	return func(r *ResilientSender) { r.deadLetters = store }
}

// WithMetrics records publish outcomes on m.
func WithMetrics(m *metrics.Metrics) ResilientOption {
	return func(r *ResilientSender) { r.metrics = m }
}

func NewResilientSender(inner Sender, retry RetryConfig, opts ...ResilientOption) *ResilientSender {
	if retry.MaxRetries < 0 {
		retry.MaxRetries = 0
	}
	if retry.InitialInterval <= 0 {
		retry.InitialInterval = 50 * time.Millisecond
	}
	if retry.MaxInterval < retry.InitialInterval {
		retry.MaxInterval = retry.InitialInterval
	}
	r := &ResilientSender{
		inner: inner,
		retry: retry,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ResilientSender) Mode() Mode { return r.inner.Mode() }

func (r *ResilientSender) Close() error { return r.inner.Close() }

func (r *ResilientSender) Send(ctx context.Context, env *Envelope) error {
	start := r.now()
	attempts := 0

	operation := func() error {
		attempts++
		err := r.attempt(ctx, env)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(r.newBackOff(), uint64(r.retry.MaxRetries)), ctx))

	mode := r.inner.Mode().String()
	r.metrics.RecordPublish(mode, env.Type, r.now().Sub(start), attempts-1, err)
	if err == nil {
		return nil
	}

	r.deadLetter(ctx, env, err, attempts)
	return fmt.Errorf("send %s envelope via %s after %d attempts: %w", env.Type, mode, attempts, err)
}

func (r *ResilientSender) attempt(ctx context.Context, env *Envelope) error {
	if r.breaker == nil {
		return r.inner.Send(ctx, env)
	}
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.inner.Send(ctx, env)
	})
	return err
}

func (r *ResilientSender) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.retry.InitialInterval
	b.MaxInterval = r.retry.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (r *ResilientSender) deadLetter(ctx context.Context, env *Envelope, cause error, attempts int) {
	if r.deadLetters == nil {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to encode envelope for dead letter store")
		return
	}
	entry := &deadletter.Entry{
		Mode:         r.inner.Mode().String(),
		Type:         env.Type,
		PartitionKey: env.PartitionKey(),
		Envelope:     data,
		Error:        cause.Error(),
		Attempts:     attempts,
		FailedAt:     r.now(),
	}
	// The store outlives a cancelled publish context.
	if err := r.deadLetters.Save(context.WithoutCancel(ctx), entry); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("type", env.Type).Msg("Failed to store dead letter")
		return
	}
	r.metrics.RecordDeadLetter(entry.Mode)
}
