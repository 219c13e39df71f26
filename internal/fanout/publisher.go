// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package fanout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/murmur/internal/identity"
	"github.com/tomtom215/murmur/internal/logging"
	"github.com/tomtom215/murmur/internal/metrics"
	"github.com/tomtom215/murmur/internal/models"
)

// Drop reasons reported to metrics.
const (
	DropQueueFull = "queue_full"
	DropInvalid   = "invalid"
	DropClosed    = "closed"
	DropFailed    = "send_failed"
	DropPanic     = "panic"
)

// PublisherConfig configures a Publisher.
type PublisherConfig struct {
	// QueueSize bounds envelopes waiting for the background task.
	QueueSize int

	// SendTimeout bounds one Send call, retries included. Zero means none.
	SendTimeout time.Duration

	// DrainTimeout bounds delivery of queued envelopes once Serve is asked
	// to stop.
	DrainTimeout time.Duration

	// LogGate samples failure logs on the hot path. Nil logs everything.
	LogGate *logging.SampleGate

	Metrics *metrics.Metrics
}

// Publisher is the entry point for cross-instance fanout. Publish never
// blocks and never returns an error: events are stamped with the instance
// identity, queued, and sent by a single background task (Serve), which
// keeps this instance's publish order.
type Publisher struct {
	sender  Sender
	self    identity.Instance
	queue   chan *Envelope
	cfg     PublisherConfig
	metrics *metrics.Metrics
	gate    *logging.SampleGate
	logger  zerolog.Logger
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
}

func NewPublisher(sender Sender, self identity.Instance, cfg PublisherConfig) *Publisher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	return &Publisher{
		sender:  sender,
		self:    self,
		queue:   make(chan *Envelope, cfg.QueueSize),
		cfg:     cfg,
		metrics: cfg.Metrics,
		gate:    cfg.LogGate,
		logger:  logging.WithComponent("fanout").With().Str("mode", sender.Mode().String()).Logger(),
		now:     time.Now,
	}
}

// Mode returns the strategy of the underlying sender.
func (p *Publisher) Mode() Mode { return p.sender.Mode() }

// Publish queues ev for delivery to other instances.
func (p *Publisher) Publish(ctx context.Context, ev models.ChatEvent) {
	env, err := NewEnvelope(ev, p.self.String(), p.now())
	if err != nil {
		p.drop(ctx, DropInvalid, err)
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.drop(ctx, DropClosed, ErrPublisherClosed)
		return
	}

	select {
	case p.queue <- env:
		p.metrics.SetQueueDepth(len(p.queue))
	default:
		p.drop(ctx, DropQueueFull, fmt.Errorf("publish queue full (%d)", cap(p.queue)))
	}
}

// Serve drains the queue until ctx is cancelled, then sends what is still
// queued within DrainTimeout. It implements suture.Service.
func (p *Publisher) Serve(ctx context.Context) error {
	p.logger.Info().Int("queue_size", cap(p.queue)).Msg("Fanout publisher started")
	for {
		select {
		case <-ctx.Done():
			p.drain(nil)
			p.logger.Info().Msg("Fanout publisher stopped")
			return ctx.Err()
		case env := <-p.queue:
			p.metrics.SetQueueDepth(len(p.queue))
			if ctx.Err() != nil {
				p.drain(env)
				p.logger.Info().Msg("Fanout publisher stopped")
				return ctx.Err()
			}
			p.deliver(ctx, env)
		}
	}
}

// drain sends first (when set) and then whatever is queued, bounded by
// DrainTimeout.
func (p *Publisher) drain(first *Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.DrainTimeout)
	defer cancel()
	if first != nil {
		p.deliver(ctx, first)
	}
	for {
		select {
		case env := <-p.queue:
			p.deliver(ctx, env)
		default:
			return
		}
		if ctx.Err() != nil {
			if n := len(p.queue); n > 0 {
				p.logger.Warn().Int("abandoned", n).Msg("Fanout drain timed out")
			}
			return
		}
	}
}

// deliver is the error boundary of the background task: nothing that
// happens while sending one envelope escapes it.
func (p *Publisher) deliver(ctx context.Context, env *Envelope) {
	defer func() {
		if r := recover(); r != nil {
			p.drop(ctx, DropPanic, fmt.Errorf("panic in sender: %v", r))
		}
	}()

	sendCtx := ctx
	if p.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, p.cfg.SendTimeout)
		defer cancel()
	}
	if err := p.sender.Send(sendCtx, env); err != nil {
		p.drop(ctx, DropFailed, err)
	}
}

func (p *Publisher) drop(ctx context.Context, reason string, err error) {
	p.metrics.RecordDropped(reason)
	if !p.gate.Allow() {
		return
	}
	p.logger.Warn().
		Err(err).
		Str("reason", reason).
		Str("correlation_id", logging.CorrelationIDFromContext(ctx)).
		Msg("Fanout event dropped")
}

// Close stops accepting events and closes the sender. Call it after Serve
// has returned.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.sender.Close()
}

func (p *Publisher) String() string { return "fanout-publisher" }
