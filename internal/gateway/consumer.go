// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/murmur/internal/fanout"
	"github.com/tomtom215/murmur/internal/identity"
	"github.com/tomtom215/murmur/internal/logging"
	"github.com/tomtom215/murmur/internal/metrics"
)

// Discard reasons reported to metrics.
const (
	DiscardMalformed   = "malformed"
	DiscardSelf        = "self_origin"
	DiscardUnknownType = "unknown_type"
	DiscardPanic       = "panic"
	DiscardQueueFull   = "emit_queue_full"
)

// ErrFeedClosed is returned by Serve when the feed ends on its own.
var ErrFeedClosed = errors.New("fanout feed closed")

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	// CloseTimeout bounds closing the feed on shutdown.
	CloseTimeout time.Duration

	LogGate *logging.SampleGate
	Metrics *metrics.Metrics
}

// Consumer emits envelopes published by other instances to local rooms.
type Consumer struct {
	feed    fanout.Feed
	emitter Emitter
	self    identity.Instance
	cfg     ConsumerConfig
	metrics *metrics.Metrics
	gate    *logging.SampleGate
}

func NewConsumer(feed fanout.Feed, emitter Emitter, self identity.Instance, cfg ConsumerConfig) *Consumer {
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 5 * time.Second
	}
	return &Consumer{
		feed:    feed,
		emitter: emitter,
		self:    self,
		cfg:     cfg,
		metrics: cfg.Metrics,
		gate:    cfg.LogGate,
	}
}

// Serve subscribes to the feed and handles envelopes until ctx ends. A feed
// that ends by itself is reported as ErrFeedClosed so that the supervisor
// restarts the consumer. It implements suture.Service.
func (c *Consumer) Serve(ctx context.Context) error {
	ch, err := c.feed.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to fanout feed: %w", err)
	}
	defer c.closeFeed()

	logging.Info().Str("instance", c.self.String()).Msg("Fanout consumer started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrFeedClosed
			}
			c.Handle(data)
		}
	}
}

func (c *Consumer) String() string { return "fanout-consumer" }

func (c *Consumer) closeFeed() {
	done := make(chan error, 1)
	go func() { done <- c.feed.Close() }()
	select {
	case err := <-done:
		if err != nil {
			logging.Warn().Err(err).Msg("closing fanout feed")
		}
	case <-time.After(c.cfg.CloseTimeout):
		logging.Warn().Dur("timeout", c.cfg.CloseTimeout).Msg("fanout feed close timed out")
	}
}

// Handle processes one raw envelope and reports whether it was emitted.
// Nothing in data can make it panic or stop the consumer.
func (c *Consumer) Handle(data []byte) (emitted bool) {
	defer func() {
		if r := recover(); r != nil {
			emitted = false
			c.discard(DiscardPanic, fmt.Errorf("panic handling envelope: %v", r))
		}
	}()

	env, err := fanout.Decode(data)
	if err != nil {
		c.discard(DiscardMalformed, err)
		return false
	}
	if c.self.Matches(env.Source) {
		c.metrics.RecordDiscarded(DiscardSelf)
		return false
	}
	if !IsChatType(env.Type) {
		c.discard(DiscardUnknownType, fmt.Errorf("unknown envelope type %q", env.Type))
		return false
	}

	msg := Message{Type: env.Type, Data: json.RawMessage(env.Payload)}
	if !c.emitter.EmitToUsers(env.Recipients, msg, OriginFanout) {
		c.metrics.RecordDiscarded(DiscardQueueFull)
		return false
	}
	c.metrics.RecordReceived(env.Type)
	return true
}

func (c *Consumer) discard(reason string, err error) {
	c.metrics.RecordDiscarded(reason)
	if c.gate.Allow() {
		logging.Warn().Err(err).Str("reason", reason).Msg("Fanout envelope discarded")
	}
}
