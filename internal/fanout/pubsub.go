// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package fanout

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// PubSubSender publishes envelopes on a Redis pub/sub channel.
type PubSubSender struct {
	client  redis.Cmdable
	channel string
}

func NewPubSubSender(client redis.Cmdable, channel string) *PubSubSender {
	return &PubSubSender{client: client, channel: channel}
}

func (s *PubSubSender) Send(ctx context.Context, env *Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", s.channel, err)
	}
	return nil
}

func (s *PubSubSender) Mode() Mode { return ModePubSub }

// Close is a no-op; the Redis client is owned by the caller.
func (s *PubSubSender) Close() error { return nil }
