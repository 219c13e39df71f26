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

// StreamSender appends envelopes to a Redis stream, trimmed approximately
// to maxLen entries. Nothing in Murmur reads the stream back.
type StreamSender struct {
	client redis.Cmdable
	key    string
	maxLen int64
}

func NewStreamSender(client redis.Cmdable, key string, maxLen int64) *StreamSender {
	return &StreamSender{client: client, key: key, maxLen: maxLen}
}

func (s *StreamSender) Send(ctx context.Context, env *Envelope) error {
	fields, err := env.Fields()
	if err != nil {
		return fmt.Errorf("encode envelope fields: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: s.key,
		ID:     "*",
		Values: fields,
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis xadd %s: %w", s.key, err)
	}
	return nil
}

func (s *StreamSender) Mode() Mode { return ModeStream }

func (s *StreamSender) Close() error { return nil }
