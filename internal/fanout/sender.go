// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package fanout

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-redis/redis/v8"
)

// Sender delivers one envelope to the transport of its mode.
// Implementations are used from a single goroutine.
type Sender interface {
	Send(ctx context.Context, env *Envelope) error
	Mode() Mode
	Close() error
}

// Transports holds the clients a Sender may need. Only the fields used by
// the selected mode must be set.
type Transports struct {
	Redis        redis.Cmdable
	Channel      string
	StreamKey    string
	StreamMaxLen int64
	Broker       message.Publisher
}

// NewSender builds the Sender for mode. Adding a Mode without a case here
// is a compile-visible gap: the default branch rejects it.
func NewSender(mode Mode, t Transports) (Sender, error) {
	switch mode {
	case ModePubSub:
		if t.Redis == nil || t.Channel == "" {
			return nil, fmt.Errorf("%w: pubsub needs a redis client and channel", ErrMissingTransport)
		}
		return NewPubSubSender(t.Redis, t.Channel), nil
	case ModeStream:
		if t.Redis == nil || t.StreamKey == "" {
			return nil, fmt.Errorf("%w: stream needs a redis client and stream key", ErrMissingTransport)
		}
		return NewStreamSender(t.Redis, t.StreamKey, t.StreamMaxLen), nil
	case ModeBroker:
		if t.Broker == nil {
			return nil, fmt.Errorf("%w: broker needs a message publisher", ErrMissingTransport)
		}
		return NewBrokerSender(t.Broker), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
}
