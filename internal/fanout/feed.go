// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package fanout

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/nats-io/nats.go/jetstream"
)

const feedBuffer = 256

// Feed delivers raw envelopes published by every instance, this one
// included. The returned channel is closed when ctx ends or the feed is
// closed.
type Feed interface {
	Subscribe(ctx context.Context) (<-chan []byte, error)
	Close() error
}

// NewFeed returns the feed matching mode. Stream mode has none.
func NewFeed(mode Mode, redisSub RedisSubscriber, channel string, js jetstream.JetStream, streamName string) (Feed, error) {
	switch mode {
	case ModePubSub:
		if redisSub == nil {
			return nil, fmt.Errorf("%w: pubsub feed needs a redis client", ErrMissingTransport)
		}
		return NewRedisFeed(redisSub, channel), nil
	case ModeBroker:
		if js == nil {
			return nil, fmt.Errorf("%w: broker feed needs a jetstream context", ErrMissingTransport)
		}
		return NewJetStreamFeed(js, streamName), nil
	case ModeStream:
		return nil, ErrNoFeed
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
}

// RedisSubscriber is satisfied by *redis.Client.
type RedisSubscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// RedisFeed reads the pub/sub channel on its own connection, separate from
// the one used for publishing.
type RedisFeed struct {
	client  RedisSubscriber
	channel string

	mu     sync.Mutex
	pubsub *redis.PubSub
}

func NewRedisFeed(client RedisSubscriber, channel string) *RedisFeed {
	return &RedisFeed{client: client, channel: channel}
}

func (f *RedisFeed) Subscribe(ctx context.Context) (<-chan []byte, error) {
	ps := f.client.Subscribe(ctx, f.channel)
	// Wait for the subscription confirmation so that nothing published
	// after Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", f.channel, err)
	}

	f.mu.Lock()
	f.pubsub = ps
	f.mu.Unlock()

	in := ps.Channel()
	out := make(chan []byte, feedBuffer)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (f *RedisFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pubsub == nil {
		return nil
	}
	err := f.pubsub.Close()
	f.pubsub = nil
	return err
}

// JetStreamFeed reads the chat stream through an ordered consumer that
// starts at new messages. Each instance creates its own consumer, so all
// of them see every event.
type JetStreamFeed struct {
	js     jetstream.JetStream
	stream string

	mu sync.Mutex
	cc jetstream.ConsumeContext
}

func NewJetStreamFeed(js jetstream.JetStream, stream string) *JetStreamFeed {
	return &JetStreamFeed{js: js, stream: stream}
}

func (f *JetStreamFeed) Subscribe(ctx context.Context) (<-chan []byte, error) {
	cons, err := f.js.OrderedConsumer(ctx, f.stream, jetstream.OrderedConsumerConfig{
		FilterSubjects: StreamSubjects(),
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create ordered consumer on %s: %w", f.stream, err)
	}

	out := make(chan []byte, feedBuffer)
	stopped := make(chan struct{})
	var sendMu sync.RWMutex
	var outClosed bool

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		sendMu.RLock()
		defer sendMu.RUnlock()
		if outClosed {
			return
		}
		select {
		case out <- msg.Data():
		case <-stopped:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", f.stream, err)
	}

	f.mu.Lock()
	f.cc = cc
	f.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			cc.Stop()
		case <-cc.Closed():
		}
		close(stopped)
		// A handler may still be running; it returns once stopped is closed.
		sendMu.Lock()
		outClosed = true
		close(out)
		sendMu.Unlock()
	}()
	return out, nil
}

func (f *JetStreamFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cc != nil {
		f.cc.Stop()
		f.cc = nil
	}
	return nil
}
