// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package fanout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/murmur/internal/models"
)

var errTransport = errors.New("transport down")

func testMessageEvent(conv string, recipients ...string) models.ChatEvent {
	return models.NewMessageEvent(&models.Message{
		ID:             "m-" + conv,
		ConversationID: conv,
		SenderID:       "alice",
		Content:        "hello",
		CreatedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, recipients)
}

// fakeSender records envelopes and fails the first failFirst calls.
type fakeSender struct {
	mu        sync.Mutex
	mode      Mode
	failFirst int
	calls     int
	sent      []*Envelope
	panicOn   string
	block     chan struct{}
	closed    bool
}

func (f *fakeSender) Send(_ context.Context, env *Envelope) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panicOn != "" && env.PartitionKey() == f.panicOn {
		panic("boom")
	}
	if f.calls <= f.failFirst {
		return errTransport
	}
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeSender) Mode() Mode {
	if f.mode == 0 {
		return ModePubSub
	}
	return f.mode
}

func (f *fakeSender) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSender) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSender) Sent() []*Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Envelope, len(f.sent))
	copy(out, f.sent)
	return out
}
