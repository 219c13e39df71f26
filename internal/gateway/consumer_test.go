// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/murmur/internal/fanout"
	"github.com/tomtom215/murmur/internal/identity"
	"github.com/tomtom215/murmur/internal/logging"
	"github.com/tomtom215/murmur/internal/metrics"
	"github.com/tomtom215/murmur/internal/models"
)

type emitted struct {
	users  []string
	msg    Message
	origin string
}

type fakeEmitter struct {
	mu    sync.Mutex
	calls []emitted
	full  bool
}

func (e *fakeEmitter) EmitToUsers(users []string, msg Message, origin string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.full {
		return false
	}
	e.calls = append(e.calls, emitted{users: users, msg: msg, origin: origin})
	return true
}

func (e *fakeEmitter) Calls() []emitted {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]emitted(nil), e.calls...)
}

// chanFeed is a Feed backed by a channel the test controls.
type chanFeed struct {
	ch     chan []byte
	err    error
	closed chan struct{}
	once   sync.Once
}

func newChanFeed() *chanFeed {
	return &chanFeed{ch: make(chan []byte, 16), closed: make(chan struct{})}
}

func (f *chanFeed) Subscribe(context.Context) (<-chan []byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ch, nil
}

func (f *chanFeed) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

var (
	selfID  = mustIdentity("node_a-1-1700000000000-aaaaaaaa")
	otherID = mustIdentity("node_b-2-1700000000000-bbbbbbbb")
)

func mustIdentity(s string) identity.Instance {
	id, err := identity.Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

func encodedEnvelope(t *testing.T, source identity.Instance, conv string, recipients ...string) []byte {
	t.Helper()
	ev := models.NewMessageEvent(&models.Message{ID: "m-" + conv, ConversationID: conv, SenderID: "alice", Content: "hi"}, recipients)
	env, err := fanout.NewEnvelope(ev, source.String(), time.UnixMilli(1))
	if err != nil {
		t.Fatal(err)
	}
	data, err := env.Encode()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestConsumer_SelfOriginEmitsNothing(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 5, 50} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			t.Parallel()

			m := metrics.New(prometheus.NewRegistry())
			emitter := &fakeEmitter{}
			c := NewConsumer(newChanFeed(), emitter, selfID, ConsumerConfig{Metrics: m})

			for i := 0; i < n; i++ {
				if c.Handle(encodedEnvelope(t, selfID, fmt.Sprintf("c%d", i), "bob")) {
					t.Fatal("self-origin envelope was emitted")
				}
			}
			if got := len(emitter.Calls()); got != 0 {
				t.Errorf("emissions = %d, want 0", got)
			}
			if got := testutil.ToFloat64(m.FanoutDiscarded.WithLabelValues(DiscardSelf)); got != float64(n) {
				t.Errorf("self discards = %v, want %d", got, n)
			}
		})
	}
}

func TestConsumer_EmitsForeignEnvelopeOnce(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())
	emitter := &fakeEmitter{}
	c := NewConsumer(newChanFeed(), emitter, selfID, ConsumerConfig{Metrics: m})

	if !c.Handle(encodedEnvelope(t, otherID, "c1", "bob", "carol")) {
		t.Fatal("foreign envelope not emitted")
	}

	calls := emitter.Calls()
	if len(calls) != 1 {
		t.Fatalf("emissions = %d, want 1", len(calls))
	}
	call := calls[0]
	if call.origin != OriginFanout || call.msg.Type != MessageTypeMessage {
		t.Errorf("emission = %+v", call)
	}
	if len(call.users) != 2 || call.users[0] != "bob" || call.users[1] != "carol" {
		t.Errorf("users = %v", call.users)
	}
	raw, ok := call.msg.Data.(json.RawMessage)
	if !ok {
		t.Fatalf("data is %T, want json.RawMessage", call.msg.Data)
	}
	var msg models.Message
	if err := json.Unmarshal(raw, &msg); err != nil || msg.ConversationID != "c1" {
		t.Errorf("payload = %s (%v)", raw, err)
	}
	if got := testutil.ToFloat64(m.FanoutReceived.WithLabelValues(MessageTypeMessage)); got != 1 {
		t.Errorf("received = %v, want 1", got)
	}
}

func TestConsumer_DropsGarbage(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())
	emitter := &fakeEmitter{}
	c := NewConsumer(newChanFeed(), emitter, selfID, ConsumerConfig{Metrics: m, LogGate: logging.NewSampleGate(0, 1)})

	inputs := map[string]string{
		DiscardMalformed:   `{"type":`,
		DiscardUnknownType: `{"type":"typing","recipients":["bob"],"payload":{},"source":"node_b"}`,
	}
	for reason, in := range inputs {
		if c.Handle([]byte(in)) {
			t.Errorf("%s input was emitted", reason)
		}
		if got := testutil.ToFloat64(m.FanoutDiscarded.WithLabelValues(reason)); got != 1 {
			t.Errorf("%s discards = %v, want 1", reason, got)
		}
	}
	if len(emitter.Calls()) != 0 {
		t.Error("garbage produced emissions")
	}
}

func TestConsumer_ServeSurvivesGarbage(t *testing.T) {
	t.Parallel()

	feed := newChanFeed()
	emitter := &fakeEmitter{}
	c := NewConsumer(feed, emitter, selfID, ConsumerConfig{LogGate: logging.NewSampleGate(0, 1)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx) }()

	feed.ch <- []byte("garbage")
	feed.ch <- []byte(`{"type":"message"}`)
	feed.ch <- encodedEnvelope(t, selfID, "c0", "bob")
	feed.ch <- encodedEnvelope(t, otherID, "c1", "bob")

	deadline := time.Now().Add(2 * time.Second)
	for len(emitter.Calls()) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("foreign envelope not emitted after garbage")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v, want context.Canceled", err)
	}
	select {
	case <-feed.closed:
	default:
		t.Error("feed not closed on shutdown")
	}
}

func TestConsumer_ServeReportsClosedFeed(t *testing.T) {
	t.Parallel()

	feed := newChanFeed()
	c := NewConsumer(feed, &fakeEmitter{}, selfID, ConsumerConfig{})
	close(feed.ch)

	if err := c.Serve(context.Background()); !errors.Is(err, ErrFeedClosed) {
		t.Errorf("Serve = %v, want ErrFeedClosed", err)
	}
}

func TestConsumer_ServeSubscribeError(t *testing.T) {
	t.Parallel()

	feed := newChanFeed()
	feed.err = errors.New("redis unreachable")
	c := NewConsumer(feed, &fakeEmitter{}, selfID, ConsumerConfig{})

	if err := c.Serve(context.Background()); err == nil {
		t.Error("expected subscribe error")
	}
}

func TestConsumer_FullHubIsCounted(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())
	c := NewConsumer(newChanFeed(), &fakeEmitter{full: true}, selfID, ConsumerConfig{Metrics: m})
	if c.Handle(encodedEnvelope(t, otherID, "c1", "bob")) {
		t.Error("emission into a full hub reported as emitted")
	}
	if got := testutil.ToFloat64(m.FanoutDiscarded.WithLabelValues(DiscardQueueFull)); got != 1 {
		t.Errorf("queue full discards = %v, want 1", got)
	}
}
