// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package fanout

import (
	"context"
	"testing"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/murmur/internal/logging"
)

const testStream = "CHAT_EVENTS"

func startTestBroker(t *testing.T) (*EmbeddedServer, jetstream.JetStream) {
	t.Helper()
	if testing.Short() {
		t.Skip("embedded NATS server skipped in short mode")
	}

	srv, err := StartEmbeddedServer(ServerConfig{Host: "127.0.0.1", Port: -1, StoreDir: t.TempDir()})
	if err != nil {
		t.Fatalf("StartEmbeddedServer: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	nc, err := natsgo.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("jetstream: %v", err)
	}
	return srv, js
}

func TestEnsureStream_Idempotent(t *testing.T) {
	_, js := startTestBroker(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		stream, err := EnsureStream(ctx, js, StreamConfig{Name: testStream, MaxAge: time.Hour})
		if err != nil {
			t.Fatalf("EnsureStream #%d: %v", i+1, err)
		}
		info, err := stream.Info(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(info.Config.Subjects) != 2 {
			t.Errorf("subjects = %v", info.Config.Subjects)
		}
	}
}

func TestBroker_EveryFeedSeesEveryEvent(t *testing.T) {
	srv, js := startTestBroker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := EnsureStream(ctx, js, StreamConfig{Name: testStream, MaxAge: time.Hour}); err != nil {
		t.Fatal(err)
	}

	feedA := NewJetStreamFeed(js, testStream)
	feedB := NewJetStreamFeed(js, testStream)
	chA, err := feedA.Subscribe(ctx)
	if err != nil {
		t.Fatalf("feed A: %v", err)
	}
	defer feedA.Close()
	chB, err := feedB.Subscribe(ctx)
	if err != nil {
		t.Fatalf("feed B: %v", err)
	}
	defer feedB.Close()

	pub, err := NewBrokerPublisher(ConnConfig{
		URL:           srv.ClientURL(),
		Name:          "murmur-test",
		MaxReconnects: -1,
		ReconnectWait: 100 * time.Millisecond,
	}, logging.NewWatermillAdapter())
	if err != nil {
		t.Fatalf("NewBrokerPublisher: %v", err)
	}
	sender := NewBrokerSender(pub)
	defer sender.Close()

	for _, conv := range []string{"c1", "c2", "c3"} {
		env, err := NewEnvelope(testMessageEvent(conv, "bob"), "node-a", time.Now())
		if err != nil {
			t.Fatal(err)
		}
		if err := sender.Send(ctx, env); err != nil {
			t.Fatalf("Send %s: %v", conv, err)
		}
	}

	for name, ch := range map[string]<-chan []byte{"A": chA, "B": chB} {
		got := make([]string, 0, 3)
		for len(got) < 3 {
			select {
			case data := <-ch:
				env, err := Decode(data)
				if err != nil {
					t.Fatalf("feed %s: %v", name, err)
				}
				if env.Source != "node-a" {
					t.Errorf("feed %s: source = %q", name, env.Source)
				}
				got = append(got, string(env.Payload))
			case <-ctx.Done():
				t.Fatalf("feed %s received %d of 3 events", name, len(got))
			}
		}
	}
}

func TestJetStreamFeed_ClosesOnCancel(t *testing.T) {
	_, js := startTestBroker(t)
	if _, err := EnsureStream(context.Background(), js, StreamConfig{Name: testStream}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	feed := NewJetStreamFeed(js, testStream)
	ch, err := feed.Subscribe(ctx)
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("feed channel not closed after cancel")
	}
}
