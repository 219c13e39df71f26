// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package fanout

import (
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Mode
		name    string
		wantErr bool
	}{
		{in: "pubsub", want: ModePubSub, name: "pubsub"},
		{in: "STREAM", want: ModeStream, name: "stream"},
		{in: " broker ", want: ModeBroker, name: "broker"},
		{in: "kafka", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownMode) {
				t.Errorf("ParseMode(%q) error = %v, want ErrUnknownMode", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseMode(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
		if got.String() != tt.name {
			t.Errorf("%v.String() = %q, want %q", tt.in, got.String(), tt.name)
		}
	}
}

func TestModeHasFeed(t *testing.T) {
	t.Parallel()

	if !ModePubSub.HasFeed() || !ModeBroker.HasFeed() {
		t.Error("pubsub and broker should have feeds")
	}
	if ModeStream.HasFeed() {
		t.Error("stream should not have a feed")
	}
}

func TestNewSender(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	transports := Transports{Redis: client, Channel: "murmur:fanout", StreamKey: "murmur:events"}

	for _, mode := range []Mode{ModePubSub, ModeStream} {
		s, err := NewSender(mode, transports)
		if err != nil {
			t.Fatalf("NewSender(%s): %v", mode, err)
		}
		if s.Mode() != mode {
			t.Errorf("NewSender(%s).Mode() = %s", mode, s.Mode())
		}
	}

	if _, err := NewSender(ModeBroker, transports); !errors.Is(err, ErrMissingTransport) {
		t.Errorf("broker without publisher: error = %v, want ErrMissingTransport", err)
	}
	if _, err := NewSender(Mode(42), transports); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("unknown mode: error = %v, want ErrUnknownMode", err)
	}
	if _, err := NewSender(ModePubSub, Transports{}); !errors.Is(err, ErrMissingTransport) {
		t.Errorf("pubsub without redis: error = %v, want ErrMissingTransport", err)
	}
}

func TestNewFeed_StreamHasNone(t *testing.T) {
	t.Parallel()

	if _, err := NewFeed(ModeStream, nil, "", nil, ""); !errors.Is(err, ErrNoFeed) {
		t.Errorf("NewFeed(stream) error = %v, want ErrNoFeed", err)
	}
	if _, err := NewFeed(ModeBroker, nil, "", nil, "CHAT_EVENTS"); !errors.Is(err, ErrMissingTransport) {
		t.Errorf("NewFeed(broker) without jetstream error = %v", err)
	}
}
