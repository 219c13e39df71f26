// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package models

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestNormalizeRecipients(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, nil},
		{"keeps order", []string{"u3", "u1", "u2"}, []string{"u3", "u1", "u2"}},
		{"drops duplicates", []string{"u1", "u2", "u1", "u2", "u3"}, []string{"u1", "u2", "u3"}},
		{"drops blanks", []string{" ", "u1", "", " u2 "}, []string{"u1", "u2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeRecipients(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeRecipients(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestChatEvent_Validate(t *testing.T) {
	msg := &Message{ID: "m1", ConversationID: "c1", SenderID: "u1", CreatedAt: time.Now()}
	group := &GroupInfo{ID: "g1", OwnerID: "u1", Members: []string{"u1", "u2"}}

	tests := []struct {
		name    string
		event   ChatEvent
		wantErr error
	}{
		{"valid message", NewMessageEvent(msg, []string{"u1", "u2"}), nil},
		{"valid group", NewGroupCreatedEvent(group, []string{"u1", "u2"}), nil},
		{"unknown kind", ChatEvent{Kind: "typing", Recipients: []string{"u1"}}, ErrUnknownKind},
		{"no recipients", NewMessageEvent(msg, []string{" "}), ErrNoRecipients},
		{"message without payload", ChatEvent{Kind: KindMessage, Recipients: []string{"u1"}}, ErrPayloadMismatch},
		{"group with message payload", ChatEvent{Kind: KindGroupCreated, Recipients: []string{"u1"}, Message: msg}, ErrPayloadMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestChatEvent_PartitionKeyAndPayload(t *testing.T) {
	msg := &Message{ID: "m1", ConversationID: "c42"}
	ev := NewMessageEvent(msg, []string{"u1"})
	if got := ev.PartitionKey(); got != "c42" {
		t.Errorf("PartitionKey() = %q, want c42", got)
	}
	if ev.Payload() != msg {
		t.Error("Payload() should return the message")
	}

	group := &GroupInfo{ID: "g7"}
	gev := NewGroupCreatedEvent(group, []string{"u1"})
	if got := gev.PartitionKey(); got != "g7" {
		t.Errorf("PartitionKey() = %q, want g7", got)
	}
	if gev.Payload() != group {
		t.Error("Payload() should return the group")
	}

	unknown := ChatEvent{Kind: "other"}
	if unknown.Payload() != nil || unknown.PartitionKey() != "" {
		t.Error("unknown kinds have neither payload nor partition key")
	}
}
