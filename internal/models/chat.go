// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// EventKind discriminates ChatEvent payloads.
type EventKind string

const (
	// KindMessage is a new message in a conversation.
	KindMessage EventKind = "message"

	// KindGroupCreated announces a new group conversation to its members.
	KindGroupCreated EventKind = "group_created"
)

// Valid reports whether k is a known kind.
func (k EventKind) Valid() bool {
	return k == KindMessage || k == KindGroupCreated
}

var (
	// ErrUnknownKind is returned for events whose kind is not recognized.
	ErrUnknownKind = errors.New("unknown event kind")

	// ErrNoRecipients is returned for events that target nobody.
	ErrNoRecipients = errors.New("event has no recipients")

	// ErrPayloadMismatch is returned when the payload does not match the kind.
	ErrPayloadMismatch = errors.New("event payload does not match kind")
)

// Message is the payload of a message event.
type Message struct {
	ID             string    `json:"id" validate:"required,max=128"`
	ConversationID string    `json:"conversation_id" validate:"required,max=128"`
	SenderID       string    `json:"sender_id" validate:"required,max=128"`
	Content        string    `json:"content" validate:"max=65536"`
	ContentType    string    `json:"content_type,omitempty" validate:"omitempty,max=64"`
	CreatedAt      time.Time `json:"created_at"`
}

// GroupInfo is the payload of a group_created event.
type GroupInfo struct {
	ID        string    `json:"id" validate:"required,max=128"`
	Name      string    `json:"name" validate:"max=256"`
	OwnerID   string    `json:"owner_id" validate:"required,max=128"`
	Members   []string  `json:"members" validate:"dive,required,max=128"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatEvent is one chat-domain event together with the users it is for.
// Exactly one of Message or Group is set, according to Kind.
type ChatEvent struct {
	Kind       EventKind
	Recipients []string
	Message    *Message
	Group      *GroupInfo
}

// NewMessageEvent builds a message event, normalizing recipients.
func NewMessageEvent(msg *Message, recipients []string) ChatEvent {
	return ChatEvent{Kind: KindMessage, Recipients: NormalizeRecipients(recipients), Message: msg}
}

// NewGroupCreatedEvent builds a group_created event, normalizing recipients.
func NewGroupCreatedEvent(group *GroupInfo, recipients []string) ChatEvent {
	return ChatEvent{Kind: KindGroupCreated, Recipients: NormalizeRecipients(recipients), Group: group}
}

// Validate checks kind, recipients and payload consistency.
func (e *ChatEvent) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	if len(e.Recipients) == 0 {
		return ErrNoRecipients
	}
	switch e.Kind {
	case KindMessage:
		if e.Message == nil || e.Group != nil {
			return fmt.Errorf("%w: message event needs a message payload", ErrPayloadMismatch)
		}
	case KindGroupCreated:
		if e.Group == nil || e.Message != nil {
			return fmt.Errorf("%w: group_created event needs a group payload", ErrPayloadMismatch)
		}
	}
	return nil
}

// Payload returns the kind-specific payload for serialization.
func (e *ChatEvent) Payload() interface{} {
	switch e.Kind {
	case KindMessage:
		return e.Message
	case KindGroupCreated:
		return e.Group
	default:
		return nil
	}
}

// PartitionKey is the key that orders events relative to each other on
// partitioned transports: the conversation for messages, the group for
// group creation.
func (e *ChatEvent) PartitionKey() string {
	switch {
	case e.Kind == KindMessage && e.Message != nil:
		return e.Message.ConversationID
	case e.Kind == KindGroupCreated && e.Group != nil:
		return e.Group.ID
	default:
		return ""
	}
}

// NormalizeRecipients trims ids, drops blanks and duplicates, and keeps the
// first-seen order.
func NormalizeRecipients(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
