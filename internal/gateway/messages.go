// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package gateway

import (
	"github.com/goccy/go-json"

	"github.com/tomtom215/murmur/internal/auth"
)

// Message types
const (
	MessageTypeWelcome      = "welcome"
	MessageTypeAuthError    = "auth_error"
	MessageTypeMessage      = "message"
	MessageTypeGroupCreated = "group_created"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
)

// Emission origins, used as a metrics label.
const (
	OriginLocal  = "local"
	OriginFanout = "fanout"
)

// Message is one websocket frame.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// inboundMessage is a frame received from a client.
type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// WelcomeData is sent once a connection is authenticated.
type WelcomeData struct {
	OK   bool          `json:"ok"`
	User auth.Identity `json:"user"`
}

// AuthErrorData is sent before a rejected connection is closed.
type AuthErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PingData is the optional body of a client ping.
type PingData struct {
	TS *int64 `json:"ts,omitempty"`
}

// PongData answers a ping.
type PongData struct {
	TS   int64  `json:"ts"`
	User string `json:"user"`
}

// RoomName returns the room of a user.
func RoomName(userID string) string {
	return "user:" + userID
}

// IsChatType reports whether t is an event type that can be delivered to rooms.
func IsChatType(t string) bool {
	return t == MessageTypeMessage || t == MessageTypeGroupCreated
}
