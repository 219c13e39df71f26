// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package gateway

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/murmur/internal/logging"
	"github.com/tomtom215/murmur/internal/metrics"
)

// DefaultEmitBuffer is the size of the hub's emission queue.
const DefaultEmitBuffer = 1024

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

type emission struct {
	target *Client
	users  []string
	typ    string
	frame  []byte
	origin string
}

// Emitter delivers a message to the rooms of users.
type Emitter interface {
	EmitToUsers(users []string, msg Message, origin string) bool
}

// Hub owns the rooms and every client's send queue. Rooms and clients are
// only mutated by the RunWithContext goroutine.
type Hub struct {
	clients    map[*Client]struct{}
	rooms      map[string]map[*Client]struct{}
	emit       chan emission
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
	metrics    *metrics.Metrics
	done       chan struct{}
	doneOnce   sync.Once
}

// NewHub creates a hub. m may be nil.
func NewHub(m *metrics.Metrics, emitBuffer int) *Hub {
	if emitBuffer <= 0 {
		emitBuffer = DefaultEmitBuffer
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		emit:       make(chan emission, emitBuffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		metrics:    m,
		done:       make(chan struct{}),
	}
}

// RunWithContext processes lifecycle and emission events until ctx ends,
// then closes every client.
//
// Selection is prioritized: shutdown first, then register/unregister, then
// emissions, so a client registered before an emission was queued always
// receives it.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case e := <-h.emit:
			h.deliver(e)
		}
	}
}

// Serve implements suture.Service.
func (h *Hub) Serve(ctx context.Context) error { return h.RunWithContext(ctx) }

func (h *Hub) String() string { return "gateway-hub" }

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	room := RoomName(c.user.ID)
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	h.metrics.ConnectionOpened()
	logging.Debug().
		Str("room", room).
		Uint64("client_id", c.id).
		Int("total_clients", total).
		Msg("websocket client joined room")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	removed := h.removeLocked(c)
	total := len(h.clients)
	h.mu.Unlock()

	if removed {
		h.metrics.ConnectionClosed()
		logging.Debug().
			Uint64("client_id", c.id).
			Int("total_clients", total).
			Msg("websocket client left room")
	}
}

// removeLocked drops c from its room and closes its send queue. Callers
// hold h.mu.
func (h *Hub) removeLocked(c *Client) bool {
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	room := RoomName(c.user.ID)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	close(c.send)
	return true
}

func (h *Hub) deliver(e emission) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if e.target != nil {
		if _, ok := h.clients[e.target]; !ok {
			return
		}
		select {
		case e.target.send <- e.frame:
		default:
			if h.removeLocked(e.target) {
				h.metrics.RecordSlowClient()
				h.metrics.ConnectionClosed()
			}
		}
		return
	}

	var slow []*Client
	sockets := 0
	seen := make(map[string]struct{}, len(e.users))
	for _, user := range e.users {
		if _, dup := seen[user]; dup {
			continue
		}
		seen[user] = struct{}{}
		for _, c := range sortedMembers(h.rooms[RoomName(user)]) {
			select {
			case c.send <- e.frame:
				sockets++
			default:
				slow = append(slow, c)
			}
		}
	}

	for _, c := range slow {
		if h.removeLocked(c) {
			h.metrics.RecordSlowClient()
			h.metrics.ConnectionClosed()
			logging.Warn().Uint64("client_id", c.id).Str("user_id", c.user.ID).Msg("dropping slow websocket client")
		}
	}
	h.metrics.RecordEmit(e.typ, e.origin, sockets)
}

// sortedMembers returns room members in connection order.
func sortedMembers(members map[*Client]struct{}) []*Client {
	if len(members) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (h *Hub) shutdown(ctx context.Context) {
	h.doneOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	count := len(h.clients)
	for c := range h.clients {
		h.removeLocked(c)
		h.metrics.ConnectionClosed()
	}
	h.mu.Unlock()

	reason := ShutdownReasonContextCanceled
	if ctx.Err() == context.DeadlineExceeded {
		reason = ShutdownReasonContextDeadline
	}
	logging.Info().
		Str("component", "gateway-hub").
		Str("reason", string(reason)).
		Int("clients_closed", count).
		Msg("gateway hub stopped")
}

// EmitToUsers queues msg for every socket in the rooms of users. It never
// blocks; false means the emission queue was full and msg was dropped.
func (h *Hub) EmitToUsers(users []string, msg Message, origin string) bool {
	if len(users) == 0 {
		return true
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		logging.Error().Err(err).Str("type", msg.Type).Msg("failed to encode websocket message")
		return false
	}
	select {
	case h.emit <- emission{users: users, typ: msg.Type, frame: frame, origin: origin}:
		return true
	default:
		h.metrics.RecordDropped("emit_queue_full")
		logging.Warn().Str("type", msg.Type).Msg("emission queue full, dropping message")
		return false
	}
}

// sendTo queues msg for one registered client.
func (h *Hub) sendTo(c *Client, msg Message) bool {
	frame, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	select {
	case h.emit <- emission{target: c, typ: msg.Type, frame: frame, origin: OriginLocal}:
		return true
	default:
		return false
	}
}

// leave unregisters c unless the hub has already stopped.
func (h *Hub) leave(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// join registers c. It fails once the hub has stopped.
func (h *Hub) join(ctx context.Context, c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// ClientCount returns the number of connected sockets.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize returns the number of sockets in the room of userID.
func (h *Hub) RoomSize(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[RoomName(userID)])
}
