// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package gateway

import (
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/murmur/internal/auth"
	"github.com/tomtom215/murmur/internal/logging"
	"github.com/tomtom215/murmur/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB
	sendBuffer     = 256
)

// clientIDCounter orders clients inside a room by connection time.
var clientIDCounter atomic.Uint64

// ActivityRecorder receives "user became active" signals.
type ActivityRecorder interface {
	Enqueue(userID string, ts time.Time) error
}

// Client is one authenticated websocket connection.
type Client struct {
	id       uint64
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	user     auth.Identity
	limiter  *rate.Limiter
	activity ActivityRecorder
	metrics  *metrics.Metrics
	now      func() time.Time
}

func newClient(hub *Hub, conn *websocket.Conn, user auth.Identity, limiter *rate.Limiter, activity ActivityRecorder, m *metrics.Metrics) *Client {
	return &Client{
		id:       clientIDCounter.Add(1),
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		user:     user,
		limiter:  limiter,
		activity: activity,
		metrics:  m,
		now:      time.Now,
	}
}

// ID returns the client's connection-ordered identifier.
func (c *Client) ID() uint64 { return c.id }

// User returns the authenticated identity.
func (c *Client) User() auth.Identity { return c.user }

// queue places an encoded frame on the send queue without blocking. It is
// only used before registration, when the hub does not own the queue yet.
func (c *Client) queue(msg Message) {
	frame, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logging.Debug().Err(err).Str("user_id", c.user.ID).Msg("unexpected websocket close")
			}
			return
		}
		if c.limiter != nil && !c.limiter.Allow() {
			c.metrics.RecordRateLimited()
			continue
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	switch msg.Type {
	case MessageTypePing:
		now := c.now()
		pong := PongData{TS: now.UnixMilli(), User: c.user.ID}
		var ping PingData
		if len(msg.Data) > 0 && json.Unmarshal(msg.Data, &ping) == nil && ping.TS != nil {
			pong.TS = *ping.TS
		}
		c.reply(Message{Type: MessageTypePong, Data: pong})
		c.recordActivity(now)
	default:
		// Other client frames are not part of the protocol and are ignored.
	}
}

// reply goes through the hub so that it never races with the hub closing
// the send queue.
func (c *Client) reply(msg Message) {
	c.hub.sendTo(c, msg)
}

func (c *Client) recordActivity(ts time.Time) {
	if c.activity == nil {
		return
	}
	if err := c.activity.Enqueue(c.user.ID, ts); err != nil {
		logging.Debug().Err(err).Str("user_id", c.user.ID).Msg("activity not recorded")
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logging.Debug().Err(err).Str("user_id", c.user.ID).Msg("failed to write websocket frame")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start runs the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
