// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/murmur/internal/auth"
	"github.com/tomtom215/murmur/internal/logging"
	"github.com/tomtom215/murmur/internal/metrics"
)

// HandlerConfig configures the websocket endpoint.
type HandlerConfig struct {
	// AllowedOrigins lists accepted Origin headers. "*" accepts any; an
	// empty list accepts everything, including requests without Origin.
	AllowedOrigins []string

	// ClientRate and ClientBurst limit inbound frames per connection.
	// A zero rate disables the limit.
	ClientRate  float64
	ClientBurst int
}

// Handler upgrades HTTP requests and admits authenticated clients.
type Handler struct {
	hub      *Hub
	auth     auth.Authenticator
	activity ActivityRecorder
	cfg      HandlerConfig
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewHandler creates the endpoint. activity and m may be nil.
func NewHandler(hub *Hub, authenticator auth.Authenticator, activity ActivityRecorder, cfg HandlerConfig, m *metrics.Metrics) *Handler {
	h := &Handler{
		hub:      hub,
		auth:     authenticator,
		activity: activity,
		cfg:      cfg,
		metrics:  m,
		now:      time.Now,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      newOriginChecker(cfg.AllowedOrigins),
		HandshakeTimeout: 10 * time.Second,
	}
	return h
}

// ServeHTTP authenticates after the upgrade so that failures can be
// reported to the client as an auth_error frame.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	var user auth.Identity
	if token == "" {
		err = auth.ErrMissingToken
	} else {
		user, err = h.auth.Authenticate(r.Context(), token)
	}
	if err != nil {
		h.reject(conn, err)
		return
	}

	client := newClient(h.hub, conn, user, h.newLimiter(), h.activity, h.metrics)
	client.queue(Message{Type: MessageTypeWelcome, Data: WelcomeData{OK: true, User: user}})

	if !h.hub.join(r.Context(), client) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	client.recordActivity(h.now())
	logging.Ctx(r.Context()).Debug().
		Str("user_id", logging.SanitizeUserID(user.ID)).
		Uint64("client_id", client.id).
		Msg("websocket client authenticated")

	client.Start()
}

func (h *Handler) newLimiter() *rate.Limiter {
	if h.cfg.ClientRate <= 0 {
		return nil
	}
	burst := h.cfg.ClientBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(h.cfg.ClientRate), burst)
}

// reject sends auth_error and closes with a policy violation. There is no
// retry on the same connection.
func (h *Handler) reject(conn *websocket.Conn, cause error) {
	code := auth.ErrorCode(cause)
	h.metrics.RecordAuthFailure(code)
	logging.Debug().Str("code", code).Err(cause).Msg("websocket authentication failed")

	deadline := time.Now().Add(writeWait)
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.WriteJSON(Message{
		Type: MessageTypeAuthError,
		Data: AuthErrorData{Code: code, Message: authErrorMessage(cause)},
	})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code),
		deadline)
	_ = conn.Close()
}

func authErrorMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "authentication token required"
	case errors.Is(err, auth.ErrTokenExpired):
		return "authentication token expired"
	default:
		return "authentication token invalid"
	}
}
