// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/murmur/internal/config"
	"github.com/tomtom215/murmur/internal/fanout"
	"github.com/tomtom215/murmur/internal/logging"
)

// BrokerComponents holds the NATS side of broker mode: the optional embedded
// server, the connection the feed reads from, and the Watermill publisher.
type BrokerComponents struct {
	server    *fanout.EmbeddedServer
	conn      *natsgo.Conn
	js        jetstream.JetStream
	publisher message.Publisher

	mu     sync.Mutex
	closed bool
}

// InitBroker connects to NATS (starting an embedded server first when
// configured), makes sure the chat stream exists and creates the publisher.
// On error everything started so far is torn down again.
func InitBroker(ctx context.Context, cfg *config.Config, name string, logger watermill.LoggerAdapter) (*BrokerComponents, error) {
	c := &BrokerComponents{}
	url := cfg.NATS.URL

	if cfg.NATS.EmbeddedServer {
		srv, err := fanout.StartEmbeddedServer(fanout.ServerConfig{
			Host:      "127.0.0.1",
			Port:      -1,
			StoreDir:  cfg.NATS.StoreDir,
			MaxMemory: cfg.NATS.MaxMemory,
			MaxStore:  cfg.NATS.MaxStore,
		})
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS: %w", err)
		}
		c.server = srv
		url = srv.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	connCfg := fanout.ConnConfig{
		URL:           url,
		Name:          name,
		MaxReconnects: cfg.NATS.MaxReconnects,
		ReconnectWait: cfg.NATS.ReconnectWait,
	}

	nc, err := natsgo.Connect(url, fanout.ConnOptions(connCfg, logger)...)
	if err != nil {
		c.Shutdown(ctx)
		return nil, fmt.Errorf("connect NATS %s: %w", url, err)
	}
	c.conn = nc

	js, err := jetstream.New(nc)
	if err != nil {
		c.Shutdown(ctx)
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	c.js = js

	streamCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := fanout.EnsureStream(streamCtx, js, fanout.StreamConfig{
		Name:            cfg.NATS.StreamName,
		MaxAge:          cfg.NATS.MaxAge,
		DuplicateWindow: 2 * time.Minute,
	}); err != nil {
		c.Shutdown(ctx)
		return nil, fmt.Errorf("ensure stream %s: %w", cfg.NATS.StreamName, err)
	}

	pub, err := fanout.NewBrokerPublisher(connCfg, logger)
	if err != nil {
		c.Shutdown(ctx)
		return nil, err
	}
	c.publisher = pub

	logging.Info().Str("stream", cfg.NATS.StreamName).Msg("Broker transport ready")
	return c, nil
}

// JetStream returns the JetStream context for the feed. Nil-safe.
func (c *BrokerComponents) JetStream() jetstream.JetStream {
	if c == nil {
		return nil
	}
	return c.js
}

// Publisher returns the Watermill publisher. Nil-safe.
func (c *BrokerComponents) Publisher() message.Publisher {
	if c == nil {
		return nil
	}
	return c.publisher
}

// Check reports whether the NATS connection is usable, for readiness.
func (c *BrokerComponents) Check(_ context.Context) error {
	if c == nil || c.conn == nil {
		return errors.New("NATS not configured")
	}
	if status := c.conn.Status(); status != natsgo.CONNECTED {
		return fmt.Errorf("NATS connection %s", status)
	}
	return nil
}

// Shutdown closes the connection and the embedded server. The publisher is
// closed by the fanout sender that owns it. Safe to call more than once
// and on nil.
func (c *BrokerComponents) Shutdown(ctx context.Context) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true

	if c.conn != nil {
		if err := c.conn.Drain(); err != nil {
			logging.Warn().Err(err).Msg("NATS drain failed")
			c.conn.Close()
		}
	}
	if c.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := c.server.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("Embedded NATS shutdown incomplete")
		}
	}
}
