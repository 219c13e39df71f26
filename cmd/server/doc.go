// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

/*
Package main is the entry point for the Murmur server.

Murmur delivers chat events to websocket clients across a fleet of gateway
instances and records user activity in a Redis sorted set through a
write-behind batcher.

# Application Architecture

Long-running components run under a Suture v4 supervisor tree:

	RootSupervisor ("murmur")
	├── MessagingSupervisor ("messaging-layer")
	│   ├── Gateway Hub (rooms and client send queues)
	│   ├── Fanout Publisher (cross-instance sends)
	│   ├── Activity Batcher (periodic flush to Redis)
	│   └── Fanout Consumer (peer events to local rooms; pubsub and broker modes)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (websocket, REST, metrics)

Startup order:

 1. Configuration: Koanf v2 (defaults, optional YAML file, environment)
 2. Logging: zerolog
 3. Instance identity and Prometheus registry
 4. Redis clients (a dedicated one for the pub/sub feed)
 5. NATS connection and JetStream stream (broker mode; optionally embedded)
 6. Fanout sender, retry and circuit breaker, optional dead letter store
 7. Gateway hub, fanout consumer, activity batcher
 8. JWT authentication, chat dispatcher, HTTP router
 9. Supervisor tree

# Fanout Modes

FANOUT_MODE selects how events reach other instances:

  - pubsub: Redis PUBLISH on FANOUT_CHANNEL; every instance subscribes
  - stream: Redis XADD to FANOUT_STREAM_KEY; write-only, no live feed
  - broker: NATS JetStream through Watermill; every instance reads an
    ordered consumer

# Configuration

Required:

	JWT_SECRET       HS256 signing secret, at least 32 characters

Common:

	HTTP_PORT        listen port (default 8080)
	REDIS_ADDR       host:port (default 127.0.0.1:6379)
	FANOUT_MODE      pubsub, stream or broker (default pubsub)
	NATS_URL         broker mode server URL
	NATS_EMBEDDED    run an in-process NATS server (broker mode)
	ALLOWED_ORIGINS  comma separated websocket and CORS origins
	LOG_LEVEL        trace, debug, info, warn, error

A YAML file (CONFIG_PATH, ./config.yaml or /etc/murmur/config.yaml) can
set every key; environment variables win.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server stops accepting
connections, the publisher drains its queue, and the batcher makes a final
flush bounded by ACTIVITY_SHUTDOWN_TIMEOUT.

# Example Usage

	export JWT_SECRET=$(openssl rand -base64 48)
	export REDIS_ADDR=redis:6379
	./murmur

Broker mode with an embedded NATS server:

	export FANOUT_MODE=broker NATS_EMBEDDED=true
	./murmur
*/
package main
