// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

/*
Package config loads Murmur configuration with koanf.

# Configuration Sources

Sources are layered, later ones overriding earlier ones:

 1. Built-in defaults (defaultConfig)
 2. Optional YAML file, located via CONFIG_PATH or DefaultConfigPaths
 3. Environment variables, mapped explicitly through envMappings

# Environment Variables

Server:
  - HTTP_HOST, HTTP_PORT (default 0.0.0.0:8080)
  - INSTANCE_ID: pin the fanout identity (default: generated per start)

Fanout:
  - FANOUT_MODE: pubsub, stream or broker (default pubsub)
  - FANOUT_CHANNEL: pub/sub channel (default murmur:fanout)
  - FANOUT_STREAM_KEY, FANOUT_STREAM_MAX_LEN: append-only log settings
  - FANOUT_QUEUE_SIZE: background publisher queue (default 1024)
  - FANOUT_LOG_SAMPLE_RATE, FANOUT_LOG_SAMPLE_SEED: failure log sampling
  - FANOUT_DEAD_LETTER_ENABLED, FANOUT_DEAD_LETTER_PATH

Broker:
  - NATS_URL, NATS_EMBEDDED, NATS_STORE_DIR, NATS_STREAM_NAME

Activity batcher:
  - ACTIVITY_KEY (default murmur:active_users)
  - ACTIVITY_BATCH_SIZE (200), ACTIVITY_FLUSH_INTERVAL (1s)
  - ACTIVITY_MAX_KEEP (10000), ACTIVITY_MAX_RETRY (3)
  - ACTIVITY_BACKOFF_BASE (100ms), ACTIVITY_BACKOFF_MAX (2s)
  - ACTIVITY_SHUTDOWN_TIMEOUT (5s)

Security:
  - JWT_SECRET: required, at least 32 characters
  - ALLOWED_ORIGINS: comma-separated websocket/CORS origins
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT
  - WS_CLIENT_RATE, WS_CLIENT_BURST

Redis:
  - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB, REDIS_POOL_SIZE

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER
*/
package config
