// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package config

import "time"

// Config is the full process configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Redis      RedisConfig      `koanf:"redis"`
	NATS       NATSConfig       `koanf:"nats"`
	Fanout     FanoutConfig     `koanf:"fanout"`
	Activity   ActivityConfig   `koanf:"activity"`
	Chat       ChatConfig       `koanf:"chat"`
	Security   SecurityConfig   `koanf:"security"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// InstanceID pins the fanout identity. Leave empty to generate one per
	// process start, which is what multi-instance deployments want.
	InstanceID string `koanf:"instance_id"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// RedisConfig configures the shared Redis client. The fanout subscriber opens
// its own dedicated connection from the same settings.
type RedisConfig struct {
	Addr         string        `koanf:"addr" validate:"required"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// NATSConfig configures the broker transport. Only read in broker mode.
type NATSConfig struct {
	URL            string        `koanf:"url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	StoreDir       string        `koanf:"store_dir"`
	MaxMemory      int64         `koanf:"max_memory"`
	MaxStore       int64         `koanf:"max_store"`
	StreamName     string        `koanf:"stream_name"`
	MaxAge         time.Duration `koanf:"max_age"`
	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`
}

// FanoutConfig selects and tunes the cross-instance publisher.
type FanoutConfig struct {
	// Mode is one of pubsub, stream or broker. Fixed for the process lifetime.
	Mode string `koanf:"mode" validate:"oneof=pubsub stream broker"`

	// Channel is the pub/sub channel name (pubsub mode).
	Channel string `koanf:"channel"`

	// StreamKey and StreamMaxLen configure the append-only log (stream mode).
	// StreamMaxLen 0 disables trimming.
	StreamKey    string `koanf:"stream_key"`
	StreamMaxLen int64  `koanf:"stream_max_len" validate:"min=0"`

	// QueueSize bounds the in-process hand-off between Publish and the
	// background sender.
	QueueSize      int           `koanf:"queue_size" validate:"min=1"`
	PublishTimeout time.Duration `koanf:"publish_timeout"`

	// LogSampleRate is the fraction of per-event failure logs that are written.
	LogSampleRate float64 `koanf:"log_sample_rate" validate:"min=0,max=1"`
	LogSampleSeed int64   `koanf:"log_sample_seed"`

	Retry      RetryConfig      `koanf:"retry"`
	Breaker    BreakerConfig    `koanf:"breaker"`
	DeadLetter DeadLetterConfig `koanf:"dead_letter"`
}

// RetryConfig bounds transport retries.
type RetryConfig struct {
	MaxRetries      int           `koanf:"max_retries" validate:"min=0"`
	InitialInterval time.Duration `koanf:"initial_interval"`
	MaxInterval     time.Duration `koanf:"max_interval"`
}

// BreakerConfig configures the publisher circuit breaker.
type BreakerConfig struct {
	Enabled          bool          `koanf:"enabled"`
	MaxRequests      uint32        `koanf:"max_requests"`
	Interval         time.Duration `koanf:"interval"`
	Timeout          time.Duration `koanf:"timeout"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
}

// DeadLetterConfig configures the local store for envelopes that exhausted retries.
type DeadLetterConfig struct {
	Enabled bool          `koanf:"enabled"`
	Path    string        `koanf:"path"`
	TTL     time.Duration `koanf:"ttl"`
}

// ActivityConfig tunes the write-behind activity batcher.
type ActivityConfig struct {
	Key             string        `koanf:"key" validate:"required"`
	BatchSize       int           `koanf:"batch_size" validate:"min=1"`
	FlushInterval   time.Duration `koanf:"flush_interval"`
	MaxKeep         int64         `koanf:"max_keep" validate:"min=1"`
	MaxRetry        int           `koanf:"max_retry" validate:"min=1"`
	BackoffBase     time.Duration `koanf:"backoff_base"`
	BackoffMax      time.Duration `koanf:"backoff_max"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ChatConfig configures recipient resolution for events that arrive
// without explicit recipients.
type ChatConfig struct {
	// MembersPrefix prefixes the Redis set holding a conversation's members.
	MembersPrefix    string        `koanf:"members_prefix" validate:"required"`
	MembersCacheSize int           `koanf:"members_cache_size" validate:"min=0"`
	MembersCacheTTL  time.Duration `koanf:"members_cache_ttl"`
}

// SecurityConfig holds authentication and HTTP hardening settings.
type SecurityConfig struct {
	JWTSecret      string   `koanf:"jwt_secret"`
	AllowedOrigins []string `koanf:"allowed_origins" validate:"dive,required"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// PolicyPath is an optional Casbin CSV policy for the REST API.
	// DefaultRole applies to tokens without a roles claim.
	PolicyPath  string `koanf:"policy_path"`
	DefaultRole string `koanf:"default_role"`

	// ClientRate and ClientBurst bound inbound websocket frames per connection.
	ClientRate  float64 `koanf:"client_rate" validate:"gt=0"`
	ClientBurst int     `koanf:"client_burst" validate:"min=1"`
}

// SupervisorConfig mirrors supervisor.TreeConfig.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return joinHostPort(s.Host, s.Port)
}
