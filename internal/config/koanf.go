// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/murmur/config.yaml",
	"/etc/murmur/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Redis: RedisConfig{
			Addr:         "127.0.0.1:6379",
			PoolSize:     20,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			StoreDir:      "/data/nats/jetstream",
			MaxMemory:     256 << 20,
			MaxStore:      1 << 30,
			StreamName:    "CHAT_EVENTS",
			MaxAge:        24 * time.Hour,
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Fanout: FanoutConfig{
			Mode:           "pubsub",
			Channel:        "murmur:fanout",
			StreamKey:      "murmur:events",
			StreamMaxLen:   100000,
			QueueSize:      1024,
			PublishTimeout: 5 * time.Second,
			LogSampleRate:  0.01,
			LogSampleSeed:  0,
			Retry: RetryConfig{
				MaxRetries:      3,
				InitialInterval: 50 * time.Millisecond,
				MaxInterval:     1 * time.Second,
			},
			Breaker: BreakerConfig{
				Enabled:          true,
				MaxRequests:      3,
				Interval:         30 * time.Second,
				Timeout:          10 * time.Second,
				FailureThreshold: 5,
			},
			DeadLetter: DeadLetterConfig{
				Enabled: false,
				Path:    "/data/deadletter",
				TTL:     7 * 24 * time.Hour,
			},
		},
		Activity: ActivityConfig{
			Key:             "murmur:active_users",
			BatchSize:       200,
			FlushInterval:   1 * time.Second,
			MaxKeep:         10000,
			MaxRetry:        3,
			BackoffBase:     100 * time.Millisecond,
			BackoffMax:      2 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Chat: ChatConfig{
			MembersPrefix:    "murmur:members:",
			MembersCacheSize: 10000,
			MembersCacheTTL:  30 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins:  []string{},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			DefaultRole:     "user",
			ClientRate:      20,
			ClientBurst:     40,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5.0,
			FailureDecay:     30.0,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Load builds the configuration from layered sources, lowest priority first:
//  1. Built-in defaults
//  2. Optional YAML file (CONFIG_PATH or DefaultConfigPaths)
//  3. Environment variables
func Load() (*Config, error) {
	return load(findConfigFile())
}

// LoadFile is Load with an explicit config file path. An empty path skips
// the file layer.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"security.allowed_origins",
}

// processSliceFields splits comma-separated env values for slice settings.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored so that the process environment cannot
// leak into configuration by accident.
var envMappings = map[string]string{
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"instance_id":           "server.instance_id",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"redis_addr":          "redis.addr",
	"redis_password":      "redis.password",
	"redis_db":            "redis.db",
	"redis_pool_size":     "redis.pool_size",
	"redis_dial_timeout":  "redis.dial_timeout",
	"redis_read_timeout":  "redis.read_timeout",
	"redis_write_timeout": "redis.write_timeout",

	"nats_url":            "nats.url",
	"nats_embedded":       "nats.embedded_server",
	"nats_store_dir":      "nats.store_dir",
	"nats_max_memory":     "nats.max_memory",
	"nats_max_store":      "nats.max_store",
	"nats_stream_name":    "nats.stream_name",
	"nats_max_age":        "nats.max_age",
	"nats_max_reconnects": "nats.max_reconnects",
	"nats_reconnect_wait": "nats.reconnect_wait",

	"fanout_mode":                "fanout.mode",
	"fanout_channel":             "fanout.channel",
	"fanout_stream_key":          "fanout.stream_key",
	"fanout_stream_max_len":      "fanout.stream_max_len",
	"fanout_queue_size":          "fanout.queue_size",
	"fanout_publish_timeout":     "fanout.publish_timeout",
	"fanout_log_sample_rate":     "fanout.log_sample_rate",
	"fanout_log_sample_seed":     "fanout.log_sample_seed",
	"fanout_retry_max":           "fanout.retry.max_retries",
	"fanout_retry_interval":      "fanout.retry.initial_interval",
	"fanout_retry_max_interval":  "fanout.retry.max_interval",
	"fanout_breaker_enabled":     "fanout.breaker.enabled",
	"fanout_breaker_threshold":   "fanout.breaker.failure_threshold",
	"fanout_breaker_timeout":     "fanout.breaker.timeout",
	"fanout_dead_letter_enabled": "fanout.dead_letter.enabled",
	"fanout_dead_letter_path":    "fanout.dead_letter.path",
	"fanout_dead_letter_ttl":     "fanout.dead_letter.ttl",

	"activity_key":              "activity.key",
	"activity_batch_size":       "activity.batch_size",
	"activity_flush_interval":   "activity.flush_interval",
	"activity_max_keep":         "activity.max_keep",
	"activity_max_retry":        "activity.max_retry",
	"activity_backoff_base":     "activity.backoff_base",
	"activity_backoff_max":      "activity.backoff_max",
	"activity_shutdown_timeout": "activity.shutdown_timeout",

	"chat_members_prefix":     "chat.members_prefix",
	"chat_members_cache_size": "chat.members_cache_size",
	"chat_members_cache_ttl":  "chat.members_cache_ttl",

	"jwt_secret":          "security.jwt_secret",
	"allowed_origins":     "security.allowed_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"authz_policy_path":   "security.policy_path",
	"authz_default_role":  "security.default_role",
	"ws_client_rate":      "security.client_rate",
	"ws_client_burst":     "security.client_burst",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
