// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package main

import (
	"context"

	"github.com/go-redis/redis/v8"

	"github.com/tomtom215/murmur/internal/config"
)

// newRedisClient builds a client from cfg. poolSize overrides the configured
// pool size when positive; the fanout feed uses a client of its own with a
// small pool because a subscription pins a connection.
func newRedisClient(cfg config.RedisConfig, poolSize int) *redis.Client {
	if poolSize <= 0 {
		poolSize = cfg.PoolSize
	}
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     poolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

// redisCheck is the readiness probe for client.
func redisCheck(client redis.Cmdable) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
