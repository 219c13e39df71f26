// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tomtom215/murmur/internal/models"
)

// Writer persists a batch and trims the store to its maxKeep most recent
// members, atomically.
type Writer interface {
	WriteBatch(ctx context.Context, batch []models.ActivityRecord, maxKeep int64) error
}

// RecencyStore is a Writer that can also list the most recent members.
type RecencyStore interface {
	Writer
	Recent(ctx context.Context, limit int64) ([]models.RecentActivity, error)
}

// RedisRecencyStore keeps activity in a sorted set scored by unix ms.
type RedisRecencyStore struct {
	client redis.Cmdable
	key    string
}

func NewRedisRecencyStore(client redis.Cmdable, key string) *RedisRecencyStore {
	return &RedisRecencyStore{client: client, key: key}
}

func (s *RedisRecencyStore) WriteBatch(ctx context.Context, batch []models.ActivityRecord, maxKeep int64) error {
	if len(batch) == 0 {
		return nil
	}
	members := make([]*redis.Z, len(batch))
	for i, rec := range batch {
		members[i] = &redis.Z{Score: float64(rec.ObservedAt.UnixMilli()), Member: rec.UserID}
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, s.key, members...)
		if maxKeep > 0 {
			pipe.ZRemRangeByRank(ctx, s.key, 0, -(maxKeep + 1))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write %d activity records to %s: %w", len(batch), s.key, err)
	}
	return nil
}

func (s *RedisRecencyStore) Recent(ctx context.Context, limit int64) ([]models.RecentActivity, error) {
	if limit <= 0 {
		return []models.RecentActivity{}, nil
	}
	zs, err := s.client.ZRevRangeWithScores(ctx, s.key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read recent activity from %s: %w", s.key, err)
	}
	out := make([]models.RecentActivity, 0, len(zs))
	for _, z := range zs {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		out = append(out, models.RecentActivity{
			UserID:     id,
			LastSeenAt: time.UnixMilli(int64(z.Score)).UTC(),
		})
	}
	return out, nil
}
