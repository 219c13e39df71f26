// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tomtom215/murmur/internal/cache"
	"github.com/tomtom215/murmur/internal/models"
)

// ErrUnresolvable is returned when an event has no recipients and none can
// be derived from its payload.
var ErrUnresolvable = errors.New("cannot resolve event recipients")

// RecipientResolver expands a conversation id into the ids of its members.
type RecipientResolver interface {
	Members(ctx context.Context, conversationID string) ([]string, error)
}

// DefaultMembersKeyPrefix prefixes the Redis set holding a conversation's members.
const DefaultMembersKeyPrefix = "murmur:members:"

// RedisResolver reads conversation membership from Redis sets named
// prefix+conversationID.
type RedisResolver struct {
	client redis.Cmdable
	prefix string
}

// NewRedisResolver creates a resolver. An empty prefix selects
// DefaultMembersKeyPrefix.
func NewRedisResolver(client redis.Cmdable, prefix string) *RedisResolver {
	if prefix == "" {
		prefix = DefaultMembersKeyPrefix
	}
	return &RedisResolver{client: client, prefix: prefix}
}

// Members returns the sorted members of a conversation.
func (r *RedisResolver) Members(ctx context.Context, conversationID string) ([]string, error) {
	members, err := r.client.SMembers(ctx, r.prefix+conversationID).Result()
	if err != nil {
		return nil, fmt.Errorf("read members of %s: %w", conversationID, err)
	}
	sort.Strings(members)
	return members, nil
}

// CachedResolver memoizes another resolver for a bounded time.
type CachedResolver struct {
	inner RecipientResolver
	cache *cache.LRU[[]string]
}

// NewCachedResolver wraps inner with an LRU of the given size and TTL.
func NewCachedResolver(inner RecipientResolver, size int, ttl time.Duration) *CachedResolver {
	return &CachedResolver{inner: inner, cache: cache.NewLRU[[]string](size, ttl)}
}

// Members implements RecipientResolver. Errors and empty results are not cached.
func (r *CachedResolver) Members(ctx context.Context, conversationID string) ([]string, error) {
	if members, ok := r.cache.Get(conversationID); ok {
		return members, nil
	}
	members, err := r.inner.Members(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if len(members) > 0 {
		r.cache.Add(conversationID, members)
	}
	return members, nil
}

// Invalidate forgets a conversation, e.g. after a membership change.
func (r *CachedResolver) Invalidate(conversationID string) {
	r.cache.Remove(conversationID)
}

// resolveRecipients fills in recipients for an event that has none. Group
// creation is addressed to the owner and the members; messages go to the
// members of their conversation.
func resolveRecipients(ctx context.Context, resolver RecipientResolver, ev *models.ChatEvent) error {
	if len(ev.Recipients) > 0 {
		return nil
	}
	switch ev.Kind {
	case models.KindGroupCreated:
		if ev.Group != nil {
			ev.Recipients = models.NormalizeRecipients(append([]string{ev.Group.OwnerID}, ev.Group.Members...))
		}
	case models.KindMessage:
		if ev.Message == nil || resolver == nil {
			break
		}
		members, err := resolver.Members(ctx, ev.Message.ConversationID)
		if err != nil {
			return err
		}
		ev.Recipients = models.NormalizeRecipients(members)
	}
	if len(ev.Recipients) == 0 {
		return ErrUnresolvable
	}
	return nil
}
