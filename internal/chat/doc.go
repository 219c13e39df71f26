// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

// Package chat turns chat-domain events into deliveries.
//
// A Dispatcher is the single entry point for events produced on this
// instance. For every event it:
//
//  1. Resolves recipients when the event carries none
//  2. Validates the event
//  3. Emits it to the rooms of local recipients through the gateway hub
//  4. Hands it to the fanout publisher for every other instance
//
// Local emission always happens before the publish call, so a slow or broken
// fanout transport never delays users connected to this instance.
//
// Recipient resolution is delegated to a RecipientResolver. The persistence
// layer that owns conversations and groups is outside this service; it
// mirrors membership into Redis sets which RedisResolver reads, and
// CachedResolver keeps hot conversations in memory.
package chat
