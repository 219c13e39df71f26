// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

// Package cache provides a bounded, thread-safe LRU cache with per-entry TTL.
//
// Murmur uses it to remember conversation membership between events so that
// hot conversations do not hit the membership store on every message:
//
//	c := cache.NewLRU[[]string](10000, 30*time.Second)
//	c.Add("conv-1", []string{"alice", "bob"})
//	members, ok := c.Get("conv-1")
//
// Expiration is lazy: expired entries are dropped when read, evicted when the
// cache is full, or swept by CleanupExpired.
package cache
