// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

// Package testinfra starts real dependencies in Docker for integration tests.
//
// Everything here is behind the integration build tag and needs a Docker
// daemon:
//
//	go test -tags integration ./internal/testinfra/...
//
// Unit tests use miniredis and an embedded nats-server instead; these tests
// check the behavior miniredis cannot reproduce, such as MULTI/EXEC against
// a real server and the pub/sub delivery of a real Redis.
//
//	func TestSomething(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    rc, err := testinfra.NewRedisContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, rc.Container)
//	    client := redis.NewClient(&redis.Options{Addr: rc.Addr})
//	}
package testinfra
