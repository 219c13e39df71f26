// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

/*
Package activity batches "user became active" signals into infrequent bulk
writes to a bounded recency store.

Enqueue is cheap and never touches the network. A flush drains the whole
queue and writes it in one MULTI/EXEC pipeline:

	ZADD  <key> <ms> <user> [<ms> <user> ...]
	ZREMRANGEBYRANK <key> 0 -(maxKeep+1)

A failed write is retried with exponential backoff (base*2^attempt, capped).
When every attempt fails the batch goes back to the front of the queue in
its original order, so records are either written or still queued, never
lost while the process lives. The queue has no cap; a long store outage
grows it without bound.

Flushes are triggered by a ticker armed on the first Enqueue, and by the
queue reaching the batch size. At most one flush runs at a time.
*/
package activity
