// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

/*
Package fanout propagates chat events between Murmur instances.

# Architecture

	chat.Dispatcher
	      │ Publish(event)            never blocks, never errors
	      ▼
	  Publisher ── queue ──► background task (Serve)
	                               │
	                        ResilientSender        retry, breaker, metrics, dead letters
	                               │
	              ┌────────────────┼────────────────┐
	        PubSubSender     StreamSender      BrokerSender
	        Redis PUBLISH    Redis XADD        Watermill → NATS JetStream

Every envelope carries the publishing instance's identity in its source
field. Consumers (see the gateway package) read a Feed and drop envelopes
they published themselves, since those were already delivered locally.

# Modes

The strategy is chosen once at startup from a closed set:

	pubsub  at-most-once, no persistence, per-publisher ordering only
	stream  append-only Redis stream; a write-only sink with no feed
	broker  JetStream subjects chat.message.<conversation> and
	        chat.group_created.<group>, ordered per subject

# Wire Format

	{"type":"message","recipients":["u1","u2"],"payload":{...},"source":"host-12-1700000000000-ab12cd34","ts":1700000000123}

Decoders ignore unknown fields and treat ts as optional. The stream mode
writes the same schema as a flat field list, with recipients and payload
JSON-encoded.
*/
package fanout
