// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

/*
Package gateway serves realtime websocket connections for chat users.

# Connection Lifecycle

	Connecting ──auth ok──► Authenticated ──► Active ──► Disconnected
	     │
	     └──auth failed──► Rejected ──► Disconnected

The token is read from the "token" query parameter, or from an
"Authorization: Bearer" header. A rejected connection receives one
auth_error frame followed by a policy-violation close.

An authenticated socket joins exactly one room, user:<id>. A user with
several devices has several sockets in the same room.

# Messages

All frames are JSON objects of the form {"type": ..., "data": ...}.

Server to client:

	welcome        {"ok": true, "user": {"id": "42", "name": "Ada"}}
	auth_error     {"code": "invalid_token", "message": "..."}
	message        chat message payload
	group_created  group payload
	pong           {"ts": 1700000000000, "user": "42"}

Client to server:

	ping           {"ts": 1700000000000}   ts is optional

Pings and successful connects are recorded as user activity.

# Fanout

Consumer reads the cross-instance feed and emits envelopes from other
instances to the local rooms of their recipients. Envelopes that this
instance published itself were already emitted locally and are dropped.
*/
package gateway
