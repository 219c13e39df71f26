// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

/*
Package models defines the data structures shared across Murmur.

Key Components:

  - ChatEvent: a chat-domain event (message or group_created) with its recipients
  - Message, GroupInfo: the two event payloads
  - ActivityRecord, RecentActivity: "user became active" signals and their listing
  - APIResponse: standardized HTTP response wrapper
  - EventRequest: body of the event ingest endpoint

Models carry json tags for the wire and validate tags for go-playground/validator.
Persistence of users, conversations and messages is owned by other services;
these types only describe what flows through the realtime layer.
*/
package models
