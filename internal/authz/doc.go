// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

/*
Package authz decides which authenticated callers may use which REST routes.

It wraps a Casbin RBAC enforcer. Requests are described as (subject, path,
action), where action is read, write or delete derived from the HTTP method
and path patterns use keyMatch2. The built-in policy is:

	p, user,  /api/v1/events,     write
	p, user,  /api/v1/activity/*, read
	p, admin, /api/v1/*,          (read|write|delete)
	g, admin, user

so ordinary users can send events and read activity while dead letter
administration needs the admin role. Roles come from the "roles" claim of
the bearer token; tokens without roles get EnforcerConfig.DefaultRole.

Subjects for individual users are "user:<id>", which keeps user ids from
colliding with role names. A policy file can grant a role to one user:

	g, user:ops-1, admin

Decisions are cached in an LRU for CacheTTL.
*/
package authz
