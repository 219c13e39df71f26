// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

/*
Package supervisor runs Murmur's long-lived components under a suture v4 tree.

# Overview

Services are grouped in two layers so that a crash in one does not take the
other down:

	RootSupervisor ("murmur")
	├── MessagingSupervisor ("messaging-layer")
	│   ├── gateway-hub
	│   ├── fanout-publisher
	│   ├── fanout-consumer (pubsub and broker modes)
	│   └── activity-batcher
	└── APISupervisor ("api-layer")
	    └── http-server

Each component implements suture.Service directly: Serve(ctx) blocks until
ctx is cancelled and returns ctx.Err(), so the supervisor does not restart it
during shutdown. Any other return, including a nil error, is a failure and
the component is restarted with backoff. The fanout consumer relies on this:
a feed that ends because Redis or NATS dropped the subscription comes back
as soon as the transport does.

# Logging

Supervisor events are logged through sutureslog with the slog handler from
internal/logging, so they share the zerolog output of the rest of the
process:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    FailureThreshold: cfg.Supervisor.FailureThreshold,
	    FailureDecay:     cfg.Supervisor.FailureDecay,
	    FailureBackoff:   cfg.Supervisor.FailureBackoff,
	    ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	tree.AddMessagingService(hub)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	err = tree.Serve(ctx)
*/
package supervisor
