// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

// Package logging provides centralized zerolog-based structured logging for Murmur.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Str("instance", id).Msg("Gateway starting")
//	logging.Error().Err(err).Msg("Flush failed")
//
//	// Context-aware logging
//	logging.Ctx(ctx).Info().Str("user_id", uid).Msg("Client authenticated")
//
// Always terminate log chains with .Msg() or .Send(); an unterminated event is
// never written.
//
// # Adapters
//
// Two adapters route third-party logging into the same zerolog stream:
//
//	slogger := logging.NewSlogLogger()          // for sutureslog
//	wmLogger := logging.NewWatermillAdapter()   // for watermill-nats
//
// # Sampling
//
// Failure paths that can fire once per event (publish errors, dropped envelopes)
// go through a SampleGate so that an outage does not flood the log:
//
//	gate := logging.NewSampleGate(0.01, seed)
//	if gate.Allow() {
//	    logging.Warn().Err(err).Msg("Fanout publish failed")
//	}
//
// # Thread Safety
//
// All exported functions are safe for concurrent use. The global logger is
// held in an atomic pointer, so Init and SetLogger can run while other
// goroutines are logging.
package logging
