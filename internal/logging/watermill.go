// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package logging

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// WatermillAdapter routes Watermill's internal logging into zerolog.
// Watermill's Info level is chatty, so it is demoted to debug.
type WatermillAdapter struct {
	logger zerolog.Logger
}

var _ watermill.LoggerAdapter = (*WatermillAdapter)(nil)

// NewWatermillAdapter returns an adapter tagged with component=watermill.
func NewWatermillAdapter() *WatermillAdapter {
	return &WatermillAdapter{logger: WithComponent("watermill")}
}

// Error logs at error level.
func (w *WatermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	addFields(w.logger.Error().Err(err), fields).Msg(msg)
}

// Info logs at debug level.
func (w *WatermillAdapter) Info(msg string, fields watermill.LogFields) {
	addFields(w.logger.Debug(), fields).Msg(msg)
}

// Debug logs at trace level.
func (w *WatermillAdapter) Debug(msg string, fields watermill.LogFields) {
	addFields(w.logger.Trace(), fields).Msg(msg)
}

// Trace logs at trace level.
func (w *WatermillAdapter) Trace(msg string, fields watermill.LogFields) {
	addFields(w.logger.Trace(), fields).Msg(msg)
}

// With returns an adapter carrying the given fields on every line.
func (w *WatermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := w.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &WatermillAdapter{logger: ctx.Logger()}
}

func addFields(e *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}
