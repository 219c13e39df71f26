// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the process-wide logger.
type Config struct {
	// Level is one of trace, debug, info, warn, error, fatal, panic or disabled.
	Level string
	// Format is json (default) or console.
	Format string
	// Caller adds file:line to every entry.
	Caller bool
	// Fields are attached to every entry, e.g. the instance id.
	Fields map[string]string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig is what the package uses before Init runs.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Output: os.Stderr}
}

var current atomic.Pointer[zerolog.Logger]

//nolint:gochecknoinits // logging must work before Init() is called
func init() {
	Init(DefaultConfig())
}

// Init rebuilds the global logger. It may be called again at any time.
func Init(cfg Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "time"
	zerolog.MessageFieldName = "message"

	lc := zerolog.New(out).With().Timestamp()
	for k, v := range cfg.Fields {
		lc = lc.Str(k, v)
	}
	if cfg.Caller {
		lc = lc.Caller()
	}
	l := lc.Logger()
	current.Store(&l)
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	return *current.Load()
}

// SetLogger swaps the global logger. Tests use it to capture output.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func SetLogger(l zerolog.Logger) {
	current.Store(&l)
}

// With starts a child logger context.
//
//	hubLog := logging.With().Str("component", "hub").Logger()
func With() zerolog.Context { return current.Load().With() }

// Debug starts a debug entry.
func Debug() *zerolog.Event { return current.Load().Debug() }

// Info starts an info entry.
//
//	logging.Info().Str("mode", "pubsub").Msg("Fanout publisher ready")
func Info() *zerolog.Event { return current.Load().Info() }

// Warn starts a warning entry.
func Warn() *zerolog.Event { return current.Load().Warn() }

// Error starts an error entry.
func Error() *zerolog.Event { return current.Load().Error() }

// Fatal starts a fatal entry; the process exits after Msg.
func Fatal() *zerolog.Event { return current.Load().Fatal() }

// NewTestLogger writes to w with timestamps, for capturing output in tests.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
