// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MinJWTSecretLength is the shortest accepted HMAC secret.
const MinJWTSecretLength = 32

var validate = validator.New()

// Validate checks field-level constraints declared in struct tags and then
// the cross-field rules that tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateFanout(); err != nil {
		return err
	}
	return c.validateActivity()
}

func (c *Config) validateSecurity() error {
	if len(c.Security.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", MinJWTSecretLength)
	}
	return nil
}

func (c *Config) validateFanout() error {
	f := c.Fanout
	switch f.Mode {
	case "pubsub":
		if f.Channel == "" {
			return fmt.Errorf("FANOUT_CHANNEL is required in pubsub mode")
		}
	case "stream":
		if f.StreamKey == "" {
			return fmt.Errorf("FANOUT_STREAM_KEY is required in stream mode")
		}
	case "broker":
		if c.NATS.StreamName == "" {
			return fmt.Errorf("NATS_STREAM_NAME is required in broker mode")
		}
		if !c.NATS.EmbeddedServer && c.NATS.URL == "" {
			return fmt.Errorf("NATS_URL is required in broker mode without the embedded server")
		}
	}
	if f.Retry.MaxInterval < f.Retry.InitialInterval {
		return fmt.Errorf("fanout retry max interval (%v) must not be below the initial interval (%v)",
			f.Retry.MaxInterval, f.Retry.InitialInterval)
	}
	if f.DeadLetter.Enabled && f.DeadLetter.Path == "" {
		return fmt.Errorf("FANOUT_DEAD_LETTER_PATH is required when dead letters are enabled")
	}
	return nil
}

func (c *Config) validateActivity() error {
	a := c.Activity
	if a.FlushInterval <= 0 {
		return fmt.Errorf("ACTIVITY_FLUSH_INTERVAL must be positive, got %v", a.FlushInterval)
	}
	if a.BackoffBase <= 0 {
		return fmt.Errorf("ACTIVITY_BACKOFF_BASE must be positive, got %v", a.BackoffBase)
	}
	if a.BackoffMax < a.BackoffBase {
		return fmt.Errorf("ACTIVITY_BACKOFF_MAX (%v) must not be below ACTIVITY_BACKOFF_BASE (%v)", a.BackoffMax, a.BackoffBase)
	}
	if a.ShutdownTimeout < 0 {
		return fmt.Errorf("ACTIVITY_SHUTDOWN_TIMEOUT must not be negative")
	}
	return nil
}
