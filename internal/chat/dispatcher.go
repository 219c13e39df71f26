// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package chat

import (
	"context"
	"fmt"

	"github.com/tomtom215/murmur/internal/gateway"
	"github.com/tomtom215/murmur/internal/logging"
	"github.com/tomtom215/murmur/internal/models"
)

// Publisher hands an event to the fanout layer. It never blocks and never
// fails; see fanout.Publisher.
type Publisher interface {
	Publish(ctx context.Context, ev models.ChatEvent)
}

// Dispatcher delivers events produced on this instance.
type Dispatcher struct {
	emitter   gateway.Emitter
	publisher Publisher
	resolver  RecipientResolver
}

// NewDispatcher creates a dispatcher. resolver may be nil, in which case
// message events must carry explicit recipients.
func NewDispatcher(emitter gateway.Emitter, publisher Publisher, resolver RecipientResolver) *Dispatcher {
	return &Dispatcher{emitter: emitter, publisher: publisher, resolver: resolver}
}

// Dispatch emits ev to local rooms and then publishes it to the other
// instances. It fails only when the event cannot be addressed or is invalid;
// delivery problems are absorbed by the hub and the publisher.
func (d *Dispatcher) Dispatch(ctx context.Context, ev models.ChatEvent) error {
	if !ev.Kind.Valid() {
		return fmt.Errorf("dispatch: %w: %q", models.ErrUnknownKind, ev.Kind)
	}
	ev.Recipients = models.NormalizeRecipients(ev.Recipients)
	if err := resolveRecipients(ctx, d.resolver, &ev); err != nil {
		return fmt.Errorf("dispatch %s: %w", ev.Kind, err)
	}
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("dispatch %s: %w", ev.Kind, err)
	}

	msg := gateway.Message{Type: string(ev.Kind), Data: ev.Payload()}
	if !d.emitter.EmitToUsers(ev.Recipients, msg, gateway.OriginLocal) {
		logging.Ctx(ctx).Warn().
			Str("type", string(ev.Kind)).
			Int("recipients", len(ev.Recipients)).
			Msg("local emission dropped, hub queue full")
	}

	d.publisher.Publish(ctx, ev)
	return nil
}
