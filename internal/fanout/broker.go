// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package fanout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/murmur/internal/models"
)

// Subject layout on the broker.
const (
	SubjectPrefix       = "chat."
	SubjectMessage      = SubjectPrefix + string(models.KindMessage) + "."
	SubjectGroupCreated = SubjectPrefix + string(models.KindGroupCreated) + "."
)

// Message metadata keys set on broker messages.
const (
	MetadataPartitionKey = "partition_key"
	MetadataEventType    = "event_type"
	MetadataSource       = "source"
)

// StreamSubjects returns the subjects the chat stream must capture.
func StreamSubjects() []string {
	return []string{SubjectMessage + ">", SubjectGroupCreated + ">"}
}

// Subject returns the broker subject for an envelope type and partition key.
// Characters with meaning in NATS subjects are replaced so that each key
// maps to exactly one subject token.
func Subject(eventType, key string) string {
	return SubjectPrefix + subjectToken(eventType) + "." + subjectToken(key)
}

func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// BrokerSender publishes envelopes through a Watermill publisher. Events
// sharing a partition key land on the same subject and keep their order.
type BrokerSender struct {
	publisher message.Publisher
}

func NewBrokerSender(publisher message.Publisher) *BrokerSender {
	return &BrokerSender{publisher: publisher}
}

// Send publishes env on the subject of its partition key. ctx is attached to
// the message and checked before publishing; once the JetStream publish has
// started it is bounded by the publisher's RetryAttempts and RetryWait.
func (s *BrokerSender) Send(ctx context.Context, env *Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	key := env.PartitionKey()
	if key == "" {
		key = env.Recipients[0]
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)
	msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	msg.Metadata.Set(MetadataPartitionKey, key)
	msg.Metadata.Set(MetadataEventType, env.Type)
	msg.Metadata.Set(MetadataSource, env.Source)

	subject := Subject(env.Type, key)
	if err := s.publisher.Publish(subject, msg); err != nil {
		return fmt.Errorf("broker publish %s: %w", subject, err)
	}
	return nil
}

func (s *BrokerSender) Mode() Mode { return ModeBroker }

func (s *BrokerSender) Close() error {
	return s.publisher.Close()
}

// ConnConfig holds the NATS connection settings shared by publisher and feed.
type ConnConfig struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

// ConnOptions returns the nats.go options used for every Murmur connection.
func ConnOptions(cfg ConnConfig, logger watermill.LoggerAdapter) []natsgo.Option {
	return []natsgo.Option{
		natsgo.Name(cfg.Name),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
		natsgo.ErrorHandler(func(_ *natsgo.Conn, sub *natsgo.Subscription, err error) {
			fields := watermill.LogFields{}
			if sub != nil {
				fields["subject"] = sub.Subject
			}
			logger.Error("NATS error", err, fields)
		}),
	}
}

// NewBrokerPublisher creates the Watermill JetStream publisher. The stream
// is expected to exist already (see EnsureStream).
func NewBrokerPublisher(cfg ConnConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: ConnOptions(cfg, logger),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return pub, nil
}
