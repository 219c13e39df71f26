// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package fanout

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/murmur/internal/models"
)

// Envelope is the cross-instance wire form of a chat event.
type Envelope struct {
	Type       string          `json:"type"`
	Recipients []string        `json:"recipients"`
	Payload    json.RawMessage `json:"payload"`
	Source     string          `json:"source"`
	TS         int64           `json:"ts,omitempty"`

	// partitionKey orders envelopes on partitioned transports. It is not
	// serialized; Decode recovers it from the payload.
	partitionKey string
}

// wireEnvelope is the lenient decode shape. ts is optional and may arrive
// as any JSON number, so it is parsed separately.
type wireEnvelope struct {
	Type       string          `json:"type"`
	Recipients []string        `json:"recipients"`
	Payload    json.RawMessage `json:"payload"`
	Source     string          `json:"source"`
	TS         json.RawMessage `json:"ts"`
}

// partitionPayload holds the payload fields that carry the ordering key.
type partitionPayload struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
}

// Stream field names.
const (
	FieldType       = "type"
	FieldRecipients = "recipients"
	FieldPayload    = "payload"
	FieldSource     = "source"
	FieldTS         = "ts"
)

// NewEnvelope wraps ev for publication by source at time now.
func NewEnvelope(ev models.ChatEvent, source string, now time.Time) (*Envelope, error) {
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	payload, err := json.Marshal(ev.Payload())
	if err != nil {
		return nil, fmt.Errorf("%w: marshal payload: %v", ErrInvalidEvent, err)
	}
	return &Envelope{
		Type:         string(ev.Kind),
		Recipients:   ev.Recipients,
		Payload:      payload,
		Source:       source,
		TS:           now.UnixMilli(),
		partitionKey: ev.PartitionKey(),
	}, nil
}

// PartitionKey returns the ordering key: the conversation for messages, the
// group for group creation. It is "" when the payload does not name one.
func (e *Envelope) PartitionKey() string { return e.partitionKey }

// SetPartitionKey overrides the ordering key, e.g. with the one recorded
// when an envelope was dead-lettered.
func (e *Envelope) SetPartitionKey(key string) { e.partitionKey = key }

// UnmarshalJSON reads the wire form. A ts that is not a usable number is
// treated as absent.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Envelope{
		Type:       w.Type,
		Recipients: w.Recipients,
		Payload:    w.Payload,
		Source:     w.Source,
		TS:         parseTS(string(w.TS)),
	}
	e.partitionKey = derivePartitionKey(e.Type, e.Payload)
	return nil
}

// parseTS accepts integer, fractional and exponent forms, optionally quoted,
// truncated to whole milliseconds.
func parseTS(raw string) int64 {
	raw = strings.Trim(strings.TrimSpace(raw), `"`)
	if raw == "" || raw == "null" {
		return 0
	}
	if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ts
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0
	}
	return int64(f)
}

func derivePartitionKey(eventType string, payload json.RawMessage) string {
	if len(payload) == 0 {
		return ""
	}
	var p partitionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return ""
	}
	switch models.EventKind(eventType) {
	case models.KindMessage:
		return p.ConversationID
	case models.KindGroupCreated:
		return p.ID
	default:
		return ""
	}
}

// Encode returns the JSON form.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a JSON envelope. Unknown fields are ignored; type,
// recipients and payload are required.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if err := env.check(); err != nil {
		return nil, err
	}
	return &env, nil
}

func (e *Envelope) check() error {
	if e.Type == "" {
		return fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}
	if len(e.Recipients) == 0 {
		return fmt.Errorf("%w: no recipients", ErrMalformedEnvelope)
	}
	if p := bytes.TrimSpace(e.Payload); len(p) == 0 || bytes.Equal(p, []byte("null")) {
		return fmt.Errorf("%w: missing payload", ErrMalformedEnvelope)
	}
	return nil
}

// Fields returns the flat field-list encoding used by the stream mode, as
// alternating names and values.
func (e *Envelope) Fields() ([]interface{}, error) {
	recipients, err := json.Marshal(e.Recipients)
	if err != nil {
		return nil, fmt.Errorf("marshal recipients: %w", err)
	}
	fields := []interface{}{
		FieldType, e.Type,
		FieldRecipients, string(recipients),
		FieldPayload, string(e.Payload),
		FieldSource, e.Source,
	}
	if e.TS != 0 {
		fields = append(fields, FieldTS, strconv.FormatInt(e.TS, 10))
	}
	return fields, nil
}

// DecodeFields parses the field-list encoding. Unknown fields are ignored.
func DecodeFields(values map[string]interface{}) (*Envelope, error) {
	str := func(k string) string {
		if v, ok := values[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}

	env := &Envelope{
		Type:    str(FieldType),
		Source:  str(FieldSource),
		Payload: json.RawMessage(str(FieldPayload)),
	}
	if raw := str(FieldRecipients); raw != "" {
		if err := json.Unmarshal([]byte(raw), &env.Recipients); err != nil {
			return nil, fmt.Errorf("%w: recipients: %v", ErrMalformedEnvelope, err)
		}
	}
	env.TS = parseTS(str(FieldTS))
	if !json.Valid(env.Payload) {
		return nil, fmt.Errorf("%w: payload is not valid JSON", ErrMalformedEnvelope)
	}
	env.partitionKey = derivePartitionKey(env.Type, env.Payload)
	if err := env.check(); err != nil {
		return nil, err
	}
	return env, nil
}
