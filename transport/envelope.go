package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Reserved envelope types.
const (
	TypePing        = "ping"
	TypePong        = "pong"
	TypeAuth        = "auth"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"

	TypeDataUpdate  = "data_update"
	TypeDataCreate  = "data_create"
	TypeDataDelete  = "data_delete"
	TypeBatchUpdate = "batch_update"

	TypeConflictDetected = "conflict_detected"
	TypeConflictResolved = "conflict_resolved"
	TypeVersionMismatch  = "version_mismatch"

	TypeUserJoined = "user_joined"
	TypeUserLeft   = "user_left"
	TypeUserTyping = "user_typing"

	TypeError     = "error"
	TypeRateLimit = "rate_limit"
)

// IsControl reports whether t is a channel-maintenance type rather than
// application traffic.
func IsControl(t string) bool {
	switch t {
	case TypePing, TypePong, TypeAuth, TypeSubscribe, TypeUnsubscribe:
		return true
	}
	return false
}

// ErrMalformed is returned by Decode for frames that are not valid envelopes.
var ErrMalformed = errors.New("malformed frame")

// Envelope is one frame on the wire:
//
//	{"type": "...", "payload": ..., "id": "...", "timestamp": 1700000000000}
//
// Timestamp is milliseconds since the Unix epoch.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	ID        string          `json:"id,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// NewEnvelope builds an envelope, encoding payload as JSON. A payload that
// is already a json.RawMessage is used as is.
func NewEnvelope(msgType string, payload interface{}, id string, at time.Time) (Envelope, error) {
	env := Envelope{Type: msgType, ID: id}
	if !at.IsZero() {
		env.Timestamp = at.UnixMilli()
	}
	switch p := payload.(type) {
	case nil:
	case json.RawMessage:
		env.Payload = p
	case []byte:
		if !json.Valid(p) {
			return Envelope{}, fmt.Errorf("payload is not valid JSON")
		}
		env.Payload = json.RawMessage(p)
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode payload: %w", err)
		}
		env.Payload = data
	}
	return env, nil
}

// Encode serialises the envelope.
func Encode(env Envelope) ([]byte, error) {
	if env.Type == "" {
		return nil, fmt.Errorf("%w: empty type", ErrMalformed)
	}
	return json.Marshal(env)
}

type wireEnvelope struct {
	Type      json.RawMessage `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	ID        json.RawMessage `json:"id"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// Decode parses a frame. It fails with ErrMalformed when the frame is not a
// JSON object or its type is missing, empty or not a string. A numeric id is
// accepted and kept in its decimal form.
func Decode(data []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var env Envelope
	if len(w.Type) == 0 || bytes.Equal(w.Type, []byte("null")) {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	if err := json.Unmarshal(w.Type, &env.Type); err != nil {
		return Envelope{}, fmt.Errorf("%w: type is not a string", ErrMalformed)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: empty type", ErrMalformed)
	}

	if len(w.Payload) > 0 && !bytes.Equal(w.Payload, []byte("null")) {
		env.Payload = w.Payload
	}

	if len(w.ID) > 0 && !bytes.Equal(w.ID, []byte("null")) {
		if err := json.Unmarshal(w.ID, &env.ID); err != nil {
			var n json.Number
			if err := json.Unmarshal(w.ID, &n); err != nil {
				return Envelope{}, fmt.Errorf("%w: id must be a string or number", ErrMalformed)
			}
			env.ID = n.String()
		}
	}

	if len(w.Timestamp) > 0 && !bytes.Equal(w.Timestamp, []byte("null")) {
		var n json.Number
		if err := json.Unmarshal(w.Timestamp, &n); err != nil {
			return Envelope{}, fmt.Errorf("%w: timestamp must be a number", ErrMalformed)
		}
		if ms, err := n.Int64(); err == nil {
			env.Timestamp = ms
		} else if f, err := strconv.ParseFloat(n.String(), 64); err == nil {
			env.Timestamp = int64(f)
		}
	}

	return env, nil
}

// Topic returns payload.topic when the payload is an object carrying a
// string topic field.
func (e Envelope) Topic() string {
	if len(e.Payload) == 0 || e.Payload[0] != '{' {
		return ""
	}
	var p struct {
		Topic string `json:"topic"`
	}
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return ""
	}
	return p.Topic
}

// Time returns the envelope timestamp, or the zero time when unset.
func (e Envelope) Time() time.Time {
	if e.Timestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(e.Timestamp)
}

// TopicPayload is the payload of subscribe and unsubscribe frames.
type TopicPayload struct {
	Topic string `json:"topic"`
}

// AuthPayload is the payload of the auth frame.
type AuthPayload struct {
	Token string `json:"token"`
}

// ErrorPayload is the payload of server error frames.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RateLimitPayload is the payload of server rate_limit frames.
type RateLimitPayload struct {
	Limit      int   `json:"limit"`
	WindowMs   int64 `json:"windowMs"`
	RetryAfter int64 `json:"retryAfterMs,omitempty"`
}
