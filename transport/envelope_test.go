package transport

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantType  string
		wantID    string
		wantTS    int64
		wantTopic string
	}{
		{
			name:      "full",
			input:     `{"type":"data_update","payload":{"topic":"shop:42","value":1},"id":"m1","timestamp":1700000000000}`,
			wantType:  "data_update",
			wantID:    "m1",
			wantTS:    1700000000000,
			wantTopic: "shop:42",
		},
		{
			name:     "type only",
			input:    `{"type":"pong"}`,
			wantType: "pong",
		},
		{
			name:     "numeric id",
			input:    `{"type":"pong","id":17}`,
			wantType: "pong",
			wantID:   "17",
		},
		{
			name:     "fractional timestamp",
			input:    `{"type":"user_typing","timestamp":1700000000000.5}`,
			wantType: "user_typing",
			wantTS:   1700000000000,
		},
		{
			name:     "array payload has no topic",
			input:    `{"type":"batch_update","payload":[{"topic":"x"}]}`,
			wantType: "batch_update",
		},
		{
			name:     "null fields",
			input:    `{"type":"error","payload":null,"id":null,"timestamp":null}`,
			wantType: "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.input))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if env.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", env.Type, tt.wantType)
			}
			if env.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", env.ID, tt.wantID)
			}
			if env.Timestamp != tt.wantTS {
				t.Errorf("Timestamp = %d, want %d", env.Timestamp, tt.wantTS)
			}
			if env.Topic() != tt.wantTopic {
				t.Errorf("Topic() = %q, want %q", env.Topic(), tt.wantTopic)
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	inputs := []string{
		``,
		`not json`,
		`[1,2]`,
		`"string"`,
		`null`,
		`{}`,
		`{"type":""}`,
		`{"type":5}`,
		`{"type":null}`,
		`{"type":"x","id":true}`,
		`{"type":"x","timestamp":"soon"}`,
		`{"type":"x","payload":{broken}`,
	}
	for _, in := range inputs {
		if _, err := Decode([]byte(in)); !errors.Is(err, ErrMalformed) {
			t.Errorf("Decode(%q) error = %v, want ErrMalformed", in, err)
		}
	}
}

func TestNewEnvelope(t *testing.T) {
	at := time.UnixMilli(1700000000123)

	env, err := NewEnvelope(TypeDataUpdate, map[string]int{"id": 1}, "abc", at)
	if err != nil {
		t.Fatalf("NewEnvelope() error = %v", err)
	}
	if string(env.Payload) != `{"id":1}` {
		t.Errorf("Payload = %s", env.Payload)
	}
	if env.Timestamp != 1700000000123 {
		t.Errorf("Timestamp = %d", env.Timestamp)
	}
	if !env.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", env.Time(), at)
	}

	raw, err := NewEnvelope(TypeAuth, json.RawMessage(`{"token":"t"}`), "", time.Time{})
	if err != nil {
		t.Fatalf("NewEnvelope(raw) error = %v", err)
	}
	if string(raw.Payload) != `{"token":"t"}` || raw.Timestamp != 0 {
		t.Errorf("raw envelope = %+v", raw)
	}
	if !raw.Time().IsZero() {
		t.Error("Time() should be zero without timestamp")
	}

	if _, err := NewEnvelope(TypeDataUpdate, []byte(`{bad`), "", at); err == nil {
		t.Error("expected error for invalid JSON bytes")
	}
	if _, err := NewEnvelope(TypeDataUpdate, make(chan int), "", at); err == nil {
		t.Error("expected error for unencodable payload")
	}

	empty, err := NewEnvelope(TypePing, nil, "p1", at)
	if err != nil || empty.Payload != nil {
		t.Errorf("nil payload envelope = %+v, %v", empty, err)
	}
}

func TestEncode(t *testing.T) {
	data, err := Encode(Envelope{Type: TypePing, ID: "p1"})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if string(data) != `{"type":"ping","id":"p1"}` {
		t.Errorf("Encode() = %s", data)
	}
	if _, err := Encode(Envelope{}); !errors.Is(err, ErrMalformed) {
		t.Errorf("Encode(empty) error = %v, want ErrMalformed", err)
	}
}

func TestEncodeDecode(t *testing.T) {
	env, _ := NewEnvelope(TypeSubscribe, TopicPayload{Topic: "shop:7"}, "s1", time.UnixMilli(5))
	data, err := Encode(env)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != TypeSubscribe || got.Topic() != "shop:7" || got.ID != "s1" || got.Timestamp != 5 {
		t.Errorf("Decode(Encode()) = %+v", got)
	}
}

func TestIsControl(t *testing.T) {
	for _, typ := range []string{TypePing, TypePong, TypeAuth, TypeSubscribe, TypeUnsubscribe} {
		if !IsControl(typ) {
			t.Errorf("IsControl(%q) = false", typ)
		}
	}
	for _, typ := range []string{TypeDataUpdate, TypeError, TypeRateLimit, "custom"} {
		if IsControl(typ) {
			t.Errorf("IsControl(%q) = true", typ)
		}
	}
}

func TestTopic_NonObjectPayload(t *testing.T) {
	for _, payload := range []string{`"x"`, `42`, `{"topic":5}`} {
		env := Envelope{Type: "x", Payload: json.RawMessage(payload)}
		if got := env.Topic(); got != "" {
			t.Errorf("Topic() for %s = %q, want empty", payload, got)
		}
	}
	if !strings.Contains(TypeConflictDetected, "conflict") {
		t.Error("unexpected constant value")
	}
}
