package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/vinayprograms/synckit/bus"
	"github.com/vinayprograms/synckit/errors"
	"github.com/vinayprograms/synckit/transport"
)

// Sink receives every inbound application frame after the registered
// handlers, and every reported error.
type Sink interface {
	Deliver(env transport.Envelope) error
	DeliverError(err error) error
}

// BusSink publishes frames to a message bus. Frames go to
// "<prefix>.<type>" or "<prefix>.<type>.<topic>" and errors to
// "<prefix>.errors".
type BusSink struct {
	bus    bus.MessageBus
	prefix string
}

// NewBusSink creates a sink publishing under prefix.
func NewBusSink(b bus.MessageBus, prefix string) (*BusSink, error) {
	if b == nil {
		return nil, fmt.Errorf("bus is required")
	}
	if err := bus.ValidateSubject(prefix); err != nil {
		return nil, fmt.Errorf("invalid prefix %q: %w", prefix, err)
	}
	return &BusSink{bus: b, prefix: prefix}, nil
}

// Subject returns the subject env is published to.
func (s *BusSink) Subject(env transport.Envelope) string {
	subject := s.prefix + "." + bus.SubjectToken(env.Type)
	if topic := env.Topic(); topic != "" {
		subject += "." + bus.SubjectToken(topic)
	}
	return subject
}

// ErrorSubject returns the subject errors are published to.
func (s *BusSink) ErrorSubject() string {
	return s.prefix + ".errors"
}

// Deliver publishes the encoded envelope.
func (s *BusSink) Deliver(env transport.Envelope) error {
	data, err := transport.Encode(env)
	if err != nil {
		return err
	}
	return s.bus.Publish(s.Subject(env), data)
}

// DeliverError publishes err as JSON. Errors outside the taxonomy are
// wrapped first.
func (s *BusSink) DeliverError(err error) error {
	if err == nil {
		return nil
	}
	var syncErr *errors.Error
	if se, ok := errors.AsSyncError(err).(*errors.Error); ok {
		syncErr = se
	} else {
		syncErr = errors.Wrap(err, "channel error")
	}
	data, mErr := json.Marshal(syncErr)
	if mErr != nil {
		return mErr
	}
	return s.bus.Publish(s.ErrorSubject(), data)
}
