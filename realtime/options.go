package realtime

import (
	"net/http"

	"github.com/vinayprograms/synckit/clock"
	"github.com/vinayprograms/synckit/credentials"
	"github.com/vinayprograms/synckit/logging"
	"github.com/vinayprograms/synckit/telemetry"
	"github.com/vinayprograms/synckit/transport"
)

// Option customizes a Manager.
type Option func(*Manager)

// WithDialer replaces the default WebSocket dialer.
func WithDialer(d transport.Dialer) Option {
	return func(m *Manager) {
		m.dialer = d
	}
}

// WithClock sets the time source for every timer the manager arms.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithTokenProvider sets where auth tokens come from. Without it the
// configured AuthToken is used.
func WithTokenProvider(p credentials.TokenProvider) Option {
	return func(m *Manager) {
		m.tokens = p
	}
}

// WithLogger sets the logger. It is ignored when logging is disabled.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) {
		m.log = l
	}
}

// WithSink forwards inbound frames and errors to s.
func WithSink(s Sink) Option {
	return func(m *Manager) {
		m.sink = s
	}
}

// WithTracer sets the tracer used for connection spans.
func WithTracer(t *telemetry.Tracer) Option {
	return func(m *Manager) {
		m.tracer = t
	}
}

// WithEventExporter exports state changes and errors.
func WithEventExporter(e telemetry.Exporter) Option {
	return func(m *Manager) {
		m.events = e
	}
}

// WithHeader adds headers to every handshake request.
func WithHeader(h http.Header) Option {
	return func(m *Manager) {
		m.header = h.Clone()
	}
}

// WithIDGenerator replaces uuid message and ping ids. fn may be called
// from timer goroutines and must be safe for concurrent use.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		m.newID = fn
	}
}
