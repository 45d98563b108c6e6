// OpenTelemetry tracing of connection attempts.
package telemetry

import (
	"context"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer wraps OpenTelemetry tracing with channel-specific helpers.
type Tracer struct {
	tracer trace.Tracer
	debug  bool // When true, include payload sizes and ids in spans
}

var (
	globalTracer *Tracer
	tracerMu     sync.RWMutex
)

// SetGlobalTracer sets the global tracer instance.
func SetGlobalTracer(t *Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	globalTracer = t
}

// GetTracer returns the global tracer, or a no-op tracer if not set.
func GetTracer() *Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if globalTracer == nil {
		return &Tracer{tracer: noop.NewTracerProvider().Tracer("")}
	}
	return globalTracer
}

// NewTracer creates a tracer from the global provider.
func NewTracer(name string, debug bool) *Tracer {
	return &Tracer{
		tracer: otel.Tracer(name),
		debug:  debug,
	}
}

// NewTracerFromProvider creates a tracer from an explicit provider.
func NewTracerFromProvider(tp trace.TracerProvider, name string, debug bool) *Tracer {
	return &Tracer{
		tracer: tp.Tracer(name),
		debug:  debug,
	}
}

// SetDebug enables or disables debug attributes.
func (t *Tracer) SetDebug(debug bool) {
	t.debug = debug
}

// Debug returns whether debug mode is enabled.
func (t *Tracer) Debug() bool {
	return t.debug
}

// StartSpan starts a new span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// --- Connection Spans ---

// ConnectSpanOptions describes how a connection attempt ended.
type ConnectSpanOptions struct {
	Outcome  string // connected, failed, timeout, canceled
	State    string // state entered after the attempt
	Flushed  int
	Replayed int
}

// StartConnectSpan starts a span covering one connection attempt, from
// dial to open or failure.
func (t *Tracer) StartConnectSpan(ctx context.Context, url string, attempt int, epoch uint64) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "realtime.connect", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.Int("realtime.attempt", attempt),
		attribute.Int64("realtime.epoch", int64(epoch)),
	)
	if t.debug {
		span.SetAttributes(attribute.String("realtime.url", url))
	}
	return ctx, span
}

// EndConnectSpan ends a connection span.
func (t *Tracer) EndConnectSpan(span trace.Span, opts ConnectSpanOptions, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("realtime.outcome", opts.Outcome),
	}
	if opts.State != "" {
		attrs = append(attrs, attribute.String("realtime.state", opts.State))
	}
	if opts.Outcome == "connected" {
		attrs = append(attrs,
			attribute.Int("realtime.flushed", opts.Flushed),
			attribute.Int("realtime.replayed", opts.Replayed),
		)
	}
	span.SetAttributes(attrs...)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

// --- Context Propagation ---

// InjectHeader writes the trace context of ctx into an HTTP header, so the
// server can join the handshake to the client's trace.
func InjectHeader(ctx context.Context, header http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))
}

// ExtractHeader reads trace context from an HTTP header.
func ExtractHeader(ctx context.Context, header http.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(header))
}
