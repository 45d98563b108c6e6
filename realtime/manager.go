package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/vinayprograms/synckit/backoff"
	"github.com/vinayprograms/synckit/clock"
	"github.com/vinayprograms/synckit/credentials"
	"github.com/vinayprograms/synckit/dispatch"
	"github.com/vinayprograms/synckit/errors"
	"github.com/vinayprograms/synckit/heartbeat"
	"github.com/vinayprograms/synckit/logging"
	"github.com/vinayprograms/synckit/metrics"
	"github.com/vinayprograms/synckit/queue"
	"github.com/vinayprograms/synckit/ratelimit"
	"github.com/vinayprograms/synckit/subscription"
	"github.com/vinayprograms/synckit/telemetry"
	"github.com/vinayprograms/synckit/transport"
)

// sendResource is the limiter bucket for application frames.
const sendResource = "send"

// controlHeadroom is the room the connection's send buffer keeps beyond a
// full queue flush for auth, subscribe replay and heartbeat frames.
const controlHeadroom = 1024

// Manager owns one logical channel to the server. It connects, keeps the
// connection alive, reconnects with backoff, queues outbound frames while
// offline and replays topic subscriptions after every connect.
//
// All state lives behind a single mutex. Callbacks registered by the
// application run after the mutex is released.
type Manager struct {
	cfg    Config
	policy backoff.Policy
	dialer transport.Dialer
	clock  clock.Clock
	tokens credentials.TokenProvider
	log    *logging.Logger
	sink   Sink
	tracer *telemetry.Tracer
	events telemetry.Exporter
	header http.Header
	newID  func() string

	handlers   *dispatch.Registry
	dispatcher *dispatch.Dispatcher
	subs       *subscription.Registry
	metrics    *metrics.Collector
	monitor    *heartbeat.Monitor
	limiter    *ratelimit.MemoryLimiter

	mu           sync.Mutex
	state        State
	epoch        uint64
	attempt      int
	conn         transport.Conn
	queue        *queue.Queue
	throttled    bool
	connectTimer clock.Timer
	retryTimer   clock.Timer
	drainTimer   clock.Timer
	attemptCtx   context.Context
	cancel       context.CancelFunc
	span         trace.Span
	stateCbs     []func(from, to State)
	errorCbs     []func(error)
	pending      []func()
}

// New creates a manager in the closed state. Nothing is dialed until
// Connect.
func New(cfg Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:      cfg,
		policy:   cfg.Policy(),
		newID:    uuid.NewString,
		handlers: dispatch.NewRegistry(),
		subs:     subscription.NewRegistry(),
		queue:    queue.New(cfg.QueueSize),
		state:    StateClosed,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.clock == nil {
		m.clock = clock.Real()
	}
	if m.dialer == nil {
		wsCfg := transport.DefaultWebSocketConfig()
		wsCfg.HandshakeTimeout = cfg.TimeoutInterval
		wsCfg.SendBufferSize = cfg.QueueSize + controlHeadroom
		m.dialer = transport.NewWebSocketDialer(wsCfg)
	}
	if m.tokens == nil {
		m.tokens = credentials.StaticToken(cfg.AuthToken)
	}
	switch {
	case !cfg.EnableLogging:
		m.log = logging.Discard()
	case m.log == nil:
		m.log = logging.New().WithComponent("realtime")
	}
	if m.tracer == nil {
		m.tracer = telemetry.GetTracer()
	}
	if m.events == nil {
		m.events = telemetry.NewNoopExporter()
	}
	if cfg.EnableMetrics {
		m.metrics = metrics.NewCollector(m.clock)
	}

	m.dispatcher = dispatch.New(m.handlers)
	m.limiter = ratelimit.NewMemoryLimiter(m.clock)
	m.applyConfiguredThrottleLocked()

	monitor, err := heartbeat.NewMonitor(cfg.HeartbeatConfig(), m.clock, m.sendPing)
	if err != nil {
		return nil, fmt.Errorf("heartbeat: %w", err)
	}
	monitor.SetIDGenerator(m.newID)
	monitor.OnUnresponsive(m.onUnresponsive)
	monitor.OnPingError(func(err error) {
		m.log.Debug("ping_failed", map[string]interface{}{"error": err.Error()})
	})
	m.monitor = monitor

	return m, nil
}

// --- Public API ---

// Connect starts connecting. It is a no-op while connecting, connected or
// waiting to reconnect. From the error state it starts over with a fresh
// retry budget.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.state.Active() {
		m.mu.Unlock()
		return
	}
	if m.state == StateClosed && m.cfg.ResetMetricsOnConnect {
		m.metrics.Reset()
	}
	m.attempt = 0
	m.startAttemptLocked()
	m.unlockAndRun()
}

// Disconnect closes the connection with a normal close code and cancels
// every pending timer. Queued messages and subscriptions are kept for the
// next Connect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	stopTimer(&m.retryTimer)
	m.endSpanLocked(telemetry.ConnectSpanOptions{Outcome: "canceled", State: StateClosed.String()}, nil)
	m.teardownLocked(transport.CloseNormal, "client disconnect")
	m.setStateLocked(StateClosed)
	m.unlockAndRun()
}

// Send writes a frame when connected and queues it otherwise. Invalid
// input and oversized frames are rejected with an error; oversized frames
// are also reported through OnError.
func (m *Manager) Send(msgType string, payload interface{}) error {
	if msgType == "" {
		return errors.InvalidInput("message type is required")
	}
	id := m.newID()
	now := m.clock.Now()
	env, err := transport.NewEnvelope(msgType, payload, id, now)
	if err != nil {
		return errors.InvalidInput("cannot encode payload", errors.WithCause(err), errors.WithMessageID(id))
	}
	data, err := transport.Encode(env)
	if err != nil {
		return errors.InvalidInput("cannot encode frame", errors.WithCause(err), errors.WithMessageID(id))
	}

	m.mu.Lock()
	if len(data) > m.cfg.MaxMessageSize {
		tooLarge := errors.New(errors.ErrCodeMessageTooLarge,
			fmt.Sprintf("frame of %d bytes exceeds limit of %d", len(data), m.cfg.MaxMessageSize),
			errors.WithMessageID(id), errors.WithEpoch(m.epoch))
		m.log.FrameDropped("too_large", len(data))
		m.reportLocked(tooLarge)
		m.unlockAndRun()
		return tooLarge
	}

	msg := &queue.Message{
		ID:         id,
		Type:       msgType,
		Payload:    env.Payload,
		Data:       data,
		EnqueuedAt: now,
	}
	if m.state == StateConnected && m.queue.Len() == 0 && m.allowSendLocked() {
		if err := m.conn.Write(data); err != nil {
			msg.Attempts++
			m.enqueueLocked(msg)
			m.failLocked(errors.Wrap(err, "write failed", errors.WithEpoch(m.epoch), errors.WithMessageID(id)))
		} else {
			m.metrics.IncSent()
		}
		m.unlockAndRun()
		return nil
	}

	m.enqueueLocked(msg)
	if m.state == StateConnected {
		m.armDrainLocked()
	}
	m.unlockAndRun()
	return nil
}

// Subscribe routes frames carrying payload.topic == topic to handler. A
// subscribe frame is sent when the topic is new and the channel is
// connected; otherwise the topic is sent on the next connect. Subscribing
// again replaces the handler.
func (m *Manager) Subscribe(topic string, handler subscription.Handler) error {
	if topic == "" {
		return errors.InvalidInput("topic is required")
	}
	if handler == nil {
		return errors.InvalidInput("handler is required")
	}

	m.mu.Lock()
	created := m.subs.Set(topic, handler)
	if created && m.state == StateConnected {
		if err := m.sendControlLocked(transport.TypeSubscribe, "", transport.TopicPayload{Topic: topic}); err != nil {
			m.failLocked(err)
		}
	}
	m.unlockAndRun()
	return nil
}

// Unsubscribe removes topic. An unsubscribe frame is sent when the topic
// was registered and the channel is connected.
func (m *Manager) Unsubscribe(topic string) error {
	if topic == "" {
		return errors.InvalidInput("topic is required")
	}

	m.mu.Lock()
	removed := m.subs.Remove(topic)
	if removed && m.state == StateConnected {
		if err := m.sendControlLocked(transport.TypeUnsubscribe, "", transport.TopicPayload{Topic: topic}); err != nil {
			m.failLocked(err)
		}
	}
	m.unlockAndRun()
	return nil
}

// ClearSubscriptions removes every topic, unsubscribing each one when
// connected. It returns the removed topics.
func (m *Manager) ClearSubscriptions() []string {
	m.mu.Lock()
	topics := m.subs.Clear()
	if m.state == StateConnected {
		for _, topic := range topics {
			if err := m.sendControlLocked(transport.TypeUnsubscribe, "", transport.TopicPayload{Topic: topic}); err != nil {
				m.failLocked(err)
				break
			}
		}
	}
	m.unlockAndRun()
	return topics
}

// Topics returns the registered topics in subscription order.
func (m *Manager) Topics() []string {
	return m.subs.Topics()
}

// On registers a handler for every inbound frame of msgType.
func (m *Manager) On(msgType string, h dispatch.Handler) dispatch.HandlerID {
	return m.handlers.On(msgType, h)
}

// Off removes a handler registered with On.
func (m *Manager) Off(id dispatch.HandlerID) bool {
	return m.handlers.Off(id)
}

// OnStateChange registers a callback for every state transition.
func (m *Manager) OnStateChange(cb func(from, to State)) {
	m.mu.Lock()
	m.stateCbs = append(m.stateCbs, cb)
	m.mu.Unlock()
}

// OnError registers a callback for every reported fault.
func (m *Manager) OnError(cb func(err error)) {
	m.mu.Lock()
	m.errorCbs = append(m.errorCbs, cb)
	m.mu.Unlock()
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Epoch returns the current connection epoch.
func (m *Manager) Epoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// Attempt returns the number of retries since the last successful connect.
func (m *Manager) Attempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// Metrics returns a snapshot of the connection metrics. It is zero when
// metrics are disabled.
func (m *Manager) Metrics() metrics.Snapshot {
	return m.metrics.Snapshot()
}

// Heartbeat returns the liveness record of the current connection.
func (m *Manager) Heartbeat() heartbeat.Record {
	return m.monitor.Record()
}

// Queued returns the number of frames waiting to be sent.
func (m *Manager) Queued() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

// DiscardQueued drops every queued frame and returns how many were dropped.
func (m *Manager) DiscardQueued() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	stopTimer(&m.drainTimer)
	return m.queue.Clear()
}

// PrometheusCollector exports the manager's metrics and state.
func (m *Manager) PrometheusCollector(namespace string) *metrics.PrometheusCollector {
	return metrics.NewPrometheusCollector(metrics.SourceFuncs{
		SnapshotFunc: m.Metrics,
		StateFunc:    func() string { return m.State().String() },
	}, namespace, States()...)
}

// --- Connection lifecycle ---

// startAttemptLocked opens a new epoch and dials.
func (m *Manager) startAttemptLocked() {
	m.epoch++
	epoch := m.epoch
	m.setStateLocked(StateConnecting)

	ctx, cancel := context.WithCancel(context.Background())
	ctx, m.span = m.tracer.StartConnectSpan(ctx, m.cfg.URL, m.attempt, epoch)
	m.attemptCtx = ctx
	m.cancel = cancel

	header := m.header.Clone()
	if header == nil {
		header = http.Header{}
	}
	telemetry.InjectHeader(ctx, header)

	m.connectTimer = m.clock.AfterFunc(m.cfg.TimeoutInterval, func() { m.onConnectTimeout(epoch) })

	conn, err := m.dialer.Dial(ctx, m.cfg.URL, header, &connListener{m: m, epoch: epoch})
	if err != nil {
		m.failLocked(errors.Wrap(err, "dial failed", errors.WithEpoch(epoch)))
		return
	}
	m.conn = conn
}

// handleOpen completes a connect: auth, flush, replay, heartbeat, in that
// order.
func (m *Manager) handleOpen(epoch uint64) {
	m.mu.Lock()
	if !m.currentLocked(epoch) || m.state != StateConnecting {
		m.unlockAndRun()
		return
	}

	var token string
	if m.cfg.EnableAuth {
		ctx := m.attemptCtx
		m.unlockAndRun()
		tok, err := m.tokens.Token(ctx)
		m.mu.Lock()
		if !m.currentLocked(epoch) || m.state != StateConnecting {
			m.unlockAndRun()
			return
		}
		if err == nil && tok == "" {
			err = credentials.ErrNoToken
		}
		if err != nil {
			m.failLocked(errors.Unauthorized("auth token unavailable", errors.WithCause(err), errors.WithEpoch(epoch)))
			m.unlockAndRun()
			return
		}
		token = tok
	}

	stopTimer(&m.connectTimer)
	m.attempt = 0
	m.setStateLocked(StateConnected)
	m.metrics.MarkConnected(m.clock.Now())

	if m.cfg.EnableAuth {
		if err := m.sendControlLocked(transport.TypeAuth, "", transport.AuthPayload{Token: token}); err != nil {
			m.failLocked(err)
			m.unlockAndRun()
			return
		}
	}

	flushed, err := m.flushLocked()
	if err != nil {
		m.failLocked(err)
		m.unlockAndRun()
		return
	}

	topics := m.subs.Topics()
	for _, topic := range topics {
		if err := m.sendControlLocked(transport.TypeSubscribe, "", transport.TopicPayload{Topic: topic}); err != nil {
			m.failLocked(err)
			m.unlockAndRun()
			return
		}
	}

	if err := m.monitor.Start(epoch); err != nil {
		m.log.Warn("heartbeat_start_failed", map[string]interface{}{"error": err.Error()})
	}
	m.log.Connected(m.cfg.URL, flushed, len(topics))
	m.endSpanLocked(telemetry.ConnectSpanOptions{
		Outcome:  "connected",
		State:    StateConnected.String(),
		Flushed:  flushed,
		Replayed: len(topics),
	}, nil)
	m.unlockAndRun()
}

func (m *Manager) handleClose(epoch uint64, code int, reason string) {
	m.mu.Lock()
	if !m.currentLocked(epoch) {
		m.unlockAndRun()
		return
	}
	m.log.ConnectionLost(code, reason, nil)

	switch {
	case code == transport.CloseUnauthorized:
		m.failLocked(errors.Unauthorized(closeMessage(code, reason), errors.WithCloseCode(code), errors.WithEpoch(epoch)))
	case code == transport.CloseForbidden:
		m.failLocked(errors.Forbidden(closeMessage(code, reason), errors.WithCloseCode(code), errors.WithEpoch(epoch)))
	case transport.IsCleanClose(code) && m.state == StateConnected:
		m.teardownLocked(transport.CloseNormal, "")
		m.setStateLocked(StateDisconnected)
	default:
		m.failLocked(errors.Network(closeMessage(code, reason), errors.WithCloseCode(code), errors.WithEpoch(epoch)))
	}
	m.unlockAndRun()
}

func (m *Manager) handleError(epoch uint64, err error) {
	m.mu.Lock()
	if !m.currentLocked(epoch) {
		m.unlockAndRun()
		return
	}
	m.log.ConnectionLost(0, "", err)

	var hs *transport.HandshakeError
	isHandshake := errors.As(err, &hs)
	switch {
	case isHandshake && hs.StatusCode == http.StatusUnauthorized:
		m.failLocked(errors.Unauthorized("handshake rejected", errors.WithCause(err), errors.WithEpoch(epoch)))
	case isHandshake && hs.StatusCode == http.StatusForbidden:
		m.failLocked(errors.Forbidden("handshake rejected", errors.WithCause(err), errors.WithEpoch(epoch)))
	default:
		m.failLocked(errors.Wrap(err, "transport error", errors.WithEpoch(epoch)))
	}
	m.unlockAndRun()
}

func (m *Manager) onConnectTimeout(epoch uint64) {
	m.mu.Lock()
	if !m.currentLocked(epoch) || m.state != StateConnecting {
		m.unlockAndRun()
		return
	}
	m.connectTimer = nil
	m.failLocked(errors.Timeout(
		fmt.Sprintf("connection not open after %s", m.cfg.TimeoutInterval),
		errors.WithEpoch(epoch)))
	m.unlockAndRun()
}

func (m *Manager) onRetry(epoch uint64) {
	m.mu.Lock()
	if !m.currentLocked(epoch) || m.state != StateReconnecting {
		m.unlockAndRun()
		return
	}
	m.retryTimer = nil
	m.metrics.IncReconnect()
	m.startAttemptLocked()
	m.unlockAndRun()
}

func (m *Manager) onUnresponsive(epoch uint64) {
	m.mu.Lock()
	if !m.currentLocked(epoch) || m.state != StateConnected {
		m.unlockAndRun()
		return
	}
	rec := m.monitor.Record()
	m.log.HeartbeatTimeout(rec.PingID, m.cfg.PongTimeout)
	m.failLocked(errors.New(errors.ErrCodeHeartbeatTimeout,
		fmt.Sprintf("no pong for ping %s within %s", rec.PingID, m.cfg.PongTimeout),
		errors.WithEpoch(epoch)))
	m.unlockAndRun()
}

// sendPing is the heartbeat monitor's ping function.
func (m *Manager) sendPing(id string) error {
	m.mu.Lock()
	if m.state != StateConnected || m.conn == nil {
		m.unlockAndRun()
		return transport.ErrNotOpen
	}
	err := m.sendControlLocked(transport.TypePing, id, nil)
	if err != nil {
		m.failLocked(err)
	}
	m.unlockAndRun()
	return err
}

// failLocked tears the connection down and decides what comes next:
// terminal error for authentication faults and an exhausted retry budget,
// otherwise a retry after the backoff delay.
func (m *Manager) failLocked(err error) {
	outcome := "failed"
	if errors.Is(err, errors.ErrCodeTimeout) {
		outcome = "timeout"
	}
	m.endSpanLocked(telemetry.ConnectSpanOptions{Outcome: outcome, State: StateReconnecting.String()}, err)
	m.teardownLocked(transport.CloseGoingAway, "reconnecting")
	m.reportLocked(err)
	m.setStateLocked(StateReconnecting)

	if errors.FaultOf(err) == errors.FaultAuthentication {
		m.log.AuthFailed(err.Error())
		m.setStateLocked(StateError)
		return
	}
	if !m.cfg.Unlimited() && m.attempt >= m.cfg.MaxReconnectAttempts {
		m.log.ReconnectExhausted(m.attempt)
		m.reportLocked(errors.ReconnectExhausted(m.attempt, errors.WithEpoch(m.epoch), errors.WithCause(err)))
		m.setStateLocked(StateError)
		return
	}

	delay := m.policy.NextDelay(m.attempt)
	m.attempt++
	m.log.ReconnectScheduled(m.attempt, delay)
	m.exportLocked(telemetry.EventReconnectScheduled, map[string]interface{}{
		"attempt":  m.attempt,
		"delay_ms": delay.Milliseconds(),
		"epoch":    m.epoch,
	})
	epoch := m.epoch
	m.retryTimer = m.clock.AfterFunc(delay, func() { m.onRetry(epoch) })
}

// teardownLocked releases everything owned by the current epoch and opens
// a new one, so late callbacks from the old connection are ignored.
func (m *Manager) teardownLocked(code int, reason string) {
	m.monitor.Stop()
	stopTimer(&m.connectTimer)
	stopTimer(&m.drainTimer)
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.attemptCtx = nil
	if m.conn != nil {
		if err := m.conn.Close(code, reason); err != nil {
			m.log.Debug("close_failed", map[string]interface{}{"error": err.Error()})
		}
		m.conn = nil
	}
	m.metrics.MarkDisconnected()
	m.epoch++
}

func (m *Manager) currentLocked(epoch uint64) bool {
	return epoch == m.epoch
}

func (m *Manager) endSpanLocked(opts telemetry.ConnectSpanOptions, err error) {
	if m.span == nil {
		return
	}
	m.tracer.EndConnectSpan(m.span, opts, err)
	m.span = nil
}

// --- Outbound ---

// flushLocked writes queued frames in order until the queue is empty or
// the throttle runs dry. A frame leaves the queue only after its write
// succeeded.
func (m *Manager) flushLocked() (int, error) {
	n := 0
	for {
		msg, ok := m.queue.Peek()
		if !ok {
			return n, nil
		}
		if !m.allowSendLocked() {
			m.armDrainLocked()
			return n, nil
		}
		if err := m.conn.Write(msg.Data); err != nil {
			msg.Attempts++
			return n, errors.Wrap(err, "flush write failed", errors.WithEpoch(m.epoch), errors.WithMessageID(msg.ID))
		}
		m.queue.Pop()
		m.metrics.IncSent()
		n++
	}
}

func (m *Manager) enqueueLocked(msg *queue.Message) {
	evicted := m.queue.Push(msg)
	if evicted == nil {
		return
	}
	m.metrics.IncEvicted()
	m.log.QueueEvicted(evicted.ID, evicted.Type, m.queue.Len())
	m.reportLocked(errors.QueueOverflow(evicted.ID, errors.WithEpoch(m.epoch)))
}

func (m *Manager) sendControlLocked(msgType, id string, payload interface{}) error {
	if id == "" {
		id = m.newID()
	}
	env, err := transport.NewEnvelope(msgType, payload, id, m.clock.Now())
	if err != nil {
		return errors.Internal("cannot encode control frame", errors.WithCause(err))
	}
	data, err := transport.Encode(env)
	if err != nil {
		return errors.Internal("cannot encode control frame", errors.WithCause(err))
	}
	if m.conn == nil {
		return errors.FromCode(errors.ErrCodeNotConnected, errors.WithEpoch(m.epoch))
	}
	if err := m.conn.Write(data); err != nil {
		return errors.Wrap(err, msgType+" write failed", errors.WithEpoch(m.epoch), errors.WithMessageID(id))
	}
	m.metrics.IncControl()
	return nil
}

// allowSendLocked takes a throttle token, if the throttle is on.
func (m *Manager) allowSendLocked() bool {
	return !m.throttled || m.limiter.TryAcquire(sendResource)
}

// armDrainLocked schedules a flush for when the next throttle token is due.
func (m *Manager) armDrainLocked() {
	if m.drainTimer != nil || m.queue.Len() == 0 {
		return
	}
	d := m.limiter.Delay(sendResource)
	if d <= 0 {
		d = time.Millisecond
	}
	epoch := m.epoch
	m.drainTimer = m.clock.AfterFunc(d, func() { m.onDrain(epoch) })
}

func (m *Manager) onDrain(epoch uint64) {
	m.mu.Lock()
	if !m.currentLocked(epoch) || m.state != StateConnected {
		m.unlockAndRun()
		return
	}
	m.drainTimer = nil
	if _, err := m.flushLocked(); err != nil {
		m.failLocked(err)
	}
	m.unlockAndRun()
}

// applyConfiguredThrottleLocked restores the throttle from the config.
func (m *Manager) applyConfiguredThrottleLocked() {
	if m.cfg.SendRateLimit > 0 {
		m.limiter.SetCapacity(sendResource, m.cfg.SendRateLimit, m.cfg.SendRateWindow)
		m.throttled = true
		return
	}
	m.limiter.SetCapacity(sendResource, 0, 0)
	m.throttled = false
}

// --- Reporting ---

// reportLocked counts and logs err and queues it for the error callbacks
// and the sink.
func (m *Manager) reportLocked(err error) {
	m.metrics.IncError()
	m.log.Warn("channel_error", map[string]interface{}{
		"code":  string(errors.Code(err)),
		"fault": string(errors.FaultOf(err)),
		"error": err.Error(),
	})
	m.exportLocked(telemetry.EventError, map[string]interface{}{
		"code":  string(errors.Code(err)),
		"fault": string(errors.FaultOf(err)),
		"epoch": m.epoch,
	})

	cbs := m.errorCbs
	sink := m.sink
	m.pending = append(m.pending, func() {
		for _, cb := range cbs {
			m.safeCall("error_callback", func() { cb(err) })
		}
		if sink != nil {
			if sErr := sink.DeliverError(err); sErr != nil {
				m.log.Warn("sink_error_failed", map[string]interface{}{"error": sErr.Error()})
			}
		}
	})
}

func (m *Manager) setStateLocked(to State) {
	from := m.state
	if from == to {
		return
	}
	m.state = to
	m.log.StateChange(from.String(), to.String(), m.epoch)
	m.exportLocked(telemetry.EventStateChange, map[string]interface{}{
		"from":  from.String(),
		"to":    to.String(),
		"epoch": m.epoch,
	})

	cbs := m.stateCbs
	m.pending = append(m.pending, func() {
		for _, cb := range cbs {
			m.safeCall("state_callback", func() { cb(from, to) })
		}
	})
}

// exportLocked queues a telemetry event. Exporters may do I/O, so the
// event is sent after the lock is released.
func (m *Manager) exportLocked(name string, data map[string]interface{}) {
	events := m.events
	m.pending = append(m.pending, func() { events.LogEvent(name, data) })
}

// unlockAndRun releases the lock and then runs the callbacks queued while
// it was held, in order.
func (m *Manager) unlockAndRun() {
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

func (m *Manager) safeCall(name string, fn func()) {
	if err := dispatch.Invoke(name, fn); err != nil {
		m.log.HandlerPanic(name, err.Error())
	}
}

func stopTimer(t *clock.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func closeMessage(code int, reason string) string {
	if reason == "" {
		return fmt.Sprintf("connection closed with code %d", code)
	}
	return fmt.Sprintf("connection closed with code %d: %s", code, reason)
}
