package realtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vinayprograms/synckit/dispatch"
	"github.com/vinayprograms/synckit/errors"
	"github.com/vinayprograms/synckit/transport"
)

// connListener binds transport callbacks to the epoch that dialed them.
type connListener struct {
	m     *Manager
	epoch uint64
}

func (l *connListener) OnOpen()                         { l.m.handleOpen(l.epoch) }
func (l *connListener) OnMessage(data []byte)           { l.m.handleMessage(l.epoch, data) }
func (l *connListener) OnClose(code int, reason string) { l.m.handleClose(l.epoch, code, reason) }
func (l *connListener) OnError(err error)               { l.m.handleError(l.epoch, err) }

// handleMessage decodes one inbound frame. Channel maintenance frames are
// handled under the lock; application frames go to the topic handler, the
// type handlers and the sink, in that order, after the lock is released.
func (m *Manager) handleMessage(epoch uint64, data []byte) {
	m.mu.Lock()
	if !m.currentLocked(epoch) || (m.state != StateConnected && m.state != StateConnecting) {
		m.unlockAndRun()
		return
	}
	m.metrics.IncReceived()

	env, err := transport.Decode(data)
	if err != nil {
		m.log.FrameDropped("malformed", len(data))
		m.reportLocked(errors.Malformed("dropped malformed frame", errors.WithCause(err), errors.WithEpoch(epoch)))
		m.unlockAndRun()
		return
	}

	switch env.Type {
	case transport.TypePong:
		if latency, ok := m.monitor.Pong(env.ID); ok {
			m.metrics.ObserveLatency(latency, m.clock.Now())
		}
		m.unlockAndRun()
		return
	case transport.TypePing:
		if m.state == StateConnected {
			if err := m.sendControlLocked(transport.TypePong, env.ID, nil); err != nil {
				m.failLocked(err)
			}
		}
		m.unlockAndRun()
		return
	case transport.TypeError:
		m.handleServerErrorLocked(env)
		m.unlockAndRun()
		return
	case transport.TypeRateLimit:
		m.handleRateLimitLocked(env)
		m.unlockAndRun()
		return
	}

	topic := env.Topic()
	var onTopic func()
	if topic != "" {
		if h, ok := m.subs.Handler(topic); ok {
			onTopic = func() { h(topic, env.Payload) }
		}
	}
	if onTopic == nil && m.handlers.Len(env.Type) == 0 {
		m.metrics.IncUnhandled()
	}
	sink := m.sink
	m.unlockAndRun()

	var errs []error
	if onTopic != nil {
		if err := dispatch.Invoke(env.Type, onTopic); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := m.dispatcher.Dispatch(env); err != nil {
		errs = append(errs, err)
	}
	if sink != nil {
		if err := sink.Deliver(env); err != nil {
			errs = append(errs, errors.Wrap(err, "sink delivery failed", errors.WithMessageID(env.ID)))
		}
	}
	if len(errs) == 0 {
		return
	}

	m.mu.Lock()
	for _, err := range errs {
		if errors.Is(err, errors.ErrCodePanic) {
			m.log.HandlerPanic(env.Type, err.Error())
		}
		m.reportLocked(err)
	}
	m.unlockAndRun()
}

// handleServerErrorLocked reports a server error frame. Credential codes
// end the connection as an authentication fault.
func (m *Manager) handleServerErrorLocked(env transport.Envelope) {
	var p transport.ErrorPayload
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			m.reportLocked(errors.Malformed("error frame payload", errors.WithCause(err), errors.WithEpoch(m.epoch)))
			return
		}
	}
	msg := p.Message
	if msg == "" {
		msg = "server reported an error"
	}
	opts := []errors.Option{errors.WithEpoch(m.epoch)}
	if p.Code != "" {
		opts = append(opts, errors.WithMetadata("server_code", p.Code))
	}

	switch strings.ToLower(p.Code) {
	case "unauthorized":
		m.failLocked(errors.Unauthorized(msg, opts...))
	case "forbidden":
		m.failLocked(errors.Forbidden(msg, opts...))
	default:
		m.reportLocked(errors.New(errors.ErrCodeServerError, msg, opts...))
	}
}

// handleRateLimitLocked applies a server rate_limit frame to the send
// throttle. A positive limit and window replace the throttle, a
// non-positive limit restores the configured one and retryAfterMs pauses
// sending.
func (m *Manager) handleRateLimitLocked(env transport.Envelope) {
	var p transport.RateLimitPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		m.reportLocked(errors.Malformed("rate_limit frame payload", errors.WithCause(err), errors.WithEpoch(m.epoch)))
		return
	}

	switch {
	case p.Limit > 0 && p.WindowMs > 0:
		m.limiter.SetCapacity(sendResource, p.Limit, time.Duration(p.WindowMs)*time.Millisecond)
		m.throttled = true
	case p.Limit <= 0:
		m.applyConfiguredThrottleLocked()
	}
	if p.RetryAfter > 0 {
		if !m.throttled {
			m.limiter.SetCapacity(sendResource, m.cfg.QueueSize, time.Second)
			m.throttled = true
		}
		m.limiter.Pause(sendResource, time.Duration(p.RetryAfter)*time.Millisecond)
	}

	m.reportLocked(errors.RateLimited(
		fmt.Sprintf("server rate limit: %d per %dms", p.Limit, p.WindowMs),
		errors.WithEpoch(m.epoch),
		errors.WithMetadata("limit", strconv.Itoa(p.Limit)),
		errors.WithMetadata("window_ms", strconv.FormatInt(p.WindowMs, 10)),
		errors.WithMetadata("retry_after_ms", strconv.FormatInt(p.RetryAfter, 10)),
	))

	if m.state != StateConnected || m.queue.Len() == 0 {
		return
	}
	stopTimer(&m.drainTimer)
	if _, err := m.flushLocked(); err != nil {
		m.failLocked(err)
	}
}
