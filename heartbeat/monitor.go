package heartbeat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/synckit/clock"
)

// Monitor sends periodic pings on a connection and reports the peer as
// unresponsive when a pong does not arrive in time.
//
// Each Start begins a new generation. Timers carry the generation that
// armed them, so a tick or deadline left over from an earlier connection
// is a no-op.
type Monitor struct {
	config Config
	clock  clock.Clock
	ping   PingFunc
	newID  func() string

	mu             sync.Mutex
	running        bool
	epoch          uint64
	gen            uint64
	tick           clock.Timer
	deadline       clock.Timer
	record         Record
	onUnresponsive func(epoch uint64)
	onPingError    func(err error)
}

// NewMonitor creates a monitor that sends pings through ping.
func NewMonitor(cfg Config, clk clock.Clock, ping PingFunc) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ping == nil {
		return nil, ErrInvalidConfig
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Monitor{
		config: cfg,
		clock:  clk,
		ping:   ping,
		newID:  uuid.NewString,
	}, nil
}

// OnUnresponsive registers the callback invoked when a pong deadline
// passes. It receives the epoch given to Start.
func (m *Monitor) OnUnresponsive(cb func(epoch uint64)) {
	m.mu.Lock()
	m.onUnresponsive = cb
	m.mu.Unlock()
}

// SetIDGenerator replaces the uuid ping ids. fn is called from timer
// callbacks and must be safe for concurrent use. nil restores uuids.
func (m *Monitor) SetIDGenerator(fn func() string) {
	if fn == nil {
		fn = uuid.NewString
	}
	m.mu.Lock()
	m.newID = fn
	m.mu.Unlock()
}

// OnPingError registers a callback for ping send failures.
func (m *Monitor) OnPingError(cb func(err error)) {
	m.mu.Lock()
	m.onPingError = cb
	m.mu.Unlock()
}

// Start begins pinging for the connection identified by epoch. It is a
// no-op when the monitor is disabled.
func (m *Monitor) Start(epoch uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.config.Enabled() {
		return nil
	}
	if m.running {
		return ErrAlreadyStarted
	}

	m.gen++
	m.running = true
	m.epoch = epoch
	m.record.OutstandingPing = false
	m.record.PingID = ""
	m.armTickLocked(m.gen)
	return nil
}

// Stop cancels all pending timers. Safe to call when not running.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Pong records a pong. An empty id matches the outstanding ping. It returns
// the measured latency and whether the pong matched.
func (m *Monitor) Pong(id string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running || !m.record.OutstandingPing {
		return 0, false
	}
	if id != "" && id != m.record.PingID {
		return 0, false
	}

	now := m.clock.Now()
	m.record.OutstandingPing = false
	m.record.LastPongReceivedAt = now
	m.record.Latency = now.Sub(m.record.LastPingSentAt)
	if m.deadline != nil {
		m.deadline.Stop()
		m.deadline = nil
	}
	return m.record.Latency, true
}

// Record returns a copy of the current liveness state.
func (m *Monitor) Record() Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record
}

func (m *Monitor) stopLocked() {
	m.gen++
	m.running = false
	if m.tick != nil {
		m.tick.Stop()
		m.tick = nil
	}
	if m.deadline != nil {
		m.deadline.Stop()
		m.deadline = nil
	}
}

func (m *Monitor) armTickLocked(gen uint64) {
	m.tick = m.clock.AfterFunc(m.config.Interval, func() { m.onTick(gen) })
}

func (m *Monitor) onTick(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || !m.running {
		m.mu.Unlock()
		return
	}
	m.armTickLocked(gen)

	// Previous ping still unanswered; its deadline decides.
	if m.record.OutstandingPing {
		m.mu.Unlock()
		return
	}

	id := m.newID()
	m.record.PingID = id
	m.record.OutstandingPing = true
	m.record.LastPingSentAt = m.clock.Now()
	m.deadline = m.clock.AfterFunc(m.config.PongTimeout, func() { m.onDeadline(gen) })
	ping := m.ping
	onErr := m.onPingError
	m.mu.Unlock()

	if err := ping(id); err != nil && onErr != nil {
		onErr(err)
	}
}

func (m *Monitor) onDeadline(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || !m.running || !m.record.OutstandingPing {
		m.mu.Unlock()
		return
	}
	epoch := m.epoch
	cb := m.onUnresponsive
	m.deadline = nil
	m.stopLocked()
	m.mu.Unlock()

	if cb != nil {
		cb(epoch)
	}
}
