package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/vinayprograms/synckit/clock"
)

// latencyWindow is the number of heartbeat samples kept for AverageLatency.
const latencyWindow = 64

// Snapshot is a point-in-time copy of the connection metrics.
type Snapshot struct {
	ReconnectCount   uint64
	MessagesSent     uint64
	ControlSent      uint64
	MessagesReceived uint64
	Errors           uint64
	Unhandled        uint64
	Evicted          uint64

	// LastHeartbeatAt is when the most recent pong was received.
	LastHeartbeatAt time.Time

	// Latency is the most recent heartbeat round trip.
	Latency time.Duration

	// AverageLatency is the mean over the last 64 round trips.
	AverageLatency time.Duration

	// UptimeStart is when the current connection opened. Zero while not
	// connected.
	UptimeStart time.Time

	// Uptime is the time since UptimeStart when the snapshot was taken.
	Uptime time.Duration
}

// Collector aggregates connection counters and latency samples.
// Counters are lock-free; timestamps and samples share a mutex.
type Collector struct {
	clock clock.Clock

	reconnects atomic.Uint64
	sent       atomic.Uint64
	control    atomic.Uint64
	received   atomic.Uint64
	errors     atomic.Uint64
	unhandled  atomic.Uint64
	evicted    atomic.Uint64

	mu              sync.Mutex
	lastHeartbeatAt time.Time
	latency         time.Duration
	samples         [latencyWindow]time.Duration
	nsamples        int
	next            int
	uptimeStart     time.Time
}

// NewCollector creates a collector. A nil clock uses the real clock.
func NewCollector(clk clock.Clock) *Collector {
	if clk == nil {
		clk = clock.Real()
	}
	return &Collector{clock: clk}
}

// The Inc methods, ObserveLatency and the Mark methods are no-ops on a nil
// Collector, so callers can disable collection by passing nil.

func (c *Collector) IncReconnect() {
	if c != nil {
		c.reconnects.Add(1)
	}
}

func (c *Collector) IncSent() {
	if c != nil {
		c.sent.Add(1)
	}
}

func (c *Collector) IncControl() {
	if c != nil {
		c.control.Add(1)
	}
}

func (c *Collector) IncReceived() {
	if c != nil {
		c.received.Add(1)
	}
}

func (c *Collector) IncError() {
	if c != nil {
		c.errors.Add(1)
	}
}

func (c *Collector) IncUnhandled() {
	if c != nil {
		c.unhandled.Add(1)
	}
}

func (c *Collector) IncEvicted() {
	if c != nil {
		c.evicted.Add(1)
	}
}

// ObserveLatency records a heartbeat round trip completed at at.
func (c *Collector) ObserveLatency(d time.Duration, at time.Time) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latency = d
	c.lastHeartbeatAt = at
	c.samples[c.next] = d
	c.next = (c.next + 1) % latencyWindow
	if c.nsamples < latencyWindow {
		c.nsamples++
	}
}

// MarkConnected starts the uptime clock.
func (c *Collector) MarkConnected(at time.Time) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.uptimeStart = at
	c.mu.Unlock()
}

// MarkDisconnected clears the uptime clock.
func (c *Collector) MarkDisconnected() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.uptimeStart = time.Time{}
	c.mu.Unlock()
}

// Snapshot returns the current values. A nil Collector reports zeros.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	s := Snapshot{
		ReconnectCount:   c.reconnects.Load(),
		MessagesSent:     c.sent.Load(),
		ControlSent:      c.control.Load(),
		MessagesReceived: c.received.Load(),
		Errors:           c.errors.Load(),
		Unhandled:        c.unhandled.Load(),
		Evicted:          c.evicted.Load(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s.LastHeartbeatAt = c.lastHeartbeatAt
	s.Latency = c.latency
	s.UptimeStart = c.uptimeStart
	if !c.uptimeStart.IsZero() {
		s.Uptime = c.clock.Now().Sub(c.uptimeStart)
	}
	if c.nsamples > 0 {
		var total time.Duration
		for i := 0; i < c.nsamples; i++ {
			total += c.samples[i]
		}
		s.AverageLatency = total / time.Duration(c.nsamples)
	}
	return s
}

// Reset zeroes every counter and sample. The uptime clock is kept.
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.reconnects.Store(0)
	c.sent.Store(0)
	c.control.Store(0)
	c.received.Store(0)
	c.errors.Store(0)
	c.unhandled.Store(0)
	c.evicted.Store(0)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastHeartbeatAt = time.Time{}
	c.latency = 0
	c.samples = [latencyWindow]time.Duration{}
	c.nsamples = 0
	c.next = 0
}
