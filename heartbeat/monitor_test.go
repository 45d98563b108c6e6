package heartbeat

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vinayprograms/synckit/clock"
)

type pingRecorder struct {
	ids []string
	err error
}

func (p *pingRecorder) ping(id string) error {
	p.ids = append(p.ids, id)
	return p.err
}

func newTestMonitor(t *testing.T, cfg Config) (*Monitor, *clock.Manual, *pingRecorder) {
	t.Helper()
	clk := clock.NewManual(time.Unix(1700000000, 0))
	rec := &pingRecorder{}
	m, err := NewMonitor(cfg, clk, rec.ping)
	if err != nil {
		t.Fatalf("NewMonitor() error = %v", err)
	}
	return m, clk, rec
}

// --- Unit Tests ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"disabled", Config{}, false},
		{"negative interval", Config{Interval: -time.Second, PongTimeout: time.Second}, true},
		{"missing pong timeout", Config{Interval: time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Interval != 30*time.Second {
		t.Errorf("Interval = %v, want 30s", cfg.Interval)
	}
	if cfg.PongTimeout != 10*time.Second {
		t.Errorf("PongTimeout = %v, want 10s", cfg.PongTimeout)
	}
}

func TestNewMonitor_RequiresPing(t *testing.T) {
	if _, err := NewMonitor(DefaultConfig(), nil, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewMonitor(nil ping) error = %v, want ErrInvalidConfig", err)
	}
}

func TestMonitor_PingPongLatency(t *testing.T) {
	m, clk, rec := newTestMonitor(t, Config{Interval: time.Second, PongTimeout: 500 * time.Millisecond})
	var unresponsive bool
	m.OnUnresponsive(func(uint64) { unresponsive = true })

	if err := m.Start(1); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	clk.Advance(time.Second)
	if len(rec.ids) != 1 {
		t.Fatalf("pings = %d, want 1", len(rec.ids))
	}
	r := m.Record()
	if !r.OutstandingPing || r.PingID != rec.ids[0] {
		t.Errorf("Record() = %+v, want outstanding ping %s", r, rec.ids[0])
	}

	clk.Advance(120 * time.Millisecond)
	latency, ok := m.Pong(rec.ids[0])
	if !ok {
		t.Fatal("Pong() should match outstanding ping")
	}
	if latency != 120*time.Millisecond {
		t.Errorf("latency = %v, want 120ms", latency)
	}
	r = m.Record()
	if r.OutstandingPing || r.Latency != 120*time.Millisecond || r.LastPongReceivedAt.IsZero() {
		t.Errorf("Record() after pong = %+v", r)
	}

	clk.Advance(time.Second)
	if unresponsive {
		t.Error("answered ping should not trigger unresponsive")
	}
	if len(rec.ids) != 2 {
		t.Errorf("pings = %d, want 2", len(rec.ids))
	}
}

func TestMonitor_SetIDGenerator(t *testing.T) {
	m, clk, rec := newTestMonitor(t, Config{Interval: time.Second, PongTimeout: 500 * time.Millisecond})
	n := 0
	m.SetIDGenerator(func() string {
		n++
		return fmt.Sprintf("ping-%d", n)
	})
	m.Start(1)

	clk.Advance(time.Second)
	if _, ok := m.Pong("ping-1"); !ok {
		t.Fatalf("Pong(ping-1) did not match, pings = %v", rec.ids)
	}
	clk.Advance(time.Second)
	if len(rec.ids) != 2 || rec.ids[0] != "ping-1" || rec.ids[1] != "ping-2" {
		t.Errorf("ping ids = %v, want [ping-1 ping-2]", rec.ids)
	}

	m.SetIDGenerator(nil)
	m.Pong("")
	clk.Advance(time.Second)
	if id := rec.ids[len(rec.ids)-1]; len(id) != 36 {
		t.Errorf("ping id after reset = %q, want a uuid", id)
	}
}

func TestMonitor_PongMismatch(t *testing.T) {
	m, clk, rec := newTestMonitor(t, Config{Interval: time.Second, PongTimeout: time.Second})
	m.Start(1)

	if _, ok := m.Pong(""); ok {
		t.Error("Pong() without outstanding ping should not match")
	}
	clk.Advance(time.Second)
	if _, ok := m.Pong("other"); ok {
		t.Error("Pong() with wrong id should not match")
	}
	if _, ok := m.Pong(""); !ok {
		t.Error("Pong() with empty id should match outstanding ping")
	}
	if len(rec.ids) != 1 {
		t.Errorf("pings = %d, want 1", len(rec.ids))
	}
}

func TestMonitor_Timeout(t *testing.T) {
	m, clk, rec := newTestMonitor(t, Config{Interval: time.Second, PongTimeout: 500 * time.Millisecond})
	var gotEpoch uint64
	var calls int
	m.OnUnresponsive(func(epoch uint64) {
		calls++
		gotEpoch = epoch
	})

	m.Start(7)
	clk.Advance(time.Second)
	clk.Advance(499 * time.Millisecond)
	if calls != 0 {
		t.Fatal("unresponsive fired before deadline")
	}
	clk.Advance(time.Millisecond)
	if calls != 1 || gotEpoch != 7 {
		t.Errorf("calls=%d epoch=%d; want 1, 7", calls, gotEpoch)
	}
	if m.Running() {
		t.Error("monitor should stop after timeout")
	}

	clk.Advance(10 * time.Second)
	if calls != 1 || len(rec.ids) != 1 {
		t.Errorf("after stop: calls=%d pings=%d; want 1, 1", calls, len(rec.ids))
	}
}

func TestMonitor_LongPongTimeoutSkipsTicks(t *testing.T) {
	m, clk, rec := newTestMonitor(t, Config{Interval: time.Second, PongTimeout: 3 * time.Second})
	var calls int
	m.OnUnresponsive(func(uint64) { calls++ })

	m.Start(1)
	clk.Advance(3 * time.Second)
	if len(rec.ids) != 1 {
		t.Errorf("pings while outstanding = %d, want 1", len(rec.ids))
	}
	clk.Advance(time.Second)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestMonitor_StopCancelsTimers(t *testing.T) {
	m, clk, rec := newTestMonitor(t, Config{Interval: time.Second, PongTimeout: 500 * time.Millisecond})
	var calls int
	m.OnUnresponsive(func(uint64) { calls++ })

	m.Start(1)
	clk.Advance(time.Second)
	m.Stop()
	if clk.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", clk.Pending())
	}
	clk.Advance(time.Minute)
	if calls != 0 || len(rec.ids) != 1 {
		t.Errorf("calls=%d pings=%d; want 0, 1", calls, len(rec.ids))
	}
	m.Stop() // idempotent
}

func TestMonitor_RestartIgnoresStaleDeadline(t *testing.T) {
	m, clk, _ := newTestMonitor(t, Config{Interval: time.Second, PongTimeout: 500 * time.Millisecond})
	var epochs []uint64
	m.OnUnresponsive(func(epoch uint64) { epochs = append(epochs, epoch) })

	m.Start(1)
	clk.Advance(time.Second) // ping for epoch 1 outstanding
	m.Stop()
	if err := m.Start(2); err != nil {
		t.Fatalf("Start(2) error = %v", err)
	}
	if m.Record().OutstandingPing {
		t.Error("restart should clear outstanding ping")
	}

	clk.Advance(400 * time.Millisecond) // past epoch-1 deadline
	if len(epochs) != 0 {
		t.Errorf("stale deadline fired: %v", epochs)
	}
	clk.Advance(1100 * time.Millisecond) // epoch-2 ping at 1s, deadline at 1.5s
	if len(epochs) != 1 || epochs[0] != 2 {
		t.Errorf("epochs = %v, want [2]", epochs)
	}
}

func TestMonitor_AlreadyStarted(t *testing.T) {
	m, _, _ := newTestMonitor(t, DefaultConfig())
	m.Start(1)
	if err := m.Start(2); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Start() twice error = %v, want ErrAlreadyStarted", err)
	}
}

func TestMonitor_Disabled(t *testing.T) {
	m, clk, rec := newTestMonitor(t, Config{})
	if err := m.Start(1); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if m.Running() {
		t.Error("disabled monitor should not run")
	}
	clk.Advance(time.Hour)
	if len(rec.ids) != 0 {
		t.Errorf("pings = %d, want 0", len(rec.ids))
	}
}

func TestMonitor_PingError(t *testing.T) {
	m, clk, rec := newTestMonitor(t, Config{Interval: time.Second, PongTimeout: time.Second})
	rec.err = errors.New("write failed")
	var got error
	m.OnPingError(func(err error) { got = err })

	m.Start(1)
	clk.Advance(time.Second)
	if got != rec.err {
		t.Errorf("ping error = %v, want %v", got, rec.err)
	}
}
