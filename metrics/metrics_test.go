package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/vinayprograms/synckit/clock"
)

// --- Unit Tests ---

func TestCollector_Counters(t *testing.T) {
	c := NewCollector(nil)
	c.IncReconnect()
	c.IncSent()
	c.IncSent()
	c.IncControl()
	c.IncReceived()
	c.IncError()
	c.IncUnhandled()
	c.IncEvicted()

	s := c.Snapshot()
	want := Snapshot{
		ReconnectCount:   1,
		MessagesSent:     2,
		ControlSent:      1,
		MessagesReceived: 1,
		Errors:           1,
		Unhandled:        1,
		Evicted:          1,
	}
	if s != want {
		t.Errorf("Snapshot() = %+v, want %+v", s, want)
	}
}

func TestCollector_Latency(t *testing.T) {
	clk := clock.NewManual(time.Unix(1700000000, 0))
	c := NewCollector(clk)

	c.ObserveLatency(100*time.Millisecond, clk.Now())
	c.ObserveLatency(300*time.Millisecond, clk.Now().Add(time.Second))

	s := c.Snapshot()
	if s.Latency != 300*time.Millisecond {
		t.Errorf("Latency = %v, want 300ms", s.Latency)
	}
	if s.AverageLatency != 200*time.Millisecond {
		t.Errorf("AverageLatency = %v, want 200ms", s.AverageLatency)
	}
	if !s.LastHeartbeatAt.Equal(clk.Now().Add(time.Second)) {
		t.Errorf("LastHeartbeatAt = %v", s.LastHeartbeatAt)
	}
}

func TestCollector_LatencyWindow(t *testing.T) {
	c := NewCollector(nil)
	for i := 0; i < latencyWindow; i++ {
		c.ObserveLatency(time.Second, time.Time{})
	}
	for i := 0; i < latencyWindow; i++ {
		c.ObserveLatency(3*time.Second, time.Time{})
	}
	if got := c.Snapshot().AverageLatency; got != 3*time.Second {
		t.Errorf("AverageLatency = %v, want 3s", got)
	}
}

func TestCollector_Uptime(t *testing.T) {
	clk := clock.NewManual(time.Unix(1700000000, 0))
	c := NewCollector(clk)

	if s := c.Snapshot(); !s.UptimeStart.IsZero() || s.Uptime != 0 {
		t.Errorf("uptime before connect = %v/%v", s.UptimeStart, s.Uptime)
	}
	c.MarkConnected(clk.Now())
	clk.Advance(90 * time.Second)
	if got := c.Snapshot().Uptime; got != 90*time.Second {
		t.Errorf("Uptime = %v, want 90s", got)
	}
	c.MarkDisconnected()
	if s := c.Snapshot(); !s.UptimeStart.IsZero() {
		t.Errorf("UptimeStart after disconnect = %v", s.UptimeStart)
	}
}

func TestCollector_Reset(t *testing.T) {
	clk := clock.NewManual(time.Unix(1700000000, 0))
	c := NewCollector(clk)
	c.IncSent()
	c.IncError()
	c.ObserveLatency(time.Second, clk.Now())
	c.MarkConnected(clk.Now())

	c.Reset()
	s := c.Snapshot()
	if s.MessagesSent != 0 || s.Errors != 0 || s.Latency != 0 || s.AverageLatency != 0 {
		t.Errorf("Snapshot() after Reset = %+v", s)
	}
	if s.UptimeStart.IsZero() {
		t.Error("Reset() should keep uptime start")
	}
}

func TestPrometheusCollector(t *testing.T) {
	c := NewCollector(nil)
	c.IncReconnect()
	c.IncReconnect()
	c.IncSent()
	c.ObserveLatency(250*time.Millisecond, time.Now())

	src := SourceFuncs{
		SnapshotFunc: c.Snapshot,
		StateFunc:    func() string { return "connected" },
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewPrometheusCollector(src, "synckit", "connecting", "connected", "closed"))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	byName := make(map[string]*dto.MetricFamily)
	for _, f := range families {
		byName[f.GetName()] = f
	}

	tests := []struct {
		name string
		want float64
	}{
		{"synckit_reconnects_total", 2},
		{"synckit_messages_sent_total", 1},
		{"synckit_messages_received_total", 0},
		{"synckit_errors_total", 0},
		{"synckit_control_frames_sent_total", 0},
		{"synckit_unhandled_frames_total", 0},
		{"synckit_evicted_messages_total", 0},
		{"synckit_heartbeat_latency_seconds", 0.25},
		{"synckit_uptime_seconds", 0},
	}
	for _, tt := range tests {
		f, ok := byName[tt.name]
		if !ok {
			t.Errorf("metric %s missing", tt.name)
			continue
		}
		m := f.GetMetric()[0]
		var got float64
		if m.GetCounter() != nil {
			got = m.GetCounter().GetValue()
		} else {
			got = m.GetGauge().GetValue()
		}
		if got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}

	state := byName["synckit_state"]
	if state == nil {
		t.Fatal("synckit_state missing")
	}
	if len(state.GetMetric()) != 3 {
		t.Fatalf("state series = %d, want 3", len(state.GetMetric()))
	}
	for _, m := range state.GetMetric() {
		label := m.GetLabel()[0].GetValue()
		want := 0.0
		if label == "connected" {
			want = 1
		}
		if m.GetGauge().GetValue() != want {
			t.Errorf("state{%s} = %v, want %v", label, m.GetGauge().GetValue(), want)
		}
	}
}

func TestCollector_Nil(t *testing.T) {
	var c *Collector
	c.IncReconnect()
	c.IncSent()
	c.IncControl()
	c.IncReceived()
	c.IncError()
	c.IncUnhandled()
	c.IncEvicted()
	c.ObserveLatency(time.Second, time.Now())
	c.MarkConnected(time.Now())
	c.MarkDisconnected()
	c.Reset()
	if s := c.Snapshot(); s != (Snapshot{}) {
		t.Errorf("nil Snapshot() = %+v, want zero", s)
	}
}
