package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Source supplies the values exported by the Prometheus collector.
type Source interface {
	Snapshot() Snapshot
	StateName() string
}

// SourceFuncs adapts a pair of functions to Source.
type SourceFuncs struct {
	SnapshotFunc func() Snapshot
	StateFunc    func() string
}

func (f SourceFuncs) Snapshot() Snapshot { return f.SnapshotFunc() }
func (f SourceFuncs) StateName() string  { return f.StateFunc() }

// PrometheusCollector exports a Source as Prometheus metrics. Values are
// read on every scrape.
type PrometheusCollector struct {
	source Source
	states []string

	reconnects *prometheus.Desc
	sent       *prometheus.Desc
	received   *prometheus.Desc
	errors     *prometheus.Desc
	control    *prometheus.Desc
	unhandled  *prometheus.Desc
	evicted    *prometheus.Desc
	latency    *prometheus.Desc
	uptime     *prometheus.Desc
	state      *prometheus.Desc
}

// NewPrometheusCollector creates a collector under namespace. The state
// gauge reports 1 for the current state and 0 for every other name in
// states.
func NewPrometheusCollector(source Source, namespace string, states ...string) *PrometheusCollector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &PrometheusCollector{
		source:     source,
		states:     states,
		reconnects: desc("reconnects_total", "Total number of reconnect attempts"),
		sent:       desc("messages_sent_total", "Total number of application messages written"),
		received:   desc("messages_received_total", "Total number of inbound frames"),
		errors:     desc("errors_total", "Total number of reported faults"),
		control:    desc("control_frames_sent_total", "Total number of control frames written"),
		unhandled:  desc("unhandled_frames_total", "Total number of inbound frames with no handler"),
		evicted:    desc("evicted_messages_total", "Total number of queued messages evicted on overflow"),
		latency:    desc("heartbeat_latency_seconds", "Most recent heartbeat round trip in seconds"),
		uptime:     desc("uptime_seconds", "Seconds since the current connection opened"),
		state:      desc("state", "Current connection state", "state"),
	}
}

// Describe implements prometheus.Collector.
func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.reconnects
	ch <- c.sent
	ch <- c.received
	ch <- c.errors
	ch <- c.control
	ch <- c.unhandled
	ch <- c.evicted
	ch <- c.latency
	ch <- c.uptime
	ch <- c.state
}

// Collect implements prometheus.Collector.
func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Snapshot()

	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	counter(c.reconnects, s.ReconnectCount)
	counter(c.sent, s.MessagesSent)
	counter(c.received, s.MessagesReceived)
	counter(c.errors, s.Errors)
	counter(c.control, s.ControlSent)
	counter(c.unhandled, s.Unhandled)
	counter(c.evicted, s.Evicted)

	ch <- prometheus.MustNewConstMetric(c.latency, prometheus.GaugeValue, s.Latency.Seconds())
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, s.Uptime.Seconds())

	current := c.source.StateName()
	seen := false
	for _, name := range c.states {
		v := 0.0
		if name == current {
			v = 1
			seen = true
		}
		ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, v, name)
	}
	if !seen && current != "" {
		ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, 1, current)
	}
}
