// Package metrics aggregates connection diagnostics.
//
// A Collector counts reconnects, messages and faults, and keeps heartbeat
// latency samples. The connection manager writes to it; observability
// tooling reads Snapshot values or scrapes them through
// NewPrometheusCollector:
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(metrics.NewPrometheusCollector(src, "synckit", states...))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// Nothing in the connection logic reads these values back.
package metrics
