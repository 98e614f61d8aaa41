package doccache

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the cache collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	Hits          prometheus.Counter
	Misses        prometheus.Counter
	Builds        prometheus.Counter
	BuildFailures prometheus.Counter
	Evictions     prometheus.Counter
	Entries       prometheus.Gauge
}

// NewMetrics creates the cache collectors and registers them with reg when
// reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pagerag",
			Subsystem: "doccache",
			Name:      "hits_total",
			Help:      "Document cache lookups served from an existing entry.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pagerag",
			Subsystem: "doccache",
			Name:      "misses_total",
			Help:      "Document cache lookups that found no entry.",
		}),
		Builds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pagerag",
			Subsystem: "doccache",
			Name:      "builds_total",
			Help:      "Entry builds executed (one per single-flight group).",
		}),
		BuildFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pagerag",
			Subsystem: "doccache",
			Name:      "build_failures_total",
			Help:      "Entry builds that returned an error.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pagerag",
			Subsystem: "doccache",
			Name:      "evictions_total",
			Help:      "Entries dropped to respect the capacity.",
		}),
		Entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pagerag",
			Subsystem: "doccache",
			Name:      "entries",
			Help:      "Entries currently held.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Hits, m.Misses, m.Builds, m.BuildFailures, m.Evictions, m.Entries)
	}
	return m
}

func (m *Metrics) hit() {
	if m != nil {
		m.Hits.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.Misses.Inc()
	}
}

func (m *Metrics) build(err error) {
	if m == nil {
		return
	}
	m.Builds.Inc()
	if err != nil {
		m.BuildFailures.Inc()
	}
}

func (m *Metrics) evicted() {
	if m != nil {
		m.Evictions.Inc()
	}
}

func (m *Metrics) size(n int) {
	if m != nil {
		m.Entries.Set(float64(n))
	}
}
