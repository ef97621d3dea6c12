package diagnostics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors exported on the diagnostics
// server's /metrics route (§6 "diagnostics stream"). They are separate
// from Counters; callers increment both.
type Metrics struct {
	reg *prometheus.Registry

	drops          *prometheus.CounterVec
	gateRejections *prometheus.CounterVec
	gateAdmitted   prometheus.Counter
	detections     *prometheus.CounterVec
	advisorLatency prometheus.Histogram
	advisorFailures *prometheus.CounterVec
}

// NewMetrics builds a fresh Prometheus registry and collector set.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		reg: reg,
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderflow",
			Name:      "dropped_events_total",
			Help:      "Hot-path events dropped, bucketed by reason (spec §7).",
		}, []string{"reason"}),
		gateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderflow",
			Name:      "gate_rejections_total",
			Help:      "Signal gate rejections, bucketed by reason (spec §4.6).",
		}, []string{"reason"}),
		gateAdmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orderflow",
			Name:      "gate_admitted_total",
			Help:      "Signals admitted by the gate.",
		}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderflow",
			Name:      "detections_total",
			Help:      "Pattern detections fired, bucketed by kind.",
		}, []string{"kind"}),
		advisorLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "orderflow",
			Name:      "advisor_call_duration_seconds",
			Help:      "Advisor collaborator round-trip latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		advisorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderflow",
			Name:      "advisor_failures_total",
			Help:      "Advisor adapter failures, bucketed by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.drops, m.gateRejections, m.gateAdmitted, m.detections, m.advisorLatency, m.advisorFailures)
	return m
}

// Registry exposes the underlying Prometheus registry for the HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) DropEvent(reason string)       { m.drops.WithLabelValues(reason).Inc() }
func (m *Metrics) GateRejected(reason string)    { m.gateRejections.WithLabelValues(reason).Inc() }
func (m *Metrics) GateAdmitted()                 { m.gateAdmitted.Inc() }
func (m *Metrics) Detection(kind string)         { m.detections.WithLabelValues(kind).Inc() }
func (m *Metrics) AdvisorLatency(d time.Duration) { m.advisorLatency.Observe(d.Seconds()) }
func (m *Metrics) AdvisorFailure(reason string)  { m.advisorFailures.WithLabelValues(reason).Inc() }
