package router

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Turn outcomes recorded by Metrics.
const (
	outcomeProcessed = "processed"
	outcomeIgnored   = "ignored"
	outcomePostponed = "postponed"
	outcomeRefused   = "refused"
	outcomeFailed    = "failed"
	outcomeDetached  = "detached"
)

// Metrics holds the router's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	submissions   *prometheus.CounterVec
	turns         *prometheus.CounterVec
	mutations     prometheus.Counter
	refusals      *prometheus.CounterVec
	interruptions prometheus.Counter
	cancellations prometheus.Counter
	queueDepth    prometheus.Gauge
	turnDuration  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// It panics if registration fails, like prometheus.MustRegister.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "navqueue_submissions_total",
				Help: "Calls accepted by the router, by unit kind",
			},
			[]string{"kind"},
		),
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "navqueue_turns_total",
				Help: "Execution turns finished, by outcome",
			},
			[]string{"outcome"},
		),
		mutations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "navqueue_mutations_total",
				Help: "Stack mutations counted across all mutation sessions",
			},
		),
		refusals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "navqueue_refusals_total",
				Help: "Host refusals, by active state-loss policy",
			},
			[]string{"policy"},
		),
		interruptions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "navqueue_interruptions_total",
				Help: "Submissions whose result was pre-empted by an interrupting unit",
			},
		),
		cancellations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "navqueue_cancellations_total",
				Help: "Pending queue entries and reactive sources cancelled",
			},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "navqueue_queue_depth",
				Help: "Entries currently in the router queue",
			},
		),
		turnDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "navqueue_turn_duration_seconds",
				Help:    "Time from session start until the turn's entry resolved",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
		),
	}

	reg.MustRegister(
		m.submissions,
		m.turns,
		m.mutations,
		m.refusals,
		m.interruptions,
		m.cancellations,
		m.queueDepth,
		m.turnDuration,
	)

	return m
}

func (m *Metrics) submitted(kind string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(kind).Inc()
}

func (m *Metrics) turn(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
	m.turnDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) mutated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.mutations.Add(float64(n))
}

func (m *Metrics) refused(p StateLossPolicy) {
	if m == nil {
		return
	}
	m.refusals.WithLabelValues(p.String()).Inc()
}

func (m *Metrics) interrupted() {
	if m == nil {
		return
	}
	m.interruptions.Inc()
}

func (m *Metrics) cancelled() {
	if m == nil {
		return
	}
	m.cancellations.Inc()
}

func (m *Metrics) depth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
