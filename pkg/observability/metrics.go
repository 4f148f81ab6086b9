package observability

import (
	"net/http"
	"time"

	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/aretw0/coperacha/pkg/finance"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Message outcomes.
const (
	OutcomeHandled   = "handled"
	OutcomeDegraded  = "degraded"
	OutcomeThrottled = "throttled"
	OutcomeFailed    = "failed"
)

// Metrics holds every collector.
type Metrics struct {
	Messages     *prometheus.CounterVec
	Transitions  *prometheus.CounterVec
	Expirations  prometheus.Counter
	SubQueries   *prometheus.CounterVec
	LedgerWrites *prometheus.CounterVec
	TurnDuration prometheus.Histogram

	gatherer   prometheus.Gatherer
	registerer prometheus.Registerer
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg uses a fresh registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		Messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coperacha_messages_total",
				Help: "Inbound messages by outcome",
			},
			[]string{"outcome"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coperacha_transitions_total",
				Help: "Dialogue step transitions",
			},
			[]string{"from", "to"},
		),
		Expirations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coperacha_session_expirations_total",
			Help: "Sessions expired for inactivity",
		}),
		SubQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coperacha_subquery_results_total",
				Help: "Aggregation sub-query results by query and status",
			},
			[]string{"query", "status"},
		),
		LedgerWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coperacha_ledger_writes_total",
				Help: "Ledger writes by outcome",
			},
			[]string{"outcome"},
		),
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coperacha_turn_duration_seconds",
			Help:    "Time spent handling one inbound message",
			Buckets: prometheus.DefBuckets,
		}),
		gatherer:   reg,
		registerer: reg,
	}
	reg.MustRegister(m.Messages, m.Transitions, m.Expirations, m.SubQueries, m.LedgerWrites, m.TurnDuration)
	return m
}

// ObserveSubQuery implements finance.Observer.
func (m *Metrics) ObserveSubQuery(query string, status finance.Status) {
	m.SubQueries.WithLabelValues(query, string(status)).Inc()
}

// ObserveLedgerWrite implements wallet.Observer.
func (m *Metrics) ObserveLedgerWrite(outcome string) {
	m.LedgerWrites.WithLabelValues(outcome).Inc()
}

// ObserveTransition matches dialogue.TransitionFunc.
func (m *Metrics) ObserveTransition(from, to domain.Step) {
	m.Transitions.WithLabelValues(string(from), string(to)).Inc()
}

// ObserveMessage records one inbound message and how long its turn took.
func (m *Metrics) ObserveMessage(outcome string, took time.Duration) {
	m.Messages.WithLabelValues(outcome).Inc()
	if outcome != OutcomeThrottled {
		m.TurnDuration.Observe(took.Seconds())
	}
}

// ObserveExpiration records one inactivity expiry.
func (m *Metrics) ObserveExpiration() {
	m.Expirations.Inc()
}

// WatchQueues exports the number of sessions waiting to expire and of
// messages waiting for dispatch, read at scrape time.
func (m *Metrics) WatchQueues(pending, queued func() int) {
	m.registerer.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "coperacha_sessions_pending",
			Help: "Sessions with an armed inactivity expiry",
		}, func() float64 { return float64(pending()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "coperacha_inbox_queued",
			Help: "Inbound messages waiting for dispatch",
		}, func() float64 { return float64(queued()) }),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
