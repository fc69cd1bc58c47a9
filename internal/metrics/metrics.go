// Package metrics holds the Prometheus collectors of the settlement coordinator.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	sagaSteps         *prometheus.CounterVec
	gatewayCalls      *prometheus.CounterVec
	gatewayLatency    *prometheus.HistogramVec
	idempotentSignals *prometheus.CounterVec
	ledgerRetries     *prometheus.CounterVec
	unreconciled      *prometheus.CounterVec
	notifyFailures    prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sagaSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "escrow",
			Name:      "saga_steps_total",
			Help:      "Saga step invocations by step and outcome.",
		}, []string{"step", "outcome"}),
		gatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "escrow",
			Name:      "gateway_requests_total",
			Help:      "Settlement API requests by operation and HTTP status class.",
		}, []string{"operation", "status"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "escrow",
			Name:      "gateway_request_duration_seconds",
			Help:      "Settlement API latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		idempotentSignals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "escrow",
			Name:      "gateway_idempotent_signals_total",
			Help:      "Gateway errors treated as success, by signal and detection source.",
		}, []string{"signal", "source"}),
		ledgerRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "escrow",
			Name:      "ledger_write_retries_total",
			Help:      "Ledger write retries after a successful external call.",
		}, []string{"step"}),
		unreconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "escrow",
			Name:      "ledger_unreconciled_total",
			Help:      "External successes whose ledger write could not be completed.",
		}, []string{"step"}),
		notifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "escrow",
			Name:      "notification_failures_total",
			Help:      "Notifications that could not be persisted or enqueued.",
		}),
	}
	reg.MustRegister(m.sagaSteps, m.gatewayCalls, m.gatewayLatency, m.idempotentSignals,
		m.ledgerRetries, m.unreconciled, m.notifyFailures)
	return m
}

func (m *Metrics) SagaStep(step, outcome string) {
	if m == nil {
		return
	}
	m.sagaSteps.WithLabelValues(step, outcome).Inc()
}

func (m *Metrics) GatewayCall(operation, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.gatewayCalls.WithLabelValues(operation, status).Inc()
	m.gatewayLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// IdempotentSignal counts a gateway error treated as success. source is "code" or "message".
func (m *Metrics) IdempotentSignal(signal, source string) {
	if m == nil {
		return
	}
	m.idempotentSignals.WithLabelValues(signal, source).Inc()
}

func (m *Metrics) LedgerRetry(step string) {
	if m == nil {
		return
	}
	m.ledgerRetries.WithLabelValues(step).Inc()
}

func (m *Metrics) Unreconciled(step string) {
	if m == nil {
		return
	}
	m.unreconciled.WithLabelValues(step).Inc()
}

func (m *Metrics) NotificationFailed() {
	if m == nil {
		return
	}
	m.notifyFailures.Inc()
}
