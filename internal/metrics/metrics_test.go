package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.SagaStep("send_fund", "success")
		m.GatewayCall("send", "2xx", time.Millisecond)
		m.IdempotentSignal("already_released", "code")
		m.LedgerRetry("send_fund")
		m.Unreconciled("send_fund")
		m.NotificationFailed()
	})
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SagaStep("finalize_accept", "success")
	m.SagaStep("finalize_accept", "success")
	m.IdempotentSignal("already_approved", "message")
	m.Unreconciled("confirm_release")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.sagaSteps.WithLabelValues("finalize_accept", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.idempotentSignals.WithLabelValues("already_approved", "message")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.unreconciled.WithLabelValues("confirm_release")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.notifyFailures))
}
