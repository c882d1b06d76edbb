package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturador-sunat/internal/application/submission"
	"github.com/jhoicas/facturador-sunat/internal/domain/entity"
	"github.com/jhoicas/facturador-sunat/internal/infrastructure/metrics"
)

// value lee el valor actual de un counter o gauge.
func value(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	return m.Gauge.GetValue()
}

func TestObserveJob_CuentaPorTipoYResultado(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ObserveJob(entity.JobKindSendSingle, submission.OutcomeAccepted, 200*time.Millisecond)
	m.ObserveJob(entity.JobKindSendSingle, submission.OutcomeAccepted, 300*time.Millisecond)
	m.ObserveJob(entity.JobKindPollTicket, submission.OutcomePending, time.Second)

	assert.Equal(t, 2.0, value(t, m.JobsProcessedTotal.WithLabelValues("SEND_SINGLE", "accepted")))
	assert.Equal(t, 1.0, value(t, m.JobsProcessedTotal.WithLabelValues("POLL_TICKET", "pending")))
}

func TestHooksDelLoop(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ClaimWon()
	m.ClaimLost()
	m.ClaimLost()
	m.InFlight(3)

	assert.Equal(t, 1.0, value(t, m.ClaimsTotal))
	assert.Equal(t, 2.0, value(t, m.ClaimsLostTotal))
	assert.Equal(t, 3.0, value(t, m.JobsInFlight))
}

func TestNew_RegistroDuplicadoEntraEnPanico(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg)
	assert.Panics(t, func() { metrics.New(reg) })
}
