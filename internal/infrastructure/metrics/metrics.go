// Package metrics expone las métricas Prometheus del worker de envíos a SUNAT.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jhoicas/facturador-sunat/internal/application/submission"
	"github.com/jhoicas/facturador-sunat/internal/domain/entity"
)

const (
	Namespace = "facturador"
	Subsystem = "sunat"
)

// Metrics agrupa contadores del procesador y del loop de workers.
type Metrics struct {
	JobsProcessedTotal *prometheus.CounterVec
	JobDurationSeconds *prometheus.HistogramVec

	ClaimsTotal     prometheus.Counter
	ClaimsLostTotal prometheus.Counter
	PollErrorsTotal prometheus.Counter
	PanicsTotal     prometheus.Counter
	JobsInFlight    prometheus.Gauge
}

// New crea y registra las métricas en reg (prometheus.DefaultRegisterer si es nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		JobsProcessedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "jobs_processed_total",
				Help:      "Jobs procesados por tipo y resultado",
			},
			[]string{"kind", "outcome"},
		),
		JobDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "job_duration_seconds",
				Help:      "Duración del procesamiento de un job (incluye la llamada al WS)",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms a ~100s
			},
			[]string{"kind"},
		),
		ClaimsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "claims_total",
			Help:      "Jobs reclamados con éxito",
		}),
		ClaimsLostTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "claims_lost_total",
			Help:      "Intentos de reclamo perdidos frente a otro worker",
		}),
		PollErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "poll_errors_total",
			Help:      "Errores al consultar jobs elegibles",
		}),
		PanicsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "processor_panics_total",
			Help:      "Pánicos recuperados durante el procesamiento",
		}),
		JobsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "jobs_in_flight",
			Help:      "Jobs en procesamiento en este worker",
		}),
	}
}

// ObserveJob implementa submission.MetricsRecorder.
func (m *Metrics) ObserveJob(kind entity.JobKind, outcome submission.Outcome, elapsed time.Duration) {
	m.JobsProcessedTotal.WithLabelValues(string(kind), string(outcome)).Inc()
	m.JobDurationSeconds.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// ── Hooks del loop de workers ─────────────────────────────────────────────────

func (m *Metrics) ClaimWon()       { m.ClaimsTotal.Inc() }
func (m *Metrics) ClaimLost()      { m.ClaimsLostTotal.Inc() }
func (m *Metrics) PollFailed()     { m.PollErrorsTotal.Inc() }
func (m *Metrics) PanicRecovered() { m.PanicsTotal.Inc() }
func (m *Metrics) InFlight(n int)  { m.JobsInFlight.Set(float64(n)) }

var _ submission.MetricsRecorder = (*Metrics)(nil)
