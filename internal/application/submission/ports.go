// Package submission orquesta el envío de comprobantes a SUNAT: resolución de credenciales,
// procesamiento de jobs, política de reintentos y encolado.
package submission

import (
	"context"
	"time"

	"github.com/jhoicas/facturador-sunat/internal/domain/entity"
	"github.com/jhoicas/facturador-sunat/internal/domain/repository"
)

// TxRunner ejecuta fn dentro de una transacción que incluye los repos de comprobantes y jobs.
// La actualización final del comprobante y del job se confirma o se descarta en bloque.
type TxRunner interface {
	RunSubmission(ctx context.Context, fn func(docs repository.DocumentRepository, jobs repository.JobRepository) error) error
}

// ── Auditoría ─────────────────────────────────────────────────────────────────

// AuditEvent registro de un resultado de procesamiento.
type AuditEvent struct {
	JobID          string
	DocumentID     string
	TenantID       string
	JobKind        entity.JobKind
	Outcome        Outcome
	DocumentStatus entity.DocumentStatus
	Attempts       int
	Error          string
	At             time.Time
}

// AuditSink puerto de salida unidireccional. Sus errores nunca afectan el procesamiento.
type AuditSink interface {
	Notify(ctx context.Context, ev AuditEvent) error
}

// AuditSinkFunc adapta una función a AuditSink.
type AuditSinkFunc func(ctx context.Context, ev AuditEvent) error

func (f AuditSinkFunc) Notify(ctx context.Context, ev AuditEvent) error { return f(ctx, ev) }

// ── Métricas ──────────────────────────────────────────────────────────────────

// MetricsRecorder recibe el resultado de cada job procesado.
type MetricsRecorder interface {
	ObserveJob(kind entity.JobKind, outcome Outcome, elapsed time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ObserveJob(entity.JobKind, Outcome, time.Duration) {}
