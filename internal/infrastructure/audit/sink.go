// Package audit adapta el puerto submission.AuditSink a destinos concretos.
package audit

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/jhoicas/facturador-sunat/internal/application/submission"
)

// LogSink escribe cada evento como una línea estructurada de zerolog.
// Severidad: info para resultados normales, warn para reintentos y lease perdido, error para fallos.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink construye el sink sobre el logger dado.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "audit").Logger()}
}

func (s *LogSink) Notify(_ context.Context, ev submission.AuditEvent) error {
	s.log.WithLevel(levelFor(ev.Outcome)).
		Str("action", "submission."+string(ev.Outcome)).
		Str("job_id", ev.JobID).
		Str("document_id", ev.DocumentID).
		Str("tenant_id", ev.TenantID).
		Str("kind", string(ev.JobKind)).
		Str("document_status", string(ev.DocumentStatus)).
		Int("attempts", ev.Attempts).
		Str("error", ev.Error).
		Time("at", ev.At).
		Msg("auditoría de envío")
	return nil
}

func levelFor(o submission.Outcome) zerolog.Level {
	switch o {
	case submission.OutcomeFailed, submission.OutcomeStoreError:
		return zerolog.ErrorLevel
	case submission.OutcomeRetry, submission.OutcomeLeaseLost, submission.OutcomeRejected:
		return zerolog.WarnLevel
	}
	return zerolog.InfoLevel
}

// Multi reparte el evento entre varios sinks; todos reciben el evento aunque alguno falle.
type Multi []submission.AuditSink

func (m Multi) Notify(ctx context.Context, ev submission.AuditEvent) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ submission.AuditSink = (*LogSink)(nil)
	_ submission.AuditSink = Multi(nil)
)
