package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturador-sunat/internal/application/submission"
	"github.com/jhoicas/facturador-sunat/internal/domain/entity"
	"github.com/jhoicas/facturador-sunat/internal/infrastructure/audit"
)

func sampleEvent(outcome submission.Outcome) submission.AuditEvent {
	return submission.AuditEvent{
		JobID:          "job-1",
		DocumentID:     "doc-1",
		TenantID:       "tenant-1",
		JobKind:        entity.JobKindSendSingle,
		Outcome:        outcome,
		DocumentStatus: entity.DocumentStatusError,
		Attempts:       5,
		Error:          "reintentos agotados",
		At:             time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
	}
}

func TestLogSink_EscribeEventoEstructurado(t *testing.T) {
	var buf bytes.Buffer
	sink := audit.NewLogSink(zerolog.New(&buf))

	require.NoError(t, sink.Notify(context.Background(), sampleEvent(submission.OutcomeFailed)))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "submission.failed", line["action"])
	assert.Equal(t, "doc-1", line["document_id"])
	assert.Equal(t, "ERROR", line["document_status"])
	assert.EqualValues(t, 5, line["attempts"])
}

func TestLogSink_NivelSegunResultado(t *testing.T) {
	var buf bytes.Buffer
	sink := audit.NewLogSink(zerolog.New(&buf))

	require.NoError(t, sink.Notify(context.Background(), sampleEvent(submission.OutcomeAccepted)))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
}

func TestMulti_EntregaATodosYUneErrores(t *testing.T) {
	var got []string
	boom := errors.New("boom")

	m := audit.Multi{
		submission.AuditSinkFunc(func(_ context.Context, ev submission.AuditEvent) error {
			got = append(got, "a:"+ev.JobID)
			return boom
		}),
		nil,
		submission.AuditSinkFunc(func(_ context.Context, ev submission.AuditEvent) error {
			got = append(got, "b:"+ev.JobID)
			return nil
		}),
	}

	err := m.Notify(context.Background(), sampleEvent(submission.OutcomeRetry))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a:job-1", "b:job-1"}, got)
}
