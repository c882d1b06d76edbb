package submission_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturador-sunat/internal/application/submission"
	"github.com/jhoicas/facturador-sunat/internal/domain"
	"github.com/jhoicas/facturador-sunat/internal/domain/entity"
)

func newService(f *fixture) *submission.Service {
	return submission.NewService(f.store.Documents(), f.store.Jobs(), f.store, f.clock, zerolog.Nop())
}

func TestEnqueue_FacturaCreaSendSingle(t *testing.T) {
	f := newFixture(t)
	doc := f.seedDocument(t, entity.DocumentKindInvoice, entity.DocumentStatusSigned)

	job, err := newService(f).Enqueue(context.Background(), testTenant, doc.ID)
	require.NoError(t, err)

	assert.Equal(t, entity.JobKindSendSingle, job.Kind)
	assert.Equal(t, entity.JobStatusQueued, job.Status)
	assert.Equal(t, f.clock.Now(), job.NextRunAt)
}

func TestEnqueue_ResumenCreaSendBatch(t *testing.T) {
	f := newFixture(t)
	doc := f.seedDocument(t, entity.DocumentKindSummary, entity.DocumentStatusSigned)

	job, err := newService(f).Enqueue(context.Background(), testTenant, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobKindSendBatch, job.Kind)
}

func TestEnqueue_SegundoJobAbiertoEsConflicto(t *testing.T) {
	f := newFixture(t)
	doc := f.seedDocument(t, entity.DocumentKindInvoice, entity.DocumentStatusSigned)
	svc := newService(f)

	_, err := svc.Enqueue(context.Background(), testTenant, doc.ID)
	require.NoError(t, err)

	_, err = svc.Enqueue(context.Background(), testTenant, doc.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestEnqueue_Precondiciones(t *testing.T) {
	f := newFixture(t)
	svc := newService(f)
	ctx := context.Background()

	draft := f.seedDocument(t, entity.DocumentKindInvoice, entity.DocumentStatusDraft)
	_, err := svc.Enqueue(ctx, testTenant, draft.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotSigned)

	accepted := f.seedDocument(t, entity.DocumentKindReceipt, entity.DocumentStatusAccepted)
	_, err = svc.Enqueue(ctx, testTenant, accepted.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)

	_, err = svc.Enqueue(ctx, "otro-tenant", draft.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "los comprobantes de otro tenant no se revelan")

	_, err = svc.Enqueue(ctx, testTenant, "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// Reintento manual: un comprobante en ERROR con ticket vuelve a SENT y se consulta el ticket.
func TestEnqueue_ReintentoManualDesdeError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.seedDocument(t, entity.DocumentKindVoid, entity.DocumentStatusError)
	doc.Ticket = "T-9"
	require.NoError(t, f.store.Documents().UpdateResult(ctx, doc))

	job, err := newService(f).Enqueue(ctx, testTenant, doc.ID)
	require.NoError(t, err)

	assert.Equal(t, entity.JobKindPollTicket, job.Kind)
	assert.Equal(t, entity.DocumentStatusSent, f.document(t, doc.ID).Status)
}

func TestStatus_IncluyeUltimoJob(t *testing.T) {
	f := newFixture(t)
	doc := f.seedDocument(t, entity.DocumentKindInvoice, entity.DocumentStatusSigned)
	svc := newService(f)

	st, err := svc.Status(context.Background(), testTenant, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, st.Job)

	job, err := svc.Enqueue(context.Background(), testTenant, doc.ID)
	require.NoError(t, err)

	st, err = svc.Status(context.Background(), testTenant, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, st.Job)
	assert.Equal(t, job.ID, st.Job.ID)
	assert.Equal(t, entity.DocumentStatusSigned, st.Document.Status)
}
