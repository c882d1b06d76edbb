package memory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturador-sunat/internal/domain"
	"github.com/jhoicas/facturador-sunat/internal/domain/entity"
	"github.com/jhoicas/facturador-sunat/internal/domain/repository"
	"github.com/jhoicas/facturador-sunat/internal/infrastructure/memory"
)

var t0 = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

// seedJob crea un job abierto para un comprobante propio.
func seedJob(t *testing.T, s *memory.Store, runAt time.Time) *entity.Job {
	t.Helper()
	job := entity.NewJob("tenant-1", "", entity.JobKindSendSingle, runAt)
	job.DocumentID = "doc-" + job.ID
	require.NoError(t, s.Jobs().Create(context.Background(), job))
	return job
}

// ──────────────────────────────────────────────────────────────────────────────
// TryClaim
// ──────────────────────────────────────────────────────────────────────────────

// Muchos workers compiten por el mismo job: exactamente uno gana.
func TestTryClaim_ExclusividadDelLock(t *testing.T) {
	s := memory.New()
	job := seedJob(t, s, t0)

	var (
		wg     sync.WaitGroup
		winner atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.Jobs().TryClaim(context.Background(), job.ID, "worker-"+string(rune('a'+i)), t0, entity.DefaultLeaseDuration)
			assert.NoError(t, err)
			if ok {
				winner.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), winner.Load(), "solo un worker debe obtener el lock")
}

func TestTryClaim_LeaseExpiradoSePuedeReclamar(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	job := seedJob(t, s, t0)

	ok, err := s.Jobs().TryClaim(ctx, job.ID, "worker-a", t0, entity.DefaultLeaseDuration)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Jobs().TryClaim(ctx, job.ID, "worker-b", t0.Add(4*time.Minute), entity.DefaultLeaseDuration)
	require.NoError(t, err)
	assert.False(t, ok, "lease vigente")

	ok, err = s.Jobs().TryClaim(ctx, job.ID, "worker-b", t0.Add(6*time.Minute), entity.DefaultLeaseDuration)
	require.NoError(t, err)
	assert.True(t, ok, "lease expirado")

	// El dueño original ya no puede persistir.
	stale, err := s.Jobs().GetByID(ctx, job.ID)
	require.NoError(t, err)
	stale.Status = entity.JobStatusDone
	assert.ErrorIs(t, s.Jobs().UpdateIfOwner(ctx, stale, "worker-a"), domain.ErrLeaseLost)
	assert.NoError(t, s.Jobs().UpdateIfOwner(ctx, stale, "worker-b"))
}

func TestTryClaim_JobCerradoNoSeReclama(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	job := seedJob(t, s, t0)
	ok, err := s.Jobs().TryClaim(ctx, job.ID, "w", t0, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	job.Status = entity.JobStatusDone
	require.NoError(t, s.Jobs().UpdateIfOwner(ctx, job, "w"))

	ok, err = s.Jobs().TryClaim(ctx, job.ID, "w2", t0.Add(time.Hour), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

// ──────────────────────────────────────────────────────────────────────────────
// ListEligible
// ──────────────────────────────────────────────────────────────────────────────

func TestListEligible_FiltraYOrdena(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	late := seedJob(t, s, t0.Add(-time.Minute))
	early := seedJob(t, s, t0.Add(-10*time.Minute))
	seedJob(t, s, t0.Add(time.Hour)) // futuro
	locked := seedJob(t, s, t0.Add(-20*time.Minute))
	ok, err := s.Jobs().TryClaim(ctx, locked.ID, "w", t0, entity.DefaultLeaseDuration)
	require.NoError(t, err)
	require.True(t, ok)

	jobs, err := s.Jobs().ListEligible(ctx, t0, entity.DefaultLeaseDuration, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, early.ID, jobs[0].ID)
	assert.Equal(t, late.ID, jobs[1].ID)

	jobs, err = s.Jobs().ListEligible(ctx, t0, entity.DefaultLeaseDuration, 1)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

// ──────────────────────────────────────────────────────────────────────────────
// RunSubmission
// ──────────────────────────────────────────────────────────────────────────────

func TestRunSubmission_RollbackDeshaceEscrituras(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	doc := &entity.Document{ID: "doc-1", TenantID: "tenant-1", Status: entity.DocumentStatusSigned}
	require.NoError(t, s.Documents().Create(ctx, doc))

	boom := errors.New("boom")
	err := s.RunSubmission(ctx, func(docs repository.DocumentRepository, jobs repository.JobRepository) error {
		changed := *doc
		changed.Status = entity.DocumentStatusAccepted
		require.NoError(t, docs.UpdateResult(ctx, &changed))
		require.NoError(t, jobs.Create(ctx, entity.NewJob("tenant-1", "doc-1", entity.JobKindPollTicket, t0)))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Documents().GetByID(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusSigned, got.Status)

	open, err := s.Jobs().HasOpenJob(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, open)
}

func TestCreate_UnJobAbiertoPorComprobante(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	first := entity.NewJob("tenant-1", "doc-1", entity.JobKindSendSingle, t0)
	require.NoError(t, s.Jobs().Create(ctx, first))

	err := s.Jobs().Create(ctx, entity.NewJob("tenant-1", "doc-1", entity.JobKindSendSingle, t0))
	assert.ErrorIs(t, err, domain.ErrConflict)

	ok, err := s.Jobs().TryClaim(ctx, first.ID, "w", t0, entity.DefaultLeaseDuration)
	require.NoError(t, err)
	require.True(t, ok)
	first.Status = entity.JobStatusDone
	require.NoError(t, s.Jobs().UpdateIfOwner(ctx, first, "w"))

	assert.NoError(t, s.Jobs().Create(ctx, entity.NewJob("tenant-1", "doc-1", entity.JobKindPollTicket, t0)),
		"cerrado el anterior, se admite uno nuevo")
}

func TestGetByID_DevuelveCopias(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.Documents().Create(ctx, &entity.Document{ID: "d", Status: entity.DocumentStatusSigned}))

	got, err := s.Documents().GetByID(ctx, "d")
	require.NoError(t, err)
	got.Status = entity.DocumentStatusCanceled

	again, err := s.Documents().GetByID(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusSigned, again.Status)
}

func TestSettings_NoEncontrado(t *testing.T) {
	s := memory.New()
	_, err := s.Settings().GetByTenant(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
