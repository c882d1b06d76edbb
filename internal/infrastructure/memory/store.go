// Package memory implementa los repositorios de comprobantes, jobs y configuración en memoria.
// Seguro para acceso concurrente; pensado para tests y desarrollo local.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/facturador-sunat/internal/application/submission"
	"github.com/jhoicas/facturador-sunat/internal/domain"
	"github.com/jhoicas/facturador-sunat/internal/domain/entity"
	"github.com/jhoicas/facturador-sunat/internal/domain/repository"
)

var (
	_ repository.DocumentRepository = (*DocumentRepo)(nil)
	_ repository.JobRepository      = (*JobRepo)(nil)
	_ repository.SettingsRepository = (*SettingsRepo)(nil)
	_ submission.TxRunner           = (*Store)(nil)
)

// Store guarda copias de las entidades; nunca entrega punteros a su estado interno.
type Store struct {
	mu sync.Mutex

	docs     map[string]entity.Document
	jobs     map[string]entity.Job
	settings map[string]entity.TenantSettings
}

// New devuelve un Store vacío.
func New() *Store {
	return &Store{
		docs:     make(map[string]entity.Document),
		jobs:     make(map[string]entity.Job),
		settings: make(map[string]entity.TenantSettings),
	}
}

// Documents repositorio de comprobantes fuera de transacción.
func (s *Store) Documents() *DocumentRepo { return &DocumentRepo{s: s} }

// Jobs repositorio de jobs fuera de transacción.
func (s *Store) Jobs() *JobRepo { return &JobRepo{s: s} }

// Settings repositorio de configuración por tenant.
func (s *Store) Settings() *SettingsRepo { return &SettingsRepo{s: s} }

// PutSettings registra (o reemplaza) la configuración de un tenant.
func (s *Store) PutSettings(st entity.TenantSettings) {
	s.mu.Lock()
	s.settings[st.TenantID] = st
	s.mu.Unlock()
}

// RunSubmission ejecuta fn con el Store bloqueado. Si fn falla se deshacen sus escrituras.
func (s *Store) RunSubmission(ctx context.Context, fn func(docs repository.DocumentRepository, jobs repository.JobRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txState{}
	if err := fn(&DocumentRepo{s: s, tx: tx}, &JobRepo{s: s, tx: tx}); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

// txState acumula las funciones para deshacer las escrituras hechas dentro de RunSubmission.
type txState struct {
	undo []func()
}

func lockFor(s *Store, tx *txState) func() {
	if tx != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// ── Documents ─────────────────────────────────────────────────────────────────

// DocumentRepo implementa repository.DocumentRepository.
type DocumentRepo struct {
	s  *Store
	tx *txState
}

func (r *DocumentRepo) Create(_ context.Context, doc *entity.Document) error {
	defer lockFor(r.s, r.tx)()
	if _, ok := r.s.docs[doc.ID]; ok {
		return domain.ErrDuplicate
	}
	r.s.docs[doc.ID] = copyDocument(*doc)
	if r.tx != nil {
		id := doc.ID
		r.tx.undo = append(r.tx.undo, func() { delete(r.s.docs, id) })
	}
	return nil
}

func (r *DocumentRepo) GetByID(_ context.Context, id string) (*entity.Document, error) {
	defer lockFor(r.s, r.tx)()
	d, ok := r.s.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := copyDocument(d)
	return &out, nil
}

func (r *DocumentRepo) UpdateResult(_ context.Context, doc *entity.Document) error {
	defer lockFor(r.s, r.tx)()
	prev, ok := r.s.docs[doc.ID]
	if !ok {
		return domain.ErrNotFound
	}
	r.s.docs[doc.ID] = copyDocument(*doc)
	if r.tx != nil {
		r.tx.undo = append(r.tx.undo, func() { r.s.docs[prev.ID] = prev })
	}
	return nil
}

// ── Jobs ──────────────────────────────────────────────────────────────────────

// JobRepo implementa repository.JobRepository.
type JobRepo struct {
	s  *Store
	tx *txState
}

func (r *JobRepo) Create(_ context.Context, job *entity.Job) error {
	defer lockFor(r.s, r.tx)()
	if _, ok := r.s.jobs[job.ID]; ok {
		return domain.ErrDuplicate
	}
	// mismo contrato que uq_jobs_open_per_document
	if job.Status == entity.JobStatusQueued {
		for _, j := range r.s.jobs {
			if j.DocumentID == job.DocumentID && j.Status == entity.JobStatusQueued {
				return domain.ErrConflict
			}
		}
	}
	r.s.jobs[job.ID] = copyJob(*job)
	if r.tx != nil {
		id := job.ID
		r.tx.undo = append(r.tx.undo, func() { delete(r.s.jobs, id) })
	}
	return nil
}

func (r *JobRepo) GetByID(_ context.Context, id string) (*entity.Job, error) {
	defer lockFor(r.s, r.tx)()
	j, ok := r.s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := copyJob(j)
	return &out, nil
}

func (r *JobRepo) ListEligible(_ context.Context, now time.Time, lease time.Duration, limit int) ([]*entity.Job, error) {
	defer lockFor(r.s, r.tx)()
	candidates := make([]entity.Job, 0)
	for _, j := range r.s.jobs {
		if j.Eligible(now, lease) {
			candidates = append(candidates, j)
		}
	}
	sort.Slice(candidates, func(i, k int) bool {
		if candidates[i].NextRunAt.Equal(candidates[k].NextRunAt) {
			return candidates[i].CreatedAt.Before(candidates[k].CreatedAt)
		}
		return candidates[i].NextRunAt.Before(candidates[k].NextRunAt)
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]*entity.Job, len(candidates))
	for i := range candidates {
		c := copyJob(candidates[i])
		out[i] = &c
	}
	return out, nil
}

func (r *JobRepo) TryClaim(_ context.Context, jobID, workerID string, now time.Time, lease time.Duration) (bool, error) {
	defer lockFor(r.s, r.tx)()
	j, ok := r.s.jobs[jobID]
	if !ok || j.Status != entity.JobStatusQueued || j.IsLocked(now, lease) {
		return false, nil
	}
	prev := j
	lockedAt := now
	j.LockedAt = &lockedAt
	j.LockedBy = workerID
	j.UpdatedAt = now
	r.s.jobs[jobID] = j
	if r.tx != nil {
		r.tx.undo = append(r.tx.undo, func() { r.s.jobs[jobID] = prev })
	}
	return true, nil
}

func (r *JobRepo) UpdateIfOwner(_ context.Context, job *entity.Job, workerID string) error {
	defer lockFor(r.s, r.tx)()
	prev, ok := r.s.jobs[job.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if prev.Status != entity.JobStatusQueued || prev.LockedBy != workerID {
		return domain.ErrLeaseLost
	}
	r.s.jobs[job.ID] = copyJob(*job)
	if r.tx != nil {
		r.tx.undo = append(r.tx.undo, func() { r.s.jobs[prev.ID] = prev })
	}
	return nil
}

func (r *JobRepo) LatestForDocument(_ context.Context, documentID string) (*entity.Job, error) {
	defer lockFor(r.s, r.tx)()
	var latest *entity.Job
	for _, j := range r.s.jobs {
		if j.DocumentID != documentID {
			continue
		}
		if latest == nil || j.CreatedAt.After(latest.CreatedAt) {
			c := copyJob(j)
			latest = &c
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return latest, nil
}

func (r *JobRepo) HasOpenJob(_ context.Context, documentID string) (bool, error) {
	defer lockFor(r.s, r.tx)()
	for _, j := range r.s.jobs {
		if j.DocumentID == documentID && j.Status == entity.JobStatusQueued {
			return true, nil
		}
	}
	return false, nil
}

// ── Settings ──────────────────────────────────────────────────────────────────

// SettingsRepo implementa repository.SettingsRepository.
type SettingsRepo struct {
	s *Store
}

func (r *SettingsRepo) GetByTenant(_ context.Context, tenantID string) (*entity.TenantSettings, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.settings[tenantID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &st, nil
}

// ── copias ────────────────────────────────────────────────────────────────────

func copyDocument(d entity.Document) entity.Document {
	if d.RespondedAt != nil {
		t := *d.RespondedAt
		d.RespondedAt = &t
	}
	return d
}

func copyJob(j entity.Job) entity.Job {
	if j.LockedAt != nil {
		t := *j.LockedAt
		j.LockedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		j.CompletedAt = &t
	}
	return j
}
