package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/facturador-sunat/internal/domain"
	"github.com/jhoicas/facturador-sunat/internal/domain/entity"
	"github.com/jhoicas/facturador-sunat/internal/domain/repository"
)

var _ repository.JobRepository = (*JobRepo)(nil)

// openJobConstraint índice parcial que impide dos jobs QUEUED para el mismo comprobante.
const openJobConstraint = "uq_jobs_open_per_document"

// JobRepo implementa la cola persistente de jobs. Toda la coordinación entre procesos
// worker se resuelve con UPDATE condicionales; no hay locks de aplicación.
type JobRepo struct {
	db Querier
}

// NewJobRepository construye el repositorio con el pool o una tx.
func NewJobRepository(db Querier) *JobRepo {
	return &JobRepo{db: db}
}

const jobColumns = `id, tenant_id, document_id, kind, status, attempts, last_error, next_run_at,
	locked_at, locked_by, completed_at, created_at, updated_at`

func (r *JobRepo) Create(ctx context.Context, j *entity.Job) error {
	query := `INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.db.Exec(ctx, query,
		j.ID, j.TenantID, j.DocumentID, string(j.Kind), string(j.Status), j.Attempts,
		nullIfEmpty(j.LastError), j.NextRunAt, j.LockedAt, nullIfEmpty(j.LockedBy), j.CompletedAt,
		j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			if constraintName(err) == openJobConstraint {
				return fmt.Errorf("comprobante %s ya tiene un job abierto: %w", j.DocumentID, domain.ErrConflict)
			}
			return fmt.Errorf("job %s: %w", j.ID, domain.ErrDuplicate)
		}
		return fmt.Errorf("crear job: %w", err)
	}
	return nil
}

func (r *JobRepo) GetByID(ctx context.Context, id string) (*entity.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	j, err := scanJob(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("leer job %s: %w", id, err)
	}
	return j, nil
}

func (r *JobRepo) ListEligible(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*entity.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs
		WHERE status = 'QUEUED'
		  AND next_run_at <= $1
		  AND (locked_at IS NULL OR locked_at <= $2)
		ORDER BY next_run_at, created_at
		LIMIT $3`
	rows, err := r.db.Query(ctx, query, now, now.Add(-lease), limit)
	if err != nil {
		return nil, fmt.Errorf("listar jobs elegibles: %w", err)
	}
	defer rows.Close()

	var list []*entity.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, j)
	}
	return list, rows.Err()
}

// TryClaim es el compare-and-swap del lease: solo un UPDATE puede ver la fila QUEUED sin lock vigente.
func (r *JobRepo) TryClaim(ctx context.Context, jobID, workerID string, now time.Time, lease time.Duration) (bool, error) {
	query := `UPDATE jobs SET locked_at = $3, locked_by = $2, updated_at = $3
		WHERE id = $1
		  AND status = 'QUEUED'
		  AND (locked_at IS NULL OR locked_at <= $4)`
	tag, err := r.db.Exec(ctx, query, jobID, workerID, now, now.Add(-lease))
	if err != nil {
		return false, fmt.Errorf("reclamar job %s: %w", jobID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *JobRepo) UpdateIfOwner(ctx context.Context, j *entity.Job, workerID string) error {
	query := `UPDATE jobs SET
		status = $2,
		attempts = $3,
		last_error = $4,
		next_run_at = $5,
		locked_at = $6,
		locked_by = $7,
		completed_at = $8,
		updated_at = $9
		WHERE id = $1 AND status = 'QUEUED' AND locked_by = $10`
	tag, err := r.db.Exec(ctx, query,
		j.ID, string(j.Status), j.Attempts, nullIfEmpty(j.LastError), j.NextRunAt,
		j.LockedAt, nullIfEmpty(j.LockedBy), j.CompletedAt, j.UpdatedAt,
		workerID,
	)
	if err != nil {
		return fmt.Errorf("actualizar job %s: %w", j.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLeaseLost
	}
	return nil
}

func (r *JobRepo) LatestForDocument(ctx context.Context, documentID string) (*entity.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs
		WHERE document_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`
	j, err := scanJob(r.db.QueryRow(ctx, query, documentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("último job de %s: %w", documentID, err)
	}
	return j, nil
}

func (r *JobRepo) HasOpenJob(ctx context.Context, documentID string) (bool, error) {
	var open bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM jobs WHERE document_id = $1 AND status = 'QUEUED')`,
		documentID,
	).Scan(&open)
	if err != nil {
		return false, fmt.Errorf("jobs abiertos de %s: %w", documentID, err)
	}
	return open, nil
}

func scanJob(row pgx.Row) (*entity.Job, error) {
	var (
		j                   entity.Job
		kind, status        string
		lastError, lockedBy *string
	)
	err := row.Scan(
		&j.ID, &j.TenantID, &j.DocumentID, &kind, &status, &j.Attempts, &lastError, &j.NextRunAt,
		&j.LockedAt, &lockedBy, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	j.Kind = entity.JobKind(kind)
	j.Status = entity.JobStatus(status)
	j.LastError = deref(lastError)
	j.LockedBy = deref(lockedBy)
	return &j, nil
}
