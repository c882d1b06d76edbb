package repository

import (
	"context"
	"time"

	"github.com/jhoicas/facturador-sunat/internal/domain/entity"
)

// JobRepository define el puerto de la cola persistente de jobs.
// Es el único recurso compartido entre procesos worker; toda coordinación pasa por TryClaim.
type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	// GetByID devuelve domain.ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*entity.Job, error)

	// ListEligible devuelve hasta limit jobs QUEUED con NextRunAt <= now y lock ausente o
	// expirado, ordenados por NextRunAt ascendente.
	ListEligible(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*entity.Job, error)

	// TryClaim toma el lock del job de forma atómica (compare-and-swap sobre status + locked_at).
	// Devuelve false sin error cuando otro worker ganó la carrera.
	TryClaim(ctx context.Context, jobID, workerID string, now time.Time, lease time.Duration) (bool, error)

	// UpdateIfOwner persiste el job solo si el lock sigue siendo de workerID.
	// Devuelve domain.ErrLeaseLost si el lease fue reclamado por otro worker.
	UpdateIfOwner(ctx context.Context, job *entity.Job, workerID string) error

	// LatestForDocument devuelve el último job creado para el comprobante (domain.ErrNotFound si no hay).
	LatestForDocument(ctx context.Context, documentID string) (*entity.Job, error)

	// HasOpenJob indica si el comprobante tiene algún job QUEUED.
	HasOpenJob(ctx context.Context, documentID string) (bool, error)
}
