package entity

import (
	"time"

	"github.com/google/uuid"
)

// DefaultLeaseDuration tiempo tras el cual un lock de job se considera expirado y reclamable.
const DefaultLeaseDuration = 5 * time.Minute

// JobKind operación que el job avanza contra SUNAT.
type JobKind string

const (
	JobKindSendSingle JobKind = "SEND_SINGLE" // sendBill: respuesta síncrona con CDR
	JobKindSendBatch  JobKind = "SEND_BATCH"  // sendSummary: devuelve ticket
	JobKindPollTicket JobKind = "POLL_TICKET" // getStatus: consulta del ticket
)

// Valid indica si el tipo de job pertenece al catálogo cerrado.
func (k JobKind) Valid() bool {
	switch k {
	case JobKindSendSingle, JobKindSendBatch, JobKindPollTicket:
		return true
	}
	return false
}

// JobStatus estado de planificación del job.
type JobStatus string

const (
	JobStatusQueued JobStatus = "QUEUED"
	JobStatusDone   JobStatus = "DONE"
	JobStatusFailed JobStatus = "FAILED"
)

// Job intento de avanzar un Document a través del protocolo. Nunca se borra (auditoría).
type Job struct {
	ID          string
	TenantID    string
	DocumentID  string
	Kind        JobKind
	Status      JobStatus
	Attempts    int
	LastError   string
	NextRunAt   time.Time
	LockedAt    *time.Time
	LockedBy    string
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewJob construye un job QUEUED elegible a partir de runAt.
func NewJob(tenantID, documentID string, kind JobKind, runAt time.Time) *Job {
	return &Job{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		DocumentID: documentID,
		Kind:       kind,
		Status:     JobStatusQueued,
		NextRunAt:  runAt,
		CreatedAt:  runAt,
		UpdatedAt:  runAt,
	}
}

// IsLocked indica si el job tiene un lock vigente en el instante now.
func (j *Job) IsLocked(now time.Time, lease time.Duration) bool {
	if j.LockedAt == nil {
		return false
	}
	return now.Sub(*j.LockedAt) < lease
}

// Eligible indica si el job puede ser reclamado: QUEUED, vencido y sin lock vigente.
func (j *Job) Eligible(now time.Time, lease time.Duration) bool {
	return j.Status == JobStatusQueued && !j.NextRunAt.After(now) && !j.IsLocked(now, lease)
}

// ClearLock libera los campos de lock.
func (j *Job) ClearLock() {
	j.LockedAt = nil
	j.LockedBy = ""
}
