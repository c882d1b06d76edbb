package submission

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/jhoicas/facturador-sunat/internal/domain"
	"github.com/jhoicas/facturador-sunat/internal/domain/entity"
	"github.com/jhoicas/facturador-sunat/internal/domain/repository"
)

// Service casos de uso expuestos a los llamadores externos: encolar un envío y consultar su estado.
type Service struct {
	docs  repository.DocumentRepository
	jobs  repository.JobRepository
	tx    TxRunner
	clock clockwork.Clock
	log   zerolog.Logger
}

// NewService construye el servicio. clock puede ser nil (reloj real).
func NewService(docs repository.DocumentRepository, jobs repository.JobRepository, tx TxRunner, clock clockwork.Clock, log zerolog.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		docs:  docs,
		jobs:  jobs,
		tx:    tx,
		clock: clock,
		log:   log.With().Str("component", "submission_service").Logger(),
	}
}

// JobKindFor tipo de job inicial según el comprobante: lotes por sendSummary, el resto por sendBill.
func JobKindFor(kind entity.DocumentKind) entity.JobKind {
	if kind.IsBatch() {
		return entity.JobKindSendBatch
	}
	return entity.JobKindSendSingle
}

// Enqueue crea el job de envío para un comprobante SIGNED del tenant.
//
// Un comprobante en ERROR se re-encola como reintento manual: vuelve a SENT (si ya tenía ticket,
// con un POLL_TICKET) o a SIGNED. Con un job QUEUED abierto devuelve domain.ErrConflict.
func (s *Service) Enqueue(ctx context.Context, tenantID, documentID string) (*entity.Job, error) {
	doc, err := s.getOwned(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	kind := JobKindFor(doc.Kind)
	docChanged := false

	switch doc.Status {
	case entity.DocumentStatusSigned:
	case entity.DocumentStatusError:
		target := entity.DocumentStatusSigned
		if doc.Ticket != "" {
			target, kind = entity.DocumentStatusSent, entity.JobKindPollTicket
		}
		if err := doc.TransitionTo(target, now); err != nil {
			return nil, err
		}
		docChanged = true
	case entity.DocumentStatusDraft:
		return nil, domain.ErrDocumentNotSigned
	default:
		if doc.Status.IsTerminal() {
			return nil, domain.ErrAlreadyProcessed
		}
		return nil, fmt.Errorf("estado %s: %w", doc.Status, domain.ErrConflict)
	}

	job := entity.NewJob(tenantID, doc.ID, kind, now)
	err = s.tx.RunSubmission(ctx, func(docs repository.DocumentRepository, jobs repository.JobRepository) error {
		open, err := jobs.HasOpenJob(ctx, doc.ID)
		if err != nil {
			return err
		}
		if open {
			return fmt.Errorf("el comprobante ya tiene un envío en cola: %w", domain.ErrConflict)
		}
		if docChanged {
			if err := docs.UpdateResult(ctx, doc); err != nil {
				return err
			}
		}
		return jobs.Create(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("job_id", job.ID).
		Str("document_id", doc.ID).
		Str("tenant_id", tenantID).
		Str("kind", string(job.Kind)).
		Msg("envío encolado")
	return job, nil
}

// DocumentState comprobante junto con su último job (nil si nunca se encoló).
type DocumentState struct {
	Document *entity.Document
	Job      *entity.Job
}

// Status devuelve el estado del comprobante y de su último job.
func (s *Service) Status(ctx context.Context, tenantID, documentID string) (*DocumentState, error) {
	doc, err := s.getOwned(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	job, err := s.jobs.LatestForDocument(ctx, doc.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return &DocumentState{Document: doc, Job: job}, nil
}

// getOwned oculta los comprobantes de otros tenants como inexistentes.
func (s *Service) getOwned(ctx context.Context, tenantID, documentID string) (*entity.Document, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}
