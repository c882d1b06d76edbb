package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/jhoicas/facturador-sunat/internal/domain"
	"github.com/jhoicas/facturador-sunat/internal/domain/entity"
	"github.com/jhoicas/facturador-sunat/internal/domain/repository"
	"github.com/jhoicas/facturador-sunat/internal/infrastructure/sunat"
	pkgsunat "github.com/jhoicas/facturador-sunat/pkg/sunat"
)

// Outcome resultado de procesar un job.
type Outcome string

const (
	OutcomeAccepted   Outcome = "accepted"    // CDR de aceptación (ACCEPTED u OBSERVED)
	OutcomeRejected   Outcome = "rejected"    // CDR de rechazo
	OutcomeSubmitted  Outcome = "submitted"   // lote enviado, ticket obtenido
	OutcomePending    Outcome = "pending"     // ticket en proceso (98)
	OutcomeRetry      Outcome = "retry"       // error reintentable, job re-encolado
	OutcomeFailed     Outcome = "failed"      // error terminal o reintentos agotados
	OutcomeSkipped    Outcome = "skipped"     // comprobante ya en estado final
	OutcomeLeaseLost  Outcome = "lease_lost"  // otro worker reclamó el job
	OutcomeStoreError Outcome = "store_error" // no se pudo persistir; el lease expirará
)

// Result lo que devuelve Process para cada job. Process nunca entra en pánico ni propaga errores:
// todo desenlace queda en el estado persistido y en este registro.
type Result struct {
	JobID          string
	DocumentID     string
	Outcome        Outcome
	DocumentStatus entity.DocumentStatus
	Err            error
}

// ProcessorDeps dependencias del procesador. Audit, Metrics y Clock son opcionales.
type ProcessorDeps struct {
	Documents   repository.DocumentRepository
	Jobs        repository.JobRepository
	Tx          TxRunner
	Credentials CredentialsResolver
	Client      sunat.BillService
	Policy      RetryPolicy
	Clock       clockwork.Clock
	Audit       AuditSink
	Metrics     MetricsRecorder
	Logger      zerolog.Logger
}

// Processor avanza un job reclamado: empaqueta, llama al WS, interpreta el CDR y persiste.
type Processor struct {
	docs    repository.DocumentRepository
	jobs    repository.JobRepository
	tx      TxRunner
	creds   CredentialsResolver
	client  sunat.BillService
	policy  RetryPolicy
	clock   clockwork.Clock
	audit   AuditSink
	metrics MetricsRecorder
	log     zerolog.Logger
}

// NewProcessor construye el procesador.
func NewProcessor(d ProcessorDeps) *Processor {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Metrics == nil {
		d.Metrics = noopMetrics{}
	}
	if d.Policy.MaxAttempts <= 0 {
		d.Policy = DefaultRetryPolicy()
	}
	return &Processor{
		docs:    d.Documents,
		jobs:    d.Jobs,
		tx:      d.Tx,
		creds:   d.Credentials,
		client:  d.Client,
		policy:  d.Policy,
		clock:   d.Clock,
		audit:   d.Audit,
		metrics: d.Metrics,
		log:     d.Logger.With().Str("component", "processor").Logger(),
	}
}

// Process ejecuta el job ya reclamado por workerID.
func (p *Processor) Process(ctx context.Context, job *entity.Job, workerID string) Result {
	start := p.clock.Now()
	log := p.log.With().
		Str("job_id", job.ID).
		Str("document_id", job.DocumentID).
		Str("tenant_id", job.TenantID).
		Str("kind", string(job.Kind)).
		Int("attempt", job.Attempts+1).
		Str("worker_id", workerID).
		Logger()
	ctx = log.WithContext(ctx)

	res := p.dispatch(ctx, job, workerID)

	p.metrics.ObserveJob(job.Kind, res.Outcome, p.clock.Since(start))
	p.notify(ctx, job, res)

	lvl := zerolog.InfoLevel
	if res.Err != nil && res.Outcome != OutcomeSkipped {
		lvl = zerolog.WarnLevel
	}
	log.WithLevel(lvl).Err(res.Err).
		Str("outcome", string(res.Outcome)).
		Str("document_status", string(res.DocumentStatus)).
		Dur("elapsed", p.clock.Since(start)).
		Msg("job procesado")
	return res
}

func (p *Processor) dispatch(ctx context.Context, job *entity.Job, workerID string) Result {
	doc, err := p.docs.GetByID(ctx, job.DocumentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return p.fail(ctx, job, nil, workerID, fmt.Errorf("comprobante %s: %w", job.DocumentID, err))
		}
		return p.fail(ctx, job, nil, workerID, fmt.Errorf("leer comprobante: %w", err))
	}
	if doc.TenantID != job.TenantID {
		return p.fail(ctx, job, nil, workerID, fmt.Errorf("comprobante de otro tenant: %w", domain.ErrForbidden))
	}

	// Idempotencia: un comprobante ya resuelto nunca se reenvía.
	if doc.Status.IsTerminal() {
		return p.skip(ctx, job, doc, workerID)
	}

	switch job.Kind {
	case entity.JobKindSendSingle:
		return p.sendSingle(ctx, job, doc, workerID)
	case entity.JobKindSendBatch:
		return p.sendBatch(ctx, job, doc, workerID)
	case entity.JobKindPollTicket:
		return p.pollTicket(ctx, job, doc, workerID)
	default:
		return p.fail(ctx, job, nil, workerID, fmt.Errorf("tipo de job %q: %w", job.Kind, domain.ErrInvalidInput))
	}
}

// ── Handlers por tipo de job ──────────────────────────────────────────────────

func (p *Processor) sendSingle(ctx context.Context, job *entity.Job, doc *entity.Document, workerID string) Result {
	if doc.Status != entity.DocumentStatusSigned {
		return p.fail(ctx, job, nil, workerID, fmt.Errorf("estado %s: %w", doc.Status, domain.ErrDocumentNotSigned))
	}
	if doc.Kind.IsBatch() {
		return p.fail(ctx, job, doc, workerID, fmt.Errorf("%s se envía por sendSummary: %w", doc.Kind, domain.ErrInvalidInput))
	}

	acct, zipName, archive, err := p.prepare(ctx, doc)
	if err != nil {
		return p.fail(ctx, job, doc, workerID, err)
	}

	resp, err := p.client.SendSingle(ctx, acct.Environment, acct.Credentials, zipName, archive)
	if err != nil {
		return p.fail(ctx, job, doc, workerID, err)
	}
	return p.resolveWithCDR(ctx, job, doc, workerID, resp.CDRArchive)
}

func (p *Processor) sendBatch(ctx context.Context, job *entity.Job, doc *entity.Document, workerID string) Result {
	if doc.Status == entity.DocumentStatusSent && doc.Ticket != "" {
		// Ya enviado por un job anterior; el POLL_TICKET se creó en la misma transacción.
		return p.skip(ctx, job, doc, workerID)
	}
	if doc.Status != entity.DocumentStatusSigned {
		return p.fail(ctx, job, nil, workerID, fmt.Errorf("estado %s: %w", doc.Status, domain.ErrDocumentNotSigned))
	}
	if !doc.Kind.IsBatch() {
		return p.fail(ctx, job, doc, workerID, fmt.Errorf("%s se envía por sendBill: %w", doc.Kind, domain.ErrInvalidInput))
	}

	acct, zipName, archive, err := p.prepare(ctx, doc)
	if err != nil {
		return p.fail(ctx, job, doc, workerID, err)
	}

	resp, err := p.client.SendBatch(ctx, acct.Environment, acct.Credentials, zipName, archive)
	if err != nil {
		return p.fail(ctx, job, doc, workerID, err)
	}

	now := p.clock.Now()
	doc.Ticket = resp.Ticket
	if err := doc.TransitionTo(entity.DocumentStatusSent, now); err != nil {
		return p.fail(ctx, job, nil, workerID, err)
	}
	p.finish(job, entity.JobStatusDone, "", now)
	// SUNAT nunca tiene el resultado en el instante en que emite el ticket
	poll := entity.NewJob(job.TenantID, doc.ID, entity.JobKindPollTicket, now.Add(p.policy.PendingDelay))

	zerolog.Ctx(ctx).Info().Str("ticket", resp.Ticket).Msg("lote enviado, ticket recibido")
	return p.persist(ctx, job, doc, poll, workerID, OutcomeSubmitted, nil)
}

func (p *Processor) pollTicket(ctx context.Context, job *entity.Job, doc *entity.Document, workerID string) Result {
	if doc.Status != entity.DocumentStatusSent || doc.Ticket == "" {
		return p.fail(ctx, job, nil, workerID, fmt.Errorf("estado %s sin ticket: %w", doc.Status, domain.ErrInvalidDocumentState))
	}

	acct, err := p.creds.Resolve(ctx, doc.TenantID)
	if err != nil {
		return p.fail(ctx, job, doc, workerID, err)
	}

	st, err := p.client.PollTicket(ctx, acct.Environment, acct.Credentials, doc.Ticket)
	if err != nil {
		return p.fail(ctx, job, doc, workerID, err)
	}

	switch {
	case pkgsunat.IsTicketPending(st.StatusCode):
		return p.pending(ctx, job, doc, workerID)
	case st.CDRArchive != "":
		return p.resolveWithCDR(ctx, job, doc, workerID, st.CDRArchive)
	case pkgsunat.IsTicketAccepted(st.StatusCode):
		// Aceptado sin constancia: no se puede afirmar el resultado.
		return p.fail(ctx, job, doc, workerID, &sunat.ParseError{Field: "content", Message: "ticket aceptado sin CDR"})
	}

	// Rechazo del lote sin CDR: el statusCode es la única respuesta.
	now := p.clock.Now()
	if err := doc.TransitionTo(entity.DocumentStatusRejected, now); err != nil {
		return p.fail(ctx, job, nil, workerID, err)
	}
	doc.ResponseCode = st.StatusCode
	doc.ResponseDescription = pkgsunat.Describe(st.StatusCode)
	doc.RespondedAt = &now
	p.finish(job, entity.JobStatusDone, "", now)
	return p.persist(ctx, job, doc, nil, workerID, OutcomeRejected, nil)
}

// ── Resolución ────────────────────────────────────────────────────────────────

// prepare resuelve credenciales y arma el ZIP del XML firmado.
func (p *Processor) prepare(ctx context.Context, doc *entity.Document) (*Account, string, string, error) {
	acct, err := p.creds.Resolve(ctx, doc.TenantID)
	if err != nil {
		return nil, "", "", err
	}
	zerolog.Ctx(ctx).Debug().Str("sol_user", MaskUsername(acct.Credentials.Username)).Msg("credenciales resueltas")

	if strings.TrimSpace(doc.SignedXML) == "" {
		return nil, "", "", fmt.Errorf("XML firmado vacío: %w", domain.ErrInvalidDocumentState)
	}
	filename, err := sunat.FilenameFor(acct.TaxID, doc)
	if err != nil {
		return nil, "", "", fmt.Errorf("nombre de archivo: %v: %w", err, domain.ErrInvalidInput)
	}
	archive, err := sunat.BuildArchive(filename, doc.SignedXML)
	if err != nil {
		return nil, "", "", err
	}
	return acct, sunat.ZipName(filename), archive, nil
}

// resolveWithCDR interpreta el CDR y cierra el job con ACCEPTED, OBSERVED o REJECTED.
func (p *Processor) resolveWithCDR(ctx context.Context, job *entity.Job, doc *entity.Document, workerID, archive string) Result {
	cdr, err := sunat.ParseCDR(archive)
	if err != nil {
		doc.AckArchive = archive
		return p.fail(ctx, job, doc, workerID, err)
	}

	target := entity.DocumentStatusRejected
	outcome := OutcomeRejected
	if cdr.Accepted {
		target, outcome = entity.DocumentStatusAccepted, OutcomeAccepted
		if cdr.Observed() {
			target = entity.DocumentStatusObserved
		}
	}

	now := p.clock.Now()
	if err := doc.TransitionTo(target, now); err != nil {
		return p.fail(ctx, job, nil, workerID, err)
	}
	doc.AckArchive = archive
	doc.ResponseCode = cdr.ResponseCode
	doc.ResponseDescription = cdr.Description
	doc.Notes = strings.Join(cdr.Notes, "\n")
	doc.RespondedAt = &now

	zerolog.Ctx(ctx).Info().
		Str("response_code", cdr.ResponseCode).
		Str("reference_id", cdr.ReferenceID).
		Int("notes", len(cdr.Notes)).
		Msg("CDR recibido")

	p.finish(job, entity.JobStatusDone, "", now)
	return p.persist(ctx, job, doc, nil, workerID, outcome, nil)
}

// pending re-encola un ticket en proceso sin consumir intentos.
func (p *Processor) pending(ctx context.Context, job *entity.Job, doc *entity.Document, workerID string) Result {
	now := p.clock.Now()
	job.NextRunAt = now.Add(p.policy.PendingDelay)
	job.ClearLock()
	job.UpdatedAt = now
	return p.persist(ctx, job, nil, nil, workerID, OutcomePending, nil).withStatus(doc.Status)
}

// skip cierra el job sin llamar al WS porque el comprobante ya tiene estado final.
func (p *Processor) skip(ctx context.Context, job *entity.Job, doc *entity.Document, workerID string) Result {
	p.finish(job, entity.JobStatusDone, "", p.clock.Now())
	return p.persist(ctx, job, nil, nil, workerID, OutcomeSkipped, domain.ErrAlreadyProcessed).withStatus(doc.Status)
}

// fail aplica la política de reintentos. doc != nil indica que el comprobante puede pasar a ERROR
// si el fallo es definitivo.
func (p *Processor) fail(ctx context.Context, job *entity.Job, doc *entity.Document, workerID string, cause error) Result {
	now := p.clock.Now()
	class := Classify(cause)

	var fe *sunat.FaultError
	if errors.As(cause, &fe) {
		if fe.Duplicate() {
			zerolog.Ctx(ctx).Warn().Str("code", fe.AuthorityCode).Msg("SUNAT reporta el comprobante como ya presentado")
		}
		// clave SOL rechazada: el próximo intento vuelve a leer tenant_settings
		if inv, ok := p.creds.(credentialsInvalidator); ok && fe.AuthFailure() {
			inv.Invalidate(job.TenantID)
		}
	}

	if class == Retryable {
		job.Attempts++
		if !p.policy.Exhausted(job.Attempts) {
			job.LastError = cause.Error()
			job.NextRunAt = now.Add(p.policy.Delay(job.Attempts))
			job.ClearLock()
			job.UpdatedAt = now
			res := p.persist(ctx, job, nil, nil, workerID, OutcomeRetry, cause)
			if doc != nil {
				res.DocumentStatus = doc.Status
			}
			return res
		}
		cause = fmt.Errorf("reintentos agotados (%d): %w", job.Attempts, cause)
	}

	p.finish(job, entity.JobStatusFailed, cause.Error(), now)
	if doc == nil || (doc.Status != entity.DocumentStatusSigned && doc.Status != entity.DocumentStatusSent) {
		return p.persist(ctx, job, nil, nil, workerID, OutcomeFailed, cause)
	}

	if fe != nil && fe.AuthorityCode != "" {
		doc.ResponseCode = fe.AuthorityCode
		doc.ResponseDescription = fe.Message
	}
	if err := doc.TransitionTo(entity.DocumentStatusError, now); err != nil {
		return p.persist(ctx, job, nil, nil, workerID, OutcomeFailed, cause)
	}
	return p.persist(ctx, job, doc, nil, workerID, OutcomeFailed, cause)
}

// finish marca el job como cerrado (DONE o FAILED) y libera el lock.
func (p *Processor) finish(job *entity.Job, status entity.JobStatus, lastError string, now time.Time) {
	job.Status = status
	if lastError != "" {
		job.LastError = lastError
	}
	job.CompletedAt = &now
	job.UpdatedAt = now
	job.ClearLock()
}

// persist guarda comprobante, job y job de seguimiento en una única transacción.
func (p *Processor) persist(ctx context.Context, job *entity.Job, doc *entity.Document, followUp *entity.Job, workerID string, outcome Outcome, cause error) Result {
	res := Result{JobID: job.ID, DocumentID: job.DocumentID, Outcome: outcome, Err: cause}
	if doc != nil {
		res.DocumentStatus = doc.Status
	}

	err := p.tx.RunSubmission(ctx, func(docs repository.DocumentRepository, jobs repository.JobRepository) error {
		if doc != nil {
			if err := docs.UpdateResult(ctx, doc); err != nil {
				return fmt.Errorf("actualizar comprobante: %w", err)
			}
		}
		if err := jobs.UpdateIfOwner(ctx, job, workerID); err != nil {
			return err
		}
		if followUp != nil {
			if err := jobs.Create(ctx, followUp); err != nil {
				return fmt.Errorf("crear job %s: %w", followUp.Kind, err)
			}
		}
		return nil
	})
	if err == nil {
		return res
	}

	if errors.Is(err, domain.ErrLeaseLost) {
		zerolog.Ctx(ctx).Warn().Msg("lease perdido: otro worker tomó el job, se descarta el resultado")
		return Result{JobID: job.ID, DocumentID: job.DocumentID, Outcome: OutcomeLeaseLost, Err: err}
	}
	zerolog.Ctx(ctx).Error().Err(err).Str("outcome", string(outcome)).Msg("no se pudo persistir el resultado")
	return Result{JobID: job.ID, DocumentID: job.DocumentID, Outcome: OutcomeStoreError, Err: err}
}

func (r Result) withStatus(s entity.DocumentStatus) Result {
	if r.DocumentStatus == "" && r.Outcome != OutcomeLeaseLost && r.Outcome != OutcomeStoreError {
		r.DocumentStatus = s
	}
	return r
}

// notify entrega el evento de auditoría; errores y pánicos del sink se registran y se descartan.
func (p *Processor) notify(ctx context.Context, job *entity.Job, res Result) {
	if p.audit == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			zerolog.Ctx(ctx).Error().Interface("panic", r).Msg("audit sink en pánico")
		}
	}()
	ev := AuditEvent{
		JobID:          job.ID,
		DocumentID:     job.DocumentID,
		TenantID:       job.TenantID,
		JobKind:        job.Kind,
		Outcome:        res.Outcome,
		DocumentStatus: res.DocumentStatus,
		Attempts:       job.Attempts,
		At:             p.clock.Now(),
	}
	if res.Err != nil {
		ev.Error = res.Err.Error()
	}
	if err := p.audit.Notify(ctx, ev); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("audit sink falló")
	}
}
