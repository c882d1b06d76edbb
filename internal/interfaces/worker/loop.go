// Package worker contiene el loop que reclama jobs de la cola y los entrega al procesador.
package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/jhoicas/facturador-sunat/internal/application/submission"
	"github.com/jhoicas/facturador-sunat/internal/domain/entity"
	"github.com/jhoicas/facturador-sunat/internal/domain/repository"
)

// JobProcessor avanza un job ya reclamado. *submission.Processor lo implementa.
type JobProcessor interface {
	Process(ctx context.Context, job *entity.Job, workerID string) submission.Result
}

// Metrics hooks del loop; *metrics.Metrics los implementa.
type Metrics interface {
	ClaimWon()
	ClaimLost()
	PollFailed()
	PanicRecovered()
	InFlight(n int)
}

type noopMetrics struct{}

func (noopMetrics) ClaimWon()       {}
func (noopMetrics) ClaimLost()      {}
func (noopMetrics) PollFailed()     {}
func (noopMetrics) PanicRecovered() {}
func (noopMetrics) InFlight(int)    {}

// Config parámetros del loop. Los valores en cero toman los defaults.
type Config struct {
	WorkerID      string
	PollInterval  time.Duration // 10s
	Concurrency   int           // 3
	ShutdownGrace time.Duration // 30s
	Lease         time.Duration // entity.DefaultLeaseDuration
}

func (c Config) withDefaults() Config {
	if c.WorkerID == "" {
		c.WorkerID = NewWorkerID()
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 3
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 30 * time.Second
	}
	if c.Lease <= 0 {
		c.Lease = entity.DefaultLeaseDuration
	}
	return c
}

// NewWorkerID devuelve "{hostname}-{uuid corto}", único por proceso.
func NewWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, uuid.New().String()[:8])
}

// Loop consulta la cola cada PollInterval y despacha hasta Concurrency jobs en paralelo.
// Cada job corre en su propia goroutine; el loop nunca espera a que termine para seguir consultando.
type Loop struct {
	jobs      repository.JobRepository
	processor JobProcessor
	cfg       Config
	clock     clockwork.Clock
	metrics   Metrics
	log       zerolog.Logger

	inFlight atomic.Int64
	wg       sync.WaitGroup

	// jobCtx vive más que el ctx de Run: los jobs en curso solo se cancelan al agotar el grace.
	jobCtx     context.Context
	cancelJobs context.CancelFunc
}

// New construye el loop. clock y metrics pueden ser nil.
func New(jobs repository.JobRepository, processor JobProcessor, cfg Config, clock clockwork.Clock, metrics Metrics, log zerolog.Logger) *Loop {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	cfg = cfg.withDefaults()
	jobCtx, cancel := context.WithCancel(context.Background())
	return &Loop{
		jobs:       jobs,
		processor:  processor,
		cfg:        cfg,
		clock:      clock,
		metrics:    metrics,
		log:        log.With().Str("component", "worker").Str("worker_id", cfg.WorkerID).Logger(),
		jobCtx:     jobCtx,
		cancelJobs: cancel,
	}
}

// WorkerID identificador con el que este loop reclama jobs.
func (l *Loop) WorkerID() string { return l.cfg.WorkerID }

// InFlight cantidad de jobs en procesamiento.
func (l *Loop) InFlight() int { return int(l.inFlight.Load()) }

// Run consulta la cola hasta que ctx se cancele. Al cancelar deja de reclamar, espera a los jobs
// en curso hasta ShutdownGrace y luego los abandona (sus leases expiran y otro worker los retoma).
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info().
		Int("concurrency", l.cfg.Concurrency).
		Dur("poll_interval", l.cfg.PollInterval).
		Msg("worker iniciado")

	ticker := l.clock.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	l.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			l.drain()
			return nil
		case <-ticker.Chan():
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	if _, err := l.RunOnce(ctx); err != nil && ctx.Err() == nil {
		l.metrics.PollFailed()
		l.log.Error().Err(err).Msg("error consultando jobs elegibles")
	}
}

// RunOnce hace una pasada: lista los jobs elegibles que caben en los slots libres, los reclama
// y despacha los ganados. Devuelve cuántos despachó.
func (l *Loop) RunOnce(ctx context.Context) (int, error) {
	free := l.cfg.Concurrency - l.InFlight()
	if free <= 0 {
		return 0, nil
	}

	now := l.clock.Now()
	candidates, err := l.jobs.ListEligible(ctx, now, l.cfg.Lease, free)
	if err != nil {
		return 0, fmt.Errorf("listar elegibles: %w", err)
	}

	dispatched := 0
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		ok, err := l.jobs.TryClaim(ctx, c.ID, l.cfg.WorkerID, l.clock.Now(), l.cfg.Lease)
		if err != nil {
			l.log.Warn().Err(err).Str("job_id", c.ID).Msg("error al reclamar job")
			continue
		}
		if !ok {
			// Otro worker ganó la carrera.
			l.metrics.ClaimLost()
			continue
		}
		l.metrics.ClaimWon()

		job, err := l.jobs.GetByID(ctx, c.ID)
		if err != nil {
			l.log.Warn().Err(err).Str("job_id", c.ID).Msg("job reclamado pero no legible; el lease expirará")
			continue
		}
		l.dispatch(job)
		dispatched++
	}
	return dispatched, nil
}

func (l *Loop) dispatch(job *entity.Job) {
	l.wg.Add(1)
	l.metrics.InFlight(int(l.inFlight.Add(1)))

	go func() {
		defer l.wg.Done()
		defer func() {
			l.metrics.InFlight(int(l.inFlight.Add(-1)))
		}()
		defer func() {
			if r := recover(); r != nil {
				l.metrics.PanicRecovered()
				l.log.Error().
					Str("job_id", job.ID).
					Str("document_id", job.DocumentID).
					Interface("panic", r).
					Msg("pánico procesando job; el lease expirará")
			}
		}()
		l.processor.Process(l.jobCtx, job, l.cfg.WorkerID)
	}()
}

// Wait bloquea hasta que no quede ningún job en curso.
func (l *Loop) Wait() { l.wg.Wait() }

func (l *Loop) drain() {
	defer l.cancelJobs()

	pending := l.InFlight()
	l.log.Info().Int("in_flight", pending).Dur("grace", l.cfg.ShutdownGrace).Msg("worker deteniéndose")

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	timer := l.clock.NewTimer(l.cfg.ShutdownGrace)
	defer timer.Stop()

	select {
	case <-done:
		l.log.Info().Msg("worker detenido")
	case <-timer.Chan():
		l.log.Warn().Int("in_flight", l.InFlight()).Msg("grace agotado; jobs en curso abandonados")
	}
}
