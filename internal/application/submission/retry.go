package submission

import (
	"context"
	"errors"
	"time"

	"github.com/jhoicas/facturador-sunat/internal/domain"
	"github.com/jhoicas/facturador-sunat/internal/infrastructure/sunat"
)

// DefaultLadder escalera de esperas entre reintentos: 1m, 5m, 15m, 60m, 120m.
var DefaultLadder = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	60 * time.Minute,
	120 * time.Minute,
}

const (
	DefaultMaxAttempts  = 5
	DefaultPendingDelay = 30 * time.Second
)

// RetryPolicy define cuándo y cuántas veces se reintenta un job.
type RetryPolicy struct {
	Ladder       []time.Duration
	MaxAttempts  int
	PendingDelay time.Duration // espera para tickets en proceso (98); no consume intentos
}

// DefaultRetryPolicy política por defecto.
func DefaultRetryPolicy() RetryPolicy {
	ladder := make([]time.Duration, len(DefaultLadder))
	copy(ladder, DefaultLadder)
	return RetryPolicy{
		Ladder:       ladder,
		MaxAttempts:  DefaultMaxAttempts,
		PendingDelay: DefaultPendingDelay,
	}
}

// Delay devuelve la espera antes del intento siguiente tras `attempt` fallos (1-indexado).
// Fuera de rango se usa el último (o primer) peldaño.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if len(p.Ladder) == 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(p.Ladder) {
		attempt = len(p.Ladder)
	}
	return p.Ladder[attempt-1]
}

// Exhausted indica si con `attempts` fallos ya no quedan reintentos.
func (p RetryPolicy) Exhausted(attempts int) bool {
	return attempts >= p.MaxAttempts
}

// ErrorClass clasificación de un error de procesamiento.
type ErrorClass int

const (
	Retryable ErrorClass = iota
	Terminal
)

func (c ErrorClass) String() string {
	if c == Retryable {
		return "retryable"
	}
	return "terminal"
}

// Classify decide si un error se reintenta:
//   - transporte, fault transitorio, timeout del contexto → Retryable
//   - fault de negocio, CDR ilegible, precondiciones del dominio → Terminal
//   - cualquier otro (ej: base de datos caída) → Retryable, acotado por MaxAttempts
func Classify(err error) ErrorClass {
	var (
		te *sunat.TransportError
		fe *sunat.FaultError
		pe *sunat.ParseError
	)
	switch {
	case err == nil:
		return Terminal
	case errors.As(err, &te):
		return Retryable
	case errors.As(err, &fe):
		if fe.Transient() {
			return Retryable
		}
		return Terminal
	case errors.As(err, &pe):
		return Terminal
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return Retryable
	case isPrecondition(err):
		return Terminal
	}
	return Retryable
}

func isPrecondition(err error) bool {
	for _, target := range []error{
		domain.ErrDocumentNotSigned,
		domain.ErrInvalidDocumentState,
		domain.ErrCredentialsNotConfigured,
		domain.ErrInvalidInput,
		domain.ErrNotFound,
		domain.ErrForbidden,
		domain.ErrInvalidTransition,
		sunat.ErrUnknownEnvironment,
		sunat.ErrArchiveEntryNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
