package submission_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/facturador-sunat/internal/application/submission"
	"github.com/jhoicas/facturador-sunat/internal/domain"
	"github.com/jhoicas/facturador-sunat/internal/infrastructure/sunat"
)

func TestRetryPolicy_EscaleraPorDefecto(t *testing.T) {
	p := submission.DefaultRetryPolicy()

	want := []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute, time.Hour, 2 * time.Hour}
	for i, d := range want {
		assert.Equal(t, d, p.Delay(i+1), "intento %d", i+1)
	}
	assert.Equal(t, 5, p.MaxAttempts)
}

func TestRetryPolicy_DelayMonotonoYAcotado(t *testing.T) {
	p := submission.DefaultRetryPolicy()

	prev := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		d := p.Delay(attempt)
		assert.GreaterOrEqual(t, d, prev, "el delay nunca decrece (intento %d)", attempt)
		prev = d
	}
	assert.Equal(t, 2*time.Hour, p.Delay(99))
	assert.Equal(t, time.Minute, p.Delay(0))
}

func TestRetryPolicy_Agotado(t *testing.T) {
	p := submission.DefaultRetryPolicy()
	assert.False(t, p.Exhausted(4))
	assert.True(t, p.Exhausted(5))
}

func TestRetryPolicy_EscaleraVacia(t *testing.T) {
	p := submission.RetryPolicy{MaxAttempts: 3}
	assert.Zero(t, p.Delay(1))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want submission.ErrorClass
	}{
		{"transporte", &sunat.TransportError{Op: "sendBill", Err: errors.New("connection reset")}, submission.Retryable},
		{"transporte envuelto", fmt.Errorf("x: %w", &sunat.TransportError{Op: "getStatus", Err: context.DeadlineExceeded}), submission.Retryable},
		{"fault de negocio", &sunat.FaultError{Op: "sendBill", AuthorityCode: "0151"}, submission.Terminal},
		{"fault de servicio", &sunat.FaultError{Op: "sendBill", AuthorityCode: "0130"}, submission.Retryable},
		{"fault de servidor", &sunat.FaultError{Op: "sendBill", FaultCode: "soap-env:Server"}, submission.Retryable},
		{"CDR ilegible", &sunat.ParseError{Field: "ResponseCode", Message: "ausente"}, submission.Terminal},
		{"no firmado", domain.ErrDocumentNotSigned, submission.Terminal},
		{"sin credenciales", fmt.Errorf("t: %w", domain.ErrCredentialsNotConfigured), submission.Terminal},
		{"entorno desconocido", sunat.ErrUnknownEnvironment, submission.Terminal},
		{"timeout del contexto", context.DeadlineExceeded, submission.Retryable},
		{"error desconocido", errors.New("pool cerrado"), submission.Retryable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, submission.Classify(tt.err))
		})
	}
}
