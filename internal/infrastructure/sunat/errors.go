package sunat

import (
	"fmt"
	"strings"
	"unicode"

	pkgsunat "github.com/jhoicas/facturador-sunat/pkg/sunat"
)

// FaultError rechazo estructurado del WS (SOAP Fault). Tiene semántica de negocio:
// por defecto es terminal, salvo que el propio fault indique una condición transitoria del servidor.
type FaultError struct {
	Op            string // sendBill, sendSummary, getStatus
	FaultCode     string // valor crudo de faultcode (ej: soap-env:Client.0151)
	AuthorityCode string // código numérico SUNAT extraído (ej: 0151)
	Message       string
	HTTPStatus    int
}

func (e *FaultError) Error() string {
	code := e.AuthorityCode
	if code == "" {
		code = e.FaultCode
	}
	return fmt.Sprintf("soap %s: fault [%s]: %s", e.Op, code, e.Message)
}

// Transient indica si el fault corresponde a una indisponibilidad temporal (reintentable).
func (e *FaultError) Transient() bool {
	if pkgsunat.IsServiceException(e.AuthorityCode) {
		return true
	}
	// soap-env:Server sin código de negocio: error interno del servicio.
	return e.AuthorityCode == "" && strings.Contains(strings.ToLower(e.FaultCode), "server")
}

// Duplicate indica que SUNAT ya tenía registrado el comprobante.
func (e *FaultError) Duplicate() bool {
	return pkgsunat.IsDuplicateSubmission(e.AuthorityCode)
}

// AuthFailure indica que SUNAT rechazó el usuario o la clave SOL.
func (e *FaultError) AuthFailure() bool {
	return pkgsunat.IsAuthenticationError(e.AuthorityCode)
}

// TransportError falla de red/timeout/respuesta ilegible: sin semántica de negocio, reintentable.
type TransportError struct {
	Op         string
	HTTPStatus int // 0 si no hubo respuesta HTTP
	Err        error
}

func (e *TransportError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("soap %s: transporte (HTTP %d): %v", e.Op, e.HTTPStatus, e.Err)
	}
	return fmt.Sprintf("soap %s: transporte: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError el CDR no se pudo interpretar. Nunca se asume aceptado ni rechazado.
type ParseError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cdr: %s: %s (%v)", e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("cdr: %s: %s", e.Field, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// authorityCodeFrom extrae el código SUNAT de un faultcode ("soap-env:Client.0151" → "0151")
// o de un faultstring numérico ("0111" → "0111").
func authorityCodeFrom(faultCode, faultString string) string {
	fc := strings.TrimSpace(faultCode)
	if i := strings.LastIndexAny(fc, ".:"); i >= 0 {
		if tail := fc[i+1:]; isDigits(tail) {
			return tail
		}
	}
	if isDigits(fc) {
		return fc
	}
	if fs := strings.TrimSpace(faultString); isDigits(fs) {
		return fs
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
