package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/facturador-sunat/internal/domain"
)

// DocumentKind tipo de comprobante electrónico.
type DocumentKind string

// Tipos de comprobante soportados por el envío a SUNAT.
const (
	DocumentKindInvoice    DocumentKind = "INVOICE"     // Factura (01)
	DocumentKindReceipt    DocumentKind = "RECEIPT"     // Boleta de venta (03)
	DocumentKindCreditNote DocumentKind = "CREDIT_NOTE" // Nota de crédito (07)
	DocumentKindDebitNote  DocumentKind = "DEBIT_NOTE"  // Nota de débito (08)
	DocumentKindSummary    DocumentKind = "SUMMARY"     // Resumen diario (RC)
	DocumentKindVoid       DocumentKind = "VOID"        // Comunicación de baja (RA)
)

// Valid indica si el tipo pertenece al catálogo cerrado.
func (k DocumentKind) Valid() bool {
	switch k {
	case DocumentKindInvoice, DocumentKindReceipt, DocumentKindCreditNote,
		DocumentKindDebitNote, DocumentKindSummary, DocumentKindVoid:
		return true
	}
	return false
}

// IsBatch indica si el comprobante se envía por sendSummary (asíncrono con ticket).
func (k DocumentKind) IsBatch() bool {
	return k == DocumentKindSummary || k == DocumentKindVoid
}

// DocumentStatus estado del ciclo de vida del comprobante frente a SUNAT.
type DocumentStatus string

const (
	DocumentStatusDraft    DocumentStatus = "DRAFT"    // Creado por el emisor, sin firma
	DocumentStatusSigned   DocumentStatus = "SIGNED"   // XML firmado, listo para envío
	DocumentStatusSent     DocumentStatus = "SENT"     // Lote enviado, ticket pendiente de consulta
	DocumentStatusAccepted DocumentStatus = "ACCEPTED" // CDR con código 0
	DocumentStatusObserved DocumentStatus = "OBSERVED" // Aceptado con observaciones
	DocumentStatusRejected DocumentStatus = "REJECTED" // CDR de rechazo
	DocumentStatusError    DocumentStatus = "ERROR"    // Falla no recuperable o reintentos agotados
	DocumentStatusCanceled DocumentStatus = "CANCELED" // Dado de baja (flujo externo)
)

// IsTerminal indica si el estado no admite más transiciones automáticas.
// ERROR también es terminal para el pipeline; el operador lo reabre encolando un nuevo job.
func (s DocumentStatus) IsTerminal() bool {
	switch s {
	case DocumentStatusAccepted, DocumentStatusObserved, DocumentStatusRejected,
		DocumentStatusCanceled, DocumentStatusError:
		return true
	}
	return false
}

// transitions tabla de aristas permitidas del ciclo de vida.
var transitions = map[DocumentStatus][]DocumentStatus{
	DocumentStatusDraft:  {DocumentStatusSigned, DocumentStatusCanceled},
	DocumentStatusSigned: {DocumentStatusSent, DocumentStatusAccepted, DocumentStatusObserved, DocumentStatusRejected, DocumentStatusError, DocumentStatusCanceled},
	DocumentStatusSent:   {DocumentStatusAccepted, DocumentStatusObserved, DocumentStatusRejected, DocumentStatusError},
	// Reintento manual del operador: ERROR vuelve a la cola sin perder el historial.
	DocumentStatusError:    {DocumentStatusSigned, DocumentStatusSent},
	DocumentStatusAccepted: {DocumentStatusCanceled},
	DocumentStatusObserved: {DocumentStatusCanceled},
}

// CanTransition indica si el paso from → to está permitido.
func CanTransition(from, to DocumentStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Document comprobante electrónico y su resultado frente a SUNAT.
type Document struct {
	ID         string
	TenantID   string
	Kind       DocumentKind
	Series     string // Serie (F001, B001) o RC/RA para lotes
	Number     string // Correlativo sin ceros a la izquierda
	FullNumber string // {Series}-{Number}
	IssueDate  time.Time
	Status     DocumentStatus

	SignedXML  string // XML firmado (contenido completo)
	AckArchive string // CDR en Base64 tal como lo devuelve SUNAT
	Ticket     string // Ticket de sendSummary

	ResponseCode        string
	ResponseDescription string
	Notes               string // Observaciones del CDR (una por línea)
	RespondedAt         *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ComposeFullNumber arma el número legible {serie}-{correlativo}.
func ComposeFullNumber(series, number string) string {
	return strings.TrimSpace(series) + "-" + strings.TrimSpace(number)
}

// TransitionTo cambia el estado validando la tabla de transiciones.
func (d *Document) TransitionTo(to DocumentStatus, now time.Time) error {
	if d.Status == to {
		return nil
	}
	if !CanTransition(d.Status, to) {
		return fmt.Errorf("%s → %s: %w", d.Status, to, domain.ErrInvalidTransition)
	}
	d.Status = to
	d.UpdatedAt = now
	return nil
}
