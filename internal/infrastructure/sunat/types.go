// Package sunat implementa el empaquetado, el cliente SOAP (billService) y la lectura del CDR
// para el envío de comprobantes electrónicos a SUNAT (Perú).
package sunat

import (
	"context"

	"github.com/jhoicas/facturador-sunat/internal/domain/entity"
)

// Credentials par usuario/clave SOL para el encabezado WS-Security.
// Username ya incluye el RUC como prefijo (ej: 20123456789MODDATOS).
type Credentials struct {
	Username string
	Password string
}

// Complete indica si ambos campos tienen valor.
func (c Credentials) Complete() bool {
	return c.Username != "" && c.Password != ""
}

// SendSingleResult respuesta de sendBill: el CDR viene embebido en la respuesta.
type SendSingleResult struct {
	CDRArchive string // ZIP del CDR en Base64
}

// SendBatchResult respuesta de sendSummary: ticket para consultar luego.
type SendBatchResult struct {
	Ticket string
}

// TicketStatus respuesta de getStatus.
// StatusCode 0/00/0000 = aceptado (con CDR), 98 = en proceso (sin CDR), otro = rechazado.
type TicketStatus struct {
	StatusCode string
	CDRArchive string
}

// BillService define el puerto de salida hacia el WS de SUNAT.
// La implementación concreta usa SOAP; para tests se puede inyectar un fake.
//
// Cada operación distingue tres clases de resultado:
//   - éxito con resultado de negocio (error nil)
//   - *FaultError: rechazo estructurado del servicio
//   - *TransportError: timeout, DNS, conexión reiniciada, respuesta ilegible
type BillService interface {
	SendSingle(ctx context.Context, env entity.Environment, creds Credentials, filename, archiveB64 string) (*SendSingleResult, error)
	SendBatch(ctx context.Context, env entity.Environment, creds Credentials, filename, archiveB64 string) (*SendBatchResult, error)
	PollTicket(ctx context.Context, env entity.Environment, creds Credentials, ticket string) (*TicketStatus, error)
}
