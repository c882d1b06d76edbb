// Package sunat contiene catálogos y reglas alineados a la documentación de
// comprobantes electrónicos SUNAT (Perú): tipos de documento, códigos de respuesta del CDR
// y estados del ticket de getStatus.
package sunat

import (
	"strings"
)

// =============================================================================
// Catálogo 01 - Tipo de documento
// =============================================================================

const (
	DocTypeInvoice    = "01" // Factura
	DocTypeReceipt    = "03" // Boleta de venta
	DocTypeCreditNote = "07" // Nota de crédito
	DocTypeDebitNote  = "08" // Nota de débito
	DocTypeSummary    = "RC" // Resumen diario de boletas
	DocTypeVoid       = "RA" // Comunicación de baja
)

// =============================================================================
// Estados del ticket (getStatus → statusCode)
// =============================================================================

const (
	TicketStatusAccepted   = "0"  // Procesó correctamente, incluye CDR
	TicketStatusProcessing = "98" // En proceso
	TicketStatusErrors     = "99" // Procesó con errores (puede incluir CDR)
)

// IsTicketAccepted reconoce las variantes 0/00/0000 que devuelve el servicio.
func IsTicketAccepted(statusCode string) bool {
	switch strings.TrimSpace(statusCode) {
	case "0", "00", "0000":
		return true
	}
	return false
}

// IsTicketPending indica que el lote sigue en proceso.
func IsTicketPending(statusCode string) bool {
	return strings.TrimSpace(statusCode) == TicketStatusProcessing
}

// =============================================================================
// Regla de aceptación del CDR
// =============================================================================

// IsAccepted indica si un código de respuesta del CDR representa aceptación.
// La regla es estrictamente de prefijo: todo código que empieza con '0' es aceptado
// (con o sin observaciones); cualquier otro dígito inicial es rechazo.
func IsAccepted(code string) bool {
	return strings.HasPrefix(code, "0")
}

// =============================================================================
// Códigos de retorno (descripciones para CDR sin cbc:Description)
// =============================================================================

// responseDescriptions códigos conocidos de uso frecuente.
var responseDescriptions = map[string]string{
	"0":    "El comprobante ha sido aceptado",
	"98":   "Envío en proceso",
	"99":   "Envío procesado con errores",
	"0100": "El sistema no puede responder su solicitud. Intente nuevamente o comuníquese con su Administrador",
	"0101": "El encabezado de seguridad es incorrecto",
	"0102": "Usuario o contraseña incorrectos",
	"0103": "El Usuario ingresado no existe",
	"0104": "La Clave ingresada es incorrecta",
	"0105": "El Usuario no está activo",
	"0109": "El sistema no puede responder su solicitud. (El servicio de autenticación no está disponible)",
	"0110": "No se pudo obtener la informacion del tipo de usuario",
	"0111": "No tiene el perfil para enviar comprobantes electrónicos",
	"0112": "El usuario debe ser secundario",
	"0113": "El usuario no esta afiliado a Factura Electrónica",
	"0125": "No se pudo obtener la constancia",
	"0126": "El ticket no le pertenece al usuario",
	"0127": "El ticket no existe",
	"0130": "El sistema no puede responder su solicitud. (No se pudo obtener el ticket de proceso)",
	"0131": "El sistema no puede responder su solicitud. (No se pudo grabar el archivo en el directorio)",
	"0132": "El sistema no puede responder su solicitud. (No se pudo grabar escribir en el archivo zip)",
	"0133": "El sistema no puede responder su solicitud. (No se pudo grabar la entrada del log)",
	"0134": "El sistema no puede responder su solicitud. (No se pudo grabar en el storage)",
	"0135": "El sistema no puede responder su solicitud. (No se pudo encolar el pedido)",
	"0136": "El sistema no puede responder su solicitud. (No se pudo recibir una respuesta del batch)",
	"0137": "El sistema no puede responder su solicitud. (Se obtuvo una respuesta nula)",
	"0138": "El sistema no puede responder su solicitud. (Error en Base de Datos)",
	"0151": "El nombre del archivo ZIP es incorrecto",
	"0152": "No se puede enviar por este método un archivo de resumen",
	"0153": "No se puede enviar por este método un archivo por lotes",
	"0154": "El RUC del archivo no corresponde al RUC del usuario",
	"0155": "El archivo ZIP esta vacio",
	"0156": "El archivo ZIP esta corrupto",
	"0157": "El archivo ZIP no contiene comprobantes",
	"0158": "El archivo ZIP contiene demasiados comprobantes para este tipo de envío",
	"0159": "El nombre del archivo XML es incorrecto",
	"0160": "El archivo XML esta vacio",
	"0161": "El nombre del archivo XML no coincide con el nombre del archivo ZIP",
	"0200": "No se pudo procesar su solicitud. (Ocurrio un error en el batch)",
	"0306": "No se puede leer (parsear) el archivo XML",
	"1032": "El comprobante ya esta informado y se encuentra con estado anulado o rechazado",
	"1033": "El comprobante fue registrado previamente con otros datos",
	"2017": "El numero de documento de identidad del receptor debe ser RUC",
	"2108": "Presentacion fuera de fecha",
	"2220": "El ID debe coincidir con el nombre del archivo",
	"2223": "El archivo ya fue presentado anteriormente",
	"2335": "El documento electrónico ingresado ha sido alterado",
	"4000": "El documento ya fue presentado anteriormente",
}

// Describe devuelve la descripción conocida del código o "Code {code}" si no figura en el catálogo.
func Describe(code string) string {
	code = strings.TrimSpace(code)
	if d, ok := responseDescriptions[code]; ok {
		return d
	}
	return "Code " + code
}

// IsServiceException indica los códigos de indisponibilidad temporal del servicio SUNAT
// (0100, 0109, 0130–0138, 0200). Los errores de autenticación del mismo rango no califican.
func IsServiceException(code string) bool {
	switch strings.TrimSpace(code) {
	case "0100", "0109", "0130", "0131", "0132", "0133", "0134", "0135", "0136", "0137", "0138", "0200":
		return true
	}
	return false
}

// IsDuplicateSubmission indica que SUNAT ya registró el comprobante en un envío anterior.
func IsDuplicateSubmission(code string) bool {
	switch strings.TrimSpace(code) {
	case "1033", "2223", "4000":
		return true
	}
	return false
}

// IsAuthenticationError códigos de usuario/clave SOL o perfil inválidos (0101–0105, 0110–0113).
func IsAuthenticationError(code string) bool {
	switch strings.TrimSpace(code) {
	case "0101", "0102", "0103", "0104", "0105", "0110", "0111", "0112", "0113":
		return true
	}
	return false
}
