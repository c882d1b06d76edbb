package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")

	// Errores de precondición del envío a SUNAT: terminales, nunca se reintentan.
	ErrDocumentNotSigned        = errors.New("el comprobante no está en estado SIGNED")
	ErrAlreadyProcessed         = errors.New("el comprobante ya tiene un estado final")
	ErrInvalidDocumentState     = errors.New("estado del comprobante inválido para la operación")
	ErrCredentialsNotConfigured = errors.New("credenciales SOL no configuradas")
	ErrInvalidTransition        = errors.New("transición de estado no permitida")

	// ErrLeaseLost indica que otro worker reclamó el job (lease expirado) antes de persistir el resultado.
	ErrLeaseLost = errors.New("el lease del job ya no pertenece a este worker")
)
