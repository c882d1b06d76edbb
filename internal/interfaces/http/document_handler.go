package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/facturador-sunat/internal/application/dto"
	"github.com/jhoicas/facturador-sunat/internal/application/submission"
	"github.com/jhoicas/facturador-sunat/internal/domain"
	"github.com/jhoicas/facturador-sunat/internal/domain/entity"
)

// SubmissionService lo que el handler necesita del caso de uso; *submission.Service lo implementa.
type SubmissionService interface {
	Enqueue(ctx context.Context, tenantID, documentID string) (*entity.Job, error)
	Status(ctx context.Context, tenantID, documentID string) (*submission.DocumentState, error)
}

// DocumentHandler consulta y encola envíos de comprobantes (protegido).
type DocumentHandler struct {
	svc SubmissionService
	log zerolog.Logger
}

// NewDocumentHandler construye el handler.
func NewDocumentHandler(svc SubmissionService, log zerolog.Logger) *DocumentHandler {
	return &DocumentHandler{svc: svc, log: log}
}

// GetByID devuelve el estado del comprobante y de su último job.
// GET /api/documents/:id
func (h *DocumentHandler) GetByID(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	st, err := h.svc.Status(c.UserContext(), companyID, c.Params("id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(dto.NewDocumentStatusResponse(st))
}

// Submit encola el envío del comprobante a SUNAT. Responde 202: el resultado llega por el worker.
// POST /api/documents/:id/submit
func (h *DocumentHandler) Submit(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	job, err := h.svc.Enqueue(c.UserContext(), companyID, c.Params("id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(dto.NewJobResponse(job))
}

func (h *DocumentHandler) writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "comprobante no encontrado"})
	case errors.Is(err, domain.ErrDocumentNotSigned):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "NOT_SIGNED", Message: err.Error()})
	case errors.Is(err, domain.ErrAlreadyProcessed):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "ALREADY_PROCESSED", Message: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "ALREADY_QUEUED", Message: "el comprobante ya tiene un envío en cola"})
	case errors.Is(err, domain.ErrInvalidDocumentState), errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	}
	h.log.Error().Err(err).Str("path", c.Path()).Msg("error interno")
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
}
