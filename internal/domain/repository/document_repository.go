package repository

import (
	"context"

	"github.com/jhoicas/facturador-sunat/internal/domain/entity"
)

// DocumentRepository define el puerto de persistencia para comprobantes.
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	// GetByID devuelve domain.ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*entity.Document, error)
	// UpdateResult persiste estado, ticket, CDR y metadatos de respuesta.
	UpdateResult(ctx context.Context, doc *entity.Document) error
}
