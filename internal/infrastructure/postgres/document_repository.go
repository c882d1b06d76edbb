package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/facturador-sunat/internal/domain"
	"github.com/jhoicas/facturador-sunat/internal/domain/entity"
	"github.com/jhoicas/facturador-sunat/internal/domain/repository"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

// DocumentRepo implementa DocumentRepository con pgx (pool o tx).
type DocumentRepo struct {
	db Querier
}

// NewDocumentRepository construye el repositorio con el pool o una tx.
func NewDocumentRepository(db Querier) *DocumentRepo {
	return &DocumentRepo{db: db}
}

const documentColumns = `id, tenant_id, kind, series, number, full_number, issue_date, status,
	signed_xml, ack_archive, ticket, response_code, response_description, notes, responded_at,
	created_at, updated_at`

func (r *DocumentRepo) Create(ctx context.Context, d *entity.Document) error {
	if d.FullNumber == "" {
		d.FullNumber = entity.ComposeFullNumber(d.Series, d.Number)
	}
	query := `INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := r.db.Exec(ctx, query,
		d.ID, d.TenantID, string(d.Kind), d.Series, d.Number, d.FullNumber, d.IssueDate, string(d.Status),
		nullIfEmpty(d.SignedXML), nullIfEmpty(d.AckArchive), nullIfEmpty(d.Ticket),
		nullIfEmpty(d.ResponseCode), nullIfEmpty(d.ResponseDescription), nullIfEmpty(d.Notes), d.RespondedAt,
		d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("comprobante %s: %w", d.FullNumber, domain.ErrDuplicate)
		}
		return fmt.Errorf("crear comprobante: %w", err)
	}
	return nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	d, err := scanDocument(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("leer comprobante %s: %w", id, err)
	}
	return d, nil
}

// UpdateResult persiste estado y resultado. Ticket y CDR solo se sobrescriben cuando llegan valores
// nuevos: un reintento que no obtuvo respuesta no borra lo que ya se guardó.
func (r *DocumentRepo) UpdateResult(ctx context.Context, d *entity.Document) error {
	query := `UPDATE documents SET
		status = $2,
		ack_archive = COALESCE($3, ack_archive),
		ticket = COALESCE($4, ticket),
		response_code = $5,
		response_description = $6,
		notes = $7,
		responded_at = COALESCE($8, responded_at),
		updated_at = $9
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query,
		d.ID, string(d.Status),
		nullIfEmpty(d.AckArchive), nullIfEmpty(d.Ticket),
		nullIfEmpty(d.ResponseCode), nullIfEmpty(d.ResponseDescription), nullIfEmpty(d.Notes),
		d.RespondedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("actualizar comprobante %s: %w", d.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (*entity.Document, error) {
	var (
		d                                 entity.Document
		kind, status                      string
		signedXML, ackArchive, ticket     *string
		responseCode, responseDesc, notes *string
	)
	err := row.Scan(
		&d.ID, &d.TenantID, &kind, &d.Series, &d.Number, &d.FullNumber, &d.IssueDate, &status,
		&signedXML, &ackArchive, &ticket, &responseCode, &responseDesc, &notes, &d.RespondedAt,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Kind = entity.DocumentKind(kind)
	d.Status = entity.DocumentStatus(status)
	d.SignedXML = deref(signedXML)
	d.AckArchive = deref(ackArchive)
	d.Ticket = deref(ticket)
	d.ResponseCode = deref(responseCode)
	d.ResponseDescription = deref(responseDesc)
	d.Notes = deref(notes)
	return &d, nil
}
