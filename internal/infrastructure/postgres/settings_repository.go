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

var _ repository.SettingsRepository = (*SettingsRepo)(nil)

// SettingsRepo lee la configuración SUNAT por tenant (tabla tenant_settings).
type SettingsRepo struct {
	db Querier
}

func NewSettingsRepository(db Querier) *SettingsRepo {
	return &SettingsRepo{db: db}
}

func (r *SettingsRepo) GetByTenant(ctx context.Context, tenantID string) (*entity.TenantSettings, error) {
	var (
		s           entity.TenantSettings
		user, pass  *string
		environment string
	)
	err := r.db.QueryRow(ctx,
		`SELECT tenant_id, tax_id, sol_user, sol_password, environment
		 FROM tenant_settings WHERE tenant_id = $1`,
		tenantID,
	).Scan(&s.TenantID, &s.TaxID, &user, &pass, &environment)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("leer configuración de %s: %w", tenantID, err)
	}
	s.SolUser = deref(user)
	s.SolPassword = deref(pass)
	s.Environment = entity.Environment(environment)
	return &s, nil
}
