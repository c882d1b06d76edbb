package repository

import (
	"context"

	"github.com/jhoicas/facturador-sunat/internal/domain/entity"
)

// SettingsRepository puerto de lectura de la configuración SUNAT por tenant.
type SettingsRepository interface {
	// GetByTenant devuelve domain.ErrNotFound si el tenant no tiene configuración.
	GetByTenant(ctx context.Context, tenantID string) (*entity.TenantSettings, error)
}
