package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jhoicas/facturador-sunat/internal/domain"
	"github.com/jhoicas/facturador-sunat/internal/domain/entity"
	"github.com/jhoicas/facturador-sunat/internal/domain/repository"
	"github.com/jhoicas/facturador-sunat/internal/infrastructure/sunat"
)

// Account datos resueltos para hablar con SUNAT en nombre de un tenant.
type Account struct {
	TenantID    string
	TaxID       string
	Environment entity.Environment
	Credentials sunat.Credentials
}

// CredentialsResolver puerto usado por el procesador.
type CredentialsResolver interface {
	Resolve(ctx context.Context, tenantID string) (*Account, error)
}

// credentialsInvalidator lo implementan los resolvers con caché.
type credentialsInvalidator interface {
	Invalidate(tenantID string)
}

// CredentialsConfig TTL del caché y par opcional de credenciales globales
// (SUNAT_SOL_USER / SUNAT_SOL_PASSWORD) que reemplaza al del tenant.
type CredentialsConfig struct {
	TTL              time.Duration
	OverrideUser     string
	OverridePassword string
}

type cachedAccount struct {
	account   Account
	expiresAt time.Time
}

// CredentialsProvider resuelve y cachea las credenciales SOL por tenant.
type CredentialsProvider struct {
	settings repository.SettingsRepository
	cfg      CredentialsConfig
	clock    clockwork.Clock

	mu    sync.Mutex
	cache map[string]cachedAccount
}

// NewCredentialsProvider con TTL <= 0 no se cachea.
func NewCredentialsProvider(settings repository.SettingsRepository, cfg CredentialsConfig, clock clockwork.Clock) *CredentialsProvider {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CredentialsProvider{
		settings: settings,
		cfg:      cfg,
		clock:    clock,
		cache:    make(map[string]cachedAccount),
	}
}

// Resolve devuelve la cuenta del tenant. Sin par usuario/clave completo devuelve
// domain.ErrCredentialsNotConfigured.
func (p *CredentialsProvider) Resolve(ctx context.Context, tenantID string) (*Account, error) {
	now := p.clock.Now()

	p.mu.Lock()
	if c, ok := p.cache[tenantID]; ok && now.Before(c.expiresAt) {
		p.mu.Unlock()
		acct := c.account
		return &acct, nil
	}
	p.mu.Unlock()

	st, err := p.settings.GetByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("tenant %s sin configuración SUNAT: %w", tenantID, domain.ErrCredentialsNotConfigured)
		}
		return nil, fmt.Errorf("credenciales: leer configuración: %w", err)
	}

	user, password := st.SolUser, st.SolPassword
	if p.cfg.OverrideUser != "" && p.cfg.OverridePassword != "" {
		user, password = p.cfg.OverrideUser, p.cfg.OverridePassword
	}
	if strings.TrimSpace(st.TaxID) == "" || strings.TrimSpace(user) == "" || password == "" {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, domain.ErrCredentialsNotConfigured)
	}

	acct := Account{
		TenantID:    tenantID,
		TaxID:       strings.TrimSpace(st.TaxID),
		Environment: st.Environment,
		Credentials: sunat.Credentials{
			Username: ComposeUsername(st.TaxID, user),
			Password: password,
		},
	}

	if p.cfg.TTL > 0 {
		p.mu.Lock()
		p.cache[tenantID] = cachedAccount{account: acct, expiresAt: now.Add(p.cfg.TTL)}
		p.mu.Unlock()
	}
	return &acct, nil
}

// Invalidate descarta la cuenta cacheada del tenant (ej: tras cambiar la clave SOL).
func (p *CredentialsProvider) Invalidate(tenantID string) {
	p.mu.Lock()
	delete(p.cache, tenantID)
	p.mu.Unlock()
}

// ComposeUsername antepone el RUC al usuario SOL salvo que ya lo tenga.
func ComposeUsername(taxID, solUser string) string {
	taxID, solUser = strings.TrimSpace(taxID), strings.TrimSpace(solUser)
	if strings.HasPrefix(solUser, taxID) {
		return solUser
	}
	return taxID + solUser
}

// MaskUsername para logs: primeros 4 caracteres + "****".
func MaskUsername(username string) string {
	r := []rune(username)
	if len(r) > 4 {
		r = r[:4]
	}
	return string(r) + "****"
}

var (
	_ CredentialsResolver    = (*CredentialsProvider)(nil)
	_ credentialsInvalidator = (*CredentialsProvider)(nil)
)
