package entity

// Environment ambiente del WS de SUNAT.
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"    // e-beta (pruebas)
	EnvironmentProduction Environment = "production" // e-factura
)

// Valid indica si el ambiente es conocido.
func (e Environment) Valid() bool {
	return e == EnvironmentSandbox || e == EnvironmentProduction
}

// TenantSettings configuración SUNAT persistida por emisor (tenant).
type TenantSettings struct {
	TenantID    string
	TaxID       string // RUC del emisor (11 dígitos)
	SolUser     string // Usuario secundario SOL (con o sin RUC como prefijo)
	SolPassword string
	Environment Environment
}
