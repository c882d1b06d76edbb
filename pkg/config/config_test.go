package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturador-sunat/pkg/config"
)

func TestLoad_ValoresPorDefecto(t *testing.T) {
	testChdir(t, t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, 3, cfg.Worker.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Worker.ShutdownGrace)
	assert.Equal(t, 5*time.Minute, cfg.Worker.Lease)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, []time.Duration{
		time.Minute, 5 * time.Minute, 15 * time.Minute, 60 * time.Minute, 120 * time.Minute,
	}, cfg.Retry.Ladder)
	assert.Equal(t, 60*time.Second, cfg.SUNAT.HTTPTimeout)
	assert.Equal(t, 5*time.Minute, cfg.SUNAT.CredentialsTTL)
}

func TestLoad_LeeVariablesDeEntorno(t *testing.T) {
	testChdir(t, t.TempDir())
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("WORKER_POLL_INTERVAL", "2s")
	t.Setenv("SUNAT_HTTP_TIMEOUT", "15")
	t.Setenv("RETRY_LADDER", "10s, 30s")
	t.Setenv("SUNAT_SOL_USER", "MODDATOS")
	t.Setenv("SUNAT_SOL_PASSWORD", "moddatos")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Worker.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, 15*time.Second, cfg.SUNAT.HTTPTimeout)
	assert.Equal(t, []time.Duration{10 * time.Second, 30 * time.Second}, cfg.Retry.Ladder)
	assert.Equal(t, "MODDATOS", cfg.SUNAT.SolUser)
}

func TestLoad_RechazaConfiguracionInvalida(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"concurrencia cero", map[string]string{"WORKER_CONCURRENCY": "0"}},
		{"escalera inválida", map[string]string{"RETRY_LADDER": "1m,nope"}},
		{"usuario SOL sin clave", map[string]string{"SUNAT_SOL_USER": "MODDATOS"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testChdir(t, t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}

func TestDBConfig_DSNEscapaPassword(t *testing.T) {
	c := config.DBConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss:w/rd", DBName: "facturador", SSLMode: "disable"}

	assert.Equal(t, "postgres://app:p%40ss%3Aw%2Frd@db:5432/facturador?sslmode=disable", c.DSN())
	assert.Equal(t, c.DSN(), c.ConnectionString())

	c.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres://x", c.ConnectionString())
}

// testChdir cambia el directorio de trabajo y lo restaura al terminar el test
// (equivalente a t.Chdir, disponible solo desde Go 1.24).
func testChdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
