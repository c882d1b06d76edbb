package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturador-sunat/pkg/jwt"
)

func TestTokenCommand_EmiteTokenValido(t *testing.T) {
	testChdir(t, t.TempDir())
	t.Setenv("JWT_SECRET", "secreto-de-prueba")

	var out bytes.Buffer
	cmd := rootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "--company", "tenant-9", "--role", "admin"})
	require.NoError(t, cmd.Execute())

	_, companyID, role, err := jwt.Parse("secreto-de-prueba", strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "tenant-9", companyID)
	assert.Equal(t, "admin", role)
}

func TestTokenCommand_SinSecretFalla(t *testing.T) {
	testChdir(t, t.TempDir())
	t.Setenv("JWT_SECRET", "")

	cmd := rootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"token", "--company", "tenant-9"})
	assert.Error(t, cmd.Execute())
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
