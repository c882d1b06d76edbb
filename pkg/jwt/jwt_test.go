package jwt_test

import (
	"testing"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturador-sunat/pkg/jwt"
)

const secret = "test-secret"

func TestGenerateAndParse_ConRol(t *testing.T) {
	tok, err := jwt.Generate(secret, "u-1", "tenant-1", "operador", "facturador", 60)
	require.NoError(t, err)

	userID, companyID, role, err := jwt.Parse(secret, tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", userID)
	assert.Equal(t, "tenant-1", companyID)
	assert.Equal(t, "operador", role)

	claims, err := jwt.ParseClaims(secret, tok)
	require.NoError(t, err)
	assert.Equal(t, "facturador", claims.Issuer)
}

func TestParse_RechazaOtroAlgoritmo(t *testing.T) {
	tok, err := gojwt.NewWithClaims(gojwt.SigningMethodHS512, jwt.Claims{CompanyID: "tenant-1"}).SignedString([]byte(secret))
	require.NoError(t, err)

	_, _, _, err = jwt.Parse(secret, tok)
	assert.Error(t, err)
}

func TestGenerate_SecretVacio(t *testing.T) {
	_, err := jwt.Generate("", "u", "c", "admin", "i", 1)
	assert.Error(t, err)
}
