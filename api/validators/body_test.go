package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
)

type signUpBody struct {
	Nombre   string `json:"nombre" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Telefono string `json:"telefono" validate:"omitempty,telefono"`
}

func postJSON(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	var dest signUpBody
	err := DecodeJSONBody(postJSON(`{"nombre":"Ana","email":"ana@nikos.pe","telefono":"+51 987 654 321"}`), &dest)
	require.NoError(t, err)
	require.Equal(t, "Ana", dest.Nombre)
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	var dest signUpBody
	err := DecodeJSONBody(postJSON(`{"email":"no-es-correo","telefono":"12"}`), &dest)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	require.Equal(t, msgCheckFields, typed.Public())
	require.Equal(t, map[string]string{
		"nombre":   "es obligatorio",
		"email":    "debe ser un correo válido",
		"telefono": "debe ser un teléfono válido",
	}, typed.Details())
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	var dest signUpBody
	err := DecodeJSONBody(postJSON(`{"nombre":"Ana","email":"ana@nikos.pe","rol":"admin"}`), &dest)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, msgInvalidBody, pkgerrors.As(err).Message())
}

func TestTelefonoRule(t *testing.T) {
	cases := map[string]bool{
		"987654321":         true,
		"+51 987 654 321":   true,
		"+1 (555) 123-4567": true,
		"(01) 555.1234":     true,
		"123456":            false,
		"9876543210123456":  false,
		"98765abc":          false,
		"++51987654321":     false,
	}
	for phone, ok := range cases {
		err := validate.Var(phone, "telefono")
		if ok && err != nil {
			t.Fatalf("expected %q to pass, got %v", phone, err)
		}
		if !ok && err == nil {
			t.Fatalf("expected %q to be rejected", phone)
		}
	}
}
