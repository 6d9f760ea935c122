package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"unicode"

	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
	"github.com/go-playground/validator/v10"
)

const (
	maxBodyBytes = 64 << 10

	msgInvalidBody = "No pudimos leer la solicitud"
	msgCheckFields = "Revisa los datos ingresados"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("telefono", validTelefono)
	return v
}

// validTelefono accepts 7 to 15 digits once spaces, dashes, dots, parentheses
// and a leading + are dropped, e.g. "+51 987 654 321" or "(01) 555-1234".
func validTelefono(fl validator.FieldLevel) bool {
	raw := strings.TrimPrefix(strings.TrimSpace(fl.Field().String()), "+")
	digits := 0
	for _, r := range raw {
		switch {
		case unicode.IsDigit(r):
			digits++
		case strings.ContainsRune(" -.()", r):
		default:
			return false
		}
	}
	return digits >= 7 && digits <= 15
}

// DecodeJSONBody decodes a bounded JSON body into dest and runs its validate tags.
// Field problems come back as details keyed by json name.
func DecodeJSONBody(r *http.Request, dest any) error {
	defer io.Copy(io.Discard, r.Body)

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, msgInvalidBody).
			WithDetails(map[string]any{"error": err.Error()})
	}
	if err := validate.Struct(dest); err != nil {
		return fieldErrors(err)
	}
	return nil
}

func fieldErrors(err error) *pkgerrors.Error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, msgCheckFields)
	}
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		details[fe.Field()] = fieldMessage(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msgCheckFields).WithDetails(details)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "es obligatorio"
	case "email":
		return "debe ser un correo válido"
	case "telefono":
		return "debe ser un teléfono válido"
	case "min", "gte":
		return fmt.Sprintf("debe ser al menos %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("debe ser como máximo %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("debe ser uno de [%s]", fe.Param())
	}
	return "no es válido"
}
