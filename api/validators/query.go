package validators

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
)

const maxQueryLen = 120

// QueryString returns the sanitized query parameter, empty when absent.
func QueryString(r *http.Request, key string) string {
	return SanitizeString(r.URL.Query().Get(key), maxQueryLen)
}

// PathID reads a required chi URL parameter.
func PathID(r *http.Request, key string) (string, error) {
	value := strings.TrimSpace(chi.URLParam(r, key))
	if value == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "missing path parameter").WithDetails(map[string]any{"field": key})
	}
	return value, nil
}
