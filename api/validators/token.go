package validators

import (
	"net/http"
	"strings"

	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
)

const bearerPrefix = "bearer "

// BearerToken extracts the access token from the Authorization header. The scheme
// prefix is optional. Browsers cannot set headers on an EventSource, so GET requests
// may pass the token as the access_token query parameter instead.
func BearerToken(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" && r.Method == http.MethodGet {
		raw = strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	if raw == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	token := raw
	if len(token) >= len(bearerPrefix) && strings.EqualFold(token[:len(bearerPrefix)], bearerPrefix) {
		token = strings.TrimSpace(token[len(bearerPrefix):])
	}
	if token == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return token, nil
}
