package controllers

import (
	"net/http"

	"github.com/Syntia28/nikos/api/middleware"
	"github.com/Syntia28/nikos/api/responses"
	"github.com/Syntia28/nikos/internal/users"
	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
	"github.com/Syntia28/nikos/pkg/logger"
)

// Me returns the usuarios profile of the caller.
func Me(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		profile, err := svc.Profile(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, profile)
	}
}
