package controllers

import (
	"net/http"

	"github.com/Syntia28/nikos/api/middleware"
	"github.com/Syntia28/nikos/api/responses"
	"github.com/Syntia28/nikos/api/validators"
	checkoutsvc "github.com/Syntia28/nikos/internal/checkout"
	pkgcheckout "github.com/Syntia28/nikos/pkg/checkout"
	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
	"github.com/Syntia28/nikos/pkg/logger"
)

// Checkout converts the caller's cart into a pending order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var details pkgcheckout.DeliveryDetails
		if err := validators.DecodeJSONBody(r, &details); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Execute(r.Context(), middleware.UserIDFromContext(r.Context()), details)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}
