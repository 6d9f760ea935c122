package orders

import (
	"net/http"
	"strings"

	"github.com/Syntia28/nikos/api/middleware"
	"github.com/Syntia28/nikos/api/responses"
	"github.com/Syntia28/nikos/api/validators"
	ordersvc "github.com/Syntia28/nikos/internal/orders"
	"github.com/Syntia28/nikos/internal/ratings"
	"github.com/Syntia28/nikos/internal/users"
	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
	"github.com/Syntia28/nikos/pkg/logger"
)

type rateRequest struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

func filtersFromQuery(r *http.Request) (ordersvc.Filters, error) {
	return ordersvc.ParseFilters(
		validators.QueryString(r, "view"),
		validators.QueryString(r, "estado"),
		validators.QueryString(r, "window"),
	)
}

// List returns the caller's history, newest first, narrowed by ?view=, ?estado= and ?window=.
func List(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		filters, err := filtersFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), middleware.UserIDFromContext(r.Context()), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

func Summary(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		summary, err := svc.Summary(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, summary)
	}
}

func Detail(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.PathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), middleware.UserIDFromContext(r.Context()), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// Tracking returns the status timeline for the delivery or pickup flow of one order.
func Tracking(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.PathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tracking, err := svc.Tracking(r.Context(), middleware.UserIDFromContext(r.Context()), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, tracking)
	}
}

// Rate submits the caller's rating for a finished order. A partially saved rating is
// reported as DEPENDENCY_ERROR with the per-product outcome in details.
func Rate(svc ratings.Service, profiles users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ratings service unavailable"))
			return
		}

		orderID, err := validators.PathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body rateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		userID := middleware.UserIDFromContext(ctx)
		email := middleware.EmailFromContext(ctx)

		result, err := svc.Submit(ctx, ratings.SubmitInput{
			UserID:    userID,
			UserEmail: email,
			UserName:  displayName(r, profiles, userID, email, logg),
			OrderID:   orderID,
			Score:     body.Score,
			Comment:   body.Comment,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// displayName prefers the profile name and falls back to the email.
func displayName(r *http.Request, profiles users.Service, userID, email string, logg *logger.Logger) string {
	if profiles == nil || userID == "" {
		return email
	}
	profile, err := profiles.Profile(r.Context(), userID)
	if err != nil {
		if logg != nil {
			logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "ratings.profile_lookup_failed")
		}
		return email
	}
	if name := strings.TrimSpace(profile.Nombre + " " + profile.Apellido); name != "" {
		return name
	}
	return email
}
