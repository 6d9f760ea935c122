package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
	"github.com/Syntia28/nikos/pkg/logger"
	"github.com/Syntia28/nikos/pkg/types"
)

// Set by the request id middleware before any handler runs.
const requestIDHeader = "X-Request-Id"

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError renders err as an error envelope. Untyped errors become
// internal errors so driver messages never reach the client.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	apiErr := types.APIError{
		Code:      string(typed.Code()),
		Message:   typed.Public(),
		Retryable: meta.Retryable,
		RequestID: w.Header().Get(requestIDHeader),
	}
	if meta.DetailsAllowed && typed.Details() != nil {
		apiErr.Details = typed.Details()
	}

	if logg != nil {
		logg.Error(logg.WithFields(ctx, logFields(err, typed)), "request.error", err)
	}

	writeJSON(w, meta.HTTPStatus, types.ErrorEnvelope{Error: apiErr})
}

func logFields(err error, typed *pkgerrors.Error) map[string]any {
	dump := pkgerrors.Dump(err)
	fields := map[string]any{
		"error":       dump.TopMessage,
		"error_code":  dump.Code,
		"error_chain": dump.Chain,
	}
	if dump.Backend != "" {
		fields["store_backend"] = dump.Backend
		fields["transient"] = dump.Transient
	}
	if dump.PGCode != "" {
		fields["pg_code"] = dump.PGCode
		fields["pg_table"] = dump.PGTable
		fields["pg_constraint"] = dump.PGConstraint
		fields["pg_detail"] = dump.PGDetail
	}
	if len(dump.MongoCodes) > 0 {
		fields["mongo_codes"] = dump.MongoCodes
	}
	if dump.GRPCCode != "" {
		fields["grpc_code"] = dump.GRPCCode
	}
	if dm, ok := typed.Details().(map[string]any); ok {
		for _, key := range []string{"step", "dependency"} {
			if v, ok := dm[key]; ok {
				fields[key] = v
			}
		}
	}
	return fields
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; an encode failure here means the client went away.
	_ = json.NewEncoder(w).Encode(payload)
}
