package responses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
	"github.com/Syntia28/nikos/pkg/logger"
	"github.com/Syntia28/nikos/pkg/types"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.ErrorEnvelope {
	t.Helper()
	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	return body
}

func TestWriteSuccessStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"orderId": "o-1"})

	if got := w.Code; got != http.StatusCreated {
		t.Fatalf("expected status 201 but got %d", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var body types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode success envelope: %v", err)
	}
	if body.Data.(map[string]any)["orderId"] != "o-1" {
		t.Fatalf("unexpected payload %v", body.Data)
	}
}

func TestWriteErrorEchoesPublicMessage(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "Solo puedes agregar 2 unidades más").
		WithDetails(map[string]any{"productId": "p-1"})
	WriteError(context.Background(), logger.Nop(), w, err)

	if got := w.Code; got != http.StatusBadRequest {
		t.Fatalf("expected status 400 but got %d", got)
	}
	body := decodeError(t, w)
	if body.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if body.Error.Message != "Solo puedes agregar 2 unidades más" {
		t.Fatalf("unexpected message %q", body.Error.Message)
	}
	if body.Error.Details == nil {
		t.Fatalf("expected details in public payload")
	}
}

func TestWriteErrorHidesInternalCauses(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, fmt.Errorf("load cart: %w", errors.New("connection reset")))

	if got := w.Code; got != http.StatusInternalServerError {
		t.Fatalf("expected status 500 but got %d", got)
	}
	body := decodeError(t, w)
	if body.Error.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if body.Error.Message != "Ocurrió un error, intenta nuevamente" {
		t.Fatalf("internal cause leaked: %q", body.Error.Message)
	}
	if body.Error.Details != nil {
		t.Fatalf("details should be omitted for internal errors")
	}
}

func TestWriteErrorDependencyKeepsDetailsButNotMessage(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeDependency, "firestore timeout").
		WithDetails(map[string]any{"dependency": "docstore"})
	WriteError(context.Background(), logger.Nop(), w, err)

	if got := w.Code; got != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 but got %d", got)
	}
	body := decodeError(t, w)
	if body.Error.Message != "Servicio no disponible, intenta más tarde" {
		t.Fatalf("unexpected message %q", body.Error.Message)
	}
	if body.Error.Details.(map[string]any)["dependency"] != "docstore" {
		t.Fatalf("unexpected details %v", body.Error.Details)
	}
}

func TestWriteErrorCarriesRetryHintAndRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set("X-Request-Id", "req-42")
	WriteError(context.Background(), logger.Nop(), w, pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("timeout"), "read historial"))

	body := decodeError(t, w)
	if !body.Error.Retryable {
		t.Fatalf("dependency errors should be marked retryable")
	}
	if body.Error.RequestID != "req-42" {
		t.Fatalf("expected request id echoed, got %q", body.Error.RequestID)
	}

	w = httptest.NewRecorder()
	WriteError(context.Background(), logger.Nop(), w, pkgerrors.New(pkgerrors.CodeValidation, "cantidad inválida"))
	body = decodeError(t, w)
	if body.Error.Retryable || body.Error.RequestID != "" {
		t.Fatalf("unexpected hints %+v", body.Error)
	}
}
