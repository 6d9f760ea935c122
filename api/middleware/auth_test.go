package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Syntia28/nikos/pkg/auth"
	"github.com/Syntia28/nikos/pkg/auth/session"
	"github.com/Syntia28/nikos/pkg/config"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "nikos", ExpirationMinutes: 60}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWT, stubSessionVerifier{ok: true}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testJWT, stubSessionVerifier{ok: true}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsRevokedSession(t *testing.T) {
	token, _ := mintTestToken(t, "user-1", "ana@nikos.pe")
	handler := Auth(testJWT, stubSessionVerifier{ok: false}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthSessionStoreFailureIsDependency(t *testing.T) {
	token, _ := mintTestToken(t, "user-1", "ana@nikos.pe")
	handler := Auth(testJWT, stubSessionVerifier{err: errors.New("redis down")}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestAuthSeedsIdentity(t *testing.T) {
	token, accessID := mintTestToken(t, "user-1", "ana@nikos.pe")

	var captured struct {
		user, email, access string
	}
	handler := Auth(testJWT, stubSessionVerifier{ok: true}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.user = UserIDFromContext(r.Context())
		captured.email = EmailFromContext(r.Context())
		captured.access = AccessIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.user != "user-1" || captured.email != "ana@nikos.pe" || captured.access != accessID {
		t.Fatalf("unexpected identity %+v", captured)
	}
}

func TestAuthAcceptsQueryTokenOnGetOnly(t *testing.T) {
	token, _ := mintTestToken(t, "user-1", "ana@nikos.pe")
	handler := Auth(testJWT, stubSessionVerifier{ok: true}, nil)(okHandler())

	get := httptest.NewRequest(http.MethodGet, "/api/v1/orders/stream?access_token="+token, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, get)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for GET got %d", resp.Code)
	}

	post := httptest.NewRequest(http.MethodPost, "/api/v1/checkout?access_token="+token, nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, post)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for POST got %d", resp.Code)
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func mintTestToken(t *testing.T, userID, email string) (string, string) {
	t.Helper()
	accessID := session.NewAccessID()
	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{
		UserID: userID,
		Email:  email,
		JTI:    accessID,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token, accessID
}

type stubSessionVerifier struct {
	ok  bool
	err error
}

func (s stubSessionVerifier) HasSession(ctx context.Context, accessID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.ok, nil
}
