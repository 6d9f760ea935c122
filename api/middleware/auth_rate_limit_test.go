package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
)

func TestAuthRateLimit_AllowsUnderLimitAndPreservesBody(t *testing.T) {
	limiter := newFakeLimiter()
	policy := AuthRateLimitPolicy{Name: "login", Window: time.Minute, IPLimit: 2, EmailLimit: 2}
	handler := AuthRateLimit(policy, limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if !strings.Contains(string(body), `"email":"cliente@nikos.pe"`) {
			t.Fatalf("unexpected body: %s", string(body))
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"cliente@nikos.pe","password":"secreto"}`))
	req.RemoteAddr = "1.2.3.4:5678"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(limiter.scopes) != 2 {
		t.Fatalf("expected ip and email checks, got %v", limiter.scopes)
	}
	for _, scope := range limiter.scopes {
		if strings.Contains(scope, "cliente@nikos.pe") {
			t.Fatalf("email leaked into scope %s", scope)
		}
	}
}

func TestAuthRateLimit_EmailLimitTriggersCaseInsensitive(t *testing.T) {
	limiter := newFakeLimiter()
	policy := AuthRateLimitPolicy{Name: "login", Window: time.Minute, EmailLimit: 2}
	handler := AuthRateLimit(policy, limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	emails := []string{"Bloqueado@nikos.pe", "bloqueado@nikos.pe", " BLOQUEADO@nikos.pe "}
	for i, email := range emails {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"`+email+`","password":"x"}`))
		req.RemoteAddr = "1.2.3.4:5678"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if i < 2 {
			if rec.Code != http.StatusOK {
				t.Fatalf("attempt %d: expected 200, got %d", i, rec.Code)
			}
			continue
		}
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
		if rec.Header().Get("Retry-After") != "60" {
			t.Fatalf("unexpected Retry-After %q", rec.Header().Get("Retry-After"))
		}
		var payload struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode error: %v", err)
		}
		if payload.Error.Code != string(pkgerrors.CodeRateLimit) {
			t.Fatalf("unexpected code: %s", payload.Error.Code)
		}
	}
}

func TestAuthRateLimit_IPFromForwardedFor(t *testing.T) {
	limiter := newFakeLimiter()
	policy := AuthRateLimitPolicy{Name: "register", Window: time.Minute, IPLimit: 1}
	handler := AuthRateLimit(policy, limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := []int{}
	for _, remote := range []string{"5.6.7.8:1", "9.9.9.9:2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(`{}`))
		req.RemoteAddr = remote
		req.Header.Set("X-Forwarded-For", "10.0.0.1, 172.16.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}
	if limiter.scopes[0] != "register:ip:10.0.0.1" {
		t.Fatalf("unexpected scope %s", limiter.scopes[0])
	}
}

func TestAuthRateLimit_LimiterFailureIsDependencyError(t *testing.T) {
	limiter := newFakeLimiter()
	limiter.err = errors.New("redis down")
	policy := AuthRateLimitPolicy{Name: "login", Window: time.Minute, IPLimit: 1}
	handler := AuthRateLimit(policy, limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected dependency status, got %d", rec.Code)
	}
}

func TestAuthRateLimit_DisabledPolicyPassesThrough(t *testing.T) {
	limiter := newFakeLimiter()
	handler := AuthRateLimit(AuthRateLimitPolicy{Name: "login"}, limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || len(limiter.scopes) != 0 {
		t.Fatalf("expected passthrough, got %d with %v", rec.Code, limiter.scopes)
	}
}

type fakeLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
	scopes []string
	err    error
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{counts: map[string]int64{}}
}

func (f *fakeLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, 0, f.err
	}
	f.scopes = append(f.scopes, scope)
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}
