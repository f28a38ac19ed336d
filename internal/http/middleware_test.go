package http

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spotevents/spot/internal/application"
	"github.com/spotevents/spot/internal/ratelimit"
)

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	verifier := stubVerifier{"good": {UserID: "user-1", Role: application.RoleOrganizer}}

	tests := []struct {
		name          string
		header        string
		wantStatus    int
		wantPrincipal bool
	}{
		{name: "anonymous requests pass through", wantStatus: http.StatusOK},
		{name: "valid bearer token attaches principal", header: "Bearer good", wantStatus: http.StatusOK, wantPrincipal: true},
		{name: "scheme is case insensitive", header: "bearer good", wantStatus: http.StatusOK, wantPrincipal: true},
		{name: "invalid token continues anonymously", header: "Bearer forged", wantStatus: http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var got application.Principal
			var found bool
			handler := Authenticate(verifier, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, found = PrincipalFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if found != tc.wantPrincipal {
				t.Fatalf("principal attached = %v, want %v", found, tc.wantPrincipal)
			}
			if tc.wantPrincipal && (got.UserID != "user-1" || got.Role != application.RoleOrganizer) {
				t.Fatalf("unexpected principal %+v", got)
			}
		})
	}
}

func TestRejectedTokenReachesProtectedRoutes(t *testing.T) {
	t.Parallel()

	verifier := stubVerifier{"good": {UserID: "user-1", Role: application.RoleOrganizer}}
	protected := func(mw func(http.Handler) http.Handler) http.Handler {
		return Authenticate(verifier, discardLogger())(mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})))
	}

	tests := []struct {
		name    string
		handler http.Handler
		header  string
		want    string
	}{
		{name: "require auth with forged token", handler: protected(RequireAuth(discardLogger())), header: "Bearer forged", want: errInvalidToken.Error()},
		{name: "require role with forged token", handler: protected(RequireRole(discardLogger(), application.RoleOrganizer)), header: "Bearer forged", want: errInvalidToken.Error()},
		{name: "require auth without token", handler: protected(RequireAuth(discardLogger())), want: errMissingToken.Error()},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/api/users/profile", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			tc.handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tc.want) {
				t.Fatalf("body = %s, want message %q", rec.Body.String(), tc.want)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		principal  *application.Principal
		wantStatus int
	}{
		{name: "anonymous", wantStatus: http.StatusUnauthorized},
		{name: "plain user", principal: &application.Principal{UserID: "u", Role: application.RoleUser}, wantStatus: http.StatusForbidden},
		{name: "organizer", principal: &application.Principal{UserID: "o", Role: application.RoleOrganizer}, wantStatus: http.StatusOK},
		{name: "admin", principal: &application.Principal{UserID: "a", Role: application.RoleAdmin}, wantStatus: http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			handler := RequireRole(discardLogger(), application.RoleOrganizer, application.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodPost, "/api/checkin", nil)
			if tc.principal != nil {
				req = req.WithContext(ContextWithPrincipal(req.Context(), *tc.principal))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := ratelimit.NewMemoryLimiter(func() time.Time { return now })
	rule := RateLimitRule{Name: "payments", Limit: 2, Window: time.Minute}
	handler := RateLimit(limiter, rule, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/payments/create-order", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := send("10.0.0.1:5000"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
	rec := send("10.0.0.1:5001")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("remaining = %q", rec.Header().Get("X-RateLimit-Remaining"))
	}

	if rec := send("10.0.0.2:5000"); rec.Code != http.StatusOK {
		t.Fatalf("other client limited: status = %d", rec.Code)
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("redis down")
}

func TestRateLimitFailsOpen(t *testing.T) {
	t.Parallel()

	handler := RateLimit(failingLimiter{}, RateLimitRule{Name: "global", Limit: 1, Window: time.Minute}, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if LoggerFromContext(r.Context()) == nil {
			t.Error("expected request logger in context")
		}
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	out := buf.String()
	for _, want := range []string{`"msg":"request completed"`, `"status":418`, `"path":"/healthz"`, `"request_id":1`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %s:\n%s", want, out)
		}
	}
}
