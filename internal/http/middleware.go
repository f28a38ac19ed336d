package http

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/spotevents/spot/internal/application"
	"github.com/spotevents/spot/internal/ratelimit"
)

// AccessTokenVerifier validates bearer tokens.
type AccessTokenVerifier interface {
	VerifyAccessToken(token string) (userID, role string, err error)
}

// Authenticate attaches the principal of a valid bearer token to the request.
// Requests without a valid token continue anonymously, so cookie-based routes
// such as refresh and logout still work with a stale access token. Protected
// routes answer 401 through RequireAuth and RequireRole.
func Authenticate(verifier AccessTokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, role, err := verifier.VerifyAccessToken(token)
			if err != nil || !application.Role(role).Valid() {
				responder.loggerFor(r.Context()).InfoContext(r.Context(), "access token rejected", "error", err)
				next.ServeHTTP(w, r.WithContext(contextWithRejectedToken(r.Context())))
				return
			}

			ctx := ContextWithPrincipal(r.Context(), application.Principal{UserID: userID, Role: application.Role(role)})
			if logger := LoggerFromContext(ctx); logger != nil {
				ctx = ContextWithLogger(ctx, logger.With("principal_id", userID))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous requests.
func RequireAuth(logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := PrincipalFromContext(r.Context()); !ok {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, authFailure(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects principals outside roles. Anonymous callers get 401.
func RequireRole(logger *slog.Logger, roles ...application.Role) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, authFailure(r.Context()))
				return
			}
			for _, role := range roles {
				if principal.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			responder.handleServiceError(r.Context(), w, application.ErrForbidden)
		})
	}
}

// RateLimitRule bounds requests per client address.
type RateLimitRule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// RateLimit counts requests per client IP under rule.Name. Limiter failures
// are logged and the request is allowed.
func RateLimit(limiter ratelimit.Limiter, rule RateLimitRule, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rule.Name + ":" + clientIP(r)
			res, err := limiter.Allow(r.Context(), key, rule.Limit, rule.Window)
			if err != nil {
				responder.loggerFor(r.Context()).WarnContext(r.Context(), "rate limiter unavailable", "rule", rule.Name, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if !res.Allowed {
				seconds := int(math.Ceil(res.RetryAfter.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				responder.loggerFor(r.Context()).InfoContext(r.Context(), "rate limit exceeded", "rule", rule.Name)
				responder.writeError(r.Context(), w, http.StatusTooManyRequests, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger tags every request with an incrementing id and logs its outcome.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(ww, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed",
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// principalOrReject returns the caller or writes 401.
func principalOrReject(ctx context.Context, w http.ResponseWriter, responder responder) (application.Principal, bool) {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		responder.writeError(ctx, w, http.StatusUnauthorized, authFailure(ctx))
	}
	return principal, ok
}
