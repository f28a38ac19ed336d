package http

import (
	"context"
	"log/slog"

	"github.com/spotevents/spot/internal/application"
	"github.com/spotevents/spot/internal/logging"
)

type contextKey string

const (
	principalContextKey     contextKey = "principal"
	rejectedTokenContextKey contextKey = "rejected_token"
)

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// optionalPrincipal returns a pointer to the caller, or nil for anonymous requests.
func optionalPrincipal(ctx context.Context) *application.Principal {
	if principal, ok := PrincipalFromContext(ctx); ok {
		return &principal
	}
	return nil
}

func contextWithRejectedToken(ctx context.Context) context.Context {
	return context.WithValue(ctx, rejectedTokenContextKey, true)
}

// authFailure is the 401 message for a request without a principal: a bearer
// token was sent but failed verification, or none was sent.
func authFailure(ctx context.Context) error {
	if rejected, _ := ctx.Value(rejectedTokenContextKey).(bool); rejected {
		return errInvalidToken
	}
	return errMissingToken
}

// ContextWithLogger attaches a request scoped logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext returns the request scoped logger, if any.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
