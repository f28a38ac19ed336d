package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spotevents/spot/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	return logging.Scoped(ctx, base, "service", serviceName, operation, attrs...)
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, ErrOTPExpired):
		return "otp_expired"
	case errors.Is(err, ErrOTPInvalid):
		return "otp_invalid"
	case errors.Is(err, ErrSocialAccount):
		return "social_account"
	case errors.Is(err, ErrRoleTransition):
		return "role_transition"
	case errors.Is(err, ErrEventStarted):
		return "event_started"
	case errors.Is(err, ErrEventHasTickets):
		return "event_has_tickets"
	case errors.Is(err, ErrEventUnavailable):
		return "event_unavailable"
	case errors.Is(err, ErrInsufficientCapacity):
		return "insufficient_capacity"
	case errors.Is(err, ErrTicketUsed):
		return "ticket_used"
	case errors.Is(err, ErrTicketCancelled):
		return "ticket_cancelled"
	case errors.Is(err, ErrInvalidWebhook):
		return "invalid_webhook"
	case errors.Is(err, ErrUploadsDisabled):
		return "uploads_disabled"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}
	var gErr *GatewayError
	if errors.As(err, &gErr) {
		return "gateway_" + string(gErr.Kind)
	}

	return "unexpected"
}
