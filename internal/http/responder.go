package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/spotevents/spot/internal/application"
)

var (
	errBadRequestBody    = errors.New("Invalid request body")
	errMissingToken      = errors.New("Authentication required")
	errInvalidToken      = errors.New("Invalid or expired token")
	errMissingRefresh    = errors.New("Refresh token missing")
	errInvalidPagination = errors.New("Invalid pagination parameters")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
	}
	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// sentinelResponses maps service errors to their status and client message.
var sentinelResponses = []struct {
	err     error
	status  int
	message string
}{
	{application.ErrUnauthenticated, http.StatusUnauthorized, "Authentication required"},
	{application.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
	{application.ErrForbidden, http.StatusForbidden, "You do not have permission to perform this action"},
	{application.ErrNotFound, http.StatusNotFound, "Resource not found"},
	{application.ErrAlreadyExists, http.StatusBadRequest, "User already exists"},
	{application.ErrConflict, http.StatusBadRequest, "The resource changed, please retry"},
	{application.ErrSessionExpired, http.StatusBadRequest, "Signup session expired, please register again"},
	{application.ErrOTPExpired, http.StatusBadRequest, "OTP expired or not found"},
	{application.ErrOTPInvalid, http.StatusBadRequest, "Invalid OTP"},
	{application.ErrSocialAccount, http.StatusBadRequest, "This account uses social login"},
	{application.ErrRoleTransition, http.StatusBadRequest, "Role change not allowed"},
	{application.ErrEventStarted, http.StatusBadRequest, "Event has already started"},
	{application.ErrEventHasTickets, http.StatusBadRequest, "Event has issued tickets and cannot be deleted"},
	{application.ErrEventUnavailable, http.StatusBadRequest, "Event is not available for sale"},
	{application.ErrInsufficientCapacity, http.StatusBadRequest, "Not enough tickets available"},
	{application.ErrTicketUsed, http.StatusBadRequest, "Ticket already used"},
	{application.ErrTicketCancelled, http.StatusBadRequest, "Ticket has been cancelled"},
	{application.ErrInvalidWebhook, http.StatusBadRequest, "Invalid webhook"},
	{application.ErrUploadsDisabled, http.StatusBadRequest, "Image uploads are not configured"},
}

func gatewayStatus(kind application.GatewayErrorKind) (int, string) {
	switch kind {
	case application.GatewayCardDeclined:
		return http.StatusPaymentRequired, "Payment was declined"
	case application.GatewayRateLimited:
		return http.StatusTooManyRequests, "Payment provider is busy, please retry"
	case application.GatewayInvalidRequest:
		return http.StatusBadRequest, "Payment request was rejected"
	case application.GatewayAuthentication:
		return http.StatusInternalServerError, "Internal server error"
	default:
		return http.StatusServiceUnavailable, "Payment provider unavailable"
	}
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
			Message: "Validation failed",
			Errors:  vErr.FieldErrors,
		})
		return
	}

	var gErr *application.GatewayError
	if errors.As(err, &gErr) {
		status, message := gatewayStatus(gErr.Kind)
		if gErr.Kind == application.GatewayCardDeclined && gErr.Message != "" {
			message = gErr.Message
		}
		r.writeJSON(ctx, w, status, errorResponse{Message: message})
		return
	}

	for _, candidate := range sentinelResponses {
		if errors.Is(err, candidate.err) {
			r.writeJSON(ctx, w, candidate.status, errorResponse{Message: candidate.message})
			return
		}
	}

	r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
	r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "Internal server error"})
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Bad request"
	case http.StatusUnauthorized:
		return "Authentication required"
	case http.StatusForbidden:
		return "You do not have permission to perform this action"
	case http.StatusNotFound:
		return "Resource not found"
	case http.StatusTooManyRequests:
		return "Too many requests, please try again later"
	default:
		return "Internal server error"
	}
}

type errorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}
