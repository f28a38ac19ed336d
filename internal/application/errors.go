package application

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when an operation requires an authenticated principal.
	ErrUnauthenticated = errors.New("application: authentication required")
	// ErrForbidden is returned when the acting principal lacks permission for an operation.
	ErrForbidden = errors.New("application: forbidden")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique resource is created twice.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrConflict is returned when a conditional state transition matched nothing.
	ErrConflict = errors.New("application: state conflict")
	// ErrInvalidCredentials is returned for any failed password or token check.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrSessionExpired is returned when a pending signup has lapsed.
	ErrSessionExpired = errors.New("application: signup session expired")
	// ErrOTPExpired is returned when no live one-time code exists for the email.
	ErrOTPExpired = errors.New("application: otp expired or not found")
	// ErrOTPInvalid is returned when a one-time code does not match or was already consumed.
	ErrOTPInvalid = errors.New("application: invalid otp")
	// ErrSocialAccount is returned when password flows target an account without a password.
	ErrSocialAccount = errors.New("application: account uses social login")
	// ErrRoleTransition is returned when a role change is not allowed from the current role.
	ErrRoleTransition = errors.New("application: role change not allowed")
	// ErrEventStarted is returned when mutating or purchasing an event that already began.
	ErrEventStarted = errors.New("application: event already started")
	// ErrEventHasTickets is returned when deleting an event with live tickets.
	ErrEventHasTickets = errors.New("application: event has issued tickets")
	// ErrEventUnavailable is returned when ordering tickets for an unpublished event.
	ErrEventUnavailable = errors.New("application: event is not available")
	// ErrInsufficientCapacity is returned when an order exceeds the remaining seats.
	ErrInsufficientCapacity = errors.New("application: not enough tickets available")
	// ErrTicketUsed is returned when checking in a ticket twice.
	ErrTicketUsed = errors.New("application: ticket already used")
	// ErrTicketCancelled is returned when checking in a cancelled ticket.
	ErrTicketCancelled = errors.New("application: ticket has been cancelled")
	// ErrInvalidWebhook is returned when a gateway notification fails verification or decoding.
	ErrInvalidWebhook = errors.New("application: invalid webhook payload")
	// ErrUploadsDisabled is returned when an image is supplied but no image store is configured.
	ErrUploadsDisabled = errors.New("application: image uploads are not configured")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// GatewayErrorKind classifies payment gateway failures for status mapping.
type GatewayErrorKind string

const (
	GatewayCardDeclined   GatewayErrorKind = "card_declined"
	GatewayRateLimited    GatewayErrorKind = "rate_limited"
	GatewayInvalidRequest GatewayErrorKind = "invalid_request"
	GatewayAuthentication GatewayErrorKind = "authentication"
	GatewayUnavailable    GatewayErrorKind = "unavailable"
)

// GatewayError wraps a payment gateway failure with its classification.
type GatewayError struct {
	Kind    GatewayErrorKind
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return fmt.Sprintf("payment gateway: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("payment gateway: %s", e.Kind)
}

func (e *GatewayError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
