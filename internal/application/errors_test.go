package application

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError(t *testing.T) {
	t.Parallel()

	var nilErr *ValidationError
	if nilErr.Error() != "" || nilErr.HasErrors() {
		t.Fatalf("nil validation error should be empty")
	}
	if (&ValidationError{}).HasErrors() {
		t.Fatalf("empty validation error should report no fields")
	}

	v := &ValidationError{}
	v.add("email", "Please provide a valid email")
	v.add("email", "ignored")
	if got := v.FieldErrors["email"]; got != "Please provide a valid email" {
		t.Fatalf("first message should win, got %q", got)
	}

	v.merge(&ValidationError{FieldErrors: map[string]string{"capacity": "too small", "email": "also ignored"}})
	v.merge(nil)
	if len(v.FieldErrors) != 2 || v.FieldErrors["capacity"] != "too small" {
		t.Fatalf("unexpected fields after merge: %v", v.FieldErrors)
	}
	if v.Error() != "validation failed" {
		t.Fatalf("unexpected message %q", v.Error())
	}

	var target *ValidationError
	if !errors.As(fmt.Errorf("create event: %w", v), &target) || !target.HasErrors() {
		t.Fatalf("validation error should survive wrapping")
	}
}

func TestGatewayError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := fmt.Errorf("create order: %w", &GatewayError{Kind: GatewayCardDeclined, Message: "Your card was declined.", Err: cause})

	var gw *GatewayError
	if !errors.As(err, &gw) || gw.Kind != GatewayCardDeclined {
		t.Fatalf("expected card_declined gateway error, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("gateway error should unwrap to its cause")
	}
	if got := gw.Error(); got != "payment gateway: card_declined: Your card was declined." {
		t.Fatalf("unexpected message %q", got)
	}
	if got := (&GatewayError{Kind: GatewayUnavailable}).Error(); got != "payment gateway: unavailable" {
		t.Fatalf("unexpected message %q", got)
	}
}
