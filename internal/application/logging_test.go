package application

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrForbidden, "forbidden"},
		{fmt.Errorf("wrapped: %w", ErrTicketUsed), "ticket_used"},
		{fmt.Errorf("%w: bad sig", ErrInvalidWebhook), "invalid_webhook"},
		{&ValidationError{FieldErrors: map[string]string{"a": "b"}}, "validation"},
		{&GatewayError{Kind: GatewayRateLimited}, "gateway_rate_limited"},
		{errors.New("boom"), "unexpected"},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Fatalf("ErrorKind(%v): expected %q, got %q", tc.err, tc.want, got)
		}
	}
}
