package mail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"gopkg.in/gomail.v2"

	"github.com/spotevents/spot/internal/application"
)

type recordingDialer struct {
	messages []*gomail.Message
	err      error
}

func (d *recordingDialer) DialAndSend(messages ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.messages = append(d.messages, messages...)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSMTPSenderSendOTP(t *testing.T) {
	t.Parallel()

	cases := []struct {
		purpose application.OTPPurpose
		subject string
	}{
		{application.OTPPurposeSignup, "Verify your Spot account"},
		{application.OTPPurposeForgotPassword, "Reset your Spot password"},
	}
	for _, tc := range cases {
		t.Run(string(tc.purpose), func(t *testing.T) {
			t.Parallel()
			dialer := &recordingDialer{}
			sender := NewSMTPSenderWithDialer("no-reply@spot.test", dialer, discardLogger())

			if err := sender.SendOTP(context.Background(), "ada@example.com", "482913", tc.purpose); err != nil {
				t.Fatalf("SendOTP: %v", err)
			}
			if len(dialer.messages) != 1 {
				t.Fatalf("expected one message, got %d", len(dialer.messages))
			}
			msg := dialer.messages[0]
			if got := msg.GetHeader("To"); len(got) != 1 || got[0] != "ada@example.com" {
				t.Fatalf("unexpected recipient %v", got)
			}
			if got := msg.GetHeader("Subject"); len(got) != 1 || got[0] != tc.subject {
				t.Fatalf("unexpected subject %v", got)
			}
			var buf bytes.Buffer
			if _, err := msg.WriteTo(&buf); err != nil {
				t.Fatalf("WriteTo: %v", err)
			}
			if !strings.Contains(buf.String(), "482913") {
				t.Fatal("message body does not contain the code")
			}
		})
	}
}

func TestSMTPSenderWrapsTransportErrors(t *testing.T) {
	t.Parallel()

	relayDown := errors.New("dial tcp: connection refused")
	sender := NewSMTPSenderWithDialer("no-reply@spot.test", &recordingDialer{err: relayDown}, discardLogger())
	if err := sender.SendOTP(context.Background(), "ada@example.com", "1", application.OTPPurposeSignup); !errors.Is(err, relayDown) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sender.SendOTP(ctx, "ada@example.com", "1", application.OTPPurposeSignup); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewSMTPSenderValidatesConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewSMTPSender(Config{From: "a@b.c"}, nil); err == nil {
		t.Fatal("expected error without host")
	}
	if _, err := NewSMTPSender(Config{Host: "smtp.test", From: "a@b.c"}, nil); err != nil {
		t.Fatalf("NewSMTPSender: %v", err)
	}
}

func TestLogSenderLogsCode(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sender := NewLogSender(slog.New(slog.NewTextHandler(&buf, nil)))
	if err := sender.SendOTP(context.Background(), "ada@example.com", "111222", application.OTPPurposeSignup); err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	if !strings.Contains(buf.String(), "code=111222") {
		t.Fatalf("expected code in log, got %q", buf.String())
	}
}
