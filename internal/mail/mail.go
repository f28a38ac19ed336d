// Package mail delivers one-time codes by SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/gomail.v2"

	"github.com/spotevents/spot/internal/application"
)

// Config describes the SMTP relay.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether a relay is configured.
func (c Config) Enabled() bool {
	return c.Host != "" && c.From != ""
}

// Dialer is the part of gomail.Dialer the sender needs.
type Dialer interface {
	DialAndSend(messages ...*gomail.Message) error
}

// SMTPSender implements application.Mailer over gomail.
type SMTPSender struct {
	from   string
	dialer Dialer
	logger *slog.Logger

	// gomail dialers are not safe for concurrent use.
	mu sync.Mutex
}

// NewSMTPSender builds a sender for config.
func NewSMTPSender(config Config, logger *slog.Logger) (*SMTPSender, error) {
	if !config.Enabled() {
		return nil, errors.New("mail: SMTP host and sender address are required")
	}
	port := config.Port
	if port == 0 {
		port = 587
	}
	return NewSMTPSenderWithDialer(config.From, gomail.NewDialer(config.Host, port, config.Username, config.Password), logger), nil
}

// NewSMTPSenderWithDialer is used by tests to swap the transport.
func NewSMTPSenderWithDialer(from string, dialer Dialer, logger *slog.Logger) *SMTPSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPSender{from: from, dialer: dialer, logger: logger.With("component", "mail")}
}

// SendOTP emails code to the recipient.
func (s *SMTPSender) SendOTP(ctx context.Context, to, code string, purpose application.OTPPurpose) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	message := gomail.NewMessage()
	message.SetHeader("From", s.from)
	message.SetHeader("To", to)
	subject, text, html := compose(code, purpose)
	message.SetHeader("Subject", subject)
	message.SetBody("text/plain", text)
	message.AddAlternative("text/html", html)

	s.mu.Lock()
	err := s.dialer.DialAndSend(message)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("mail: send %s code: %w", purpose, err)
	}
	s.logger.InfoContext(ctx, "otp email sent", "to", to, "purpose", string(purpose))
	return nil
}

func compose(code string, purpose application.OTPPurpose) (subject, text, html string) {
	switch purpose {
	case application.OTPPurposeForgotPassword:
		subject = "Reset your Spot password"
		text = fmt.Sprintf("Your password reset code is %s. It expires in 10 minutes.", code)
	default:
		subject = "Verify your Spot account"
		text = fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code)
	}
	html = fmt.Sprintf("<p>%s</p><p style=\"font-size:24px;letter-spacing:4px\"><strong>%s</strong></p>", subject, code)
	return subject, text, html
}

// LogSender writes codes to the log instead of sending them. It is meant for
// local development when no relay is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender returns a sender that logs every code.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger.With("component", "mail")}
}

// SendOTP logs the code.
func (s *LogSender) SendOTP(ctx context.Context, to, code string, purpose application.OTPPurpose) error {
	s.logger.WarnContext(ctx, "SMTP not configured; logging one-time code", "to", to, "purpose", string(purpose), "code", code)
	return nil
}
