package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/spotevents/spot/internal/application"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubVerifier map[string]application.Principal

func (s stubVerifier) VerifyAccessToken(token string) (string, string, error) {
	p, ok := s[token]
	if !ok {
		return "", "", errors.New("bad token")
	}
	return p.UserID, string(p.Role), nil
}

// Embedded interfaces panic on methods a test did not stub.

type stubIdentity struct {
	identityService
	login   func(email, password string) (application.AuthResult, error)
	refresh func(token string) (string, error)
	logout  func(principal *application.Principal, token string) error
	social  func(profile application.SocialProfile) (application.AuthResult, error)
}

func (s *stubIdentity) Login(_ context.Context, email, password string) (application.AuthResult, error) {
	return s.login(email, password)
}

func (s *stubIdentity) RefreshAccessToken(_ context.Context, token string) (string, error) {
	return s.refresh(token)
}

func (s *stubIdentity) Logout(_ context.Context, principal *application.Principal, token string) error {
	return s.logout(principal, token)
}

func (s *stubIdentity) SocialLogin(_ context.Context, profile application.SocialProfile) (application.AuthResult, error) {
	return s.social(profile)
}

type stubEvents struct {
	eventService
	create func(params application.CreateEventParams) (application.Event, error)
	get    func(viewer *application.Principal, id string) (application.Event, error)
	list   func(filter application.EventFilter, page application.PageRequest) (application.Page[application.Event], error)
}

func (s *stubEvents) Create(_ context.Context, params application.CreateEventParams) (application.Event, error) {
	return s.create(params)
}

func (s *stubEvents) Get(_ context.Context, viewer *application.Principal, id string) (application.Event, error) {
	return s.get(viewer, id)
}

func (s *stubEvents) List(_ context.Context, filter application.EventFilter, page application.PageRequest) (application.Page[application.Event], error) {
	return s.list(filter, page)
}

type stubTickets struct {
	ticketService
	qr func(principal application.Principal, id string) ([]byte, error)
}

func (s *stubTickets) QR(_ context.Context, principal application.Principal, id string) ([]byte, error) {
	return s.qr(principal, id)
}

type stubPayments struct {
	createOrder func(principal application.Principal, params application.OrderParams) (application.OrderResult, error)
	webhook     func(payload []byte, signature string) error
}

func (s *stubPayments) CreateOrder(_ context.Context, principal application.Principal, params application.OrderParams) (application.OrderResult, error) {
	return s.createOrder(principal, params)
}

func (s *stubPayments) HandleWebhook(_ context.Context, payload []byte, signature string) error {
	return s.webhook(payload, signature)
}

type stubReports struct {
	reportService
	payments func(page application.PageRequest) (application.PaymentsReport, error)
	premium  func(userID string, duration time.Duration) (application.User, error)
}

func (s *stubReports) ListPayments(_ context.Context, _ application.Principal, page application.PageRequest) (application.PaymentsReport, error) {
	return s.payments(page)
}

func (s *stubReports) GrantPremium(_ context.Context, _ application.Principal, userID string, duration time.Duration) (application.User, error) {
	return s.premium(userID, duration)
}

type stubFeed struct {
	served []string
}

func (s *stubFeed) Serve(w http.ResponseWriter, _ *http.Request, eventID string) error {
	s.served = append(s.served, eventID)
	w.WriteHeader(http.StatusOK)
	return nil
}
