package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const premiumPlan = "premium"

// ReportServiceDeps wires the collaborators of the report service.
type ReportServiceDeps struct {
	Users         UserRepository
	Events        EventRepository
	Tickets       TicketRepository
	Transactions  TransactionRepository
	Payouts       PayoutRepository
	Subscriptions SubscriptionRepository
	Analytics     AnalyticsRepository
	StatsTTL      time.Duration
	IDGenerator   func() string
	Now           func() time.Time
	Logger        *slog.Logger
}

// ReportService serves the admin and organizer dashboards.
type ReportService struct {
	users         UserRepository
	events        EventRepository
	tickets       TicketRepository
	transactions  TransactionRepository
	payouts       PayoutRepository
	subscriptions SubscriptionRepository
	analytics     AnalyticsRepository
	cache         *statsCache
	idGenerator   func() string
	now           func() time.Time
	logger        *slog.Logger
}

// NewReportService constructs a ReportService with the provided dependencies.
func NewReportService(deps ReportServiceDeps) *ReportService {
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &ReportService{
		users:         deps.Users,
		events:        deps.Events,
		tickets:       deps.Tickets,
		transactions:  deps.Transactions,
		payouts:       deps.Payouts,
		subscriptions: deps.Subscriptions,
		analytics:     deps.Analytics,
		cache:         newStatsCache(deps.StatsTTL, 0, deps.Now),
		idGenerator:   deps.IDGenerator,
		now:           deps.Now,
		logger:        defaultLogger(deps.Logger),
	}
}

func (s *ReportService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReportService", operation, attrs...)
}

// Invalidate drops cached stats for an event.
func (s *ReportService) Invalidate(eventID string) {
	if s == nil {
		return
	}
	s.cache.Invalidate(eventID)
}

// ListUsers pages through every account. Admin only.
func (s *ReportService) ListUsers(ctx context.Context, principal Principal, req PageRequest) (Page[User], error) {
	if s == nil || s.users == nil {
		return Page[User]{}, fmt.Errorf("ReportService not configured")
	}
	if !principal.IsAdmin() {
		return Page[User]{}, ErrForbidden
	}
	page, limit, offset := normalizePage(req)
	users, total, err := s.users.ListUsers(ctx, offset, limit)
	if err != nil {
		s.loggerWith(ctx, "ListUsers").ErrorContext(ctx, "user listing failed", "error", err)
		return Page[User]{}, err
	}
	return Page[User]{Items: users, Total: total, Page: page, Limit: limit}, nil
}

// ListPayments pages through transactions and totals every settled payment. Admin only.
func (s *ReportService) ListPayments(ctx context.Context, principal Principal, req PageRequest) (PaymentsReport, error) {
	if s == nil || s.transactions == nil {
		return PaymentsReport{}, fmt.Errorf("ReportService not configured")
	}
	if !principal.IsAdmin() {
		return PaymentsReport{}, ErrForbidden
	}
	logger := s.loggerWith(ctx, "ListPayments")

	page, limit, offset := normalizePage(req)
	txs, total, err := s.transactions.ListTransactions(ctx, offset, limit)
	if err != nil {
		logger.ErrorContext(ctx, "transaction listing failed", "error", err)
		return PaymentsReport{}, err
	}
	totals, err := s.transactions.SumTransactions(ctx, "", TransactionSuccess)
	if err != nil {
		logger.ErrorContext(ctx, "transaction totals failed", "error", err)
		return PaymentsReport{}, err
	}
	return PaymentsReport{
		Transactions: Page[Transaction]{Items: txs, Total: total, Page: page, Limit: limit},
		Totals:       totals,
	}, nil
}

// CreatePayout records an amount owed to an organizer. Admin only.
func (s *ReportService) CreatePayout(ctx context.Context, principal Principal, params PayoutParams) (payout Payout, err error) {
	if s == nil || s.payouts == nil || s.users == nil {
		return payout, fmt.Errorf("ReportService not configured")
	}
	params.OrganizerID = strings.TrimSpace(params.OrganizerID)
	params.Note = strings.TrimSpace(params.Note)

	logger := s.loggerWith(ctx, "CreatePayout", "organizer_id", params.OrganizerID, "amount", params.Amount)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "payout creation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("payout_id", payout.ID).InfoContext(ctx, "payout created")
	}()

	if !principal.IsAdmin() {
		err = ErrForbidden
		return
	}
	if vErr := validateStruct(params); vErr.HasErrors() {
		err = vErr
		return
	}

	var organizer User
	organizer, err = s.users.GetUser(ctx, params.OrganizerID)
	if err != nil {
		return
	}
	if organizer.Role != RoleOrganizer {
		err = &ValidationError{FieldErrors: map[string]string{"organizerId": "user is not an organizer"}}
		return
	}

	payout = Payout{
		ID:          s.idGenerator(),
		OrganizerID: organizer.ID,
		Amount:      params.Amount,
		Status:      "pending",
		Note:        params.Note,
		CreatedBy:   principal.UserID,
		CreatedAt:   s.now(),
	}
	err = s.payouts.CreatePayout(ctx, payout)
	return
}

// GrantPremium activates the premium plan for a user. Admin only.
func (s *ReportService) GrantPremium(ctx context.Context, principal Principal, userID string, duration time.Duration) (user User, err error) {
	if s == nil || s.users == nil || s.subscriptions == nil {
		return user, fmt.Errorf("ReportService not configured")
	}

	logger := s.loggerWith(ctx, "GrantPremium", "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "premium grant failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "premium granted")
	}()

	if !principal.IsAdmin() {
		err = ErrForbidden
		return
	}
	if duration < 0 {
		err = &ValidationError{FieldErrors: map[string]string{"days": "days must be at least 0"}}
		return
	}

	user, err = s.users.GetUser(ctx, userID)
	if err != nil {
		return
	}

	now := s.now()
	sub := Subscription{
		ID:        s.idGenerator(),
		UserID:    user.ID,
		Plan:      premiumPlan,
		Status:    "active",
		StartedAt: now,
	}
	if duration > 0 {
		ends := now.Add(duration)
		sub.EndsAt = &ends
	}
	if err = s.subscriptions.CreateSubscription(ctx, sub); err != nil {
		return
	}

	user.IsPremium = true
	user.UpdatedAt = now
	user, err = s.users.UpdateUser(ctx, user)
	return
}

// EventStats summarises sales and attendance for an event owned by the caller (or any event for admins).
func (s *ReportService) EventStats(ctx context.Context, principal Principal, eventID string) (stats EventStats, err error) {
	if s == nil || s.events == nil || s.tickets == nil || s.transactions == nil {
		return stats, fmt.Errorf("ReportService not configured")
	}

	logger := s.loggerWith(ctx, "EventStats", "event_id", eventID, "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "stats computation failed", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	var event Event
	event, err = s.events.GetEvent(ctx, eventID)
	if err != nil {
		return
	}
	if !canManageEvent(&principal, event) {
		err = ErrForbidden
		return
	}

	if cached, ok := s.cache.Get(event.ID); ok {
		return cached, nil
	}

	stats = EventStats{EventID: event.ID}
	var valid int64
	if valid, err = s.tickets.CountTicketsByEvent(ctx, event.ID, TicketValid); err != nil {
		return
	}
	if stats.CheckedIn, err = s.tickets.CountTicketsByEvent(ctx, event.ID, TicketUsed); err != nil {
		return
	}
	if stats.Cancelled, err = s.tickets.CountTicketsByEvent(ctx, event.ID, TicketCancelled); err != nil {
		return
	}
	stats.TicketsSold = valid + stats.CheckedIn
	stats.RemainingCapacity = int64(event.Capacity) - stats.TicketsSold
	if stats.RemainingCapacity < 0 {
		stats.RemainingCapacity = 0
	}

	var totals TransactionTotals
	if totals, err = s.transactions.SumTransactions(ctx, event.ID, TransactionSuccess); err != nil {
		return
	}
	stats.GrossRevenue = totals.Gross
	stats.OrganizerRevenue = totals.OrganizerShare

	if s.analytics != nil {
		if stats.Views, err = s.analytics.CountAnalytics(ctx, event.ID, AnalyticsView); err != nil {
			return
		}
	}

	s.cache.Store(stats)
	return stats, nil
}
