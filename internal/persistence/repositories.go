package persistence

import (
	"context"
	"time"
)

// UserRepository stores accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByName(ctx context.Context, name string) (User, error)
	GetUserByProvider(ctx context.Context, provider, providerID string) (User, error)
	// UpdateProfile writes the editable profile columns. Role, password and refresh
	// token have dedicated operations and are left untouched.
	UpdateProfile(ctx context.Context, user User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	SetRefreshTokenHash(ctx context.Context, id, hash string) error
	ClearRefreshTokenByHash(ctx context.Context, hash string) error
	UpdateRole(ctx context.Context, id, from, to string, updatedAt time.Time) error
	AddBookmark(ctx context.Context, userID, eventID string) error
	RemoveBookmark(ctx context.Context, userID, eventID string) error
	ListUsers(ctx context.Context, offset, limit int) ([]User, int64, error)
}

// PendingUserRepository stores registrations awaiting verification.
type PendingUserRepository interface {
	UpsertPendingUser(ctx context.Context, pending PendingUser) error
	GetPendingUser(ctx context.Context, email string) (PendingUser, error)
	DeletePendingUser(ctx context.Context, email string) error
}

// OTPRepository stores hashed one-time codes.
type OTPRepository interface {
	CreateOTP(ctx context.Context, otp OTP) error
	LatestOTP(ctx context.Context, email, purpose string) (OTP, error)
	DeleteOTPs(ctx context.Context, email, purpose string) error
	ConsumeOTP(ctx context.Context, id string) error
}

// EventRepository stores catalog entries.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) error
	GetEvent(ctx context.Context, id string) (Event, error)
	UpdateEvent(ctx context.Context, event Event) error
	DeleteEvent(ctx context.Context, id string) error
	ListEvents(ctx context.Context, filter EventFilter, offset, limit int) ([]Event, int64, error)
}

// TicketRepository stores issued tickets.
type TicketRepository interface {
	CreateTickets(ctx context.Context, tickets []Ticket) error
	GetTicket(ctx context.Context, id string) (Ticket, error)
	GetTicketByCode(ctx context.Context, eventID, code string) (Ticket, error)
	ListTicketsByOwner(ctx context.Context, ownerID string) ([]Ticket, error)
	CountTicketsByEvent(ctx context.Context, eventID string, statuses ...string) (int64, error)
	CountTicketsByTransaction(ctx context.Context, transactionID string) (int64, error)
	TransitionTicket(ctx context.Context, id, from, to string, at time.Time) (Ticket, error)
	CancelTransactionTickets(ctx context.Context, transactionID string) (int64, error)
}

// CheckInRepository appends check-in records.
type CheckInRepository interface {
	CreateCheckIn(ctx context.Context, checkIn CheckIn) error
}

// TransactionRepository stores settled payments keyed by payment intent.
type TransactionRepository interface {
	CreateTransaction(ctx context.Context, tx Transaction) error
	GetTransactionByIntent(ctx context.Context, paymentIntentID string) (Transaction, error)
	MarkRefunded(ctx context.Context, paymentIntentID string, at time.Time) (Transaction, error)
	ListTransactions(ctx context.Context, offset, limit int) ([]Transaction, int64, error)
	SumTransactions(ctx context.Context, eventID, status string) (TransactionTotals, error)
}

// PayoutRepository stores organizer payouts.
type PayoutRepository interface {
	CreatePayout(ctx context.Context, payout Payout) error
}

// SubscriptionRepository stores plan grants.
type SubscriptionRepository interface {
	CreateSubscription(ctx context.Context, subscription Subscription) error
}

// AnalyticsRepository stores usage records.
type AnalyticsRepository interface {
	RecordAnalytics(ctx context.Context, event AnalyticsEvent) error
	CountAnalytics(ctx context.Context, eventID, kind string) (int64, error)
}

// Repositories bundles one backend's implementations of every repository.
type Repositories struct {
	Users         UserRepository
	PendingUsers  PendingUserRepository
	OTPs          OTPRepository
	Events        EventRepository
	Tickets       TicketRepository
	CheckIns      CheckInRepository
	Transactions  TransactionRepository
	Payouts       PayoutRepository
	Subscriptions SubscriptionRepository
	Analytics     AnalyticsRepository
}
