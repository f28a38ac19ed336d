package application

import (
	"context"
	"time"
)

// UserRepository captures the account persistence operations used by the services.
type UserRepository interface {
	CreateUser(ctx context.Context, creds UserCredentials) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetCredentials(ctx context.Context, id string) (UserCredentials, error)
	GetCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
	GetUserByName(ctx context.Context, name string) (User, error)
	GetUserByProvider(ctx context.Context, provider, providerID string) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	SetRefreshTokenHash(ctx context.Context, id, hash string) error
	ClearRefreshTokenByHash(ctx context.Context, hash string) error
	// UpdateRole moves the user from one role to another and reports ErrConflict when
	// the stored role no longer equals from.
	UpdateRole(ctx context.Context, id string, from, to Role, updatedAt time.Time) error
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
	LatestOTP(ctx context.Context, email string, purpose OTPPurpose) (OTP, error)
	DeleteOTPs(ctx context.Context, email string, purpose OTPPurpose) error
	// ConsumeOTP deletes the code and reports ErrNotFound when another caller consumed it first.
	ConsumeOTP(ctx context.Context, id string) error
}

// EventRepository stores catalog entries.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	UpdateEvent(ctx context.Context, event Event) (Event, error)
	DeleteEvent(ctx context.Context, id string) error
	ListEvents(ctx context.Context, filter EventFilter, offset, limit int) ([]Event, int64, error)
}

// TicketRepository stores issued tickets.
type TicketRepository interface {
	CreateTickets(ctx context.Context, tickets []Ticket) error
	GetTicket(ctx context.Context, id string) (Ticket, error)
	GetTicketByCode(ctx context.Context, eventID, code string) (Ticket, error)
	ListTicketsByOwner(ctx context.Context, ownerID string) ([]Ticket, error)
	CountTicketsByEvent(ctx context.Context, eventID string, statuses ...TicketStatus) (int64, error)
	CountTicketsByTransaction(ctx context.Context, transactionID string) (int64, error)
	// TransitionTicket applies a conditional status change and reports ErrConflict when
	// the stored status no longer equals from.
	TransitionTicket(ctx context.Context, id string, from, to TicketStatus, at time.Time) (Ticket, error)
	CancelTransactionTickets(ctx context.Context, transactionID string) (int64, error)
}

// CheckInRepository appends check-in records.
type CheckInRepository interface {
	CreateCheckIn(ctx context.Context, checkIn CheckIn) error
}

// TransactionRepository stores settled payments.
type TransactionRepository interface {
	// CreateTransaction reports ErrAlreadyExists when the payment intent is already recorded.
	CreateTransaction(ctx context.Context, tx Transaction) error
	GetTransactionByIntent(ctx context.Context, paymentIntentID string) (Transaction, error)
	MarkRefunded(ctx context.Context, paymentIntentID string, at time.Time) (Transaction, error)
	ListTransactions(ctx context.Context, offset, limit int) ([]Transaction, int64, error)
	SumTransactions(ctx context.Context, eventID string, status TransactionStatus) (TransactionTotals, error)
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
	CountAnalytics(ctx context.Context, eventID string, kind AnalyticsKind) (int64, error)
}

const (
	defaultPageSize = 10
	maxPageSize     = 50
)

func normalizePage(req PageRequest) (page, limit, offset int) {
	page = req.Page
	if page < 1 {
		page = 1
	}
	limit = req.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit, (page - 1) * limit
}
