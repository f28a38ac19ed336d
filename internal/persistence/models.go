package persistence

import "time"

// GeoPoint is a stored latitude/longitude pair.
type GeoPoint struct {
	Lat float64
	Lng float64
}

// User represents an account together with its stored secrets.
type User struct {
	ID               string
	Name             string
	Email            string
	Role             string
	IsPremium        bool
	Interests        []string
	Location         *GeoPoint
	ImageURL         string
	Bookmarks        []string
	GoogleID         string
	GithubID         string
	PasswordHash     string
	RefreshTokenHash string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PendingUser is a registration awaiting OTP confirmation.
type PendingUser struct {
	Email        string
	Name         string
	PasswordHash string
	Role         string
	Interests    []string
	ImageURL     string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// OTP is a hashed one-time code.
type OTP struct {
	ID        string
	Email     string
	Purpose   string
	CodeHash  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Event represents a catalog entry.
type Event struct {
	ID            string
	Title         string
	Description   string
	Category      string
	City          string
	Location      *GeoPoint
	StartDate     time.Time
	EndDate       time.Time
	ImageURL      string
	ImagePublicID string
	Price         int64
	Capacity      int
	OrganizerID   string
	IsPublished   bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EventFilter narrows event listings. Empty fields match everything.
type EventFilter struct {
	Category    string
	City        string
	Query       string
	OrganizerID string
	Published   *bool
}

// Ticket represents an issued admission.
type Ticket struct {
	ID            string
	EventID       string
	OwnerID       string
	TransactionID string
	Code          string
	QRPayload     string
	Status        string
	CheckedInAt   *time.Time
	CreatedAt     time.Time
}

// CheckIn records a ticket scan.
type CheckIn struct {
	ID          string
	EventID     string
	TicketID    string
	ScannedBy   string
	Location    string
	CheckedInAt time.Time
}

// Transaction represents a settled payment.
type Transaction struct {
	ID              string
	PaymentIntentID string
	EventID         string
	OrganizerID     string
	PayerID         string
	Quantity        int
	Amount          int64
	PlatformFee     int64
	OrganizerShare  int64
	Currency        string
	Status          string
	RefundedAt      *time.Time
	CreatedAt       time.Time
}

// TransactionTotals aggregates transaction amounts.
type TransactionTotals struct {
	Count          int64
	Gross          int64
	PlatformFees   int64
	OrganizerShare int64
}

// Subscription records a plan grant.
type Subscription struct {
	ID        string
	UserID    string
	Plan      string
	Status    string
	StartedAt time.Time
	EndsAt    *time.Time
}

// Payout records an amount owed to an organizer.
type Payout struct {
	ID          string
	OrganizerID string
	Amount      int64
	Status      string
	Note        string
	CreatedBy   string
	CreatedAt   time.Time
}

// AnalyticsEvent is an append-only usage record.
type AnalyticsEvent struct {
	ID        string
	EventID   string
	Kind      string
	UserID    string
	CreatedAt time.Time
}
