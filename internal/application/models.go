package application

import (
	"io"
	"time"
)

// Role identifies the privilege tier of an account.
type Role string

const (
	RoleUser      Role = "user"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// Valid reports whether the role is one of the known tiers.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleOrganizer, RoleAdmin:
		return true
	}
	return false
}

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanOrganize reports whether the principal may manage events.
func (p Principal) CanOrganize() bool {
	return p.Role == RoleOrganizer || p.Role == RoleAdmin
}

// GeoPoint is a latitude/longitude pair.
type GeoPoint struct {
	Lat float64
	Lng float64
}

// User is the public view of an account.
type User struct {
	ID          string
	Name        string
	Email       string
	Role        Role
	IsPremium   bool
	Interests   []string
	Location    *GeoPoint
	ImageURL    string
	Bookmarks   []string
	GoogleID    string
	GithubID    string
	HasPassword bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserCredentials couples a user with the secrets stored for it.
type UserCredentials struct {
	User             User
	PasswordHash     string
	RefreshTokenHash string
}

// PendingUser holds a registration awaiting OTP confirmation.
type PendingUser struct {
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	Interests    []string
	ImageURL     string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// OTPPurpose distinguishes the flows a one-time code can complete.
type OTPPurpose string

const (
	OTPPurposeSignup         OTPPurpose = "signup"
	OTPPurposeForgotPassword OTPPurpose = "forgot-password"
)

// OTP is a hashed one-time code.
type OTP struct {
	ID        string
	Email     string
	Purpose   OTPPurpose
	CodeHash  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Image references an uploaded asset.
type Image struct {
	URL      string
	PublicID string
}

// Event is a ticketed happening listed in the catalog.
type Event struct {
	ID          string
	Title       string
	Description string
	Category    string
	City        string
	Location    *GeoPoint
	StartDate   time.Time
	EndDate     time.Time
	Image       Image
	Price       int64
	Capacity    int
	OrganizerID string
	IsPublished bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

const (
	TicketValid     TicketStatus = "valid"
	TicketUsed      TicketStatus = "used"
	TicketCancelled TicketStatus = "cancelled"
)

// Ticket is an admission right for one attendee.
type Ticket struct {
	ID            string
	EventID       string
	OwnerID       string
	TransactionID string
	Code          string
	QRPayload     string
	Status        TicketStatus
	CheckedInAt   *time.Time
	CreatedAt     time.Time
}

// TicketView decorates a ticket with a summary of its event.
type TicketView struct {
	Ticket Ticket
	Event  *Event
}

// CheckIn records a successful ticket scan.
type CheckIn struct {
	ID          string
	EventID     string
	TicketID    string
	ScannedBy   string
	Location    string
	CheckedInAt time.Time
}

// TransactionStatus is the settlement state of a payment.
type TransactionStatus string

const (
	TransactionSuccess  TransactionStatus = "success"
	TransactionRefunded TransactionStatus = "refunded"
)

// Transaction is a settled payment for a batch of tickets.
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
	Status          TransactionStatus
	RefundedAt      *time.Time
	CreatedAt       time.Time
}

// TransactionTotals aggregates settled amounts.
type TransactionTotals struct {
	Count          int64
	Gross          int64
	PlatformFees   int64
	OrganizerShare int64
}

// Subscription records a plan granted to a user.
type Subscription struct {
	ID        string
	UserID    string
	Plan      string
	Status    string
	StartedAt time.Time
	EndsAt    *time.Time
}

// Payout records money owed or paid to an organizer.
type Payout struct {
	ID          string
	OrganizerID string
	Amount      int64
	Status      string
	Note        string
	CreatedBy   string
	CreatedAt   time.Time
}

// AnalyticsKind labels an analytics row.
type AnalyticsKind string

const (
	AnalyticsView    AnalyticsKind = "view"
	AnalyticsClick   AnalyticsKind = "click"
	AnalyticsCheckIn AnalyticsKind = "checkin"
)

// AnalyticsEvent is an append-only usage record.
type AnalyticsEvent struct {
	ID        string
	EventID   string
	Kind      AnalyticsKind
	UserID    string
	CreatedAt time.Time
}

// PageRequest selects a window of a listing. Zero values fall back to defaults.
type PageRequest struct {
	Page  int
	Limit int
}

// Page is one window of a listing.
type Page[T any] struct {
	Items []T
	Total int64
	Page  int
	Limit int
}

// Upload is an image supplied by the caller.
type Upload struct {
	Filename string
	Content  io.Reader
}

// RegisterParams carries a signup request.
type RegisterParams struct {
	Name      string   `field:"name" validate:"required,max=60"`
	Email     string   `field:"email" validate:"required,email"`
	Password  string   `field:"password" validate:"required,min=6,max=128"`
	Role      Role     `field:"role" validate:"omitempty,oneof=user organizer"`
	Interests []string `field:"interests" validate:"max=20,dive,max=40"`
	Image     *Upload  `validate:"-"`
}

// AuthTokens is a freshly issued token pair.
type AuthTokens struct {
	AccessToken  string
	RefreshToken string
}

// AuthResult is returned by flows that sign a user in.
type AuthResult struct {
	User   User
	Tokens AuthTokens
}

// UpdateProfileParams carries the user-editable profile fields. Nil leaves a field unchanged.
type UpdateProfileParams struct {
	Name      *string
	Interests []string
	Location  *GeoPoint
	Image     *Upload
}

// SocialProfile is the identity returned by an OAuth provider.
type SocialProfile struct {
	Provider   string
	ProviderID string
	Email      string
	Name       string
	AvatarURL  string
}

// EventInput captures caller provided event fields.
type EventInput struct {
	Title       string    `field:"title" validate:"required,max=200"`
	Description string    `field:"description" validate:"required,max=5000"`
	Category    string    `field:"category" validate:"required,max=60"`
	City        string    `field:"city" validate:"required,max=120"`
	Location    *GeoPoint `validate:"-"`
	StartDate   time.Time `validate:"-"`
	EndDate     time.Time `validate:"-"`
	Price       int64     `field:"price" validate:"gte=0"`
	Capacity    int       `field:"capacity" validate:"gte=1,lte=100000"`
	IsPublished bool      `validate:"-"`
}

// EventPatch carries a partial event update. Nil fields are left unchanged.
type EventPatch struct {
	Title       *string
	Description *string
	Category    *string
	City        *string
	Location    *GeoPoint
	StartDate   *time.Time
	EndDate     *time.Time
	Price       *int64
	Capacity    *int
	IsPublished *bool
}

// EventFilter narrows catalog listings.
type EventFilter struct {
	Category    string
	City        string
	Query       string
	OrganizerID string
	Published   *bool
}

// CheckInParams carries a scan from the door.
type CheckInParams struct {
	TicketCode string `field:"ticketCode" validate:"required"`
	EventID    string `field:"eventId" validate:"required"`
	Location   string `field:"location" validate:"max=200"`
}

// CheckInResult describes an accepted scan.
type CheckInResult struct {
	Ticket  Ticket
	CheckIn CheckIn
}

// OrderParams carries a ticket purchase request.
type OrderParams struct {
	EventID  string `field:"eventId" validate:"required"`
	Quantity int    `field:"quantity" validate:"gte=1,lte=10"`
}

// OrderResult is returned by CreateOrder. Free orders carry the issued tickets instead of a client secret.
type OrderResult struct {
	ClientSecret    string
	PaymentIntentID string
	Amount          int64
	Currency        string
	Free            bool
	Tickets         []Ticket
}

// PaymentIntentRequest asks the gateway to open a payment.
type PaymentIntentRequest struct {
	Amount         int64
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
}

// PaymentIntent is the gateway's handle for an open payment.
type PaymentIntent struct {
	ID           string
	ClientSecret string
}

// Webhook event types handled by the payment service.
const (
	WebhookPaymentSucceeded = "payment_intent.succeeded"
	WebhookPaymentFailed    = "payment_intent.payment_failed"
	WebhookChargeRefunded   = "charge.refunded"
)

// WebhookEvent is a verified gateway notification.
type WebhookEvent struct {
	ID              string
	Type            string
	PaymentIntentID string
	Amount          int64
	Currency        string
	Metadata        map[string]string
	FailureMessage  string
}

// EventStats summarises sales and attendance for one event.
type EventStats struct {
	EventID           string
	TicketsSold       int64
	CheckedIn         int64
	Cancelled         int64
	RemainingCapacity int64
	GrossRevenue      int64
	OrganizerRevenue  int64
	Views             int64
}

// PaymentsReport is a page of transactions plus totals for settled payments.
type PaymentsReport struct {
	Transactions Page[Transaction]
	Totals       TransactionTotals
}

// PayoutParams carries an admin payout request.
type PayoutParams struct {
	OrganizerID string `field:"organizerId" validate:"required"`
	Amount      int64  `field:"amount" validate:"gt=0"`
	Note        string `field:"note" validate:"max=500"`
}

// Notification is a domain event fanned out to live listeners and the message bus.
type Notification struct {
	Type       string         `json:"type"`
	EventID    string         `json:"eventId"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// Notification types.
const (
	NotificationTicketCheckedIn = "ticket.checked_in"
	NotificationTicketsIssued   = "tickets.issued"
	NotificationPaymentRefunded = "payment.refunded"
)
