package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spotevents/spot/internal/application"
	"github.com/spotevents/spot/internal/persistence"
)

var (
	userCounter        uint64
	eventCounter       uint64
	ticketCounter      uint64
	transactionCounter uint64
)

// Whole seconds so the value survives millisecond storage unchanged.
var referenceTime = time.Date(2026, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture is a deterministic account.
type UserFixture struct {
	ID           string
	Name         string
	Email        string
	Role         string
	PasswordHash string
	Interests    []string
	CreatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	fixture := UserFixture{
		ID:           id,
		Name:         fmt.Sprintf("user%03d", idx),
		Email:        fmt.Sprintf("%s@example.com", id),
		Role:         string(application.RoleUser),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) { f.ID = id }
}

// WithUserName overrides the generated unique name.
func WithUserName(name string) UserOption {
	return func(f *UserFixture) { f.Name = name }
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) { f.Email = email }
}

// WithUserRole sets the role.
func WithUserRole(role application.Role) UserOption {
	return func(f *UserFixture) { f.Role = string(role) }
}

// WithUserCreatedAt sets the creation timestamp.
func WithUserCreatedAt(t time.Time) UserOption {
	return func(f *UserFixture) { f.CreatedAt = t }
}

// Persistence returns the fixture as a stored user.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Name:         f.Name,
		Email:        f.Email,
		Role:         f.Role,
		Interests:    append([]string(nil), f.Interests...),
		PasswordHash: f.PasswordHash,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.CreatedAt,
	}
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:          f.ID,
		Name:        f.Name,
		Email:       f.Email,
		Role:        application.Role(f.Role),
		Interests:   append([]string(nil), f.Interests...),
		HasPassword: f.PasswordHash != "",
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.CreatedAt,
	}
}

// Principal returns the caller identity for the fixture.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, Role: application.Role(f.Role)}
}

// ----------------------------- Event fixtures -----------------------------

// EventFixture is a deterministic catalog entry.
type EventFixture struct {
	ID          string
	Title       string
	Category    string
	City        string
	OrganizerID string
	StartDate   time.Time
	EndDate     time.Time
	Price       int64
	Capacity    int
	IsPublished bool
	CreatedAt   time.Time
}

// EventOption configures the generated event fixture.
type EventOption func(*EventFixture)

// NewEventFixture returns a published event a week after ReferenceTime.
func NewEventFixture(opts ...EventOption) EventFixture {
	idx := atomic.AddUint64(&eventCounter, 1)
	start := referenceTime.Add(7*24*time.Hour + time.Duration(idx)*time.Hour)
	fixture := EventFixture{
		ID:          fmt.Sprintf("event-%03d", idx),
		Title:       fmt.Sprintf("Event %03d", idx),
		Category:    "music",
		City:        "Lisbon",
		OrganizerID: "organizer-001",
		StartDate:   start,
		EndDate:     start.Add(3 * time.Hour),
		Price:       2500,
		Capacity:    100,
		IsPublished: true,
		CreatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEventID overrides the generated event ID.
func WithEventID(id string) EventOption {
	return func(f *EventFixture) { f.ID = id }
}

// WithEventTitle overrides the title.
func WithEventTitle(title string) EventOption {
	return func(f *EventFixture) { f.Title = title }
}

// WithEventCategory overrides the category.
func WithEventCategory(category string) EventOption {
	return func(f *EventFixture) { f.Category = category }
}

// WithEventCity overrides the city.
func WithEventCity(city string) EventOption {
	return func(f *EventFixture) { f.City = city }
}

// WithEventOrganizer sets the owning organizer.
func WithEventOrganizer(id string) EventOption {
	return func(f *EventFixture) { f.OrganizerID = id }
}

// WithEventStart moves the event, keeping its duration.
func WithEventStart(start time.Time) EventOption {
	return func(f *EventFixture) {
		f.EndDate = start.Add(f.EndDate.Sub(f.StartDate))
		f.StartDate = start
	}
}

// WithEventPrice sets the ticket price in minor units.
func WithEventPrice(price int64) EventOption {
	return func(f *EventFixture) { f.Price = price }
}

// WithEventCapacity sets the ticket capacity.
func WithEventCapacity(capacity int) EventOption {
	return func(f *EventFixture) { f.Capacity = capacity }
}

// WithEventPublished sets the visibility flag.
func WithEventPublished(published bool) EventOption {
	return func(f *EventFixture) { f.IsPublished = published }
}

// Persistence returns the fixture as a stored event.
func (f EventFixture) Persistence() persistence.Event {
	return persistence.Event{
		ID:          f.ID,
		Title:       f.Title,
		Category:    f.Category,
		City:        f.City,
		StartDate:   f.StartDate,
		EndDate:     f.EndDate,
		Price:       f.Price,
		Capacity:    f.Capacity,
		OrganizerID: f.OrganizerID,
		IsPublished: f.IsPublished,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.CreatedAt,
	}
}

// Application returns the fixture as an application.Event value.
func (f EventFixture) Application() application.Event {
	return application.Event{
		ID:          f.ID,
		Title:       f.Title,
		Category:    f.Category,
		City:        f.City,
		StartDate:   f.StartDate,
		EndDate:     f.EndDate,
		Price:       f.Price,
		Capacity:    f.Capacity,
		OrganizerID: f.OrganizerID,
		IsPublished: f.IsPublished,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.CreatedAt,
	}
}

// ----------------------------- Ticket fixtures -----------------------------

// TicketFixture is a deterministic issued ticket.
type TicketFixture struct {
	ID            string
	EventID       string
	OwnerID       string
	TransactionID string
	Code          string
	Status        string
	CreatedAt     time.Time
}

// TicketOption configures the generated ticket fixture.
type TicketOption func(*TicketFixture)

// NewTicketFixture returns a valid ticket.
func NewTicketFixture(opts ...TicketOption) TicketFixture {
	idx := atomic.AddUint64(&ticketCounter, 1)
	fixture := TicketFixture{
		ID:            fmt.Sprintf("ticket-%03d", idx),
		EventID:       "event-001",
		OwnerID:       "user-001",
		TransactionID: "tx-001",
		Code:          fmt.Sprintf("code%03d", idx),
		Status:        string(application.TicketValid),
		CreatedAt:     referenceTime.Add(time.Duration(idx) * time.Second),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithTicketEvent sets the event the ticket admits to.
func WithTicketEvent(id string) TicketOption {
	return func(f *TicketFixture) { f.EventID = id }
}

// WithTicketOwner sets the holder.
func WithTicketOwner(id string) TicketOption {
	return func(f *TicketFixture) { f.OwnerID = id }
}

// WithTicketTransaction sets the payment that issued the ticket.
func WithTicketTransaction(id string) TicketOption {
	return func(f *TicketFixture) { f.TransactionID = id }
}

// WithTicketStatus sets the lifecycle status.
func WithTicketStatus(status application.TicketStatus) TicketOption {
	return func(f *TicketFixture) { f.Status = string(status) }
}

// WithTicketCreatedAt sets the issue time.
func WithTicketCreatedAt(t time.Time) TicketOption {
	return func(f *TicketFixture) { f.CreatedAt = t }
}

// Persistence returns the fixture as a stored ticket.
func (f TicketFixture) Persistence() persistence.Ticket {
	return persistence.Ticket{
		ID:            f.ID,
		EventID:       f.EventID,
		OwnerID:       f.OwnerID,
		TransactionID: f.TransactionID,
		Code:          f.Code,
		QRPayload:     fmt.Sprintf(`{"ticketId":%q,"eventId":%q,"code":%q}`, f.ID, f.EventID, f.Code),
		Status:        f.Status,
		CreatedAt:     f.CreatedAt,
	}
}

// --------------------------- Transaction fixtures ---------------------------

// TransactionFixture is a deterministic settled payment.
type TransactionFixture struct {
	ID              string
	PaymentIntentID string
	EventID         string
	OrganizerID     string
	PayerID         string
	Quantity        int
	Amount          int64
	CreatedAt       time.Time
}

// TransactionOption configures the generated transaction fixture.
type TransactionOption func(*TransactionFixture)

// NewTransactionFixture returns a successful single-ticket payment.
func NewTransactionFixture(opts ...TransactionOption) TransactionFixture {
	idx := atomic.AddUint64(&transactionCounter, 1)
	fixture := TransactionFixture{
		ID:              fmt.Sprintf("tx-%03d", idx),
		PaymentIntentID: fmt.Sprintf("pi_%03d", idx),
		EventID:         "event-001",
		OrganizerID:     "organizer-001",
		PayerID:         "user-001",
		Quantity:        1,
		Amount:          2500,
		CreatedAt:       referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithTransactionEvent sets the event paid for.
func WithTransactionEvent(id string) TransactionOption {
	return func(f *TransactionFixture) { f.EventID = id }
}

// WithTransactionIntent sets the gateway payment intent ID.
func WithTransactionIntent(id string) TransactionOption {
	return func(f *TransactionFixture) { f.PaymentIntentID = id }
}

// WithTransactionAmount sets the gross amount.
func WithTransactionAmount(amount int64) TransactionOption {
	return func(f *TransactionFixture) { f.Amount = amount }
}

// Persistence returns the fixture as a stored transaction with the platform
// fee split applied.
func (f TransactionFixture) Persistence() persistence.Transaction {
	fee := application.PlatformFee(f.Amount)
	return persistence.Transaction{
		ID:              f.ID,
		PaymentIntentID: f.PaymentIntentID,
		EventID:         f.EventID,
		OrganizerID:     f.OrganizerID,
		PayerID:         f.PayerID,
		Quantity:        f.Quantity,
		Amount:          f.Amount,
		PlatformFee:     fee,
		OrganizerShare:  f.Amount - fee,
		Currency:        "usd",
		Status:          string(application.TransactionSuccess),
		CreatedAt:       f.CreatedAt,
	}
}
