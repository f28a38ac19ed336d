package mongo

import (
	"strings"
	"time"

	"github.com/spotevents/spot/internal/persistence"
)

type geoDoc struct {
	Lat float64 `bson:"lat"`
	Lng float64 `bson:"lng"`
}

func toGeoDoc(p *persistence.GeoPoint) *geoDoc {
	if p == nil {
		return nil
	}
	return &geoDoc{Lat: p.Lat, Lng: p.Lng}
}

func (g *geoDoc) model() *persistence.GeoPoint {
	if g == nil {
		return nil
	}
	return &persistence.GeoPoint{Lat: g.Lat, Lng: g.Lng}
}

type userDoc struct {
	ID               string    `bson:"_id"`
	Name             string    `bson:"name"`
	Email            string    `bson:"email"`
	Role             string    `bson:"role"`
	IsPremium        bool      `bson:"is_premium"`
	Interests        []string  `bson:"interests"`
	Location         *geoDoc   `bson:"location,omitempty"`
	ImageURL         string    `bson:"image_url"`
	Bookmarks        []string  `bson:"bookmarks"`
	GoogleID         string    `bson:"google_id,omitempty"`
	GithubID         string    `bson:"github_id,omitempty"`
	PasswordHash     string    `bson:"password_hash"`
	RefreshTokenHash string    `bson:"refresh_token_hash"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func toUserDoc(u persistence.User) userDoc {
	return userDoc{
		ID:               u.ID,
		Name:             u.Name,
		Email:            normalizeEmail(u.Email),
		Role:             u.Role,
		IsPremium:        u.IsPremium,
		Interests:        nonNil(u.Interests),
		Location:         toGeoDoc(u.Location),
		ImageURL:         u.ImageURL,
		Bookmarks:        nonNil(dedupe(u.Bookmarks)),
		GoogleID:         u.GoogleID,
		GithubID:         u.GithubID,
		PasswordHash:     u.PasswordHash,
		RefreshTokenHash: u.RefreshTokenHash,
		CreatedAt:        u.CreatedAt.UTC(),
		UpdatedAt:        u.UpdatedAt.UTC(),
	}
}

func (d userDoc) model() persistence.User {
	return persistence.User{
		ID:               d.ID,
		Name:             d.Name,
		Email:            d.Email,
		Role:             d.Role,
		IsPremium:        d.IsPremium,
		Interests:        d.Interests,
		Location:         d.Location.model(),
		ImageURL:         d.ImageURL,
		Bookmarks:        d.Bookmarks,
		GoogleID:         d.GoogleID,
		GithubID:         d.GithubID,
		PasswordHash:     d.PasswordHash,
		RefreshTokenHash: d.RefreshTokenHash,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

type pendingUserDoc struct {
	Email        string    `bson:"_id"`
	Name         string    `bson:"name"`
	PasswordHash string    `bson:"password_hash"`
	Role         string    `bson:"role"`
	Interests    []string  `bson:"interests"`
	ImageURL     string    `bson:"image_url"`
	CreatedAt    time.Time `bson:"created_at"`
	ExpiresAt    time.Time `bson:"expires_at"`
}

func (d pendingUserDoc) model() persistence.PendingUser {
	return persistence.PendingUser{
		Email:        d.Email,
		Name:         d.Name,
		PasswordHash: d.PasswordHash,
		Role:         d.Role,
		Interests:    d.Interests,
		ImageURL:     d.ImageURL,
		CreatedAt:    d.CreatedAt,
		ExpiresAt:    d.ExpiresAt,
	}
}

type otpDoc struct {
	ID        string    `bson:"_id"`
	Email     string    `bson:"email"`
	Purpose   string    `bson:"purpose"`
	CodeHash  string    `bson:"code_hash"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

type eventDoc struct {
	ID            string    `bson:"_id"`
	Title         string    `bson:"title"`
	Description   string    `bson:"description"`
	Category      string    `bson:"category"`
	City          string    `bson:"city"`
	Location      *geoDoc   `bson:"location,omitempty"`
	StartDate     time.Time `bson:"start_date"`
	EndDate       time.Time `bson:"end_date"`
	ImageURL      string    `bson:"image_url"`
	ImagePublicID string    `bson:"image_public_id"`
	Price         int64     `bson:"price"`
	Capacity      int       `bson:"capacity"`
	OrganizerID   string    `bson:"organizer_id"`
	IsPublished   bool      `bson:"is_published"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func toEventDoc(e persistence.Event) eventDoc {
	return eventDoc{
		ID:            e.ID,
		Title:         e.Title,
		Description:   e.Description,
		Category:      e.Category,
		City:          e.City,
		Location:      toGeoDoc(e.Location),
		StartDate:     e.StartDate.UTC(),
		EndDate:       e.EndDate.UTC(),
		ImageURL:      e.ImageURL,
		ImagePublicID: e.ImagePublicID,
		Price:         e.Price,
		Capacity:      e.Capacity,
		OrganizerID:   e.OrganizerID,
		IsPublished:   e.IsPublished,
		CreatedAt:     e.CreatedAt.UTC(),
		UpdatedAt:     e.UpdatedAt.UTC(),
	}
}

func (d eventDoc) model() persistence.Event {
	return persistence.Event{
		ID:            d.ID,
		Title:         d.Title,
		Description:   d.Description,
		Category:      d.Category,
		City:          d.City,
		Location:      d.Location.model(),
		StartDate:     d.StartDate,
		EndDate:       d.EndDate,
		ImageURL:      d.ImageURL,
		ImagePublicID: d.ImagePublicID,
		Price:         d.Price,
		Capacity:      d.Capacity,
		OrganizerID:   d.OrganizerID,
		IsPublished:   d.IsPublished,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

type ticketDoc struct {
	ID            string     `bson:"_id"`
	EventID       string     `bson:"event_id"`
	OwnerID       string     `bson:"owner_id"`
	TransactionID string     `bson:"transaction_id"`
	Code          string     `bson:"code"`
	QRPayload     string     `bson:"qr_payload"`
	Status        string     `bson:"status"`
	CheckedInAt   *time.Time `bson:"checked_in_at,omitempty"`
	CreatedAt     time.Time  `bson:"created_at"`
}

func toTicketDoc(t persistence.Ticket) ticketDoc {
	return ticketDoc{
		ID:            t.ID,
		EventID:       t.EventID,
		OwnerID:       t.OwnerID,
		TransactionID: t.TransactionID,
		Code:          t.Code,
		QRPayload:     t.QRPayload,
		Status:        t.Status,
		CheckedInAt:   utcPtr(t.CheckedInAt),
		CreatedAt:     t.CreatedAt.UTC(),
	}
}

func (d ticketDoc) model() persistence.Ticket {
	return persistence.Ticket{
		ID:            d.ID,
		EventID:       d.EventID,
		OwnerID:       d.OwnerID,
		TransactionID: d.TransactionID,
		Code:          d.Code,
		QRPayload:     d.QRPayload,
		Status:        d.Status,
		CheckedInAt:   d.CheckedInAt,
		CreatedAt:     d.CreatedAt,
	}
}

type transactionDoc struct {
	ID              string     `bson:"_id"`
	PaymentIntentID string     `bson:"payment_intent_id"`
	EventID         string     `bson:"event_id"`
	OrganizerID     string     `bson:"organizer_id"`
	PayerID         string     `bson:"payer_id"`
	Quantity        int        `bson:"quantity"`
	Amount          int64      `bson:"amount"`
	PlatformFee     int64      `bson:"platform_fee"`
	OrganizerShare  int64      `bson:"organizer_share"`
	Currency        string     `bson:"currency"`
	Status          string     `bson:"status"`
	RefundedAt      *time.Time `bson:"refunded_at,omitempty"`
	CreatedAt       time.Time  `bson:"created_at"`
}

func toTransactionDoc(t persistence.Transaction) transactionDoc {
	return transactionDoc{
		ID:              t.ID,
		PaymentIntentID: t.PaymentIntentID,
		EventID:         t.EventID,
		OrganizerID:     t.OrganizerID,
		PayerID:         t.PayerID,
		Quantity:        t.Quantity,
		Amount:          t.Amount,
		PlatformFee:     t.PlatformFee,
		OrganizerShare:  t.OrganizerShare,
		Currency:        t.Currency,
		Status:          t.Status,
		RefundedAt:      utcPtr(t.RefundedAt),
		CreatedAt:       t.CreatedAt.UTC(),
	}
}

func (d transactionDoc) model() persistence.Transaction {
	return persistence.Transaction{
		ID:              d.ID,
		PaymentIntentID: d.PaymentIntentID,
		EventID:         d.EventID,
		OrganizerID:     d.OrganizerID,
		PayerID:         d.PayerID,
		Quantity:        d.Quantity,
		Amount:          d.Amount,
		PlatformFee:     d.PlatformFee,
		OrganizerShare:  d.OrganizerShare,
		Currency:        d.Currency,
		Status:          d.Status,
		RefundedAt:      d.RefundedAt,
		CreatedAt:       d.CreatedAt,
	}
}

type checkInDoc struct {
	ID          string    `bson:"_id"`
	EventID     string    `bson:"event_id"`
	TicketID    string    `bson:"ticket_id"`
	ScannedBy   string    `bson:"scanned_by"`
	Location    string    `bson:"location"`
	CheckedInAt time.Time `bson:"checked_in_at"`
}

type payoutDoc struct {
	ID          string    `bson:"_id"`
	OrganizerID string    `bson:"organizer_id"`
	Amount      int64     `bson:"amount"`
	Status      string    `bson:"status"`
	Note        string    `bson:"note"`
	CreatedBy   string    `bson:"created_by"`
	CreatedAt   time.Time `bson:"created_at"`
}

type subscriptionDoc struct {
	ID        string     `bson:"_id"`
	UserID    string     `bson:"user_id"`
	Plan      string     `bson:"plan"`
	Status    string     `bson:"status"`
	StartedAt time.Time  `bson:"started_at"`
	EndsAt    *time.Time `bson:"ends_at,omitempty"`
}

type analyticsDoc struct {
	ID        string    `bson:"_id"`
	EventID   string    `bson:"event_id"`
	Kind      string    `bson:"kind"`
	UserID    string    `bson:"user_id"`
	CreatedAt time.Time `bson:"created_at"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
