package http

import (
	"time"

	"github.com/spotevents/spot/internal/application"
)

type geoDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func toGeoDTO(p *application.GeoPoint) *geoDTO {
	if p == nil {
		return nil
	}
	return &geoDTO{Lat: p.Lat, Lng: p.Lng}
}

func (g *geoDTO) toPoint() *application.GeoPoint {
	if g == nil {
		return nil
	}
	return &application.GeoPoint{Lat: g.Lat, Lng: g.Lng}
}

type userDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	IsPremium   bool      `json:"isPremium"`
	Interests   []string  `json:"interests"`
	Location    *geoDTO   `json:"location,omitempty"`
	Image       string    `json:"image,omitempty"`
	Bookmarks   []string  `json:"bookmarks"`
	HasPassword bool      `json:"hasPassword"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toUserDTO(u application.User) userDTO {
	return userDTO{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        string(u.Role),
		IsPremium:   u.IsPremium,
		Interests:   nonNilStrings(u.Interests),
		Location:    toGeoDTO(u.Location),
		Image:       u.ImageURL,
		Bookmarks:   nonNilStrings(u.Bookmarks),
		HasPassword: u.HasPassword,
		CreatedAt:   u.CreatedAt.UTC(),
		UpdatedAt:   u.UpdatedAt.UTC(),
	}
}

type eventLocationDTO struct {
	City string   `json:"city"`
	Lat  *float64 `json:"lat,omitempty"`
	Lng  *float64 `json:"lng,omitempty"`
}

type imageDTO struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

type eventDTO struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Location    eventLocationDTO `json:"location"`
	StartDate   time.Time        `json:"startDate"`
	EndDate     time.Time        `json:"endDate"`
	Image       *imageDTO        `json:"image,omitempty"`
	Price       int64            `json:"price"`
	Capacity    int              `json:"capacity"`
	OrganizerID string           `json:"organizerId"`
	IsPublished bool             `json:"isPublished"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func toEventDTO(e application.Event) eventDTO {
	dto := eventDTO{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Category:    e.Category,
		Location:    eventLocationDTO{City: e.City},
		StartDate:   e.StartDate.UTC(),
		EndDate:     e.EndDate.UTC(),
		Price:       e.Price,
		Capacity:    e.Capacity,
		OrganizerID: e.OrganizerID,
		IsPublished: e.IsPublished,
		CreatedAt:   e.CreatedAt.UTC(),
		UpdatedAt:   e.UpdatedAt.UTC(),
	}
	if e.Location != nil {
		lat, lng := e.Location.Lat, e.Location.Lng
		dto.Location.Lat, dto.Location.Lng = &lat, &lng
	}
	if e.Image.URL != "" {
		dto.Image = &imageDTO{URL: e.Image.URL, PublicID: e.Image.PublicID}
	}
	return dto
}

type ticketDTO struct {
	ID            string     `json:"id"`
	EventID       string     `json:"eventId"`
	OwnerID       string     `json:"ownerId"`
	TransactionID string     `json:"transactionId,omitempty"`
	TicketCode    string     `json:"ticketCode"`
	QRPayload     string     `json:"qrPayload"`
	Status        string     `json:"status"`
	CheckedInAt   *time.Time `json:"checkedInAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	Event         *eventDTO  `json:"event,omitempty"`
}

func toTicketDTO(t application.Ticket) ticketDTO {
	dto := ticketDTO{
		ID:            t.ID,
		EventID:       t.EventID,
		OwnerID:       t.OwnerID,
		TransactionID: t.TransactionID,
		TicketCode:    t.Code,
		QRPayload:     t.QRPayload,
		Status:        string(t.Status),
		CreatedAt:     t.CreatedAt.UTC(),
	}
	if t.CheckedInAt != nil {
		at := t.CheckedInAt.UTC()
		dto.CheckedInAt = &at
	}
	return dto
}

func toTicketViewDTO(v application.TicketView) ticketDTO {
	dto := toTicketDTO(v.Ticket)
	if v.Event != nil {
		event := toEventDTO(*v.Event)
		dto.Event = &event
	}
	return dto
}

type transactionDTO struct {
	ID              string     `json:"id"`
	PaymentIntentID string     `json:"paymentIntentId"`
	EventID         string     `json:"eventId"`
	OrganizerID     string     `json:"organizerId"`
	PayerID         string     `json:"payerId"`
	Quantity        int        `json:"quantity"`
	Amount          int64      `json:"amount"`
	PlatformFee     int64      `json:"platformFee"`
	OrganizerShare  int64      `json:"organizerShare"`
	Currency        string     `json:"currency"`
	Status          string     `json:"status"`
	RefundedAt      *time.Time `json:"refundedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func toTransactionDTO(t application.Transaction) transactionDTO {
	return transactionDTO{
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
		Status:          string(t.Status),
		RefundedAt:      t.RefundedAt,
		CreatedAt:       t.CreatedAt.UTC(),
	}
}

type pageDTO[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

func toPageDTO[S, T any](page application.Page[S], convert func(S) T) pageDTO[T] {
	items := make([]T, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, convert(item))
	}
	return pageDTO[T]{Items: items, Total: page.Total, Page: page.Page, Limit: page.Limit}
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
