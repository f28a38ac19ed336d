package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// QREncoder renders a payload as a PNG QR code.
type QREncoder interface {
	EncodePNG(content string) ([]byte, error)
}

// TicketService exposes read access to issued tickets.
type TicketService struct {
	tickets TicketRepository
	events  EventRepository
	qr      QREncoder
	logger  *slog.Logger
}

// NewTicketService constructs a TicketService.
func NewTicketService(tickets TicketRepository, events EventRepository, qr QREncoder) *TicketService {
	return NewTicketServiceWithLogger(tickets, events, qr, nil)
}

// NewTicketServiceWithLogger constructs a TicketService with a specified logger.
func NewTicketServiceWithLogger(tickets TicketRepository, events EventRepository, qr QREncoder, logger *slog.Logger) *TicketService {
	return &TicketService{tickets: tickets, events: events, qr: qr, logger: defaultLogger(logger)}
}

func (s *TicketService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "TicketService", operation, attrs...)
}

// ListMine returns the caller's tickets, newest first, each with its event when it still exists.
func (s *TicketService) ListMine(ctx context.Context, principal Principal) ([]TicketView, error) {
	if s == nil || s.tickets == nil {
		return nil, fmt.Errorf("TicketService not configured")
	}
	if principal.UserID == "" {
		return nil, ErrUnauthenticated
	}
	logger := s.loggerWith(ctx, "ListMine", "principal_id", principal.UserID)

	tickets, err := s.tickets.ListTicketsByOwner(ctx, principal.UserID)
	if err != nil {
		logger.ErrorContext(ctx, "ticket listing failed", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}

	events := make(map[string]*Event)
	views := make([]TicketView, 0, len(tickets))
	for _, ticket := range tickets {
		event, seen := events[ticket.EventID]
		if !seen && s.events != nil {
			loaded, lookupErr := s.events.GetEvent(ctx, ticket.EventID)
			switch {
			case lookupErr == nil:
				event = &loaded
			case errors.Is(lookupErr, ErrNotFound):
			default:
				logger.ErrorContext(ctx, "event lookup failed", "event_id", ticket.EventID, "error", lookupErr)
				return nil, lookupErr
			}
			events[ticket.EventID] = event
		}
		views = append(views, TicketView{Ticket: ticket, Event: event})
	}
	return views, nil
}

// Get returns a ticket to its owner, the event's organizer or an admin.
func (s *TicketService) Get(ctx context.Context, principal Principal, id string) (TicketView, error) {
	if s == nil || s.tickets == nil {
		return TicketView{}, fmt.Errorf("TicketService not configured")
	}
	if principal.UserID == "" {
		return TicketView{}, ErrUnauthenticated
	}

	ticket, err := s.tickets.GetTicket(ctx, id)
	if err != nil {
		return TicketView{}, err
	}

	var event *Event
	if s.events != nil {
		loaded, lookupErr := s.events.GetEvent(ctx, ticket.EventID)
		switch {
		case lookupErr == nil:
			event = &loaded
		case !errors.Is(lookupErr, ErrNotFound):
			return TicketView{}, lookupErr
		}
	}

	if !canViewTicket(principal, ticket, event) {
		s.loggerWith(ctx, "Get", "ticket_id", id, "principal_id", principal.UserID).
			WarnContext(ctx, "ticket access denied")
		return TicketView{}, ErrForbidden
	}
	return TicketView{Ticket: ticket, Event: event}, nil
}

// QR renders the ticket's QR payload as a PNG, with the same access rule as Get.
func (s *TicketService) QR(ctx context.Context, principal Principal, id string) ([]byte, error) {
	if s == nil || s.qr == nil {
		return nil, fmt.Errorf("TicketService not configured")
	}
	view, err := s.Get(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	png, err := s.qr.EncodePNG(view.Ticket.QRPayload)
	if err != nil {
		s.loggerWith(ctx, "QR", "ticket_id", id).ErrorContext(ctx, "qr rendering failed", "error", err)
		return nil, fmt.Errorf("render qr: %w", err)
	}
	return png, nil
}

func canViewTicket(principal Principal, ticket Ticket, event *Event) bool {
	if principal.IsAdmin() || principal.UserID == ticket.OwnerID {
		return true
	}
	return event != nil && event.OrganizerID == principal.UserID
}
