package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Broadcaster fans domain notifications out to listeners.
type Broadcaster interface {
	Publish(ctx context.Context, notification Notification) error
}

// CheckInServiceDeps wires the collaborators of the check-in service.
type CheckInServiceDeps struct {
	Events      EventRepository
	Tickets     TicketRepository
	CheckIns    CheckInRepository
	Analytics   AnalyticsRepository
	Broadcaster Broadcaster
	Stats       StatsInvalidator
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// CheckInService admits ticket holders at the door.
type CheckInService struct {
	events      EventRepository
	tickets     TicketRepository
	checkIns    CheckInRepository
	analytics   AnalyticsRepository
	broadcaster Broadcaster
	stats       StatsInvalidator
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewCheckInService constructs a CheckInService with the provided dependencies.
func NewCheckInService(deps CheckInServiceDeps) *CheckInService {
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &CheckInService{
		events:      deps.Events,
		tickets:     deps.Tickets,
		checkIns:    deps.CheckIns,
		analytics:   deps.Analytics,
		broadcaster: deps.Broadcaster,
		stats:       deps.Stats,
		idGenerator: deps.IDGenerator,
		now:         deps.Now,
		logger:      defaultLogger(deps.Logger),
	}
}

func (s *CheckInService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CheckInService", operation, attrs...)
}

// CheckIn marks a valid ticket as used. Only the event's organizer (or an admin) may scan,
// and a ticket is admitted at most once even under concurrent scans.
func (s *CheckInService) CheckIn(ctx context.Context, principal Principal, params CheckInParams) (result CheckInResult, err error) {
	if s == nil || s.events == nil || s.tickets == nil || s.checkIns == nil {
		return result, fmt.Errorf("CheckInService not configured")
	}
	params.TicketCode = strings.TrimSpace(params.TicketCode)
	params.EventID = strings.TrimSpace(params.EventID)
	params.Location = strings.TrimSpace(params.Location)

	logger := s.loggerWith(ctx, "CheckIn", "event_id", params.EventID, "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "check-in rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("ticket_id", result.Ticket.ID).InfoContext(ctx, "ticket checked in")
	}()

	if principal.UserID == "" {
		err = ErrUnauthenticated
		return
	}
	if !principal.CanOrganize() {
		err = ErrForbidden
		return
	}
	if vErr := validateStruct(params); vErr.HasErrors() {
		err = vErr
		return
	}

	var event Event
	event, err = s.events.GetEvent(ctx, params.EventID)
	if err != nil {
		return
	}
	if !canManageEvent(&principal, event) {
		err = ErrForbidden
		return
	}

	var ticket Ticket
	ticket, err = s.tickets.GetTicketByCode(ctx, event.ID, params.TicketCode)
	if err != nil {
		return
	}
	if err = statusError(ticket.Status); err != nil {
		return
	}

	now := s.now()
	ticket, err = s.tickets.TransitionTicket(ctx, ticket.ID, TicketValid, TicketUsed, now)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			err = s.explainLostRace(ctx, ticket.ID)
		}
		return
	}

	checkIn := CheckIn{
		ID:          s.idGenerator(),
		EventID:     event.ID,
		TicketID:    ticket.ID,
		ScannedBy:   principal.UserID,
		Location:    params.Location,
		CheckedInAt: now,
	}
	if err = s.checkIns.CreateCheckIn(ctx, checkIn); err != nil {
		return
	}
	result = CheckInResult{Ticket: ticket, CheckIn: checkIn}

	if s.stats != nil {
		s.stats.Invalidate(event.ID)
	}
	if s.analytics != nil {
		row := AnalyticsEvent{ID: s.idGenerator(), EventID: event.ID, Kind: AnalyticsCheckIn, UserID: ticket.OwnerID, CreatedAt: now}
		if recErr := s.analytics.RecordAnalytics(ctx, row); recErr != nil {
			logger.WarnContext(ctx, "failed to record check-in analytics", "error", recErr)
		}
	}
	if s.broadcaster != nil {
		notification := Notification{
			Type:    NotificationTicketCheckedIn,
			EventID: event.ID,
			Payload: map[string]any{
				"ticketId":    ticket.ID,
				"ticketCode":  ticket.Code,
				"ownerId":     ticket.OwnerID,
				"scannedBy":   principal.UserID,
				"location":    params.Location,
				"checkedInAt": now.UTC(),
			},
			OccurredAt: now,
		}
		if pubErr := s.broadcaster.Publish(ctx, notification); pubErr != nil {
			logger.WarnContext(ctx, "failed to broadcast check-in", "error", pubErr)
		}
	}
	return result, nil
}

// explainLostRace re-reads a ticket whose conditional update matched nothing.
func (s *CheckInService) explainLostRace(ctx context.Context, ticketID string) error {
	current, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if statusErr := statusError(current.Status); statusErr != nil {
		return statusErr
	}
	return ErrConflict
}

func statusError(status TicketStatus) error {
	switch status {
	case TicketUsed:
		return ErrTicketUsed
	case TicketCancelled:
		return ErrTicketCancelled
	}
	return nil
}
