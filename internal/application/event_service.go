package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// EventServiceDeps wires the collaborators of the event service.
type EventServiceDeps struct {
	Events      EventRepository
	Tickets     TicketRepository
	Analytics   AnalyticsRepository
	Images      ImageStore
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// EventService manages the event catalog.
type EventService struct {
	events      EventRepository
	tickets     TicketRepository
	analytics   AnalyticsRepository
	images      ImageStore
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewEventService constructs an EventService with the provided dependencies.
func NewEventService(deps EventServiceDeps) *EventService {
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &EventService{
		events:      deps.Events,
		tickets:     deps.Tickets,
		analytics:   deps.Analytics,
		images:      deps.Images,
		idGenerator: deps.IDGenerator,
		now:         deps.Now,
		logger:      defaultLogger(deps.Logger),
	}
}

func (s *EventService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EventService", operation, attrs...)
}

// CreateEventParams wraps the data required to create an event.
type CreateEventParams struct {
	Principal Principal
	Input     EventInput
	Image     *Upload
}

// UpdateEventParams wraps the data required to update an event.
type UpdateEventParams struct {
	Principal Principal
	EventID   string
	Patch     EventPatch
	Image     *Upload
}

// Create validates input and stores a new event owned by the caller.
func (s *EventService) Create(ctx context.Context, params CreateEventParams) (event Event, err error) {
	if s == nil || s.events == nil {
		return Event{}, fmt.Errorf("EventService not configured")
	}

	logger := s.loggerWith(ctx, "Create", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "event creation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("event_id", event.ID).InfoContext(ctx, "event created")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthenticated
		return
	}
	if !params.Principal.CanOrganize() {
		err = ErrForbidden
		return
	}

	input := normalizeEventInput(params.Input)
	if vErr := s.validateEvent(input); vErr.HasErrors() {
		err = vErr
		return
	}

	var image Image
	if params.Image != nil {
		if image, err = s.upload(ctx, *params.Image); err != nil {
			return
		}
	}

	now := s.now()
	event = Event{
		ID:          s.idGenerator(),
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		City:        input.City,
		Location:    input.Location,
		StartDate:   input.StartDate.UTC(),
		EndDate:     input.EndDate.UTC(),
		Image:       image,
		Price:       input.Price,
		Capacity:    input.Capacity,
		OrganizerID: params.Principal.UserID,
		IsPublished: input.IsPublished,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	event, err = s.events.CreateEvent(ctx, event)
	if err != nil && image.PublicID != "" {
		s.deleteImage(ctx, logger, image.PublicID)
	}
	return
}

// Get returns an event. Unpublished events are only visible to their organizer and admins;
// everyone else receives ErrNotFound. Each successful read records a view.
func (s *EventService) Get(ctx context.Context, viewer *Principal, id string) (Event, error) {
	if s == nil || s.events == nil {
		return Event{}, fmt.Errorf("EventService not configured")
	}
	logger := s.loggerWith(ctx, "Get", "event_id", id)

	event, err := s.events.GetEvent(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.ErrorContext(ctx, "event lookup failed", "error", err, "error_kind", ErrorKind(err))
		}
		return Event{}, err
	}
	if !event.IsPublished && !canManageEvent(viewer, event) {
		return Event{}, ErrNotFound
	}

	if s.analytics != nil {
		row := AnalyticsEvent{ID: s.idGenerator(), EventID: event.ID, Kind: AnalyticsView, CreatedAt: s.now()}
		if viewer != nil {
			row.UserID = viewer.UserID
		}
		if recErr := s.analytics.RecordAnalytics(ctx, row); recErr != nil {
			logger.WarnContext(ctx, "failed to record view", "error", recErr)
		}
	}
	return event, nil
}

// List returns published events, newest start date first.
func (s *EventService) List(ctx context.Context, filter EventFilter, page PageRequest) (Page[Event], error) {
	published := true
	filter.Published = &published
	filter.OrganizerID = ""
	return s.list(ctx, "List", filter, page)
}

// ListAll returns every event regardless of publication state. Admin only.
func (s *EventService) ListAll(ctx context.Context, principal Principal, page PageRequest) (Page[Event], error) {
	if !principal.IsAdmin() {
		return Page[Event]{}, ErrForbidden
	}
	return s.list(ctx, "ListAll", EventFilter{}, page)
}

// ListOwned returns the caller's events including unpublished ones.
func (s *EventService) ListOwned(ctx context.Context, principal Principal, page PageRequest) (Page[Event], error) {
	if !principal.CanOrganize() {
		return Page[Event]{}, ErrForbidden
	}
	return s.list(ctx, "ListOwned", EventFilter{OrganizerID: principal.UserID}, page)
}

func (s *EventService) list(ctx context.Context, operation string, filter EventFilter, req PageRequest) (Page[Event], error) {
	if s == nil || s.events == nil {
		return Page[Event]{}, fmt.Errorf("EventService not configured")
	}
	page, limit, offset := normalizePage(req)
	filter.Category = strings.TrimSpace(filter.Category)
	filter.City = strings.TrimSpace(filter.City)
	filter.Query = strings.TrimSpace(filter.Query)

	events, total, err := s.events.ListEvents(ctx, filter, offset, limit)
	if err != nil {
		s.loggerWith(ctx, operation).ErrorContext(ctx, "event listing failed", "error", err, "error_kind", ErrorKind(err))
		return Page[Event]{}, err
	}
	return Page[Event]{Items: events, Total: total, Page: page, Limit: limit}, nil
}

// Update applies a partial update. The organizer or an admin may update an event until it starts.
// A replacement image is uploaded first; the previous image is removed only after the update is stored.
func (s *EventService) Update(ctx context.Context, params UpdateEventParams) (event Event, err error) {
	if s == nil || s.events == nil {
		return Event{}, fmt.Errorf("EventService not configured")
	}

	logger := s.loggerWith(ctx, "Update", "event_id", params.EventID, "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "event update failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event updated")
	}()

	var existing Event
	existing, err = s.events.GetEvent(ctx, params.EventID)
	if err != nil {
		return
	}
	if !canManageEvent(&params.Principal, existing) {
		err = ErrForbidden
		return
	}
	if !existing.StartDate.After(s.now()) {
		err = ErrEventStarted
		return
	}

	merged := applyEventPatch(existing, params.Patch)
	if vErr := s.validateEvent(merged); vErr.HasErrors() {
		err = vErr
		return
	}

	event = existing
	event.Title = merged.Title
	event.Description = merged.Description
	event.Category = merged.Category
	event.City = merged.City
	event.Location = merged.Location
	event.StartDate = merged.StartDate.UTC()
	event.EndDate = merged.EndDate.UTC()
	event.Price = merged.Price
	event.Capacity = merged.Capacity
	event.IsPublished = merged.IsPublished
	event.UpdatedAt = s.now()

	var replacement Image
	if params.Image != nil {
		if replacement, err = s.upload(ctx, *params.Image); err != nil {
			return
		}
		event.Image = replacement
	}

	event, err = s.events.UpdateEvent(ctx, event)
	if err != nil {
		if replacement.PublicID != "" {
			s.deleteImage(ctx, logger, replacement.PublicID)
		}
		return
	}

	if replacement.URL != "" && existing.Image.PublicID != "" && existing.Image.PublicID != replacement.PublicID {
		s.deleteImage(ctx, logger, existing.Image.PublicID)
	}
	return
}

// Delete removes an event that has no valid or used tickets. Its image is removed best-effort.
func (s *EventService) Delete(ctx context.Context, principal Principal, id string) (err error) {
	if s == nil || s.events == nil || s.tickets == nil {
		return fmt.Errorf("EventService not configured")
	}

	logger := s.loggerWith(ctx, "Delete", "event_id", id, "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "event deletion failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event deleted")
	}()

	var event Event
	event, err = s.events.GetEvent(ctx, id)
	if err != nil {
		return
	}
	if !canManageEvent(&principal, event) {
		err = ErrForbidden
		return
	}

	var live int64
	live, err = s.tickets.CountTicketsByEvent(ctx, id, TicketValid, TicketUsed)
	if err != nil {
		return
	}
	if live > 0 {
		err = ErrEventHasTickets
		return
	}

	if err = s.events.DeleteEvent(ctx, id); err != nil {
		return
	}
	if event.Image.PublicID != "" {
		s.deleteImage(ctx, logger, event.Image.PublicID)
	}
	return nil
}

func (s *EventService) validateEvent(input EventInput) *ValidationError {
	vErr := validateStruct(input)
	if input.StartDate.IsZero() {
		vErr.add("startDate", "startDate is required")
	}
	if input.EndDate.IsZero() {
		vErr.add("endDate", "endDate is required")
	}
	if !input.StartDate.IsZero() && !input.EndDate.IsZero() && !input.StartDate.Before(input.EndDate) {
		vErr.add("endDate", "endDate must be after startDate")
	}
	if !input.StartDate.IsZero() && !input.StartDate.After(s.now()) {
		vErr.add("startDate", "startDate must be in the future")
	}
	if input.Location != nil {
		vErr.merge(validateGeoPoint("location", *input.Location))
	}
	return vErr
}

func (s *EventService) upload(ctx context.Context, upload Upload) (Image, error) {
	if s.images == nil {
		return Image{}, ErrUploadsDisabled
	}
	image, err := s.images.Upload(ctx, upload)
	if err != nil {
		return Image{}, fmt.Errorf("upload image: %w", err)
	}
	return image, nil
}

func (s *EventService) deleteImage(ctx context.Context, logger *slog.Logger, publicID string) {
	if s.images == nil {
		return
	}
	if err := s.images.Delete(ctx, publicID); err != nil {
		logger.WarnContext(ctx, "failed to delete image", "public_id", publicID, "error", err)
	}
}

// canManageEvent reports whether viewer may see or change an event regardless of its
// publication state: its organizer, or any admin.
func canManageEvent(viewer *Principal, event Event) bool {
	if viewer == nil || viewer.UserID == "" {
		return false
	}
	return viewer.IsAdmin() || viewer.UserID == event.OrganizerID
}

func normalizeEventInput(input EventInput) EventInput {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Category = strings.ToLower(strings.TrimSpace(input.Category))
	input.City = strings.TrimSpace(input.City)
	return input
}

func applyEventPatch(event Event, patch EventPatch) EventInput {
	input := EventInput{
		Title:       event.Title,
		Description: event.Description,
		Category:    event.Category,
		City:        event.City,
		Location:    event.Location,
		StartDate:   event.StartDate,
		EndDate:     event.EndDate,
		Price:       event.Price,
		Capacity:    event.Capacity,
		IsPublished: event.IsPublished,
	}
	if patch.Title != nil {
		input.Title = *patch.Title
	}
	if patch.Description != nil {
		input.Description = *patch.Description
	}
	if patch.Category != nil {
		input.Category = *patch.Category
	}
	if patch.City != nil {
		input.City = *patch.City
	}
	if patch.Location != nil {
		loc := *patch.Location
		input.Location = &loc
	}
	if patch.StartDate != nil {
		input.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		input.EndDate = *patch.EndDate
	}
	if patch.Price != nil {
		input.Price = *patch.Price
	}
	if patch.Capacity != nil {
		input.Capacity = *patch.Capacity
	}
	if patch.IsPublished != nil {
		input.IsPublished = *patch.IsPublished
	}
	return normalizeEventInput(input)
}
