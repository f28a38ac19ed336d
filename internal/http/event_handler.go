package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spotevents/spot/internal/application"
)

type eventService interface {
	Create(ctx context.Context, params application.CreateEventParams) (application.Event, error)
	Get(ctx context.Context, viewer *application.Principal, id string) (application.Event, error)
	List(ctx context.Context, filter application.EventFilter, page application.PageRequest) (application.Page[application.Event], error)
	ListAll(ctx context.Context, principal application.Principal, page application.PageRequest) (application.Page[application.Event], error)
	ListOwned(ctx context.Context, principal application.Principal, page application.PageRequest) (application.Page[application.Event], error)
	Update(ctx context.Context, params application.UpdateEventParams) (application.Event, error)
	Delete(ctx context.Context, principal application.Principal, id string) error
}

type EventHandler struct {
	service   eventService
	responder responder
	logger    *slog.Logger
}

func NewEventHandler(service eventService, logger *slog.Logger) *EventHandler {
	base := defaultLogger(logger)
	return &EventHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *EventHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "EventHandler", operation, attrs...)
}

// eventRequest is shared by create and update; nil fields are left unset.
type eventRequest struct {
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Category    *string            `json:"category"`
	City        *string            `json:"city"`
	Location    *eventLocationJSON `json:"location"`
	StartDate   *time.Time         `json:"startDate"`
	EndDate     *time.Time         `json:"endDate"`
	Price       *int64             `json:"price"`
	Capacity    *int               `json:"capacity"`
	IsPublished *bool              `json:"isPublished"`
}

type eventLocationJSON struct {
	City *string  `json:"city"`
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
}

func (req eventRequest) toPatch() application.EventPatch {
	patch := application.EventPatch{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		City:        req.City,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Price:       req.Price,
		Capacity:    req.Capacity,
		IsPublished: req.IsPublished,
	}
	if req.Location != nil {
		if req.Location.City != nil {
			patch.City = req.Location.City
		}
		if req.Location.Lat != nil && req.Location.Lng != nil {
			patch.Location = &application.GeoPoint{Lat: *req.Location.Lat, Lng: *req.Location.Lng}
		}
	}
	return patch
}

func (req eventRequest) toInput() application.EventInput {
	patch := req.toPatch()
	input := application.EventInput{Location: patch.Location}
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
	return input
}

// readEventRequest accepts JSON or a multipart form with an optional image.
func (h *EventHandler) readEventRequest(w http.ResponseWriter, r *http.Request) (eventRequest, *application.Upload, func(), error) {
	if !isMultipart(r) {
		var req eventRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return req, nil, func() {}, err
		}
		return req, nil, func() {}, nil
	}

	image, release, err := parseMultipart(w, r, "image")
	if err != nil {
		return eventRequest{}, nil, release, err
	}
	form := newFormFields(r)
	req := eventRequest{
		Title:       form.text("title"),
		Description: form.text("description"),
		Category:    form.text("category"),
		City:        form.text("city"),
		Price:       form.integer("price"),
		IsPublished: form.flag("isPublished"),
	}
	if capacity := form.integer("capacity"); capacity != nil {
		c := int(*capacity)
		req.Capacity = &c
	}
	lat, lng := form.number("lat"), form.number("lng")
	if lat != nil && lng != nil {
		req.Location = &eventLocationJSON{Lat: lat, Lng: lng}
	}
	for key, dst := range map[string]**time.Time{"startDate": &req.StartDate, "endDate": &req.EndDate} {
		if raw := form.text(key); raw != nil && *raw != "" {
			parsed, perr := time.Parse(time.RFC3339, *raw)
			if perr != nil {
				form.fail(key, key+" must be an RFC 3339 timestamp")
				continue
			}
			*dst = &parsed
		}
	}
	return req, image, release, form.err()
}

type eventResponse struct {
	Event eventDTO `json:"event"`
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := pageRequest(r)
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}
	query := r.URL.Query()
	filter := application.EventFilter{
		Category: strings.TrimSpace(query.Get("category")),
		City:     strings.TrimSpace(query.Get("city")),
		Query:    strings.TrimSpace(query.Get("q")),
	}

	events, err := h.service.List(ctx, filter, page)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, toPageDTO(events, toEventDTO))
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	event, err := h.service.Get(ctx, optionalPrincipal(ctx), chi.URLParam(r, "id"))
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := principalOrReject(ctx, w, h.responder)
	if !ok {
		return
	}

	req, image, release, err := h.readEventRequest(w, r)
	defer release()
	if err != nil {
		h.log(ctx, "Create", "error_kind", "bad_request").InfoContext(ctx, "rejected event payload", "error", err)
		h.writeRequestError(ctx, w, err)
		return
	}

	event, err := h.service.Create(ctx, application.CreateEventParams{Principal: principal, Input: req.toInput(), Image: image})
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusCreated, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := principalOrReject(ctx, w, h.responder)
	if !ok {
		return
	}

	req, image, release, err := h.readEventRequest(w, r)
	defer release()
	if err != nil {
		h.writeRequestError(ctx, w, err)
		return
	}

	event, err := h.service.Update(ctx, application.UpdateEventParams{
		Principal: principal,
		EventID:   chi.URLParam(r, "id"),
		Patch:     req.toPatch(),
		Image:     image,
	})
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := principalOrReject(ctx, w, h.responder)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.Delete(ctx, principal, id); err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.log(ctx, "Delete", "event_id", id).InfoContext(ctx, "event deleted")
	h.responder.writeJSON(ctx, w, http.StatusOK, messageResponse{Message: "Event deleted"})
}

func (h *EventHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	h.listFor(w, r, h.service.ListAll)
}

func (h *EventHandler) ListOwned(w http.ResponseWriter, r *http.Request) {
	h.listFor(w, r, h.service.ListOwned)
}

func (h *EventHandler) listFor(w http.ResponseWriter, r *http.Request, list func(context.Context, application.Principal, application.PageRequest) (application.Page[application.Event], error)) {
	ctx := r.Context()
	principal, ok := principalOrReject(ctx, w, h.responder)
	if !ok {
		return
	}
	page, err := pageRequest(r)
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}

	events, err := list(ctx, principal, page)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, toPageDTO(events, toEventDTO))
}

// writeRequestError reports decode failures as 400 and form validation through the responder.
func (h *EventHandler) writeRequestError(ctx context.Context, w http.ResponseWriter, err error) {
	if _, ok := err.(*application.ValidationError); ok {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
}
