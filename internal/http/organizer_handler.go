package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/spotevents/spot/internal/application"
)

type eventLookup interface {
	Get(ctx context.Context, viewer *application.Principal, id string) (application.Event, error)
}

// liveFeed upgrades a request into a stream of notifications for one event.
type liveFeed interface {
	Serve(w http.ResponseWriter, r *http.Request, eventID string) error
}

type OrganizerHandler struct {
	reports   reportService
	events    eventLookup
	feed      liveFeed
	responder responder
	logger    *slog.Logger
}

func NewOrganizerHandler(reports reportService, events eventLookup, feed liveFeed, logger *slog.Logger) *OrganizerHandler {
	base := defaultLogger(logger)
	return &OrganizerHandler{reports: reports, events: events, feed: feed, responder: newResponder(base), logger: base}
}

func (h *OrganizerHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "OrganizerHandler", operation, attrs...)
}

type statsDTO struct {
	EventID           string `json:"eventId"`
	TicketsSold       int64  `json:"ticketsSold"`
	CheckedIn         int64  `json:"checkedIn"`
	Cancelled         int64  `json:"cancelled"`
	RemainingCapacity int64  `json:"remainingCapacity"`
	GrossRevenue      int64  `json:"grossRevenue"`
	OrganizerRevenue  int64  `json:"organizerRevenue"`
	Views             int64  `json:"views"`
}

type statsResponse struct {
	Stats statsDTO `json:"stats"`
}

func (h *OrganizerHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := principalOrReject(ctx, w, h.responder)
	if !ok {
		return
	}

	stats, err := h.reports.EventStats(ctx, principal, chi.URLParam(r, "id"))
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, statsResponse{Stats: statsDTO{
		EventID:           stats.EventID,
		TicketsSold:       stats.TicketsSold,
		CheckedIn:         stats.CheckedIn,
		Cancelled:         stats.Cancelled,
		RemainingCapacity: stats.RemainingCapacity,
		GrossRevenue:      stats.GrossRevenue,
		OrganizerRevenue:  stats.OrganizerRevenue,
		Views:             stats.Views,
	}})
}

// Live streams check-ins for an event the caller owns. Ownership is checked
// before the upgrade so failures are still plain JSON responses.
func (h *OrganizerHandler) Live(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := principalOrReject(ctx, w, h.responder)
	if !ok {
		return
	}
	eventID := chi.URLParam(r, "id")

	event, err := h.events.Get(ctx, &principal, eventID)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	if event.OrganizerID != principal.UserID && !principal.IsAdmin() {
		h.responder.handleServiceError(ctx, w, application.ErrForbidden)
		return
	}

	logger := h.log(ctx, "Live", "event_id", eventID)
	logger.InfoContext(ctx, "live feed opened")
	if err := h.feed.Serve(w, r, eventID); err != nil {
		logger.WarnContext(ctx, "live feed closed with error", "error", err)
		return
	}
	logger.InfoContext(ctx, "live feed closed")
}
