package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/spotevents/spot/internal/application"
)

type checkInService interface {
	CheckIn(ctx context.Context, principal application.Principal, params application.CheckInParams) (application.CheckInResult, error)
}

type CheckInHandler struct {
	service   checkInService
	responder responder
	logger    *slog.Logger
}

func NewCheckInHandler(service checkInService, logger *slog.Logger) *CheckInHandler {
	base := defaultLogger(logger)
	return &CheckInHandler{service: service, responder: newResponder(base), logger: base}
}

type checkInRequest struct {
	TicketCode string `json:"ticketCode"`
	EventID    string `json:"eventId"`
	Location   string `json:"location"`
}

type checkInResponse struct {
	Message     string    `json:"message"`
	Ticket      ticketDTO `json:"ticket"`
	CheckInID   string    `json:"checkInId"`
	CheckedInAt time.Time `json:"checkedInAt"`
}

func (h *CheckInHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := principalOrReject(ctx, w, h.responder)
	if !ok {
		return
	}
	var req checkInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	result, err := h.service.CheckIn(ctx, principal, application.CheckInParams{
		TicketCode: req.TicketCode,
		EventID:    req.EventID,
		Location:   req.Location,
	})
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, checkInResponse{
		Message:     "Check-in successful",
		Ticket:      toTicketDTO(result.Ticket),
		CheckInID:   result.CheckIn.ID,
		CheckedInAt: result.CheckIn.CheckedInAt.UTC(),
	})
}
