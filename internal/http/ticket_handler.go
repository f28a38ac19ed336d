package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/spotevents/spot/internal/application"
)

type ticketService interface {
	ListMine(ctx context.Context, principal application.Principal) ([]application.TicketView, error)
	Get(ctx context.Context, principal application.Principal, id string) (application.TicketView, error)
	QR(ctx context.Context, principal application.Principal, id string) ([]byte, error)
}

type TicketHandler struct {
	service   ticketService
	responder responder
	logger    *slog.Logger
}

func NewTicketHandler(service ticketService, logger *slog.Logger) *TicketHandler {
	base := defaultLogger(logger)
	return &TicketHandler{service: service, responder: newResponder(base), logger: base}
}

type ticketsResponse struct {
	Tickets []ticketDTO `json:"tickets"`
}

type ticketResponse struct {
	Ticket ticketDTO `json:"ticket"`
}

func (h *TicketHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := principalOrReject(ctx, w, h.responder)
	if !ok {
		return
	}

	views, err := h.service.ListMine(ctx, principal)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	out := make([]ticketDTO, 0, len(views))
	for _, v := range views {
		out = append(out, toTicketViewDTO(v))
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, ticketsResponse{Tickets: out})
}

func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := principalOrReject(ctx, w, h.responder)
	if !ok {
		return
	}

	view, err := h.service.Get(ctx, principal, chi.URLParam(r, "id"))
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, ticketResponse{Ticket: toTicketViewDTO(view)})
}

func (h *TicketHandler) QR(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := principalOrReject(ctx, w, h.responder)
	if !ok {
		return
	}

	png, err := h.service.QR(ctx, principal, chi.URLParam(r, "id"))
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		handlerLogger(ctx, h.logger, "TicketHandler", "QR").WarnContext(ctx, "failed to write qr image", "error", err)
	}
}
