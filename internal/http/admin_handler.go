package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spotevents/spot/internal/application"
)

type reportService interface {
	ListUsers(ctx context.Context, principal application.Principal, page application.PageRequest) (application.Page[application.User], error)
	ListPayments(ctx context.Context, principal application.Principal, page application.PageRequest) (application.PaymentsReport, error)
	CreatePayout(ctx context.Context, principal application.Principal, params application.PayoutParams) (application.Payout, error)
	GrantPremium(ctx context.Context, principal application.Principal, userID string, duration time.Duration) (application.User, error)
	EventStats(ctx context.Context, principal application.Principal, eventID string) (application.EventStats, error)
}

// AdminHandler serves the platform-wide reports. Event listing and deletion
// for admins go through EventHandler.
type AdminHandler struct {
	service   reportService
	responder responder
	logger    *slog.Logger
}

func NewAdminHandler(service reportService, logger *slog.Logger) *AdminHandler {
	base := defaultLogger(logger)
	return &AdminHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AdminHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "AdminHandler", operation, attrs...)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
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

	users, err := h.service.ListUsers(ctx, principal, page)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, toPageDTO(users, toUserDTO))
}

type totalsDTO struct {
	Count          int64 `json:"count"`
	Gross          int64 `json:"gross"`
	PlatformFees   int64 `json:"platformFees"`
	OrganizerShare int64 `json:"organizerShare"`
}

type paymentsResponse struct {
	pageDTO[transactionDTO]
	Totals totalsDTO `json:"totals"`
}

func (h *AdminHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
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

	report, err := h.service.ListPayments(ctx, principal, page)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, paymentsResponse{
		pageDTO: toPageDTO(report.Transactions, toTransactionDTO),
		Totals: totalsDTO{
			Count:          report.Totals.Count,
			Gross:          report.Totals.Gross,
			PlatformFees:   report.Totals.PlatformFees,
			OrganizerShare: report.Totals.OrganizerShare,
		},
	})
}

type payoutRequest struct {
	OrganizerID string `json:"organizerId"`
	Amount      int64  `json:"amount"`
	Note        string `json:"note"`
}

type payoutDTO struct {
	ID          string    `json:"id"`
	OrganizerID string    `json:"organizerId"`
	Amount      int64     `json:"amount"`
	Status      string    `json:"status"`
	Note        string    `json:"note,omitempty"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

type payoutResponse struct {
	Payout payoutDTO `json:"payout"`
}

func (h *AdminHandler) CreatePayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := principalOrReject(ctx, w, h.responder)
	if !ok {
		return
	}
	var req payoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	payout, err := h.service.CreatePayout(ctx, principal, application.PayoutParams{
		OrganizerID: req.OrganizerID,
		Amount:      req.Amount,
		Note:        req.Note,
	})
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.log(ctx, "CreatePayout", "payout_id", payout.ID, "organizer_id", payout.OrganizerID).InfoContext(ctx, "payout recorded")
	h.responder.writeJSON(ctx, w, http.StatusCreated, payoutResponse{Payout: payoutDTO{
		ID:          payout.ID,
		OrganizerID: payout.OrganizerID,
		Amount:      payout.Amount,
		Status:      payout.Status,
		Note:        payout.Note,
		CreatedBy:   payout.CreatedBy,
		CreatedAt:   payout.CreatedAt.UTC(),
	}})
}

type premiumRequest struct {
	Days int `json:"days"`
}

func (h *AdminHandler) GrantPremium(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := principalOrReject(ctx, w, h.responder)
	if !ok {
		return
	}
	var req premiumRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	user, err := h.service.GrantPremium(ctx, principal, chi.URLParam(r, "id"), time.Duration(req.Days)*24*time.Hour)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, userResponse{User: toUserDTO(user)})
}
