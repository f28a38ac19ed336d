package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/spotevents/spot/internal/application"
)

const maxWebhookBody = 1 << 16

type paymentService interface {
	CreateOrder(ctx context.Context, principal application.Principal, params application.OrderParams) (application.OrderResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type PaymentHandler struct {
	service   paymentService
	responder responder
	logger    *slog.Logger
}

func NewPaymentHandler(service paymentService, logger *slog.Logger) *PaymentHandler {
	base := defaultLogger(logger)
	return &PaymentHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *PaymentHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "PaymentHandler", operation, attrs...)
}

type orderRequest struct {
	EventID  string `json:"eventId"`
	Quantity int    `json:"quantity"`
}

type orderResponse struct {
	ClientSecret    string      `json:"clientSecret,omitempty"`
	PaymentIntentID string      `json:"paymentIntentId"`
	Amount          int64       `json:"amount"`
	Currency        string      `json:"currency"`
	Free            bool        `json:"free"`
	Tickets         []ticketDTO `json:"tickets,omitempty"`
}

func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := principalOrReject(ctx, w, h.responder)
	if !ok {
		return
	}
	var req orderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	result, err := h.service.CreateOrder(ctx, principal, application.OrderParams{EventID: req.EventID, Quantity: req.Quantity})
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	resp := orderResponse{
		ClientSecret:    result.ClientSecret,
		PaymentIntentID: result.PaymentIntentID,
		Amount:          result.Amount,
		Currency:        result.Currency,
		Free:            result.Free,
	}
	status := http.StatusOK
	if result.Free {
		status = http.StatusCreated
		for _, t := range result.Tickets {
			resp.Tickets = append(resp.Tickets, toTicketDTO(t))
		}
	}
	h.responder.writeJSON(ctx, w, status, resp)
}

type webhookResponse struct {
	Received bool `json:"received"`
}

// Webhook receives gateway notifications. The raw body is needed for
// signature verification, so it is read before any decoding.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.log(ctx, "Webhook").WarnContext(ctx, "failed to read webhook body", "error", err)
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	if err := h.service.HandleWebhook(ctx, payload, r.Header.Get("Stripe-Signature")); err != nil {
		if errors.Is(err, application.ErrInvalidWebhook) {
			h.responder.handleServiceError(ctx, w, err)
			return
		}
		// A 5xx makes the gateway redeliver; every webhook branch is idempotent.
		h.log(ctx, "Webhook").ErrorContext(ctx, "webhook processing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.writeError(ctx, w, http.StatusInternalServerError, nil)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, webhookResponse{Received: true})
}
