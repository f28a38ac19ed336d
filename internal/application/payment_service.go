package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// platformFeePercent is the marketplace's cut of every settled payment.
const platformFeePercent = 5

const freeIntentPrefix = "free_"

// PaymentGateway opens payments and verifies gateway notifications.
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (PaymentIntent, error)
	ParseWebhook(payload []byte, signature string) (WebhookEvent, error)
}

// PaymentServiceDeps wires the collaborators of the payment service.
type PaymentServiceDeps struct {
	Events       EventRepository
	Tickets      TicketRepository
	Transactions TransactionRepository
	Gateway      PaymentGateway
	Broadcaster  Broadcaster
	Stats        StatsInvalidator
	TicketCodes  func() string
	Currency     string
	IDGenerator  func() string
	Now          func() time.Time
	Logger       *slog.Logger
}

// PaymentService turns orders into payment intents and settled payments into tickets.
type PaymentService struct {
	events       EventRepository
	tickets      TicketRepository
	transactions TransactionRepository
	gateway      PaymentGateway
	broadcaster  Broadcaster
	stats        StatsInvalidator
	ticketCodes  func() string
	currency     string
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewPaymentService constructs a PaymentService with the provided dependencies.
func NewPaymentService(deps PaymentServiceDeps) *PaymentService {
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "" }
	}
	if deps.TicketCodes == nil {
		deps.TicketCodes = deps.IDGenerator
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	currency := strings.ToLower(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "usd"
	}
	return &PaymentService{
		events:       deps.Events,
		tickets:      deps.Tickets,
		transactions: deps.Transactions,
		gateway:      deps.Gateway,
		broadcaster:  deps.Broadcaster,
		stats:        deps.Stats,
		ticketCodes:  deps.TicketCodes,
		currency:     currency,
		idGenerator:  deps.IDGenerator,
		now:          deps.Now,
		logger:       defaultLogger(deps.Logger),
	}
}

func (s *PaymentService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "PaymentService", operation, attrs...)
}

func (s *PaymentService) ready() error {
	if s == nil || s.events == nil || s.tickets == nil || s.transactions == nil {
		return fmt.Errorf("PaymentService not configured")
	}
	return nil
}

// CreateOrder checks availability and opens a payment for quantity tickets. Free events
// skip the gateway and issue tickets immediately.
func (s *PaymentService) CreateOrder(ctx context.Context, principal Principal, params OrderParams) (result OrderResult, err error) {
	if err = s.ready(); err != nil {
		return result, err
	}
	params.EventID = strings.TrimSpace(params.EventID)

	logger := s.loggerWith(ctx, "CreateOrder", "event_id", params.EventID, "principal_id", principal.UserID, "quantity", params.Quantity)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "order creation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("payment_intent_id", result.PaymentIntentID, "amount", result.Amount, "free", result.Free).
			InfoContext(ctx, "order created")
	}()

	if principal.UserID == "" {
		err = ErrUnauthenticated
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
	if !event.IsPublished {
		err = ErrEventUnavailable
		return
	}
	if !event.StartDate.After(s.now()) {
		err = ErrEventStarted
		return
	}

	var sold int64
	sold, err = s.tickets.CountTicketsByEvent(ctx, event.ID, TicketValid, TicketUsed)
	if err != nil {
		return
	}
	if int64(event.Capacity)-sold < int64(params.Quantity) {
		err = ErrInsufficientCapacity
		return
	}

	amount := event.Price * int64(params.Quantity)
	if amount == 0 {
		return s.issueFreeOrder(ctx, principal, event, params.Quantity)
	}

	if s.gateway == nil {
		err = &GatewayError{Kind: GatewayAuthentication, Message: "payment gateway not configured"}
		return
	}

	var intent PaymentIntent
	intent, err = s.gateway.CreatePaymentIntent(ctx, PaymentIntentRequest{
		Amount:         amount,
		Currency:       s.currency,
		IdempotencyKey: "order_" + s.idGenerator(),
		Metadata: map[string]string{
			"eventId":     event.ID,
			"userId":      principal.UserID,
			"organizerId": event.OrganizerID,
			"quantity":    strconv.Itoa(params.Quantity),
		},
	})
	if err != nil {
		return
	}

	result = OrderResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Amount:          amount,
		Currency:        s.currency,
	}
	return
}

func (s *PaymentService) issueFreeOrder(ctx context.Context, principal Principal, event Event, quantity int) (OrderResult, error) {
	tx := Transaction{
		ID:              s.idGenerator(),
		PaymentIntentID: freeIntentPrefix + s.idGenerator(),
		EventID:         event.ID,
		OrganizerID:     event.OrganizerID,
		PayerID:         principal.UserID,
		Quantity:        quantity,
		Currency:        s.currency,
		Status:          TransactionSuccess,
		CreatedAt:       s.now(),
	}
	if err := s.transactions.CreateTransaction(ctx, tx); err != nil {
		return OrderResult{}, err
	}
	tickets, err := s.issueTickets(ctx, tx)
	if err != nil {
		return OrderResult{}, err
	}
	s.afterIssue(ctx, tx, len(tickets))
	return OrderResult{PaymentIntentID: tx.PaymentIntentID, Currency: s.currency, Free: true, Tickets: tickets}, nil
}

// HandleWebhook verifies and applies a gateway notification. Every branch is idempotent,
// so redelivered notifications converge on the same state. A returned error makes the
// gateway retry.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (err error) {
	if err = s.ready(); err != nil {
		return err
	}
	if s.gateway == nil {
		return fmt.Errorf("payment gateway not configured")
	}

	var event WebhookEvent
	event, err = s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		if !errors.Is(err, ErrInvalidWebhook) {
			err = fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
		}
		s.loggerWith(ctx, "HandleWebhook").WarnContext(ctx, "webhook rejected", "error", err)
		return err
	}

	logger := s.loggerWith(ctx, "HandleWebhook", "webhook_id", event.ID, "type", event.Type, "payment_intent_id", event.PaymentIntentID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "webhook processing failed", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	switch event.Type {
	case WebhookPaymentSucceeded:
		err = s.handleSucceeded(ctx, logger, event)
	case WebhookPaymentFailed:
		logger.WarnContext(ctx, "payment failed", "reason", event.FailureMessage)
	case WebhookChargeRefunded:
		err = s.handleRefunded(ctx, logger, event)
	default:
		logger.DebugContext(ctx, "webhook ignored")
	}
	return err
}

func (s *PaymentService) handleSucceeded(ctx context.Context, logger *slog.Logger, event WebhookEvent) error {
	eventID := event.Metadata["eventId"]
	payerID := event.Metadata["userId"]
	if event.PaymentIntentID == "" || eventID == "" || payerID == "" {
		logger.WarnContext(ctx, "payment is missing order metadata; ignoring")
		return nil
	}
	quantity, convErr := strconv.Atoi(event.Metadata["quantity"])
	if convErr != nil || quantity < 1 {
		quantity = 1
	}
	organizerID := event.Metadata["organizerId"]
	if organizerID == "" {
		catalogEvent, err := s.events.GetEvent(ctx, eventID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		organizerID = catalogEvent.OrganizerID
	}
	currency := strings.ToLower(event.Currency)
	if currency == "" {
		currency = s.currency
	}

	fee := PlatformFee(event.Amount)
	tx := Transaction{
		ID:              s.idGenerator(),
		PaymentIntentID: event.PaymentIntentID,
		EventID:         eventID,
		OrganizerID:     organizerID,
		PayerID:         payerID,
		Quantity:        quantity,
		Amount:          event.Amount,
		PlatformFee:     fee,
		OrganizerShare:  event.Amount - fee,
		Currency:        currency,
		Status:          TransactionSuccess,
		CreatedAt:       s.now(),
	}

	if err := s.transactions.CreateTransaction(ctx, tx); err != nil {
		if !errors.Is(err, ErrAlreadyExists) {
			return err
		}
		existing, getErr := s.transactions.GetTransactionByIntent(ctx, event.PaymentIntentID)
		if getErr != nil {
			return getErr
		}
		tx = existing
		logger.InfoContext(ctx, "payment already recorded", "transaction_id", tx.ID)
	}

	if tx.Status != TransactionSuccess {
		logger.InfoContext(ctx, "transaction no longer settled; skipping ticket issuance", "status", tx.Status)
		return nil
	}

	tickets, err := s.issueTickets(ctx, tx)
	if err != nil {
		return err
	}
	if len(tickets) > 0 {
		logger.InfoContext(ctx, "tickets issued", "transaction_id", tx.ID, "count", len(tickets))
	}
	s.afterIssue(ctx, tx, len(tickets))
	return nil
}

func (s *PaymentService) handleRefunded(ctx context.Context, logger *slog.Logger, event WebhookEvent) error {
	if event.PaymentIntentID == "" {
		logger.WarnContext(ctx, "refund without payment intent; ignoring")
		return nil
	}

	tx, err := s.transactions.MarkRefunded(ctx, event.PaymentIntentID, s.now())
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		logger.WarnContext(ctx, "refund for unknown payment; ignoring")
		return nil
	case errors.Is(err, ErrConflict):
		// Already refunded: finish cancelling in case a previous delivery stopped halfway.
		tx, err = s.transactions.GetTransactionByIntent(ctx, event.PaymentIntentID)
		if err != nil {
			return err
		}
	default:
		return err
	}

	cancelled, err := s.tickets.CancelTransactionTickets(ctx, tx.ID)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "payment refunded", "transaction_id", tx.ID, "cancelled_tickets", cancelled)

	if s.stats != nil {
		s.stats.Invalidate(tx.EventID)
	}
	s.publish(ctx, logger, Notification{
		Type:    NotificationPaymentRefunded,
		EventID: tx.EventID,
		Payload: map[string]any{
			"transactionId":    tx.ID,
			"paymentIntentId":  tx.PaymentIntentID,
			"cancelledTickets": cancelled,
		},
		OccurredAt: s.now(),
	})
	return nil
}

// ticketNamespace seeds ticket IDs. A ticket's ID is derived from its transaction and
// seat index, so concurrent issuers for one transaction collide on the same keys.
var ticketNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("spot:tickets"))

func ticketID(transactionID string, seat int) string {
	return uuid.NewSHA1(ticketNamespace, []byte(transactionID+":"+strconv.Itoa(seat))).String()
}

// issueTickets creates whatever part of the transaction's batch is still missing and
// returns only the tickets this call inserted. Seats another issuer already claimed
// are skipped.
func (s *PaymentService) issueTickets(ctx context.Context, tx Transaction) ([]Ticket, error) {
	issued, err := s.tickets.CountTicketsByTransaction(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	if issued >= int64(tx.Quantity) {
		return nil, nil
	}

	now := s.now()
	tickets := make([]Ticket, 0, int64(tx.Quantity)-issued)
	for seat := int(issued); seat < tx.Quantity; seat++ {
		code := s.ticketCodes()
		payload, err := json.Marshal(qrPayload{Code: code, Event: tx.EventID, Owner: tx.PayerID, IssuedAt: now.UTC()})
		if err != nil {
			return nil, fmt.Errorf("encode qr payload: %w", err)
		}
		tickets = append(tickets, Ticket{
			ID:            ticketID(tx.ID, seat),
			EventID:       tx.EventID,
			OwnerID:       tx.PayerID,
			TransactionID: tx.ID,
			Code:          code,
			QRPayload:     string(payload),
			Status:        TicketValid,
			CreatedAt:     now,
		})
	}

	err = s.tickets.CreateTickets(ctx, tickets)
	if err == nil {
		return tickets, nil
	}
	if !errors.Is(err, ErrAlreadyExists) {
		return nil, err
	}

	// Another delivery got there first; claim the remaining seats one at a time.
	created := make([]Ticket, 0, len(tickets))
	for _, ticket := range tickets {
		switch err := s.tickets.CreateTickets(ctx, []Ticket{ticket}); {
		case err == nil:
			created = append(created, ticket)
		case errors.Is(err, ErrAlreadyExists):
		default:
			return nil, err
		}
	}
	return created, nil
}

func (s *PaymentService) afterIssue(ctx context.Context, tx Transaction, count int) {
	if count == 0 {
		return
	}
	if s.stats != nil {
		s.stats.Invalidate(tx.EventID)
	}
	s.publish(ctx, s.loggerWith(ctx, "afterIssue", "transaction_id", tx.ID), Notification{
		Type:    NotificationTicketsIssued,
		EventID: tx.EventID,
		Payload: map[string]any{
			"transactionId": tx.ID,
			"ownerId":       tx.PayerID,
			"count":         count,
		},
		OccurredAt: s.now(),
	})
}

func (s *PaymentService) publish(ctx context.Context, logger *slog.Logger, notification Notification) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Publish(ctx, notification); err != nil {
		logger.WarnContext(ctx, "failed to publish notification", "type", notification.Type, "error", err)
	}
}

type qrPayload struct {
	Code     string    `json:"code"`
	Event    string    `json:"event"`
	Owner    string    `json:"owner"`
	IssuedAt time.Time `json:"issuedAt"`
}

// PlatformFee returns the marketplace fee for amount minor units, rounded half up.
func PlatformFee(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	return (amount*platformFeePercent + 50) / 100
}
