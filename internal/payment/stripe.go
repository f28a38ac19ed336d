// Package payment adapts Stripe to the application's PaymentGateway.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/spotevents/spot/internal/application"
)

// Config configures the Stripe gateway.
type Config struct {
	SecretKey string
	// WebhookSecret verifies Stripe-Signature headers. When empty, signatures
	// are not checked and every webhook is logged with a warning.
	WebhookSecret string
	// BackendURL overrides the API endpoint, e.g. for stripe-mock.
	BackendURL string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// StripeGateway creates payment intents and parses webhooks.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	logger        *slog.Logger
}

// NewStripeGateway returns a gateway using its own API client, so the
// package-level stripe.Key is never touched.
func NewStripeGateway(config Config) *StripeGateway {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	backendConfig := &stripe.BackendConfig{
		HTTPClient:        config.HTTPClient,
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if config.BackendURL != "" {
		backendConfig.URL = stripe.String(config.BackendURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig)

	api := &client.API{}
	api.Init(config.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	gateway := &StripeGateway{api: api, webhookSecret: config.WebhookSecret, logger: logger.With("component", "stripe")}
	if config.WebhookSecret == "" {
		gateway.logger.Warn("webhook signing secret not configured; signatures will not be verified")
	}
	return gateway
}

// CreatePaymentIntent opens a payment for req.Amount.
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, req application.PaymentIntentRequest) (application.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return application.PaymentIntent{}, classify(err)
	}
	return application.PaymentIntent{ID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

// ParseWebhook verifies and decodes a webhook delivery.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (application.WebhookEvent, error) {
	var event stripe.Event
	if g.webhookSecret == "" {
		g.logger.Warn("accepting unsigned webhook")
		if err := json.Unmarshal(payload, &event); err != nil {
			return application.WebhookEvent{}, fmt.Errorf("%w: %v", application.ErrInvalidWebhook, err)
		}
	} else {
		var err error
		event, err = webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			return application.WebhookEvent{}, fmt.Errorf("%w: %v", application.ErrInvalidWebhook, err)
		}
	}
	return translate(event)
}

func translate(event stripe.Event) (application.WebhookEvent, error) {
	out := application.WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return application.WebhookEvent{}, fmt.Errorf("%w: payment intent: %v", application.ErrInvalidWebhook, err)
		}
		out.PaymentIntentID = intent.ID
		out.Amount = intent.Amount
		out.Currency = string(intent.Currency)
		out.Metadata = intent.Metadata
		if intent.LastPaymentError != nil {
			out.FailureMessage = intent.LastPaymentError.Msg
		}
	case stripe.EventTypeChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return application.WebhookEvent{}, fmt.Errorf("%w: charge: %v", application.ErrInvalidWebhook, err)
		}
		if charge.PaymentIntent != nil {
			out.PaymentIntentID = charge.PaymentIntent.ID
		}
		out.Amount = charge.AmountRefunded
		out.Currency = string(charge.Currency)
		out.Metadata = charge.Metadata
	}
	return out, nil
}

// classify maps Stripe failures onto gateway error kinds.
func classify(err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return &application.GatewayError{Kind: application.GatewayUnavailable, Message: "payment provider unreachable", Err: err}
	}

	kind := application.GatewayUnavailable
	switch {
	case stripeErr.Type == stripe.ErrorTypeCard:
		kind = application.GatewayCardDeclined
	case stripeErr.HTTPStatusCode == http.StatusTooManyRequests || stripeErr.Code == stripe.ErrorCodeRateLimit:
		kind = application.GatewayRateLimited
	case stripeErr.HTTPStatusCode == http.StatusUnauthorized || stripeErr.HTTPStatusCode == http.StatusForbidden:
		kind = application.GatewayAuthentication
	case stripeErr.Type == stripe.ErrorTypeInvalidRequest || stripeErr.Type == stripe.ErrorTypeIdempotency:
		kind = application.GatewayInvalidRequest
	}
	return &application.GatewayError{Kind: kind, Message: stripeErr.Msg, Err: err}
}
