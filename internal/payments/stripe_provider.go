package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

// StripeLogger defines the logging contract for Stripe gateway operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripePaymentIntentAPI interface {
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

type stripeClients struct {
	intents stripePaymentIntentAPI
	refunds stripeRefundAPI
}

// StripeGatewayConfig configures the StripeGateway.
type StripeGatewayConfig struct {
	APIKey        string
	WebhookSecret string
	Backends      *stripe.Backends
	Logger        StripeLogger
	Clock         func() time.Time
	Clients       *stripeClients
}

// StripeGateway implements the Gateway interface using Stripe APIs.
type StripeGateway struct {
	api           stripeClients
	webhookSecret string
	logger        StripeLogger
	clock         func() time.Time
}

// NewStripeGateway constructs a Stripe Gateway using the given configuration.
func NewStripeGateway(cfg StripeGatewayConfig) (*StripeGateway, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			intents: sc.PaymentIntents,
			refunds: sc.Refunds,
		}
	}
	if clients.intents == nil || clients.refunds == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &StripeGateway{
		api:           clients,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		logger:        logger,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// Name returns the registry key for the gateway.
func (g *StripeGateway) Name() string { return "stripe" }

// VerifyPayment retrieves the reported Payment Intent and checks it is
// captured and tied to the reported checkout references.
func (g *StripeGateway) VerifyPayment(ctx context.Context, req VerifyRequest) error {
	if g == nil {
		return errors.New("stripe: gateway is nil")
	}
	intentID := strings.TrimSpace(req.ProviderPaymentID)
	if intentID == "" {
		return ErrSignatureMismatch
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := g.api.intents.Get(intentID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
			return ErrSignatureMismatch
		}
		return fmt.Errorf("stripe: lookup payment intent: %w", err)
	}

	if orderID := strings.TrimSpace(req.ProviderOrderID); orderID != "" {
		if ref := intent.Metadata["checkoutSessionId"]; ref != "" && ref != orderID {
			return ErrSignatureMismatch
		}
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return fmt.Errorf("stripe: payment intent %s is %s, not captured", intent.ID, intent.Status)
	}
	return nil
}

// ParseWebhook verifies the Stripe-Signature header over the raw body and
// normalises the event envelope.
func (g *StripeGateway) ParseWebhook(req WebhookRequest) (Event, error) {
	if g == nil {
		return Event{}, errors.New("stripe: gateway is nil")
	}
	if g.webhookSecret == "" {
		return Event{}, errors.New("stripe: webhook secret is not configured")
	}

	stripeEvent, err := webhook.ConstructEventWithOptions(req.Body, req.Signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, ErrSignatureMismatch
	}

	event := Event{ID: stripeEvent.ID}

	switch stripeEvent.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(stripeEvent.Data.Raw, &intent); err != nil {
			return Event{}, fmt.Errorf("stripe: decode payment intent event: %w", err)
		}
		event.ProviderPaymentID = intent.ID
		event.Amount = intent.Amount
		event.OrderID = intent.Metadata["orderId"]
		if stripeEvent.Type == "payment_intent.succeeded" {
			event.Type = EventPaymentCaptured
		} else {
			event.Type = EventPaymentFailed
			if intent.LastPaymentError != nil {
				event.Reason = intent.LastPaymentError.Msg
			}
		}
	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(stripeEvent.Data.Raw, &charge); err != nil {
			return Event{}, fmt.Errorf("stripe: decode charge event: %w", err)
		}
		event.Type = EventRefundProcessed
		event.Amount = charge.AmountRefunded
		event.OrderID = charge.Metadata["orderId"]
		if charge.PaymentIntent != nil {
			event.ProviderPaymentID = charge.PaymentIntent.ID
		}
	default:
		return Event{}, ErrUnhandledEvent
	}

	return event, nil
}

// Refund creates a refund against the captured Payment Intent.
func (g *StripeGateway) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	if g == nil {
		return RefundResult{}, errors.New("stripe: gateway is nil")
	}
	intentID := strings.TrimSpace(req.ProviderPaymentID)
	if intentID == "" {
		return RefundResult{}, errors.New("stripe: payment intent id is required")
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if req.Amount > 0 {
		params.Amount = stripe.Int64(req.Amount)
	}
	if reason := mapStripeRefundReason(req.Reason); reason != "" {
		params.Reason = stripe.String(reason)
	}

	refund, err := g.api.refunds.New(params)
	if err != nil {
		return RefundResult{}, fmt.Errorf("stripe: refund payment intent: %w", err)
	}

	g.logger(ctx, "payments.stripe.refund.created", map[string]any{
		"paymentIntent": intentID,
		"refundId":      refund.ID,
	})

	processedAt := g.clock()
	if refund.Created > 0 {
		processedAt = time.Unix(refund.Created, 0).UTC()
	}
	return RefundResult{RefundID: refund.ID, ProcessedAt: processedAt}, nil
}

func mapStripeRefundReason(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case string(stripe.RefundReasonDuplicate):
		return string(stripe.RefundReasonDuplicate)
	case string(stripe.RefundReasonFraudulent):
		return string(stripe.RefundReasonFraudulent)
	case string(stripe.RefundReasonRequestedByCustomer):
		return string(stripe.RefundReasonRequestedByCustomer)
	default:
		return ""
	}
}
