package payments

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

type stubIntentAPI struct {
	intent *stripe.PaymentIntent
	err    error
}

func (s *stubIntentAPI) Get(string, *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return s.intent, s.err
}

type stubRefundAPI struct {
	refund *stripe.Refund
	err    error
	params *stripe.RefundParams
}

func (s *stubRefundAPI) New(params *stripe.RefundParams) (*stripe.Refund, error) {
	s.params = params
	return s.refund, s.err
}

func newTestStripeGateway(t *testing.T, clients stripeClients) *StripeGateway {
	t.Helper()
	gw, err := NewStripeGateway(StripeGatewayConfig{
		WebhookSecret: "whsec_test",
		Clients:       &clients,
		Clock:         func() time.Time { return time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new stripe gateway: %v", err)
	}
	return gw
}

func stripeSignatureHeader(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig))
}

func TestStripeVerifyPayment(t *testing.T) {
	intents := &stubIntentAPI{intent: &stripe.PaymentIntent{
		ID:     "pi_1",
		Status: stripe.PaymentIntentStatusSucceeded,
	}}
	gw := newTestStripeGateway(t, stripeClients{intents: intents, refunds: &stubRefundAPI{}})

	if err := gw.VerifyPayment(context.Background(), VerifyRequest{ProviderPaymentID: "pi_1"}); err != nil {
		t.Fatalf("verify payment: %v", err)
	}

	intents.intent = &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusRequiresPaymentMethod}
	if err := gw.VerifyPayment(context.Background(), VerifyRequest{ProviderPaymentID: "pi_1"}); err == nil {
		t.Fatal("expected error for uncaptured intent")
	}

	if err := gw.VerifyPayment(context.Background(), VerifyRequest{}); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected mismatch for missing intent id, got %v", err)
	}
}

func TestStripeParseWebhookCaptured(t *testing.T) {
	gw := newTestStripeGateway(t, stripeClients{intents: &stubIntentAPI{}, refunds: &stubRefundAPI{}})

	body := []byte(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_1", "amount": 118000, "metadata": {"orderId": "ord_9"}}}
	}`)

	event, err := gw.ParseWebhook(WebhookRequest{
		Body:      body,
		Signature: stripeSignatureHeader(t, body, "whsec_test"),
	})
	if err != nil {
		t.Fatalf("parse webhook: %v", err)
	}
	if event.ID != "evt_1" || event.Type != EventPaymentCaptured {
		t.Errorf("unexpected event %#v", event)
	}
	if event.OrderID != "ord_9" || event.ProviderPaymentID != "pi_1" || event.Amount != 118000 {
		t.Errorf("unexpected event %#v", event)
	}
}

func TestStripeParseWebhookRejectsBadSignature(t *testing.T) {
	gw := newTestStripeGateway(t, stripeClients{intents: &stubIntentAPI{}, refunds: &stubRefundAPI{}})

	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{}}}`)
	_, err := gw.ParseWebhook(WebhookRequest{
		Body:      body,
		Signature: stripeSignatureHeader(t, body, "whsec_wrong"),
	})
	if !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}
}

func TestStripeParseWebhookUnhandledEvent(t *testing.T) {
	gw := newTestStripeGateway(t, stripeClients{intents: &stubIntentAPI{}, refunds: &stubRefundAPI{}})

	body := []byte(`{"id":"evt_2","type":"customer.created","data":{"object":{}}}`)
	_, err := gw.ParseWebhook(WebhookRequest{
		Body:      body,
		Signature: stripeSignatureHeader(t, body, "whsec_test"),
	})
	if !errors.Is(err, ErrUnhandledEvent) {
		t.Fatalf("expected unhandled event, got %v", err)
	}
}

func TestStripeRefund(t *testing.T) {
	refunds := &stubRefundAPI{refund: &stripe.Refund{ID: "re_1", Created: 1770000000}}
	gw := newTestStripeGateway(t, stripeClients{intents: &stubIntentAPI{}, refunds: refunds})

	result, err := gw.Refund(context.Background(), RefundRequest{
		ProviderPaymentID: "pi_1",
		Amount:            1180,
		Reason:            "requested_by_customer",
		IdempotencyKey:    "refund-ord_1",
	})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if result.RefundID != "re_1" {
		t.Errorf("unexpected refund id %s", result.RefundID)
	}
	if result.ProcessedAt.IsZero() {
		t.Error("expected processedAt from created timestamp")
	}

	params := refunds.params
	if params == nil || params.PaymentIntent == nil || *params.PaymentIntent != "pi_1" {
		t.Fatalf("unexpected refund params %#v", params)
	}
	if params.Amount == nil || *params.Amount != 1180 {
		t.Errorf("expected partial amount, got %#v", params.Amount)
	}
	if params.Reason == nil || *params.Reason != string(stripe.RefundReasonRequestedByCustomer) {
		t.Errorf("expected mapped reason, got %#v", params.Reason)
	}
}
