package payments

import (
	"context"
	"errors"
	"testing"
)

type fakeGateway struct {
	name      string
	lastOp    string
	verifyErr error
	event     Event
	parseErr  error
	refund    RefundResult
	refundErr error
}

func (f *fakeGateway) Name() string { return f.name }

func (f *fakeGateway) VerifyPayment(_ context.Context, _ VerifyRequest) error {
	f.lastOp = "verify"
	return f.verifyErr
}

func (f *fakeGateway) ParseWebhook(_ WebhookRequest) (Event, error) {
	f.lastOp = "parse"
	return f.event, f.parseErr
}

func (f *fakeGateway) Refund(_ context.Context, _ RefundRequest) (RefundResult, error) {
	f.lastOp = "refund"
	return f.refund, f.refundErr
}

func TestManagerRoutesByMethod(t *testing.T) {
	razorpay := &fakeGateway{name: "razorpay"}
	stripe := &fakeGateway{name: "stripe", event: Event{ID: "evt_s"}}

	manager, err := NewManager(razorpay, stripe)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	if err := manager.VerifyPayment(context.Background(), "razorpay", VerifyRequest{}); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if razorpay.lastOp != "verify" {
		t.Errorf("expected razorpay verify, got %s", razorpay.lastOp)
	}

	event, err := manager.ParseWebhook("Stripe", WebhookRequest{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.ID != "evt_s" || stripe.lastOp != "parse" {
		t.Errorf("expected stripe parse, got %#v %s", event, stripe.lastOp)
	}

	if _, err := manager.Refund(context.Background(), "razorpay", RefundRequest{}); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if razorpay.lastOp != "refund" {
		t.Errorf("expected razorpay refund, got %s", razorpay.lastOp)
	}
}

func TestManagerUnsupportedProvider(t *testing.T) {
	manager, err := NewManager(&fakeGateway{name: "razorpay"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	if err := manager.VerifyPayment(context.Background(), "paytm", VerifyRequest{}); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected unsupported provider, got %v", err)
	}
	if _, err := manager.ParseWebhook("", WebhookRequest{}); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected unsupported provider, got %v", err)
	}
}

func TestManagerRegistrationRules(t *testing.T) {
	if _, err := NewManager(); err == nil {
		t.Fatal("expected error for zero gateways")
	}
	if _, err := NewManager(&fakeGateway{name: ""}); err == nil {
		t.Fatal("expected error for unnamed gateway")
	}
	if _, err := NewManager(&fakeGateway{name: "razorpay"}, &fakeGateway{name: "Razorpay"}); err == nil {
		t.Fatal("expected error for duplicate registration")
	}
}

func TestManagerPropagatesGatewayErrors(t *testing.T) {
	gw := &fakeGateway{name: "razorpay", verifyErr: ErrSignatureMismatch, parseErr: ErrUnhandledEvent}
	manager, err := NewManager(gw)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	if err := manager.VerifyPayment(context.Background(), "razorpay", VerifyRequest{}); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}
	if _, err := manager.ParseWebhook("razorpay", WebhookRequest{}); !errors.Is(err, ErrUnhandledEvent) {
		t.Fatalf("expected unhandled event, got %v", err)
	}
}
