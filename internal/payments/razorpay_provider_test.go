package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func razorpaySign(t *testing.T, secret, message string) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func newTestRazorpayGateway(t *testing.T, baseURL string) *RazorpayGateway {
	t.Helper()
	gw, err := NewRazorpayGateway(RazorpayGatewayConfig{
		KeyID:         "rzp_test_key",
		KeySecret:     "checkout-secret",
		WebhookSecret: "webhook-secret",
		BaseURL:       baseURL,
		Clock:         func() time.Time { return time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new razorpay gateway: %v", err)
	}
	return gw
}

func TestRazorpayVerifyPayment(t *testing.T) {
	gw := newTestRazorpayGateway(t, "")

	signature := razorpaySign(t, "checkout-secret", "order_abc|pay_xyz")

	err := gw.VerifyPayment(context.Background(), VerifyRequest{
		ProviderOrderID:   "order_abc",
		ProviderPaymentID: "pay_xyz",
		Signature:         signature,
	})
	if err != nil {
		t.Fatalf("verify payment: %v", err)
	}

	err = gw.VerifyPayment(context.Background(), VerifyRequest{
		ProviderOrderID:   "order_abc",
		ProviderPaymentID: "pay_xyz",
		Signature:         "deadbeef",
	})
	if !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}

	err = gw.VerifyPayment(context.Background(), VerifyRequest{
		ProviderPaymentID: "pay_xyz",
		Signature:         signature,
	})
	if !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected mismatch for missing order id, got %v", err)
	}
}

func TestRazorpayParseWebhookCaptured(t *testing.T) {
	gw := newTestRazorpayGateway(t, "")

	body := `{
		"entity": "event",
		"event": "payment.captured",
		"payload": {
			"payment": {
				"entity": {
					"id": "pay_xyz",
					"order_id": "order_abc",
					"amount": 118000,
					"notes": {"orderId": "ord_internal1"}
				}
			}
		}
	}`

	event, err := gw.ParseWebhook(WebhookRequest{
		Body:      []byte(body),
		Signature: razorpaySign(t, "webhook-secret", body),
		EventID:   "evt_123",
	})
	if err != nil {
		t.Fatalf("parse webhook: %v", err)
	}

	if event.ID != "evt_123" {
		t.Errorf("unexpected event id %s", event.ID)
	}
	if event.Type != EventPaymentCaptured {
		t.Errorf("unexpected type %s", event.Type)
	}
	if event.OrderID != "ord_internal1" {
		t.Errorf("expected internal order reference from notes, got %s", event.OrderID)
	}
	if event.ProviderPaymentID != "pay_xyz" || event.Amount != 118000 {
		t.Errorf("unexpected event %#v", event)
	}
}

func TestRazorpayParseWebhookFailureCarriesReason(t *testing.T) {
	gw := newTestRazorpayGateway(t, "")

	body := `{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","error_description":"card declined","notes":{"orderId":"ord_9"}}}}}`

	event, err := gw.ParseWebhook(WebhookRequest{
		Body:      []byte(body),
		Signature: razorpaySign(t, "webhook-secret", body),
	})
	if err != nil {
		t.Fatalf("parse webhook: %v", err)
	}
	if event.Reason != "card declined" {
		t.Errorf("expected failure reason, got %q", event.Reason)
	}
	// Missing delivery header falls back to a deterministic id.
	if event.ID != "payment.failed:pay_1" {
		t.Errorf("unexpected fallback id %s", event.ID)
	}
}

func TestRazorpayParseWebhookRejectsBadSignature(t *testing.T) {
	gw := newTestRazorpayGateway(t, "")

	body := `{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1"}}}}`
	_, err := gw.ParseWebhook(WebhookRequest{
		Body:      []byte(body),
		Signature: razorpaySign(t, "wrong-secret", body),
	})
	if !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}
}

func TestRazorpayParseWebhookUnhandledEvent(t *testing.T) {
	gw := newTestRazorpayGateway(t, "")

	body := `{"event":"payment.authorized","payload":{}}`
	_, err := gw.ParseWebhook(WebhookRequest{
		Body:      []byte(body),
		Signature: razorpaySign(t, "webhook-secret", body),
	})
	if !errors.Is(err, ErrUnhandledEvent) {
		t.Fatalf("expected unhandled event, got %v", err)
	}
}

func TestRazorpayRefund(t *testing.T) {
	var gotPath, gotIdempotency string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotIdempotency = r.Header.Get("X-Razorpay-Idempotency")
		if user, pass, ok := r.BasicAuth(); !ok || user != "rzp_test_key" || pass != "checkout-secret" {
			t.Errorf("unexpected basic auth %s %s", user, pass)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"rfnd_1","created_at":1770000000}`))
	}))
	defer server.Close()

	gw := newTestRazorpayGateway(t, server.URL)

	result, err := gw.Refund(context.Background(), RefundRequest{
		ProviderPaymentID: "pay_xyz",
		Amount:            1180,
		Reason:            "requested_by_customer",
		IdempotencyKey:    "refund-ord_1",
	})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}

	if gotPath != "/payments/pay_xyz/refund" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotIdempotency != "refund-ord_1" {
		t.Errorf("unexpected idempotency key %s", gotIdempotency)
	}
	if result.RefundID != "rfnd_1" {
		t.Errorf("unexpected refund id %s", result.RefundID)
	}
	if result.ProcessedAt.IsZero() {
		t.Error("expected processedAt from response")
	}
}

func TestRazorpayRefundAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"description":"already refunded"}}`))
	}))
	defer server.Close()

	gw := newTestRazorpayGateway(t, server.URL)

	_, err := gw.Refund(context.Background(), RefundRequest{
		ProviderPaymentID: "pay_xyz",
		Amount:            1180,
	})
	if err == nil {
		t.Fatal("expected refund error")
	}
}
