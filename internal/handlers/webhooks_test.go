package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/vastrakart/api/internal/services"
)

func newWebhookServer(t *testing.T, payments services.PaymentService) *httptest.Server {
	t.Helper()
	h := NewWebhookHandlers(payments)
	router := chi.NewRouter()
	router.Route("/webhooks", h.Routes)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func postWebhook(t *testing.T, url, body string, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, payload
}

func TestWebhookHandlersRazorpayDelivery(t *testing.T) {
	var captured services.WebhookCommand
	payments := &stubPaymentService{
		webhookFn: func(_ context.Context, cmd services.WebhookCommand) (services.WebhookResult, error) {
			captured = cmd
			return services.WebhookResult{EventID: "evt_1"}, nil
		},
	}

	server := newWebhookServer(t, payments)

	body := `{"event":"payment.captured"}`
	resp, payload := postWebhook(t, server.URL+"/webhooks/payments/razorpay", body, map[string]string{
		"X-Razorpay-Signature": "sig-abc",
		"X-Razorpay-Event-Id":  "evt_1",
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %v", resp.StatusCode, payload)
	}
	if captured.Provider != "razorpay" {
		t.Errorf("unexpected provider %q", captured.Provider)
	}
	if string(captured.Body) != body {
		t.Errorf("body must be forwarded untouched, got %q", captured.Body)
	}
	if captured.Signature != "sig-abc" || captured.EventID != "evt_1" {
		t.Errorf("unexpected command %#v", captured)
	}
	if payload["received"] != true || payload["eventId"] != "evt_1" {
		t.Errorf("unexpected ack %v", payload)
	}
}

func TestWebhookHandlersStripeSignatureHeader(t *testing.T) {
	var captured services.WebhookCommand
	payments := &stubPaymentService{
		webhookFn: func(_ context.Context, cmd services.WebhookCommand) (services.WebhookResult, error) {
			captured = cmd
			return services.WebhookResult{}, nil
		},
	}

	server := newWebhookServer(t, payments)

	resp, _ := postWebhook(t, server.URL+"/webhooks/payments/stripe", `{"type":"charge.captured"}`, map[string]string{
		"Stripe-Signature": "t=1,v1=abc",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if captured.Provider != "stripe" || captured.Signature != "t=1,v1=abc" {
		t.Errorf("unexpected command %#v", captured)
	}
}

func TestWebhookHandlersDuplicateAck(t *testing.T) {
	payments := &stubPaymentService{
		webhookFn: func(context.Context, services.WebhookCommand) (services.WebhookResult, error) {
			return services.WebhookResult{EventID: "evt_1", Duplicate: true}, nil
		},
	}

	server := newWebhookServer(t, payments)

	resp, payload := postWebhook(t, server.URL+"/webhooks/payments/razorpay", `{"event":"payment.captured"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("duplicates must still be acknowledged, got %d", resp.StatusCode)
	}
	if payload["duplicate"] != true {
		t.Errorf("expected duplicate flag, got %v", payload)
	}
}

func TestWebhookHandlersSignatureMismatch(t *testing.T) {
	payments := &stubPaymentService{
		webhookFn: func(context.Context, services.WebhookCommand) (services.WebhookResult, error) {
			return services.WebhookResult{}, services.ErrPaymentSignatureMismatch
		},
	}

	server := newWebhookServer(t, payments)

	resp, payload := postWebhook(t, server.URL+"/webhooks/payments/razorpay", `{"event":"payment.captured"}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status %d: %v", resp.StatusCode, payload)
	}
	if payload["error"] != "signature_mismatch" {
		t.Errorf("unexpected error code %v", payload["error"])
	}
}

func TestWebhookHandlersIgnoredEventAck(t *testing.T) {
	payments := &stubPaymentService{
		webhookFn: func(context.Context, services.WebhookCommand) (services.WebhookResult, error) {
			return services.WebhookResult{Ignored: true}, nil
		},
	}

	server := newWebhookServer(t, payments)

	resp, payload := postWebhook(t, server.URL+"/webhooks/payments/razorpay", `{"event":"payment.authorized"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %v", resp.StatusCode, payload)
	}
	if payload["ignored"] != true {
		t.Errorf("expected ignored flag, got %v", payload)
	}
}
