package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vastrakart/api/internal/platform/httpx"
	"github.com/vastrakart/api/internal/services"
)

const maxWebhookBodySize = 256 * 1024

// WebhookHandlers receives asynchronous payment gateway notifications.
type WebhookHandlers struct {
	payments services.PaymentService
}

// NewWebhookHandlers constructs a new WebhookHandlers instance.
func NewWebhookHandlers(payments services.PaymentService) *WebhookHandlers {
	return &WebhookHandlers{payments: payments}
}

// Routes registers the /webhooks endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/payments/{provider}", h.handlePaymentWebhook)
}

type webhookAckResponse struct {
	Received  bool   `json:"received"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Ignored   bool   `json:"ignored,omitempty"`
	EventID   string `json:"eventId,omitempty"`
}

func (h *WebhookHandlers) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	provider := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))
	if provider == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "provider is required", http.StatusBadRequest))
		return
	}

	// The raw body bytes must be kept intact; both gateways sign the exact payload.
	body, err := readLimitedBody(r, maxWebhookBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.WebhookCommand{
		Provider: provider,
		Body:     body,
	}
	switch provider {
	case "razorpay":
		cmd.Signature = strings.TrimSpace(r.Header.Get("X-Razorpay-Signature"))
		cmd.EventID = strings.TrimSpace(r.Header.Get("X-Razorpay-Event-Id"))
	case "stripe":
		cmd.Signature = strings.TrimSpace(r.Header.Get("Stripe-Signature"))
	default:
		cmd.Signature = strings.TrimSpace(r.Header.Get("X-Webhook-Signature"))
	}

	result, err := h.payments.HandleWebhook(ctx, cmd)
	if err != nil {
		writeWebhookError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, webhookAckResponse{
		Received:  true,
		Duplicate: result.Duplicate,
		Ignored:   result.Ignored,
		EventID:   strings.TrimSpace(result.EventID),
	})
}

func writeWebhookError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrPaymentSignatureMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("signature_mismatch", "webhook signature verification failed", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("webhook_error", "failed to process webhook", http.StatusInternalServerError))
	}
}
