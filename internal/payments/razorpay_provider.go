package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const razorpayAPIBaseURL = "https://api.razorpay.com/v1"

// RazorpayLogger defines the logging contract for Razorpay gateway operations.
type RazorpayLogger func(ctx context.Context, event string, fields map[string]any)

// RazorpayGatewayConfig configures the RazorpayGateway.
type RazorpayGatewayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
	HTTPClient    *http.Client
	Logger        RazorpayLogger
	Clock         func() time.Time
}

// RazorpayGateway implements the Gateway interface against the Razorpay REST API.
// Checkout signatures and webhook deliveries are verified locally with
// HMAC-SHA256 over the shared secrets; refunds call the API.
type RazorpayGateway struct {
	keyID         string
	keySecret     string
	webhookSecret string
	baseURL       string
	httpClient    *http.Client
	logger        RazorpayLogger
	clock         func() time.Time
}

// NewRazorpayGateway constructs a Razorpay Gateway using the given configuration.
func NewRazorpayGateway(cfg RazorpayGatewayConfig) (*RazorpayGateway, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keyID == "" || keySecret == "" {
		return nil, errors.New("razorpay: key id and key secret are required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = razorpayAPIBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		webhookSecret = keySecret
	}

	return &RazorpayGateway{
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		baseURL:       baseURL,
		httpClient:    httpClient,
		logger:        logger,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// Name returns the registry key for the gateway.
func (g *RazorpayGateway) Name() string { return "razorpay" }

// VerifyPayment recomputes the checkout signature over
// "<order_id>|<payment_id>" and compares it in constant time.
func (g *RazorpayGateway) VerifyPayment(_ context.Context, req VerifyRequest) error {
	if g == nil {
		return errors.New("razorpay: gateway is nil")
	}
	orderID := strings.TrimSpace(req.ProviderOrderID)
	paymentID := strings.TrimSpace(req.ProviderPaymentID)
	if orderID == "" || paymentID == "" || strings.TrimSpace(req.Signature) == "" {
		return ErrSignatureMismatch
	}

	expected := signHMAC(g.keySecret, orderID+"|"+paymentID)
	if !hmac.Equal([]byte(expected), []byte(strings.TrimSpace(req.Signature))) {
		return ErrSignatureMismatch
	}
	return nil
}

type razorpayWebhookPayload struct {
	Entity  string `json:"entity"`
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string            `json:"id"`
				OrderID          string            `json:"order_id"`
				Amount           int64             `json:"amount"`
				ErrorDescription string            `json:"error_description"`
				Notes            map[string]string `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity struct {
				ID        string            `json:"id"`
				PaymentID string            `json:"payment_id"`
				Amount    int64             `json:"amount"`
				Notes     map[string]string `json:"notes"`
			} `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

// ParseWebhook verifies the delivery signature over the raw body and
// normalises the Razorpay event envelope.
func (g *RazorpayGateway) ParseWebhook(req WebhookRequest) (Event, error) {
	if g == nil {
		return Event{}, errors.New("razorpay: gateway is nil")
	}
	if len(req.Body) == 0 {
		return Event{}, errors.New("razorpay: webhook body is empty")
	}

	expected := signHMAC(g.webhookSecret, string(req.Body))
	if !hmac.Equal([]byte(expected), []byte(strings.TrimSpace(req.Signature))) {
		return Event{}, ErrSignatureMismatch
	}

	var payload razorpayWebhookPayload
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		return Event{}, fmt.Errorf("razorpay: decode webhook payload: %w", err)
	}

	event := Event{
		ID:   strings.TrimSpace(req.EventID),
		Type: payload.Event,
	}

	switch payload.Event {
	case EventPaymentCaptured, EventPaymentFailed:
		payment := payload.Payload.Payment.Entity
		event.ProviderOrderID = payment.OrderID
		event.ProviderPaymentID = payment.ID
		event.Amount = payment.Amount
		event.OrderID = payment.Notes["orderId"]
		if payload.Event == EventPaymentFailed {
			event.Reason = payment.ErrorDescription
		}
	case EventRefundProcessed:
		refund := payload.Payload.Refund.Entity
		event.ProviderPaymentID = refund.PaymentID
		event.Amount = refund.Amount
		event.OrderID = refund.Notes["orderId"]
	default:
		return Event{}, ErrUnhandledEvent
	}

	if event.ID == "" {
		// Razorpay carries the delivery id in a header; fall back to the
		// payment reference so replays of the same capture still dedupe.
		event.ID = fmt.Sprintf("%s:%s", payload.Event, event.ProviderPaymentID)
	}
	return event, nil
}

// Refund issues a refund against the captured payment.
func (g *RazorpayGateway) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	if g == nil {
		return RefundResult{}, errors.New("razorpay: gateway is nil")
	}
	paymentID := strings.TrimSpace(req.ProviderPaymentID)
	if paymentID == "" {
		return RefundResult{}, errors.New("razorpay: payment id is required")
	}
	if req.Amount <= 0 {
		return RefundResult{}, errors.New("razorpay: refund amount must be > 0")
	}

	body := map[string]any{
		"amount": req.Amount,
	}
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		body["notes"] = map[string]string{"reason": reason}
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return RefundResult{}, fmt.Errorf("razorpay: encode refund request: %w", err)
	}

	url := fmt.Sprintf("%s/payments/%s/refund", g.baseURL, paymentID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return RefundResult{}, fmt.Errorf("razorpay: build refund request: %w", err)
	}
	httpReq.SetBasicAuth(g.keyID, g.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		httpReq.Header.Set("X-Razorpay-Idempotency", key)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return RefundResult{}, fmt.Errorf("razorpay: refund request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return RefundResult{}, fmt.Errorf("razorpay: read refund response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return RefundResult{}, fmt.Errorf("razorpay: refund failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var refund struct {
		ID        string `json:"id"`
		CreatedAt int64  `json:"created_at"`
	}
	if err := json.Unmarshal(payload, &refund); err != nil {
		return RefundResult{}, fmt.Errorf("razorpay: decode refund response: %w", err)
	}

	processedAt := g.clock()
	if refund.CreatedAt > 0 {
		processedAt = time.Unix(refund.CreatedAt, 0).UTC()
	}

	g.logger(ctx, "payments.razorpay.refund.created", map[string]any{
		"paymentId": paymentID,
		"refundId":  refund.ID,
		"amount":    req.Amount,
	})

	return RefundResult{RefundID: refund.ID, ProcessedAt: processedAt}, nil
}

func signHMAC(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
