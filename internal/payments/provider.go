package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Normalised webhook event types shared across gateways.
const (
	// EventPaymentCaptured signals the gateway captured the payment.
	EventPaymentCaptured = "payment.captured"
	// EventPaymentFailed signals a terminal payment failure.
	EventPaymentFailed = "payment.failed"
	// EventRefundProcessed signals a refund has settled.
	EventRefundProcessed = "refund.processed"
)

// ErrUnsupportedProvider is returned when the manager cannot locate a gateway.
var ErrUnsupportedProvider = errors.New("payments: unsupported provider")

// ErrSignatureMismatch is returned when a gateway signature fails verification.
var ErrSignatureMismatch = errors.New("payments: signature mismatch")

// ErrUnhandledEvent is returned for webhook event types the system ignores.
var ErrUnhandledEvent = errors.New("payments: unhandled event type")

// VerifyRequest carries the client-reported payment references to verify.
type VerifyRequest struct {
	ProviderOrderID   string
	ProviderPaymentID string
	Signature         string
}

// WebhookRequest carries the raw webhook delivery for verification and parsing.
type WebhookRequest struct {
	Body      []byte
	Signature string
	EventID   string
}

// Event is the normalised result of a verified webhook delivery.
type Event struct {
	ID                string
	Type              string
	OrderID           string
	ProviderOrderID   string
	ProviderPaymentID string
	Amount            int64
	Reason            string
	Raw               map[string]any
}

// RefundRequest defines a gateway refund attempt.
type RefundRequest struct {
	ProviderPaymentID string
	Amount            int64
	Reason            string
	IdempotencyKey    string
}

// RefundResult reports the gateway's view of the refund.
type RefundResult struct {
	RefundID    string
	ProcessedAt time.Time
}

// Gateway is the contract payment provider adapters implement.
type Gateway interface {
	// Name returns the registry key for the gateway.
	Name() string
	// VerifyPayment checks the client-reported payment references against the
	// gateway. A bad signature returns ErrSignatureMismatch.
	VerifyPayment(ctx context.Context, req VerifyRequest) error
	// ParseWebhook verifies the delivery signature over the raw body and
	// normalises the event. A bad signature returns ErrSignatureMismatch;
	// event types the system ignores return ErrUnhandledEvent.
	ParseWebhook(req WebhookRequest) (Event, error)
	// Refund returns the captured amount to the customer.
	Refund(ctx context.Context, req RefundRequest) (RefundResult, error)
}

// Manager routes payment operations to the gateway registered for a method.
type Manager struct {
	gateways map[string]Gateway
}

// NewManager constructs a Manager over the supplied gateways.
func NewManager(gateways ...Gateway) (*Manager, error) {
	if len(gateways) == 0 {
		return nil, errors.New("payments: at least one gateway is required")
	}
	registry := make(map[string]Gateway, len(gateways))
	for _, gw := range gateways {
		if gw == nil {
			return nil, errors.New("payments: nil gateway registration")
		}
		key := strings.TrimSpace(strings.ToLower(gw.Name()))
		if key == "" {
			return nil, errors.New("payments: gateway name is required")
		}
		if _, exists := registry[key]; exists {
			return nil, fmt.Errorf("payments: duplicate gateway registration %q", key)
		}
		registry[key] = gw
	}
	return &Manager{gateways: registry}, nil
}

// Gateway resolves the gateway registered under the given method key.
func (m *Manager) Gateway(method string) (Gateway, error) {
	if m == nil || len(m.gateways) == 0 {
		return nil, errors.New("payments: no gateways registered")
	}
	gw, ok := m.gateways[strings.TrimSpace(strings.ToLower(method))]
	if !ok {
		return nil, ErrUnsupportedProvider
	}
	return gw, nil
}

// VerifyPayment delegates to the gateway for the method.
func (m *Manager) VerifyPayment(ctx context.Context, method string, req VerifyRequest) error {
	gw, err := m.Gateway(method)
	if err != nil {
		return err
	}
	return gw.VerifyPayment(ctx, req)
}

// ParseWebhook delegates to the gateway for the method.
func (m *Manager) ParseWebhook(method string, req WebhookRequest) (Event, error) {
	gw, err := m.Gateway(method)
	if err != nil {
		return Event{}, err
	}
	return gw.ParseWebhook(req)
}

// Refund delegates to the gateway for the method.
func (m *Manager) Refund(ctx context.Context, method string, req RefundRequest) (RefundResult, error) {
	gw, err := m.Gateway(method)
	if err != nil {
		return RefundResult{}, err
	}
	return gw.Refund(ctx, req)
}
