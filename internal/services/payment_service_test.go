package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/payments"
)

type stubPaymentGateways struct {
	verifyFn func(context.Context, string, payments.VerifyRequest) error
	parseFn  func(string, payments.WebhookRequest) (payments.Event, error)
}

func (s *stubPaymentGateways) VerifyPayment(ctx context.Context, method string, req payments.VerifyRequest) error {
	if s.verifyFn != nil {
		return s.verifyFn(ctx, method, req)
	}
	return nil
}

func (s *stubPaymentGateways) ParseWebhook(method string, req payments.WebhookRequest) (payments.Event, error) {
	if s.parseFn != nil {
		return s.parseFn(method, req)
	}
	return payments.Event{}, payments.ErrUnhandledEvent
}

type stubWebhookEventRepo struct {
	markFn func(context.Context, domain.WebhookEvent) error
	marked []domain.WebhookEvent
}

func (s *stubWebhookEventRepo) MarkProcessed(ctx context.Context, event domain.WebhookEvent) error {
	s.marked = append(s.marked, event)
	if s.markFn != nil {
		return s.markFn(ctx, event)
	}
	return nil
}

func pendingRazorpayOrder(id string) domain.Order {
	return domain.Order{
		ID:          id,
		OrderNumber: "VK2602140001",
		UserID:      "user-1",
		Status:      domain.OrderStatusPending,
		PaymentInfo: domain.PaymentInfo{
			Method: domain.PaymentMethodRazorpay,
			Status: domain.PaymentStatusPending,
		},
		Pricing:  domain.PricingBreakdown{Subtotal: 1000, Tax: 180, ShippingCost: 100, Total: 1280},
		Timeline: []domain.TimelineEntry{{Status: domain.OrderStatusPending}},
	}
}

func newTestPaymentService(t *testing.T, orders *stubOrderRepo, gateways *stubPaymentGateways, webhookEvents *stubWebhookEventRepo, events *captureOrderEvents) PaymentService {
	t.Helper()
	if webhookEvents == nil {
		webhookEvents = &stubWebhookEventRepo{}
	}
	deps := PaymentServiceDeps{
		Orders:        orders,
		WebhookEvents: webhookEvents,
		Gateways:      gateways,
		UnitOfWork:    &stubUnitOfWork{},
		Clock:         func() time.Time { return time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC) },
	}
	if events != nil {
		deps.Events = events
	}
	svc, err := NewPaymentService(deps)
	if err != nil {
		t.Fatalf("new payment service: %v", err)
	}
	return svc
}

func TestPaymentServiceVerifyPaymentConfirmsOrder(t *testing.T) {
	var updated domain.Order
	orders := &stubOrderRepo{
		findFn: func(_ context.Context, id string) (domain.Order, error) {
			return pendingRazorpayOrder(id), nil
		},
		updateFn: func(_ context.Context, order domain.Order) error {
			updated = order
			return nil
		},
	}

	var verified payments.VerifyRequest
	gateways := &stubPaymentGateways{
		verifyFn: func(_ context.Context, method string, req payments.VerifyRequest) error {
			if method != "razorpay" {
				t.Fatalf("unexpected method %s", method)
			}
			verified = req
			return nil
		},
	}

	events := &captureOrderEvents{}
	svc := newTestPaymentService(t, orders, gateways, nil, events)

	order, err := svc.VerifyPayment(context.Background(), VerifyPaymentCommand{
		OrderID:           "ord_1",
		Actor:             Actor{UserID: "user-1"},
		ProviderOrderID:   "order_rzp1",
		ProviderPaymentID: "pay_rzp1",
		Signature:         "sig-abc",
	})
	if err != nil {
		t.Fatalf("verify payment: %v", err)
	}

	if verified.ProviderPaymentID != "pay_rzp1" || verified.Signature != "sig-abc" {
		t.Errorf("unexpected verify request %#v", verified)
	}
	if order.PaymentInfo.Status != domain.PaymentStatusCompleted {
		t.Errorf("expected completed payment, got %s", order.PaymentInfo.Status)
	}
	if order.Status != domain.OrderStatusConfirmed {
		t.Errorf("expected confirmed order, got %s", order.Status)
	}
	if order.PaymentInfo.PaidAt == nil {
		t.Error("expected paidAt stamped")
	}
	if updated.PaymentInfo.ProviderPayID != "pay_rzp1" {
		t.Errorf("expected references persisted, got %#v", updated.PaymentInfo)
	}
	if len(events.events) != 1 || events.events[0].Type != paymentEventVerified {
		t.Errorf("expected payment.verified event, got %#v", events.events)
	}
}

func TestPaymentServiceVerifyPaymentSignatureMismatch(t *testing.T) {
	orders := &stubOrderRepo{
		findFn: func(_ context.Context, id string) (domain.Order, error) {
			return pendingRazorpayOrder(id), nil
		},
		updateFn: func(_ context.Context, order domain.Order) error {
			t.Fatalf("no update expected on mismatch, got %#v", order)
			return nil
		},
	}
	gateways := &stubPaymentGateways{
		verifyFn: func(context.Context, string, payments.VerifyRequest) error {
			return payments.ErrSignatureMismatch
		},
	}

	svc := newTestPaymentService(t, orders, gateways, nil, nil)

	_, err := svc.VerifyPayment(context.Background(), VerifyPaymentCommand{
		OrderID:           "ord_1",
		Actor:             Actor{UserID: "user-1"},
		ProviderPaymentID: "pay_bad",
		Signature:         "forged",
	})
	if !errors.Is(err, ErrPaymentSignatureMismatch) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}
}

func TestPaymentServiceVerifyPaymentIdempotent(t *testing.T) {
	paidAt := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)
	order := pendingRazorpayOrder("ord_1")
	order.Status = domain.OrderStatusConfirmed
	order.PaymentInfo.Status = domain.PaymentStatusCompleted
	order.PaymentInfo.ProviderPayID = "pay_rzp1"
	order.PaymentInfo.PaidAt = &paidAt

	orders := &stubOrderRepo{
		findFn: func(context.Context, string) (domain.Order, error) {
			return order, nil
		},
		updateFn: func(_ context.Context, o domain.Order) error {
			t.Fatalf("re-verification must not write, got %#v", o)
			return nil
		},
	}
	gateways := &stubPaymentGateways{
		verifyFn: func(context.Context, string, payments.VerifyRequest) error {
			t.Fatal("gateway must not be called for a captured payment")
			return nil
		},
	}

	svc := newTestPaymentService(t, orders, gateways, nil, nil)

	got, err := svc.VerifyPayment(context.Background(), VerifyPaymentCommand{
		OrderID:           "ord_1",
		Actor:             Actor{UserID: "user-1"},
		ProviderPaymentID: "pay_rzp1",
		Signature:         "sig",
	})
	if err != nil {
		t.Fatalf("re-verify: %v", err)
	}
	if got.PaymentInfo.Status != domain.PaymentStatusCompleted {
		t.Errorf("expected completed, got %s", got.PaymentInfo.Status)
	}

	// Different references against a captured payment must be rejected.
	if _, err := svc.VerifyPayment(context.Background(), VerifyPaymentCommand{
		OrderID:           "ord_1",
		Actor:             Actor{UserID: "user-1"},
		ProviderPaymentID: "pay_other",
		Signature:         "sig",
	}); !errors.Is(err, ErrPaymentInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestPaymentServiceVerifyPaymentRejectsCOD(t *testing.T) {
	order := pendingRazorpayOrder("ord_1")
	order.PaymentInfo.Method = domain.PaymentMethodCOD
	orders := &stubOrderRepo{
		findFn: func(context.Context, string) (domain.Order, error) {
			return order, nil
		},
	}

	svc := newTestPaymentService(t, orders, &stubPaymentGateways{}, nil, nil)

	_, err := svc.VerifyPayment(context.Background(), VerifyPaymentCommand{
		OrderID:           "ord_1",
		Actor:             Actor{UserID: "user-1"},
		ProviderPaymentID: "pay_1",
	})
	if !errors.Is(err, ErrPaymentInvalidState) {
		t.Fatalf("expected invalid state for cod, got %v", err)
	}
}

func TestPaymentServiceVerifyPaymentForbidden(t *testing.T) {
	orders := &stubOrderRepo{
		findFn: func(_ context.Context, id string) (domain.Order, error) {
			return pendingRazorpayOrder(id), nil
		},
	}

	svc := newTestPaymentService(t, orders, &stubPaymentGateways{}, nil, nil)

	_, err := svc.VerifyPayment(context.Background(), VerifyPaymentCommand{
		OrderID:           "ord_1",
		Actor:             Actor{UserID: "someone-else"},
		ProviderPaymentID: "pay_1",
	})
	if !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestPaymentServiceHandleWebhookCaptured(t *testing.T) {
	var updated domain.Order
	orders := &stubOrderRepo{
		findFn: func(_ context.Context, id string) (domain.Order, error) {
			return pendingRazorpayOrder(id), nil
		},
		updateFn: func(_ context.Context, order domain.Order) error {
			updated = order
			return nil
		},
	}
	gateways := &stubPaymentGateways{
		parseFn: func(method string, req payments.WebhookRequest) (payments.Event, error) {
			if method != "razorpay" {
				t.Fatalf("unexpected method %s", method)
			}
			return payments.Event{
				ID:                "evt_1",
				Type:              payments.EventPaymentCaptured,
				OrderID:           "ord_1",
				ProviderPaymentID: "pay_hook",
				Amount:            1280,
			}, nil
		},
	}
	webhookEvents := &stubWebhookEventRepo{}

	svc := newTestPaymentService(t, orders, gateways, webhookEvents, nil)

	result, err := svc.HandleWebhook(context.Background(), WebhookCommand{
		Provider:  "razorpay",
		Body:      []byte(`{"event":"payment.captured"}`),
		Signature: "sig",
		EventID:   "evt_1",
	})
	if err != nil {
		t.Fatalf("handle webhook: %v", err)
	}

	if result.Duplicate || result.Ignored {
		t.Errorf("unexpected result flags %#v", result)
	}
	if result.EventID != "evt_1" || result.OrderID != "ord_1" {
		t.Errorf("unexpected result %#v", result)
	}
	if len(webhookEvents.marked) != 1 || webhookEvents.marked[0].ID != "evt_1" {
		t.Errorf("expected event claim, got %#v", webhookEvents.marked)
	}
	if updated.PaymentInfo.Status != domain.PaymentStatusCompleted {
		t.Errorf("expected completed payment, got %s", updated.PaymentInfo.Status)
	}
	if updated.Status != domain.OrderStatusConfirmed {
		t.Errorf("expected confirmed order, got %s", updated.Status)
	}
	if updated.PaymentInfo.ProviderPayID != "pay_hook" {
		t.Errorf("expected payment id recorded, got %s", updated.PaymentInfo.ProviderPayID)
	}
}

func TestPaymentServiceHandleWebhookDuplicate(t *testing.T) {
	orders := &stubOrderRepo{
		findFn: func(_ context.Context, id string) (domain.Order, error) {
			t.Fatal("duplicate delivery must not read the order")
			return domain.Order{}, nil
		},
	}
	gateways := &stubPaymentGateways{
		parseFn: func(string, payments.WebhookRequest) (payments.Event, error) {
			return payments.Event{ID: "evt_1", Type: payments.EventPaymentCaptured, OrderID: "ord_1"}, nil
		},
	}
	webhookEvents := &stubWebhookEventRepo{
		markFn: func(context.Context, domain.WebhookEvent) error {
			return &repoError{conflict: true}
		},
	}

	svc := newTestPaymentService(t, orders, gateways, webhookEvents, nil)

	result, err := svc.HandleWebhook(context.Background(), WebhookCommand{
		Provider: "razorpay",
		Body:     []byte(`{}`),
		EventID:  "evt_1",
	})
	if err != nil {
		t.Fatalf("handle webhook: %v", err)
	}
	if !result.Duplicate {
		t.Error("expected duplicate flag")
	}
}

func TestPaymentServiceHandleWebhookIgnoresUnhandled(t *testing.T) {
	gateways := &stubPaymentGateways{
		parseFn: func(string, payments.WebhookRequest) (payments.Event, error) {
			return payments.Event{}, payments.ErrUnhandledEvent
		},
	}

	svc := newTestPaymentService(t, &stubOrderRepo{}, gateways, nil, nil)

	result, err := svc.HandleWebhook(context.Background(), WebhookCommand{Provider: "razorpay", Body: []byte(`{}`)})
	if err != nil {
		t.Fatalf("handle webhook: %v", err)
	}
	if !result.Ignored {
		t.Error("expected ignored flag")
	}
}

func TestPaymentServiceHandleWebhookSignatureMismatch(t *testing.T) {
	gateways := &stubPaymentGateways{
		parseFn: func(string, payments.WebhookRequest) (payments.Event, error) {
			return payments.Event{}, payments.ErrSignatureMismatch
		},
	}

	svc := newTestPaymentService(t, &stubOrderRepo{}, gateways, nil, nil)

	_, err := svc.HandleWebhook(context.Background(), WebhookCommand{Provider: "razorpay", Body: []byte(`{}`)})
	if !errors.Is(err, ErrPaymentSignatureMismatch) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}
}

func TestPaymentServiceHandleWebhookStaleFailureSkipped(t *testing.T) {
	order := pendingRazorpayOrder("ord_1")
	order.Status = domain.OrderStatusConfirmed
	order.PaymentInfo.Status = domain.PaymentStatusCompleted

	orders := &stubOrderRepo{
		findFn: func(context.Context, string) (domain.Order, error) {
			return order, nil
		},
		updateFn: func(_ context.Context, o domain.Order) error {
			t.Fatalf("stale failure must not write, got %#v", o.PaymentInfo)
			return nil
		},
	}
	gateways := &stubPaymentGateways{
		parseFn: func(string, payments.WebhookRequest) (payments.Event, error) {
			return payments.Event{ID: "evt_2", Type: payments.EventPaymentFailed, OrderID: "ord_1", Reason: "card declined"}, nil
		},
	}

	svc := newTestPaymentService(t, orders, gateways, nil, nil)

	if _, err := svc.HandleWebhook(context.Background(), WebhookCommand{Provider: "razorpay", Body: []byte(`{}`)}); err != nil {
		t.Fatalf("handle webhook: %v", err)
	}
}

func TestPaymentServiceHandleWebhookPaymentFailed(t *testing.T) {
	var updated domain.Order
	orders := &stubOrderRepo{
		findFn: func(_ context.Context, id string) (domain.Order, error) {
			return pendingRazorpayOrder(id), nil
		},
		updateFn: func(_ context.Context, order domain.Order) error {
			updated = order
			return nil
		},
	}
	gateways := &stubPaymentGateways{
		parseFn: func(string, payments.WebhookRequest) (payments.Event, error) {
			return payments.Event{ID: "evt_3", Type: payments.EventPaymentFailed, OrderID: "ord_1", Reason: "card declined"}, nil
		},
	}

	svc := newTestPaymentService(t, orders, gateways, nil, nil)

	if _, err := svc.HandleWebhook(context.Background(), WebhookCommand{Provider: "razorpay", Body: []byte(`{}`)}); err != nil {
		t.Fatalf("handle webhook: %v", err)
	}
	if updated.PaymentInfo.Status != domain.PaymentStatusFailed {
		t.Errorf("expected failed payment, got %s", updated.PaymentInfo.Status)
	}
	if updated.PaymentInfo.FailureReason != "card declined" {
		t.Errorf("expected failure reason recorded, got %q", updated.PaymentInfo.FailureReason)
	}
	if updated.Status != domain.OrderStatusPending {
		t.Errorf("order status must not change on failure, got %s", updated.Status)
	}
}

func TestPaymentServiceHandleWebhookRefundProcessed(t *testing.T) {
	order := pendingRazorpayOrder("ord_1")
	order.Status = domain.OrderStatusCancelled
	order.PaymentInfo.Status = domain.PaymentStatusCompleted
	order.Cancellation = &domain.Cancellation{
		Reason:       "wrong size",
		RefundStatus: domain.RefundStatusPending,
		RefundAmount: 1280,
	}

	var updated domain.Order
	orders := &stubOrderRepo{
		findFn: func(context.Context, string) (domain.Order, error) {
			return order, nil
		},
		updateFn: func(_ context.Context, o domain.Order) error {
			updated = o
			return nil
		},
	}
	gateways := &stubPaymentGateways{
		parseFn: func(string, payments.WebhookRequest) (payments.Event, error) {
			return payments.Event{ID: "evt_4", Type: payments.EventRefundProcessed, OrderID: "ord_1", Amount: 1280}, nil
		},
	}

	svc := newTestPaymentService(t, orders, gateways, nil, nil)

	if _, err := svc.HandleWebhook(context.Background(), WebhookCommand{Provider: "razorpay", Body: []byte(`{}`)}); err != nil {
		t.Fatalf("handle webhook: %v", err)
	}
	if updated.PaymentInfo.Status != domain.PaymentStatusRefunded {
		t.Errorf("expected refunded, got %s", updated.PaymentInfo.Status)
	}
	if updated.Cancellation == nil || updated.Cancellation.RefundStatus != domain.RefundStatusProcessed {
		t.Errorf("expected refund bookkeeping settled, got %#v", updated.Cancellation)
	}
}

func TestPaymentServiceHandleWebhookMissingOrderIgnored(t *testing.T) {
	gateways := &stubPaymentGateways{
		parseFn: func(string, payments.WebhookRequest) (payments.Event, error) {
			return payments.Event{ID: "evt_5", Type: payments.EventPaymentCaptured}, nil
		},
	}
	webhookEvents := &stubWebhookEventRepo{}

	svc := newTestPaymentService(t, &stubOrderRepo{}, gateways, webhookEvents, nil)

	result, err := svc.HandleWebhook(context.Background(), WebhookCommand{Provider: "razorpay", Body: []byte(`{}`)})
	if err != nil {
		t.Fatalf("handle webhook: %v", err)
	}
	if !result.Ignored {
		t.Error("expected ignored flag for missing order reference")
	}
	if len(webhookEvents.marked) != 0 {
		t.Errorf("event without order must not be claimed, got %#v", webhookEvents.marked)
	}
}
