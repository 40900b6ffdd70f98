package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/payments"
	"github.com/vastrakart/api/internal/repositories"
)

const (
	paymentEventVerified = "payment.verified"
	paymentEventWebhook  = "payment.webhook.processed"
)

var (
	// ErrPaymentSignatureMismatch indicates the gateway signature failed verification.
	ErrPaymentSignatureMismatch = errors.New("payment: signature mismatch")
	// ErrPaymentInvalidState indicates the payment cannot move to the requested state.
	ErrPaymentInvalidState = errors.New("payment: invalid state")
)

// paymentStateTransitions is the forward-only settlement table. A late
// payment.failed can never demote a verified payment.
var paymentStateTransitions = map[domain.PaymentStatus][]domain.PaymentStatus{
	domain.PaymentStatusPending:   {domain.PaymentStatusCompleted, domain.PaymentStatusFailed},
	domain.PaymentStatusCompleted: {domain.PaymentStatusRefunded},
}

// PaymentGateways is the slice of the payment manager the service depends on.
type PaymentGateways interface {
	VerifyPayment(ctx context.Context, method string, req payments.VerifyRequest) error
	ParseWebhook(method string, req payments.WebhookRequest) (payments.Event, error)
}

// PaymentServiceDeps bundles collaborators required to construct the payment service.
type PaymentServiceDeps struct {
	Orders        repositories.OrderRepository
	WebhookEvents repositories.WebhookEventRepository
	Gateways      PaymentGateways
	UnitOfWork    repositories.UnitOfWork
	Clock         func() time.Time
	Events        OrderEventPublisher
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type paymentService struct {
	orders        repositories.OrderRepository
	webhookEvents repositories.WebhookEventRepository
	gateways      PaymentGateways
	unitOfWork    repositories.UnitOfWork
	clock         func() time.Time
	events        OrderEventPublisher
	logger        func(context.Context, string, map[string]any)
}

// NewPaymentService wires dependencies into a concrete PaymentService implementation.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment service: order repository is required")
	}
	if deps.Gateways == nil {
		return nil, errors.New("payment service: payment gateways are required")
	}
	if deps.WebhookEvents == nil {
		return nil, errors.New("payment service: webhook event repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &paymentService{
		orders:        deps.Orders,
		webhookEvents: deps.WebhookEvents,
		gateways:      deps.Gateways,
		unitOfWork:    unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		events: deps.Events,
		logger: logger,
	}, nil
}

// VerifyPayment checks the client-reported gateway references and, on success,
// marks the payment captured and confirms the order. Re-verifying an already
// captured payment with the same references is a no-op success.
func (s *paymentService) VerifyPayment(ctx context.Context, cmd VerifyPaymentCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(cmd.ProviderPaymentID) == "" {
		return domain.Order{}, fmt.Errorf("%w: provider payment id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	if !cmd.Actor.Admin && order.UserID != cmd.Actor.UserID {
		return domain.Order{}, fmt.Errorf("%w: order %s", ErrOrderForbidden, orderID)
	}

	method := order.PaymentInfo.Method
	if method != domain.PaymentMethodRazorpay && method != domain.PaymentMethodStripe {
		return domain.Order{}, fmt.Errorf("%w: %s orders have no gateway verification", ErrPaymentInvalidState, method)
	}

	if order.PaymentInfo.Status == domain.PaymentStatusCompleted {
		if order.PaymentInfo.ProviderPayID == strings.TrimSpace(cmd.ProviderPaymentID) {
			return order, nil
		}
		return domain.Order{}, fmt.Errorf("%w: payment already captured with different references", ErrPaymentInvalidState)
	}

	err = s.gateways.VerifyPayment(ctx, string(method), payments.VerifyRequest{
		ProviderOrderID:   strings.TrimSpace(cmd.ProviderOrderID),
		ProviderPaymentID: strings.TrimSpace(cmd.ProviderPaymentID),
		Signature:         strings.TrimSpace(cmd.Signature),
	})
	if err != nil {
		if errors.Is(err, payments.ErrSignatureMismatch) {
			return domain.Order{}, fmt.Errorf("%w: order %s", ErrPaymentSignatureMismatch, orderID)
		}
		return domain.Order{}, fmt.Errorf("payment: gateway verification: %w", err)
	}

	now := s.now()
	var updated domain.Order

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if current.PaymentInfo.Status == domain.PaymentStatusCompleted {
			updated = current
			return nil
		}
		if !canPaymentTransition(current.PaymentInfo.Status, domain.PaymentStatusCompleted) {
			return fmt.Errorf("%w: payment is %s", ErrPaymentInvalidState, current.PaymentInfo.Status)
		}

		current.PaymentInfo.Status = domain.PaymentStatusCompleted
		current.PaymentInfo.ProviderOrderID = strings.TrimSpace(cmd.ProviderOrderID)
		current.PaymentInfo.ProviderPayID = strings.TrimSpace(cmd.ProviderPaymentID)
		current.PaymentInfo.Signature = strings.TrimSpace(cmd.Signature)
		current.PaymentInfo.PaidAt = &now

		if err := applyStatusTransition(&current, domain.OrderStatusConfirmed, now); err != nil {
			return err
		}
		if err := s.orders.Update(txCtx, current); err != nil {
			return s.mapRepositoryError(err)
		}
		updated = current
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          paymentEventVerified,
		OrderID:       updated.ID,
		OrderNumber:   updated.OrderNumber,
		CurrentStatus: updated.Status,
		ActorID:       cmd.Actor.UserID,
		OccurredAt:    now,
	})

	return updated, nil
}

// HandleWebhook verifies the delivery, deduplicates it by event id, and
// applies the settlement change. Redeliveries acknowledge without effect.
func (s *paymentService) HandleWebhook(ctx context.Context, cmd WebhookCommand) (WebhookResult, error) {
	event, err := s.gateways.ParseWebhook(cmd.Provider, payments.WebhookRequest{
		Body:      cmd.Body,
		Signature: cmd.Signature,
		EventID:   cmd.EventID,
	})
	if err != nil {
		if errors.Is(err, payments.ErrUnhandledEvent) {
			return WebhookResult{Ignored: true}, nil
		}
		if errors.Is(err, payments.ErrSignatureMismatch) {
			return WebhookResult{}, fmt.Errorf("%w: %s webhook", ErrPaymentSignatureMismatch, cmd.Provider)
		}
		return WebhookResult{}, err
	}

	result := WebhookResult{
		EventID:   event.ID,
		EventType: event.Type,
		OrderID:   event.OrderID,
	}

	if strings.TrimSpace(event.OrderID) == "" {
		s.logger(ctx, "payment.webhook.order.missing", map[string]any{
			"provider": cmd.Provider,
			"eventId":  event.ID,
			"type":     event.Type,
		})
		result.Ignored = true
		return result, nil
	}

	err = s.webhookEvents.MarkProcessed(ctx, domain.WebhookEvent{
		ID:          event.ID,
		Provider:    strings.ToLower(strings.TrimSpace(cmd.Provider)),
		EventType:   event.Type,
		OrderID:     event.OrderID,
		ProcessedAt: s.now(),
	})
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			result.Duplicate = true
			return result, nil
		}
		return WebhookResult{}, s.mapRepositoryError(err)
	}

	if err := s.applyWebhookEvent(ctx, event); err != nil {
		return WebhookResult{}, err
	}
	return result, nil
}

func (s *paymentService) applyWebhookEvent(ctx context.Context, event payments.Event) error {
	now := s.now()
	var updated domain.Order
	var prevStatus domain.OrderStatus

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, event.OrderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		prevStatus = order.Status

		switch event.Type {
		case payments.EventPaymentCaptured:
			if order.PaymentInfo.Status == domain.PaymentStatusCompleted {
				updated = order
				return nil
			}
			if !canPaymentTransition(order.PaymentInfo.Status, domain.PaymentStatusCompleted) {
				s.logger(txCtx, "payment.webhook.capture.skipped", map[string]any{
					"orderId": order.ID,
					"status":  string(order.PaymentInfo.Status),
				})
				updated = order
				return nil
			}
			order.PaymentInfo.Status = domain.PaymentStatusCompleted
			if event.ProviderOrderID != "" {
				order.PaymentInfo.ProviderOrderID = event.ProviderOrderID
			}
			if event.ProviderPaymentID != "" {
				order.PaymentInfo.ProviderPayID = event.ProviderPaymentID
			}
			order.PaymentInfo.PaidAt = &now
			if order.Status == domain.OrderStatusPending {
				if err := applyStatusTransition(&order, domain.OrderStatusConfirmed, now); err != nil {
					return err
				}
			}

		case payments.EventPaymentFailed:
			if !canPaymentTransition(order.PaymentInfo.Status, domain.PaymentStatusFailed) {
				// A failure delivered after capture is stale; settlement never
				// moves backwards.
				s.logger(txCtx, "payment.webhook.failure.skipped", map[string]any{
					"orderId": order.ID,
					"status":  string(order.PaymentInfo.Status),
				})
				updated = order
				return nil
			}
			order.PaymentInfo.Status = domain.PaymentStatusFailed
			order.PaymentInfo.FailureReason = strings.TrimSpace(event.Reason)
			order.UpdatedAt = now

		case payments.EventRefundProcessed:
			if order.PaymentInfo.Status == domain.PaymentStatusRefunded {
				updated = order
				return nil
			}
			if !canPaymentTransition(order.PaymentInfo.Status, domain.PaymentStatusRefunded) {
				s.logger(txCtx, "payment.webhook.refund.skipped", map[string]any{
					"orderId": order.ID,
					"status":  string(order.PaymentInfo.Status),
				})
				updated = order
				return nil
			}
			order.PaymentInfo.Status = domain.PaymentStatusRefunded
			order.UpdatedAt = now
			if order.Cancellation != nil {
				order.Cancellation.RefundStatus = domain.RefundStatusProcessed
			}

		default:
			updated = order
			return nil
		}

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		updated = order
		return nil
	})
	if err != nil {
		return err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           paymentEventWebhook,
		OrderID:        updated.ID,
		OrderNumber:    updated.OrderNumber,
		PreviousStatus: prevStatus,
		CurrentStatus:  updated.Status,
		OccurredAt:     now,
		Metadata:       map[string]any{"eventType": event.Type},
	})
	return nil
}

func (s *paymentService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("payment: repository unavailable: %w", err)
		}
	}
	return err
}

func (s *paymentService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *paymentService) now() time.Time {
	return s.clock()
}

func (s *paymentService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "payment.event.publish.failed", map[string]any{
			"type":  event.Type,
			"order": event.OrderID,
			"error": err.Error(),
		})
	}
}

func canPaymentTransition(current, target domain.PaymentStatus) bool {
	if current == target {
		return true
	}
	for _, next := range paymentStateTransitions[current] {
		if next == target {
			return true
		}
	}
	return false
}
