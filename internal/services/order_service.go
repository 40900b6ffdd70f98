package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/payments"
	"github.com/vastrakart/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"

	orderIDPrefix     = "ord_"
	orderNumberPrefix = "VK"

	orderNumberDayFormat   = "060102"
	maxOrderNumberAttempts = 5

	defaultCancelReason = "Cancelled by customer"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderForbidden indicates the actor may not access the order.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates duplicate writes or concurrent update conflicts.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrProductNotFound indicates a requested product is missing or inactive.
	ErrProductNotFound = errors.New("order: product not found")
)

// orderStateTransitions is the only authority on order status changes; every
// write path validates against it rather than trusting the caller.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusConfirmed, domain.OrderStatusCancelled},
	domain.OrderStatusConfirmed:  {domain.OrderStatusProcessing, domain.OrderStatusCancelled},
	domain.OrderStatusProcessing: {domain.OrderStatusShipped, domain.OrderStatusCancelled},
	domain.OrderStatusShipped:    {domain.OrderStatusDelivered, domain.OrderStatusReturned},
	domain.OrderStatusDelivered:  {domain.OrderStatusReturned},
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	PreviousStatus domain.OrderStatus
	CurrentStatus  domain.OrderStatus
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// PaymentRefunder dispatches refunds to the gateway that captured a payment.
type PaymentRefunder interface {
	Refund(ctx context.Context, method string, req payments.RefundRequest) (payments.RefundResult, error)
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Products    repositories.ProductRepository
	Carts       repositories.CartRepository
	Counters    repositories.CounterRepository
	UnitOfWork  repositories.UnitOfWork
	Pricing     *PricingEngine
	Refunder    PaymentRefunder
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	products   repositories.ProductRepository
	carts      repositories.CartRepository
	counters   repositories.CounterRepository
	unitOfWork repositories.UnitOfWork
	pricing    *PricingEngine
	refunder   PaymentRefunder
	clock      func() time.Time
	newID      func() string
	events     OrderEventPublisher
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("order service: pricing engine is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		products:   deps.Products,
		carts:      deps.Carts,
		counters:   deps.Counters,
		unitOfWork: unit,
		pricing:    deps.Pricing,
		refunder:   deps.Refunder,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

// CreateOrder validates everything up front, then commits in stages: stock is
// decremented atomically for all lines, then the order document is inserted
// together with its number claim and the cart clear. A failed insert restores
// the decremented stock.
func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return domain.Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	if !validPaymentMethod(cmd.PaymentMethod) {
		return domain.Order{}, fmt.Errorf("%w: unsupported payment method %q", ErrOrderInvalidInput, cmd.PaymentMethod)
	}
	if err := validateAddress(cmd.ShippingAddress); err != nil {
		return domain.Order{}, err
	}

	inputs := cmd.Items
	if len(inputs) == 0 {
		var err error
		inputs, err = s.itemsFromCart(ctx, userID)
		if err != nil {
			return domain.Order{}, err
		}
	}
	if len(inputs) == 0 {
		return domain.Order{}, fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}

	lines, decrements, err := s.buildLineItems(ctx, inputs)
	if err != nil {
		return domain.Order{}, err
	}

	pricing, err := s.pricing.Price(lines, cmd.Coupon)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}

	now := s.now()
	initialStatus := domain.OrderStatusPending
	if cmd.PaymentMethod == domain.PaymentMethodCOD {
		initialStatus = domain.OrderStatusConfirmed
	}

	order := domain.Order{
		ID:              orderIDPrefix + s.newID(),
		UserID:          userID,
		Items:           lines,
		ShippingAddress: cmd.ShippingAddress,
		BillingAddress:  cmd.BillingAddress,
		PaymentInfo: domain.PaymentInfo{
			Method: cmd.PaymentMethod,
			Status: domain.PaymentStatusPending,
		},
		Pricing: pricing,
		Coupon:  cmd.Coupon,
		Status:  initialStatus,
		Timeline: []domain.TimelineEntry{
			{Status: initialStatus, Message: "Order placed", Timestamp: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.products.DecrementStockBatch(ctx, decrements); err != nil {
		var stockErr *repositories.InsufficientStockError
		if errors.As(err, &stockErr) {
			return domain.Order{}, stockErr
		}
		return domain.Order{}, s.mapRepositoryError(err)
	}

	inserted, err := s.insertWithUniqueNumber(ctx, order, now)
	if err != nil {
		// Undo the stock decrement so abandoned attempts do not leak inventory.
		if restoreErr := s.products.IncrementStockBatch(ctx, decrements); restoreErr != nil {
			s.logger(ctx, "order.create.stock.restore.failed", map[string]any{
				"orderId": order.ID,
				"error":   restoreErr.Error(),
			})
		}
		return domain.Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       inserted.ID,
		OrderNumber:   inserted.OrderNumber,
		CurrentStatus: inserted.Status,
		ActorID:       userID,
		OccurredAt:    now,
		Metadata: map[string]any{
			"total":         inserted.Pricing.Total,
			"paymentMethod": string(inserted.PaymentInfo.Method),
		},
	})

	return inserted, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string, actor Actor) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	if !actor.Admin && order.UserID != actor.UserID {
		return domain.Order{}, fmt.Errorf("%w: order %s", ErrOrderForbidden, orderID)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, actor Actor, query OrderListQuery) (domain.CursorPage[domain.Order], error) {
	filter := repositories.OrderListFilter{
		Status:     query.Status,
		Pagination: query.Pagination,
	}
	if !actor.Admin {
		if strings.TrimSpace(actor.UserID) == "" {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
		}
		filter.UserID = actor.UserID
	}

	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// CancelOrder moves the order to cancelled, restores every line's stock in
// the same transaction as the order update, and records the refund owed.
// Refunds for captured gateway payments are dispatched best effort afterwards.
func (s *orderService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		reason = defaultCancelReason
	}

	now := s.now()
	var order domain.Order
	var prevStatus domain.OrderStatus

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if !cmd.Actor.Admin && order.UserID != cmd.Actor.UserID {
			return fmt.Errorf("%w: order %s", ErrOrderForbidden, orderID)
		}
		if !order.Cancellable() {
			return fmt.Errorf("%w: order status %q cannot be cancelled", ErrOrderInvalidState, order.Status)
		}

		prevStatus = order.Status

		// Restock before touching the order document: the stock mutation
		// reads product documents, and reads must precede writes in the
		// transaction.
		if err := s.products.IncrementStockBatch(txCtx, restockLines(order.Items)); err != nil {
			return s.mapRepositoryError(err)
		}

		refundStatus := domain.RefundStatusProcessed
		var refundAmount int64
		if order.PaymentInfo.Status == domain.PaymentStatusCompleted {
			refundStatus = domain.RefundStatusPending
			refundAmount = order.Pricing.Total
		}

		order.Cancellation = &domain.Cancellation{
			Reason:       reason,
			CancelledAt:  now,
			CancelledBy:  strings.TrimSpace(cmd.Actor.UserID),
			RefundStatus: refundStatus,
			RefundAmount: refundAmount,
		}
		if err := applyStatusTransition(&order, domain.OrderStatusCancelled, now); err != nil {
			return err
		}

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		PreviousStatus: prevStatus,
		CurrentStatus:  order.Status,
		ActorID:        cmd.Actor.UserID,
		OccurredAt:     now,
		Metadata:       map[string]any{"reason": reason},
	})

	s.dispatchRefund(ctx, order)

	return order, nil
}

// UpdateOrderStatus applies an admin transition. Cancellations route through
// CancelOrder so the restock and refund bookkeeping always happen.
func (s *orderService) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if cmd.Status == "" {
		return domain.Order{}, fmt.Errorf("%w: target status is required", ErrOrderInvalidInput)
	}

	if cmd.Status == domain.OrderStatusCancelled {
		return s.CancelOrder(ctx, CancelOrderCommand{
			OrderID: orderID,
			Reason:  "Cancelled by store",
			Actor:   Actor{UserID: cmd.ActorID, Admin: true},
		})
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	now := s.now()
	prevStatus := order.Status

	if order.Status == cmd.Status {
		// No-op transition: nothing is written and no timeline entry appends.
		return order, nil
	}

	if err := applyStatusTransition(&order, cmd.Status, now); err != nil {
		return domain.Order{}, err
	}
	mergeTracking(&order, cmd.Tracking, now)

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		PreviousStatus: prevStatus,
		CurrentStatus:  order.Status,
		ActorID:        cmd.ActorID,
		OccurredAt:     now,
	})

	return order, nil
}

func (s *orderService) itemsFromCart(ctx context.Context, userID string) ([]OrderItemInput, error) {
	if s.carts == nil {
		return nil, fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	inputs := make([]OrderItemInput, 0, len(cart.Items))
	for _, item := range cart.Items {
		inputs = append(inputs, OrderItemInput{
			ProductID: item.ProductID,
			Qty:       item.Qty,
			Size:      item.Size,
		})
	}
	return inputs, nil
}

// buildLineItems resolves products in one batch, validates each requested
// line, and returns the denormalised snapshots plus the per-product stock
// decrements.
func (s *orderService) buildLineItems(ctx context.Context, inputs []OrderItemInput) ([]domain.OrderLineItem, []repositories.StockDecrement, error) {
	ids := make([]string, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))
	for i, input := range inputs {
		id := strings.TrimSpace(input.ProductID)
		if id == "" {
			return nil, nil, fmt.Errorf("%w: item %d product id is required", ErrOrderInvalidInput, i)
		}
		if input.Qty <= 0 {
			return nil, nil, fmt.Errorf("%w: item %d qty must be > 0", ErrOrderInvalidInput, i)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	products, err := s.products.FindManyActiveByIDs(ctx, ids)
	if err != nil {
		return nil, nil, s.mapRepositoryError(err)
	}
	byID := make(map[string]domain.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}
	if len(byID) != len(ids) {
		for _, id := range ids {
			if _, ok := byID[id]; !ok {
				return nil, nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
			}
		}
	}

	lines := make([]domain.OrderLineItem, 0, len(inputs))
	qtyByProduct := make(map[string]int64, len(ids))
	for i, input := range inputs {
		id := strings.TrimSpace(input.ProductID)
		product := byID[id]

		size := strings.TrimSpace(input.Size)
		if len(product.Sizes) > 0 && !containsString(product.Sizes, size) {
			return nil, nil, fmt.Errorf("%w: item %d size %q is not offered for product %s", ErrOrderInvalidInput, i, size, id)
		}

		lines = append(lines, domain.OrderLineItem{
			ProductID: id,
			Name:      product.Name,
			SKU:       product.SKU,
			Image:     product.Image,
			UnitPrice: product.Price,
			Qty:       input.Qty,
			Size:      size,
			Total:     product.Price * input.Qty,
		})
		qtyByProduct[id] += input.Qty
	}

	decrements := make([]repositories.StockDecrement, 0, len(ids))
	for _, id := range ids {
		decrements = append(decrements, repositories.StockDecrement{ProductID: id, Qty: qtyByProduct[id]})
	}
	return lines, decrements, nil
}

// insertWithUniqueNumber claims a fresh order number per attempt; a conflict
// on the number claim regenerates and retries without surfacing to the caller.
func (s *orderService) insertWithUniqueNumber(ctx context.Context, order domain.Order, now time.Time) (domain.Order, error) {
	var lastErr error
	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		number, err := s.generateOrderNumber(ctx, now, attempt)
		if err != nil {
			return domain.Order{}, err
		}
		order.OrderNumber = number

		inserted, err := s.orders.Insert(ctx, order, true)
		if err == nil {
			return inserted, nil
		}

		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			s.logger(ctx, "order.number.conflict", map[string]any{
				"orderNumber": number,
				"attempt":     attempt + 1,
			})
			lastErr = err
			continue
		}
		return domain.Order{}, s.mapRepositoryError(err)
	}
	return domain.Order{}, fmt.Errorf("%w: could not claim a unique order number: %v", ErrOrderConflict, lastErr)
}

// generateOrderNumber issues VK<yymmdd><seq> from a per-day counter. Late
// attempts fall back to a timestamp-derived number so a wedged counter cannot
// block checkout.
func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time, attempt int) (string, error) {
	day := now.Format(orderNumberDayFormat)
	if attempt < maxOrderNumberAttempts-1 {
		seq, err := s.counters.Next(ctx, "orders-"+day, 1)
		if err == nil {
			return fmt.Sprintf("%s%s%04d", orderNumberPrefix, day, seq), nil
		}
		s.logger(ctx, "order.number.counter.failed", map[string]any{"error": err.Error()})
	}
	suffix := s.newID()
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return fmt.Sprintf("%s%s%s%s", orderNumberPrefix, day, strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)), suffix), nil
}

// dispatchRefund kicks off a gateway refund for captured online payments.
// Failures are logged for the reconciliation webhook to settle later.
func (s *orderService) dispatchRefund(ctx context.Context, order domain.Order) {
	if s.refunder == nil {
		return
	}
	if order.Cancellation == nil || order.Cancellation.RefundStatus != domain.RefundStatusPending {
		return
	}
	method := order.PaymentInfo.Method
	if method != domain.PaymentMethodRazorpay && method != domain.PaymentMethodStripe {
		return
	}

	refundCtx := context.WithoutCancel(ctx)
	go func() {
		_, err := s.refunder.Refund(refundCtx, string(method), payments.RefundRequest{
			ProviderPaymentID: order.PaymentInfo.ProviderPayID,
			Amount:            order.Cancellation.RefundAmount,
			Reason:            "requested_by_customer",
			IdempotencyKey:    "refund-" + order.ID,
		})
		if err != nil {
			s.logger(refundCtx, "order.refund.dispatch.failed", map[string]any{
				"orderId": order.ID,
				"method":  string(method),
				"error":   err.Error(),
			})
			return
		}
		s.logger(refundCtx, "order.refund.dispatched", map[string]any{
			"orderId": order.ID,
			"amount":  order.Cancellation.RefundAmount,
		})
	}()
}

func (s *orderService) mapRepositoryError(err error) error {
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
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": string(event.CurrentStatus),
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// applyStatusTransition validates the move against the transition table,
// applies it, and appends exactly one timeline entry.
func applyStatusTransition(order *domain.Order, target domain.OrderStatus, now time.Time) error {
	if order.Status == target {
		return nil
	}
	if !canTransition(order.Status, target) {
		return fmt.Errorf("%w: %s to %s", ErrOrderInvalidState, order.Status, target)
	}
	order.Status = target
	order.UpdatedAt = now
	order.Timeline = append(order.Timeline, domain.TimelineEntry{
		Status:    target,
		Message:   statusTimelineMessage(target),
		Timestamp: now,
	})
	return nil
}

func canTransition(current, target domain.OrderStatus) bool {
	if current == target {
		return true
	}
	for _, next := range orderStateTransitions[current] {
		if next == target {
			return true
		}
	}
	return false
}

func statusTimelineMessage(status domain.OrderStatus) string {
	switch status {
	case domain.OrderStatusPending:
		return "Order placed"
	case domain.OrderStatusConfirmed:
		return "Order confirmed"
	case domain.OrderStatusProcessing:
		return "Order is being processed"
	case domain.OrderStatusShipped:
		return "Order shipped"
	case domain.OrderStatusDelivered:
		return "Order delivered"
	case domain.OrderStatusCancelled:
		return "Order cancelled"
	case domain.OrderStatusReturned:
		return "Order returned"
	default:
		return "Order updated"
	}
}

func mergeTracking(order *domain.Order, tracking *domain.Tracking, now time.Time) {
	switch order.Status {
	case domain.OrderStatusShipped:
		if order.Tracking == nil {
			order.Tracking = &domain.Tracking{}
		}
		if order.Tracking.ShippedAt == nil {
			order.Tracking.ShippedAt = &now
		}
	case domain.OrderStatusDelivered:
		if order.Tracking == nil {
			order.Tracking = &domain.Tracking{}
		}
		if order.Tracking.DeliveredAt == nil {
			order.Tracking.DeliveredAt = &now
		}
	}
	if tracking == nil {
		return
	}
	if order.Tracking == nil {
		order.Tracking = &domain.Tracking{}
	}
	if carrier := strings.TrimSpace(tracking.Carrier); carrier != "" {
		order.Tracking.Carrier = carrier
	}
	if number := strings.TrimSpace(tracking.Number); number != "" {
		order.Tracking.Number = number
	}
	if url := strings.TrimSpace(tracking.URL); url != "" {
		order.Tracking.URL = url
	}
}

func restockLines(items []domain.OrderLineItem) []repositories.StockDecrement {
	qtyByProduct := make(map[string]int64, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := qtyByProduct[item.ProductID]; !ok {
			order = append(order, item.ProductID)
		}
		qtyByProduct[item.ProductID] += item.Qty
	}
	lines := make([]repositories.StockDecrement, 0, len(order))
	for _, id := range order {
		lines = append(lines, repositories.StockDecrement{ProductID: id, Qty: qtyByProduct[id]})
	}
	return lines
}

func validPaymentMethod(method domain.PaymentMethod) bool {
	switch method {
	case domain.PaymentMethodRazorpay, domain.PaymentMethodStripe, domain.PaymentMethodCOD, domain.PaymentMethodBankTransfer:
		return true
	default:
		return false
	}
}

func validateAddress(addr domain.Address) error {
	if strings.TrimSpace(addr.Name) == "" {
		return fmt.Errorf("%w: shipping address name is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(addr.Line1) == "" {
		return fmt.Errorf("%w: shipping address line1 is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(addr.City) == "" || strings.TrimSpace(addr.State) == "" {
		return fmt.Errorf("%w: shipping address city and state are required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(addr.PostalCode) == "" {
		return fmt.Errorf("%w: shipping address postal code is required", ErrOrderInvalidInput)
	}
	return nil
}

func containsString(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
