package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/platform/auth"
	"github.com/vastrakart/api/internal/platform/httpx"
	"github.com/vastrakart/api/internal/repositories"
	"github.com/vastrakart/api/internal/services"
)

const (
	maxOrderCreateBodySize = 64 * 1024
	maxOrderCancelBodySize = 4 * 1024
	maxVerifyBodySize      = 16 * 1024
)

// OrderHandlers exposes order lifecycle endpoints for authenticated users.
type OrderHandlers struct {
	authn    *auth.Authenticator
	orders   services.OrderService
	payments services.PaymentService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, payments services.PaymentService) *OrderHandlers {
	return &OrderHandlers{
		authn:    authn,
		orders:   orders,
		payments: payments,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}:cancel", h.cancelOrder)
	r.Post("/{orderID}:verify-payment", h.verifyPayment)
}

type createOrderItemRequest struct {
	ProductID string `json:"productId"`
	Qty       int64  `json:"qty"`
	Size      string `json:"size"`
}

type createOrderRequest struct {
	Items           []createOrderItemRequest `json:"items"`
	ShippingAddress addressPayload           `json:"shippingAddress"`
	BillingAddress  *addressPayload          `json:"billingAddress"`
	PaymentMethod   string                   `json:"paymentMethod"`
	Coupon          *couponPayload           `json:"coupon"`
}

type couponPayload struct {
	Code     string `json:"code"`
	Type     string `json:"type"`
	Discount int64  `json:"discount"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type verifyPaymentRequest struct {
	ProviderOrderID   string `json:"providerOrderId"`
	ProviderPaymentID string `json:"providerPaymentId"`
	Signature         string `json:"signature"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxOrderCreateBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req createOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	cmd := services.CreateOrderCommand{
		UserID:          actor.UserID,
		ShippingAddress: req.ShippingAddress.toDomain(),
		PaymentMethod:   domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, services.OrderItemInput{
			ProductID: strings.TrimSpace(item.ProductID),
			Qty:       item.Qty,
			Size:      strings.TrimSpace(item.Size),
		})
	}
	if req.BillingAddress != nil {
		billing := req.BillingAddress.toDomain()
		cmd.BillingAddress = &billing
	}
	if req.Coupon != nil {
		couponType := domain.CouponType(strings.ToLower(strings.TrimSpace(req.Coupon.Type)))
		if couponType == "" {
			couponType = domain.CouponTypeFixed
		}
		if !couponType.Valid() {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "coupon type must be percentage or fixed", http.StatusBadRequest))
			return
		}
		cmd.Coupon = &domain.Coupon{
			Code:     strings.ToUpper(strings.TrimSpace(req.Coupon.Code)),
			Type:     couponType,
			Discount: req.Coupon.Discount,
		}
	}

	order, err := h.orders.CreateOrder(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w)
	if !ok {
		return
	}

	pagination, err := parsePagination(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	query := services.OrderListQuery{
		Status:     domain.OrderStatus(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))),
		Pagination: pagination,
	}

	page, err := h.orders.ListOrders(ctx, actor, query)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderSummary(order))
	}

	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID, actor)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req cancelOrderRequest
	body, err := readLimitedBody(r, maxOrderCancelBodySize)
	switch {
	case err == nil:
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
			return
		}
	case errors.Is(err, errEmptyBody):
		// Reason is optional; an empty body cancels with the default reason.
	default:
		writeBodyError(ctx, w, err)
		return
	}

	order, err := h.orders.CancelOrder(ctx, services.CancelOrderCommand{
		OrderID: orderID,
		Reason:  strings.TrimSpace(req.Reason),
		Actor:   actor,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) verifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w)
	if !ok {
		return
	}
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxVerifyBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req verifyPaymentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	order, err := h.payments.VerifyPayment(ctx, services.VerifyPaymentCommand{
		OrderID:           orderID,
		Actor:             actor,
		ProviderOrderID:   strings.TrimSpace(req.ProviderOrderID),
		ProviderPaymentID: strings.TrimSpace(req.ProviderPaymentID),
		Signature:         strings.TrimSpace(req.Signature),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) requireActor(ctx context.Context, w http.ResponseWriter) (services.Actor, bool) {
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return services.Actor{}, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return services.Actor{}, false
	}
	return services.Actor{
		UserID: strings.TrimSpace(identity.UID),
		Admin:  identity.HasAnyRole(auth.RoleAdmin, auth.RoleStaff),
	}, true
}

type orderListResponse struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type orderSummaryPayload struct {
	ID            string `json:"id"`
	OrderNumber   string `json:"orderNumber"`
	Status        string `json:"status"`
	PaymentMethod string `json:"paymentMethod"`
	PaymentStatus string `json:"paymentStatus"`
	Total         int64  `json:"total"`
	CreatedAt     string `json:"createdAt"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderPayload struct {
	ID              string               `json:"id"`
	OrderNumber     string               `json:"orderNumber"`
	UserID          string               `json:"userId"`
	Status          string               `json:"status"`
	Items           []orderItemPayload   `json:"items"`
	ShippingAddress addressPayload       `json:"shippingAddress"`
	BillingAddress  *addressPayload      `json:"billingAddress,omitempty"`
	Payment         orderPaymentPayload  `json:"payment"`
	Pricing         orderPricingPayload  `json:"pricing"`
	Coupon          *couponPayload       `json:"coupon,omitempty"`
	Tracking        *trackingPayload     `json:"tracking,omitempty"`
	Cancellation    *cancellationPayload `json:"cancellation,omitempty"`
	Timeline        []timelinePayload    `json:"timeline"`
	CreatedAt       string               `json:"createdAt"`
	UpdatedAt       string               `json:"updatedAt,omitempty"`
}

type orderItemPayload struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Image     string `json:"image,omitempty"`
	UnitPrice int64  `json:"unitPrice"`
	Qty       int64  `json:"qty"`
	Size      string `json:"size"`
	Total     int64  `json:"total"`
}

type orderPaymentPayload struct {
	Method            string `json:"method"`
	Status            string `json:"status"`
	ProviderOrderID   string `json:"providerOrderId,omitempty"`
	ProviderPaymentID string `json:"providerPaymentId,omitempty"`
	PaidAt            string `json:"paidAt,omitempty"`
	FailureReason     string `json:"failureReason,omitempty"`
}

type orderPricingPayload struct {
	Subtotal     int64 `json:"subtotal"`
	Tax          int64 `json:"tax"`
	ShippingCost int64 `json:"shippingCost"`
	Discount     int64 `json:"discount"`
	Total        int64 `json:"total"`
}

type trackingPayload struct {
	Carrier     string `json:"carrier,omitempty"`
	Number      string `json:"number,omitempty"`
	URL         string `json:"url,omitempty"`
	ShippedAt   string `json:"shippedAt,omitempty"`
	DeliveredAt string `json:"deliveredAt,omitempty"`
}

type cancellationPayload struct {
	Reason       string `json:"reason"`
	CancelledAt  string `json:"cancelledAt"`
	CancelledBy  string `json:"cancelledBy"`
	RefundStatus string `json:"refundStatus"`
	RefundAmount int64  `json:"refundAmount"`
}

type timelinePayload struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func buildOrderSummary(order domain.Order) orderSummaryPayload {
	return orderSummaryPayload{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        string(order.Status),
		PaymentMethod: string(order.PaymentInfo.Method),
		PaymentStatus: string(order.PaymentInfo.Status),
		Total:         order.Pricing.Total,
		CreatedAt:     formatTime(order.CreatedAt),
	}
}

func buildOrderPayload(order domain.Order) orderPayload {
	payload := orderPayload{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		Status:          string(order.Status),
		Items:           make([]orderItemPayload, 0, len(order.Items)),
		ShippingAddress: buildAddressPayload(order.ShippingAddress),
		Payment: orderPaymentPayload{
			Method:            string(order.PaymentInfo.Method),
			Status:            string(order.PaymentInfo.Status),
			ProviderOrderID:   order.PaymentInfo.ProviderOrderID,
			ProviderPaymentID: order.PaymentInfo.ProviderPayID,
			PaidAt:            formatTimePointer(order.PaymentInfo.PaidAt),
			FailureReason:     order.PaymentInfo.FailureReason,
		},
		Pricing: orderPricingPayload{
			Subtotal:     order.Pricing.Subtotal,
			Tax:          order.Pricing.Tax,
			ShippingCost: order.Pricing.ShippingCost,
			Discount:     order.Pricing.Discount,
			Total:        order.Pricing.Total,
		},
		Timeline:  make([]timelinePayload, 0, len(order.Timeline)),
		CreatedAt: formatTime(order.CreatedAt),
		UpdatedAt: formatTime(order.UpdatedAt),
	}

	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ProductID: item.ProductID,
			Name:      item.Name,
			SKU:       item.SKU,
			Image:     item.Image,
			UnitPrice: item.UnitPrice,
			Qty:       item.Qty,
			Size:      item.Size,
			Total:     item.Total,
		})
	}

	if order.BillingAddress != nil {
		billing := buildAddressPayload(*order.BillingAddress)
		payload.BillingAddress = &billing
	}
	if order.Coupon != nil {
		payload.Coupon = &couponPayload{
			Code:     order.Coupon.Code,
			Type:     string(order.Coupon.Type),
			Discount: order.Coupon.Discount,
		}
	}
	if order.Tracking != nil {
		payload.Tracking = &trackingPayload{
			Carrier:     order.Tracking.Carrier,
			Number:      order.Tracking.Number,
			URL:         order.Tracking.URL,
			ShippedAt:   formatTimePointer(order.Tracking.ShippedAt),
			DeliveredAt: formatTimePointer(order.Tracking.DeliveredAt),
		}
	}
	if order.Cancellation != nil {
		payload.Cancellation = &cancellationPayload{
			Reason:       order.Cancellation.Reason,
			CancelledAt:  formatTime(order.Cancellation.CancelledAt),
			CancelledBy:  order.Cancellation.CancelledBy,
			RefundStatus: string(order.Cancellation.RefundStatus),
			RefundAmount: order.Cancellation.RefundAmount,
		}
	}
	for _, entry := range order.Timeline {
		payload.Timeline = append(payload.Timeline, timelinePayload{
			Status:    string(entry.Status),
			Message:   entry.Message,
			Timestamp: formatTime(entry.Timestamp),
		})
	}

	return payload
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	case errors.Is(err, errEmptyBody):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var stockErr *repositories.InsufficientStockError
	if errors.As(err, &stockErr) {
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", stockErr.Error(), http.StatusConflict).
			WithDetails(map[string]any{
				"productId": stockErr.ProductID,
				"requested": stockErr.Requested,
				"available": stockErr.Available,
			}))
		return
	}

	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_unavailable", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "access to order denied", http.StatusForbidden))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrPaymentSignatureMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("signature_mismatch", "payment signature verification failed", http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("payment_invalid_state", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
