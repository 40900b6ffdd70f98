package services

import (
	"context"

	domain "github.com/vastrakart/api/internal/domain"
)

// Actor identifies who is performing an operation and with what privileges.
type Actor struct {
	UserID string
	Admin  bool
}

// OrderItemInput is a single requested line in a create-order command.
type OrderItemInput struct {
	ProductID string
	Qty       int64
	Size      string
}

// CreateOrderCommand captures everything needed to place an order. When Items
// is empty the stored cart is used instead.
type CreateOrderCommand struct {
	UserID          string
	Items           []OrderItemInput
	ShippingAddress domain.Address
	BillingAddress  *domain.Address
	PaymentMethod   domain.PaymentMethod
	Coupon          *domain.Coupon
}

// CancelOrderCommand captures a cancellation request from the owner or an admin.
type CancelOrderCommand struct {
	OrderID string
	Reason  string
	Actor   Actor
}

// UpdateOrderStatusCommand captures an admin-driven status transition.
type UpdateOrderStatusCommand struct {
	OrderID  string
	Status   domain.OrderStatus
	Tracking *domain.Tracking
	ActorID  string
}

// OrderListQuery narrows order listings.
type OrderListQuery struct {
	Status     domain.OrderStatus
	Pagination domain.Pagination
}

// OrderService owns the order lifecycle: creation, reads, cancellation, and
// admin status transitions.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error)
	GetOrder(ctx context.Context, orderID string, actor Actor) (domain.Order, error)
	ListOrders(ctx context.Context, actor Actor, query OrderListQuery) (domain.CursorPage[domain.Order], error)
	CancelOrder(ctx context.Context, cmd CancelOrderCommand) (domain.Order, error)
	UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (domain.Order, error)
}

// VerifyPaymentCommand carries the client-reported gateway references to verify.
type VerifyPaymentCommand struct {
	OrderID           string
	Actor             Actor
	ProviderOrderID   string
	ProviderPaymentID string
	Signature         string
}

// WebhookCommand carries one raw gateway webhook delivery.
type WebhookCommand struct {
	Provider  string
	Body      []byte
	Signature string
	EventID   string
}

// WebhookResult reports how a webhook delivery was handled.
type WebhookResult struct {
	EventID   string
	EventType string
	OrderID   string
	Duplicate bool
	Ignored   bool
}

// PaymentService reconciles gateway-reported payment state with orders.
type PaymentService interface {
	VerifyPayment(ctx context.Context, cmd VerifyPaymentCommand) (domain.Order, error)
	HandleWebhook(ctx context.Context, cmd WebhookCommand) (WebhookResult, error)
}

// ProductInput carries the mutable catalog fields for create and update.
type ProductInput struct {
	Name   string
	SKU    string
	Price  int64
	Stock  int64
	Sizes  []string
	Image  string
	Active bool
}

// ProductListQuery narrows product listings.
type ProductListQuery struct {
	ActiveOnly bool
	Pagination domain.Pagination
}

// CatalogService owns product CRUD and absolute stock adjustments.
type CatalogService interface {
	CreateProduct(ctx context.Context, input ProductInput) (domain.Product, error)
	UpdateProduct(ctx context.Context, productID string, input ProductInput) (domain.Product, error)
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	ListProducts(ctx context.Context, query ProductListQuery) (domain.CursorPage[domain.Product], error)
	SetStock(ctx context.Context, productID string, stock int64) (domain.Product, error)
}
