package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage wraps a page of results together with the token for the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Address stores a shipping or billing destination snapshot on an order.
type Address struct {
	Name       string `firestore:"name" json:"name"`
	Phone      string `firestore:"phone" json:"phone"`
	Line1      string `firestore:"line1" json:"line1"`
	Line2      string `firestore:"line2,omitempty" json:"line2,omitempty"`
	City       string `firestore:"city" json:"city"`
	State      string `firestore:"state" json:"state"`
	PostalCode string `firestore:"postalCode" json:"postalCode"`
	Country    string `firestore:"country" json:"country"`
}

// Product represents a sellable catalog item with its live stock counter.
type Product struct {
	ID        string    `firestore:"-" json:"id"`
	Name      string    `firestore:"name" json:"name"`
	SKU       string    `firestore:"sku" json:"sku"`
	Price     int64     `firestore:"price" json:"price"`
	Stock     int64     `firestore:"stock" json:"stock"`
	Sizes     []string  `firestore:"sizes" json:"sizes"`
	Image     string    `firestore:"image" json:"image"`
	Active    bool      `firestore:"active" json:"active"`
	CreatedAt time.Time `firestore:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt" json:"updatedAt"`
}

// CartItem stores a single product selection within a user's cart.
type CartItem struct {
	ProductID string `firestore:"productRef" json:"productId"`
	Qty       int64  `firestore:"qty" json:"qty"`
	Size      string `firestore:"size" json:"size"`
}

// Cart aggregates the mutable shopping cart state for a user.
type Cart struct {
	UserID    string     `firestore:"-" json:"userId"`
	Items     []CartItem `firestore:"items" json:"items"`
	UpdatedAt time.Time  `firestore:"updatedAt" json:"updatedAt"`
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order awaits payment confirmation.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed indicates payment is settled (or deferred for COD) and fulfilment may begin.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusProcessing indicates the order is being picked and packed.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped indicates the order has been handed to the carrier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the carrier reports delivery to the customer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled before shipment.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusReturned indicates the customer returned the shipment.
	OrderStatusReturned OrderStatus = "returned"
)

// PaymentMethod enumerates the supported ways of paying for an order.
type PaymentMethod string

const (
	// PaymentMethodRazorpay pays through the Razorpay gateway with client-side checkout.
	PaymentMethodRazorpay PaymentMethod = "razorpay"
	// PaymentMethodStripe pays through a Stripe checkout session.
	PaymentMethodStripe PaymentMethod = "stripe"
	// PaymentMethodCOD collects payment in cash on delivery.
	PaymentMethodCOD PaymentMethod = "cod"
	// PaymentMethodBankTransfer settles through a manual bank transfer.
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// PaymentStatus enumerates the settlement states of an order's payment.
type PaymentStatus string

const (
	// PaymentStatusPending indicates the payment has not been confirmed yet.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusCompleted indicates the gateway confirmed the capture.
	PaymentStatusCompleted PaymentStatus = "completed"
	// PaymentStatusFailed indicates the gateway reported a terminal failure.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefunded indicates a captured payment was returned to the customer.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// RefundStatus tracks the progress of a cancellation refund.
type RefundStatus string

const (
	// RefundStatusPending indicates a refund is owed but not yet settled.
	RefundStatusPending RefundStatus = "pending"
	// RefundStatusProcessed indicates the refund has been settled (or none was owed).
	RefundStatusProcessed RefundStatus = "processed"
)

// PaymentInfo stores the gateway references and settlement state for an order.
type PaymentInfo struct {
	Method          PaymentMethod `firestore:"method" json:"method"`
	Status          PaymentStatus `firestore:"status" json:"status"`
	ProviderOrderID string        `firestore:"providerOrderId,omitempty" json:"providerOrderId,omitempty"`
	ProviderPayID   string        `firestore:"providerPaymentId,omitempty" json:"providerPaymentId,omitempty"`
	Signature       string        `firestore:"signature,omitempty" json:"signature,omitempty"`
	PaidAt          *time.Time    `firestore:"paidAt,omitempty" json:"paidAt,omitempty"`
	FailureReason   string        `firestore:"failureReason,omitempty" json:"failureReason,omitempty"`
}

// PricingBreakdown captures the monetary components of an order total.
// All amounts are whole rupees; Total = Subtotal + Tax + ShippingCost - Discount.
type PricingBreakdown struct {
	Subtotal     int64 `firestore:"subtotal" json:"subtotal"`
	Tax          int64 `firestore:"tax" json:"tax"`
	ShippingCost int64 `firestore:"shippingCost" json:"shippingCost"`
	Discount     int64 `firestore:"discount" json:"discount"`
	Total        int64 `firestore:"total" json:"total"`
}

// CouponType selects how a coupon's discount value is interpreted.
type CouponType string

const (
	// CouponTypePercentage discounts a percentage of the subtotal.
	CouponTypePercentage CouponType = "percentage"
	// CouponTypeFixed discounts a fixed amount in the smallest currency unit.
	CouponTypeFixed CouponType = "fixed"
)

// Valid reports whether the coupon type is a known value.
func (t CouponType) Valid() bool {
	return t == CouponTypePercentage || t == CouponTypeFixed
}

// Coupon stores the discount snapshot applied at order creation.
type Coupon struct {
	Code     string     `firestore:"code" json:"code"`
	Type     CouponType `firestore:"type" json:"type"`
	Discount int64      `firestore:"discount" json:"discount"`
}

// OrderLineItem is the immutable snapshot of a product at purchase time.
type OrderLineItem struct {
	ProductID string `firestore:"productRef" json:"productId"`
	Name      string `firestore:"name" json:"name"`
	SKU       string `firestore:"sku" json:"sku"`
	Image     string `firestore:"image,omitempty" json:"image,omitempty"`
	UnitPrice int64  `firestore:"unitPrice" json:"unitPrice"`
	Qty       int64  `firestore:"qty" json:"qty"`
	Size      string `firestore:"size" json:"size"`
	Total     int64  `firestore:"total" json:"total"`
}

// Tracking stores carrier details recorded when an order ships.
type Tracking struct {
	Carrier     string     `firestore:"carrier,omitempty" json:"carrier,omitempty"`
	Number      string     `firestore:"number,omitempty" json:"number,omitempty"`
	URL         string     `firestore:"url,omitempty" json:"url,omitempty"`
	ShippedAt   *time.Time `firestore:"shippedAt,omitempty" json:"shippedAt,omitempty"`
	DeliveredAt *time.Time `firestore:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
}

// Cancellation records who cancelled the order, why, and the refund owed.
type Cancellation struct {
	Reason       string       `firestore:"reason" json:"reason"`
	CancelledAt  time.Time    `firestore:"cancelledAt" json:"cancelledAt"`
	CancelledBy  string       `firestore:"cancelledBy" json:"cancelledBy"`
	RefundStatus RefundStatus `firestore:"refundStatus" json:"refundStatus"`
	RefundAmount int64        `firestore:"refundAmount" json:"refundAmount"`
}

// TimelineEntry is one append-only status history record on an order.
type TimelineEntry struct {
	Status    OrderStatus `firestore:"status" json:"status"`
	Message   string      `firestore:"message" json:"message"`
	Timestamp time.Time   `firestore:"timestamp" json:"timestamp"`
}

// Order is the aggregate root for a customer purchase.
type Order struct {
	ID              string           `firestore:"-" json:"id"`
	OrderNumber     string           `firestore:"orderNumber" json:"orderNumber"`
	UserID          string           `firestore:"userRef" json:"userId"`
	Items           []OrderLineItem  `firestore:"items" json:"items"`
	ShippingAddress Address          `firestore:"shippingAddress" json:"shippingAddress"`
	BillingAddress  *Address         `firestore:"billingAddress,omitempty" json:"billingAddress,omitempty"`
	PaymentInfo     PaymentInfo      `firestore:"paymentInfo" json:"paymentInfo"`
	Pricing         PricingBreakdown `firestore:"pricing" json:"pricing"`
	Coupon          *Coupon          `firestore:"coupon,omitempty" json:"coupon,omitempty"`
	Status          OrderStatus      `firestore:"status" json:"status"`
	Tracking        *Tracking        `firestore:"tracking,omitempty" json:"tracking,omitempty"`
	Cancellation    *Cancellation    `firestore:"cancellation,omitempty" json:"cancellation,omitempty"`
	Timeline        []TimelineEntry  `firestore:"timeline" json:"timeline"`
	CreatedAt       time.Time        `firestore:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time        `firestore:"updatedAt" json:"updatedAt"`
}

// Cancellable reports whether the order may still be cancelled by its owner.
func (o Order) Cancellable() bool {
	switch o.Status {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing:
		return true
	default:
		return false
	}
}

// WebhookEvent records a processed gateway event for redelivery dedup.
type WebhookEvent struct {
	ID          string    `firestore:"-" json:"id"`
	Provider    string    `firestore:"provider" json:"provider"`
	EventType   string    `firestore:"eventType" json:"eventType"`
	OrderID     string    `firestore:"orderRef,omitempty" json:"orderId,omitempty"`
	ProcessedAt time.Time `firestore:"processedAt" json:"processedAt"`
}
