package model

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"time"
)

// OrderStatus is the fulfilment status of an order.
type OrderStatus string

const (
	StatusPending              OrderStatus = "pending"
	StatusAccepted             OrderStatus = "accepted"
	StatusPreparing            OrderStatus = "preparing"
	StatusReady                OrderStatus = "ready"
	StatusDispatched           OrderStatus = "dispatched"
	StatusReachedRestaurant    OrderStatus = "reached_restaurant"
	StatusPickedUp             OrderStatus = "picked_up"
	StatusOnTheWay             OrderStatus = "on_the_way"
	StatusDeliveryAttempted    OrderStatus = "delivery_attempted"
	StatusFailedDelivery       OrderStatus = "failed_delivery"
	StatusReturnedToRestaurant OrderStatus = "returned_to_restaurant"
	StatusDelivered            OrderStatus = "delivered"
	StatusPickedUpByCustomer   OrderStatus = "picked_up_by_customer"
	StatusCancelled            OrderStatus = "cancelled"
	StatusRejected             OrderStatus = "rejected"
)

// DeliveryType says how the order reaches the customer.
type DeliveryType string

const (
	DeliveryTypeDelivery DeliveryType = "delivery"
	DeliveryTypeDineIn   DeliveryType = "dine-in"
	DeliveryTypeCar      DeliveryType = "car"
	DeliveryTypeTakeaway DeliveryType = "takeaway"
)

// PaymentStatus tracks settlement of an order.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Status sets shared by the tab manager and the delivery state machine.
var (
	// OpenTabStatuses are the order statuses that count towards a tab bill.
	OpenTabStatuses = []OrderStatus{StatusPending, StatusAccepted, StatusPreparing, StatusReady, StatusDelivered}

	// RiderActiveStatuses keep a rider busy.
	RiderActiveStatuses = []OrderStatus{StatusDispatched, StatusReachedRestaurant, StatusPickedUp, StatusOnTheWay, StatusDeliveryAttempted}

	// SettlementExcludedStatuses are never marked paid by tab settlement.
	SettlementExcludedStatuses = []OrderStatus{StatusCancelled, StatusRejected, StatusPickedUpByCustomer}
)

// IsRiderActive reports whether an order in status s still occupies its rider.
func IsRiderActive(s OrderStatus) bool {
	for _, active := range RiderActiveStatuses {
		if s == active {
			return true
		}
	}
	return false
}

// StatusStrings converts statuses for use as a query parameter.
func StatusStrings(statuses []OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// OrderItem is one line of an order.
type OrderItem struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"qty"`
	UnitPrice float64 `json:"unitPrice"`
	LineTotal float64 `json:"lineTotal"`
}

// StatusChange is one entry of an order's append-only status history.
type StatusChange struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Actor     string      `json:"actor"`
}

// Order represents a customer order.
type Order struct {
	ID             string          `json:"id" db:"id"`
	ShortID        string          `json:"shortId" db:"short_id"`
	TenantID       string          `json:"tenantId" db:"tenant_id"`
	BusinessType   BusinessType    `json:"businessType" db:"business_type"`
	DeliveryType   DeliveryType    `json:"deliveryType" db:"delivery_type"`
	Status         OrderStatus     `json:"status" db:"status"`
	StatusHistory  []StatusChange  `json:"statusHistory" db:"status_history"`
	DeliveryBoyID  *string         `json:"deliveryBoyId,omitempty" db:"delivery_boy_id"`
	DineInTabID    *string         `json:"dineInTabId,omitempty" db:"dine_in_tab_id"`
	TableID        *string         `json:"tableId,omitempty" db:"table_id"`
	CustomerName   string          `json:"customerName" db:"customer_name"`
	Items          []OrderItem     `json:"items" db:"items"`
	Subtotal       float64         `json:"subtotal" db:"subtotal"`
	Cgst           float64         `json:"cgst" db:"cgst"`
	Sgst           float64         `json:"sgst" db:"sgst"`
	DeliveryCharge float64         `json:"deliveryCharge" db:"delivery_charge"`
	GrandTotal     float64         `json:"grandTotal" db:"grand_total"`
	PaymentStatus  PaymentStatus   `json:"paymentStatus" db:"payment_status"`
	PaymentMethod  string          `json:"paymentMethod" db:"payment_method"`
	PaymentDetails json.RawMessage `json:"paymentDetails,omitempty" db:"payment_details"`
	PaidAt         *time.Time      `json:"paidAt,omitempty" db:"paid_at"`
	FailureReason  *string         `json:"failureReason,omitempty" db:"failure_reason"`
	FailedAt       *time.Time      `json:"failedAt,omitempty" db:"failed_at"`
	IdempotencyKey *string         `json:"-" db:"idempotency_key"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" db:"updated_at"`
}

// CreateOrderRequest represents the request payload for creating an order.
type CreateOrderRequest struct {
	IdempotencyKey string             `json:"idempotencyKey" validate:"required,max=128"`
	TenantID       string             `json:"tenantId" validate:"required"`
	DeliveryType   DeliveryType       `json:"deliveryType" validate:"required,oneof=delivery dine-in car takeaway"`
	TableID        string             `json:"tableId,omitempty"`
	Capacity       int                `json:"capacity,omitempty" validate:"gte=0"`
	GroupSize      int                `json:"groupSize,omitempty" validate:"gte=0"`
	CustomerName   string             `json:"customerName" validate:"max=120"`
	Items          []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	Cgst           float64            `json:"cgst" validate:"gte=0"`
	Sgst           float64            `json:"sgst" validate:"gte=0"`
	DeliveryCharge float64            `json:"deliveryCharge" validate:"gte=0"`
	PaymentMethod  string             `json:"paymentMethod"`

	// Actor is the verified caller name, never read from the body.
	Actor string `json:"-"`
}

// OrderItemRequest represents a single item in an order request.
type OrderItemRequest struct {
	Name      string  `json:"name" validate:"required"`
	Quantity  int     `json:"qty" validate:"gt=0"`
	UnitPrice float64 `json:"unitPrice" validate:"gte=0"`
}

// OrderResponse is the body returned for a created order. It is stored
// with the idempotency record and replayed byte for byte on duplicates.
type OrderResponse struct {
	OrderID     string      `json:"orderId"`
	ShortID     string      `json:"shortId"`
	Status      OrderStatus `json:"status"`
	DineInTabID string      `json:"dineInTabId,omitempty"`
	TabToken    string      `json:"tabToken,omitempty"`
	GrandTotal  float64     `json:"grandTotal"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// CreateOrderResult wraps the response body with replay information.
type CreateOrderResult struct {
	OrderID  string
	Body     json.RawMessage
	Replayed bool
}

const shortIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewShortID returns a customer-facing order reference such as SZ261017K3F9QA.
func NewShortID(now time.Time) string {
	suffix := make([]byte, 6)
	max := big.NewInt(int64(len(shortIDAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken
			n = big.NewInt(now.UnixNano() % int64(len(shortIDAlphabet)))
		}
		suffix[i] = shortIDAlphabet[n.Int64()]
	}
	return "SZ" + now.UTC().Format("060102") + string(suffix)
}
