// Package events publishes order lifecycle notifications for downstream
// consumers such as dashboards, notifiers and the routing service.
package events

import (
	"context"
	"time"

	"servizephyr/internal/model"
)

const (
	TypeOrderCreated             = "order.created"
	TypeOrderStatusChanged       = "order.status_changed"
	TypeTabOpened                = "tab.opened"
	TypeTabSettled               = "tab.settled"
	TypeTabsSwept                = "tabs.swept"
	TypeRiderAvailabilityChanged = "rider.availability_changed"
)

const (
	envelopeVersion = 1
	producerName    = "servizephyr-core"
)

// Event is one notification before it is wrapped in an Envelope.
type Event struct {
	Type string
	// Key selects the partition; events with the same key stay ordered.
	Key     string
	Payload any
}

// Publisher delivers events. Publish must not block the request path for long.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

type OrderCreatedPayload struct {
	OrderID      string             `json:"order_id"`
	ShortID      string             `json:"short_id"`
	TenantID     string             `json:"tenant_id"`
	DeliveryType model.DeliveryType `json:"delivery_type"`
	DineInTabID  string             `json:"dine_in_tab_id,omitempty"`
	GrandTotal   float64            `json:"grand_total"`
}

type OrderStatusChangedPayload struct {
	OrderID  string            `json:"order_id"`
	TenantID string            `json:"tenant_id"`
	From     model.OrderStatus `json:"from"`
	To       model.OrderStatus `json:"to"`
	Actor    string            `json:"actor"`
	At       time.Time         `json:"at"`
}

type TabOpenedPayload struct {
	TabID         string `json:"tab_id"`
	TenantID      string `json:"tenant_id"`
	TableID       string `json:"table_id"`
	OccupiedSeats int    `json:"occupied_seats"`
}

type TabSettledPayload struct {
	TabID         string    `json:"tab_id"`
	TenantID      string    `json:"tenant_id"`
	OrdersUpdated int       `json:"orders_updated"`
	AmountPaid    float64   `json:"amount_paid"`
	PaidAt        time.Time `json:"paid_at"`
}

type TabsSweptPayload struct {
	TenantID      string `json:"tenant_id"`
	ReportID      string `json:"report_id"`
	DeletedCount  int    `json:"deleted_count"`
	TablesUpdated int    `json:"tables_updated"`
}

type RiderAvailabilityPayload struct {
	RiderID      string                  `json:"rider_id"`
	TenantID     string                  `json:"tenant_id"`
	Availability model.RiderAvailability `json:"availability"`
}
