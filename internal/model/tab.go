package model

import (
	"encoding/json"
	"time"
)

// TabStatus is the lifecycle state of a dine-in tab.
type TabStatus string

const (
	TabActive   TabStatus = "active"
	TabInactive TabStatus = "inactive"
	TabClosed   TabStatus = "closed"
)

// LiveTabStatuses are the statuses of tabs that still hold seats.
var LiveTabStatuses = []TabStatus{TabActive, TabInactive}

// IsLive reports whether a tab in this status still holds seats.
func (s TabStatus) IsLive() bool {
	for _, live := range LiveTabStatuses {
		if s == live {
			return true
		}
	}
	return false
}

// TabStatusStrings converts statuses for use as a query parameter.
func TabStatusStrings(statuses []TabStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// DineInTab is one seating session at one table.
type DineInTab struct {
	ID             string     `json:"id" db:"id"`
	TenantID       string     `json:"tenantId" db:"tenant_id"`
	TableID        string     `json:"tableId" db:"table_id"`
	Capacity       int        `json:"capacity" db:"capacity"`
	OccupiedSeats  int        `json:"occupiedSeats" db:"occupied_seats"`
	AvailableSeats int        `json:"availableSeats" db:"available_seats"`
	Status         TabStatus  `json:"status" db:"status"`
	Token          string     `json:"-" db:"token"`
	TotalAmount    float64    `json:"totalAmount" db:"total_amount"`
	PaidAmount     float64    `json:"paidAmount" db:"paid_amount"`
	PendingAmount  float64    `json:"pendingAmount" db:"pending_amount"`
	CreatedBy      string     `json:"createdBy" db:"created_by"`
	CreatedAt      time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time  `json:"updatedAt" db:"updated_at"`
	ClosedAt       *time.Time `json:"closedAt,omitempty" db:"closed_at"`
}

// TableState is the derived occupancy state of a restaurant table.
type TableState string

const (
	TableAvailable TableState = "available"
	TableOccupied  TableState = "occupied"
	TableFull      TableState = "full"
)

// RestaurantTable is a physical table with its live occupancy.
type RestaurantTable struct {
	TenantID   string     `json:"tenantId" db:"tenant_id"`
	ID         string     `json:"id" db:"id"`
	Label      string     `json:"label" db:"label"`
	Capacity   int        `json:"capacity" db:"capacity"`
	CurrentPax int        `json:"currentPax" db:"current_pax"`
	State      TableState `json:"state" db:"state"`
	UpdatedAt  time.Time  `json:"updatedAt" db:"updated_at"`
}

// TableStateFor derives the table state from its headcount.
func TableStateFor(pax, capacity int) TableState {
	switch {
	case pax <= 0:
		return TableAvailable
	case pax >= capacity:
		return TableFull
	default:
		return TableOccupied
	}
}

// CreateTabRequest represents the payload for opening or joining a tab.
type CreateTabRequest struct {
	TenantID  string `json:"tenantId" validate:"required"`
	TableID   string `json:"tableId" validate:"required"`
	Capacity  int    `json:"capacity" validate:"gte=0"`
	GroupSize int    `json:"groupSize" validate:"required,gt=0"`
	ActorName string `json:"actorName"`
}

// TabResult is returned by create-or-join.
type TabResult struct {
	TabID          string `json:"tabId"`
	Token          string `json:"token"`
	OccupiedSeats  int    `json:"occupiedSeats"`
	AvailableSeats int    `json:"availableSeats"`
	Capacity       int    `json:"capacity"`
	Existed        bool   `json:"existed"`
}

// TabBill is the combined bill over every open order on a tab.
type TabBill struct {
	Items      []OrderItem `json:"items"`
	Subtotal   float64     `json:"subtotal"`
	Cgst       float64     `json:"cgst"`
	Sgst       float64     `json:"sgst"`
	GrandTotal float64     `json:"grandTotal"`
}

// TabStatusResponse is the aggregated view of a tab.
type TabStatusResponse struct {
	Tab        DineInTab   `json:"tab"`
	Status     OrderStatus `json:"status"`
	Aggregated TabBill     `json:"aggregated"`
	Orders     []Order     `json:"orders"`
}

// MarkTabPaidRequest represents the payload for settling a tab.
type MarkTabPaidRequest struct {
	TabID          string          `json:"tabId"`
	TenantID       string          `json:"tenantId" validate:"required"`
	PaymentDetails json.RawMessage `json:"paymentDetails,omitempty"`

	Actor Identity `json:"-"`
}

// MarkTabPaidResult reports how many orders were settled.
type MarkTabPaidResult struct {
	TabID         string    `json:"tabId"`
	OrdersUpdated int       `json:"ordersUpdated"`
	AmountPaid    float64   `json:"amountPaid"`
	PaidAt        time.Time `json:"paidAt"`
}

// CleanupRequest represents the payload for the stale-tab sweep.
type CleanupRequest struct {
	TenantID string `json:"tenantId" validate:"required"`
	DryRun   *bool  `json:"dryRun"`
}

// StaleTab is one tab the sweep classified as abandoned.
type StaleTab struct {
	TabID         string     `json:"tabId"`
	TableID       string     `json:"tableId"`
	Status        TabStatus  `json:"status"`
	OccupiedSeats int        `json:"occupiedSeats"`
	LastOrderAt   *time.Time `json:"lastOrderAt,omitempty"`
}

// CleanupReport is the outcome of one stale-tab sweep.
type CleanupReport struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenantId"`
	DryRun        bool       `json:"dryRun"`
	Scanned       int        `json:"scanned"`
	StaleCount    int        `json:"staleCount"`
	DeletedCount  int        `json:"deletedCount"`
	TablesUpdated int        `json:"tablesUpdated"`
	Stale         []StaleTab `json:"stale"`
	GeneratedAt   time.Time  `json:"generatedAt"`

	// Archive is where an applied sweep was stored for audit.
	Archive string `json:"archive,omitempty"`
}
