package model

import (
	"encoding/json"
	"time"
)

// IdempotencyStatus is the state of one creation attempt.
type IdempotencyStatus string

const (
	IdempotencyReserved  IdempotencyStatus = "reserved"
	IdempotencyCompleted IdempotencyStatus = "completed"
	IdempotencyFailed    IdempotencyStatus = "failed"
)

// IdempotencyRecord deduplicates order creation for one caller-supplied key.
type IdempotencyRecord struct {
	Key            string            `json:"key" db:"key"`
	TenantID       string            `json:"tenantId" db:"tenant_id"`
	RequestHash    string            `json:"requestHash" db:"request_hash"`
	Status         IdempotencyStatus `json:"status" db:"status"`
	Metadata       json.RawMessage   `json:"metadata,omitempty" db:"metadata"`
	OrderID        *string           `json:"orderId,omitempty" db:"order_id"`
	GatewayOrderID *string           `json:"gatewayOrderId,omitempty" db:"gateway_order_id"`
	Response       json.RawMessage   `json:"response,omitempty" db:"response"`
	LastError      *string           `json:"lastError,omitempty" db:"last_error"`
	CreatedAt      time.Time         `json:"createdAt" db:"created_at"`
	CompletedAt    *time.Time        `json:"completedAt,omitempty" db:"completed_at"`
	FailedAt       *time.Time        `json:"failedAt,omitempty" db:"failed_at"`
	UpdatedAt      time.Time         `json:"updatedAt" db:"updated_at"`
}

// RateLimitCounter is one (identity, minute) bucket.
type RateLimitCounter struct {
	Key       string    `json:"key" db:"key"`
	Identity  string    `json:"identity" db:"identity"`
	Bucket    string    `json:"bucket" db:"bucket"`
	Count     int       `json:"count" db:"count"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
