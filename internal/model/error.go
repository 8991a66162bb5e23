package model

import "errors"

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// ErrorKind classifies a domain error for transport mapping.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindForbidden    ErrorKind = "forbidden"
	KindInvalidState ErrorKind = "invalid_state"
	KindConflict     ErrorKind = "conflict"
	KindInProgress   ErrorKind = "in_progress"
	KindRateLimited  ErrorKind = "rate_limited"
	KindUnavailable  ErrorKind = "unavailable"
	KindInternal     ErrorKind = "internal"
)

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON             = "INVALID_JSON"
	ErrCodeMissingField            = "MISSING_FIELD"
	ErrCodeValidationFailed        = "VALIDATION_FAILED"
	ErrCodeUnsupportedDeliveryType = "UNSUPPORTED_DELIVERY_TYPE"
	ErrCodeGroupExceedsCapacity    = "GROUP_EXCEEDS_CAPACITY"
	ErrCodeIdempotencyKeyReused    = "IDEMPOTENCY_KEY_REUSED"
	ErrCodeOrderNotFound           = "ORDER_NOT_FOUND"
	ErrCodeTabNotFound             = "TAB_NOT_FOUND"
	ErrCodeTableNotFound           = "TABLE_NOT_FOUND"
	ErrCodeTenantNotFound          = "TENANT_NOT_FOUND"
	ErrCodeRiderNotFound           = "RIDER_NOT_FOUND"
	ErrCodeNoEligibleOrders        = "NO_ELIGIBLE_ORDERS"
	ErrCodeNotOrderOwner           = "NOT_ORDER_OWNER"
	ErrCodeUnauthorised            = "UNAUTHORIZED"
	ErrCodeForbidden               = "FORBIDDEN"
	ErrCodeInvalidState            = "INVALID_STATE"
	ErrCodeConflict                = "CONFLICT"
	ErrCodeRequestInProgress       = "REQUEST_IN_PROGRESS"
	ErrCodeRateLimited             = "RATE_LIMITED"
	ErrCodeRateLimiterUnavailable  = "RATE_LIMITER_UNAVAILABLE"
	ErrCodeInternalError           = "INTERNAL_ERROR"
)

// DomainError is a business-logic failure the caller can act on.
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError carrying the same code, so that errors built
// with a specific message still compare equal to the sentinel values below.
// An invalid-state error is also a conflict: the record is not in the state
// the caller assumed. It keeps its own kind and maps to 400, not 409.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if t.Code == ErrCodeConflict && e.Kind == KindInvalidState {
		return true
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

func NewValidationError(message string) *DomainError {
	return NewDomainError(KindValidation, ErrCodeValidationFailed, message)
}

func NewNotFoundError(code, message string) *DomainError {
	return NewDomainError(KindNotFound, code, message)
}

func NewForbiddenError(code, message string) *DomainError {
	return NewDomainError(KindForbidden, code, message)
}

func NewInvalidStateError(message string) *DomainError {
	return NewDomainError(KindInvalidState, ErrCodeInvalidState, message)
}

// Common domain errors
var (
	ErrValidation              = NewValidationError("request validation failed")
	ErrUnsupportedDeliveryType = NewDomainError(KindValidation, ErrCodeUnsupportedDeliveryType, "Delivery type is not supported for this business")
	ErrGroupExceedsCapacity    = NewDomainError(KindValidation, ErrCodeGroupExceedsCapacity, "Group size exceeds table capacity")
	ErrIdempotencyKeyReused    = NewDomainError(KindValidation, ErrCodeIdempotencyKeyReused, "Idempotency key was already used for a different request")
	ErrOrderNotFound           = NewNotFoundError(ErrCodeOrderNotFound, "Order not found")
	ErrTabNotFound             = NewNotFoundError(ErrCodeTabNotFound, "Tab not found")
	ErrTableNotFound           = NewNotFoundError(ErrCodeTableNotFound, "Table not found")
	ErrTenantNotFound          = NewNotFoundError(ErrCodeTenantNotFound, "Tenant not found")
	ErrRiderNotFound           = NewNotFoundError(ErrCodeRiderNotFound, "Rider not found")
	ErrNoEligibleOrders        = NewNotFoundError(ErrCodeNoEligibleOrders, "No eligible orders for this tab")
	ErrNotOrderOwner           = NewForbiddenError(ErrCodeNotOrderOwner, "Order is not assigned to this rider")
	ErrForbidden               = NewForbiddenError(ErrCodeForbidden, "Caller is not allowed to perform this action")
	ErrUnauthorised            = NewDomainError(KindForbidden, ErrCodeUnauthorised, "Caller identity is missing or invalid")
	ErrInvalidState            = NewInvalidStateError("Order is not in the required state")
	ErrConflict                = NewDomainError(KindConflict, ErrCodeConflict, "Concurrent modification detected")
	ErrRequestInProgress       = NewDomainError(KindInProgress, ErrCodeRequestInProgress, "Request already in progress, retry shortly")
	ErrRateLimited             = NewDomainError(KindRateLimited, ErrCodeRateLimited, "Too many requests")
	ErrRateLimiterUnavailable  = NewDomainError(KindUnavailable, ErrCodeRateLimiterUnavailable, "Rate limiter unavailable")
)

// KindOf returns the kind of err, treating anything that is not a
// DomainError as internal.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
