package utils

import (
	"errors"
	"fmt"
)

var (
	// input errors
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidLineItem    = errors.New("invalid line item")
	ErrBelowMinimumAmount = errors.New("order total is below the gateway minimum")
	ErrMissingToken       = errors.New("token is required")
	ErrInvalidEmail       = errors.New("invalid email")

	// security errors
	ErrInvalidSignature = errors.New("invalid signature")
	ErrDuplicateToken   = errors.New("token already processed")
	ErrUnauthorized     = errors.New("unauthorized")

	// integrity errors
	ErrAmountMismatch            = errors.New("paid amount does not match order total")
	ErrIncompleteGatewayResponse = errors.New("incomplete gateway response")

	// transient errors
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	ErrGatewayError       = errors.New("gateway error")
	ErrDatabaseError      = errors.New("database error")

	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderAlreadyPaid   = errors.New("order already paid")
	ErrOrderStateConflict = errors.New("order state changed concurrently")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrInvalidPage        = errors.New("invalid page parameter")
	ErrInvalidPageSize    = errors.New("invalid page size parameter")
	ErrInvalidOrderState  = errors.New("unknown order state")
)

// GatewayError carries the raw diagnostic returned by the payment gateway.
type GatewayError struct {
	StatusCode int
	Detail     string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error (status %d): %s", e.StatusCode, e.Detail)
}

func (e *GatewayError) Unwrap() error { return ErrGatewayError }

// ErrorCode returns the stable code name exposed to API clients.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "EmptyCart"
	case errors.Is(err, ErrInvalidLineItem):
		return "InvalidLineItem"
	case errors.Is(err, ErrBelowMinimumAmount):
		return "BelowMinimumAmount"
	case errors.Is(err, ErrMissingToken):
		return "MissingToken"
	case errors.Is(err, ErrInvalidEmail):
		return "InvalidEmail"
	case errors.Is(err, ErrInvalidSignature):
		return "InvalidSignature"
	case errors.Is(err, ErrDuplicateToken):
		return "DuplicateToken"
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrAmountMismatch):
		return "AmountMismatch"
	case errors.Is(err, ErrIncompleteGatewayResponse):
		return "IncompleteGatewayResponse"
	case errors.Is(err, ErrGatewayUnavailable):
		return "GatewayUnavailable"
	case errors.Is(err, ErrGatewayError):
		return "GatewayError"
	case errors.Is(err, ErrOrderNotFound):
		return "OrderNotFound"
	case errors.Is(err, ErrOrderAlreadyPaid):
		return "OrderAlreadyPaid"
	case errors.Is(err, ErrOrderStateConflict):
		return "OrderStateConflict"
	case errors.Is(err, ErrInvalidResetToken):
		return "InvalidResetToken"
	case errors.Is(err, ErrInvalidPage), errors.Is(err, ErrInvalidPageSize):
		return "InvalidPagination"
	case errors.Is(err, ErrInvalidOrderState):
		return "InvalidOrderState"
	case errors.Is(err, ErrDatabaseError):
		return "DatabaseError"
	default:
		return "InternalError"
	}
}
