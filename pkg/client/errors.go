package client

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the client core. Transient errors
// (ErrTemporarilyUnavailable, ErrOperationTimedOut) are retried for
// idempotent reads; everything else surfaces immediately.
var (
	ErrEmptyCart              = errors.New("cart is empty")
	ErrItemUnavailable        = errors.New("item is not available")
	ErrOutOfStock             = errors.New("item is out of stock")
	ErrNotCancelable          = errors.New("order can no longer be cancelled")
	ErrNotEditable            = errors.New("order can no longer be edited")
	ErrTemporarilyUnavailable = errors.New("service temporarily unavailable")
	ErrOperationTimedOut      = errors.New("operation timed out")
	ErrOrderCreationFailed    = errors.New("order creation failed")
	ErrProofRequired          = errors.New("payment proof is required before submitting")
	ErrRequestInFlight        = errors.New("request already in flight")
	ErrMessageEmpty           = errors.New("message body or attachment is required")
)

// ValidationError marks a locally detected form error. It never
// reaches the network and is surfaced against the named field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// StockConflictError reports that the catalog changed since the item
// entered the cart; Available carries the quantity still purchasable.
type StockConflictError struct {
	ItemID    int
	ItemName  string
	Available int
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("only %d of %s available", e.Available, e.ItemName)
}

// APIError carries a non-2xx backend response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}
