package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidPrice      = errors.New("unit price must not be negative")
	ErrMissingProduct    = errors.New("product and seller are required")
	ErrMissingShipping   = errors.New("shipping address and payment method are required")
	ErrOwnProduct        = errors.New("cannot buy your own product")
	ErrSellerMismatch    = errors.New("product seller changed")
	ErrMixedSellers      = errors.New("seller group must contain a single seller")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("item is not in a valid state for this action")
	ErrNotTerminal       = errors.New("order is not finished yet")
	ErrNegativeStock     = errors.New("stock must not be negative")
	ErrConflictRetry     = errors.New("concurrent update, retry the request")
)

// InsufficientStockError is returned when a product cannot cover a requested
// quantity. It matches ErrInsufficientStock with errors.Is.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

var ErrInsufficientStock = errors.New("insufficient stock")

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: %d available, %d requested", e.ProductName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
