package checkout

import (
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
)

// ErrorKind is the closed set of checkout failure categories.
type ErrorKind string

const (
	KindEmptyCart         ErrorKind = "empty_cart"
	KindInvalidAddress    ErrorKind = "invalid_address"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindProductNotFound   ErrorKind = "product_not_found"
	KindTxConflict        ErrorKind = "tx_conflict"
	KindPersistence       ErrorKind = "persistence"
)

func (k ErrorKind) String() string {
	return string(k)
}

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidAddress    = errors.New("shipping address is required")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotFound   = errors.New("product not found")
	ErrTxConflict        = errors.New("transaction conflict")
	ErrPersistence       = errors.New("persistence failure")
)

// StockError names the cart line that failed validation. Err is either
// ErrInsufficientStock or ErrProductNotFound.
type StockError struct {
	ProductID   uuid.UUID
	ProductName string
	Requested   int
	Available   int
	Err         error
}

func (e *StockError) Error() string {
	if errors.Is(e.Err, ErrProductNotFound) {
		return fmt.Sprintf("product %s not found", e.ProductID)
	}
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d", e.ProductName, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error {
	return e.Err
}

// KindOf classifies err. Errors outside the taxonomy count as persistence
// failures; nil has no kind.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyCart):
		return KindEmptyCart
	case errors.Is(err, ErrInvalidAddress):
		return KindInvalidAddress
	case errors.Is(err, ErrProductNotFound):
		return KindProductNotFound
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrTxConflict):
		return KindTxConflict
	default:
		return KindPersistence
	}
}

// classify keeps taxonomy errors as they are and wraps everything else in
// ErrPersistence.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindPersistence || errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
