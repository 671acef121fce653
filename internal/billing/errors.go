package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Validation sentinels raised before any write is attempted.
var (
	ErrEmptyInvoice    = errors.New("invoice has no line items")
	ErrMissingCustomer = errors.New("invoice has no customer")
	ErrLineIndex       = errors.New("line index out of range")
)

// DuplicateLineError is returned when a product or service is added to a
// draft that already carries a line for the same reference.
type DuplicateLineError struct {
	Kind string // "product" or "service"
	Ref  string
	Name string
}

func (e *DuplicateLineError) Error() string {
	return fmt.Sprintf("%s %q (%s) already on invoice", e.Kind, e.Name, e.Ref)
}

// InvalidQuantityError is returned for zero or negative quantities.
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d: must be positive", e.Quantity)
}

// InvalidPriceError is returned for prices outside the allowed range.
type InvalidPriceError struct {
	Price decimal.Decimal
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("invalid price %s", e.Price)
}

// InvalidDiscountError is returned for negative discounts, percentages
// above 100, or an unknown discount mode.
type InvalidDiscountError struct {
	Mode   string
	Amount decimal.Decimal
}

func (e *InvalidDiscountError) Error() string {
	return fmt.Sprintf("invalid discount: mode=%s amount=%s", e.Mode, e.Amount)
}

// InsufficientStockError is returned when a requested quantity exceeds
// the quantity recorded in the stock snapshot.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested=%d, available=%d",
		e.ProductID, e.Requested, e.Available)
}

// InvoiceNotFoundError is returned when a reversal references an unknown
// or already-deleted invoice.
type InvoiceNotFoundError struct {
	ID string
}

func (e *InvoiceNotFoundError) Error() string {
	return fmt.Sprintf("invoice not found: %s", e.ID)
}

// CommitFailedError wraps a storage or transport fault during commit.
// The whole write set had no effect.
type CommitFailedError struct {
	Err error
}

func (e *CommitFailedError) Error() string {
	return fmt.Sprintf("invoice commit failed: %v", e.Err)
}

func (e *CommitFailedError) Unwrap() error { return e.Err }

// ReversalFailedError wraps a storage or transport fault during reversal.
// The whole write set had no effect.
type ReversalFailedError struct {
	Err error
}

func (e *ReversalFailedError) Error() string {
	return fmt.Sprintf("invoice reversal failed: %v", e.Err)
}

func (e *ReversalFailedError) Unwrap() error { return e.Err }
