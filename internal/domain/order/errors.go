package order

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/domain/pricing"
	"github.com/xenking/storefront-orders/internal/domain/product"
)

var (
	// ErrInvalidInput is the sentinel for rejected caller input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrIllegalTransition is the sentinel for *IllegalTransitionError.
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrConflict reports a lost race on a conditional update. Retrying the
	// operation may succeed.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrTamperedTotal is the sentinel for *TamperedTotalError.
	ErrTamperedTotal = errors.New("tampered total")
	// ErrNotEditable is returned when items are replaced on an order that has
	// left the Pending and Processing states.
	ErrNotEditable = errors.New("order is not editable")
	// ErrInsufficientInventory is the sentinel for *InsufficientInventoryError.
	ErrInsufficientInventory = errors.New("insufficient inventory")
	// ErrDuplicatePayment is returned when a payment reference already
	// belongs to another order.
	ErrDuplicatePayment = errors.New("payment reference already used")
)

var (
	ErrEmptyItems         = &InputError{Field: "items", Msg: "at least one item is required"}
	ErrCustomerRequired   = &InputError{Field: "customer_id", Msg: "required"}
	ErrUnknownShipping    = &InputError{Field: "shipping_option", Msg: "unknown shipping option"}
	ErrDiscountRefInvalid = &InputError{Field: "discount", Msg: "give either discount_id or discount_code, not both"}
)

// InputError reports malformed caller input. Field names the offending input.
type InputError struct {
	Field string
	Msg   string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// InvalidQuantityError indicates a line item quantity outside 1..MaxQuantity.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be between 1 and %d for product %s, got %d", MaxQuantity, e.ProductID, e.Quantity)
}

func (e *InvalidQuantityError) Unwrap() error { return ErrInvalidInput }

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error { return product.ErrNotFound }

// IllegalTransitionError reports a status change that is not a successor of
// the current status.
type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

func (e *IllegalTransitionError) Unwrap() error { return ErrIllegalTransition }

// InsufficientInventoryError reports a product whose stock cannot cover a
// delivered line item.
type InsufficientInventoryError struct {
	ProductID string
	Quantity  int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory for product %s (need %d)", e.ProductID, e.Quantity)
}

func (e *InsufficientInventoryError) Unwrap() error { return ErrInsufficientInventory }

// TamperedTotalError reports a client-provided money value that disagrees
// with the server computation.
type TamperedTotalError struct {
	Field    string
	Provided decimal.Decimal
	Computed decimal.Decimal
}

func (e *TamperedTotalError) Error() string {
	return fmt.Sprintf("%s mismatch: provided %s, computed %s",
		e.Field, e.Provided.StringFixed(pricing.Scale), e.Computed.StringFixed(pricing.Scale))
}

func (e *TamperedTotalError) Unwrap() error { return ErrTamperedTotal }
