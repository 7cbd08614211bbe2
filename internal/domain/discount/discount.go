package discount

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported discount strategies. The set is closed:
// every switch over Kind must handle all three values.
type Kind int

const (
	// KindPercentage reduces the subtotal by Value percent.
	KindPercentage Kind = iota + 1
	// KindFixedAmount reduces the subtotal by a fixed money amount.
	KindFixedAmount
	// KindFreeShipping waives the shipping line and leaves the subtotal alone.
	KindFreeShipping
)

// String returns the wire and storage name of the kind.
func (k Kind) String() string {
	switch k {
	case KindPercentage:
		return "percentage"
	case KindFixedAmount:
		return "fixed_amount"
	case KindFreeShipping:
		return "free_shipping"
	default:
		return "unknown"
	}
}

// ParseKind converts a wire or storage name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "percentage":
		return KindPercentage, nil
	case "fixed_amount":
		return KindFixedAmount, nil
	case "free_shipping":
		return KindFreeShipping, nil
	default:
		return 0, errors.Errorf("unsupported discount kind: %q", s)
	}
}

var (
	// ErrNotFound is returned when a discount cannot be found by ID or code.
	ErrNotFound = errors.New("discount not found")
	// ErrCodeTaken is returned when another discount already uses the code
	// (compared case-insensitively).
	ErrCodeTaken = errors.New("discount code already exists")
)

// Discount is a named, time-bounded, usage-capped reduction applied to an
// order. UsageCount only ever grows, one step per committed order that
// applied the discount.
type Discount struct {
	ID                 string
	Code               string
	Kind               Kind
	Value              decimal.Decimal
	UsageLimit         *int64
	UsageCount         int64
	ActiveFrom         time.Time
	ActiveUntil        *time.Time
	IsActive           bool
	MinSubtotal        *decimal.Decimal
	EligibleProductIDs []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NormalizeCode returns the lookup key for a discount code.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// Clone returns a deep copy of d. Stores hand out clones so callers never
// share mutable state with the persistence layer.
func (d *Discount) Clone() *Discount {
	if d == nil {
		return nil
	}
	c := *d
	if d.UsageLimit != nil {
		v := *d.UsageLimit
		c.UsageLimit = &v
	}
	if d.ActiveUntil != nil {
		v := *d.ActiveUntil
		c.ActiveUntil = &v
	}
	if d.MinSubtotal != nil {
		v := *d.MinSubtotal
		c.MinSubtotal = &v
	}
	if d.EligibleProductIDs != nil {
		c.EligibleProductIDs = append([]string(nil), d.EligibleProductIDs...)
	}
	return &c
}

// Repository provides lookup and administration of discounts.
type Repository interface {
	Create(ctx context.Context, d *Discount) error
	Update(ctx context.Context, d *Discount) error
	GetByID(ctx context.Context, id string) (*Discount, error)
	GetByCode(ctx context.Context, code string) (*Discount, error)
	List(ctx context.Context) ([]Discount, error)
}
