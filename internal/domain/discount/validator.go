package discount

import (
	"fmt"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Reason identifies why a discount was rejected.
type Reason int

const (
	ReasonNotActive Reason = iota + 1
	ReasonNotYetStarted
	ReasonExpired
	ReasonUsageLimitReached
	ReasonSubtotalTooLow
	ReasonProductsNotEligible
)

// String returns the stable identifier reported to API clients.
func (r Reason) String() string {
	switch r {
	case ReasonNotActive:
		return "not_active"
	case ReasonNotYetStarted:
		return "not_yet_started"
	case ReasonExpired:
		return "expired"
	case ReasonUsageLimitReached:
		return "usage_limit_reached"
	case ReasonSubtotalTooLow:
		return "subtotal_too_low"
	case ReasonProductsNotEligible:
		return "products_not_eligible"
	default:
		return "unknown"
	}
}

// ErrRejected is the sentinel every *RejectedError unwraps to.
var ErrRejected = errors.New("discount rejected")

// RejectedError reports the first eligibility rule a discount failed.
type RejectedError struct {
	Code   string
	Reason Reason
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("discount %q rejected: %s", e.Code, e.Reason)
}

func (e *RejectedError) Unwrap() error { return ErrRejected }

// RejectionReason extracts the Reason from err, if err carries one.
func RejectionReason(err error) (Reason, bool) {
	var rej *RejectedError
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return 0, false
}

// Validate checks whether d may be applied at time now to an order with the
// given subtotal and product set. Rules are evaluated in a fixed order and
// the first failing rule determines the returned *RejectedError. A nil
// return means the discount is eligible.
//
// Validate is pure: the same inputs always produce the same result, so it
// serves both checkout previews and the authoritative server-side check.
func Validate(d *Discount, now time.Time, subtotal decimal.Decimal, productIDs []string) error {
	if !d.IsActive {
		return d.reject(ReasonNotActive)
	}
	if now.Before(d.ActiveFrom) {
		return d.reject(ReasonNotYetStarted)
	}
	if d.ActiveUntil != nil && now.After(*d.ActiveUntil) {
		return d.reject(ReasonExpired)
	}
	if d.UsageLimit != nil && d.UsageCount >= *d.UsageLimit {
		return d.reject(ReasonUsageLimitReached)
	}
	return ValidateScope(d, subtotal, productIDs)
}

// ValidateScope runs only the order-dependent rules (minimum subtotal and
// product eligibility). It is used when an order that already holds the
// discount changes its items: the activity window and usage slot were
// settled at creation and are not re-checked.
func ValidateScope(d *Discount, subtotal decimal.Decimal, productIDs []string) error {
	if d.MinSubtotal != nil && subtotal.LessThan(*d.MinSubtotal) {
		return d.reject(ReasonSubtotalTooLow)
	}
	if len(d.EligibleProductIDs) > 0 && !intersects(d.EligibleProductIDs, productIDs) {
		return d.reject(ReasonProductsNotEligible)
	}
	return nil
}

func (d *Discount) reject(r Reason) error {
	return &RejectedError{Code: d.Code, Reason: r}
}

func intersects(allowed, ids []string) bool {
	for _, id := range ids {
		if slices.Contains(allowed, id) {
			return true
		}
	}
	return false
}
