package discount

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// ErrInvalid is the sentinel every *InvalidError unwraps to.
var ErrInvalid = errors.New("invalid discount")

// InvalidError reports an administrative payload that violates a discount
// rule. Field names the offending input.
type InvalidError struct {
	Field string
	Msg   string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func (e *InvalidError) Unwrap() error { return ErrInvalid }

// LimitBelowUsage reports a usage limit lower than the uses already
// consumed. Repositories return it when the count moved past the requested
// limit after the service checked it.
func LimitBelowUsage(count int64) *InvalidError {
	return &InvalidError{
		Field: "usage_limit",
		Msg:   fmt.Sprintf("must not be below current usage count %d", count),
	}
}

// Draft holds the administrator-editable fields of a discount.
type Draft struct {
	Code               string
	Kind               Kind
	Value              decimal.Decimal
	UsageLimit         *int64
	ActiveFrom         time.Time
	ActiveUntil        *time.Time
	IsActive           bool
	MinSubtotal        *decimal.Decimal
	EligibleProductIDs []string
}

// Service implements discount administration on top of a Repository.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a discount administration Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create validates the draft and stores a new discount with a zero usage
// count. A zero ActiveFrom defaults to the current time.
func (s *Service) Create(ctx context.Context, draft Draft) (*Discount, error) {
	d, err := FromDraft(uuid.NewString(), draft, s.now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, d); err != nil {
		return nil, errors.Wrap(err, "create discount")
	}

	zctx.From(ctx).Info("Discount created",
		zap.String("discount_id", d.ID),
		zap.String("code", d.Code),
		zap.Stringer("kind", d.Kind),
	)
	return d, nil
}

// Update replaces the editable fields of an existing discount. The usage
// counter is owned by order creation and is never modified here; a usage
// limit below the number of uses already consumed is rejected.
func (s *Service) Update(ctx context.Context, id string, draft Draft) (*Discount, error) {
	if err := checkDraft(draft); err != nil {
		return nil, err
	}

	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get discount")
	}
	if draft.UsageLimit != nil && *draft.UsageLimit < d.UsageCount {
		return nil, LimitBelowUsage(d.UsageCount)
	}

	draft.applyTo(d)
	d.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, d); err != nil {
		return nil, errors.Wrap(err, "update discount")
	}

	zctx.From(ctx).Info("Discount updated",
		zap.String("discount_id", d.ID),
		zap.String("code", d.Code),
	)
	return d, nil
}

// GetByCode looks a discount up by its case-insensitive code.
func (s *Service) GetByCode(ctx context.Context, code string) (*Discount, error) {
	return s.repo.GetByCode(ctx, code)
}

// List returns all discounts.
func (s *Service) List(ctx context.Context) ([]Discount, error) {
	return s.repo.List(ctx)
}

// FromDraft validates draft and builds a discount with the given ID and a
// zero usage count. A zero ActiveFrom defaults to now.
func FromDraft(id string, draft Draft, now time.Time) (*Discount, error) {
	if draft.ActiveFrom.IsZero() {
		draft.ActiveFrom = now
	}
	if err := checkDraft(draft); err != nil {
		return nil, err
	}
	d := &Discount{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
	}
	draft.applyTo(d)
	return d, nil
}

func (d Draft) applyTo(dst *Discount) {
	dst.Code = strings.TrimSpace(d.Code)
	dst.Kind = d.Kind
	dst.Value = d.Value
	dst.UsageLimit = d.UsageLimit
	dst.ActiveFrom = d.ActiveFrom
	dst.ActiveUntil = d.ActiveUntil
	dst.IsActive = d.IsActive
	dst.MinSubtotal = d.MinSubtotal
	dst.EligibleProductIDs = d.EligibleProductIDs
}

func checkDraft(d Draft) error {
	if strings.TrimSpace(d.Code) == "" {
		return &InvalidError{Field: "code", Msg: "required"}
	}

	switch d.Kind {
	case KindPercentage:
		if d.Value.LessThan(decimal.NewFromInt(1)) || d.Value.GreaterThan(hundred) {
			return &InvalidError{Field: "value", Msg: "percentage must be between 1 and 100"}
		}
	case KindFixedAmount:
		if !d.Value.IsPositive() {
			return &InvalidError{Field: "value", Msg: "fixed amount must be greater than 0"}
		}
	case KindFreeShipping:
		if !d.Value.IsZero() {
			return &InvalidError{Field: "value", Msg: "free shipping discounts carry no value"}
		}
	default:
		return &InvalidError{Field: "kind", Msg: "unsupported discount kind"}
	}

	if d.UsageLimit != nil && *d.UsageLimit < 1 {
		return &InvalidError{Field: "usage_limit", Msg: "must be at least 1"}
	}
	if d.ActiveUntil != nil && d.ActiveUntil.Before(d.ActiveFrom) {
		return &InvalidError{Field: "active_until", Msg: "must not be before active_from"}
	}
	if d.MinSubtotal != nil && d.MinSubtotal.IsNegative() {
		return &InvalidError{Field: "min_subtotal", Msg: "must not be negative"}
	}
	return nil
}
