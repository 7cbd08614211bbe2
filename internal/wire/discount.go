package wire

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-orders/internal/domain/discount"
)

// DecodeDiscountDraft decodes the administrator payload for creating or
// updating a discount. is_active defaults to true when omitted.
func DecodeDiscountDraft(d *jx.Decoder) (discount.Draft, error) {
	draft := discount.Draft{IsActive: true}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			draft.Code, err = d.Str()
		case "kind":
			var s string
			if s, err = d.Str(); err == nil {
				if draft.Kind, err = discount.ParseKind(s); err != nil {
					return &discount.InvalidError{Field: "kind", Msg: err.Error()}
				}
			}
		case "value":
			draft.Value, err = Money(d)
		case "usage_limit":
			draft.UsageLimit, err = optInt64(d)
		case "active_from":
			var t *time.Time
			if t, err = OptTime(d); t != nil {
				draft.ActiveFrom = *t
			}
		case "active_until":
			draft.ActiveUntil, err = OptTime(d)
		case "is_active":
			draft.IsActive, err = d.Bool()
		case "min_subtotal":
			draft.MinSubtotal, err = OptMoney(d)
		case "eligible_product_ids":
			draft.EligibleProductIDs, err = strs(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return &discount.InvalidError{Field: key, Msg: err.Error()}
		}
		return nil
	})
	if err != nil {
		var ie *discount.InvalidError
		if errors.As(err, &ie) {
			return draft, ie
		}
		return draft, &discount.InvalidError{Field: "body", Msg: err.Error()}
	}
	return draft, nil
}

// EncodeDiscount writes d as a JSON object.
func EncodeDiscount(e *jx.Encoder, d *discount.Discount) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(d.ID)
	e.FieldStart("code")
	e.Str(d.Code)
	e.FieldStart("kind")
	e.Str(d.Kind.String())
	encodeMoney(e, "value", d.Value)
	e.FieldStart("usage_limit")
	if d.UsageLimit != nil {
		e.Int64(*d.UsageLimit)
	} else {
		e.Null()
	}
	e.FieldStart("usage_count")
	e.Int64(d.UsageCount)
	encodeTime(e, "active_from", d.ActiveFrom)
	if d.ActiveUntil != nil {
		encodeTime(e, "active_until", *d.ActiveUntil)
	} else {
		e.FieldStart("active_until")
		e.Null()
	}
	e.FieldStart("is_active")
	e.Bool(d.IsActive)
	if d.MinSubtotal != nil {
		encodeMoney(e, "min_subtotal", *d.MinSubtotal)
	} else {
		e.FieldStart("min_subtotal")
		e.Null()
	}
	e.FieldStart("eligible_product_ids")
	e.ArrStart()
	for _, id := range d.EligibleProductIDs {
		e.Str(id)
	}
	e.ArrEnd()
	e.ObjEnd()
}

// EncodeDiscounts writes ds as a JSON array.
func EncodeDiscounts(e *jx.Encoder, ds []discount.Discount) {
	e.ArrStart()
	for i := range ds {
		EncodeDiscount(e, &ds[i])
	}
	e.ArrEnd()
}

func optInt64(d *jx.Decoder) (*int64, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := d.Int64()
	if err != nil {
		return nil, err
	}
	return &v, nil
}
