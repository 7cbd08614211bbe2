package wire

import (
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
)

func asInput(err error) error {
	return malformed("body", err)
}

func decodeItems(d *jx.Decoder) ([]order.Item, error) {
	var items []order.Item
	err := d.Arr(func(d *jx.Decoder) error {
		var item order.Item
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "product_id":
				item.ProductID, err = d.Str()
			case "quantity":
				item.Quantity, err = d.Int()
			default:
				return d.Skip()
			}
			if err != nil {
				return malformed("items."+key, err)
			}
			return nil
		}); err != nil {
			return err
		}
		items = append(items, item)
		return nil
	})
	return items, err
}

func decodeProvided(d *jx.Decoder, key string, p *order.Provided) (bool, error) {
	var err error
	switch key {
	case "subtotal":
		p.Subtotal, err = OptMoney(d)
	case "discount_amount":
		p.DiscountAmount, err = OptMoney(d)
	case "total":
		p.Total, err = OptMoney(d)
	default:
		return false, nil
	}
	return true, err
}

// DecodeCreateOrder decodes a checkout submission.
func DecodeCreateOrder(d *jx.Decoder) (order.CreateOrderRequest, error) {
	var req order.CreateOrderRequest
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "customer_id":
			req.CustomerID, err = d.Str()
		case "items":
			req.Items, err = decodeItems(d)
		case "discount_id":
			req.DiscountID, err = d.Str()
		case "discount_code":
			req.DiscountCode, err = d.Str()
		case "shipping_option":
			req.ShippingOption, err = d.Str()
		case "payment_reference":
			req.PaymentReference, err = d.Str()
		default:
			var ok bool
			if ok, err = decodeProvided(d, key, &req.Provided); !ok {
				return d.Skip()
			}
		}
		if err != nil {
			return malformed(key, err)
		}
		return nil
	})
	if err != nil {
		return req, asInput(err)
	}
	return req, nil
}

// DecodeQuote decodes a checkout preview request.
func DecodeQuote(d *jx.Decoder) (order.QuoteRequest, error) {
	var req order.QuoteRequest
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "items":
			req.Items, err = decodeItems(d)
		case "discount_code":
			req.DiscountCode, err = d.Str()
		case "shipping_option":
			req.ShippingOption, err = d.Str()
		default:
			return d.Skip()
		}
		if err != nil {
			return malformed(key, err)
		}
		return nil
	})
	if err != nil {
		return req, asInput(err)
	}
	return req, nil
}

// DecodeReplaceItems decodes an order edit.
func DecodeReplaceItems(d *jx.Decoder) (order.ReplaceItemsRequest, error) {
	var req order.ReplaceItemsRequest
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		if key == "items" {
			req.Items, err = decodeItems(d)
		} else {
			var ok bool
			if ok, err = decodeProvided(d, key, &req.Provided); !ok {
				return d.Skip()
			}
		}
		if err != nil {
			return malformed(key, err)
		}
		return nil
	})
	if err != nil {
		return req, asInput(err)
	}
	return req, nil
}

// DecodeStatus decodes a status transition request.
func DecodeStatus(d *jx.Decoder) (order.Status, error) {
	var (
		status order.Status
		seen   bool
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		s, err := d.Str()
		if err != nil {
			return malformed(key, err)
		}
		if status, err = order.ParseStatus(s); err != nil {
			return malformed(key, err)
		}
		seen = true
		return nil
	})
	if err != nil {
		return 0, asInput(err)
	}
	if !seen {
		return 0, &order.InputError{Field: "status", Msg: "required"}
	}
	return status, nil
}

func encodeLineItems(e *jx.Encoder, items []pricing.LineItem) {
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range items {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(item.ProductID)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		encodeMoney(e, "unit_price", item.UnitPrice)
		encodeMoney(e, "line_total", item.Amount())
		e.ObjEnd()
	}
	e.ArrEnd()
}

// EncodeOrder writes o as a JSON object.
func EncodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("customer_id")
	e.Str(o.CustomerID)
	e.FieldStart("status")
	e.Str(o.Status.String())
	encodeLineItems(e, o.Items)
	encodeOptStr(e, "discount_id", o.DiscountID)
	encodeOptStr(e, "discount_code", o.DiscountCode)
	encodeMoney(e, "subtotal", o.Subtotal)
	encodeMoney(e, "discount_amount", o.DiscountAmount)
	encodeMoney(e, "total", o.Total)
	encodeOptStr(e, "shipping_option", o.ShippingOption)
	encodeMoney(e, "shipping_cost", o.ShippingCost)
	encodeMoney(e, "shipping_discount", o.ShippingDiscount)
	encodeMoney(e, "amount_due", o.AmountDue)
	encodeOptStr(e, "payment_reference", o.PaymentReference)
	e.FieldStart("inventory_deducted")
	e.Bool(o.InventoryDeducted)
	encodeTime(e, "created_at", o.CreatedAt)
	encodeTime(e, "updated_at", o.UpdatedAt)
	if o.DeliveredAt != nil {
		encodeTime(e, "delivered_at", *o.DeliveredAt)
	}
	e.ObjEnd()
}

// EncodeQuote writes q as a JSON object.
func EncodeQuote(e *jx.Encoder, q *order.Quote) {
	e.ObjStart()
	encodeLineItems(e, q.Items)
	encodeOptStr(e, "discount_code", q.DiscountCode)
	encodeMoney(e, "subtotal", q.Totals.Subtotal)
	encodeMoney(e, "discount_amount", q.Totals.DiscountAmount)
	encodeMoney(e, "total", q.Totals.Total)
	encodeOptStr(e, "shipping_option", q.Shipping.Option)
	encodeMoney(e, "shipping_cost", q.Shipping.Cost)
	encodeMoney(e, "shipping_discount", q.Shipping.Discount)
	encodeMoney(e, "amount_due", q.AmountDue)
	if q.Rejection != nil {
		e.FieldStart("discount_rejection")
		e.ObjStart()
		e.FieldStart("code")
		e.Str(q.Rejection.Code)
		e.FieldStart("reason")
		e.Str(q.Rejection.Reason.String())
		e.ObjEnd()
	}
	e.ObjEnd()
}
