// Package payment turns payment gateway confirmations into orders.
package payment

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/wire"
)

// StatusSucceeded is the only confirmation status that creates an order.
const StatusSucceeded = "succeeded"

// Confirmation is a payment gateway callback carrying the checkout intent
// that was paid for.
type Confirmation struct {
	PaymentReference string
	Status           string
	Intent           order.CreateOrderRequest
}

// DecodeConfirmation parses a confirmation message. The intent's own
// payment_reference, if any, is replaced by the confirmation's.
func DecodeConfirmation(data []byte) (Confirmation, error) {
	var c Confirmation
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "payment_reference":
			c.PaymentReference, err = d.Str()
		case "status":
			c.Status, err = d.Str()
		case "order":
			c.Intent, err = wire.DecodeCreateOrder(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return c, errors.Wrap(err, "decode confirmation")
	}
	if c.PaymentReference == "" {
		return c, errors.New("decode confirmation: payment_reference is required")
	}
	c.Intent.PaymentReference = c.PaymentReference
	return c, nil
}
