package wire

import (
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-orders/internal/domain/order"
)

// EncodeEvent writes an order event envelope. from_status is present only on
// status changes.
func EncodeEvent(e *jx.Encoder, ev order.Event) {
	e.ObjStart()
	e.FieldStart("type")
	e.Str(string(ev.Type))
	encodeTime(e, "at", ev.At)
	if ev.Type == order.EventStatusChanged {
		e.FieldStart("from_status")
		e.Str(ev.FromStatus.String())
	}
	e.FieldStart("order")
	EncodeOrder(e, ev.Order)
	e.ObjEnd()
}
