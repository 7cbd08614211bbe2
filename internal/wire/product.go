package wire

import (
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-orders/internal/domain/product"
)

// EncodeProduct writes p as a JSON object.
func EncodeProduct(e *jx.Encoder, p *product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	encodeMoney(e, "price", p.Price)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("inventory")
	e.Int(p.Inventory)
	e.ObjEnd()
}

// EncodeProducts writes ps as a JSON array.
func EncodeProducts(e *jx.Encoder, ps []product.Product) {
	e.ArrStart()
	for i := range ps {
		EncodeProduct(e, &ps[i])
	}
	e.ArrEnd()
}
