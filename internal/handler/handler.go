package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront-orders/internal/domain/discount"
	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/product"
)

const maxBodyBytes = 1 << 20

// Handler serves the storefront API, delegating business logic to the order
// and discount services and the product repository.
type Handler struct {
	products  product.Repository
	discounts *discount.Service
	orders    *order.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	discounts *discount.Service,
	orders *order.Service,
) *Handler {
	return &Handler{
		products:  products,
		discounts: discounts,
		orders:    orders,
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)

	mux.HandleFunc("POST /api/checkout/quote", h.Quote)

	mux.HandleFunc("POST /api/orders", h.CreateOrder)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
	mux.HandleFunc("POST /api/orders/{id}/status", h.TransitionStatus)
	mux.HandleFunc("PUT /api/orders/{id}/items", h.ReplaceItems)

	mux.HandleFunc("GET /api/discounts", h.ListDiscounts)
	mux.HandleFunc("POST /api/discounts", h.CreateDiscount)
	mux.HandleFunc("GET /api/discounts/{code}", h.GetDiscount)
	mux.HandleFunc("PUT /api/discounts/{id}", h.UpdateDiscount)
}

// decodeBody reads the request body and hands a decoder over it to fn.
func decodeBody(r *http.Request, fn func(d *jx.Decoder) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return &order.InputError{Field: "body", Msg: err.Error()}
	}
	if len(body) == 0 {
		return &order.InputError{Field: "body", Msg: "required"}
	}
	return fn(jx.DecodeBytes(body))
}

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
