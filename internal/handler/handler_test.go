package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-orders/internal/domain/discount"
	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
	"github.com/xenking/storefront-orders/internal/domain/product"
	"github.com/xenking/storefront-orders/internal/storage/memory"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()

	store, err := memory.New()
	require.NoError(t, err)
	require.NoError(t, store.PutProducts(context.Background(),
		product.Product{ID: "p1", Name: "Widget", Price: decimal.RequireFromString("5000"), Category: "tools", Inventory: 10},
		product.Product{ID: "p2", Name: "Gadget", Price: decimal.RequireFromString("3000"), Category: "tools", Inventory: 10},
	))

	rates, err := pricing.ParseShippingRates([]string{"standard=4.99"})
	require.NoError(t, err)
	orders, err := order.NewService(store, rates)
	require.NoError(t, err)

	h := NewHandler(
		memory.NewProductRepository(store),
		discount.NewService(memory.NewDiscountRepository(store)),
		orders,
	)
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func do(t *testing.T, mux http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, http.NoBody)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	var out map[string]any
	if w.Body.Len() > 0 && w.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func createDiscount(t *testing.T, mux http.Handler, body string) string {
	t.Helper()
	code, out := do(t, mux, http.MethodPost, "/api/discounts", body)
	require.Equal(t, http.StatusCreated, code, out)
	return out["id"].(string)
}

func TestHandler_Products(t *testing.T) {
	mux := newTestMux(t)

	r := httptest.NewRequest(http.MethodGet, "/api/products", http.NoBody)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "p1", list[0]["id"])
	assert.Equal(t, "5000.00", list[0]["price"])

	code, out := do(t, mux, http.MethodGet, "/api/products/p2", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Gadget", out["name"])

	code, out = do(t, mux, http.MethodGet, "/api/products/nope", "")
	require.Equal(t, http.StatusNotFound, code)
	assert.EqualValues(t, 404, out["code"])
}

func TestHandler_CreateOrder(t *testing.T) {
	mux := newTestMux(t)
	createDiscount(t, mux, `{"code":"TEN","kind":"percentage","value":"10","active_from":"2020-01-01T00:00:00Z"}`)

	code, out := do(t, mux, http.MethodPost, "/api/orders", `{
		"customer_id": "c1",
		"items": [{"product_id": "p1", "quantity": 2}, {"product_id": "p2", "quantity": 1}],
		"discount_code": "ten",
		"payment_reference": "pay_1",
		"subtotal": "13000",
		"discount_amount": 1300,
		"total": "11700.00"
	}`)
	require.Equal(t, http.StatusCreated, code, out)
	assert.Equal(t, "pending", out["status"])
	assert.Equal(t, "13000.00", out["subtotal"])
	assert.Equal(t, "1300.00", out["discount_amount"])
	assert.Equal(t, "11700.00", out["total"])
	id := out["id"].(string)

	code, out = do(t, mux, http.MethodGet, "/api/orders/"+id, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pay_1", out["payment_reference"])

	code, out = do(t, mux, http.MethodGet, "/api/discounts/TEN", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, out["usage_count"])

	code, _ = do(t, mux, http.MethodPost, "/api/orders", `{
		"customer_id": "c1",
		"items": [{"product_id": "p1", "quantity": 1}],
		"payment_reference": "pay_1"
	}`)
	assert.Equal(t, http.StatusConflict, code)
}

func TestHandler_CreateOrderErrors(t *testing.T) {
	mux := newTestMux(t)
	createDiscount(t, mux, `{"code":"BIG","kind":"fixed_amount","value":"10","min_subtotal":"100000","active_from":"2020-01-01T00:00:00Z"}`)

	for _, tt := range []struct {
		name   string
		body   string
		status int
		field  string
		reason string
	}{
		{
			name:   "MalformedBody",
			body:   `{"customer_id": "c1"`,
			status: http.StatusBadRequest,
			field:  "body",
		},
		{
			name:   "EmptyItems",
			body:   `{"customer_id": "c1", "items": []}`,
			status: http.StatusBadRequest,
			field:  "items",
		},
		{
			name:   "MissingCustomer",
			body:   `{"items": [{"product_id": "p1", "quantity": 1}]}`,
			status: http.StatusBadRequest,
			field:  "customer_id",
		},
		{
			name:   "ZeroQuantity",
			body:   `{"customer_id": "c1", "items": [{"product_id": "p1", "quantity": 0}]}`,
			status: http.StatusBadRequest,
			field:  "items",
		},
		{
			name:   "QuantityOverflow",
			body:   `{"customer_id": "c1", "items": [{"product_id": "p1", "quantity": 2147483648}]}`,
			status: http.StatusBadRequest,
			field:  "items",
		},
		{
			name:   "UnknownProduct",
			body:   `{"customer_id": "c1", "items": [{"product_id": "zzz", "quantity": 1}]}`,
			status: http.StatusNotFound,
		},
		{
			name:   "UnknownDiscount",
			body:   `{"customer_id": "c1", "items": [{"product_id": "p1", "quantity": 1}], "discount_code": "NOPE"}`,
			status: http.StatusNotFound,
		},
		{
			name:   "DiscountRejected",
			body:   `{"customer_id": "c1", "items": [{"product_id": "p1", "quantity": 1}], "discount_code": "BIG"}`,
			status: http.StatusBadRequest,
			reason: "subtotal_too_low",
		},
		{
			name:   "TamperedSubtotal",
			body:   `{"customer_id": "c1", "items": [{"product_id": "p1", "quantity": 2}], "subtotal": "9999"}`,
			status: http.StatusBadRequest,
			field:  "subtotal",
		},
		{
			name:   "UnknownShipping",
			body:   `{"customer_id": "c1", "items": [{"product_id": "p1", "quantity": 1}], "shipping_option": "drone"}`,
			status: http.StatusBadRequest,
			field:  "shipping_option",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			code, out := do(t, mux, http.MethodPost, "/api/orders", tt.body)
			require.Equal(t, tt.status, code, out)
			assert.EqualValues(t, tt.status, out["code"])
			assert.NotEmpty(t, out["message"])
			if tt.field != "" {
				assert.Equal(t, tt.field, out["field"])
			}
			if tt.reason != "" {
				assert.Equal(t, tt.reason, out["reason"])
			}
		})
	}
}

func TestHandler_Quote(t *testing.T) {
	mux := newTestMux(t)
	createDiscount(t, mux, `{"code":"BIG","kind":"fixed_amount","value":"10","min_subtotal":"100000","active_from":"2020-01-01T00:00:00Z"}`)
	createDiscount(t, mux, `{"code":"SHIP","kind":"free_shipping","value":"0","active_from":"2020-01-01T00:00:00Z"}`)

	code, out := do(t, mux, http.MethodPost, "/api/checkout/quote",
		`{"items": [{"product_id": "p2", "quantity": 1}], "discount_code": "big", "shipping_option": "standard"}`)
	require.Equal(t, http.StatusOK, code, out)
	assert.Equal(t, "3000.00", out["total"])
	assert.Equal(t, "3004.99", out["amount_due"])
	rejection := out["discount_rejection"].(map[string]any)
	assert.Equal(t, "subtotal_too_low", rejection["reason"])

	code, out = do(t, mux, http.MethodPost, "/api/checkout/quote",
		`{"items": [{"product_id": "p2", "quantity": 1}], "discount_code": "SHIP", "shipping_option": "standard"}`)
	require.Equal(t, http.StatusOK, code, out)
	assert.Equal(t, "4.99", out["shipping_discount"])
	assert.Equal(t, "3000.00", out["amount_due"])
	assert.NotContains(t, out, "discount_rejection")
}

func TestHandler_Lifecycle(t *testing.T) {
	mux := newTestMux(t)

	code, out := do(t, mux, http.MethodPost, "/api/orders",
		`{"customer_id": "c1", "items": [{"product_id": "p1", "quantity": 3}]}`)
	require.Equal(t, http.StatusCreated, code, out)
	id := out["id"].(string)
	base := "/api/orders/" + id

	code, out = do(t, mux, http.MethodPut, base+"/items", `{"items": [{"product_id": "p2", "quantity": 2}]}`)
	require.Equal(t, http.StatusOK, code, out)
	assert.Equal(t, "6000.00", out["total"])

	code, out = do(t, mux, http.MethodPost, base+"/status", `{"status": "teleported"}`)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "status", out["field"])

	code, _ = do(t, mux, http.MethodPost, base+"/status", `{"status": "delivered"}`)
	require.Equal(t, http.StatusConflict, code)

	for _, s := range []string{"processing", "shipped", "delivered"} {
		code, out = do(t, mux, http.MethodPost, base+"/status", `{"status": "`+s+`"}`)
		require.Equal(t, http.StatusOK, code, out)
		assert.Equal(t, s, out["status"])
	}
	assert.Equal(t, true, out["inventory_deducted"])
	assert.Contains(t, out, "delivered_at")

	code, out = do(t, mux, http.MethodGet, "/api/products/p2", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 8, out["inventory"])

	code, _ = do(t, mux, http.MethodPut, base+"/items", `{"items": [{"product_id": "p1", "quantity": 1}]}`)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = do(t, mux, http.MethodPost, "/api/orders/missing/status", `{"status": "processing"}`)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHandler_Discounts(t *testing.T) {
	mux := newTestMux(t)
	id := createDiscount(t, mux, `{"code":"Once","kind":"fixed_amount","value":5,"usage_limit":1,"active_from":"2020-01-01T00:00:00Z"}`)

	code, out := do(t, mux, http.MethodPost, "/api/discounts", `{"code":"ONCE","kind":"percentage","value":"5"}`)
	require.Equal(t, http.StatusConflict, code, out)

	code, out = do(t, mux, http.MethodPost, "/api/discounts", `{"code":"BAD","kind":"percentage","value":"150"}`)
	require.Equal(t, http.StatusBadRequest, code, out)
	assert.Equal(t, "value", out["field"])

	code, out = do(t, mux, http.MethodPost, "/api/discounts", `{"code":"BAD","kind":"bogus","value":"1"}`)
	require.Equal(t, http.StatusBadRequest, code, out)
	assert.Equal(t, "kind", out["field"])

	code, out = do(t, mux, http.MethodPost, "/api/orders",
		`{"customer_id": "c1", "items": [{"product_id": "p1", "quantity": 1}], "discount_id": "`+id+`"}`)
	require.Equal(t, http.StatusCreated, code, out)
	assert.Equal(t, "4995.00", out["total"])

	code, out = do(t, mux, http.MethodPut, "/api/discounts/"+id,
		`{"code":"Once","kind":"fixed_amount","value":"7","usage_limit":3,"active_from":"2020-01-01T00:00:00Z"}`)
	require.Equal(t, http.StatusOK, code, out)
	assert.Equal(t, "7.00", out["value"])
	assert.EqualValues(t, 1, out["usage_count"])
	assert.EqualValues(t, 3, out["usage_limit"])

	code, _ = do(t, mux, http.MethodPut, "/api/discounts/missing",
		`{"code":"X","kind":"fixed_amount","value":"1"}`)
	assert.Equal(t, http.StatusNotFound, code)

	r := httptest.NewRequest(http.MethodGet, "/api/discounts", http.NoBody)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Once", list[0]["code"])
}

func TestMapError(t *testing.T) {
	for _, tt := range []struct {
		err  error
		code int
	}{
		{order.ErrEmptyItems, http.StatusBadRequest},
		{&order.TamperedTotalError{Field: "total"}, http.StatusBadRequest},
		{&discount.RejectedError{Code: "X", Reason: discount.ReasonExpired}, http.StatusBadRequest},
		{&discount.InvalidError{Field: "code", Msg: "required"}, http.StatusBadRequest},
		{order.ErrNotFound, http.StatusNotFound},
		{&order.ProductNotFoundError{ProductID: "p"}, http.StatusNotFound},
		{&order.IllegalTransitionError{From: order.StatusDelivered, To: order.StatusPending}, http.StatusConflict},
		{order.ErrConflict, http.StatusConflict},
		{order.ErrNotEditable, http.StatusConflict},
		{&order.InsufficientInventoryError{ProductID: "p", Quantity: 1}, http.StatusConflict},
		{discount.ErrCodeTaken, http.StatusConflict},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	} {
		assert.Equal(t, tt.code, mapError(tt.err).Code, "%v", tt.err)
	}
}
