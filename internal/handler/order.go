package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/wire"
)

// Quote prices a prospective cart without persisting anything.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req order.QuoteRequest
	if err := decodeBody(r, func(d *jx.Decoder) (err error) {
		req, err = wire.DecodeQuote(d)
		return err
	}); err != nil {
		writeError(w, r, err)
		return
	}

	q, err := h.orders.Quote(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeQuote(e, q) })
}

// CreateOrder places an order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req order.CreateOrderRequest
	if err := decodeBody(r, func(d *jx.Decoder) (err error) {
		req, err = wire.DecodeCreateOrder(d)
		return err
	}); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.CreateOrder(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { wire.EncodeOrder(e, o) })
}

// GetOrder returns a stored order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeOrder(e, o) })
}

// TransitionStatus moves an order through its lifecycle.
func (h *Handler) TransitionStatus(w http.ResponseWriter, r *http.Request) {
	var to order.Status
	if err := decodeBody(r, func(d *jx.Decoder) (err error) {
		to, err = wire.DecodeStatus(d)
		return err
	}); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.TransitionStatus(r.Context(), r.PathValue("id"), to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeOrder(e, o) })
}

// ReplaceItems swaps the item set of an editable order and reprices it.
func (h *Handler) ReplaceItems(w http.ResponseWriter, r *http.Request) {
	var req order.ReplaceItemsRequest
	if err := decodeBody(r, func(d *jx.Decoder) (err error) {
		req, err = wire.DecodeReplaceItems(d)
		return err
	}); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.ReplaceItems(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeOrder(e, o) })
}
