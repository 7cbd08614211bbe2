package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront-orders/internal/domain/discount"
	"github.com/xenking/storefront-orders/internal/wire"
)

func (h *Handler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	ds, err := h.discounts.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeDiscounts(e, ds) })
}

func (h *Handler) GetDiscount(w http.ResponseWriter, r *http.Request) {
	d, err := h.discounts.GetByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeDiscount(e, d) })
}

func (h *Handler) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}
	d, err := h.discounts.Create(r.Context(), draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { wire.EncodeDiscount(e, d) })
}

// UpdateDiscount replaces the editable fields of a discount. The usage count
// is preserved.
func (h *Handler) UpdateDiscount(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}
	d, err := h.discounts.Update(r.Context(), r.PathValue("id"), draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeDiscount(e, d) })
}

func (h *Handler) decodeDraft(w http.ResponseWriter, r *http.Request) (discount.Draft, bool) {
	var draft discount.Draft
	if err := decodeBody(r, func(d *jx.Decoder) (err error) {
		draft, err = wire.DecodeDiscountDraft(d)
		return err
	}); err != nil {
		writeError(w, r, err)
		return draft, false
	}
	return draft, true
}
