package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-orders/internal/domain/discount"
	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/product"
)

// apiError is the JSON body of every non-2xx response.
type apiError struct {
	Code    int
	Message string
	Reason  string
	Field   string
}

func (e apiError) encode(enc *jx.Encoder) {
	enc.ObjStart()
	enc.FieldStart("code")
	enc.Int(e.Code)
	enc.FieldStart("message")
	enc.Str(e.Message)
	if e.Reason != "" {
		enc.FieldStart("reason")
		enc.Str(e.Reason)
	}
	if e.Field != "" {
		enc.FieldStart("field")
		enc.Str(e.Field)
	}
	enc.ObjEnd()
}

// mapError converts domain errors to an API error. Unrecognized errors map to
// 500 and are reported with a generic message.
func mapError(err error) apiError {
	var (
		inputErr  *order.InputError
		qtyErr    *order.InvalidQuantityError
		tamperErr *order.TamperedTotalError
		rejectErr *discount.RejectedError
		invErr    *discount.InvalidError
		pnfErr    *order.ProductNotFoundError
	)
	switch {
	case errors.As(err, &inputErr):
		return apiError{Code: http.StatusBadRequest, Message: inputErr.Msg, Field: inputErr.Field}
	case errors.As(err, &qtyErr):
		return apiError{Code: http.StatusBadRequest, Message: qtyErr.Error(), Field: "items"}
	case errors.As(err, &tamperErr):
		return apiError{Code: http.StatusBadRequest, Message: tamperErr.Error(), Field: tamperErr.Field}
	case errors.As(err, &rejectErr):
		return apiError{Code: http.StatusBadRequest, Message: rejectErr.Error(), Reason: rejectErr.Reason.String()}
	case errors.As(err, &invErr):
		return apiError{Code: http.StatusBadRequest, Message: invErr.Msg, Field: invErr.Field}
	case errors.As(err, &pnfErr):
		return apiError{Code: http.StatusNotFound, Message: pnfErr.Error()}
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, discount.ErrNotFound):
		return apiError{Code: http.StatusNotFound, Message: err.Error()}
	case errors.Is(err, order.ErrIllegalTransition),
		errors.Is(err, order.ErrConflict),
		errors.Is(err, order.ErrNotEditable),
		errors.Is(err, order.ErrInsufficientInventory),
		errors.Is(err, order.ErrDuplicatePayment),
		errors.Is(err, discount.ErrCodeTaken):
		return apiError{Code: http.StatusConflict, Message: err.Error()}
	default:
		return apiError{Code: http.StatusInternalServerError, Message: "internal server error"}
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := mapError(err)
	if e.Code >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, e.Code, e.encode)
}
