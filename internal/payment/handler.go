package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/storefront-orders/internal/domain/discount"
	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/product"
)

// DefaultClaimTTL bounds how long a processed payment reference is
// remembered in Redis.
const DefaultClaimTTL = 24 * time.Hour

// OrderCreator is the part of order.Service the handler needs.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req order.CreateOrderRequest) (*order.Order, error)
}

// Handler processes confirmation messages.
//
// Payment references are claimed in Redis with SETNX before an order is
// created so redelivered messages are skipped cheaply. The claim is released
// when order creation fails for a reason that may go away, letting the
// redelivery try again. Without Redis the store's unique payment reference
// is the only guard.
type Handler struct {
	orders OrderCreator
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithRedis enables claim-based deduplication.
func WithRedis(rdb redis.Cmdable) HandlerOption {
	return func(h *Handler) { h.rdb = rdb }
}

// WithClaimTTL overrides DefaultClaimTTL.
func WithClaimTTL(ttl time.Duration) HandlerOption {
	return func(h *Handler) { h.ttl = ttl }
}

// NewHandler creates a Handler.
func NewHandler(orders OrderCreator, opts ...HandlerOption) *Handler {
	h := &Handler{
		orders: orders,
		ttl:    DefaultClaimTTL,
		prefix: "shop:payment:",
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Handle processes one raw confirmation. A nil return means the message is
// done with, whether it produced an order or was dropped; a non-nil error
// means it should be redelivered.
func (h *Handler) Handle(ctx context.Context, data []byte) error {
	lg := zctx.From(ctx)

	c, err := DecodeConfirmation(data)
	if err != nil {
		lg.Warn("Dropping malformed payment confirmation", zap.Error(err))
		return nil
	}
	lg = lg.With(zap.String("payment_reference", c.PaymentReference))
	if c.Status != StatusSucceeded {
		lg.Debug("Skipping unsuccessful payment", zap.String("status", c.Status))
		return nil
	}

	if h.rdb != nil {
		claimed, err := h.rdb.SetNX(ctx, h.key(c), time.Now().UTC().Format(time.RFC3339), h.ttl).Result()
		if err != nil {
			return errors.Wrap(err, "claim payment reference")
		}
		if !claimed {
			lg.Info("Skipping already processed payment")
			return nil
		}
	}

	o, err := h.orders.CreateOrder(ctx, c.Intent)
	switch {
	case err == nil:
		lg.Info("Order created from payment", zap.String("order_id", o.ID))
		return nil
	case errors.Is(err, order.ErrDuplicatePayment):
		lg.Info("Order for payment already exists")
		return nil
	case permanent(err):
		lg.Warn("Payment intent rejected", zap.Error(err))
		return nil
	}

	if h.rdb != nil {
		if delErr := h.rdb.Del(context.WithoutCancel(ctx), h.key(c)).Err(); delErr != nil {
			lg.Error("Release payment claim", zap.Error(delErr))
		}
	}
	return errors.Wrap(err, "create order")
}

func (h *Handler) key(c Confirmation) string {
	return h.prefix + c.PaymentReference
}

// permanent reports whether redelivering the same intent can never succeed.
func permanent(err error) bool {
	for _, target := range []error{
		order.ErrInvalidInput,
		order.ErrTamperedTotal,
		discount.ErrRejected,
		discount.ErrNotFound,
		product.ErrNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
