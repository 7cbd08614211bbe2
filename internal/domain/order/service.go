// Package order implements the order lifecycle: creation with authoritative
// pricing and discount application, status transitions with inventory side
// effects, and wholesale item replacement.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront-orders/internal/domain/discount"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
)

const instrumentationName = "github.com/xenking/storefront-orders/internal/domain/order"

// DefaultTxTimeout bounds every unit of work unless overridden.
const DefaultTxTimeout = 5 * time.Second

// Option configures a Service.
type Option func(*Service)

// WithTxTimeout sets the deadline applied to each unit of work.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.txTimeout = d
		}
	}
}

// WithClock overrides the time source used for discount windows and
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPublisher sets the destination of order events.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithTracerProvider sets the tracer provider for service spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider for service counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meter = mp.Meter(instrumentationName) }
}

// Service encapsulates order business logic on top of a Store.
type Service struct {
	store     Store
	rates     pricing.ShippingRates
	events    Publisher
	now       func() time.Time
	txTimeout time.Duration

	tracer      trace.Tracer
	meter       metric.Meter
	created     metric.Int64Counter
	tampered    metric.Int64Counter
	conflicts   metric.Int64Counter
	transitions metric.Int64Counter
}

// NewService creates an order Service.
func NewService(store Store, rates pricing.ShippingRates, opts ...Option) (*Service, error) {
	s := &Service{
		store:     store,
		rates:     rates,
		events:    nopPublisher{},
		now:       time.Now,
		txTimeout: DefaultTxTimeout,
		tracer:    tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meter:     metricnoop.NewMeterProvider().Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.created, err = s.meter.Int64Counter("shop.orders.created",
		metric.WithDescription("Orders committed"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.created counter")
	}
	if s.tampered, err = s.meter.Int64Counter("shop.orders.tampered",
		metric.WithDescription("Writes rejected because client totals disagreed"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.tampered counter")
	}
	if s.conflicts, err = s.meter.Int64Counter("shop.orders.conflicts",
		metric.WithDescription("Conditional updates that lost a race"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.conflicts counter")
	}
	if s.transitions, err = s.meter.Int64Counter("shop.orders.transitions",
		metric.WithDescription("Committed status transitions"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.transitions counter")
	}
	return s, nil
}

// inTx runs fn as one unit of work bounded by the configured timeout.
func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()
	return s.store.InTx(ctx, fn)
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) reconcile(ctx context.Context, orderID string, p Provided, computed pricing.Totals) error {
	err := Reconcile(p, computed)
	if err == nil {
		return nil
	}
	var te *TamperedTotalError
	if errors.As(err, &te) {
		s.tampered.Add(ctx, 1, metric.WithAttributes(attribute.String("field", te.Field)))
		zctx.From(ctx).Warn("Client totals rejected",
			zap.String("order_id", orderID),
			zap.String("field", te.Field),
			zap.String("provided", te.Provided.StringFixed(pricing.Scale)),
			zap.String("computed", te.Computed.StringFixed(pricing.Scale)),
		)
	}
	return err
}

func (s *Service) conflict(ctx context.Context, op string) error {
	s.conflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	return errors.Wrap(ErrConflict, op)
}

func (s *Service) publish(ctx context.Context, e Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		zctx.From(ctx).Error("Publish order event",
			zap.String("order_id", e.Order.ID),
			zap.String("event", string(e.Type)),
			zap.Error(err),
		)
	}
}

// CreateOrderRequest holds the input for placing an order.
type CreateOrderRequest struct {
	CustomerID     string
	Items          []Item
	DiscountID     string
	DiscountCode   string
	ShippingOption string
	// PaymentReference is the opaque gateway reference, when known.
	PaymentReference string
	Provided         Provided
}

// CreateOrder prices the requested items, validates and applies the
// discount, and persists the order as Pending. The order row and the
// discount usage increment commit together or not at all.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (_ *Order, rerr error) {
	ctx, span := s.startSpan(ctx, "order.Create",
		attribute.String("customer_id", req.CustomerID),
		attribute.Int("items", len(req.Items)),
	)
	defer func() { endSpan(span, rerr) }()

	if req.CustomerID == "" {
		return nil, ErrCustomerRequired
	}
	if err := checkItems(req.Items); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	o := &Order{
		ID:               uuid.NewString(),
		CustomerID:       req.CustomerID,
		Status:           StatusPending,
		PaymentReference: req.PaymentReference,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := s.inTx(ctx, func(ctx context.Context, tx Tx) error {
		d, err := resolveDiscount(ctx, tx, req.DiscountID, req.DiscountCode)
		if err != nil {
			return err
		}

		p, err := s.price(ctx, tx, req.Items, d, req.ShippingOption)
		if err != nil {
			return err
		}
		if err := s.reconcile(ctx, o.ID, req.Provided, p.totals); err != nil {
			return err
		}

		if d != nil {
			if err := discount.Validate(d, now, p.totals.Subtotal, p.productIDs()); err != nil {
				return err
			}
			o.DiscountID = d.ID
			o.DiscountCode = d.Code
		}
		o.applyPricing(p)

		if err := tx.SaveOrder(ctx, o); err != nil {
			return errors.Wrap(err, "save order")
		}

		if d != nil {
			ok, err := tx.IncrementDiscountUsage(ctx, d.ID)
			if err != nil {
				return errors.Wrap(err, "increment discount usage")
			}
			if !ok {
				return s.conflict(ctx, "increment discount usage")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.created.Add(ctx, 1)
	zctx.From(ctx).Info("Order created",
		zap.String("order_id", o.ID),
		zap.String("customer_id", o.CustomerID),
		zap.String("discount_code", o.DiscountCode),
		zap.String("total", o.Total.StringFixed(pricing.Scale)),
	)
	s.publish(ctx, Event{Type: EventCreated, Order: o.Clone(), At: now})
	return o, nil
}

// QuoteRequest holds the input for a checkout preview.
type QuoteRequest struct {
	Items          []Item
	DiscountCode   string
	ShippingOption string
}

// Quote is a priced checkout preview. When the discount is rejected the
// totals are computed without it and Rejection carries the reason.
type Quote struct {
	Items        []pricing.LineItem
	Totals       pricing.Totals
	Shipping     pricing.ShippingLine
	AmountDue    decimal.Decimal
	DiscountCode string
	Rejection    *discount.RejectedError
}

// Quote runs the same pricing and discount validation as CreateOrder without
// persisting anything or consuming a discount use.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (_ *Quote, rerr error) {
	ctx, span := s.startSpan(ctx, "order.Quote", attribute.Int("items", len(req.Items)))
	defer func() { endSpan(span, rerr) }()

	if err := checkItems(req.Items); err != nil {
		return nil, err
	}

	var q Quote
	err := s.inTx(ctx, func(ctx context.Context, tx Tx) error {
		d, err := resolveDiscount(ctx, tx, "", req.DiscountCode)
		if err != nil {
			return err
		}

		p, err := s.price(ctx, tx, req.Items, d, req.ShippingOption)
		if err != nil {
			return err
		}

		if d != nil {
			verr := discount.Validate(d, s.now().UTC(), p.totals.Subtotal, p.productIDs())
			if verr != nil {
				if !errors.As(verr, &q.Rejection) {
					return verr
				}
				if p, err = s.price(ctx, tx, req.Items, nil, req.ShippingOption); err != nil {
					return err
				}
			} else {
				q.DiscountCode = d.Code
			}
		}

		q.Items = p.items
		q.Totals = p.totals
		q.Shipping = p.shipping
		q.AmountDue = p.amountDue()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// GetOrder returns the order with the given ID.
func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()
	return s.store.GetOrder(ctx, id)
}
