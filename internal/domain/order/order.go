package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/domain/discount"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
	"github.com/xenking/storefront-orders/internal/domain/product"
)

// Order is a customer order with its authoritative, server-computed totals.
//
// Subtotal, DiscountAmount and Total always describe the current Items.
// AmountDue adds the shipping line on top of Total.
type Order struct {
	ID               string
	CustomerID       string
	Items            []pricing.LineItem
	DiscountID       string
	DiscountCode     string
	Subtotal         decimal.Decimal
	DiscountAmount   decimal.Decimal
	Total            decimal.Decimal
	ShippingOption   string
	ShippingCost     decimal.Decimal
	ShippingDiscount decimal.Decimal
	AmountDue        decimal.Decimal
	Status           Status
	PaymentReference string
	// InventoryDeducted is set once, when the order first enters Delivered.
	InventoryDeducted bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeliveredAt       *time.Time
}

// Clone returns a deep copy of o.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]pricing.LineItem(nil), o.Items...)
	if o.DeliveredAt != nil {
		v := *o.DeliveredAt
		c.DeliveredAt = &v
	}
	return &c
}

func (o *Order) applyPricing(p *priced) {
	o.Items = p.items
	o.Subtotal = p.totals.Subtotal
	o.DiscountAmount = p.totals.DiscountAmount
	o.Total = p.totals.Total
	o.ShippingOption = p.shipping.Option
	o.ShippingCost = p.shipping.Cost
	o.ShippingDiscount = p.shipping.Discount
	o.AmountDue = p.amountDue()
}

// Store runs units of work against the order persistence layer.
type Store interface {
	// InTx runs fn inside a single transaction. The transaction commits only
	// if fn returns nil; any error rolls back every write made through tx.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// GetOrder reads an order outside of any unit of work.
	GetOrder(ctx context.Context, id string) (*Order, error)
}

// Tx is the set of operations available inside a unit of work.
type Tx interface {
	// GetProducts returns the products that exist among ids. Missing IDs are
	// skipped rather than reported.
	GetProducts(ctx context.Context, ids []string) ([]product.Product, error)
	GetDiscount(ctx context.Context, id string) (*discount.Discount, error)
	GetDiscountByCode(ctx context.Context, code string) (*discount.Discount, error)
	// IncrementDiscountUsage adds one use if the discount is still below its
	// usage limit. It reports false when the limit was already reached.
	IncrementDiscountUsage(ctx context.Context, id string) (bool, error)
	// DecrementInventory removes qty units of stock if at least qty are
	// available. It reports false on insufficient stock and returns
	// product.ErrNotFound if the product no longer exists.
	DecrementInventory(ctx context.Context, productID string, qty int) (bool, error)
	// GetOrder reads an order and locks it for the rest of the unit of work.
	GetOrder(ctx context.Context, id string) (*Order, error)
	// SaveOrder inserts a new order with its items. A payment reference that
	// is already used by another order yields ErrDuplicatePayment.
	SaveOrder(ctx context.Context, o *Order) error
	// UpdateOrderStatus persists o's status and delivery fields if the stored
	// status still equals from. It reports false when it does not.
	UpdateOrderStatus(ctx context.Context, o *Order, from Status) (bool, error)
	// ReplaceOrderItems persists o's items and totals.
	ReplaceOrderItems(ctx context.Context, o *Order) error
}

// EventType names an order event.
type EventType string

const (
	EventCreated       EventType = "order.created"
	EventStatusChanged EventType = "order.status_changed"
)

// Event is emitted after an order change has been committed.
type Event struct {
	Type       EventType
	Order      *Order
	FromStatus Status
	At         time.Time
}

// Publisher delivers order events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
