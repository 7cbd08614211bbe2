package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/domain/discount"
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

const discountColumns = `id, code, kind, value, usage_limit, usage_count, active_from, active_until,
    is_active, min_subtotal, eligible_product_ids, created_at, updated_at`

// Create inserts a new discount.
func (r *DiscountRepository) Create(ctx context.Context, d *discount.Discount) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO discounts (`+discountColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		d.ID, d.Code, d.Kind.String(), d.Value, d.UsageLimit, d.UsageCount, d.ActiveFrom, d.ActiveUntil,
		d.IsActive, nullDecimal(d.MinSubtotal), eligibleIDs(d.EligibleProductIDs), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return discount.ErrCodeTaken
		}
		return errors.Wrapf(err, "insert discount %q", d.Code)
	}
	return nil
}

// Update writes the administrator-editable fields of d. usage_count is owned
// by order creation and is left alone; a usage limit below it is rejected in
// the same statement.
func (r *DiscountRepository) Update(ctx context.Context, d *discount.Discount) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE discounts SET
    code = $2, kind = $3, value = $4, usage_limit = $5, active_from = $6, active_until = $7,
    is_active = $8, min_subtotal = $9, eligible_product_ids = $10, updated_at = $11
WHERE id = $1 AND ($5::bigint IS NULL OR usage_count <= $5::bigint)`,
		d.ID, d.Code, d.Kind.String(), d.Value, d.UsageLimit, d.ActiveFrom, d.ActiveUntil,
		d.IsActive, nullDecimal(d.MinSubtotal), eligibleIDs(d.EligibleProductIDs), d.UpdatedAt,
	)
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return discount.ErrCodeTaken
		}
		return errors.Wrapf(err, "update discount %q", d.ID)
	}
	if tag.RowsAffected() == 0 {
		current, err := getDiscount(ctx, r.pool, `WHERE id = $1`, d.ID)
		if err != nil {
			return err
		}
		return discount.LimitBelowUsage(current.UsageCount)
	}
	return nil
}

// Upsert inserts a discount or refreshes an existing one with the same code.
// The usage counter of an existing row is preserved.
func (r *DiscountRepository) Upsert(ctx context.Context, d *discount.Discount) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO discounts (`+discountColumns+`)
VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $9, $10, $11, $11)
ON CONFLICT ((lower(code))) DO UPDATE SET
    kind = EXCLUDED.kind,
    value = EXCLUDED.value,
    usage_limit = CASE
        WHEN EXCLUDED.usage_limit IS NULL THEN NULL
        ELSE GREATEST(EXCLUDED.usage_limit, discounts.usage_count)
    END,
    active_from = EXCLUDED.active_from,
    active_until = EXCLUDED.active_until,
    is_active = EXCLUDED.is_active,
    min_subtotal = EXCLUDED.min_subtotal,
    eligible_product_ids = EXCLUDED.eligible_product_ids,
    updated_at = EXCLUDED.updated_at`,
		d.ID, d.Code, d.Kind.String(), d.Value, d.UsageLimit, d.ActiveFrom, d.ActiveUntil,
		d.IsActive, nullDecimal(d.MinSubtotal), eligibleIDs(d.EligibleProductIDs), d.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert discount %q", d.Code)
	}
	return nil
}

// GetByID returns a discount by ID.
func (r *DiscountRepository) GetByID(ctx context.Context, id string) (*discount.Discount, error) {
	return getDiscount(ctx, r.pool, `WHERE id = $1`, id)
}

// GetByCode returns a discount by its case-insensitive code.
func (r *DiscountRepository) GetByCode(ctx context.Context, code string) (*discount.Discount, error) {
	return getDiscount(ctx, r.pool, `WHERE lower(code) = $1`, discount.NormalizeCode(code))
}

// List returns all discounts ordered by code.
func (r *DiscountRepository) List(ctx context.Context) ([]discount.Discount, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+discountColumns+` FROM discounts ORDER BY lower(code)`)
	if err != nil {
		return nil, errors.Wrap(err, "list discounts")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (discount.Discount, error) {
		d, err := scanDiscount(row)
		if err != nil {
			return discount.Discount{}, err
		}
		return *d, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan discounts")
	}
	return out, nil
}

func getDiscount(ctx context.Context, q querier, where string, arg any) (*discount.Discount, error) {
	d, err := scanDiscount(q.QueryRow(ctx, `SELECT `+discountColumns+` FROM discounts `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, errors.Wrap(err, "get discount")
	}
	return d, nil
}

func scanDiscount(row pgx.Row) (*discount.Discount, error) {
	var (
		d           discount.Discount
		kind        string
		minSubtotal decimal.NullDecimal
	)
	if err := row.Scan(
		&d.ID, &d.Code, &kind, &d.Value, &d.UsageLimit, &d.UsageCount, &d.ActiveFrom, &d.ActiveUntil,
		&d.IsActive, &minSubtotal, &d.EligibleProductIDs, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}

	k, err := discount.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	d.Kind = k
	d.MinSubtotal = fromNullDecimal(minSubtotal)
	if len(d.EligibleProductIDs) == 0 {
		d.EligibleProductIDs = nil
	}
	return &d, nil
}

func eligibleIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
