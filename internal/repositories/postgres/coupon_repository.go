package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	domain "github.com/orderdesk/adminsearch/internal/domain"
	"github.com/orderdesk/adminsearch/internal/repositories"
)

const couponColumns = `id, COALESCE(blog_id, 0), code, COALESCE(title, ''),
	COALESCE(description, ''), COALESCE(amount, 0), COALESCE(discount_type, ''),
	expiry_date, COALESCE(usage_limit, 0), COALESCE(usage_limit_per_user, 0),
	COALESCE(usage_count, 0), COALESCE(free_shipping, FALSE), status, updated_at`

type couponRepository struct {
	db *Database
}

// NewCouponRepository builds the repository over the source-of-truth coupon
// store.
func NewCouponRepository(db *Database) (repositories.CouponRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("postgres: database is required")
	}
	return &couponRepository{db: db}, nil
}

func (r *couponRepository) FindByID(ctx context.Context, id int64) (domain.Coupon, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT `+couponColumns+`
		FROM coupons
		WHERE id = $1`,
		id)
	coupon, err := scanCoupon(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Coupon{}, repositories.NewNotFound(fmt.Sprintf("coupon %d not found", id))
	}
	if err != nil {
		return domain.Coupon{}, repositories.NewInternal("find coupon by id failed", err)
	}
	return coupon, nil
}

func (r *couponRepository) SearchByTitle(ctx context.Context, term string, limit int) ([]domain.Coupon, error) {
	if limit <= 0 {
		return nil, nil
	}
	pattern := likePattern(strings.ToLower(strings.TrimSpace(term)), true)

	rows, err := r.db.pool.Query(ctx, `
		SELECT `+couponColumns+`
		FROM coupons
		WHERE status IN ($1, $2)
		  AND (lower(title) LIKE $3 OR lower(code) LIKE $3)
		ORDER BY updated_at DESC, id DESC
		LIMIT $4`,
		domain.CouponStatusPublished, domain.CouponStatusDraft, pattern, limit)
	if err != nil {
		return nil, repositories.NewInternal("coupon title search failed", err)
	}
	return scanCoupons(rows)
}

func (r *couponRepository) ListAfterID(ctx context.Context, afterID int64, limit int) ([]domain.Coupon, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := r.db.pool.Query(ctx, `
		SELECT `+couponColumns+`
		FROM coupons
		WHERE id > $1 AND status IN ($2, $3)
		ORDER BY id
		LIMIT $4`,
		afterID, domain.CouponStatusPublished, domain.CouponStatusDraft, limit)
	if err != nil {
		return nil, repositories.NewInternal("list coupons after id failed", err)
	}
	return scanCoupons(rows)
}

func (r *couponRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM coupons
		WHERE status IN ($1, $2)`,
		domain.CouponStatusPublished, domain.CouponStatusDraft).Scan(&count)
	if err != nil {
		return 0, repositories.NewInternal("count coupons failed", err)
	}
	return count, nil
}

func scanCoupon(row pgx.Row) (domain.Coupon, error) {
	var c domain.Coupon
	err := row.Scan(&c.ID, &c.BlogID, &c.Code, &c.Title, &c.Description,
		&c.Amount, &c.DiscountType, &c.ExpiryDate, &c.UsageLimit,
		&c.UsageLimitPerUser, &c.UsageCount, &c.FreeShipping, &c.Status,
		&c.UpdatedAt)
	return c, err
}

func scanCoupons(rows pgx.Rows) ([]domain.Coupon, error) {
	defer rows.Close()
	var coupons []domain.Coupon
	for rows.Next() {
		coupon, err := scanCoupon(rows)
		if err != nil {
			return nil, repositories.NewInternal("scan coupon row", err)
		}
		coupons = append(coupons, coupon)
	}
	if err := rows.Err(); err != nil {
		return nil, repositories.NewInternal("iterate coupon rows", err)
	}
	return coupons, nil
}
