package postgres

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/orderdesk/adminsearch/internal/domain"
	"github.com/orderdesk/adminsearch/internal/repositories"
)

type couponLookupRepository struct {
	db *Database
}

// NewCouponLookupRepository builds the repository over the denormalized
// coupon search mirror owned by this service.
func NewCouponLookupRepository(db *Database) (repositories.CouponLookupRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("postgres: database is required")
	}
	return &couponLookupRepository{db: db}, nil
}

func (r *couponLookupRepository) Upsert(ctx context.Context, row domain.CouponLookupRow) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO coupon_lookup (
			coupon_id, blog_id, code, code_normalized, title, description,
			description_normalized, amount, discount_type, expiry_date,
			usage_limit, usage_limit_per_user, usage_count, free_shipping,
			status, source_flags, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (coupon_id) DO UPDATE SET
			blog_id = EXCLUDED.blog_id,
			code = EXCLUDED.code,
			code_normalized = EXCLUDED.code_normalized,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			description_normalized = EXCLUDED.description_normalized,
			amount = EXCLUDED.amount,
			discount_type = EXCLUDED.discount_type,
			expiry_date = EXCLUDED.expiry_date,
			usage_limit = EXCLUDED.usage_limit,
			usage_limit_per_user = EXCLUDED.usage_limit_per_user,
			usage_count = EXCLUDED.usage_count,
			free_shipping = EXCLUDED.free_shipping,
			status = EXCLUDED.status,
			source_flags = EXCLUDED.source_flags,
			updated_at = EXCLUDED.updated_at`,
		row.CouponID, row.BlogID, row.Code, row.CodeNormalized, row.Title,
		row.Description, row.DescriptionNormalized, row.Amount, row.DiscountType,
		row.ExpiryDate, row.UsageLimit, row.UsageLimitPerUser, row.UsageCount,
		row.FreeShipping, row.Status, row.SourceFlags, row.UpdatedAt)
	if err != nil {
		return repositories.NewInternal("upsert coupon lookup row failed", err)
	}
	return nil
}

func (r *couponLookupRepository) Delete(ctx context.Context, couponID int64) error {
	_, err := r.db.pool.Exec(ctx, `DELETE FROM coupon_lookup WHERE coupon_id = $1`, couponID)
	if err != nil {
		return repositories.NewInternal("delete coupon lookup row failed", err)
	}
	return nil
}

// Search scores matches in one pass: exact code 100, code prefix 90, exact
// title 70, title prefix 60, description substring 40, any other broad title
// match 10. Ties break on most recently updated.
func (r *couponLookupRepository) Search(ctx context.Context, term, normalizedCode string, limit int) ([]domain.ScoredCoupon, error) {
	if limit <= 0 {
		return nil, nil
	}
	lowerTerm := strings.ToLower(strings.TrimSpace(term))
	codePrefix := likePattern(normalizedCode, false)
	titlePrefix := likePattern(lowerTerm, false)
	titleContains := likePattern(lowerTerm, true)

	rows, err := r.db.pool.Query(ctx, `
		SELECT coupon_id, blog_id, code, code_normalized, title, description,
		       description_normalized, amount, discount_type, expiry_date,
		       usage_limit, usage_limit_per_user, usage_count, free_shipping,
		       status, source_flags, updated_at,
		       CASE
		           WHEN code_normalized = $1 THEN 100
		           WHEN code_normalized LIKE $2 THEN 90
		           WHEN lower(title) = $3 THEN 70
		           WHEN lower(title) LIKE $4 THEN 60
		           WHEN description_normalized LIKE $5 THEN 40
		           ELSE 10
		       END AS score
		FROM coupon_lookup
		WHERE code_normalized LIKE $2
		   OR lower(title) LIKE $6
		   OR description_normalized LIKE $5
		ORDER BY score DESC, updated_at DESC, coupon_id DESC
		LIMIT $7`,
		normalizedCode, codePrefix, lowerTerm, titlePrefix, titleContains,
		titleContains, limit)
	if err != nil {
		return nil, repositories.NewInternal("coupon lookup search failed", err)
	}
	defer rows.Close()

	var scored []domain.ScoredCoupon
	for rows.Next() {
		var sc domain.ScoredCoupon
		row := &sc.Row
		if err := rows.Scan(&row.CouponID, &row.BlogID, &row.Code,
			&row.CodeNormalized, &row.Title, &row.Description,
			&row.DescriptionNormalized, &row.Amount, &row.DiscountType,
			&row.ExpiryDate, &row.UsageLimit, &row.UsageLimitPerUser,
			&row.UsageCount, &row.FreeShipping, &row.Status, &row.SourceFlags,
			&row.UpdatedAt, &sc.Score); err != nil {
			return nil, repositories.NewInternal("scan coupon lookup row", err)
		}
		scored = append(scored, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, repositories.NewInternal("iterate coupon lookup rows", err)
	}
	return scored, nil
}

func (r *couponLookupRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM coupon_lookup`).Scan(&count); err != nil {
		return 0, repositories.NewInternal("count coupon lookup rows failed", err)
	}
	return count, nil
}
