package services

import (
	"context"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap/zapcore"

	domain "github.com/orderdesk/adminsearch/internal/domain"
	"github.com/orderdesk/adminsearch/internal/platform/observability"
	"github.com/orderdesk/adminsearch/internal/repositories"
)

// Source flags recorded on lookup rows, identifying which path wrote them.
const (
	SourceFlagHook     = 1
	SourceFlagBackfill = 2
	SourceFlagLazy     = 4
)

// NormalizeCouponCode lowercases a code and strips every non-alphanumeric
// rune, collapsing punctuation and case variants onto one key: "SAVE-10%" and
// "save10" normalize identically.
func NormalizeCouponCode(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for _, r := range strings.ToLower(code) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeDescription(description string) string {
	return strings.ToLower(strings.Join(strings.Fields(description), " "))
}

func rowFromCoupon(coupon domain.Coupon, sourceFlags int, now time.Time) domain.CouponLookupRow {
	updated := coupon.UpdatedAt
	if updated.IsZero() {
		updated = now
	}
	return domain.CouponLookupRow{
		CouponID:              coupon.ID,
		BlogID:                coupon.BlogID,
		Code:                  coupon.Code,
		CodeNormalized:        NormalizeCouponCode(coupon.Code),
		Title:                 coupon.Title,
		Description:           coupon.Description,
		DescriptionNormalized: normalizeDescription(coupon.Description),
		Amount:                coupon.Amount,
		DiscountType:          coupon.DiscountType,
		ExpiryDate:            coupon.ExpiryDate,
		UsageLimit:            coupon.UsageLimit,
		UsageLimitPerUser:     coupon.UsageLimitPerUser,
		UsageCount:            coupon.UsageCount,
		FreeShipping:          coupon.FreeShipping,
		Status:                coupon.Status,
		SourceFlags:           sourceFlags,
		UpdatedAt:             updated.UTC(),
	}
}

// CouponSyncServiceDeps bundles dependencies required to construct a CouponSyncService.
type CouponSyncServiceDeps struct {
	Coupons repositories.CouponRepository
	Lookup  repositories.CouponLookupRepository
	Tracer  *observability.SearchTracer
	Clock   func() time.Time
}

type couponSyncService struct {
	coupons repositories.CouponRepository
	lookup  repositories.CouponLookupRepository
	tracer  *observability.SearchTracer
	clock   func() time.Time
}

// NewCouponSyncService wires the event-driven mirror sync. The mirror is
// eventually consistent: a crash between the source write and the hook
// leaves it stale until the next write or a backfill pass.
func NewCouponSyncService(deps CouponSyncServiceDeps) (CouponSyncService, error) {
	if deps.Coupons == nil {
		return nil, ErrCouponRepositoryMissing
	}
	if deps.Lookup == nil {
		return nil, ErrCouponLookupRepositoryMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &couponSyncService{
		coupons: deps.Coupons,
		lookup:  deps.Lookup,
		tracer:  deps.Tracer,
		clock:   func() time.Time { return clock().UTC() },
	}, nil
}

// HandleEvent applies one lifecycle event: live saves and untrashes upsert
// the mirror row, everything else deletes it.
func (s *couponSyncService) HandleEvent(ctx context.Context, event CouponEvent) error {
	switch event.Type {
	case CouponEventSaved, CouponEventUntrashed:
		return s.refresh(ctx, event.CouponID)
	case CouponEventDeleted, CouponEventTrashed:
		if err := s.lookup.Delete(ctx, event.CouponID); err != nil {
			return err
		}
		s.trace(ctx, "deleted", event.CouponID)
		return nil
	default:
		return ErrUnknownCouponEvent
	}
}

func (s *couponSyncService) refresh(ctx context.Context, couponID int64) error {
	coupon, err := s.coupons.FindByID(ctx, couponID)
	if err != nil {
		if repositories.IsNotFound(err) {
			// The coupon vanished between the hook firing and this call.
			return s.lookup.Delete(ctx, couponID)
		}
		return err
	}
	if !coupon.Status.Live() {
		if err := s.lookup.Delete(ctx, couponID); err != nil {
			return err
		}
		s.trace(ctx, "deleted_not_live", couponID)
		return nil
	}
	if err := s.lookup.Upsert(ctx, rowFromCoupon(coupon, SourceFlagHook, s.clock())); err != nil {
		return err
	}
	s.trace(ctx, "upserted", couponID)
	return nil
}

// Backfill upserts mirror rows for live coupons and removes rows for the
// rest. Upserts are idempotent, so replays and double-processing are safe.
func (s *couponSyncService) Backfill(ctx context.Context, coupons []domain.Coupon, sourceFlags int) (int, error) {
	now := s.clock()
	processed := 0
	for _, coupon := range coupons {
		if coupon.Status.Live() {
			if err := s.lookup.Upsert(ctx, rowFromCoupon(coupon, sourceFlags, now)); err != nil {
				return processed, err
			}
		} else {
			if err := s.lookup.Delete(ctx, coupon.ID); err != nil {
				return processed, err
			}
		}
		processed++
	}
	return processed, nil
}

func (s *couponSyncService) trace(ctx context.Context, action string, couponID int64) {
	s.tracer.Log(ctx, "CouponSync", action, map[string]any{"coupon_id": couponID}, zapcore.DebugLevel)
}
