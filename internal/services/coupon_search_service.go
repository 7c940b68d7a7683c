package services

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap/zapcore"

	domain "github.com/orderdesk/adminsearch/internal/domain"
	"github.com/orderdesk/adminsearch/internal/platform/cache"
	"github.com/orderdesk/adminsearch/internal/platform/observability"
	"github.com/orderdesk/adminsearch/internal/repositories"
)

const (
	couponCacheType = "coupon"
	// CouponCacheTTL is shorter than the default namespace TTL because coupon
	// edits must surface quickly in admin search.
	CouponCacheTTL = 60 * time.Second

	defaultCouponLimit = 20
	maxCouponLimit     = 100
	// lazyBackfillLimit bounds read-path healing so a search's tail latency
	// is never dominated by write-side work.
	lazyBackfillLimit = 10

	fallbackScore = 10
)

// CouponSearchServiceDeps bundles dependencies required to construct a CouponSearchService.
type CouponSearchServiceDeps struct {
	Lookup    repositories.CouponLookupRepository
	Coupons   repositories.CouponRepository
	Sync      CouponSyncService
	Cache     *cache.SearchCache
	// CacheTTL overrides the 60s coupon entry lifetime; zero applies the
	// default.
	CacheTTL  time.Duration
	Formatter *OrderFormatter
	Tracer    *observability.SearchTracer
	Queries   *observability.QueryMonitor
	Clock     func() time.Time
}

type couponSearchService struct {
	lookup    repositories.CouponLookupRepository
	coupons   repositories.CouponRepository
	sync      CouponSyncService
	cache     *cache.SearchCache
	cacheTTL  time.Duration
	formatter *OrderFormatter
	tracer    *observability.SearchTracer
	queries   *observability.QueryMonitor
	clock     func() time.Time
}

// NewCouponSearchService wires the scope=coupons search path.
func NewCouponSearchService(deps CouponSearchServiceDeps) (CouponSearchService, error) {
	if deps.Lookup == nil {
		return nil, ErrCouponLookupRepositoryMissing
	}
	if deps.Coupons == nil {
		return nil, ErrCouponRepositoryMissing
	}
	if deps.Formatter == nil {
		return nil, ErrFormatterMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	cacheTTL := deps.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = CouponCacheTTL
	}
	return &couponSearchService{
		lookup:    deps.Lookup,
		coupons:   deps.Coupons,
		sync:      deps.Sync,
		cache:     deps.Cache,
		cacheTTL:  cacheTTL,
		formatter: deps.Formatter,
		tracer:    deps.Tracer,
		queries:   deps.Queries,
		clock:     func() time.Time { return clock().UTC() },
	}, nil
}

// SearchCoupons checks the short-TTL cache, then the scored lookup table, then the
// source store by title substring. Fallback hits are synchronously backfilled
// into the mirror, capped per search, so organic traffic heals the mirror
// without an explicit rebuild. Exactly one match flips the auto-redirect flag.
func (s *couponSearchService) SearchCoupons(ctx context.Context, rawTerm string, limit int) (CouponSearchResult, error) {
	started := s.clock()
	result := CouponSearchResult{Coupons: []CouponResult{}}

	term := NormalizeTerm(rawTerm)
	if !term.IsValid() {
		result.SearchTime = s.clock().Sub(started).Seconds()
		return result, nil
	}
	limit = clampCouponLimit(limit)

	stop := s.tracer.StartTimer(ctx, "CouponSearch", "search")
	defer func() { stop(map[string]any{"length": term.Length}) }()

	key := s.cache.SearchKey(term.Sanitized, couponCacheType)
	if cached, found := s.cache.Get(ctx, key); found {
		var coupons []CouponResult
		if err := json.Unmarshal([]byte(cached), &coupons); err == nil {
			if len(coupons) > limit {
				coupons = coupons[:limit]
			}
			result.Coupons = coupons
			s.applyRedirect(&result)
			result.SearchTime = s.clock().Sub(started).Seconds()
			return result, nil
		}
		s.cache.Delete(ctx, key)
	}

	coupons, err := s.searchLookup(ctx, term, limit)
	if err != nil {
		return CouponSearchResult{}, err
	}
	if len(coupons) == 0 {
		coupons, err = s.searchFallback(ctx, term, limit)
		if err != nil {
			return CouponSearchResult{}, err
		}
	}

	if encoded, err := json.Marshal(coupons); err == nil {
		s.cache.Set(ctx, key, string(encoded), s.cacheTTL)
	}

	result.Coupons = coupons
	s.applyRedirect(&result)
	result.SearchTime = s.clock().Sub(started).Seconds()
	return result, nil
}

func (s *couponSearchService) searchLookup(ctx context.Context, term SearchTerm, limit int) ([]CouponResult, error) {
	s.queries.Record("CouponSearch")
	scored, err := s.lookup.Search(ctx, term.Sanitized, NormalizeCouponCode(term.Sanitized), limit)
	if err != nil {
		return nil, err
	}
	coupons := make([]CouponResult, 0, len(scored))
	for _, match := range scored {
		coupons = append(coupons, s.resultFromRow(match.Row, match.Score))
	}
	return coupons, nil
}

// searchFallback handles coupons not yet mirrored: a title-substring search
// against the source of truth, with the hits immediately written through to
// the lookup table.
func (s *couponSearchService) searchFallback(ctx context.Context, term SearchTerm, limit int) ([]CouponResult, error) {
	s.queries.Record("CouponSearch")
	found, err := s.coupons.SearchByTitle(ctx, term.Sanitized, limit)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return []CouponResult{}, nil
	}

	if s.sync != nil {
		heal := found
		if len(heal) > lazyBackfillLimit {
			heal = heal[:lazyBackfillLimit]
		}
		if _, backfillErr := s.sync.Backfill(ctx, heal, SourceFlagLazy); backfillErr != nil {
			s.tracer.Log(ctx, "CouponSearch", "lazy_backfill_failed", map[string]any{
				"error": backfillErr.Error(),
			}, zapcore.WarnLevel)
		} else {
			s.tracer.Log(ctx, "CouponSearch", "lazy_backfill", map[string]any{
				"rows": len(heal),
			}, zapcore.DebugLevel)
		}
	}

	now := s.clock()
	coupons := make([]CouponResult, 0, len(found))
	for _, coupon := range found {
		coupons = append(coupons, s.resultFromRow(rowFromCoupon(coupon, SourceFlagLazy, now), fallbackScore))
	}
	return coupons, nil
}

func (s *couponSearchService) resultFromRow(row domain.CouponLookupRow, score int) CouponResult {
	result := CouponResult{
		ID:            row.CouponID,
		Code:          s.formatter.escape(row.Code),
		Title:         s.formatter.escape(row.Title),
		Description:   s.formatter.escape(row.Description),
		Amount:        row.Amount,
		AmountDisplay: formatCouponAmount(row.Amount, row.DiscountType),
		DiscountType:  row.DiscountType,
		Status:        string(row.Status),
		UsageCount:    row.UsageCount,
		UsageLimit:    row.UsageLimit,
		FreeShipping:  row.FreeShipping,
		EditURL:       s.formatter.CouponEditURL(row.CouponID),
		Score:         score,
	}
	if row.ExpiryDate != nil && !row.ExpiryDate.IsZero() {
		result.Expires = row.ExpiryDate.UTC().Format(displayDateLayout)
	}
	return result
}

func (s *couponSearchService) applyRedirect(result *CouponSearchResult) {
	if len(result.Coupons) == 1 {
		result.ShouldRedirect = true
		result.RedirectURL = result.Coupons[0].EditURL
	}
}

func clampCouponLimit(limit int) int {
	if limit <= 0 {
		return defaultCouponLimit
	}
	if limit > maxCouponLimit {
		return maxCouponLimit
	}
	return limit
}
