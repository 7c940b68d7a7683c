package services

import (
	"context"
	"time"

	domain "github.com/orderdesk/adminsearch/internal/domain"
	"github.com/orderdesk/adminsearch/internal/platform/cache"
	"github.com/orderdesk/adminsearch/internal/repositories"
)

func newTestCache() *cache.SearchCache {
	return cache.NewSearchCache(cache.NewMemoryStore(), nil, 0)
}

type stubCustomerLookupRepo struct {
	available     bool
	namePairIDs   []int64
	prefixIDs     []int64
	containsIDs   []int64
	namePairCalls [][2]string
	prefixCalls   []string
	containsCalls []string
}

func (s *stubCustomerLookupRepo) Available(context.Context) bool { return s.available }

func (s *stubCustomerLookupRepo) SearchNamePair(_ context.Context, first, last string, _ int) ([]int64, error) {
	s.namePairCalls = append(s.namePairCalls, [2]string{first, last})
	return s.namePairIDs, nil
}

func (s *stubCustomerLookupRepo) SearchPrefix(_ context.Context, token string, _ int) ([]int64, error) {
	s.prefixCalls = append(s.prefixCalls, token)
	return s.prefixIDs, nil
}

func (s *stubCustomerLookupRepo) SearchEmailContains(_ context.Context, token string, _ int) ([]int64, error) {
	s.containsCalls = append(s.containsCalls, token)
	return s.containsIDs, nil
}

type stubUserRepo struct {
	searchIDs   []int64
	customers   []domain.Customer
	lastQuery   repositories.UserQuery
	searchCalls int
}

func (s *stubUserRepo) SearchUsers(_ context.Context, query repositories.UserQuery, _ int) ([]int64, error) {
	s.lastQuery = query
	s.searchCalls++
	return s.searchIDs, nil
}

func (s *stubUserRepo) FetchByIDs(_ context.Context, ids []int64) ([]domain.Customer, error) {
	var out []domain.Customer
	for _, customer := range s.customers {
		for _, id := range ids {
			if customer.ID == id {
				out = append(out, customer)
			}
		}
	}
	return out, nil
}

type stubOrderRepo struct {
	orders        map[int64]domain.Order
	counts        map[int64]int
	byEmail       []domain.Order
	findCalls     int
	emailCalls    int
	recentByOwner map[int64][]domain.Order
}

func (s *stubOrderRepo) FindByID(_ context.Context, id int64) (domain.Order, error) {
	s.findCalls++
	order, ok := s.orders[id]
	if !ok {
		return domain.Order{}, repositories.NewNotFound("order not found")
	}
	return order, nil
}

func (s *stubOrderRepo) CountByCustomerIDs(_ context.Context, ids []int64) (map[int64]int, error) {
	out := make(map[int64]int, len(ids))
	for _, id := range ids {
		out[id] = s.counts[id]
	}
	return out, nil
}

func (s *stubOrderRepo) ListRecentByCustomer(_ context.Context, customerID int64, _ int) ([]domain.Order, error) {
	return s.recentByOwner[customerID], nil
}

func (s *stubOrderRepo) FindByBillingEmail(_ context.Context, _ string, _ int) ([]domain.Order, error) {
	s.emailCalls++
	return s.byEmail, nil
}

type stubSequentialRepo struct {
	available bool
	numbers   map[string]int64
	calls     []string
}

func (s *stubSequentialRepo) Available(context.Context) bool { return s.available }

func (s *stubSequentialRepo) FindOrderIDByNumber(_ context.Context, token string) (int64, error) {
	s.calls = append(s.calls, token)
	id, ok := s.numbers[token]
	if !ok {
		return 0, repositories.NewNotFound("no mapping")
	}
	return id, nil
}

type stubCouponRepo struct {
	coupons     map[int64]domain.Coupon
	byTitle     []domain.Coupon
	titleCalls  int
	listedAfter []int64
	total       int64
}

func (s *stubCouponRepo) FindByID(_ context.Context, id int64) (domain.Coupon, error) {
	coupon, ok := s.coupons[id]
	if !ok {
		return domain.Coupon{}, repositories.NewNotFound("coupon not found")
	}
	return coupon, nil
}

func (s *stubCouponRepo) SearchByTitle(_ context.Context, _ string, _ int) ([]domain.Coupon, error) {
	s.titleCalls++
	return s.byTitle, nil
}

func (s *stubCouponRepo) ListAfterID(_ context.Context, afterID int64, limit int) ([]domain.Coupon, error) {
	s.listedAfter = append(s.listedAfter, afterID)
	var out []domain.Coupon
	for id := int64(1); id <= int64(len(s.coupons)); id++ {
		coupon, ok := s.coupons[id]
		if !ok || coupon.ID <= afterID {
			continue
		}
		out = append(out, coupon)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *stubCouponRepo) CountAll(context.Context) (int64, error) {
	if s.total > 0 {
		return s.total, nil
	}
	return int64(len(s.coupons)), nil
}

type stubCouponLookupRepo struct {
	rows    map[int64]domain.CouponLookupRow
	scored  []domain.ScoredCoupon
	upserts []int64
	deletes []int64
	queries []string
}

func newStubCouponLookupRepo() *stubCouponLookupRepo {
	return &stubCouponLookupRepo{rows: make(map[int64]domain.CouponLookupRow)}
}

func (s *stubCouponLookupRepo) Upsert(_ context.Context, row domain.CouponLookupRow) error {
	s.rows[row.CouponID] = row
	s.upserts = append(s.upserts, row.CouponID)
	return nil
}

func (s *stubCouponLookupRepo) Delete(_ context.Context, couponID int64) error {
	delete(s.rows, couponID)
	s.deletes = append(s.deletes, couponID)
	return nil
}

func (s *stubCouponLookupRepo) Search(_ context.Context, term, normalizedCode string, _ int) ([]domain.ScoredCoupon, error) {
	s.queries = append(s.queries, term+"|"+normalizedCode)
	if s.scored != nil {
		return s.scored, nil
	}
	var out []domain.ScoredCoupon
	for _, row := range s.rows {
		if row.CodeNormalized == normalizedCode {
			out = append(out, domain.ScoredCoupon{Row: row, Score: 100})
		}
	}
	return out, nil
}

func (s *stubCouponLookupRepo) Count(context.Context) (int64, error) {
	return int64(len(s.rows)), nil
}

type stubBuildStateRepo struct {
	progress       domain.BuildProgress
	locked         bool
	lockedAt       time.Time
	nextAllowed    time.Time
	acquireCalls   int
	releaseCalls   int
	denyAcquire    bool
	savedProgress  []domain.BuildProgress
	scheduledNexts []time.Time
}

func (s *stubBuildStateRepo) Progress(context.Context) (domain.BuildProgress, error) {
	if s.progress.Status == "" {
		s.progress.Status = domain.BuildStatusIdle
	}
	return s.progress, nil
}

func (s *stubBuildStateRepo) SaveProgress(_ context.Context, progress domain.BuildProgress) error {
	s.progress = progress
	s.savedProgress = append(s.savedProgress, progress)
	return nil
}

func (s *stubBuildStateRepo) AcquireLock(_ context.Context, now time.Time, staleAfter time.Duration) (bool, error) {
	s.acquireCalls++
	if s.denyAcquire {
		return false, nil
	}
	if s.locked && now.Sub(s.lockedAt) < staleAfter {
		return false, nil
	}
	s.locked = true
	s.lockedAt = now
	return true, nil
}

func (s *stubBuildStateRepo) ReleaseLock(context.Context) error {
	s.releaseCalls++
	s.locked = false
	return nil
}

func (s *stubBuildStateRepo) NextAllowedRun(context.Context) (time.Time, error) {
	return s.nextAllowed, nil
}

func (s *stubBuildStateRepo) SetNextAllowedRun(_ context.Context, at time.Time) error {
	s.nextAllowed = at
	s.scheduledNexts = append(s.scheduledNexts, at)
	return nil
}
