package repositories

import (
	"context"
	"time"

	domain "github.com/orderdesk/adminsearch/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CustomerLookupRepository reads the host platform's indexed customer_lookup
// table. The table is optional: installations without the indexing extension
// lack it, and Available gates the primary search strategy accordingly.
type CustomerLookupRepository interface {
	Available(ctx context.Context) bool
	// SearchNamePair prefix-matches first and last name, in both column
	// orders, so "Last First" input still finds "First Last" records.
	SearchNamePair(ctx context.Context, first, last string, limit int) ([]int64, error)
	// SearchPrefix prefix-matches one token across email, first name, last
	// name, and username in a single query.
	SearchPrefix(ctx context.Context, token string, limit int) ([]int64, error)
	// SearchEmailContains runs the broader substring scan on email only,
	// used when prefix matching finds nothing for an email-ish term.
	SearchEmailContains(ctx context.Context, token string, limit int) ([]int64, error)
}

// UserQuery carries the fallback strategy's search inputs.
type UserQuery struct {
	Term      string
	FirstName string
	LastName  string
}

// UserRepository reads the host platform's generic user store.
type UserRepository interface {
	SearchUsers(ctx context.Context, query UserQuery, limit int) ([]int64, error)
	FetchByIDs(ctx context.Context, ids []int64) ([]domain.Customer, error)
}

// OrderRepository reads the host platform's order store. Implementations
// detect whether the high-performance tabular layout or the legacy entity
// layout is active and query accordingly.
type OrderRepository interface {
	FindByID(ctx context.Context, id int64) (domain.Order, error)
	CountByCustomerIDs(ctx context.Context, customerIDs []int64) (map[int64]int, error)
	ListRecentByCustomer(ctx context.Context, customerID int64, limit int) ([]domain.Order, error)
	FindByBillingEmail(ctx context.Context, email string, limit int) ([]domain.Order, error)
}

// SequentialNumberRepository is the optional sequential-order-numbering
// integration. Available reports whether the integration's table exists.
type SequentialNumberRepository interface {
	Available(ctx context.Context) bool
	FindOrderIDByNumber(ctx context.Context, token string) (int64, error)
}

// CouponRepository reads the source-of-truth coupon store.
type CouponRepository interface {
	FindByID(ctx context.Context, id int64) (domain.Coupon, error)
	SearchByTitle(ctx context.Context, term string, limit int) ([]domain.Coupon, error)
	// ListAfterID returns up to limit live-or-draft coupons with IDs strictly
	// greater than afterID, in ascending ID order. The backfill builder's
	// watermark resumption depends on that ordering.
	ListAfterID(ctx context.Context, afterID int64, limit int) ([]domain.Coupon, error)
	CountAll(ctx context.Context) (int64, error)
}

// CouponLookupRepository owns the denormalized coupon search mirror.
type CouponLookupRepository interface {
	Upsert(ctx context.Context, row domain.CouponLookupRow) error
	Delete(ctx context.Context, couponID int64) error
	// Search returns scored matches ordered by score descending, then most
	// recently updated.
	Search(ctx context.Context, term, normalizedCode string, limit int) ([]domain.ScoredCoupon, error)
	Count(ctx context.Context) (int64, error)
}

// BuildStateRepository persists the backfill builder's progress singleton,
// advisory lock, and rate-limit gate. The lock is a compare-and-swap over a
// timestamp row so it survives process restarts and self-heals when stale.
type BuildStateRepository interface {
	Progress(ctx context.Context) (domain.BuildProgress, error)
	SaveProgress(ctx context.Context, progress domain.BuildProgress) error
	// AcquireLock atomically claims the build lock when it is unheld or
	// older than staleAfter, returning false when another holder is live.
	AcquireLock(ctx context.Context, now time.Time, staleAfter time.Duration) (bool, error)
	ReleaseLock(ctx context.Context) error
	NextAllowedRun(ctx context.Context) (time.Time, error)
	SetNextAllowedRun(ctx context.Context, at time.Time) error
}

// Pinger verifies connectivity to a backing dependency for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}
