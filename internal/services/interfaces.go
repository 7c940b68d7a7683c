package services

import (
	"context"

	domain "github.com/orderdesk/adminsearch/internal/domain"
)

// SearchScope selects which result family a search request targets.
type SearchScope string

const (
	// ScopeUsers searches customers, guest orders, and direct order matches.
	ScopeUsers SearchScope = "users"
	// ScopeCoupons searches the coupon lookup table.
	ScopeCoupons SearchScope = "coupons"
)

// CustomerResult is one matched customer as rendered to the admin UI. Every
// string field is output-escaped before assembly.
type CustomerResult struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	BillingEmail string         `json:"billing_email"`
	Registered   string         `json:"registered"`
	RegisteredH  string         `json:"registered_h"`
	Orders       int            `json:"orders"`
	EditURL      string         `json:"edit_url"`
	OrdersList   []OrderSummary `json:"orders_list"`
}

// OrderCustomer is the customer sub-object embedded in an order summary.
type OrderCustomer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// OrderSummary is the canonical order rendering. The formatter is its only
// construction path so every consumer sees identical fields.
type OrderSummary struct {
	ID           int64         `json:"id"`
	Number       string        `json:"number"`
	Status       string        `json:"status"`
	StatusLabel  string        `json:"status_label"`
	TotalCents   int64         `json:"total"`
	TotalDisplay string        `json:"total_display"`
	Currency     string        `json:"currency"`
	DateCreated  string        `json:"date_created"`
	DateDisplay  string        `json:"date_display"`
	Customer     OrderCustomer `json:"customer"`
	ViewURL      string        `json:"view_url"`
}

// CouponResult is one matched coupon as rendered to the admin UI.
type CouponResult struct {
	ID            int64   `json:"id"`
	Code          string  `json:"code"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Amount        float64 `json:"amount"`
	AmountDisplay string  `json:"amount_display"`
	DiscountType  string  `json:"discount_type"`
	Expires       string  `json:"expires"`
	Status        string  `json:"status"`
	UsageCount    int     `json:"usage_count"`
	UsageLimit    int     `json:"usage_limit"`
	FreeShipping  bool    `json:"free_shipping"`
	EditURL       string  `json:"edit_url"`
	Score         int     `json:"score"`
}

// ResolutionSource tags how an order resolution terminated. Exactly one
// source applies per resolution.
type ResolutionSource string

const (
	// ResolutionInvalid means the input never looked like an order number.
	ResolutionInvalid ResolutionSource = "invalid"
	// ResolutionCache means a prior resolution's outcome was replayed.
	ResolutionCache ResolutionSource = "cache"
	// ResolutionSequentialPlugin means the sequential numbering integration matched.
	ResolutionSequentialPlugin ResolutionSource = "sequential_plugin"
	// ResolutionDirectID means the raw numeric ID matched and verified.
	ResolutionDirectID ResolutionSource = "direct_id"
	// ResolutionNotFound means every resolution step missed.
	ResolutionNotFound ResolutionSource = "not_found"
)

// OrderResolution is the outcome of one order number resolution.
type OrderResolution struct {
	Order  *domain.Order
	Source ResolutionSource
	Cached bool
}

// UsersSearchResult is the scope=users search response.
type UsersSearchResult struct {
	Customers      []CustomerResult `json:"customers"`
	GuestOrders    []OrderSummary   `json:"guest_orders"`
	Orders         []OrderSummary   `json:"orders"`
	ShouldRedirect bool             `json:"should_redirect_to_order"`
	RedirectURL    string           `json:"redirect_url,omitempty"`
	SearchTime     float64          `json:"search_time"`
}

// CouponSearchResult is the scope=coupons search response.
type CouponSearchResult struct {
	Coupons        []CouponResult `json:"coupons"`
	ShouldRedirect bool           `json:"should_redirect_to_order"`
	RedirectURL    string         `json:"redirect_url,omitempty"`
	SearchTime     float64        `json:"search_time"`
}

// CouponEventType enumerates the coupon lifecycle events delivered by the
// source store's hook dispatcher.
type CouponEventType string

const (
	// CouponEventSaved fires on coupon create or update.
	CouponEventSaved CouponEventType = "saved"
	// CouponEventDeleted fires on hard delete.
	CouponEventDeleted CouponEventType = "deleted"
	// CouponEventTrashed fires on soft delete.
	CouponEventTrashed CouponEventType = "trashed"
	// CouponEventUntrashed fires on restore from trash.
	CouponEventUntrashed CouponEventType = "untrashed"
)

// CouponEvent is one lifecycle event for the mirror sync.
type CouponEvent struct {
	Type     CouponEventType
	CouponID int64
}

// BuildOptions controls one backfill batch run.
type BuildOptions struct {
	// Force bypasses the min-interval rate limit. It does not bypass the lock.
	Force bool
	// BatchSize overrides the configured batch size, clamped to [1, 2000].
	BatchSize int
}

// BuildResult is the structured outcome of one batch run. A held lock or a
// rate-limited run reports Success=false with a message rather than an error.
type BuildResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	RunID     string `json:"run_id,omitempty"`
	Processed int    `json:"processed"`
	LastID    int64  `json:"last_id"`
	Done      bool   `json:"done"`
}

// CustomerSearchService is the search orchestrator facade.
type CustomerSearchService interface {
	SearchUsers(ctx context.Context, term string) (UsersSearchResult, error)
}

// OrderResolver resolves order-number-like tokens to concrete orders.
type OrderResolver interface {
	Resolve(ctx context.Context, input string) (OrderResolution, error)
	LooksLikeOrderNumber(input string) bool
}

// CouponSearchService searches the coupon lookup table with fallback and
// lazy self-healing.
type CouponSearchService interface {
	SearchCoupons(ctx context.Context, term string, limit int) (CouponSearchResult, error)
}

// CouponSyncService keeps the lookup table mirroring the source coupon store.
type CouponSyncService interface {
	HandleEvent(ctx context.Context, event CouponEvent) error
	// Backfill upserts mirror rows for the given coupons, used by the lazy
	// read-path heal and the batch builder.
	Backfill(ctx context.Context, coupons []domain.Coupon, sourceFlags int) (int, error)
}

// CouponLookupBuilder runs the rate-limited, lockable batch backfill.
type CouponLookupBuilder interface {
	RunBatch(ctx context.Context, opts BuildOptions) (BuildResult, error)
	Status(ctx context.Context) (domain.BuildProgress, error)
}
