package domain

import (
	"time"
)

// Customer is the account-holder projection assembled from the host
// platform's user store and the indexed customer lookup table.
type Customer struct {
	ID             int64
	Email          string
	BillingEmail   string
	FirstName      string
	LastName       string
	Username       string
	DisplayName    string
	DateRegistered time.Time
}

// CustomerLookupRow mirrors one row of the indexed customer_lookup table.
type CustomerLookupRow struct {
	UserID         int64
	Email          string
	FirstName      string
	LastName       string
	Username       string
	DateRegistered time.Time
}

// OrderStatus describes lifecycle states for orders in the host platform.
type OrderStatus string

const (
	// OrderStatusPending marks orders awaiting payment.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing marks paid orders awaiting fulfilment.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusOnHold marks orders paused by staff.
	OrderStatusOnHold OrderStatus = "on-hold"
	// OrderStatusCompleted marks fulfilled orders.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled marks orders cancelled before fulfilment.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded marks fully refunded orders.
	OrderStatusRefunded OrderStatus = "refunded"
	// OrderStatusFailed marks orders whose payment failed.
	OrderStatusFailed OrderStatus = "failed"
)

// Label returns the human-readable form of the status for admin display.
func (s OrderStatus) Label() string {
	switch s {
	case OrderStatusPending:
		return "Pending payment"
	case OrderStatusProcessing:
		return "Processing"
	case OrderStatusOnHold:
		return "On hold"
	case OrderStatusCompleted:
		return "Completed"
	case OrderStatusCancelled:
		return "Cancelled"
	case OrderStatusRefunded:
		return "Refunded"
	case OrderStatusFailed:
		return "Failed"
	default:
		if s == "" {
			return "Unknown"
		}
		return string(s)
	}
}

// Order is the order projection read from the host platform's order store.
// Number carries the canonical display number, which may differ from ID when
// a sequential numbering integration is installed.
type Order struct {
	ID               int64
	Number           string
	Status           OrderStatus
	TotalCents       int64
	Currency         string
	CustomerID       int64
	BillingEmail     string
	BillingFirstName string
	BillingLastName  string
	CreatedAt        time.Time
}

// CouponStatus describes lifecycle states for coupons in the source store.
type CouponStatus string

const (
	// CouponStatusPublished marks live coupons.
	CouponStatusPublished CouponStatus = "published"
	// CouponStatusDraft marks coupons not yet live.
	CouponStatusDraft CouponStatus = "draft"
	// CouponStatusTrashed marks soft-deleted coupons.
	CouponStatusTrashed CouponStatus = "trashed"
)

// Live reports whether coupons in this status belong in the lookup table.
func (s CouponStatus) Live() bool {
	return s == CouponStatusPublished
}

// Coupon is the source-of-truth coupon entity.
type Coupon struct {
	ID                int64
	BlogID            int64
	Code              string
	Title             string
	Description       string
	Amount            float64
	DiscountType      string
	ExpiryDate        *time.Time
	UsageLimit        int
	UsageLimitPerUser int
	UsageCount        int
	FreeShipping      bool
	Status            CouponStatus
	UpdatedAt         time.Time
}

// CouponLookupRow is the denormalized search mirror of a Coupon. Row
// existence is a cache of the source entity, not authoritative; it may lag
// or be briefly absent between the source write and the sync hook firing.
type CouponLookupRow struct {
	CouponID              int64
	BlogID                int64
	Code                  string
	CodeNormalized        string
	Title                 string
	Description           string
	DescriptionNormalized string
	Amount                float64
	DiscountType          string
	ExpiryDate            *time.Time
	UsageLimit            int
	UsageLimitPerUser     int
	UsageCount            int
	FreeShipping          bool
	Status                CouponStatus
	SourceFlags           int
	UpdatedAt             time.Time
}

// ScoredCoupon pairs a lookup row with its relevance score for one search.
type ScoredCoupon struct {
	Row   CouponLookupRow
	Score int
}

// BuildStatus enumerates states of the coupon lookup backfill job.
type BuildStatus string

const (
	// BuildStatusIdle means no backfill has run or state was reset.
	BuildStatusIdle BuildStatus = "idle"
	// BuildStatusRunning means a batch chain is in flight.
	BuildStatusRunning BuildStatus = "running"
	// BuildStatusComplete means the last backfill covered the full ID range.
	BuildStatusComplete BuildStatus = "complete"
	// BuildStatusError means the last batch aborted on a data-store fault.
	BuildStatusError BuildStatus = "error"
)

// BuildProgress is the persisted singleton tracking backfill progress.
// LastID is a strictly increasing watermark: batch resumption starts after
// it, so no row is skipped and no batch loops while the source store assigns
// IDs monotonically.
type BuildProgress struct {
	LastID    int64
	Processed int64
	Total     int64
	StartedAt time.Time
	Status    BuildStatus
}
