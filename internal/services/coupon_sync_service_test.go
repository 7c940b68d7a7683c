package services

import (
	"context"
	"testing"
	"time"

	domain "github.com/orderdesk/adminsearch/internal/domain"
)

func TestNormalizeCouponCode_Collapsing(t *testing.T) {
	left := NormalizeCouponCode("SAVE-10%")
	right := NormalizeCouponCode("save10")
	if left != right {
		t.Fatalf("punctuation and case variants must collapse: %q vs %q", left, right)
	}
	if left != "save10" {
		t.Fatalf("unexpected normalized code %q", left)
	}
}

func newTestSyncService(t *testing.T, coupons *stubCouponRepo, lookup *stubCouponLookupRepo) CouponSyncService {
	t.Helper()
	svc, err := NewCouponSyncService(CouponSyncServiceDeps{
		Coupons: coupons,
		Lookup:  lookup,
		Clock:   func() time.Time { return time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewCouponSyncService: %v", err)
	}
	return svc
}

func TestCouponSync_SavedLiveCouponUpserts(t *testing.T) {
	coupons := &stubCouponRepo{coupons: map[int64]domain.Coupon{
		5: {ID: 5, Code: "SAVE-10%", Title: "Ten off", Status: domain.CouponStatusPublished},
	}}
	lookup := newStubCouponLookupRepo()
	svc := newTestSyncService(t, coupons, lookup)

	if err := svc.HandleEvent(context.Background(), CouponEvent{Type: CouponEventSaved, CouponID: 5}); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	row, ok := lookup.rows[5]
	if !ok {
		t.Fatalf("expected row upserted")
	}
	if row.CodeNormalized != "save10" {
		t.Fatalf("unexpected normalized code %q", row.CodeNormalized)
	}
	if row.SourceFlags != SourceFlagHook {
		t.Fatalf("unexpected source flags %d", row.SourceFlags)
	}
}

func TestCouponSync_SavedDraftDeletes(t *testing.T) {
	coupons := &stubCouponRepo{coupons: map[int64]domain.Coupon{
		5: {ID: 5, Code: "SAVE10", Status: domain.CouponStatusDraft},
	}}
	lookup := newStubCouponLookupRepo()
	lookup.rows[5] = domain.CouponLookupRow{CouponID: 5}
	svc := newTestSyncService(t, coupons, lookup)

	if err := svc.HandleEvent(context.Background(), CouponEvent{Type: CouponEventSaved, CouponID: 5}); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if _, ok := lookup.rows[5]; ok {
		t.Fatalf("draft coupons must not keep a lookup row")
	}
}

func TestCouponSync_TrashAndUntrash(t *testing.T) {
	coupons := &stubCouponRepo{coupons: map[int64]domain.Coupon{
		8: {ID: 8, Code: "WELCOME", Status: domain.CouponStatusPublished},
	}}
	lookup := newStubCouponLookupRepo()
	svc := newTestSyncService(t, coupons, lookup)

	if err := svc.HandleEvent(context.Background(), CouponEvent{Type: CouponEventSaved, CouponID: 8}); err != nil {
		t.Fatalf("saved: %v", err)
	}
	if err := svc.HandleEvent(context.Background(), CouponEvent{Type: CouponEventTrashed, CouponID: 8}); err != nil {
		t.Fatalf("trashed: %v", err)
	}
	if _, ok := lookup.rows[8]; ok {
		t.Fatalf("trash must delete the row")
	}
	if err := svc.HandleEvent(context.Background(), CouponEvent{Type: CouponEventUntrashed, CouponID: 8}); err != nil {
		t.Fatalf("untrashed: %v", err)
	}
	if _, ok := lookup.rows[8]; !ok {
		t.Fatalf("untrash must recreate the row")
	}
}

func TestCouponSync_UnknownEvent(t *testing.T) {
	svc := newTestSyncService(t, &stubCouponRepo{coupons: map[int64]domain.Coupon{}}, newStubCouponLookupRepo())
	if err := svc.HandleEvent(context.Background(), CouponEvent{Type: "exploded", CouponID: 1}); err != ErrUnknownCouponEvent {
		t.Fatalf("expected ErrUnknownCouponEvent, got %v", err)
	}
}

func TestCouponSync_BackfillMixesUpsertsAndDeletes(t *testing.T) {
	lookup := newStubCouponLookupRepo()
	svc := newTestSyncService(t, &stubCouponRepo{coupons: map[int64]domain.Coupon{}}, lookup)

	batch := []domain.Coupon{
		{ID: 1, Code: "A", Status: domain.CouponStatusPublished},
		{ID: 2, Code: "B", Status: domain.CouponStatusTrashed},
		{ID: 3, Code: "C", Status: domain.CouponStatusPublished},
	}
	processed, err := svc.Backfill(context.Background(), batch, SourceFlagBackfill)
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if processed != 3 {
		t.Fatalf("expected 3 processed, got %d", processed)
	}
	if len(lookup.upserts) != 2 || len(lookup.deletes) != 1 {
		t.Fatalf("unexpected writes: upserts=%v deletes=%v", lookup.upserts, lookup.deletes)
	}
}
