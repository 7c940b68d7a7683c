package services

import (
	"context"
	"sync"
	"testing"
	"time"

	domain "github.com/orderdesk/adminsearch/internal/domain"
	"github.com/orderdesk/adminsearch/internal/platform/jobs"
)

type recordingScheduler struct {
	mu   sync.Mutex
	jobs []jobs.Job
}

func (s *recordingScheduler) Schedule(_ context.Context, job jobs.Job, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return nil
}

func couponFixture(count int) map[int64]domain.Coupon {
	out := make(map[int64]domain.Coupon, count)
	for id := int64(1); id <= int64(count); id++ {
		out[id] = domain.Coupon{ID: id, Code: "C", Status: domain.CouponStatusPublished}
	}
	return out
}

func newTestBuilder(t *testing.T, coupons *stubCouponRepo, state *stubBuildStateRepo, scheduler jobs.Scheduler, now *time.Time) CouponLookupBuilder {
	t.Helper()
	lookup := newStubCouponLookupRepo()
	builder, err := NewCouponLookupBuilder(CouponLookupBuilderDeps{
		Coupons:   coupons,
		Sync:      newTestSyncService(t, coupons, lookup),
		State:     state,
		Scheduler: scheduler,
		Clock:     func() time.Time { return *now },
	})
	if err != nil {
		t.Fatalf("NewCouponLookupBuilder: %v", err)
	}
	return builder
}

func TestBuilder_WatermarkMonotonicityAcrossBatches(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	coupons := &stubCouponRepo{coupons: couponFixture(25)}
	state := &stubBuildStateRepo{}
	builder := newTestBuilder(t, coupons, state, nil, &now)

	var lastID int64
	for batch := 0; batch < 3; batch++ {
		result, err := builder.RunBatch(context.Background(), BuildOptions{Force: true, BatchSize: 10})
		if err != nil {
			t.Fatalf("RunBatch %d: %v", batch, err)
		}
		if !result.Success {
			t.Fatalf("RunBatch %d reported failure: %+v", batch, result)
		}
		if result.LastID < lastID {
			t.Fatalf("watermark regressed: %d -> %d", lastID, result.LastID)
		}
		lastID = result.LastID
	}
	if lastID != 25 {
		t.Fatalf("expected watermark 25, got %d", lastID)
	}
	if state.progress.Status != domain.BuildStatusComplete {
		t.Fatalf("expected complete status, got %s", state.progress.Status)
	}
}

func TestBuilder_ForcedRerunAfterCompletion(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	coupons := &stubCouponRepo{coupons: couponFixture(5)}
	state := &stubBuildStateRepo{}
	builder := newTestBuilder(t, coupons, state, nil, &now)

	first, err := builder.RunBatch(context.Background(), BuildOptions{Force: true, BatchSize: 10})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if !first.Done || first.Processed != 5 {
		t.Fatalf("expected single-batch completion, got %+v", first)
	}

	second, err := builder.RunBatch(context.Background(), BuildOptions{Force: true, BatchSize: 10})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if second.Processed != 0 || !second.Done {
		t.Fatalf("forced rerun after completion must be a no-op, got %+v", second)
	}
}

func TestBuilder_RateLimitBlocksUnforcedRuns(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	coupons := &stubCouponRepo{coupons: couponFixture(5)}
	state := &stubBuildStateRepo{}
	builder := newTestBuilder(t, coupons, state, nil, &now)

	first, err := builder.RunBatch(context.Background(), BuildOptions{})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if !first.Success {
		t.Fatalf("first unforced run must succeed: %+v", first)
	}

	now = now.Add(10 * time.Second)
	blocked, err := builder.RunBatch(context.Background(), BuildOptions{})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if blocked.Success {
		t.Fatalf("run inside the min interval must be rate limited")
	}

	forced, err := builder.RunBatch(context.Background(), BuildOptions{Force: true})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if !forced.Success {
		t.Fatalf("force must bypass the rate limit: %+v", forced)
	}
}

func TestBuilder_LockContentionIsNonFatal(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	coupons := &stubCouponRepo{coupons: couponFixture(5)}
	state := &stubBuildStateRepo{denyAcquire: true}
	builder := newTestBuilder(t, coupons, state, nil, &now)

	result, err := builder.RunBatch(context.Background(), BuildOptions{Force: true})
	if err != nil {
		t.Fatalf("contention must not be an error: %v", err)
	}
	if result.Success {
		t.Fatalf("contention must report success=false")
	}
	if result.Message == "" {
		t.Fatalf("contention must carry a message")
	}
	if state.releaseCalls != 0 {
		t.Fatalf("a lock that was never acquired must not be released")
	}
}

func TestBuilder_ChainsNextBatchThroughScheduler(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	coupons := &stubCouponRepo{coupons: couponFixture(25)}
	state := &stubBuildStateRepo{}
	scheduler := &recordingScheduler{}
	builder := newTestBuilder(t, coupons, state, scheduler, &now)

	result, err := builder.RunBatch(context.Background(), BuildOptions{Force: true, BatchSize: 10})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if result.Done {
		t.Fatalf("partial batch must not report done")
	}
	if len(scheduler.jobs) != 1 || scheduler.jobs[0].Name != BuildJobName {
		t.Fatalf("expected one chained job, got %+v", scheduler.jobs)
	}
	if scheduler.jobs[0].Payload["batch_size"] != "10" {
		t.Fatalf("chained job must carry the batch size, payload=%v", scheduler.jobs[0].Payload)
	}
}

func TestClampBatchSize(t *testing.T) {
	if clampBatchSize(0, 500) != 500 {
		t.Fatalf("zero must apply the configured size")
	}
	if clampBatchSize(-3, 500) != minBuildBatchSize {
		t.Fatalf("negative must clamp to %d", minBuildBatchSize)
	}
	if clampBatchSize(99999, 500) != maxBuildBatchSize {
		t.Fatalf("oversize must clamp to %d", maxBuildBatchSize)
	}
}
