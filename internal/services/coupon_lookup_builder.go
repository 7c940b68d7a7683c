package services

import (
	"context"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap/zapcore"

	domain "github.com/orderdesk/adminsearch/internal/domain"
	"github.com/orderdesk/adminsearch/internal/platform/jobs"
	"github.com/orderdesk/adminsearch/internal/platform/observability"
	"github.com/orderdesk/adminsearch/internal/repositories"
)

const (
	// BuildJobName identifies chained backfill batches on the scheduler.
	BuildJobName = "coupon-lookup-build"

	defaultBuildBatchSize = 500
	minBuildBatchSize     = 1
	maxBuildBatchSize     = 2000

	defaultLockTimeout = 5 * time.Minute
	defaultMinInterval = time.Minute
	defaultChainDelay  = 2 * time.Second
)

// CouponLookupBuilderDeps bundles dependencies required to construct a CouponLookupBuilder.
type CouponLookupBuilderDeps struct {
	Coupons   repositories.CouponRepository
	Sync      CouponSyncService
	State     repositories.BuildStateRepository
	Scheduler jobs.Scheduler
	Tracer    *observability.SearchTracer
	BatchSize int
	// LockTimeout is the advisory lock's staleness bound; a crashed holder
	// self-heals once it elapses.
	LockTimeout time.Duration
	// MinInterval rate-limits unforced runs. Force bypasses it, not the lock.
	MinInterval time.Duration
	ChainDelay  time.Duration
	Clock       func() time.Time
}

type couponLookupBuilder struct {
	coupons     repositories.CouponRepository
	sync        CouponSyncService
	state       repositories.BuildStateRepository
	scheduler   jobs.Scheduler
	tracer      *observability.SearchTracer
	batchSize   int
	lockTimeout time.Duration
	minInterval time.Duration
	chainDelay  time.Duration
	clock       func() time.Time
}

// NewCouponLookupBuilder wires the batch backfill job. The scheduler is
// optional; without it batches do not chain and each run covers one batch.
func NewCouponLookupBuilder(deps CouponLookupBuilderDeps) (CouponLookupBuilder, error) {
	if deps.Coupons == nil {
		return nil, ErrCouponRepositoryMissing
	}
	if deps.Sync == nil {
		return nil, ErrCouponLookupRepositoryMissing
	}
	if deps.State == nil {
		return nil, ErrBuildStateRepositoryMissing
	}
	builder := &couponLookupBuilder{
		coupons:     deps.Coupons,
		sync:        deps.Sync,
		state:       deps.State,
		scheduler:   deps.Scheduler,
		tracer:      deps.Tracer,
		batchSize:   deps.BatchSize,
		lockTimeout: deps.LockTimeout,
		minInterval: deps.MinInterval,
		chainDelay:  deps.ChainDelay,
	}
	if builder.batchSize <= 0 {
		builder.batchSize = defaultBuildBatchSize
	}
	if builder.lockTimeout <= 0 {
		builder.lockTimeout = defaultLockTimeout
	}
	if builder.minInterval <= 0 {
		builder.minInterval = defaultMinInterval
	}
	if builder.chainDelay <= 0 {
		builder.chainDelay = defaultChainDelay
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	builder.clock = func() time.Time { return clock().UTC() }
	return builder, nil
}

// RunBatch processes one bounded batch from the watermark onward. Contention
// and rate limiting return a non-fatal Success=false result, never an error;
// data-store faults mark the progress record and propagate.
func (b *couponLookupBuilder) RunBatch(ctx context.Context, opts BuildOptions) (BuildResult, error) {
	now := b.clock()
	size := clampBatchSize(opts.BatchSize, b.batchSize)

	if !opts.Force {
		next, err := b.state.NextAllowedRun(ctx)
		if err != nil {
			return BuildResult{}, err
		}
		if !next.IsZero() && now.Before(next) {
			return BuildResult{
				Success: false,
				Message: "rate limited until " + next.Format(time.RFC3339),
			}, nil
		}
	}

	acquired, err := b.state.AcquireLock(ctx, now, b.lockTimeout)
	if err != nil {
		return BuildResult{}, err
	}
	if !acquired {
		return BuildResult{Success: false, Message: "another build is in progress"}, nil
	}
	defer func() {
		if releaseErr := b.state.ReleaseLock(ctx); releaseErr != nil {
			b.tracer.Log(ctx, "CouponLookupBuilder", "release_lock_failed", map[string]any{
				"error": releaseErr.Error(),
			}, zapcore.WarnLevel)
		}
	}()

	runID := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
	stop := b.tracer.StartTimer(ctx, "CouponLookupBuilder", "run_batch")

	result, err := b.runLocked(ctx, now, size, runID)
	stop(map[string]any{
		"run_id":    runID,
		"processed": result.Processed,
		"done":      result.Done,
	})
	return result, err
}

func (b *couponLookupBuilder) runLocked(ctx context.Context, now time.Time, size int, runID string) (BuildResult, error) {
	progress, err := b.state.Progress(ctx)
	if err != nil {
		return BuildResult{}, err
	}
	if progress.Status != domain.BuildStatusRunning {
		total, countErr := b.coupons.CountAll(ctx)
		if countErr != nil {
			return BuildResult{}, countErr
		}
		progress.Total = total
		progress.StartedAt = now
		if progress.Status == domain.BuildStatusIdle || progress.Status == domain.BuildStatusError {
			progress.Processed = 0
		}
	}

	batch, err := b.coupons.ListAfterID(ctx, progress.LastID, size)
	if err != nil {
		return BuildResult{}, b.failProgress(ctx, progress, err)
	}

	processed, err := b.sync.Backfill(ctx, batch, SourceFlagBackfill)
	if err != nil {
		progress.Processed += int64(processed)
		if processed > 0 {
			progress.LastID = batch[processed-1].ID
		}
		return BuildResult{}, b.failProgress(ctx, progress, err)
	}

	if len(batch) > 0 {
		progress.LastID = batch[len(batch)-1].ID
	}
	progress.Processed += int64(len(batch))
	done := len(batch) < size
	if done {
		progress.Status = domain.BuildStatusComplete
	} else {
		progress.Status = domain.BuildStatusRunning
	}

	if err := b.state.SaveProgress(ctx, progress); err != nil {
		return BuildResult{}, err
	}
	if err := b.state.SetNextAllowedRun(ctx, now.Add(b.minInterval)); err != nil {
		return BuildResult{}, err
	}

	if !done && b.scheduler != nil {
		job := jobs.Job{
			Name: BuildJobName,
			Payload: map[string]string{
				"batch_size": strconv.Itoa(size),
				"run_id":     runID,
			},
		}
		if scheduleErr := b.scheduler.Schedule(ctx, job, b.chainDelay); scheduleErr != nil {
			b.tracer.Log(ctx, "CouponLookupBuilder", "chain_failed", map[string]any{
				"error": scheduleErr.Error(),
			}, zapcore.WarnLevel)
		}
	}

	return BuildResult{
		Success:   true,
		RunID:     runID,
		Processed: len(batch),
		LastID:    progress.LastID,
		Done:      done,
	}, nil
}

// failProgress records an aborted batch before propagating the fault.
func (b *couponLookupBuilder) failProgress(ctx context.Context, progress domain.BuildProgress, cause error) error {
	progress.Status = domain.BuildStatusError
	if saveErr := b.state.SaveProgress(ctx, progress); saveErr != nil {
		b.tracer.Log(ctx, "CouponLookupBuilder", "save_error_state_failed", map[string]any{
			"error": saveErr.Error(),
		}, zapcore.WarnLevel)
	}
	return cause
}

func (b *couponLookupBuilder) Status(ctx context.Context) (domain.BuildProgress, error) {
	return b.state.Progress(ctx)
}

func clampBatchSize(requested, fallback int) int {
	size := requested
	if size == 0 {
		size = fallback
	}
	if size < minBuildBatchSize {
		return minBuildBatchSize
	}
	if size > maxBuildBatchSize {
		return maxBuildBatchSize
	}
	return size
}
