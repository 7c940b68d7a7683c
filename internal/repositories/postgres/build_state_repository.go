package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	domain "github.com/orderdesk/adminsearch/internal/domain"
	"github.com/orderdesk/adminsearch/internal/repositories"
)

type buildStateRepository struct {
	db *Database
}

// NewBuildStateRepository builds the repository over the backfill builder's
// singleton state rows.
func NewBuildStateRepository(db *Database) (repositories.BuildStateRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("postgres: database is required")
	}
	return &buildStateRepository{db: db}, nil
}

func (r *buildStateRepository) Progress(ctx context.Context) (domain.BuildProgress, error) {
	var (
		progress  domain.BuildProgress
		startedAt *time.Time
	)
	err := r.db.pool.QueryRow(ctx, `
		SELECT last_id, processed, total, started_at, status
		FROM coupon_lookup_build
		WHERE id = 1`).Scan(&progress.LastID, &progress.Processed,
		&progress.Total, &startedAt, &progress.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BuildProgress{Status: domain.BuildStatusIdle}, nil
	}
	if err != nil {
		return domain.BuildProgress{}, repositories.NewInternal("read build progress failed", err)
	}
	if startedAt != nil {
		progress.StartedAt = startedAt.UTC()
	}
	if progress.Status == "" {
		progress.Status = domain.BuildStatusIdle
	}
	return progress, nil
}

func (r *buildStateRepository) SaveProgress(ctx context.Context, progress domain.BuildProgress) error {
	var startedAt *time.Time
	if !progress.StartedAt.IsZero() {
		utc := progress.StartedAt.UTC()
		startedAt = &utc
	}
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO coupon_lookup_build (id, last_id, processed, total, started_at, status)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			last_id = EXCLUDED.last_id,
			processed = EXCLUDED.processed,
			total = EXCLUDED.total,
			started_at = EXCLUDED.started_at,
			status = EXCLUDED.status`,
		progress.LastID, progress.Processed, progress.Total, startedAt, progress.Status)
	if err != nil {
		return repositories.NewInternal("save build progress failed", err)
	}
	return nil
}

// AcquireLock claims the singleton lock row when it is free or its holder's
// timestamp is older than staleAfter. The WHERE clause makes the claim a
// compare-and-swap: zero rows updated means another live holder won.
func (r *buildStateRepository) AcquireLock(ctx context.Context, now time.Time, staleAfter time.Duration) (bool, error) {
	cutoff := now.UTC().Add(-staleAfter)
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE coupon_lookup_lock
		SET locked_at = $1
		WHERE id = 1 AND (locked_at IS NULL OR locked_at < $2)`,
		now.UTC(), cutoff)
	if err != nil {
		return false, repositories.NewInternal("acquire build lock failed", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *buildStateRepository) ReleaseLock(ctx context.Context) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE coupon_lookup_lock
		SET locked_at = NULL
		WHERE id = 1`)
	if err != nil {
		return repositories.NewInternal("release build lock failed", err)
	}
	return nil
}

func (r *buildStateRepository) NextAllowedRun(ctx context.Context) (time.Time, error) {
	var next *time.Time
	err := r.db.pool.QueryRow(ctx, `
		SELECT next_allowed_run
		FROM coupon_lookup_schedule
		WHERE id = 1`).Scan(&next)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, repositories.NewInternal("read next allowed run failed", err)
	}
	if next == nil {
		return time.Time{}, nil
	}
	return next.UTC(), nil
}

func (r *buildStateRepository) SetNextAllowedRun(ctx context.Context, at time.Time) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO coupon_lookup_schedule (id, next_allowed_run)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET next_allowed_run = EXCLUDED.next_allowed_run`,
		at.UTC())
	if err != nil {
		return repositories.NewInternal("set next allowed run failed", err)
	}
	return nil
}
