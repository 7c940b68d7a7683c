package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/orderdesk/adminsearch/internal/repositories"
)

const orderNumbersTable = "order_numbers"

type sequentialNumberRepository struct {
	db *Database

	mu        sync.Mutex
	probed    bool
	probedAt  time.Time
	available bool
}

// NewSequentialNumberRepository builds the repository over the optional
// sequential order numbering integration's mapping table.
func NewSequentialNumberRepository(db *Database) (repositories.SequentialNumberRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("postgres: database is required")
	}
	return &sequentialNumberRepository{db: db}, nil
}

func (r *sequentialNumberRepository) Available(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.probed && (r.available || time.Since(r.probedAt) < availabilityProbeInterval) {
		return r.available
	}
	exists, err := tableExists(ctx, r.db, orderNumbersTable)
	if err != nil {
		return false
	}
	r.probed = true
	r.probedAt = time.Now()
	r.available = exists
	return exists
}

// FindOrderIDByNumber matches the token against the stored display number,
// case-insensitively, preferring the most recent mapping when duplicates
// exist.
func (r *sequentialNumberRepository) FindOrderIDByNumber(ctx context.Context, token string) (int64, error) {
	var id int64
	err := r.db.pool.QueryRow(ctx, `
		SELECT order_id
		FROM order_numbers
		WHERE lower(number) = lower($1)
		ORDER BY order_id DESC
		LIMIT 1`,
		token).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, repositories.NewNotFound(fmt.Sprintf("no order mapped to number %q", token))
	}
	if err != nil {
		return 0, repositories.NewInternal("sequential number lookup failed", err)
	}
	return id, nil
}
