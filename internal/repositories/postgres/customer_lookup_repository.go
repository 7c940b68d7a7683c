package postgres

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/orderdesk/adminsearch/internal/repositories"
)

const customerLookupTable = "customer_lookup"

// availabilityProbeInterval bounds how often a missing optional table is
// re-probed, so installations that add the indexing extension later are
// picked up without a restart.
const availabilityProbeInterval = 5 * time.Minute

type customerLookupRepository struct {
	db *Database

	mu        sync.Mutex
	probed    bool
	probedAt  time.Time
	available bool
}

// NewCustomerLookupRepository builds the repository over the optional indexed
// customer lookup table.
func NewCustomerLookupRepository(db *Database) (repositories.CustomerLookupRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("postgres: database is required")
	}
	return &customerLookupRepository{db: db}, nil
}

func (r *customerLookupRepository) Available(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.probed && (r.available || time.Since(r.probedAt) < availabilityProbeInterval) {
		return r.available
	}
	exists, err := tableExists(ctx, r.db, customerLookupTable)
	if err != nil {
		return false
	}
	r.probed = true
	r.probedAt = time.Now()
	r.available = exists
	return exists
}

func (r *customerLookupRepository) SearchNamePair(ctx context.Context, first, last string, limit int) ([]int64, error) {
	if limit <= 0 {
		return nil, nil
	}
	firstPattern := likePattern(strings.ToLower(first), false)
	lastPattern := likePattern(strings.ToLower(last), false)

	rows, err := r.db.pool.Query(ctx, `
		SELECT user_id
		FROM customer_lookup
		WHERE (lower(first_name) LIKE $1 AND lower(last_name) LIKE $2)
		   OR (lower(first_name) LIKE $2 AND lower(last_name) LIKE $1)
		ORDER BY user_id
		LIMIT $3`,
		firstPattern, lastPattern, limit)
	if err != nil {
		return nil, repositories.NewInternal("customer lookup name pair search failed", err)
	}
	return scanIDs(rows)
}

func (r *customerLookupRepository) SearchPrefix(ctx context.Context, token string, limit int) ([]int64, error) {
	if limit <= 0 {
		return nil, nil
	}
	pattern := likePattern(strings.ToLower(token), false)

	rows, err := r.db.pool.Query(ctx, `
		SELECT user_id
		FROM customer_lookup
		WHERE lower(email) LIKE $1
		   OR lower(first_name) LIKE $1
		   OR lower(last_name) LIKE $1
		   OR lower(username) LIKE $1
		ORDER BY user_id
		LIMIT $2`,
		pattern, limit)
	if err != nil {
		return nil, repositories.NewInternal("customer lookup prefix search failed", err)
	}
	return scanIDs(rows)
}

func (r *customerLookupRepository) SearchEmailContains(ctx context.Context, token string, limit int) ([]int64, error) {
	if limit <= 0 {
		return nil, nil
	}
	pattern := likePattern(strings.ToLower(token), true)

	rows, err := r.db.pool.Query(ctx, `
		SELECT user_id
		FROM customer_lookup
		WHERE lower(email) LIKE $1
		ORDER BY user_id
		LIMIT $2`,
		pattern, limit)
	if err != nil {
		return nil, repositories.NewInternal("customer lookup email search failed", err)
	}
	return scanIDs(rows)
}

func scanIDs(rows pgx.Rows) ([]int64, error) {
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, repositories.NewInternal("scan user id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, repositories.NewInternal("iterate user ids", err)
	}
	return ids, nil
}
