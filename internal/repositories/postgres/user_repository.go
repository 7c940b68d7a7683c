package postgres

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/orderdesk/adminsearch/internal/domain"
	"github.com/orderdesk/adminsearch/internal/repositories"
)

type userRepository struct {
	db *Database
}

// NewUserRepository builds the repository over the host platform's user store.
func NewUserRepository(db *Database) (repositories.UserRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("postgres: database is required")
	}
	return &userRepository{db: db}, nil
}

// SearchUsers runs the generic fallback query: the raw term against email,
// username and display name, plus the split name tokens against the stored
// first/last name fields when the term produced a pair.
func (r *userRepository) SearchUsers(ctx context.Context, query repositories.UserQuery, limit int) ([]int64, error) {
	if limit <= 0 {
		return nil, nil
	}

	termPattern := likePattern(strings.ToLower(query.Term), true)
	args := []any{termPattern, limit}
	nameClause := ""
	if query.FirstName != "" && query.LastName != "" {
		nameClause = `
		   OR (lower(first_name) LIKE $3 AND lower(last_name) LIKE $4)
		   OR (lower(first_name) LIKE $4 AND lower(last_name) LIKE $3)`
		args = append(args,
			likePattern(strings.ToLower(query.FirstName), false),
			likePattern(strings.ToLower(query.LastName), false))
	}

	sql := `
		SELECT id
		FROM users
		WHERE lower(email) LIKE $1
		   OR lower(username) LIKE $1
		   OR lower(display_name) LIKE $1` + nameClause + `
		ORDER BY id
		LIMIT $2`

	rows, err := r.db.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, repositories.NewInternal("user search failed", err)
	}
	return scanIDs(rows)
}

func (r *userRepository) FetchByIDs(ctx context.Context, ids []int64) ([]domain.Customer, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.pool.Query(ctx, `
		SELECT id, email, COALESCE(billing_email, ''), COALESCE(first_name, ''),
		       COALESCE(last_name, ''), COALESCE(username, ''),
		       COALESCE(display_name, ''), date_registered
		FROM users
		WHERE id = ANY($1)
		ORDER BY id`,
		ids)
	if err != nil {
		return nil, repositories.NewInternal("fetch users by ids failed", err)
	}
	defer rows.Close()

	var customers []domain.Customer
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Email, &c.BillingEmail, &c.FirstName,
			&c.LastName, &c.Username, &c.DisplayName, &c.DateRegistered); err != nil {
			return nil, repositories.NewInternal("scan user row", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, repositories.NewInternal("iterate user rows", err)
	}
	return customers, nil
}
