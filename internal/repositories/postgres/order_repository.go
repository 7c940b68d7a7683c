package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"

	domain "github.com/orderdesk/adminsearch/internal/domain"
	"github.com/orderdesk/adminsearch/internal/repositories"
)

// Meta keys used by the legacy entity layout, where order details live in a
// key/value sidecar table instead of dedicated columns.
const (
	metaKeyCustomerID   = "_customer_user"
	metaKeyOrderTotal   = "_order_total_cents"
	metaKeyCurrency     = "_order_currency"
	metaKeyBillingEmail = "_billing_email"
	metaKeyBillingFirst = "_billing_first_name"
	metaKeyBillingLast  = "_billing_last_name"
)

type orderRepository struct {
	db *Database

	layoutOnce sync.Once
	tabular    bool
	layoutErr  error
}

// NewOrderRepository builds the repository over the host platform's order
// store. The store ships in two layouts: the high-performance tabular one
// with a dedicated orders table, and the legacy one spreading order fields
// across an entity table and a meta sidecar. The layout is probed once on
// first use.
func NewOrderRepository(db *Database) (repositories.OrderRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("postgres: database is required")
	}
	return &orderRepository{db: db}, nil
}

func (r *orderRepository) useTabular(ctx context.Context) (bool, error) {
	r.layoutOnce.Do(func() {
		exists, err := tableExists(ctx, r.db, "orders")
		if err != nil {
			r.layoutErr = repositories.NewUnavailable("order store layout probe failed")
			return
		}
		r.tabular = exists
	})
	return r.tabular, r.layoutErr
}

func (r *orderRepository) FindByID(ctx context.Context, id int64) (domain.Order, error) {
	tabular, err := r.useTabular(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	if tabular {
		return r.findByIDTabular(ctx, id)
	}
	return r.findByIDLegacy(ctx, id)
}

func (r *orderRepository) findByIDTabular(ctx context.Context, id int64) (domain.Order, error) {
	var o domain.Order
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, COALESCE(number, ''), status, total_cents,
		       COALESCE(currency, ''), COALESCE(customer_id, 0),
		       COALESCE(billing_email, ''), COALESCE(billing_first_name, ''),
		       COALESCE(billing_last_name, ''), created_at
		FROM orders
		WHERE id = $1`,
		id).Scan(&o.ID, &o.Number, &o.Status, &o.TotalCents, &o.Currency,
		&o.CustomerID, &o.BillingEmail, &o.BillingFirstName, &o.BillingLastName,
		&o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, repositories.NewNotFound(fmt.Sprintf("order %d not found", id))
	}
	if err != nil {
		return domain.Order{}, repositories.NewInternal("find order by id failed", err)
	}
	if o.Number == "" {
		o.Number = strconv.FormatInt(o.ID, 10)
	}
	return o, nil
}

func (r *orderRepository) findByIDLegacy(ctx context.Context, id int64) (domain.Order, error) {
	var o domain.Order
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, status, created_at
		FROM order_entities
		WHERE id = $1`,
		id).Scan(&o.ID, &o.Status, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, repositories.NewNotFound(fmt.Sprintf("order %d not found", id))
	}
	if err != nil {
		return domain.Order{}, repositories.NewInternal("find order by id failed", err)
	}

	meta, err := r.fetchMeta(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	o.Number = strconv.FormatInt(o.ID, 10)
	o.TotalCents, _ = strconv.ParseInt(meta[metaKeyOrderTotal], 10, 64)
	o.Currency = meta[metaKeyCurrency]
	o.CustomerID, _ = strconv.ParseInt(meta[metaKeyCustomerID], 10, 64)
	o.BillingEmail = meta[metaKeyBillingEmail]
	o.BillingFirstName = meta[metaKeyBillingFirst]
	o.BillingLastName = meta[metaKeyBillingLast]
	return o, nil
}

func (r *orderRepository) fetchMeta(ctx context.Context, orderID int64) (map[string]string, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT meta_key, meta_value
		FROM order_meta
		WHERE order_id = $1`,
		orderID)
	if err != nil {
		return nil, repositories.NewInternal("fetch order meta failed", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, repositories.NewInternal("scan order meta", err)
		}
		meta[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, repositories.NewInternal("iterate order meta", err)
	}
	return meta, nil
}

func (r *orderRepository) CountByCustomerIDs(ctx context.Context, customerIDs []int64) (map[int64]int, error) {
	counts := make(map[int64]int, len(customerIDs))
	if len(customerIDs) == 0 {
		return counts, nil
	}
	tabular, err := r.useTabular(ctx)
	if err != nil {
		return nil, err
	}

	var rows pgx.Rows
	if tabular {
		rows, err = r.db.pool.Query(ctx, `
			SELECT customer_id, COUNT(*)
			FROM orders
			WHERE customer_id = ANY($1)
			GROUP BY customer_id`,
			customerIDs)
	} else {
		textIDs := make([]string, len(customerIDs))
		for i, id := range customerIDs {
			textIDs[i] = strconv.FormatInt(id, 10)
		}
		rows, err = r.db.pool.Query(ctx, `
			SELECT meta_value, COUNT(*)
			FROM order_meta
			WHERE meta_key = $1 AND meta_value = ANY($2)
			GROUP BY meta_value`,
			metaKeyCustomerID, textIDs)
	}
	if err != nil {
		return nil, repositories.NewInternal("count orders by customer failed", err)
	}
	defer rows.Close()

	for rows.Next() {
		var count int
		if tabular {
			var customerID int64
			if err := rows.Scan(&customerID, &count); err != nil {
				return nil, repositories.NewInternal("scan order count", err)
			}
			counts[customerID] = count
		} else {
			var raw string
			if err := rows.Scan(&raw, &count); err != nil {
				return nil, repositories.NewInternal("scan order count", err)
			}
			customerID, parseErr := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if parseErr != nil {
				continue
			}
			counts[customerID] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, repositories.NewInternal("iterate order counts", err)
	}
	return counts, nil
}

func (r *orderRepository) ListRecentByCustomer(ctx context.Context, customerID int64, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		return nil, nil
	}
	tabular, err := r.useTabular(ctx)
	if err != nil {
		return nil, err
	}

	var ids []int64
	if tabular {
		rows, queryErr := r.db.pool.Query(ctx, `
			SELECT id
			FROM orders
			WHERE customer_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2`,
			customerID, limit)
		if queryErr != nil {
			return nil, repositories.NewInternal("list orders by customer failed", queryErr)
		}
		ids, err = scanIDs(rows)
	} else {
		rows, queryErr := r.db.pool.Query(ctx, `
			SELECT e.id
			FROM order_entities e
			JOIN order_meta m ON m.order_id = e.id
			WHERE m.meta_key = $1 AND m.meta_value = $2
			ORDER BY e.created_at DESC, e.id DESC
			LIMIT $3`,
			metaKeyCustomerID, strconv.FormatInt(customerID, 10), limit)
		if queryErr != nil {
			return nil, repositories.NewInternal("list orders by customer failed", queryErr)
		}
		ids, err = scanIDs(rows)
	}
	if err != nil {
		return nil, err
	}
	return r.loadOrders(ctx, ids)
}

func (r *orderRepository) FindByBillingEmail(ctx context.Context, email string, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		return nil, nil
	}
	tabular, err := r.useTabular(ctx)
	if err != nil {
		return nil, err
	}
	normalized := strings.ToLower(strings.TrimSpace(email))

	var ids []int64
	if tabular {
		rows, queryErr := r.db.pool.Query(ctx, `
			SELECT id
			FROM orders
			WHERE lower(billing_email) = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2`,
			normalized, limit)
		if queryErr != nil {
			return nil, repositories.NewInternal("find orders by billing email failed", queryErr)
		}
		ids, err = scanIDs(rows)
	} else {
		rows, queryErr := r.db.pool.Query(ctx, `
			SELECT e.id
			FROM order_entities e
			JOIN order_meta m ON m.order_id = e.id
			WHERE m.meta_key = $1 AND lower(m.meta_value) = $2
			ORDER BY e.created_at DESC, e.id DESC
			LIMIT $3`,
			metaKeyBillingEmail, normalized, limit)
		if queryErr != nil {
			return nil, repositories.NewInternal("find orders by billing email failed", queryErr)
		}
		ids, err = scanIDs(rows)
	}
	if err != nil {
		return nil, err
	}
	return r.loadOrders(ctx, ids)
}

func (r *orderRepository) loadOrders(ctx context.Context, ids []int64) ([]domain.Order, error) {
	orders := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		order, err := r.FindByID(ctx, id)
		if err != nil {
			if repositories.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}
