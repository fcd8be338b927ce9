package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the pgx-backed record source for orders and their items.
// All reads are point-in-time snapshots; the engine never writes.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a Repository on top of a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orderColumns = `id, number, order_date, status, agent_id,
	COALESCE(distributor_ref, ''), COALESCE(delivery_address, ''),
	COALESCE(delivery_city, ''), COALESCE(delivery_county, ''),
	pallet_count, total_value, cancelled_by, cancelled_at, created_at, updated_at`

// ListOrders returns orders matching the filter, newest-first by creation
// time. Cancellation views order by cancellation time instead, so the most
// recently cancelled order leads.
func (r *Repository) ListOrders(ctx context.Context, f Filter) ([]Order, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	switch {
	case f.CancelledOnly:
		conds = append(conds, "status = "+arg(string(StatusCancelled)))
	case f.Status != "":
		conds = append(conds, "status = "+arg(string(f.Status)))
	case !f.IncludeCancelled:
		conds = append(conds, "status <> "+arg(string(StatusCancelled)))
	}
	if !f.From.IsZero() {
		conds = append(conds, "order_date >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "order_date <= "+arg(f.To))
	}
	if f.AgentID != 0 {
		conds = append(conds, "agent_id = "+arg(f.AgentID))
	}
	if f.DistributorID != uuid.Nil {
		conds = append(conds, "distributor_ref = "+arg(f.DistributorID.String()))
	}

	query := "SELECT " + orderColumns + " FROM orders"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if f.CancelledOnly {
		query += " ORDER BY cancelled_at DESC NULLS LAST"
	} else {
		query += " ORDER BY created_at DESC"
	}
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("orders: list: %w", err)
	}
	defer rows.Close()

	var result []Order
	for rows.Next() {
		ord, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("orders: scan: %w", err)
		}
		result = append(result, ord)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("orders: list: %w", err)
	}
	return result, nil
}

// GetOrder fetches one order by id.
func (r *Repository) GetOrder(ctx context.Context, id int64) (*Order, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	ord, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("orders: get %d: %w", id, err)
	}
	return &ord, nil
}

// ListItems bulk-fetches the items of every order in orderIDs. A single
// round trip regardless of batch size; line order within an order follows
// insertion order.
func (r *Repository) ListItems(ctx context.Context, orderIDs []int64) ([]OrderItem, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT id, order_id, product_id, quantity, unit_price, line_total
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, id`
	rows, err := r.pool.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("orders: list items: %w", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, fmt.Errorf("orders: scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("orders: list items: %w", err)
	}
	return items, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		ord    Order
		rawRef string
		status string
	)
	err := row.Scan(
		&ord.ID, &ord.Number, &ord.OrderDate, &status, &ord.AgentID,
		&rawRef, &ord.DeliveryAddress, &ord.DeliveryCity, &ord.DeliveryCounty,
		&ord.PalletCount, &ord.TotalValue, &ord.CancelledBy, &ord.CancelledAt,
		&ord.CreatedAt, &ord.UpdatedAt,
	)
	if err != nil {
		return Order{}, err
	}
	ord.Status = OrderStatus(status)
	ord.Distributor = ParseDistributorRef(rawRef)
	return ord, nil
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
