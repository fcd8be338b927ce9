package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads catalogue reference data. Every method that serves a
// batch takes the full id set and issues one query; per-entity round trips
// belong to the presentation layer, not the engine.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a Repository on top of a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetProduct fetches one product by id.
func (r *Repository) GetProduct(ctx context.Context, id int64) (*Product, error) {
	const query = `SELECT id, name, code, length_cm, width_cm, height_cm,
		units_per_pallet, nominal_stock, alert_threshold FROM products WHERE id = $1`
	var p Product
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Code, &p.LengthCM, &p.WidthCM, &p.HeightCM,
		&p.UnitsPerPallet, &p.NominalStock, &p.AlertThreshold,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("catalog: get product %d: %w", id, err)
	}
	return &p, nil
}

// ListProducts bulk-fetches all products in ids.
func (r *Repository) ListProducts(ctx context.Context, ids []int64) ([]Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT id, name, code, length_cm, width_cm, height_cm,
		units_per_pallet, nominal_stock, alert_threshold FROM products WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("catalog: list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Code, &p.LengthCM, &p.WidthCM, &p.HeightCM,
			&p.UnitsPerPallet, &p.NominalStock, &p.AlertThreshold); err != nil {
			return nil, fmt.Errorf("catalog: scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list products: %w", err)
	}
	return products, nil
}

// GetDistributor fetches one distributor by id.
func (r *Repository) GetDistributor(ctx context.Context, id uuid.UUID) (*Distributor, error) {
	const query = `SELECT id, company_name, COALESCE(city, ''), COALESCE(county, ''), agent_id
		FROM distributors WHERE id = $1`
	var d Distributor
	err := r.pool.QueryRow(ctx, query, id).Scan(&d.ID, &d.CompanyName, &d.City, &d.County, &d.AgentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("catalog: get distributor %s: %w", id, err)
	}
	return &d, nil
}

// ListDistributors bulk-fetches distributors by id.
func (r *Repository) ListDistributors(ctx context.Context, ids []uuid.UUID) ([]Distributor, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT id, company_name, COALESCE(city, ''), COALESCE(county, ''), agent_id
		FROM distributors WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("catalog: list distributors: %w", err)
	}
	defer rows.Close()

	var result []Distributor
	for rows.Next() {
		var d Distributor
		if err := rows.Scan(&d.ID, &d.CompanyName, &d.City, &d.County, &d.AgentID); err != nil {
			return nil, fmt.Errorf("catalog: scan distributor: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list distributors: %w", err)
	}
	return result, nil
}

// ListOfficialPrices fetches the price grid, optionally scoped to a product
// set. Rows come back ordered by product and validity start so index builds
// need no re-sort.
func (r *Repository) ListOfficialPrices(ctx context.Context, productIDs []int64) ([]OfficialPrice, error) {
	query := `SELECT id, product_id, price, valid_from, valid_to FROM official_prices`
	var args []any
	if len(productIDs) > 0 {
		query += ` WHERE product_id = ANY($1)`
		args = append(args, productIDs)
	}
	query += ` ORDER BY product_id, valid_from`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list official prices: %w", err)
	}
	defer rows.Close()

	var prices []OfficialPrice
	for rows.Next() {
		var p OfficialPrice
		if err := rows.Scan(&p.ID, &p.ProductID, &p.Price, &p.ValidFrom, &p.ValidTo); err != nil {
			return nil, fmt.Errorf("catalog: scan official price: %w", err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list official prices: %w", err)
	}
	return prices, nil
}

// RealStockSnapshot bulk-fetches warehouse-confirmed quantities for every
// product. Real stock is authoritative for fulfillment and may sit below the
// nominal counter on the product row.
func (r *Repository) RealStockSnapshot(ctx context.Context) (map[int64]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, quantity FROM real_stock`)
	if err != nil {
		return nil, fmt.Errorf("catalog: real stock snapshot: %w", err)
	}
	defer rows.Close()

	snapshot := make(map[int64]int)
	for rows.Next() {
		var productID int64
		var qty int
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, fmt.Errorf("catalog: scan real stock: %w", err)
		}
		snapshot[productID] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: real stock snapshot: %w", err)
	}
	return snapshot, nil
}

// GetProfile fetches one agent profile by user id.
func (r *Repository) GetProfile(ctx context.Context, userID int64) (*AgentProfile, error) {
	const query = `SELECT user_id, display_name, role FROM profiles WHERE user_id = $1`
	var p AgentProfile
	var role string
	err := r.pool.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.DisplayName, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("catalog: get profile %d: %w", userID, err)
	}
	p.Role = Role(role)
	return &p, nil
}

// ListProfiles bulk-fetches agent profiles by user id.
func (r *Repository) ListProfiles(ctx context.Context, userIDs []int64) ([]AgentProfile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT user_id, display_name, role FROM profiles WHERE user_id = ANY($1)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("catalog: list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []AgentProfile
	for rows.Next() {
		var p AgentProfile
		var role string
		if err := rows.Scan(&p.UserID, &p.DisplayName, &role); err != nil {
			return nil, fmt.Errorf("catalog: scan profile: %w", err)
		}
		p.Role = Role(role)
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list profiles: %w", err)
	}
	return profiles, nil
}
