package reports

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the aggregate queries behind each report.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a Repository bound to the pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) SalesTotals(ctx context.Context, from, to time.Time, locationID string) (SalesSummary, error) {
	query := `SELECT COALESCE(SUM(total), 0), COALESCE(SUM(tax_amount), 0), COALESCE(SUM(subtotal), 0), COUNT(*),
COALESCE(SUM(total) FILTER (WHERE payment_method = 'CASH'), 0),
COALESCE(SUM(total) FILTER (WHERE payment_method = 'CARD'), 0)
FROM sales WHERE created_at >= $1 AND created_at < $2`
	args := []any{from, to}
	if locationID != "" {
		query += ` AND location_id = $3`
		args = append(args, locationID)
	}

	summary := SalesSummary{From: from, To: to, LocationID: locationID}
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&summary.GrossSales, &summary.TaxCollected, &summary.NetSales,
		&summary.TransactionCount, &summary.CashTotal, &summary.CardTotal)
	if err != nil {
		return SalesSummary{}, err
	}
	return summary, nil
}

func (r *Repository) TopProducts(ctx context.Context, from, to time.Time, locationID string, limit int) ([]ProductSales, error) {
	query := `SELECT l.product_id, l.product_name, SUM(l.quantity), SUM(l.line_total)
FROM sale_lines l JOIN sales s ON s.id = l.sale_id
WHERE s.created_at >= $1 AND s.created_at < $2`
	args := []any{from, to}
	argCount := 3
	if locationID != "" {
		query += ` AND s.location_id = $` + strconv.Itoa(argCount)
		args = append(args, locationID)
		argCount++
	}
	query += ` GROUP BY l.product_id, l.product_name ORDER BY SUM(l.line_total) DESC LIMIT $` + strconv.Itoa(argCount)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductSales
	for rows.Next() {
		var p ProductSales
		if err := rows.Scan(&p.ProductID, &p.ProductName, &p.Quantity, &p.Revenue); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) BatchYields(ctx context.Context, from, to time.Time) ([]BatchYield, error) {
	rows, err := r.pool.Query(ctx, `SELECT b.id, b.code, b.level, b.pre_weight_kg,
COALESCE(b.post_weight_kg, 0), COALESCE(b.waste_pct, 0),
COALESCE(SUM(u.quantity * t.weight_kg), 0), COALESCE(SUM(u.quantity), 0)
FROM roast_batches b
LEFT JOIN roast_batch_units u ON u.batch_id = b.id
LEFT JOIN packaging_templates t ON t.id = u.template_id
WHERE b.status = 'COMPLETED' AND b.roast_date >= $1 AND b.roast_date < $2
GROUP BY b.id, b.code, b.level, b.pre_weight_kg, b.post_weight_kg, b.waste_pct
ORDER BY b.roast_date DESC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BatchYield
	for rows.Next() {
		var y BatchYield
		if err := rows.Scan(&y.BatchID, &y.Code, &y.Level, &y.PreWeightKg,
			&y.PostWeightKg, &y.WastePct, &y.AllocatedKg, &y.UnitsPackaged); err != nil {
			return nil, err
		}
		y.RemainingKg = y.PostWeightKg - y.AllocatedKg
		if y.RemainingKg < 0 {
			y.RemainingKg = 0
		}
		out = append(out, y)
	}
	return out, rows.Err()
}

func (r *Repository) Valuation(ctx context.Context, locationID string) ([]ValuationRow, error) {
	query := `SELECT i.location_id, COALESCE(loc.name, ''), i.product_name, i.sku, i.quantity, i.unit_cost
FROM inventory_items i
LEFT JOIN locations loc ON loc.id = i.location_id
WHERE i.quantity > 0`
	args := []any{}
	if locationID != "" {
		query += ` AND i.location_id = $1`
		args = append(args, locationID)
	}
	query += ` ORDER BY loc.name, i.product_name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ValuationRow
	for rows.Next() {
		var row ValuationRow
		if err := rows.Scan(&row.LocationID, &row.LocationName, &row.ProductName,
			&row.SKU, &row.Quantity, &row.UnitCost); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *Repository) ExpiringLots(ctx context.Context, withinDays int) ([]ExpiringLot, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, sku, product_name, location_id, quantity, expiry_date
FROM inventory_items
WHERE quantity > 0 AND expiry_date IS NOT NULL
  AND expiry_date <= NOW() + ($1 * INTERVAL '1 day')
ORDER BY expiry_date ASC`, withinDays)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExpiringLot
	for rows.Next() {
		var lot ExpiringLot
		if err := rows.Scan(&lot.ItemID, &lot.SKU, &lot.ProductName,
			&lot.LocationID, &lot.Quantity, &lot.ExpiryDate); err != nil {
			return nil, err
		}
		out = append(out, lot)
	}
	return out, rows.Err()
}
