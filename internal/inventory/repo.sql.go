package inventory

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, id string) (Item, error)
	FindItemAtLocationByName(ctx context.Context, locationID, productName string) (Item, error)
	UpdateItemQuantity(ctx context.Context, id string, quantity int, version int64) error
	InsertItem(ctx context.Context, params NewItemParams) (string, error)
	InsertAdjustment(ctx context.Context, adj Adjustment) error
	GetAdjustmentForUpdate(ctx context.Context, id string) (Adjustment, error)
	MarkAdjustmentResolved(ctx context.Context, id string, status AdjustmentStatus, resolvedBy string, resolvedAt time.Time) error
	InsertTransfer(ctx context.Context, order TransferOrder) error
	GetTransferForUpdate(ctx context.Context, id string) (TransferOrder, error)
	UpdateTransferStatus(ctx context.Context, id string, from, to TransferStatus, actor string, at time.Time) error
}

type txRepository struct {
	tx pgx.Tx
}

const itemColumns = `id, product_id, product_name, sku, batch_id, location_id, quantity, unit_cost, price, roast_date, expiry_date, version, created_at, updated_at`
const adjustmentColumns = `id, item_id, item_name, sku, location_id, delta, reason, notes, value_impact, status, requested_by, resolved_by, resolved_at, created_at`
const transferColumns = `id, code, source_location_id, dest_location_id, status, total_value, notes, created_by, approved_by, completed_by, cancelled_by, created_at, approved_at, completed_at, cancelled_at`

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// ListItems returns inventory lots matching the filter.
func (r *Repository) ListItems(ctx context.Context, filter ItemFilter) ([]Item, int, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM inventory_items WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filter.LocationID != "" {
		argCount++
		clause := ` AND location_id = $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, filter.LocationID)
	}
	if filter.ProductID != "" {
		argCount++
		clause := ` AND product_id = $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, filter.ProductID)
	}
	if filter.Search != "" {
		argCount++
		clause := ` AND (product_name ILIKE $` + strconv.Itoa(argCount) + ` OR sku ILIKE $` + strconv.Itoa(argCount) + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.ExpiringInDay > 0 {
		argCount++
		clause := ` AND expiry_date IS NOT NULL AND expiry_date <= NOW() + ($` + strconv.Itoa(argCount) + ` * INTERVAL '1 day')`
		query += clause
		countQuery += clause
		args = append(args, filter.ExpiringInDay)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY product_name ASC, expiry_date ASC NULLS LAST`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, (page-1)*limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := scanItem(rows, &item); err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

// GetItem returns one inventory lot.
func (r *Repository) GetItem(ctx context.Context, id string) (Item, error) {
	var item Item
	err := scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = $1`, id), &item)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	return item, err
}

// ListAdjustments returns adjustments, optionally filtered by status.
func (r *Repository) ListAdjustments(ctx context.Context, status AdjustmentStatus, limit int) ([]Adjustment, error) {
	query := `SELECT ` + adjustmentColumns + ` FROM stock_adjustments`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var adjustments []Adjustment
	for rows.Next() {
		var adj Adjustment
		if err := scanAdjustment(rows, &adj); err != nil {
			return nil, err
		}
		adjustments = append(adjustments, adj)
	}
	return adjustments, rows.Err()
}

// CountPendingAdjustments returns the size of the approval backlog.
func (r *Repository) CountPendingAdjustments(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM stock_adjustments WHERE status = $1`, string(AdjustmentPending),
	).Scan(&count)
	return count, err
}

// ListTransfers returns transfer orders, optionally filtered by status.
func (r *Repository) ListTransfers(ctx context.Context, status TransferStatus, limit int) ([]TransferOrder, error) {
	query := `SELECT ` + transferColumns + ` FROM transfer_orders`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []TransferOrder
	ids := []string{}
	for rows.Next() {
		var order TransferOrder
		if err := scanTransfer(rows, &order); err != nil {
			return nil, err
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	lines, err := r.linesForTransfers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
	}
	return orders, nil
}

// GetTransfer returns one transfer order with lines.
func (r *Repository) GetTransfer(ctx context.Context, id string) (TransferOrder, error) {
	var order TransferOrder
	err := scanTransfer(r.pool.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfer_orders WHERE id = $1`, id), &order)
	if errors.Is(err, pgx.ErrNoRows) {
		return TransferOrder{}, ErrTransferNotFound
	}
	if err != nil {
		return TransferOrder{}, err
	}
	lines, err := r.linesForTransfers(ctx, []string{id})
	if err != nil {
		return TransferOrder{}, err
	}
	order.Lines = lines[id]
	return order, nil
}

func (r *Repository) linesForTransfers(ctx context.Context, ids []string) (map[string][]TransferLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, transfer_id, item_id, product_name, sku, quantity, unit_cost FROM transfer_lines WHERE transfer_id = ANY($1) ORDER BY product_name ASC`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]TransferLine, len(ids))
	for rows.Next() {
		var line TransferLine
		if err := rows.Scan(&line.ID, &line.TransferID, &line.ItemID, &line.ProductName, &line.SKU, &line.Quantity, &line.UnitCost); err != nil {
			return nil, err
		}
		out[line.TransferID] = append(out[line.TransferID], line)
	}
	return out, rows.Err()
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, id string) (Item, error) {
	var item Item
	err := scanItem(r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = $1 FOR UPDATE`, id), &item)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	return item, err
}

// FindItemAtLocationByName locks and returns the destination lot a
// transfer merges into. Matching is by product name at the location;
// when several lots match the oldest one receives the stock.
func (r *txRepository) FindItemAtLocationByName(ctx context.Context, locationID, productName string) (Item, error) {
	var item Item
	err := scanItem(r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE location_id = $1 AND product_name = $2 ORDER BY created_at ASC LIMIT 1 FOR UPDATE`, locationID, productName), &item)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	return item, err
}

func (r *txRepository) UpdateItemQuantity(ctx context.Context, id string, quantity int, version int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE inventory_items SET quantity = $1, version = version + 1, updated_at = NOW() WHERE id = $2 AND version = $3`, quantity, id, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *txRepository) InsertItem(ctx context.Context, params NewItemParams) (string, error) {
	var id string
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory_items (id, product_id, product_name, sku, batch_id, location_id, quantity, unit_cost, price, roast_date, expiry_date, version, created_at, updated_at)
VALUES (gen_random_uuid(), $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,0,NOW(),NOW()) RETURNING id`,
		params.ProductID, params.ProductName, params.SKU, nullString(params.BatchID), params.LocationID, params.Quantity, params.UnitCost, params.Price, nullTime(params.RoastDate), nullTime(params.ExpiryDate)).Scan(&id)
	return id, err
}

func (r *txRepository) InsertAdjustment(ctx context.Context, adj Adjustment) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_adjustments (id, item_id, item_name, sku, location_id, delta, reason, notes, value_impact, status, requested_by, resolved_by, resolved_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW())`,
		adj.ID, adj.ItemID, adj.ItemName, adj.SKU, adj.LocationID, adj.Delta, adj.Reason, adj.Notes, adj.ValueImpact, string(adj.Status), adj.RequestedBy, nullString(adj.ResolvedBy), nullTime(adj.ResolvedAt))
	return err
}

func (r *txRepository) GetAdjustmentForUpdate(ctx context.Context, id string) (Adjustment, error) {
	var adj Adjustment
	err := scanAdjustment(r.tx.QueryRow(ctx, `SELECT `+adjustmentColumns+` FROM stock_adjustments WHERE id = $1 FOR UPDATE`, id), &adj)
	if errors.Is(err, pgx.ErrNoRows) {
		return Adjustment{}, ErrAdjustmentNotFound
	}
	return adj, err
}

// MarkAdjustmentResolved flips a PENDING adjustment exactly once.
func (r *txRepository) MarkAdjustmentResolved(ctx context.Context, id string, status AdjustmentStatus, resolvedBy string, resolvedAt time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE stock_adjustments SET status = $1, resolved_by = $2, resolved_at = $3 WHERE id = $4 AND status = 'PENDING'`,
		string(status), resolvedBy, resolvedAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyResolved
	}
	return nil
}

func (r *txRepository) InsertTransfer(ctx context.Context, order TransferOrder) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO transfer_orders (id, code, source_location_id, dest_location_id, status, total_value, notes, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())`,
		order.ID, order.Code, order.SourceLocation, order.DestLocation, string(order.Status), order.TotalValue, order.Notes, order.CreatedBy)
	if err != nil {
		return err
	}
	for _, line := range order.Lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO transfer_lines (id, transfer_id, item_id, product_name, sku, quantity, unit_cost)
VALUES (gen_random_uuid(), $1,$2,$3,$4,$5,$6)`,
			order.ID, line.ItemID, line.ProductName, line.SKU, line.Quantity, line.UnitCost); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetTransferForUpdate(ctx context.Context, id string) (TransferOrder, error) {
	var order TransferOrder
	err := scanTransfer(r.tx.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfer_orders WHERE id = $1 FOR UPDATE`, id), &order)
	if errors.Is(err, pgx.ErrNoRows) {
		return TransferOrder{}, ErrTransferNotFound
	}
	if err != nil {
		return TransferOrder{}, err
	}

	rows, err := r.tx.Query(ctx, `SELECT id, transfer_id, item_id, product_name, sku, quantity, unit_cost FROM transfer_lines WHERE transfer_id = $1`, id)
	if err != nil {
		return TransferOrder{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line TransferLine
		if err := rows.Scan(&line.ID, &line.TransferID, &line.ItemID, &line.ProductName, &line.SKU, &line.Quantity, &line.UnitCost); err != nil {
			return TransferOrder{}, err
		}
		order.Lines = append(order.Lines, line)
	}
	return order, rows.Err()
}

// UpdateTransferStatus advances the order only from the expected state,
// so stale or duplicate transitions fail instead of applying twice.
func (r *txRepository) UpdateTransferStatus(ctx context.Context, id string, from, to TransferStatus, actor string, at time.Time) error {
	var query string
	switch to {
	case TransferApproved:
		query = `UPDATE transfer_orders SET status = $1, approved_by = $2, approved_at = $3 WHERE id = $4 AND status = $5`
	case TransferCompleted:
		query = `UPDATE transfer_orders SET status = $1, completed_by = $2, completed_at = $3 WHERE id = $4 AND status = $5`
	case TransferCancelled:
		query = `UPDATE transfer_orders SET status = $1, cancelled_by = $2, cancelled_at = $3 WHERE id = $4 AND status = $5`
	default:
		return ErrInvalidTransition
	}
	tag, err := r.tx.Exec(ctx, query, string(to), actor, at, id, string(from))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func scanItem(row pgx.Row, item *Item) error {
	var batchID sql.NullString
	var roastDate, expiryDate sql.NullTime
	if err := row.Scan(&item.ID, &item.ProductID, &item.ProductName, &item.SKU, &batchID, &item.LocationID, &item.Quantity, &item.UnitCost, &item.Price, &roastDate, &expiryDate, &item.Version, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return err
	}
	item.BatchID = batchID.String
	item.RoastDate = roastDate.Time
	item.ExpiryDate = expiryDate.Time
	return nil
}

func scanAdjustment(row pgx.Row, adj *Adjustment) error {
	var status string
	var resolvedBy sql.NullString
	var resolvedAt sql.NullTime
	if err := row.Scan(&adj.ID, &adj.ItemID, &adj.ItemName, &adj.SKU, &adj.LocationID, &adj.Delta, &adj.Reason, &adj.Notes, &adj.ValueImpact, &status, &adj.RequestedBy, &resolvedBy, &resolvedAt, &adj.CreatedAt); err != nil {
		return err
	}
	adj.Status = AdjustmentStatus(status)
	adj.ResolvedBy = resolvedBy.String
	adj.ResolvedAt = resolvedAt.Time
	return nil
}

func scanTransfer(row pgx.Row, order *TransferOrder) error {
	var status string
	var approvedBy, completedBy, cancelledBy sql.NullString
	var approvedAt, completedAt, cancelledAt sql.NullTime
	if err := row.Scan(&order.ID, &order.Code, &order.SourceLocation, &order.DestLocation, &status, &order.TotalValue, &order.Notes, &order.CreatedBy, &approvedBy, &completedBy, &cancelledBy, &order.CreatedAt, &approvedAt, &completedAt, &cancelledAt); err != nil {
		return err
	}
	order.Status = TransferStatus(status)
	order.ApprovedBy = approvedBy.String
	order.CompletedBy = completedBy.String
	order.CancelledBy = cancelledBy.String
	order.ApprovedAt = approvedAt.Time
	order.CompletedAt = completedAt.Time
	order.CancelledAt = cancelledAt.Time
	return nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value
}
