package pos

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doha-roastery/roastery/internal/inventory"
)

// Repository persists sales data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
// Checkout draws down inventory lots in the same transaction that
// writes the sale.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, id string) (inventory.Item, error)
	FindItemAtLocationByName(ctx context.Context, locationID, productName string) (inventory.Item, error)
	UpdateItemQuantity(ctx context.Context, id string, quantity int, version int64) error
	InsertSale(ctx context.Context, sale Sale) error
	GetSaleForUpdate(ctx context.Context, id string) (Sale, error)
	InsertReturn(ctx context.Context, ret Return) error
	GetReturnForUpdate(ctx context.Context, id string) (Return, error)
	SumReturnedQuantities(ctx context.Context, saleID string) (map[string]int, error)
	MarkReturnResolved(ctx context.Context, id string, status ReturnStatus, resolvedBy string, resolvedAt time.Time) error
	GetShiftForUpdate(ctx context.Context, id string) (Shift, error)
	AddShiftCashSales(ctx context.Context, id string, amount float64) error
	AddShiftCashRefunds(ctx context.Context, id string, amount float64) error
	InsertCashMovement(ctx context.Context, movement CashMovement) error
	SumCashMovements(ctx context.Context, shiftID string) (in float64, out float64, err error)
	CloseShift(ctx context.Context, shift Shift) error
}

type txRepository struct {
	tx pgx.Tx
}

const saleColumns = `id, invoice_no, location_id, shift_id, cashier, subtotal, tax_rate, tax_amount, total, payment_method, split_cash, split_card, split_mobile, card_reference, cash_received, change_due, created_at`
const returnColumns = `id, sale_id, invoice_no, type, reason, refund_total, status, requested_by, resolved_by, resolved_at, created_at`
const shiftColumns = `id, location_id, cashier, status, opening_float, cash_sales, cash_refunds, expected_cash, counted_cash, variance, opened_at, closed_at`

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("pos repository not initialised")
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

// ListSales returns sales matching the filter, lines included.
func (r *Repository) ListSales(ctx context.Context, filter SaleFilter) ([]Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filter.LocationID != "" {
		argCount++
		query += ` AND location_id = $` + strconv.Itoa(argCount)
		args = append(args, filter.LocationID)
	}
	if filter.ShiftID != "" {
		argCount++
		query += ` AND shift_id = $` + strconv.Itoa(argCount)
		args = append(args, filter.ShiftID)
	}
	if !filter.From.IsZero() {
		argCount++
		query += ` AND created_at >= $` + strconv.Itoa(argCount)
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		argCount++
		query += ` AND created_at < $` + strconv.Itoa(argCount)
		args = append(args, filter.To)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	argCount++
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(argCount)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []Sale
	ids := []string{}
	for rows.Next() {
		var sale Sale
		if err := scanSale(rows, &sale); err != nil {
			return nil, err
		}
		sales = append(sales, sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return sales, nil
	}

	lines, err := r.linesForSales(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Lines = lines[sales[i].ID]
	}
	return sales, nil
}

// GetSale returns one sale with lines.
func (r *Repository) GetSale(ctx context.Context, id string) (Sale, error) {
	var sale Sale
	err := scanSale(r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id), &sale)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrSaleNotFound
	}
	if err != nil {
		return Sale{}, err
	}
	lines, err := r.linesForSales(ctx, []string{id})
	if err != nil {
		return Sale{}, err
	}
	sale.Lines = lines[id]
	return sale, nil
}

// ListReturns returns sales returns, optionally filtered by status.
func (r *Repository) ListReturns(ctx context.Context, status ReturnStatus, limit int) ([]Return, error) {
	query := `SELECT ` + returnColumns + ` FROM sale_returns`
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

	var returns []Return
	for rows.Next() {
		var ret Return
		if err := scanReturn(rows, &ret); err != nil {
			return nil, err
		}
		returns = append(returns, ret)
	}
	return returns, rows.Err()
}

// GetOpenShift returns the cashier's open shift at a location, if any.
func (r *Repository) GetOpenShift(ctx context.Context, locationID, cashier string) (Shift, error) {
	var shift Shift
	err := scanShift(r.pool.QueryRow(ctx, `SELECT `+shiftColumns+` FROM register_shifts WHERE location_id = $1 AND cashier = $2 AND status = 'OPEN'`, locationID, cashier), &shift)
	if errors.Is(err, pgx.ErrNoRows) {
		return Shift{}, ErrShiftNotFound
	}
	return shift, err
}

// InsertShift opens a shift.
func (r *Repository) InsertShift(ctx context.Context, shift Shift) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO register_shifts (id, location_id, cashier, status, opening_float, cash_sales, cash_refunds, expected_cash, counted_cash, variance, opened_at)
VALUES ($1,$2,$3,$4,$5,0,0,0,0,0,$6)`,
		shift.ID, shift.LocationID, shift.Cashier, string(shift.Status), shift.OpeningFloat, shift.OpenedAt)
	return err
}

// ListCashMovements returns a shift's drawer movements, oldest first.
func (r *Repository) ListCashMovements(ctx context.Context, shiftID string) ([]CashMovement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, shift_id, direction, amount, reason, created_by, created_at FROM shift_cash_movements WHERE shift_id = $1 ORDER BY created_at ASC`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []CashMovement
	for rows.Next() {
		var m CashMovement
		var direction string
		if err := rows.Scan(&m.ID, &m.ShiftID, &direction, &m.Amount, &m.Reason, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Direction = MovementDirection(direction)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// InsertReprint logs a duplicate receipt.
func (r *Repository) InsertReprint(ctx context.Context, entry ReprintEntry) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO receipt_reprints (id, sale_id, invoice_no, printed_by, reason, created_at)
VALUES ($1,$2,$3,$4,$5,$6)`,
		entry.ID, entry.SaleID, entry.InvoiceNo, entry.PrintedBy, entry.Reason, entry.CreatedAt)
	return err
}

// ListReprints returns the reprint log for a sale.
func (r *Repository) ListReprints(ctx context.Context, saleID string) ([]ReprintEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, sale_id, invoice_no, printed_by, reason, created_at FROM receipt_reprints WHERE sale_id = $1 ORDER BY created_at ASC`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ReprintEntry
	for rows.Next() {
		var entry ReprintEntry
		if err := rows.Scan(&entry.ID, &entry.SaleID, &entry.InvoiceNo, &entry.PrintedBy, &entry.Reason, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *Repository) linesForSales(ctx context.Context, ids []string) (map[string][]SaleLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, sale_id, item_id, product_id, product_name, sku, quantity, unit_price, line_total FROM sale_lines WHERE sale_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]SaleLine, len(ids))
	for rows.Next() {
		var line SaleLine
		var itemID, sku sql.NullString
		if err := rows.Scan(&line.ID, &line.SaleID, &itemID, &line.ProductID, &line.ProductName, &sku, &line.Quantity, &line.UnitPrice, &line.LineTotal); err != nil {
			return nil, err
		}
		line.ItemID = itemID.String
		line.SKU = sku.String
		out[line.SaleID] = append(out[line.SaleID], line)
	}
	return out, rows.Err()
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, id string) (inventory.Item, error) {
	var item inventory.Item
	var batchID sql.NullString
	var roastDate, expiryDate sql.NullTime
	err := r.tx.QueryRow(ctx, `SELECT id, product_id, product_name, sku, batch_id, location_id, quantity, unit_cost, price, roast_date, expiry_date, version, created_at, updated_at
FROM inventory_items WHERE id = $1 FOR UPDATE`, id).
		Scan(&item.ID, &item.ProductID, &item.ProductName, &item.SKU, &batchID, &item.LocationID, &item.Quantity, &item.UnitCost, &item.Price, &roastDate, &expiryDate, &item.Version, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return inventory.Item{}, inventory.ErrItemNotFound
	}
	if err != nil {
		return inventory.Item{}, err
	}
	item.BatchID = batchID.String
	item.RoastDate = roastDate.Time
	item.ExpiryDate = expiryDate.Time
	return item, nil
}

// FindItemAtLocationByName locks the lot a recipe ingredient draws
// from. Matching is by product name at the location; when several lots
// match the oldest one is drawn down first.
func (r *txRepository) FindItemAtLocationByName(ctx context.Context, locationID, productName string) (inventory.Item, error) {
	var item inventory.Item
	var batchID sql.NullString
	var roastDate, expiryDate sql.NullTime
	err := r.tx.QueryRow(ctx, `SELECT id, product_id, product_name, sku, batch_id, location_id, quantity, unit_cost, price, roast_date, expiry_date, version, created_at, updated_at
FROM inventory_items WHERE location_id = $1 AND product_name = $2 ORDER BY created_at ASC LIMIT 1 FOR UPDATE`, locationID, productName).
		Scan(&item.ID, &item.ProductID, &item.ProductName, &item.SKU, &batchID, &item.LocationID, &item.Quantity, &item.UnitCost, &item.Price, &roastDate, &expiryDate, &item.Version, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return inventory.Item{}, inventory.ErrItemNotFound
	}
	if err != nil {
		return inventory.Item{}, err
	}
	item.BatchID = batchID.String
	item.RoastDate = roastDate.Time
	item.ExpiryDate = expiryDate.Time
	return item, nil
}

func (r *txRepository) UpdateItemQuantity(ctx context.Context, id string, quantity int, version int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE inventory_items SET quantity = $1, version = version + 1, updated_at = NOW() WHERE id = $2 AND version = $3`, quantity, id, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return inventory.ErrItemNotFound
	}
	return nil
}

func (r *txRepository) InsertSale(ctx context.Context, sale Sale) error {
	var splitCash, splitCard, splitMobile any
	if sale.Breakdown != nil {
		splitCash, splitCard, splitMobile = sale.Breakdown.Cash, sale.Breakdown.Card, sale.Breakdown.Mobile
	}
	_, err := r.tx.Exec(ctx, `INSERT INTO sales (id, invoice_no, location_id, shift_id, cashier, subtotal, tax_rate, tax_amount, total, payment_method, split_cash, split_card, split_mobile, card_reference, cash_received, change_due, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		sale.ID, sale.InvoiceNo, sale.LocationID, nullString(sale.ShiftID), sale.Cashier, sale.Subtotal, sale.TaxRate, sale.TaxAmount, sale.Total, string(sale.PaymentMethod), splitCash, splitCard, splitMobile, nullString(sale.CardReference), sale.CashReceived, sale.ChangeDue, sale.CreatedAt)
	if err != nil {
		return err
	}
	for _, line := range sale.Lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO sale_lines (id, sale_id, item_id, product_id, product_name, sku, quantity, unit_price, line_total)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			line.ID, sale.ID, nullString(line.ItemID), line.ProductID, line.ProductName, nullString(line.SKU), line.Quantity, line.UnitPrice, line.LineTotal); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetSaleForUpdate(ctx context.Context, id string) (Sale, error) {
	var sale Sale
	err := scanSale(r.tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id), &sale)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrSaleNotFound
	}
	if err != nil {
		return Sale{}, err
	}

	rows, err := r.tx.Query(ctx, `SELECT id, sale_id, item_id, product_id, product_name, sku, quantity, unit_price, line_total FROM sale_lines WHERE sale_id = $1`, id)
	if err != nil {
		return Sale{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line SaleLine
		var itemID, sku sql.NullString
		if err := rows.Scan(&line.ID, &line.SaleID, &itemID, &line.ProductID, &line.ProductName, &sku, &line.Quantity, &line.UnitPrice, &line.LineTotal); err != nil {
			return Sale{}, err
		}
		line.ItemID = itemID.String
		line.SKU = sku.String
		sale.Lines = append(sale.Lines, line)
	}
	return sale, rows.Err()
}

func (r *txRepository) InsertReturn(ctx context.Context, ret Return) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO sale_returns (id, sale_id, invoice_no, type, reason, refund_total, status, requested_by, resolved_by, resolved_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		ret.ID, ret.SaleID, ret.InvoiceNo, string(ret.Type), ret.Reason, ret.RefundTotal, string(ret.Status), ret.RequestedBy, nullString(ret.ResolvedBy), nullTime(ret.ResolvedAt), ret.CreatedAt)
	if err != nil {
		return err
	}
	for _, line := range ret.Lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO sale_return_lines (id, return_id, sale_line_id, item_id, quantity, amount)
VALUES ($1,$2,$3,$4,$5,$6)`,
			line.ID, ret.ID, line.SaleLineID, nullString(line.ItemID), line.Quantity, line.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetReturnForUpdate(ctx context.Context, id string) (Return, error) {
	var ret Return
	err := scanReturn(r.tx.QueryRow(ctx, `SELECT `+returnColumns+` FROM sale_returns WHERE id = $1 FOR UPDATE`, id), &ret)
	if errors.Is(err, pgx.ErrNoRows) {
		return Return{}, ErrReturnNotFound
	}
	if err != nil {
		return Return{}, err
	}

	rows, err := r.tx.Query(ctx, `SELECT id, return_id, sale_line_id, item_id, quantity, amount FROM sale_return_lines WHERE return_id = $1`, id)
	if err != nil {
		return Return{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line ReturnLine
		var itemID sql.NullString
		if err := rows.Scan(&line.ID, &line.ReturnID, &line.SaleLineID, &itemID, &line.Quantity, &line.Amount); err != nil {
			return Return{}, err
		}
		line.ItemID = itemID.String
		ret.Lines = append(ret.Lines, line)
	}
	return ret, rows.Err()
}

// SumReturnedQuantities totals non-rejected returned quantities per
// sale line, so repeated returns cannot exceed what was sold.
func (r *txRepository) SumReturnedQuantities(ctx context.Context, saleID string) (map[string]int, error) {
	rows, err := r.tx.Query(ctx, `SELECT l.sale_line_id, COALESCE(SUM(l.quantity), 0)
FROM sale_return_lines l
JOIN sale_returns r ON r.id = l.return_id
WHERE r.sale_id = $1 AND r.status <> 'REJECTED'
GROUP BY l.sale_line_id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var lineID string
		var qty int
		if err := rows.Scan(&lineID, &qty); err != nil {
			return nil, err
		}
		out[lineID] = qty
	}
	return out, rows.Err()
}

// MarkReturnResolved flips a pending return exactly once.
func (r *txRepository) MarkReturnResolved(ctx context.Context, id string, status ReturnStatus, resolvedBy string, resolvedAt time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE sale_returns SET status = $1, resolved_by = $2, resolved_at = $3 WHERE id = $4 AND status = 'PENDING_APPROVAL'`,
		string(status), resolvedBy, resolvedAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyResolved
	}
	return nil
}

func (r *txRepository) GetShiftForUpdate(ctx context.Context, id string) (Shift, error) {
	var shift Shift
	err := scanShift(r.tx.QueryRow(ctx, `SELECT `+shiftColumns+` FROM register_shifts WHERE id = $1 FOR UPDATE`, id), &shift)
	if errors.Is(err, pgx.ErrNoRows) {
		return Shift{}, ErrShiftNotFound
	}
	return shift, err
}

func (r *txRepository) AddShiftCashSales(ctx context.Context, id string, amount float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE register_shifts SET cash_sales = cash_sales + $1 WHERE id = $2 AND status = 'OPEN'`, amount, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrShiftClosed
	}
	return nil
}

func (r *txRepository) AddShiftCashRefunds(ctx context.Context, id string, amount float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE register_shifts SET cash_refunds = cash_refunds + $1 WHERE id = $2 AND status = 'OPEN'`, amount, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrShiftClosed
	}
	return nil
}

func (r *txRepository) InsertCashMovement(ctx context.Context, movement CashMovement) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO shift_cash_movements (id, shift_id, direction, amount, reason, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		movement.ID, movement.ShiftID, string(movement.Direction), movement.Amount, movement.Reason, movement.CreatedBy, movement.CreatedAt)
	return err
}

func (r *txRepository) SumCashMovements(ctx context.Context, shiftID string) (float64, float64, error) {
	var in, out float64
	err := r.tx.QueryRow(ctx, `SELECT
    COALESCE(SUM(amount) FILTER (WHERE direction = 'IN'), 0),
    COALESCE(SUM(amount) FILTER (WHERE direction = 'OUT'), 0)
FROM shift_cash_movements WHERE shift_id = $1`, shiftID).Scan(&in, &out)
	return in, out, err
}

func (r *txRepository) CloseShift(ctx context.Context, shift Shift) error {
	tag, err := r.tx.Exec(ctx, `UPDATE register_shifts SET status = 'CLOSED', expected_cash = $1, counted_cash = $2, variance = $3, closed_at = $4 WHERE id = $5 AND status = 'OPEN'`,
		shift.ExpectedCash, shift.CountedCash, shift.Variance, shift.ClosedAt, shift.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrShiftClosed
	}
	return nil
}

func scanSale(row pgx.Row, sale *Sale) error {
	var shiftID, cardRef sql.NullString
	var method string
	var splitCash, splitCard, splitMobile sql.NullFloat64
	if err := row.Scan(&sale.ID, &sale.InvoiceNo, &sale.LocationID, &shiftID, &sale.Cashier, &sale.Subtotal, &sale.TaxRate, &sale.TaxAmount, &sale.Total, &method, &splitCash, &splitCard, &splitMobile, &cardRef, &sale.CashReceived, &sale.ChangeDue, &sale.CreatedAt); err != nil {
		return err
	}
	sale.ShiftID = shiftID.String
	sale.CardReference = cardRef.String
	sale.PaymentMethod = PaymentMethod(method)
	if sale.PaymentMethod == PaymentSplit {
		sale.Breakdown = &PaymentBreakdown{
			Cash:          splitCash.Float64,
			Card:          splitCard.Float64,
			Mobile:        splitMobile.Float64,
			CardReference: cardRef.String,
		}
	}
	return nil
}

func scanReturn(row pgx.Row, ret *Return) error {
	var status, retType string
	var resolvedBy sql.NullString
	var resolvedAt sql.NullTime
	if err := row.Scan(&ret.ID, &ret.SaleID, &ret.InvoiceNo, &retType, &ret.Reason, &ret.RefundTotal, &status, &ret.RequestedBy, &resolvedBy, &resolvedAt, &ret.CreatedAt); err != nil {
		return err
	}
	ret.Type = ReturnType(retType)
	ret.Status = ReturnStatus(status)
	ret.ResolvedBy = resolvedBy.String
	ret.ResolvedAt = resolvedAt.Time
	return nil
}

func scanShift(row pgx.Row, shift *Shift) error {
	var status string
	var closedAt sql.NullTime
	if err := row.Scan(&shift.ID, &shift.LocationID, &shift.Cashier, &status, &shift.OpeningFloat, &shift.CashSales, &shift.CashRefunds, &shift.ExpectedCash, &shift.CountedCash, &shift.Variance, &shift.OpenedAt, &closedAt); err != nil {
		return err
	}
	shift.Status = ShiftStatus(status)
	shift.ClosedAt = closedAt.Time
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
