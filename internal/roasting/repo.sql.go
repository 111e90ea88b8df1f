package roasting

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doha-roastery/roastery/internal/inventory"
	"github.com/doha-roastery/roastery/internal/masterdata/beans"
)

// Repository persists roast batches in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
// Allocation writes units, history and inventory lots through the same
// transaction that holds the batch row lock.
type TxRepository interface {
	GetBatchForUpdate(ctx context.Context, id string) (Batch, error)
	GetBeanForUpdate(ctx context.Context, beanID string) (beans.Bean, error)
	UpdateBeanStock(ctx context.Context, beanID string, stockKg float64) error
	InsertBatch(ctx context.Context, batch Batch) error
	FinishBatch(ctx context.Context, id string, postKg, wastePct float64, version int64) error
	BumpVersion(ctx context.Context, id string, version int64) error
	InsertUnits(ctx context.Context, units []PackagingUnit) error
	InsertHistory(ctx context.Context, batchID string, entry HistoryEntry) error
	InsertInventoryItems(ctx context.Context, items []inventory.NewItemParams) error
}

type txRepository struct {
	tx pgx.Tx
}

const batchColumns = `id, code, bean_id, roast_date, level, pre_weight_kg, post_weight_kg, waste_pct, status, operator, notes, cost_per_kg, version, created_at`

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("roasting repository not initialised")
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

// List returns batches matching the filter, units included. Soft
// deleted batches never show up.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM roast_batches WHERE status <> 'DELETED'`
	args := []interface{}{}
	argCount := 0

	if filter.Search != "" {
		argCount++
		query += ` AND (code ILIKE $` + strconv.Itoa(argCount) + ` OR operator ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Level != "" {
		argCount++
		query += ` AND level = $` + strconv.Itoa(argCount)
		args = append(args, string(filter.Level))
	}

	query += ` ORDER BY roast_date DESC, created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []Batch
	ids := []string{}
	for rows.Next() {
		var b Batch
		if err := scanBatch(rows, &b); err != nil {
			return nil, err
		}
		batches = append(batches, b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return batches, nil
	}

	units, err := r.unitsForBatches(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range batches {
		batches[i].Units = units[batches[i].ID]
	}
	return batches, nil
}

// Get returns one batch with its units and history.
func (r *Repository) Get(ctx context.Context, id string) (Batch, error) {
	var b Batch
	err := scanBatch(r.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM roast_batches WHERE id = $1 AND status <> 'DELETED'`, id), &b)
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, ErrBatchNotFound
	}
	if err != nil {
		return Batch{}, err
	}

	units, err := r.unitsForBatches(ctx, []string{id})
	if err != nil {
		return Batch{}, err
	}
	b.Units = units[id]

	rows, err := r.pool.Query(ctx, `SELECT occurred_at, action, operator, details FROM roast_batch_history WHERE batch_id = $1 ORDER BY occurred_at ASC, id ASC`, id)
	if err != nil {
		return Batch{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var entry HistoryEntry
		if err := rows.Scan(&entry.Timestamp, &entry.Action, &entry.Operator, &entry.Details); err != nil {
			return Batch{}, err
		}
		b.History = append(b.History, entry)
	}
	return b, rows.Err()
}

// SoftDelete marks a batch DELETED so it drops out of listings.
func (r *Repository) SoftDelete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE roast_batches SET status = 'DELETED', version = version + 1 WHERE id = $1 AND status <> 'DELETED'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchNotFound
	}
	return nil
}

func (r *Repository) unitsForBatches(ctx context.Context, ids []string) (map[string][]PackagingUnit, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, batch_id, template_id, product_id, location_id, size_label, quantity, operator, production_date, packaging_date, expiry_date, packaging_cost_total, sku, created_at
FROM roast_batch_units WHERE batch_id = ANY($1) ORDER BY created_at ASC`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]PackagingUnit, len(ids))
	for rows.Next() {
		var u PackagingUnit
		if err := rows.Scan(&u.ID, &u.BatchID, &u.TemplateID, &u.ProductID, &u.LocationID, &u.SizeLabel, &u.Quantity, &u.Operator, &u.ProductionDate, &u.PackagingDate, &u.ExpiryDate, &u.PackagingCostTotal, &u.SKU, &u.CreatedAt); err != nil {
			return nil, err
		}
		out[u.BatchID] = append(out[u.BatchID], u)
	}
	return out, rows.Err()
}

func (r *txRepository) GetBatchForUpdate(ctx context.Context, id string) (Batch, error) {
	var b Batch
	err := scanBatch(r.tx.QueryRow(ctx, `SELECT `+batchColumns+` FROM roast_batches WHERE id = $1 AND status <> 'DELETED' FOR UPDATE`, id), &b)
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, ErrBatchNotFound
	}
	if err != nil {
		return Batch{}, err
	}

	rows, err := r.tx.Query(ctx, `SELECT id, batch_id, template_id, product_id, location_id, size_label, quantity, operator, production_date, packaging_date, expiry_date, packaging_cost_total, sku, created_at
FROM roast_batch_units WHERE batch_id = $1 ORDER BY created_at ASC`, id)
	if err != nil {
		return Batch{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var u PackagingUnit
		if err := rows.Scan(&u.ID, &u.BatchID, &u.TemplateID, &u.ProductID, &u.LocationID, &u.SizeLabel, &u.Quantity, &u.Operator, &u.ProductionDate, &u.PackagingDate, &u.ExpiryDate, &u.PackagingCostTotal, &u.SKU, &u.CreatedAt); err != nil {
			return Batch{}, err
		}
		b.Units = append(b.Units, u)
	}
	return b, rows.Err()
}

func (r *txRepository) GetBeanForUpdate(ctx context.Context, beanID string) (beans.Bean, error) {
	var b beans.Bean
	err := r.tx.QueryRow(ctx, `SELECT id, name, origin, process, stock_kg, cost_per_kg, is_active, created_at, updated_at FROM beans WHERE id = $1 FOR UPDATE`, beanID).
		Scan(&b.ID, &b.Name, &b.Origin, &b.Process, &b.StockKg, &b.CostPerKg, &b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return beans.Bean{}, ErrBeanNotFound
	}
	return b, err
}

func (r *txRepository) UpdateBeanStock(ctx context.Context, beanID string, stockKg float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE beans SET stock_kg = $1, updated_at = NOW() WHERE id = $2`, stockKg, beanID)
	return err
}

func (r *txRepository) InsertBatch(ctx context.Context, batch Batch) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO roast_batches (id, code, bean_id, roast_date, level, pre_weight_kg, post_weight_kg, waste_pct, status, operator, notes, cost_per_kg, version, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW())`,
		batch.ID, batch.Code, batch.BeanID, batch.RoastDate, string(batch.Level), batch.PreWeightKg, batch.PostWeightKg, batch.WastePct, string(batch.Status), batch.Operator, batch.Notes, batch.CostPerKg, batch.Version)
	return err
}

// FinishBatch records the post-roast weight and waste and moves the
// batch to COMPLETED. The version predicate rejects concurrent writers.
func (r *txRepository) FinishBatch(ctx context.Context, id string, postKg, wastePct float64, version int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE roast_batches SET post_weight_kg = $1, waste_pct = $2, status = 'COMPLETED', version = version + 1
WHERE id = $3 AND version = $4 AND status = 'IN_PROGRESS'`, postKg, wastePct, id, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

// BumpVersion advances the batch version as part of an allocation so
// an interleaved writer since the read is detected.
func (r *txRepository) BumpVersion(ctx context.Context, id string, version int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE roast_batches SET version = version + 1 WHERE id = $1 AND version = $2`, id, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *txRepository) InsertUnits(ctx context.Context, units []PackagingUnit) error {
	for _, u := range units {
		if _, err := r.tx.Exec(ctx, `INSERT INTO roast_batch_units (id, batch_id, template_id, product_id, location_id, size_label, quantity, operator, production_date, packaging_date, expiry_date, packaging_cost_total, sku, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW())`,
			u.ID, u.BatchID, u.TemplateID, u.ProductID, u.LocationID, u.SizeLabel, u.Quantity, u.Operator, u.ProductionDate, u.PackagingDate, u.ExpiryDate, u.PackagingCostTotal, u.SKU); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) InsertHistory(ctx context.Context, batchID string, entry HistoryEntry) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO roast_batch_history (batch_id, occurred_at, action, operator, details) VALUES ($1,$2,$3,$4,$5)`,
		batchID, entry.Timestamp, entry.Action, entry.Operator, entry.Details)
	return err
}

func (r *txRepository) InsertInventoryItems(ctx context.Context, items []inventory.NewItemParams) error {
	for _, item := range items {
		if _, err := r.tx.Exec(ctx, `INSERT INTO inventory_items (id, product_id, product_name, sku, batch_id, location_id, quantity, unit_cost, price, roast_date, expiry_date, version, created_at, updated_at)
VALUES (gen_random_uuid(), $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,0,NOW(),NOW())`,
			item.ProductID, item.ProductName, item.SKU, item.BatchID, item.LocationID, item.Quantity, item.UnitCost, item.Price, nullTime(item.RoastDate), item.ExpiryDate); err != nil {
			return err
		}
	}
	return nil
}

func scanBatch(row pgx.Row, b *Batch) error {
	var level, status string
	if err := row.Scan(&b.ID, &b.Code, &b.BeanID, &b.RoastDate, &level, &b.PreWeightKg, &b.PostWeightKg, &b.WastePct, &status, &b.Operator, &b.Notes, &b.CostPerKg, &b.Version, &b.CreatedAt); err != nil {
		return err
	}
	b.Level = Level(level)
	b.Status = Status(status)
	return nil
}

func nullTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value
}
