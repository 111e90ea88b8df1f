package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/doha-roastery/roastery/internal/jobs"
)

const allocationEpsilonKg = 0.001

// AllocationReconcileJob cross-checks packaged units against roasted
// output. Allocations hold the invariant transactionally; this job
// catches drift from manual database edits or bugs before it shows up
// as phantom stock.
type AllocationReconcileJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAllocationReconcileJob initialises the reconcile handler.
func NewAllocationReconcileJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *AllocationReconcileJob {
	return &AllocationReconcileJob{Pool: pool, Logger: logger, Metrics: metrics}
}

type allocationFinding struct {
	batchCode   string
	postKg      float64
	allocatedKg float64
	orphanLots  int
}

// Handle executes the reconciliation.
func (j *AllocationReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("reconcile: handler not configured")
	}
	var payload AllocationReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskAllocationReconcile)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	logger := j.logger()
	logger.Info("starting allocation reconciliation")

	overweight, err := j.findOverAllocated(ctx)
	if err != nil {
		resultErr = err
		logger.Error("over-allocation scan failed", slog.Any("error", err))
		return resultErr
	}
	for _, f := range overweight {
		logger.Warn("batch allocated beyond roasted output",
			slog.String("batch_code", f.batchCode),
			slog.Float64("post_weight_kg", f.postKg),
			slog.Float64("allocated_kg", f.allocatedKg),
		)
	}
	j.metrics().AddMismatches("over_allocated", len(overweight))

	orphans, err := j.countOrphanLots(ctx)
	if err != nil {
		resultErr = err
		logger.Error("orphan lot scan failed", slog.Any("error", err))
		return resultErr
	}
	if orphans > 0 {
		logger.Warn("inventory lots reference unknown batches", slog.Int("count", orphans))
	}
	j.metrics().AddMismatches("orphan_lot", orphans)

	repaired, err := j.repairMissingLots(ctx)
	if err != nil {
		resultErr = err
		logger.Error("missing lot repair failed", slog.Any("error", err))
		return resultErr
	}
	if repaired > 0 {
		logger.Warn("re-inserted inventory lots for unmatched packaging units", slog.Int("count", repaired))
	}
	j.metrics().AddMismatches("missing_lot", repaired)

	logger.Info("completed allocation reconciliation",
		slog.Int("over_allocated", len(overweight)),
		slog.Int("orphan_lots", orphans),
		slog.Int("repaired_lots", repaired),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *AllocationReconcileJob) findOverAllocated(ctx context.Context) ([]allocationFinding, error) {
	rows, err := j.Pool.Query(ctx, `SELECT b.code, b.post_weight_kg, SUM(u.quantity * t.weight_kg)
FROM roast_batches b
JOIN roast_batch_units u ON u.batch_id = b.id
JOIN packaging_templates t ON t.id = u.template_id
WHERE b.status = 'COMPLETED'
GROUP BY b.code, b.post_weight_kg
HAVING SUM(u.quantity * t.weight_kg) > b.post_weight_kg + $1`, allocationEpsilonKg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []allocationFinding
	for rows.Next() {
		var f allocationFinding
		if err := rows.Scan(&f.batchCode, &f.postKg, &f.allocatedKg); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (j *AllocationReconcileJob) countOrphanLots(ctx context.Context) (int, error) {
	var count int
	err := j.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_items i
WHERE i.batch_id IS NOT NULL
  AND NOT EXISTS (SELECT 1 FROM roast_batches b WHERE b.id = i.batch_id)`).Scan(&count)
	return count, err
}

// repairMissingLots re-creates the inventory row for any packaging unit
// whose allocation wrote the unit but not the lot. The insert rebuilds
// the lot from the unit, its batch, product and template, the same
// fields the allocation itself would have written.
func (j *AllocationReconcileJob) repairMissingLots(ctx context.Context) (int, error) {
	tag, err := j.Pool.Exec(ctx, `INSERT INTO inventory_items (id, product_id, product_name, sku, batch_id, location_id, quantity, unit_cost, price, roast_date, expiry_date, version, created_at, updated_at)
SELECT gen_random_uuid()::text, p.id, p.name, u.sku, u.batch_id, u.location_id, u.quantity,
       b.cost_per_kg * t.weight_kg + t.unit_cost, p.base_price, b.roast_date, u.expiry_date, 1, NOW(), NOW()
FROM roast_batch_units u
JOIN roast_batches b ON b.id = u.batch_id
JOIN products p ON p.id = u.product_id
JOIN packaging_templates t ON t.id = u.template_id
WHERE u.location_id <> ''
  AND NOT EXISTS (
    SELECT 1 FROM inventory_items i WHERE i.batch_id = u.batch_id AND i.sku = u.sku
  )`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (j *AllocationReconcileJob) metrics() *jobmetrics.Metrics {
	if j == nil {
		return nil
	}
	return j.Metrics
}

func (j *AllocationReconcileJob) logger() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
