package roasting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doha-roastery/roastery/internal/masterdata/products"
	"github.com/doha-roastery/roastery/internal/masterdata/templates"
	"github.com/doha-roastery/roastery/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filter ListFilter) ([]Batch, error)
	Get(ctx context.Context, id string) (Batch, error)
	SoftDelete(ctx context.Context, id string) error
}

// CatalogPort resolves products and packaging templates for allocation.
type CatalogPort interface {
	Products(ctx context.Context, ids []string) (map[string]products.Product, error)
	Templates(ctx context.Context, ids []string) (map[string]templates.Template, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort records production throughput.
type MetricsPort interface {
	RecordBatchFinished()
	RecordUnitsPackaged(count int)
}

// ReportCachePort expires cached reports after production writes.
type ReportCachePort interface {
	Invalidate(ctx context.Context) error
}

// LockPort abstracts the advisory allocation mutex.
type LockPort interface {
	Acquire(ctx context.Context, key string) error
	Release(ctx context.Context, key string)
}

// Service coordinates the roast batch lifecycle.
type Service struct {
	repo        RepositoryPort
	catalog     CatalogPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	locks       LockPort
	metrics     MetricsPort
	reports     ReportCachePort
	now         func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, catalog CatalogPort, audit AuditPort, idem *shared.IdempotencyStore, locks LockPort, metrics MetricsPort, reportCache ReportCachePort) *Service {
	return &Service{repo: repo, catalog: catalog, audit: audit, idempotency: idem, locks: locks, metrics: metrics, reports: reportCache, now: time.Now}
}

// StartBatchInput captures a new roast run.
type StartBatchInput struct {
	BeanID      string
	RoastDate   time.Time
	Level       Level
	PreWeightKg float64
	Operator    string
	Notes       string
}

// StartBatch opens a roast: it reserves green beans from the lot and
// records the batch as IN_PROGRESS. The bean row is locked so two
// concurrent starts cannot both draw from the same remaining stock.
func (s *Service) StartBatch(ctx context.Context, input StartBatchInput) (Batch, error) {
	if strings.TrimSpace(input.BeanID) == "" {
		return Batch{}, fmt.Errorf("%w: bean is required", ErrValidation)
	}
	if input.PreWeightKg <= 0 {
		return Batch{}, fmt.Errorf("%w: pre-roast weight must be positive", ErrValidation)
	}
	switch input.Level {
	case LevelLight, LevelMedium, LevelDark:
	default:
		return Batch{}, fmt.Errorf("%w: unknown roast level %q", ErrValidation, input.Level)
	}
	roastDate := input.RoastDate
	if roastDate.IsZero() {
		roastDate = s.now()
	}

	batch := Batch{
		ID:          uuid.NewString(),
		Code:        NewBatchCode(s.now()),
		BeanID:      input.BeanID,
		RoastDate:   roastDate,
		Level:       input.Level,
		PreWeightKg: input.PreWeightKg,
		Status:      StatusInProgress,
		Operator:    input.Operator,
		Notes:       input.Notes,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bean, err := tx.GetBeanForUpdate(ctx, input.BeanID)
		if err != nil {
			return err
		}
		if !bean.IsActive {
			return fmt.Errorf("%w: bean lot %s is inactive", ErrValidation, bean.Name)
		}
		if bean.StockKg < input.PreWeightKg {
			return fmt.Errorf("%w: need %.3f kg, lot %s holds %.3f kg",
				ErrInsufficientStock, input.PreWeightKg, bean.Name, bean.StockKg)
		}
		batch.CostPerKg = bean.CostPerKg
		if err := tx.UpdateBeanStock(ctx, bean.ID, bean.StockKg-input.PreWeightKg); err != nil {
			return err
		}
		if err := tx.InsertBatch(ctx, batch); err != nil {
			return err
		}
		return tx.InsertHistory(ctx, batch.ID, HistoryEntry{
			Timestamp: s.now(),
			Action:    ActionCreate,
			Operator:  input.Operator,
			Details:   fmt.Sprintf("Started %s roast of %.3f kg", batch.Level, batch.PreWeightKg),
		})
	})
	if err != nil {
		return Batch{}, err
	}

	s.recordAudit(ctx, input.Operator, "roasting.batch.start", batch.ID, map[string]any{
		"code":          batch.Code,
		"bean_id":       batch.BeanID,
		"pre_weight_kg": batch.PreWeightKg,
	})
	return batch, nil
}

// FinishBatchInput closes a roast with the measured output weight.
type FinishBatchInput struct {
	BatchID      string
	PostWeightKg float64
	Operator     string
}

// FinishBatch records the post-roast weight, computes waste once and
// moves the batch to COMPLETED. Finishing an already completed batch
// is rejected; waste is never recomputed.
func (s *Service) FinishBatch(ctx context.Context, input FinishBatchInput) (Batch, error) {
	if input.PostWeightKg <= 0 {
		return Batch{}, fmt.Errorf("%w: post-roast weight must be positive", ErrValidation)
	}

	var finished Batch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		batch, err := tx.GetBatchForUpdate(ctx, input.BatchID)
		if err != nil {
			return err
		}
		if batch.Status != StatusInProgress {
			return fmt.Errorf("%w: batch %s is already %s", ErrInvalidTransition, batch.Code, batch.Status)
		}
		if input.PostWeightKg > batch.PreWeightKg {
			return fmt.Errorf("%w: post-roast weight %.3f kg exceeds charge weight %.3f kg",
				ErrValidation, input.PostWeightKg, batch.PreWeightKg)
		}
		waste := RoundWaste(batch.PreWeightKg, input.PostWeightKg)
		if err := tx.FinishBatch(ctx, batch.ID, input.PostWeightKg, waste, batch.Version); err != nil {
			return err
		}
		if err := tx.InsertHistory(ctx, batch.ID, HistoryEntry{
			Timestamp: s.now(),
			Action:    ActionFinish,
			Operator:  input.Operator,
			Details:   fmt.Sprintf("Finished at %.3f kg, waste %.2f%%", input.PostWeightKg, waste),
		}); err != nil {
			return err
		}
		batch.PostWeightKg = input.PostWeightKg
		batch.WastePct = waste
		batch.Status = StatusCompleted
		batch.Version++
		finished = batch
		return nil
	})
	if err != nil {
		return Batch{}, err
	}

	s.recordAudit(ctx, input.Operator, "roasting.batch.finish", finished.ID, map[string]any{
		"code":           finished.Code,
		"post_weight_kg": finished.PostWeightKg,
		"waste_pct":      finished.WastePct,
	})
	if s.metrics != nil {
		s.metrics.RecordBatchFinished()
	}
	s.invalidateReports(ctx)
	return finished, nil
}

// Allocate carves packaged units out of a completed batch and inserts
// the matching inventory lots, all in one transaction. The client ref
// makes retries after a partial failure detectable; the advisory mutex
// keeps concurrent sessions from queueing on the batch row lock.
func (s *Service) Allocate(ctx context.Context, req AllocationRequest) (AllocationPlan, error) {
	if strings.TrimSpace(req.BatchID) == "" {
		return AllocationPlan{}, fmt.Errorf("%w: batch is required", ErrValidation)
	}
	if strings.TrimSpace(req.LocationID) == "" {
		return AllocationPlan{}, fmt.Errorf("%w: destination location is required", ErrValidation)
	}
	if strings.TrimSpace(req.ClientRef) == "" {
		return AllocationPlan{}, fmt.Errorf("%w: client reference is required", ErrValidation)
	}
	if len(req.Lines) == 0 {
		return AllocationPlan{}, fmt.Errorf("%w: at least one allocation line is required", ErrValidation)
	}

	productIDs := make([]string, 0, len(req.Lines))
	for _, line := range req.Lines {
		productIDs = append(productIDs, line.ProductID)
	}
	prods, err := s.catalog.Products(ctx, productIDs)
	if err != nil {
		return AllocationPlan{}, err
	}
	templateIDs := make([]string, 0, len(prods))
	for _, p := range prods {
		if p.TemplateID != "" {
			templateIDs = append(templateIDs, p.TemplateID)
		}
	}

	lockKey := shared.AllocationLockKey(req.BatchID)
	if s.locks != nil {
		if err := s.locks.Acquire(ctx, lockKey); err != nil {
			if errors.Is(err, shared.ErrLockHeld) {
				return AllocationPlan{}, fmt.Errorf("%w: another allocation for this batch is in flight", ErrVersionConflict)
			}
			return AllocationPlan{}, err
		}
		defer s.locks.Release(ctx, lockKey)
	}

	key := "alloc:" + req.ClientRef
	insertedKey := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "roasting"); err != nil {
			return AllocationPlan{}, err
		}
		insertedKey = true
	}

	var plan AllocationPlan
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		batch, err := tx.GetBatchForUpdate(ctx, req.BatchID)
		if err != nil {
			return err
		}
		// Existing units may use templates outside this request.
		existing := make([]string, 0, len(batch.Units))
		for _, u := range batch.Units {
			existing = append(existing, u.TemplateID)
		}
		tpls, err := s.catalog.Templates(ctx, append(existing, templateIDs...))
		if err != nil {
			return err
		}

		plan, err = PlanAllocation(batch, req, prods, tpls)
		if err != nil {
			return err
		}
		if err := tx.InsertUnits(ctx, plan.Units); err != nil {
			return err
		}
		if err := tx.InsertInventoryItems(ctx, plan.Items); err != nil {
			return err
		}
		if err := tx.BumpVersion(ctx, batch.ID, batch.Version); err != nil {
			return err
		}
		return tx.InsertHistory(ctx, batch.ID, HistoryEntry{
			Timestamp: s.now(),
			Action:    ActionProduction,
			Operator:  req.Operator,
			Details:   fmt.Sprintf("Packaged %.3f kg into %d unit line(s)", plan.TotalWeightKg, len(plan.Units)),
		})
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, key)
		}
		return AllocationPlan{}, err
	}

	s.recordAudit(ctx, req.Operator, "roasting.batch.allocate", req.BatchID, map[string]any{
		"client_ref":      req.ClientRef,
		"total_weight_kg": plan.TotalWeightKg,
		"lines":           len(plan.Units),
	})
	if s.metrics != nil {
		units := 0
		for _, u := range plan.Units {
			units += u.Quantity
		}
		s.metrics.RecordUnitsPackaged(units)
	}
	s.invalidateReports(ctx)
	return plan, nil
}

// List returns batches with remaining weight resolved. ReadyOnly keeps
// completed batches that still have allocatable weight.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Batch, map[string]float64, error) {
	batches, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, err
	}

	templateIDs := []string{}
	seen := map[string]bool{}
	for _, b := range batches {
		for _, u := range b.Units {
			if !seen[u.TemplateID] {
				seen[u.TemplateID] = true
				templateIDs = append(templateIDs, u.TemplateID)
			}
		}
	}
	tpls, err := s.catalog.Templates(ctx, templateIDs)
	if err != nil {
		return nil, nil, err
	}
	weightOf := func(templateID string) float64 { return tpls[templateID].WeightKg }

	remaining := make(map[string]float64, len(batches))
	out := batches[:0]
	for _, b := range batches {
		rem := b.RemainingKg(weightOf)
		if filter.ReadyOnly && (b.Status != StatusCompleted || rem <= WeightEpsilon) {
			continue
		}
		remaining[b.ID] = rem
		out = append(out, b)
	}
	return out, remaining, nil
}

// Get returns one batch with its remaining weight.
func (s *Service) Get(ctx context.Context, id string) (Batch, float64, error) {
	batch, err := s.repo.Get(ctx, id)
	if err != nil {
		return Batch{}, 0, err
	}
	templateIDs := make([]string, 0, len(batch.Units))
	for _, u := range batch.Units {
		templateIDs = append(templateIDs, u.TemplateID)
	}
	tpls, err := s.catalog.Templates(ctx, templateIDs)
	if err != nil {
		return Batch{}, 0, err
	}
	rem := batch.RemainingKg(func(templateID string) float64 { return tpls[templateID].WeightKg })
	return batch, rem, nil
}

// Delete soft-deletes a batch. Units and inventory already produced
// from it are left untouched.
func (s *Service) Delete(ctx context.Context, id, operator string) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, operator, "roasting.batch.delete", id, nil)
	return nil
}

func (s *Service) invalidateReports(ctx context.Context) {
	if s.reports == nil {
		return
	}
	_ = s.reports.Invalidate(ctx)
}

func (s *Service) recordAudit(ctx context.Context, actor, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "roast_batch",
		EntityID: entityID,
		Meta:     meta,
	})
}
