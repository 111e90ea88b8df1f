package inventory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doha-roastery/roastery/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListItems(ctx context.Context, filter ItemFilter) ([]Item, int, error)
	GetItem(ctx context.Context, id string) (Item, error)
	ListAdjustments(ctx context.Context, status AdjustmentStatus, limit int) ([]Adjustment, error)
	CountPendingAdjustments(ctx context.Context) (int, error)
	ListTransfers(ctx context.Context, status TransferStatus, limit int) ([]TransferOrder, error)
	GetTransfer(ctx context.Context, id string) (TransferOrder, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort records stock movement counters.
type MetricsPort interface {
	RecordTransferCompleted()
	SetPendingAdjustments(count int)
}

// ReportCachePort expires cached reports after stock writes.
type ReportCachePort interface {
	Invalidate(ctx context.Context) error
}

// ServiceConfig groups tunable thresholds.
type ServiceConfig struct {
	// ApprovalThreshold is the absolute stock value above which an
	// adjustment waits for a manager instead of applying immediately.
	ApprovalThreshold float64
}

// DefaultApprovalThreshold applies when configuration leaves the
// threshold unset.
const DefaultApprovalThreshold = 1000

// Service coordinates stock adjustments and transfer orders.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	metrics     MetricsPort
	reports     ReportCachePort
	threshold   float64
	now         func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, metrics MetricsPort, reportCache ReportCachePort, cfg ServiceConfig) *Service {
	threshold := cfg.ApprovalThreshold
	if threshold <= 0 {
		threshold = DefaultApprovalThreshold
	}
	return &Service{repo: repo, audit: audit, idempotency: idem, metrics: metrics, reports: reportCache, threshold: threshold, now: time.Now}
}

// ListItems lists inventory lots.
func (s *Service) ListItems(ctx context.Context, filter ItemFilter) ([]Item, int, error) {
	return s.repo.ListItems(ctx, filter)
}

// GetItem returns one inventory lot.
func (s *Service) GetItem(ctx context.Context, id string) (Item, error) {
	return s.repo.GetItem(ctx, id)
}

// ListAdjustments lists adjustments, optionally by status.
func (s *Service) ListAdjustments(ctx context.Context, status AdjustmentStatus, limit int) ([]Adjustment, error) {
	return s.repo.ListAdjustments(ctx, status, limit)
}

// ListTransfers lists transfer orders, optionally by status.
func (s *Service) ListTransfers(ctx context.Context, status TransferStatus, limit int) ([]TransferOrder, error) {
	return s.repo.ListTransfers(ctx, status, limit)
}

// GetTransfer returns one transfer order.
func (s *Service) GetTransfer(ctx context.Context, id string) (TransferOrder, error) {
	return s.repo.GetTransfer(ctx, id)
}

// SubmitAdjustmentInput captures a manual stock correction request.
type SubmitAdjustmentInput struct {
	ItemID      string
	Delta       int
	Reason      string
	Notes       string
	RequestedBy string
}

// SubmitAdjustment records a stock correction. The value at stake is
// the absolute delta at sale price; corrections above the threshold
// park in PENDING with no stock effect, everything else applies
// immediately and is marked APPROVED. Negative results clamp at zero.
func (s *Service) SubmitAdjustment(ctx context.Context, input SubmitAdjustmentInput) (Adjustment, error) {
	if input.Delta == 0 {
		return Adjustment{}, fmt.Errorf("%w: delta must not be zero", ErrValidation)
	}
	if !validReason(input.Reason) {
		return Adjustment{}, fmt.Errorf("%w: unknown reason %q", ErrValidation, input.Reason)
	}
	if len(strings.TrimSpace(input.Notes)) < 10 {
		return Adjustment{}, fmt.Errorf("%w: notes must be at least 10 characters", ErrValidation)
	}

	var adjustment Adjustment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, input.ItemID)
		if err != nil {
			return err
		}
		value := math.Abs(float64(input.Delta)) * item.Price
		adjustment = Adjustment{
			ID:          uuid.NewString(),
			ItemID:      item.ID,
			ItemName:    item.ProductName,
			SKU:         item.SKU,
			LocationID:  item.LocationID,
			Delta:       input.Delta,
			Reason:      input.Reason,
			Notes:       strings.TrimSpace(input.Notes),
			ValueImpact: value,
			Status:      AdjustmentPending,
			RequestedBy: input.RequestedBy,
			CreatedAt:   s.now(),
		}
		if value > s.threshold {
			return tx.InsertAdjustment(ctx, adjustment)
		}

		adjustment.Status = AdjustmentApproved
		adjustment.ResolvedBy = input.RequestedBy
		adjustment.ResolvedAt = s.now()
		if err := tx.UpdateItemQuantity(ctx, item.ID, clampQuantity(item.Quantity+input.Delta), item.Version); err != nil {
			return err
		}
		return tx.InsertAdjustment(ctx, adjustment)
	})
	if err != nil {
		return Adjustment{}, err
	}

	s.recordAudit(ctx, input.RequestedBy, "inventory.adjustment.submit", adjustment.ID, map[string]any{
		"item_id": adjustment.ItemID,
		"delta":   adjustment.Delta,
		"value":   adjustment.ValueImpact,
		"status":  string(adjustment.Status),
	})
	s.refreshPendingGauge(ctx)
	return adjustment, nil
}

// ResolveAdjustmentInput decides a pending adjustment.
type ResolveAdjustmentInput struct {
	AdjustmentID string
	Approve      bool
	ResolvedBy   string
}

// ResolveAdjustment approves or rejects a pending adjustment. The stock
// effect of an approval applies exactly once; resolving an adjustment
// that is no longer PENDING returns ErrAlreadyResolved.
func (s *Service) ResolveAdjustment(ctx context.Context, input ResolveAdjustmentInput) (Adjustment, error) {
	var resolved Adjustment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		adjustment, err := tx.GetAdjustmentForUpdate(ctx, input.AdjustmentID)
		if err != nil {
			return err
		}
		if adjustment.Status != AdjustmentPending {
			return fmt.Errorf("%w: adjustment is %s", ErrAlreadyResolved, adjustment.Status)
		}

		status := AdjustmentRejected
		if input.Approve {
			status = AdjustmentApproved
			item, err := tx.GetItemForUpdate(ctx, adjustment.ItemID)
			if err != nil {
				return err
			}
			if err := tx.UpdateItemQuantity(ctx, item.ID, clampQuantity(item.Quantity+adjustment.Delta), item.Version); err != nil {
				return err
			}
		}
		now := s.now()
		if err := tx.MarkAdjustmentResolved(ctx, adjustment.ID, status, input.ResolvedBy, now); err != nil {
			return err
		}
		adjustment.Status = status
		adjustment.ResolvedBy = input.ResolvedBy
		adjustment.ResolvedAt = now
		resolved = adjustment
		return nil
	})
	if err != nil {
		return Adjustment{}, err
	}

	s.recordAudit(ctx, input.ResolvedBy, "inventory.adjustment.resolve", resolved.ID, map[string]any{
		"status": string(resolved.Status),
		"delta":  resolved.Delta,
	})
	s.refreshPendingGauge(ctx)
	s.invalidateReports(ctx)
	return resolved, nil
}

// CreateTransferInput opens a draft transfer order.
type CreateTransferInput struct {
	SourceLocation string
	DestLocation   string
	Notes          string
	CreatedBy      string
	Lines          []CreateTransferLine
}

// CreateTransferLine requests one item movement.
type CreateTransferLine struct {
	ItemID   string
	Quantity int
}

// CreateTransfer records a DRAFT order. Nothing moves yet; availability
// is only advisory here and is re-checked when the order completes.
func (s *Service) CreateTransfer(ctx context.Context, input CreateTransferInput) (TransferOrder, error) {
	if input.SourceLocation == "" || input.DestLocation == "" {
		return TransferOrder{}, fmt.Errorf("%w: source and destination locations are required", ErrValidation)
	}
	if input.SourceLocation == input.DestLocation {
		return TransferOrder{}, fmt.Errorf("%w: source and destination must differ", ErrValidation)
	}
	if len(input.Lines) == 0 {
		return TransferOrder{}, fmt.Errorf("%w: at least one line is required", ErrValidation)
	}

	order := TransferOrder{
		ID:             uuid.NewString(),
		Code:           newTransferCode(s.now()),
		SourceLocation: input.SourceLocation,
		DestLocation:   input.DestLocation,
		Status:         TransferDraft,
		Notes:          input.Notes,
		CreatedBy:      input.CreatedBy,
		CreatedAt:      s.now(),
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for i, line := range input.Lines {
			if line.Quantity <= 0 {
				return fmt.Errorf("%w: line %d quantity must be positive", ErrValidation, i)
			}
			item, err := tx.GetItemForUpdate(ctx, line.ItemID)
			if err != nil {
				return err
			}
			if item.LocationID != input.SourceLocation {
				return fmt.Errorf("%w: line %d item %s is not at the source location", ErrValidation, i, item.SKU)
			}
			if item.Quantity < line.Quantity {
				return fmt.Errorf("%w: line %d requests %d of %s, %d on hand", ErrInsufficientStock, i, line.Quantity, item.SKU, item.Quantity)
			}
			order.Lines = append(order.Lines, TransferLine{
				TransferID:  order.ID,
				ItemID:      item.ID,
				ProductName: item.ProductName,
				SKU:         item.SKU,
				Quantity:    line.Quantity,
				UnitCost:    item.UnitCost,
			})
			order.TotalValue += float64(line.Quantity) * item.UnitCost
		}
		return tx.InsertTransfer(ctx, order)
	})
	if err != nil {
		return TransferOrder{}, err
	}

	s.recordAudit(ctx, input.CreatedBy, "inventory.transfer.create", order.ID, map[string]any{
		"code":  order.Code,
		"lines": len(order.Lines),
	})
	return order, nil
}

// TransferAction is one step of the transfer lifecycle.
type TransferAction string

const (
	TransferActionApprove  TransferAction = "approve"
	TransferActionComplete TransferAction = "complete"
	TransferActionCancel   TransferAction = "cancel"
)

// AdvanceTransfer moves an order one step: DRAFT to APPROVED, APPROVED
// to COMPLETED, or either to CANCELLED. Skipping a step is rejected.
// Stock moves only on completion: each line's source lot is drawn down
// (clamped at zero) and the destination lot with the same product name
// receives the quantity, or a fresh lot is created there.
func (s *Service) AdvanceTransfer(ctx context.Context, transferID string, action TransferAction, actor string) (TransferOrder, error) {
	var order TransferOrder

	run := func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			current, err := tx.GetTransferForUpdate(ctx, transferID)
			if err != nil {
				return err
			}

			switch action {
			case TransferActionApprove:
				if current.Status != TransferDraft {
					return fmt.Errorf("%w: cannot approve a %s order", ErrInvalidTransition, current.Status)
				}
				if err := tx.UpdateTransferStatus(ctx, current.ID, TransferDraft, TransferApproved, actor, s.now()); err != nil {
					return err
				}
				current.Status = TransferApproved
				current.ApprovedBy = actor

			case TransferActionComplete:
				if current.Status != TransferApproved {
					return fmt.Errorf("%w: cannot complete a %s order", ErrInvalidTransition, current.Status)
				}
				if err := s.applyTransfer(ctx, tx, current); err != nil {
					return err
				}
				if err := tx.UpdateTransferStatus(ctx, current.ID, TransferApproved, TransferCompleted, actor, s.now()); err != nil {
					return err
				}
				current.Status = TransferCompleted
				current.CompletedBy = actor

			case TransferActionCancel:
				if current.Status != TransferDraft && current.Status != TransferApproved {
					return fmt.Errorf("%w: cannot cancel a %s order", ErrInvalidTransition, current.Status)
				}
				if err := tx.UpdateTransferStatus(ctx, current.ID, current.Status, TransferCancelled, actor, s.now()); err != nil {
					return err
				}
				current.Status = TransferCancelled
				current.CancelledBy = actor

			default:
				return fmt.Errorf("%w: unknown action %q", ErrValidation, action)
			}
			order = current
			return nil
		})
	}

	if action == TransferActionComplete && s.idempotency != nil {
		key := "transfer:complete:" + transferID
		if err := s.idempotency.CheckAndInsert(ctx, key, "inventory"); err != nil {
			return TransferOrder{}, err
		}
		if err := run(); err != nil {
			_ = s.idempotency.Delete(ctx, key)
			return TransferOrder{}, err
		}
	} else if err := run(); err != nil {
		return TransferOrder{}, err
	}

	s.recordAudit(ctx, actor, "inventory.transfer."+string(action), transferID, map[string]any{
		"status": string(order.Status),
	})
	if action == TransferActionComplete && s.metrics != nil {
		s.metrics.RecordTransferCompleted()
	}
	if action == TransferActionComplete {
		s.invalidateReports(ctx)
	}
	return order, nil
}

func (s *Service) applyTransfer(ctx context.Context, tx TxRepository, order TransferOrder) error {
	for _, line := range order.Lines {
		source, err := tx.GetItemForUpdate(ctx, line.ItemID)
		if err != nil {
			return err
		}
		if err := tx.UpdateItemQuantity(ctx, source.ID, clampQuantity(source.Quantity-line.Quantity), source.Version); err != nil {
			return err
		}

		dest, err := tx.FindItemAtLocationByName(ctx, order.DestLocation, line.ProductName)
		switch {
		case err == nil:
			if err := tx.UpdateItemQuantity(ctx, dest.ID, dest.Quantity+line.Quantity, dest.Version); err != nil {
				return err
			}
		case errors.Is(err, ErrItemNotFound):
			if _, err := tx.InsertItem(ctx, NewItemParams{
				ProductID:   source.ProductID,
				ProductName: source.ProductName,
				SKU:         source.SKU,
				BatchID:     source.BatchID,
				LocationID:  order.DestLocation,
				Quantity:    line.Quantity,
				UnitCost:    source.UnitCost,
				Price:       source.Price,
				RoastDate:   source.RoastDate,
				ExpiryDate:  source.ExpiryDate,
			}); err != nil {
				return err
			}
		default:
			return err
		}
	}
	return nil
}

func (s *Service) invalidateReports(ctx context.Context) {
	if s.reports == nil {
		return
	}
	_ = s.reports.Invalidate(ctx)
}

func (s *Service) refreshPendingGauge(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	count, err := s.repo.CountPendingAdjustments(ctx)
	if err != nil {
		return
	}
	s.metrics.SetPendingAdjustments(count)
}

func (s *Service) recordAudit(ctx context.Context, actor, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "inventory",
		EntityID: entityID,
		Meta:     meta,
	})
}

func validReason(reason string) bool {
	switch reason {
	case ReasonDamage, ReasonExpiry, ReasonRecount, ReasonTheft, ReasonCorrection:
		return true
	}
	return false
}

func clampQuantity(qty int) int {
	if qty < 0 {
		return 0
	}
	return qty
}

func newTransferCode(now time.Time) string {
	return fmt.Sprintf("TR-%s-%04d", now.Format("20060102"), now.UnixNano()%9000+1000)
}
