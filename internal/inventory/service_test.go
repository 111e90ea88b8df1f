package inventory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	items       map[string]*Item
	adjustments map[string]*Adjustment
	transfers   map[string]*TransferOrder
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		items:       make(map[string]*Item),
		adjustments: make(map[string]*Adjustment),
		transfers:   make(map[string]*TransferOrder),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) ListItems(ctx context.Context, filter ItemFilter) ([]Item, int, error) {
	var out []Item
	for _, item := range r.items {
		if filter.LocationID != "" && item.LocationID != filter.LocationID {
			continue
		}
		if filter.Search != "" && !strings.Contains(item.ProductName, filter.Search) {
			continue
		}
		out = append(out, *item)
	}
	return out, len(out), nil
}

func (r *memoryRepo) GetItem(ctx context.Context, id string) (Item, error) {
	item, ok := r.items[id]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return *item, nil
}

func (r *memoryRepo) ListAdjustments(ctx context.Context, status AdjustmentStatus, limit int) ([]Adjustment, error) {
	var out []Adjustment
	for _, adj := range r.adjustments {
		if status != "" && adj.Status != status {
			continue
		}
		out = append(out, *adj)
	}
	return out, nil
}

func (r *memoryRepo) CountPendingAdjustments(ctx context.Context) (int, error) {
	count := 0
	for _, adj := range r.adjustments {
		if adj.Status == AdjustmentPending {
			count++
		}
	}
	return count, nil
}

func (r *memoryRepo) ListTransfers(ctx context.Context, status TransferStatus, limit int) ([]TransferOrder, error) {
	var out []TransferOrder
	for _, order := range r.transfers {
		if status != "" && order.Status != status {
			continue
		}
		out = append(out, *order)
	}
	return out, nil
}

func (r *memoryRepo) GetTransfer(ctx context.Context, id string) (TransferOrder, error) {
	order, ok := r.transfers[id]
	if !ok {
		return TransferOrder{}, ErrTransferNotFound
	}
	return *order, nil
}

func (tx *memoryTx) GetItemForUpdate(ctx context.Context, id string) (Item, error) {
	return tx.repo.GetItem(ctx, id)
}

func (tx *memoryTx) FindItemAtLocationByName(ctx context.Context, locationID, productName string) (Item, error) {
	for _, item := range tx.repo.items {
		if item.LocationID == locationID && item.ProductName == productName {
			return *item, nil
		}
	}
	return Item{}, ErrItemNotFound
}

func (tx *memoryTx) UpdateItemQuantity(ctx context.Context, id string, quantity int, version int64) error {
	item, ok := tx.repo.items[id]
	if !ok || item.Version != version {
		return ErrItemNotFound
	}
	item.Quantity = quantity
	item.Version++
	return nil
}

func (tx *memoryTx) InsertItem(ctx context.Context, params NewItemParams) (string, error) {
	id := uuid.NewString()
	tx.repo.items[id] = &Item{
		ID:          id,
		ProductID:   params.ProductID,
		ProductName: params.ProductName,
		SKU:         params.SKU,
		BatchID:     params.BatchID,
		LocationID:  params.LocationID,
		Quantity:    params.Quantity,
		UnitCost:    params.UnitCost,
		Price:       params.Price,
		RoastDate:   params.RoastDate,
		ExpiryDate:  params.ExpiryDate,
	}
	return id, nil
}

func (tx *memoryTx) InsertAdjustment(ctx context.Context, adj Adjustment) error {
	stored := adj
	tx.repo.adjustments[adj.ID] = &stored
	return nil
}

func (tx *memoryTx) GetAdjustmentForUpdate(ctx context.Context, id string) (Adjustment, error) {
	adj, ok := tx.repo.adjustments[id]
	if !ok {
		return Adjustment{}, ErrAdjustmentNotFound
	}
	return *adj, nil
}

func (tx *memoryTx) MarkAdjustmentResolved(ctx context.Context, id string, status AdjustmentStatus, resolvedBy string, resolvedAt time.Time) error {
	adj, ok := tx.repo.adjustments[id]
	if !ok || adj.Status != AdjustmentPending {
		return ErrAlreadyResolved
	}
	adj.Status = status
	adj.ResolvedBy = resolvedBy
	adj.ResolvedAt = resolvedAt
	return nil
}

func (tx *memoryTx) InsertTransfer(ctx context.Context, order TransferOrder) error {
	stored := order
	tx.repo.transfers[order.ID] = &stored
	return nil
}

func (tx *memoryTx) GetTransferForUpdate(ctx context.Context, id string) (TransferOrder, error) {
	return tx.repo.GetTransfer(ctx, id)
}

func (tx *memoryTx) UpdateTransferStatus(ctx context.Context, id string, from, to TransferStatus, actor string, at time.Time) error {
	order, ok := tx.repo.transfers[id]
	if !ok || order.Status != from {
		return ErrInvalidTransition
	}
	order.Status = to
	return nil
}

func seedItem(repo *memoryRepo, id, location, name string, qty int, price float64) {
	repo.items[id] = &Item{
		ID:          id,
		ProductID:   "prod-" + name,
		ProductName: name,
		SKU:         "SKU-" + id,
		LocationID:  location,
		Quantity:    qty,
		UnitCost:    5,
		Price:       price,
	}
}

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, nil, nil, nil, nil, ServiceConfig{})
	svc.now = func() time.Time { return time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestSubmitAdjustmentAutoApprovesBelowThreshold(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-1", "loc-1", "Espresso Blend 250g", 40, 12)
	svc := newTestService(repo)
	ctx := context.Background()

	adj, err := svc.SubmitAdjustment(ctx, SubmitAdjustmentInput{
		ItemID: "item-1", Delta: -5, Reason: ReasonDamage,
		Notes: "dropped a case during restock", RequestedBy: "Hana",
	})
	require.NoError(t, err)
	require.Equal(t, AdjustmentApproved, adj.Status)
	require.InDelta(t, 60.0, adj.ValueImpact, 1e-9)
	require.Equal(t, 35, repo.items["item-1"].Quantity)
}

func TestSubmitAdjustmentHighValueWaitsForApproval(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-1", "loc-1", "Espresso Blend 1kg", 100, 40)
	svc := newTestService(repo)
	ctx := context.Background()

	adj, err := svc.SubmitAdjustment(ctx, SubmitAdjustmentInput{
		ItemID: "item-1", Delta: -30, Reason: ReasonRecount,
		Notes: "cycle count found a large shortfall", RequestedBy: "Hana",
	})
	require.NoError(t, err)
	require.Equal(t, AdjustmentPending, adj.Status)
	require.InDelta(t, 1200.0, adj.ValueImpact, 1e-9)
	// No stock effect until a manager decides.
	require.Equal(t, 100, repo.items["item-1"].Quantity)
}

func TestSubmitAdjustmentClampsAtZero(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-1", "loc-1", "Drip Bag", 3, 4)
	svc := newTestService(repo)

	adj, err := svc.SubmitAdjustment(context.Background(), SubmitAdjustmentInput{
		ItemID: "item-1", Delta: -10, Reason: ReasonExpiry,
		Notes: "entire shelf past expiry date", RequestedBy: "Hana",
	})
	require.NoError(t, err)
	require.Equal(t, AdjustmentApproved, adj.Status)
	require.Equal(t, 0, repo.items["item-1"].Quantity)
}

func TestSubmitAdjustmentValidation(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-1", "loc-1", "Drip Bag", 3, 4)
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.SubmitAdjustment(ctx, SubmitAdjustmentInput{
		ItemID: "item-1", Delta: 0, Reason: ReasonDamage, Notes: "long enough notes here",
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.SubmitAdjustment(ctx, SubmitAdjustmentInput{
		ItemID: "item-1", Delta: -1, Reason: "SHRINKAGE", Notes: "long enough notes here",
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.SubmitAdjustment(ctx, SubmitAdjustmentInput{
		ItemID: "item-1", Delta: -1, Reason: ReasonDamage, Notes: "   short  ",
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestResolveAdjustmentAppliesOnce(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-1", "loc-1", "Espresso Blend 1kg", 100, 40)
	svc := newTestService(repo)
	ctx := context.Background()

	adj, err := svc.SubmitAdjustment(ctx, SubmitAdjustmentInput{
		ItemID: "item-1", Delta: -30, Reason: ReasonRecount,
		Notes: "cycle count found a large shortfall", RequestedBy: "Hana",
	})
	require.NoError(t, err)
	require.Equal(t, AdjustmentPending, adj.Status)

	resolved, err := svc.ResolveAdjustment(ctx, ResolveAdjustmentInput{
		AdjustmentID: adj.ID, Approve: true, ResolvedBy: "Marwa",
	})
	require.NoError(t, err)
	require.Equal(t, AdjustmentApproved, resolved.Status)
	require.Equal(t, "Marwa", resolved.ResolvedBy)
	require.Equal(t, 70, repo.items["item-1"].Quantity)

	// Approving or rejecting again never reapplies the delta.
	_, err = svc.ResolveAdjustment(ctx, ResolveAdjustmentInput{
		AdjustmentID: adj.ID, Approve: true, ResolvedBy: "Marwa",
	})
	require.ErrorIs(t, err, ErrAlreadyResolved)
	require.Equal(t, 70, repo.items["item-1"].Quantity)
}

func TestResolveAdjustmentRejectLeavesStock(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-1", "loc-1", "Espresso Blend 1kg", 100, 40)
	svc := newTestService(repo)
	ctx := context.Background()

	adj, err := svc.SubmitAdjustment(ctx, SubmitAdjustmentInput{
		ItemID: "item-1", Delta: -30, Reason: ReasonTheft,
		Notes: "suspected theft from back room", RequestedBy: "Hana",
	})
	require.NoError(t, err)

	resolved, err := svc.ResolveAdjustment(ctx, ResolveAdjustmentInput{
		AdjustmentID: adj.ID, Approve: false, ResolvedBy: "Marwa",
	})
	require.NoError(t, err)
	require.Equal(t, AdjustmentRejected, resolved.Status)
	require.Equal(t, 100, repo.items["item-1"].Quantity)
}

func TestTransferLifecycleMovesStockOnCompletion(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-src", "warehouse", "Espresso Blend 250g", 50, 12)
	seedItem(repo, "item-dst", "cafe", "Espresso Blend 250g", 8, 12)
	svc := newTestService(repo)
	ctx := context.Background()

	order, err := svc.CreateTransfer(ctx, CreateTransferInput{
		SourceLocation: "warehouse", DestLocation: "cafe", CreatedBy: "Omar",
		Lines: []CreateTransferLine{{ItemID: "item-src", Quantity: 20}},
	})
	require.NoError(t, err)
	require.Equal(t, TransferDraft, order.Status)
	// Drafts have no inventory effect.
	require.Equal(t, 50, repo.items["item-src"].Quantity)

	order, err = svc.AdvanceTransfer(ctx, order.ID, TransferActionApprove, "Marwa")
	require.NoError(t, err)
	require.Equal(t, TransferApproved, order.Status)
	require.Equal(t, 50, repo.items["item-src"].Quantity)

	order, err = svc.AdvanceTransfer(ctx, order.ID, TransferActionComplete, "Omar")
	require.NoError(t, err)
	require.Equal(t, TransferCompleted, order.Status)
	require.Equal(t, 30, repo.items["item-src"].Quantity)
	// Destination lot matched by product name received the stock.
	require.Equal(t, 28, repo.items["item-dst"].Quantity)
}

type recordingReportCache struct {
	calls int
}

func (r *recordingReportCache) Invalidate(ctx context.Context) error {
	r.calls++
	return nil
}

func TestTransferCompletionInvalidatesReportCache(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-src", "warehouse", "Espresso Blend 250g", 50, 12)
	cache := &recordingReportCache{}
	svc := NewService(repo, nil, nil, nil, cache, ServiceConfig{})
	svc.now = func() time.Time { return time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	order, err := svc.CreateTransfer(ctx, CreateTransferInput{
		SourceLocation: "warehouse", DestLocation: "cafe", CreatedBy: "Omar",
		Lines: []CreateTransferLine{{ItemID: "item-src", Quantity: 5}},
	})
	require.NoError(t, err)
	require.Equal(t, 0, cache.calls, "drafts leave stock untouched")

	_, err = svc.AdvanceTransfer(ctx, order.ID, TransferActionApprove, "Marwa")
	require.NoError(t, err)
	require.Equal(t, 0, cache.calls)

	_, err = svc.AdvanceTransfer(ctx, order.ID, TransferActionComplete, "Omar")
	require.NoError(t, err)
	require.Equal(t, 1, cache.calls)
}

func TestTransferCompleteCreatesDestinationLot(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-src", "warehouse", "Single Origin 1kg", 10, 40)
	svc := newTestService(repo)
	ctx := context.Background()

	order, err := svc.CreateTransfer(ctx, CreateTransferInput{
		SourceLocation: "warehouse", DestLocation: "cafe", CreatedBy: "Omar",
		Lines: []CreateTransferLine{{ItemID: "item-src", Quantity: 4}},
	})
	require.NoError(t, err)
	_, err = svc.AdvanceTransfer(ctx, order.ID, TransferActionApprove, "Marwa")
	require.NoError(t, err)
	_, err = svc.AdvanceTransfer(ctx, order.ID, TransferActionComplete, "Omar")
	require.NoError(t, err)

	require.Equal(t, 6, repo.items["item-src"].Quantity)
	var created *Item
	for _, item := range repo.items {
		if item.LocationID == "cafe" {
			created = item
		}
	}
	require.NotNil(t, created)
	require.Equal(t, "Single Origin 1kg", created.ProductName)
	require.Equal(t, 4, created.Quantity)
}

func TestTransferRejectsSkippedTransitions(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-src", "warehouse", "Espresso Blend 250g", 50, 12)
	svc := newTestService(repo)
	ctx := context.Background()

	order, err := svc.CreateTransfer(ctx, CreateTransferInput{
		SourceLocation: "warehouse", DestLocation: "cafe", CreatedBy: "Omar",
		Lines: []CreateTransferLine{{ItemID: "item-src", Quantity: 5}},
	})
	require.NoError(t, err)

	// DRAFT straight to COMPLETED skips approval.
	_, err = svc.AdvanceTransfer(ctx, order.ID, TransferActionComplete, "Omar")
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, 50, repo.items["item-src"].Quantity)

	_, err = svc.AdvanceTransfer(ctx, order.ID, TransferActionCancel, "Omar")
	require.NoError(t, err)

	// Cancelled is terminal.
	_, err = svc.AdvanceTransfer(ctx, order.ID, TransferActionApprove, "Marwa")
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.AdvanceTransfer(ctx, order.ID, TransferActionComplete, "Omar")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransferCompletionClampsSourceAtZero(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-src", "warehouse", "Espresso Blend 250g", 10, 12)
	svc := newTestService(repo)
	ctx := context.Background()

	order, err := svc.CreateTransfer(ctx, CreateTransferInput{
		SourceLocation: "warehouse", DestLocation: "cafe", CreatedBy: "Omar",
		Lines: []CreateTransferLine{{ItemID: "item-src", Quantity: 10}},
	})
	require.NoError(t, err)
	_, err = svc.AdvanceTransfer(ctx, order.ID, TransferActionApprove, "Marwa")
	require.NoError(t, err)

	// Stock shrank between approval and completion.
	repo.items["item-src"].Quantity = 6

	_, err = svc.AdvanceTransfer(ctx, order.ID, TransferActionComplete, "Omar")
	require.NoError(t, err)
	require.Equal(t, 0, repo.items["item-src"].Quantity)
}

func TestCreateTransferValidation(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-src", "warehouse", "Espresso Blend 250g", 10, 12)
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.CreateTransfer(ctx, CreateTransferInput{
		SourceLocation: "warehouse", DestLocation: "warehouse",
		Lines: []CreateTransferLine{{ItemID: "item-src", Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateTransfer(ctx, CreateTransferInput{
		SourceLocation: "warehouse", DestLocation: "cafe",
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateTransfer(ctx, CreateTransferInput{
		SourceLocation: "warehouse", DestLocation: "cafe",
		Lines: []CreateTransferLine{{ItemID: "item-src", Quantity: 99}},
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Equal(t, 10, repo.items["item-src"].Quantity)
}
