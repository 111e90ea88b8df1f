package roasting

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/doha-roastery/roastery/internal/masterdata/products"
	"github.com/doha-roastery/roastery/internal/masterdata/templates"
)

func testCatalog() (map[string]products.Product, map[string]templates.Template) {
	tpls := map[string]templates.Template{
		"tpl-250": {ID: "tpl-250", SizeLabel: "250g", WeightKg: 0.25, UnitCost: 0.5, ShelfLifeDays: 90, SKUPrefix: "ESP250"},
		"tpl-1kg": {ID: "tpl-1kg", SizeLabel: "1kg", WeightKg: 1.0, UnitCost: 1.2, ShelfLifeDays: 120, SKUPrefix: "ESP1KG"},
	}
	prods := map[string]products.Product{
		"prod-250": {ID: "prod-250", Name: "Espresso Blend 250g", Category: products.CategoryCoffee, TemplateID: "tpl-250", BasePrice: 12, IsActive: true},
		"prod-1kg": {ID: "prod-1kg", Name: "Espresso Blend 1kg", Category: products.CategoryCoffee, TemplateID: "tpl-1kg", BasePrice: 40, IsActive: true},
		"prod-mug": {ID: "prod-mug", Name: "Roastery Mug", Category: products.CategoryMerch, BasePrice: 9, IsActive: true},
	}
	return prods, tpls
}

func completedBatch(postKg float64) Batch {
	return Batch{
		ID:           "batch-1",
		Code:         "B-202608-4821",
		BeanID:       "bean-1",
		RoastDate:    time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		Level:        LevelMedium,
		PreWeightKg:  postKg / 0.85,
		PostWeightKg: postKg,
		Status:       StatusCompleted,
		CostPerKg:    18,
	}
}

func allocReq(lines ...AllocationLine) AllocationRequest {
	return AllocationRequest{
		BatchID:        "batch-1",
		LocationID:     "loc-1",
		Operator:       "Hana",
		ClientRef:      "f1d2b3a4-0000-4000-8000-000000000001",
		ProductionDate: time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC),
		Lines:          lines,
	}
}

func TestPlanAllocationConservesWeight(t *testing.T) {
	prods, tpls := testCatalog()
	batch := completedBatch(10)

	plan, err := PlanAllocation(batch, allocReq(
		AllocationLine{ProductID: "prod-250", Quantity: 20}, // 5 kg
		AllocationLine{ProductID: "prod-1kg", Quantity: 4},  // 4 kg
	), prods, tpls)
	require.NoError(t, err)
	require.InDelta(t, 9.0, plan.TotalWeightKg, 1e-9)
	require.Len(t, plan.Units, 2)
	require.Len(t, plan.Items, 2)

	// A second allocation of the committed units leaves 1 kg.
	batch.Units = plan.Units
	remaining := batch.RemainingKg(func(id string) float64 { return tpls[id].WeightKg })
	require.InDelta(t, 1.0, remaining, 1e-9)

	_, err = PlanAllocation(batch, allocReq(AllocationLine{ProductID: "prod-1kg", Quantity: 2}), prods, tpls)
	require.ErrorIs(t, err, ErrInsufficientWeight)
}

func TestPlanAllocationEpsilonBoundary(t *testing.T) {
	prods, tpls := testCatalog()
	batch := completedBatch(5)

	// Exactly the remaining weight passes.
	plan, err := PlanAllocation(batch, allocReq(AllocationLine{ProductID: "prod-250", Quantity: 20}), prods, tpls)
	require.NoError(t, err)
	require.InDelta(t, 5.0, plan.TotalWeightKg, 1e-9)

	// One more unit breaches the epsilon tolerance.
	_, err = PlanAllocation(batch, allocReq(AllocationLine{ProductID: "prod-250", Quantity: 21}), prods, tpls)
	require.ErrorIs(t, err, ErrInsufficientWeight)
}

func TestPlanAllocationRejectsBadLines(t *testing.T) {
	prods, tpls := testCatalog()
	batch := completedBatch(10)

	_, err := PlanAllocation(batch, allocReq(AllocationLine{ProductID: "prod-250", Quantity: 0}), prods, tpls)
	require.ErrorIs(t, err, ErrInvalidLine)

	_, err = PlanAllocation(batch, allocReq(AllocationLine{ProductID: "nope", Quantity: 1}), prods, tpls)
	require.ErrorIs(t, err, ErrInvalidLine)

	// Merchandise has no packaging template and cannot be packaged.
	_, err = PlanAllocation(batch, allocReq(AllocationLine{ProductID: "prod-mug", Quantity: 1}), prods, tpls)
	require.ErrorIs(t, err, ErrInvalidLine)

	_, err = PlanAllocation(batch, AllocationRequest{
		BatchID:        "batch-1",
		ProductionDate: time.Now(),
	}, prods, tpls)
	require.ErrorIs(t, err, ErrValidation)
}

func TestPlanAllocationRequiresCompletedBatch(t *testing.T) {
	prods, tpls := testCatalog()
	batch := completedBatch(10)
	batch.Status = StatusInProgress

	_, err := PlanAllocation(batch, allocReq(AllocationLine{ProductID: "prod-250", Quantity: 1}), prods, tpls)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPlanAllocationSKUsDistinctWithinPlan(t *testing.T) {
	prods, tpls := testCatalog()
	batch := completedBatch(10)

	lines := make([]AllocationLine, 30)
	for i := range lines {
		lines[i] = AllocationLine{ProductID: "prod-250", Quantity: 1}
	}
	plan, err := PlanAllocation(batch, allocReq(lines...), prods, tpls)
	require.NoError(t, err)
	require.Len(t, plan.Units, 30)

	seen := make(map[string]struct{}, len(plan.Units))
	for _, unit := range plan.Units {
		_, dup := seen[unit.SKU]
		require.False(t, dup, "sku %s issued twice", unit.SKU)
		seen[unit.SKU] = struct{}{}
	}
}

func TestPlanAllocationDerivedFields(t *testing.T) {
	prods, tpls := testCatalog()
	batch := completedBatch(10)

	plan, err := PlanAllocation(batch, allocReq(AllocationLine{ProductID: "prod-250", Quantity: 8}), prods, tpls)
	require.NoError(t, err)
	require.Len(t, plan.Units, 1)

	unit := plan.Units[0]
	require.Equal(t, "250g", unit.SizeLabel)
	require.Regexp(t, regexp.MustCompile(`^ESP250-4821-\d{4}$`), unit.SKU)
	require.Equal(t, time.Date(2026, 11, 19, 0, 0, 0, 0, time.UTC), unit.ExpiryDate)
	require.InDelta(t, 4.0, unit.PackagingCostTotal, 1e-9)
	// Packaging date defaults to the production date.
	require.Equal(t, unit.ProductionDate, unit.PackagingDate)

	item := plan.Items[0]
	require.Equal(t, unit.SKU, item.SKU)
	require.Equal(t, 8, item.Quantity)
	require.Equal(t, "loc-1", item.LocationID)
	// Unit cost covers roasted coffee plus packaging material.
	require.InDelta(t, 18*0.25+0.5, item.UnitCost, 1e-9)
	require.Equal(t, unit.ExpiryDate, item.ExpiryDate)
}

func TestRoundWaste(t *testing.T) {
	require.InDelta(t, 15.0, RoundWaste(20, 17), 1e-9)
	require.InDelta(t, 16.67, RoundWaste(12, 10), 1e-9)
	require.InDelta(t, 0.0, RoundWaste(0, 10), 1e-9)
}

func TestNewBatchCode(t *testing.T) {
	code := NewBatchCode(time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC))
	require.Regexp(t, regexp.MustCompile(`^B-202608-\d{4}$`), code)
}
