package roasting

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doha-roastery/roastery/internal/inventory"
	"github.com/doha-roastery/roastery/internal/masterdata/products"
	"github.com/doha-roastery/roastery/internal/masterdata/templates"
)

// AllocationLine requests a quantity of one packaged product.
type AllocationLine struct {
	ProductID string
	Quantity  int
}

// AllocationRequest carves packaged units out of a completed batch.
type AllocationRequest struct {
	BatchID        string
	LocationID     string
	Operator       string
	ClientRef      string
	ProductionDate time.Time
	PackagingDate  time.Time
	Lines          []AllocationLine
}

// AllocationPlan is the computed outcome of an allocation request:
// the packaging units to record and the inventory lots to insert.
type AllocationPlan struct {
	Units         []PackagingUnit
	Items         []inventory.NewItemParams
	TotalWeightKg float64
}

// PlanAllocation validates an allocation request against the batch's
// remaining weight and produces the units and inventory lots to write.
// It is a pure computation over already-loaded catalog data; the caller
// holds the batch row lock and persists the plan atomically.
//
// The conservation rule: the weight committed across all units of a
// batch may never exceed its post-roast weight beyond WeightEpsilon.
func PlanAllocation(batch Batch, req AllocationRequest, prods map[string]products.Product, tpls map[string]templates.Template) (AllocationPlan, error) {
	if batch.Status != StatusCompleted {
		return AllocationPlan{}, fmt.Errorf("%w: batch %s is %s, allocation requires %s",
			ErrInvalidTransition, batch.Code, batch.Status, StatusCompleted)
	}
	if len(req.Lines) == 0 {
		return AllocationPlan{}, fmt.Errorf("%w: at least one allocation line is required", ErrValidation)
	}
	if req.ProductionDate.IsZero() {
		return AllocationPlan{}, fmt.Errorf("%w: production date is required", ErrValidation)
	}
	packagingDate := req.PackagingDate
	if packagingDate.IsZero() {
		packagingDate = req.ProductionDate
	}

	remaining := batch.RemainingKg(func(templateID string) float64 {
		return tpls[templateID].WeightKg
	})

	plan := AllocationPlan{
		Units: make([]PackagingUnit, 0, len(req.Lines)),
		Items: make([]inventory.NewItemParams, 0, len(req.Lines)),
	}
	usedSKUs := make(map[string]struct{}, len(req.Lines))

	for i, line := range req.Lines {
		if line.Quantity <= 0 {
			return AllocationPlan{}, fmt.Errorf("%w: line %d quantity must be positive", ErrInvalidLine, i)
		}
		product, ok := prods[line.ProductID]
		if !ok {
			return AllocationPlan{}, fmt.Errorf("%w: line %d references unknown product %s", ErrInvalidLine, i, line.ProductID)
		}
		if !product.IsActive {
			return AllocationPlan{}, fmt.Errorf("%w: line %d product %s is inactive", ErrInvalidLine, i, product.Name)
		}
		if product.Category != products.CategoryCoffee || product.TemplateID == "" {
			return AllocationPlan{}, fmt.Errorf("%w: line %d product %s is not a packaged coffee", ErrInvalidLine, i, product.Name)
		}
		tpl, ok := tpls[product.TemplateID]
		if !ok {
			return AllocationPlan{}, fmt.Errorf("%w: line %d product %s has unknown template %s", ErrInvalidLine, i, product.Name, product.TemplateID)
		}

		lineWeight := float64(line.Quantity) * tpl.WeightKg
		plan.TotalWeightKg += lineWeight

		expiry := req.ProductionDate.AddDate(0, 0, tpl.ShelfLifeDays)
		roastedCost := batch.CostPerKg * tpl.WeightKg
		unitCost := roastedCost + tpl.UnitCost
		sku := newSKU(tpl.SKUPrefix, batch.Code, usedSKUs)

		plan.Units = append(plan.Units, PackagingUnit{
			ID:                 uuid.NewString(),
			BatchID:            batch.ID,
			TemplateID:         tpl.ID,
			ProductID:          product.ID,
			LocationID:         req.LocationID,
			SizeLabel:          tpl.SizeLabel,
			Quantity:           line.Quantity,
			Operator:           req.Operator,
			ProductionDate:     req.ProductionDate,
			PackagingDate:      packagingDate,
			ExpiryDate:         expiry,
			PackagingCostTotal: float64(line.Quantity) * tpl.UnitCost,
			SKU:                sku,
		})
		plan.Items = append(plan.Items, inventory.NewItemParams{
			ProductID:   product.ID,
			ProductName: product.Name,
			SKU:         sku,
			BatchID:     batch.ID,
			LocationID:  req.LocationID,
			Quantity:    line.Quantity,
			UnitCost:    unitCost,
			Price:       product.BasePrice,
			RoastDate:   batch.RoastDate,
			ExpiryDate:  expiry,
		})
	}

	if plan.TotalWeightKg > remaining+WeightEpsilon {
		return AllocationPlan{}, fmt.Errorf("%w: requested %.3f kg, %.3f kg remaining in batch %s",
			ErrInsufficientWeight, plan.TotalWeightKg, remaining, batch.Code)
	}
	return plan, nil
}

// newSKU builds a lot SKU from the template prefix, the batch code's
// trailing segment and a random 4 digit sequence. Suffixes already
// handed out in this plan are skipped, so two lines sharing a prefix
// never collide within one allocation; across allocations the unique
// index on roast_batch_units.sku backstops the draw.
func newSKU(prefix, batchCode string, used map[string]struct{}) string {
	suffix := batchCode
	if idx := strings.LastIndex(batchCode, "-"); idx >= 0 {
		suffix = batchCode[idx+1:]
	}
	for {
		sku := fmt.Sprintf("%s-%s-%04d", prefix, suffix, 1000+rand.Intn(9000))
		if _, taken := used[sku]; taken {
			continue
		}
		used[sku] = struct{}{}
		return sku
	}
}

// NewBatchCode builds a batch code like B-202601-4821.
func NewBatchCode(now time.Time) string {
	return fmt.Sprintf("B-%s-%04d", now.Format("200601"), 1000+rand.Intn(9000))
}

// RoundWaste computes the waste percentage of a roast, rounded to two
// decimals. It is computed exactly once, when the batch is finished.
func RoundWaste(preKg, postKg float64) float64 {
	if preKg <= 0 {
		return 0
	}
	pct := (preKg - postKg) / preKg * 100
	return math.Round(pct*100) / 100
}
