package roasting

import (
	"errors"
	"time"
)

// Level enumerates supported roast profiles.
type Level string

const (
	LevelLight  Level = "Light"
	LevelMedium Level = "Medium"
	LevelDark   Level = "Dark"
)

// Status tracks the roast step lifecycle. A batch stays mutable through
// allocation after it is COMPLETED; "fully allocated" is derived from the
// remaining weight, never stored.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	// StatusDeleted is a soft-delete marker used only as a listing filter.
	StatusDeleted Status = "DELETED"
)

// Batch models one roast run from green beans to packaged units.
type Batch struct {
	ID           string          `json:"id"`
	Code         string          `json:"code"`
	BeanID       string          `json:"bean_id"`
	RoastDate    time.Time       `json:"roast_date"`
	Level        Level           `json:"level"`
	PreWeightKg  float64         `json:"pre_weight_kg"`
	PostWeightKg float64         `json:"post_weight_kg"`
	WastePct     float64         `json:"waste_pct"`
	Status       Status          `json:"status"`
	Operator     string          `json:"operator"`
	Notes        string          `json:"notes,omitempty"`
	CostPerKg    float64         `json:"cost_per_kg"`
	Version      int64           `json:"version"`
	Units        []PackagingUnit `json:"units,omitempty"`
	History      []HistoryEntry  `json:"history,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// PackagingUnit is one discrete packaged SKU carved out of a batch.
// Units are immutable once created.
type PackagingUnit struct {
	ID                 string    `json:"id"`
	BatchID            string    `json:"batch_id"`
	TemplateID         string    `json:"template_id"`
	ProductID          string    `json:"product_id"`
	LocationID         string    `json:"location_id"`
	SizeLabel          string    `json:"size_label"`
	Quantity           int       `json:"quantity"`
	Operator           string    `json:"operator"`
	ProductionDate     time.Time `json:"production_date"`
	PackagingDate      time.Time `json:"packaging_date"`
	ExpiryDate         time.Time `json:"expiry_date"`
	PackagingCostTotal float64   `json:"packaging_cost_total"`
	SKU                string    `json:"sku"`
	CreatedAt          time.Time `json:"created_at"`
}

// HistoryEntry records one action against a batch.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Operator  string    `json:"operator"`
	Details   string    `json:"details,omitempty"`
}

// History actions.
const (
	ActionCreate     = "CREATE"
	ActionFinish     = "FINISH"
	ActionProduction = "BATCH_PRODUCTION"
)

// PackagedWeightKg sums the roasted weight already committed to units,
// resolving each unit's template through the provided weight lookup.
func (b *Batch) PackagedWeightKg(templateWeight func(templateID string) float64) float64 {
	var packaged float64
	for _, unit := range b.Units {
		packaged += float64(unit.Quantity) * templateWeight(unit.TemplateID)
	}
	return packaged
}

// RemainingKg is the weight still allocatable from this batch.
func (b *Batch) RemainingKg(templateWeight func(templateID string) float64) float64 {
	return b.PostWeightKg - b.PackagedWeightKg(templateWeight)
}

// WeightEpsilon tolerates accumulated rounding across repeated weight
// arithmetic; comparisons against remaining weight use it on both sides.
const WeightEpsilon = 0.001

// ListFilter filters batch listings.
type ListFilter struct {
	Search    string
	Level     Level
	ReadyOnly bool
	Limit     int
}

var (
	// ErrBatchNotFound indicates a missing or soft-deleted batch.
	ErrBatchNotFound = errors.New("roasting: batch not found")
	// ErrBeanNotFound indicates a missing green bean lot.
	ErrBeanNotFound = errors.New("roasting: bean lot not found")
	// ErrInsufficientStock indicates the bean lot cannot cover the requested pre-roast weight.
	ErrInsufficientStock = errors.New("roasting: insufficient green bean stock")
	// ErrInsufficientWeight indicates an allocation exceeds the batch's remaining weight.
	ErrInsufficientWeight = errors.New("roasting: insufficient remaining batch weight")
	// ErrInvalidLine indicates an allocation line references an ineligible product.
	ErrInvalidLine = errors.New("roasting: invalid allocation line")
	// ErrInvalidTransition indicates a lifecycle operation from the wrong status.
	ErrInvalidTransition = errors.New("roasting: invalid batch transition")
	// ErrValidation indicates malformed operation input.
	ErrValidation = errors.New("roasting: validation failed")
	// ErrVersionConflict indicates a concurrent writer advanced the batch first.
	ErrVersionConflict = errors.New("roasting: batch modified concurrently")
)
