package templates

import (
	"time"
)

// Template defines a packaging size: how much roasted coffee one unit
// consumes and how its SKUs are labelled.
type Template struct {
	ID            string    `json:"id"`
	SizeLabel     string    `json:"size_label"`
	WeightKg      float64   `json:"weight_kg"`
	UnitCost      float64   `json:"unit_cost"`
	ShelfLifeDays int       `json:"shelf_life_days"`
	SKUPrefix     string    `json:"sku_prefix"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
