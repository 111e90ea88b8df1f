package beans

import (
	"time"
)

// Bean represents a green coffee bean lot available for roasting.
type Bean struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Origin    string    `json:"origin"`
	Process   string    `json:"process"`
	StockKg   float64   `json:"stock_kg"`
	CostPerKg float64   `json:"cost_per_kg"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
