package locations

import (
	"time"
)

// Type distinguishes selling floors from storage.
type Type string

const (
	TypeCafe      Type = "CAFE"
	TypeWarehouse Type = "WAREHOUSE"
)

// Location is a physical site holding sellable inventory.
type Location struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      Type      `json:"type"`
	Address   string    `json:"address,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
