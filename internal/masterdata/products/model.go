package products

import (
	"time"
)

// Category groups products on the register.
type Category string

const (
	CategoryCoffee Category = "coffee"
	CategoryDrink  Category = "drink"
	CategoryFood   Category = "food"
	CategoryMerch  Category = "merchandise"
	CategoryEquip  Category = "equipment"
)

// RecipeIngredient is one component drawn from stock when a drink is
// sold. IngredientID points at an inventory lot; matching falls back to
// the name when the lot has been replaced.
type RecipeIngredient struct {
	IngredientID string  `json:"ingredient_id,omitempty"`
	Name         string  `json:"name"`
	Amount       float64 `json:"amount"`
	Unit         string  `json:"unit"`
}

// Recipe lists what goes into one prepared drink.
type Recipe struct {
	ProductID   string             `json:"product_id"`
	Ingredients []RecipeIngredient `json:"ingredients"`
}

// AddOn is an extra a customer can add to a drink. An add-on with an
// ingredient link also draws that lot down at checkout.
type AddOn struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Price        float64   `json:"price"`
	IngredientID string    `json:"ingredient_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Product represents a sellable catalog entry. Coffee products are tied
// to a packaging template; allocation produces their sellable stock.
// Drink products carry a recipe instead and are prepared to order.
type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Category   Category  `json:"category"`
	TemplateID string    `json:"template_id,omitempty"`
	BasePrice  float64   `json:"base_price"`
	ImageURL   string    `json:"image_url,omitempty"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
