package reports

import "time"

// SalesSummary aggregates register activity over a period.
type SalesSummary struct {
	From             time.Time      `json:"from"`
	To               time.Time      `json:"to"`
	LocationID       string         `json:"location_id,omitempty"`
	GrossSales       float64        `json:"gross_sales"`
	TaxCollected     float64        `json:"tax_collected"`
	NetSales         float64        `json:"net_sales"`
	TransactionCount int            `json:"transaction_count"`
	CashTotal        float64        `json:"cash_total"`
	CardTotal        float64        `json:"card_total"`
	TopProducts      []ProductSales `json:"top_products"`
}

// ProductSales is one product's share of a period's sales.
type ProductSales struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	Revenue     float64 `json:"revenue"`
}

// BatchYield reports the mass balance of one roast batch: what went in,
// what came out, and how much of the output is packaged.
type BatchYield struct {
	BatchID       string  `json:"batch_id"`
	Code          string  `json:"code"`
	Level         string  `json:"level"`
	PreWeightKg   float64 `json:"pre_weight_kg"`
	PostWeightKg  float64 `json:"post_weight_kg"`
	WastePct      float64 `json:"waste_pct"`
	AllocatedKg   float64 `json:"allocated_kg"`
	RemainingKg   float64 `json:"remaining_kg"`
	UnitsPackaged int     `json:"units_packaged"`
}

// ValuationRow is one lot's contribution to inventory value.
type ValuationRow struct {
	LocationID   string  `json:"location_id"`
	LocationName string  `json:"location_name"`
	ProductName  string  `json:"product_name"`
	SKU          string  `json:"sku"`
	Quantity     int     `json:"quantity"`
	UnitCost     float64 `json:"unit_cost"`
	TotalValue   float64 `json:"total_value"`
}

// ValuationSummary is the full stock valuation with a grand total.
type ValuationSummary struct {
	Rows       []ValuationRow `json:"rows"`
	TotalValue float64        `json:"total_value"`
}

// ExpiringLot flags packaged stock approaching its expiry date.
type ExpiringLot struct {
	ItemID      string    `json:"item_id"`
	SKU         string    `json:"sku"`
	ProductName string    `json:"product_name"`
	LocationID  string    `json:"location_id"`
	Quantity    int       `json:"quantity"`
	ExpiryDate  time.Time `json:"expiry_date"`
	DaysLeft    int       `json:"days_left"`
}
