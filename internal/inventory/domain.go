package inventory

import (
	"errors"
	"time"
)

// Item is one lot of sellable stock at a location. Allocation always
// inserts fresh rows so every lot keeps its own batch, SKU and expiry;
// lots are never merged on insert.
type Item struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	SKU         string    `json:"sku"`
	BatchID     string    `json:"batch_id,omitempty"`
	LocationID  string    `json:"location_id"`
	Quantity    int       `json:"quantity"`
	UnitCost    float64   `json:"unit_cost"`
	Price       float64   `json:"price"`
	RoastDate   time.Time `json:"roast_date"`
	ExpiryDate  time.Time `json:"expiry_date"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewItemParams describes a lot to insert, typically produced by batch
// allocation.
type NewItemParams struct {
	ProductID   string
	ProductName string
	SKU         string
	BatchID     string
	LocationID  string
	Quantity    int
	UnitCost    float64
	Price       float64
	RoastDate   time.Time
	ExpiryDate  time.Time
}

// AdjustmentStatus is the approval state of a stock adjustment.
type AdjustmentStatus string

const (
	AdjustmentPending  AdjustmentStatus = "PENDING"
	AdjustmentApproved AdjustmentStatus = "APPROVED"
	AdjustmentRejected AdjustmentStatus = "REJECTED"
)

// Adjustment is a manual stock correction. High-value adjustments park
// in PENDING until a manager resolves them; the stock effect applies
// exactly once, either at submission or at approval.
type Adjustment struct {
	ID          string           `json:"id"`
	ItemID      string           `json:"item_id"`
	ItemName    string           `json:"item_name"`
	SKU         string           `json:"sku"`
	LocationID  string           `json:"location_id"`
	Delta       int              `json:"delta"`
	Reason      string           `json:"reason"`
	Notes       string           `json:"notes"`
	ValueImpact float64          `json:"value_impact"`
	Status      AdjustmentStatus `json:"status"`
	RequestedBy string           `json:"requested_by"`
	ResolvedBy  string           `json:"resolved_by,omitempty"`
	ResolvedAt  time.Time        `json:"resolved_at"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Adjustment reasons mirror what floor staff actually report.
const (
	ReasonDamage     = "DAMAGE"
	ReasonExpiry     = "EXPIRY"
	ReasonRecount    = "RECOUNT"
	ReasonTheft      = "THEFT"
	ReasonCorrection = "CORRECTION"
)

// TransferStatus is the lifecycle state of a transfer order.
type TransferStatus string

const (
	TransferDraft     TransferStatus = "DRAFT"
	TransferApproved  TransferStatus = "APPROVED"
	TransferCompleted TransferStatus = "COMPLETED"
	TransferCancelled TransferStatus = "CANCELLED"
)

// TransferOrder moves stock between locations. Stock only moves when
// the order reaches COMPLETED; DRAFT and APPROVED orders have no
// inventory effect and CANCELLED is terminal.
type TransferOrder struct {
	ID             string         `json:"id"`
	Code           string         `json:"code"`
	SourceLocation string         `json:"source_location_id"`
	DestLocation   string         `json:"dest_location_id"`
	Status         TransferStatus `json:"status"`
	Lines          []TransferLine `json:"lines,omitempty"`
	TotalValue     float64        `json:"total_value"`
	Notes          string         `json:"notes,omitempty"`
	CreatedBy      string         `json:"created_by"`
	ApprovedBy     string         `json:"approved_by,omitempty"`
	CompletedBy    string         `json:"completed_by,omitempty"`
	CancelledBy    string         `json:"cancelled_by,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	ApprovedAt     time.Time      `json:"approved_at"`
	CompletedAt    time.Time      `json:"completed_at"`
	CancelledAt    time.Time      `json:"cancelled_at"`
}

// TransferLine is one item movement inside a transfer order.
type TransferLine struct {
	ID          string  `json:"id"`
	TransferID  string  `json:"transfer_id"`
	ItemID      string  `json:"item_id"`
	ProductName string  `json:"product_name"`
	SKU         string  `json:"sku"`
	Quantity    int     `json:"quantity"`
	UnitCost    float64 `json:"unit_cost"`
}

// ItemFilter filters inventory listings.
type ItemFilter struct {
	LocationID    string
	ProductID     string
	Search        string
	ExpiringInDay int
	Page          int
	Limit         int
}

var (
	// ErrItemNotFound indicates a missing inventory lot.
	ErrItemNotFound = errors.New("inventory: item not found")
	// ErrAdjustmentNotFound indicates a missing adjustment.
	ErrAdjustmentNotFound = errors.New("inventory: adjustment not found")
	// ErrTransferNotFound indicates a missing transfer order.
	ErrTransferNotFound = errors.New("inventory: transfer not found")
	// ErrAlreadyResolved indicates a second resolution of the same adjustment.
	ErrAlreadyResolved = errors.New("inventory: adjustment already resolved")
	// ErrInvalidTransition indicates a transfer transition that skips a state.
	ErrInvalidTransition = errors.New("inventory: invalid transfer transition")
	// ErrInsufficientStock indicates a transfer manifest line exceeding what its lot holds.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrValidation indicates malformed operation input.
	ErrValidation = errors.New("inventory: validation failed")
)
