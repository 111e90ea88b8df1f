package pos

import (
	"errors"
	"time"
)

// PaymentMethod is how a sale was settled.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "CASH"
	PaymentCard   PaymentMethod = "CARD"
	PaymentMobile PaymentMethod = "MOBILE"
	PaymentSplit  PaymentMethod = "SPLIT"
)

// PaymentBreakdown splits one sale across tender types. Used only for
// SPLIT payments; the parts must add up to the sale total.
type PaymentBreakdown struct {
	Cash          float64 `json:"cash"`
	Card          float64 `json:"card"`
	Mobile        float64 `json:"mobile"`
	CardReference string  `json:"card_reference,omitempty"`
}

// BeverageSize scales a drink's price and its recipe draw.
type BeverageSize string

const (
	SizeSmall  BeverageSize = "S"
	SizeMedium BeverageSize = "M"
	SizeLarge  BeverageSize = "L"
)

// Multiplier returns the size factor applied to a drink's base price
// and its recipe amounts. An unset size counts as medium.
func (s BeverageSize) Multiplier() float64 {
	switch s {
	case SizeSmall:
		return 0.75
	case SizeLarge:
		return 1.5
	default:
		return 1.0
	}
}

// Sale is one completed checkout.
type Sale struct {
	ID            string        `json:"id"`
	InvoiceNo     string        `json:"invoice_no"`
	LocationID    string        `json:"location_id"`
	ShiftID       string        `json:"shift_id,omitempty"`
	Cashier       string        `json:"cashier"`
	Lines         []SaleLine    `json:"lines"`
	Subtotal      float64       `json:"subtotal"`
	TaxRate       float64       `json:"tax_rate"`
	TaxAmount     float64       `json:"tax_amount"`
	Total         float64       `json:"total"`
	PaymentMethod PaymentMethod     `json:"payment_method"`
	Breakdown     *PaymentBreakdown `json:"payment_breakdown,omitempty"`
	CardReference string            `json:"card_reference,omitempty"`
	CashReceived  float64           `json:"cash_received,omitempty"`
	ChangeDue     float64           `json:"change_due,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// SaleLine is one sold position. Stocked lots carry an item ID and SKU;
// prepared drinks carry neither, their stock effect is the recipe draw.
type SaleLine struct {
	ID          string  `json:"id"`
	SaleID      string  `json:"sale_id"`
	ItemID      string  `json:"item_id,omitempty"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	SKU         string  `json:"sku,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
}

// ReturnStatus is the approval state of a sales return.
type ReturnStatus string

const (
	ReturnPending  ReturnStatus = "PENDING_APPROVAL"
	ReturnApproved ReturnStatus = "APPROVED"
	ReturnRejected ReturnStatus = "REJECTED"
)

// ReturnType distinguishes a full refund from a partial one.
type ReturnType string

const (
	ReturnFull    ReturnType = "FULL"
	ReturnPartial ReturnType = "PARTIAL"
)

// Return is a post-sale refund request. Stock goes back on the shelf
// only when a manager approves it.
type Return struct {
	ID          string       `json:"id"`
	SaleID      string       `json:"sale_id"`
	InvoiceNo   string       `json:"invoice_no"`
	Type        ReturnType   `json:"type"`
	Lines       []ReturnLine `json:"lines"`
	Reason      string       `json:"reason"`
	RefundTotal float64      `json:"refund_total"`
	Status      ReturnStatus `json:"status"`
	RequestedBy string       `json:"requested_by"`
	ResolvedBy  string       `json:"resolved_by,omitempty"`
	ResolvedAt  time.Time    `json:"resolved_at"`
	CreatedAt   time.Time    `json:"created_at"`
}

// ReturnLine is one returned position.
type ReturnLine struct {
	ID         string  `json:"id"`
	ReturnID   string  `json:"return_id"`
	SaleLineID string  `json:"sale_line_id"`
	ItemID     string  `json:"item_id"`
	Quantity   int     `json:"quantity"`
	Amount     float64 `json:"amount"`
}

// ShiftStatus is whether a register shift is open.
type ShiftStatus string

const (
	ShiftOpen   ShiftStatus = "OPEN"
	ShiftClosed ShiftStatus = "CLOSED"
)

// Shift is one cashier session at a register. Closing reconciles the
// drawer: expected cash is the opening float plus cash sales minus cash
// refunds, adjusted by drawer movements; variance is counted minus
// expected.
type Shift struct {
	ID           string      `json:"id"`
	LocationID   string      `json:"location_id"`
	Cashier      string      `json:"cashier"`
	Status       ShiftStatus `json:"status"`
	OpeningFloat float64     `json:"opening_float"`
	CashSales    float64     `json:"cash_sales"`
	CashRefunds  float64     `json:"cash_refunds"`
	ExpectedCash float64     `json:"expected_cash"`
	CountedCash  float64     `json:"counted_cash"`
	Variance     float64     `json:"variance"`
	OpenedAt     time.Time   `json:"opened_at"`
	ClosedAt     time.Time   `json:"closed_at"`
}

// MovementDirection is whether drawer cash went in or out.
type MovementDirection string

const (
	MovementIn  MovementDirection = "IN"
	MovementOut MovementDirection = "OUT"
)

// CashMovement is cash placed into or taken out of an open drawer
// outside of sales, a float top-up or a bank drop.
type CashMovement struct {
	ID        string            `json:"id"`
	ShiftID   string            `json:"shift_id"`
	Direction MovementDirection `json:"direction"`
	Amount    float64           `json:"amount"`
	Reason    string            `json:"reason"`
	CreatedBy string            `json:"created_by"`
	CreatedAt time.Time         `json:"created_at"`
}

// ReprintEntry logs every duplicate receipt, so refund fraud via
// reprinted originals stays traceable.
type ReprintEntry struct {
	ID        string    `json:"id"`
	SaleID    string    `json:"sale_id"`
	InvoiceNo string    `json:"invoice_no"`
	PrintedBy string    `json:"printed_by"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// SaleFilter filters sales listings.
type SaleFilter struct {
	LocationID string
	ShiftID    string
	From       time.Time
	To         time.Time
	Limit      int
}

var (
	// ErrSaleNotFound indicates a missing sale.
	ErrSaleNotFound = errors.New("pos: sale not found")
	// ErrReturnNotFound indicates a missing return.
	ErrReturnNotFound = errors.New("pos: return not found")
	// ErrShiftNotFound indicates a missing or closed shift.
	ErrShiftNotFound = errors.New("pos: shift not found")
	// ErrAlreadyResolved indicates a second resolution of the same return.
	ErrAlreadyResolved = errors.New("pos: return already resolved")
	// ErrShiftClosed indicates an operation against a closed shift.
	ErrShiftClosed = errors.New("pos: shift already closed")
	// ErrValidation indicates malformed operation input.
	ErrValidation = errors.New("pos: validation failed")
)
