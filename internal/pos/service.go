package pos

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doha-roastery/roastery/internal/inventory"
	"github.com/doha-roastery/roastery/internal/masterdata/products"
	mdshared "github.com/doha-roastery/roastery/internal/masterdata/shared"
	"github.com/doha-roastery/roastery/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListSales(ctx context.Context, filter SaleFilter) ([]Sale, error)
	GetSale(ctx context.Context, id string) (Sale, error)
	ListReturns(ctx context.Context, status ReturnStatus, limit int) ([]Return, error)
	GetOpenShift(ctx context.Context, locationID, cashier string) (Shift, error)
	InsertShift(ctx context.Context, shift Shift) error
	InsertReprint(ctx context.Context, entry ReprintEntry) error
	ListReprints(ctx context.Context, saleID string) ([]ReprintEntry, error)
	ListCashMovements(ctx context.Context, shiftID string) ([]CashMovement, error)
}

// CatalogPort resolves drink products, their recipes, and add-ons for
// checkout.
type CatalogPort interface {
	Get(ctx context.Context, id string) (products.Product, error)
	GetRecipe(ctx context.Context, productID string) (products.Recipe, error)
	GetAddOns(ctx context.Context, ids []string) (map[string]products.AddOn, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort records register throughput.
type MetricsPort interface {
	RecordSale(paymentMethod string)
}

// ReportCachePort expires cached reports after register writes.
type ReportCachePort interface {
	Invalidate(ctx context.Context) error
}

// ServiceConfig groups register settings.
type ServiceConfig struct {
	// TaxRate is the VAT fraction applied on top of the subtotal.
	TaxRate float64
}

// Service runs the register: checkout, shifts, returns, reprints.
type Service struct {
	repo        RepositoryPort
	catalog     CatalogPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	metrics     MetricsPort
	reports     ReportCachePort
	taxRate     float64
	now         func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, catalog CatalogPort, audit AuditPort, idem *shared.IdempotencyStore, metrics MetricsPort, reportCache ReportCachePort, cfg ServiceConfig) *Service {
	return &Service{repo: repo, catalog: catalog, audit: audit, idempotency: idem, metrics: metrics, reports: reportCache, taxRate: cfg.TaxRate, now: time.Now}
}

// CheckoutLine is one cart position. A stocked lot line sets ItemID; a
// prepared drink line sets ProductID instead, optionally with a size
// and add-ons.
type CheckoutLine struct {
	ItemID    string
	ProductID string
	Size      BeverageSize
	AddOnIDs  []string
	Quantity  int
}

// CheckoutInput captures one register transaction.
type CheckoutInput struct {
	LocationID    string
	ShiftID       string
	Cashier       string
	ClientRef     string
	PaymentMethod PaymentMethod
	CashReceived  float64
	CardReference string
	Breakdown     *PaymentBreakdown
	Lines         []CheckoutLine
}

// Checkout sells a cart. Every lot is locked and drawn down in one
// transaction; an oversold lot clamps at zero rather than blocking the
// sale. Drink lines draw their recipe ingredients instead of a shelf
// lot. The client ref makes a retried submission detectable instead of
// charging the customer twice.
func (s *Service) Checkout(ctx context.Context, input CheckoutInput) (Sale, error) {
	if strings.TrimSpace(input.LocationID) == "" {
		return Sale{}, fmt.Errorf("%w: location is required", ErrValidation)
	}
	if strings.TrimSpace(input.ClientRef) == "" {
		return Sale{}, fmt.Errorf("%w: client reference is required", ErrValidation)
	}
	if len(input.Lines) == 0 {
		return Sale{}, fmt.Errorf("%w: cart is empty", ErrValidation)
	}
	switch input.PaymentMethod {
	case PaymentCash, PaymentCard, PaymentMobile:
	case PaymentSplit:
		if input.Breakdown == nil {
			return Sale{}, fmt.Errorf("%w: split payment requires a breakdown", ErrValidation)
		}
		if input.Breakdown.Cash < 0 || input.Breakdown.Card < 0 || input.Breakdown.Mobile < 0 {
			return Sale{}, fmt.Errorf("%w: breakdown amounts must not be negative", ErrValidation)
		}
	default:
		return Sale{}, fmt.Errorf("%w: unknown payment method %q", ErrValidation, input.PaymentMethod)
	}

	key := "sale:" + input.ClientRef
	insertedKey := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "pos"); err != nil {
			return Sale{}, err
		}
		insertedKey = true
	}

	now := s.now()
	sale := Sale{
		ID:            uuid.NewString(),
		InvoiceNo:     newInvoiceNo(now),
		LocationID:    input.LocationID,
		ShiftID:       input.ShiftID,
		Cashier:       input.Cashier,
		TaxRate:       s.taxRate,
		PaymentMethod: input.PaymentMethod,
		CreatedAt:     now,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for i, line := range input.Lines {
			if line.Quantity <= 0 {
				return fmt.Errorf("%w: line %d quantity must be positive", ErrValidation, i)
			}
			var saleLine SaleLine
			var err error
			switch {
			case line.ItemID != "" && line.ProductID != "":
				return fmt.Errorf("%w: line %d sets both an item and a product", ErrValidation, i)
			case line.ItemID != "":
				saleLine, err = s.sellLot(ctx, tx, input.LocationID, i, line)
			case line.ProductID != "":
				saleLine, err = s.sellDrink(ctx, tx, input.LocationID, i, line)
			default:
				return fmt.Errorf("%w: line %d needs an item or a product", ErrValidation, i)
			}
			if err != nil {
				return err
			}
			saleLine.SaleID = sale.ID
			sale.Lines = append(sale.Lines, saleLine)
			sale.Subtotal += saleLine.LineTotal
		}

		sale.Subtotal = roundMoney(sale.Subtotal)
		sale.TaxAmount = roundMoney(sale.Subtotal * s.taxRate)
		sale.Total = roundMoney(sale.Subtotal + sale.TaxAmount)

		cashPortion := 0.0
		switch input.PaymentMethod {
		case PaymentCash:
			if input.CashReceived+1e-9 < sale.Total {
				return fmt.Errorf("%w: cash received %.2f is below total %.2f", ErrValidation, input.CashReceived, sale.Total)
			}
			sale.CashReceived = input.CashReceived
			sale.ChangeDue = roundMoney(input.CashReceived - sale.Total)
			cashPortion = sale.Total
		case PaymentCard, PaymentMobile:
			sale.CardReference = input.CardReference
		case PaymentSplit:
			parts := roundMoney(input.Breakdown.Cash + input.Breakdown.Card + input.Breakdown.Mobile)
			if math.Abs(parts-sale.Total) > 1e-9 {
				return fmt.Errorf("%w: breakdown sums to %.2f, total is %.2f", ErrValidation, parts, sale.Total)
			}
			breakdown := *input.Breakdown
			sale.Breakdown = &breakdown
			sale.CardReference = breakdown.CardReference
			cashPortion = breakdown.Cash
		}
		if cashPortion > 0 && sale.ShiftID != "" {
			if err := tx.AddShiftCashSales(ctx, sale.ShiftID, cashPortion); err != nil {
				return err
			}
		}
		return tx.InsertSale(ctx, sale)
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, key)
		}
		return Sale{}, err
	}

	s.recordAudit(ctx, input.Cashier, "pos.sale.checkout", sale.ID, map[string]any{
		"invoice_no": sale.InvoiceNo,
		"total":      sale.Total,
		"lines":      len(sale.Lines),
	})
	if s.metrics != nil {
		s.metrics.RecordSale(string(sale.PaymentMethod))
	}
	s.invalidateReports(ctx)
	return sale, nil
}

func (s *Service) sellLot(ctx context.Context, tx TxRepository, locationID string, i int, line CheckoutLine) (SaleLine, error) {
	item, err := tx.GetItemForUpdate(ctx, line.ItemID)
	if err != nil {
		return SaleLine{}, err
	}
	if item.LocationID != locationID {
		return SaleLine{}, fmt.Errorf("%w: line %d item %s is not at this location", ErrValidation, i, item.SKU)
	}
	// The projection may lag what is really on the shelf, so an
	// oversold line clamps the lot at zero instead of blocking the
	// sale.
	remaining := item.Quantity - line.Quantity
	if remaining < 0 {
		remaining = 0
	}
	if err := tx.UpdateItemQuantity(ctx, item.ID, remaining, item.Version); err != nil {
		return SaleLine{}, err
	}
	return SaleLine{
		ID:          uuid.NewString(),
		ItemID:      item.ID,
		ProductID:   item.ProductID,
		ProductName: item.ProductName,
		SKU:         item.SKU,
		Quantity:    line.Quantity,
		UnitPrice:   item.Price,
		LineTotal:   roundMoney(float64(line.Quantity) * item.Price),
	}, nil
}

// sellDrink prices a prepared drink and draws its recipe ingredients
// from stock. Ingredients match a lot by ID first, then by name; a
// missing ingredient lot does not block the sale.
func (s *Service) sellDrink(ctx context.Context, tx TxRepository, locationID string, i int, line CheckoutLine) (SaleLine, error) {
	if s.catalog == nil {
		return SaleLine{}, errors.New("pos: catalog not configured")
	}
	product, err := s.catalog.Get(ctx, line.ProductID)
	if err != nil {
		if errors.Is(err, mdshared.ErrNotFound) {
			return SaleLine{}, fmt.Errorf("%w: line %d references an unknown product", ErrValidation, i)
		}
		return SaleLine{}, err
	}
	if product.Category != products.CategoryDrink {
		return SaleLine{}, fmt.Errorf("%w: line %d: %s is sold from stock, not prepared", ErrValidation, i, product.Name)
	}
	switch line.Size {
	case "", SizeSmall, SizeMedium, SizeLarge:
	default:
		return SaleLine{}, fmt.Errorf("%w: line %d has unknown size %q", ErrValidation, i, line.Size)
	}
	multiplier := line.Size.Multiplier()
	unitPrice := product.BasePrice * multiplier

	addOns, err := s.catalog.GetAddOns(ctx, line.AddOnIDs)
	if err != nil {
		return SaleLine{}, err
	}
	for _, id := range line.AddOnIDs {
		addOn, ok := addOns[id]
		if !ok {
			return SaleLine{}, fmt.Errorf("%w: line %d references an unknown add-on", ErrValidation, i)
		}
		unitPrice += addOn.Price
	}
	unitPrice = roundMoney(unitPrice)

	recipe, err := s.catalog.GetRecipe(ctx, line.ProductID)
	if err != nil && !errors.Is(err, mdshared.ErrNotFound) {
		return SaleLine{}, err
	}
	for _, ing := range recipe.Ingredients {
		// Ingredient lots count whole units, so fractional draws round
		// up.
		draw := int(math.Ceil(ing.Amount * multiplier * float64(line.Quantity)))
		if err := s.drawIngredient(ctx, tx, locationID, ing.IngredientID, ing.Name, draw); err != nil {
			return SaleLine{}, err
		}
	}
	for _, id := range line.AddOnIDs {
		addOn := addOns[id]
		if addOn.IngredientID == "" {
			continue
		}
		if err := s.drawIngredient(ctx, tx, locationID, addOn.IngredientID, addOn.Name, line.Quantity); err != nil {
			return SaleLine{}, err
		}
	}

	return SaleLine{
		ID:          uuid.NewString(),
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    line.Quantity,
		UnitPrice:   unitPrice,
		LineTotal:   roundMoney(float64(line.Quantity) * unitPrice),
	}, nil
}

// drawIngredient locks an ingredient lot and deducts amount, clamping
// at zero. A lot that is gone from this location is skipped; recipes
// must not block a sale that already happened at the counter.
func (s *Service) drawIngredient(ctx context.Context, tx TxRepository, locationID, itemID, name string, amount int) error {
	if amount <= 0 {
		return nil
	}
	var item inventory.Item
	found := false
	if itemID != "" {
		got, err := tx.GetItemForUpdate(ctx, itemID)
		if err != nil && !errors.Is(err, inventory.ErrItemNotFound) {
			return err
		}
		if err == nil && got.LocationID == locationID {
			item, found = got, true
		}
	}
	if !found {
		got, err := tx.FindItemAtLocationByName(ctx, locationID, name)
		if errors.Is(err, inventory.ErrItemNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		item = got
	}
	remaining := item.Quantity - amount
	if remaining < 0 {
		remaining = 0
	}
	return tx.UpdateItemQuantity(ctx, item.ID, remaining, item.Version)
}

// OpenShiftInput opens a register shift.
type OpenShiftInput struct {
	LocationID   string
	Cashier      string
	OpeningFloat float64
}

// OpenShift opens a drawer session. A cashier keeps at most one open
// shift per location.
func (s *Service) OpenShift(ctx context.Context, input OpenShiftInput) (Shift, error) {
	if input.LocationID == "" || input.Cashier == "" {
		return Shift{}, fmt.Errorf("%w: location and cashier are required", ErrValidation)
	}
	if input.OpeningFloat < 0 {
		return Shift{}, fmt.Errorf("%w: opening float must not be negative", ErrValidation)
	}
	if _, err := s.repo.GetOpenShift(ctx, input.LocationID, input.Cashier); err == nil {
		return Shift{}, fmt.Errorf("%w: cashier already has an open shift here", ErrValidation)
	} else if !errors.Is(err, ErrShiftNotFound) {
		return Shift{}, err
	}

	shift := Shift{
		ID:           uuid.NewString(),
		LocationID:   input.LocationID,
		Cashier:      input.Cashier,
		Status:       ShiftOpen,
		OpeningFloat: input.OpeningFloat,
		OpenedAt:     s.now(),
	}
	if err := s.repo.InsertShift(ctx, shift); err != nil {
		return Shift{}, err
	}
	s.recordAudit(ctx, input.Cashier, "pos.shift.open", shift.ID, map[string]any{
		"location_id":   shift.LocationID,
		"opening_float": shift.OpeningFloat,
	})
	return shift, nil
}

// CloseShiftInput reconciles and closes a shift.
type CloseShiftInput struct {
	ShiftID     string
	CountedCash float64
	ClosedBy    string
}

// CloseShift reconciles the drawer and closes the shift. Closing twice
// fails; the first reconciliation stands.
func (s *Service) CloseShift(ctx context.Context, input CloseShiftInput) (Shift, error) {
	var closed Shift
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		shift, err := tx.GetShiftForUpdate(ctx, input.ShiftID)
		if err != nil {
			return err
		}
		if shift.Status != ShiftOpen {
			return ErrShiftClosed
		}
		movedIn, movedOut, err := tx.SumCashMovements(ctx, shift.ID)
		if err != nil {
			return err
		}
		shift.ExpectedCash = roundMoney(shift.OpeningFloat + shift.CashSales - shift.CashRefunds + movedIn - movedOut)
		shift.CountedCash = input.CountedCash
		shift.Variance = roundMoney(input.CountedCash - shift.ExpectedCash)
		shift.ClosedAt = s.now()
		shift.Status = ShiftClosed
		if err := tx.CloseShift(ctx, shift); err != nil {
			return err
		}
		closed = shift
		return nil
	})
	if err != nil {
		return Shift{}, err
	}

	s.recordAudit(ctx, input.ClosedBy, "pos.shift.close", closed.ID, map[string]any{
		"expected_cash": closed.ExpectedCash,
		"counted_cash":  closed.CountedCash,
		"variance":      closed.Variance,
	})
	return closed, nil
}

// CashMovementInput records drawer cash in or out.
type CashMovementInput struct {
	ShiftID   string
	Direction MovementDirection
	Amount    float64
	Reason    string
	CreatedBy string
}

// RecordCashMovement books cash moved into or out of an open drawer.
// Movements shift the expected cash at reconciliation.
func (s *Service) RecordCashMovement(ctx context.Context, input CashMovementInput) (CashMovement, error) {
	if input.Direction != MovementIn && input.Direction != MovementOut {
		return CashMovement{}, fmt.Errorf("%w: unknown movement direction %q", ErrValidation, input.Direction)
	}
	if input.Amount <= 0 {
		return CashMovement{}, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if strings.TrimSpace(input.Reason) == "" {
		return CashMovement{}, fmt.Errorf("%w: reason is required", ErrValidation)
	}

	movement := CashMovement{
		ID:        uuid.NewString(),
		ShiftID:   input.ShiftID,
		Direction: input.Direction,
		Amount:    roundMoney(input.Amount),
		Reason:    strings.TrimSpace(input.Reason),
		CreatedBy: input.CreatedBy,
		CreatedAt: s.now(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		shift, err := tx.GetShiftForUpdate(ctx, input.ShiftID)
		if err != nil {
			return err
		}
		if shift.Status != ShiftOpen {
			return ErrShiftClosed
		}
		return tx.InsertCashMovement(ctx, movement)
	})
	if err != nil {
		return CashMovement{}, err
	}

	s.recordAudit(ctx, input.CreatedBy, "pos.shift.cash_movement", movement.ID, map[string]any{
		"shift_id":  movement.ShiftID,
		"direction": string(movement.Direction),
		"amount":    movement.Amount,
	})
	return movement, nil
}

// ListCashMovements lists a shift's drawer movements.
func (s *Service) ListCashMovements(ctx context.Context, shiftID string) ([]CashMovement, error) {
	return s.repo.ListCashMovements(ctx, shiftID)
}

// SubmitReturnInput requests a refund on a past sale.
type SubmitReturnInput struct {
	SaleID      string
	Reason      string
	RequestedBy string
	Lines       []SubmitReturnLine
}

// SubmitReturnLine is one returned position request.
type SubmitReturnLine struct {
	SaleLineID string
	Quantity   int
}

// SubmitReturn opens a PENDING_APPROVAL return. Quantities are capped
// by what the sale actually sold minus what earlier returns already
// claimed; nothing restocks until approval.
func (s *Service) SubmitReturn(ctx context.Context, input SubmitReturnInput) (Return, error) {
	if len(input.Lines) == 0 {
		return Return{}, fmt.Errorf("%w: at least one return line is required", ErrValidation)
	}
	if strings.TrimSpace(input.Reason) == "" {
		return Return{}, fmt.Errorf("%w: reason is required", ErrValidation)
	}

	var ret Return
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, input.SaleID)
		if err != nil {
			return err
		}
		soldByLine := make(map[string]SaleLine, len(sale.Lines))
		for _, line := range sale.Lines {
			soldByLine[line.ID] = line
		}
		returned, err := tx.SumReturnedQuantities(ctx, sale.ID)
		if err != nil {
			return err
		}

		ret = Return{
			ID:          uuid.NewString(),
			SaleID:      sale.ID,
			InvoiceNo:   sale.InvoiceNo,
			Reason:      strings.TrimSpace(input.Reason),
			Status:      ReturnPending,
			RequestedBy: input.RequestedBy,
			CreatedAt:   s.now(),
		}
		for i, line := range input.Lines {
			if line.Quantity <= 0 {
				return fmt.Errorf("%w: line %d quantity must be positive", ErrValidation, i)
			}
			sold, ok := soldByLine[line.SaleLineID]
			if !ok {
				return fmt.Errorf("%w: line %d does not belong to this sale", ErrValidation, i)
			}
			if line.Quantity+returned[line.SaleLineID] > sold.Quantity {
				return fmt.Errorf("%w: line %d returns %d of %s, only %d returnable",
					ErrValidation, i, line.Quantity, sold.SKU, sold.Quantity-returned[line.SaleLineID])
			}
			amount := roundMoney(float64(line.Quantity) * sold.UnitPrice * (1 + sale.TaxRate))
			ret.Lines = append(ret.Lines, ReturnLine{
				ID:         uuid.NewString(),
				ReturnID:   ret.ID,
				SaleLineID: sold.ID,
				ItemID:     sold.ItemID,
				Quantity:   line.Quantity,
				Amount:     amount,
			})
			ret.RefundTotal += amount
		}
		ret.RefundTotal = roundMoney(ret.RefundTotal)
		ret.Type = returnType(sale, ret, returned)
		return tx.InsertReturn(ctx, ret)
	})
	if err != nil {
		return Return{}, err
	}

	s.recordAudit(ctx, input.RequestedBy, "pos.return.submit", ret.ID, map[string]any{
		"sale_id":      ret.SaleID,
		"refund_total": ret.RefundTotal,
	})
	return ret, nil
}

// ResolveReturnInput decides a pending return.
type ResolveReturnInput struct {
	ReturnID   string
	Approve    bool
	ResolvedBy string
}

// ResolveReturn approves or rejects a pending return. Approval restocks
// the returned lots exactly once; a second resolution returns
// ErrAlreadyResolved.
func (s *Service) ResolveReturn(ctx context.Context, input ResolveReturnInput) (Return, error) {
	var resolved Return
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ret, err := tx.GetReturnForUpdate(ctx, input.ReturnID)
		if err != nil {
			return err
		}
		if ret.Status != ReturnPending {
			return fmt.Errorf("%w: return is %s", ErrAlreadyResolved, ret.Status)
		}

		status := ReturnRejected
		if input.Approve {
			status = ReturnApproved
			for _, line := range ret.Lines {
				if line.ItemID == "" {
					// Prepared drinks have no shelf lot to restock.
					continue
				}
				item, err := tx.GetItemForUpdate(ctx, line.ItemID)
				if err != nil {
					if errors.Is(err, inventory.ErrItemNotFound) {
						// Lot was removed since the sale; the refund still
						// goes through without a restock target.
						continue
					}
					return err
				}
				if err := tx.UpdateItemQuantity(ctx, item.ID, item.Quantity+line.Quantity, item.Version); err != nil {
					return err
				}
			}
			sale, err := tx.GetSaleForUpdate(ctx, ret.SaleID)
			if err != nil {
				return err
			}
			if sale.PaymentMethod == PaymentCash && sale.ShiftID != "" {
				if err := tx.AddShiftCashRefunds(ctx, sale.ShiftID, ret.RefundTotal); err != nil {
					// The drawer only tracks the refund while its shift is
					// still open.
					if !errors.Is(err, ErrShiftClosed) {
						return err
					}
				}
			}
		}
		now := s.now()
		if err := tx.MarkReturnResolved(ctx, ret.ID, status, input.ResolvedBy, now); err != nil {
			return err
		}
		ret.Status = status
		ret.ResolvedBy = input.ResolvedBy
		ret.ResolvedAt = now
		resolved = ret
		return nil
	})
	if err != nil {
		return Return{}, err
	}

	s.recordAudit(ctx, input.ResolvedBy, "pos.return.resolve", resolved.ID, map[string]any{
		"status":       string(resolved.Status),
		"refund_total": resolved.RefundTotal,
	})
	s.invalidateReports(ctx)
	return resolved, nil
}

// ListSales lists sales.
func (s *Service) ListSales(ctx context.Context, filter SaleFilter) ([]Sale, error) {
	return s.repo.ListSales(ctx, filter)
}

// GetSale returns one sale.
func (s *Service) GetSale(ctx context.Context, id string) (Sale, error) {
	return s.repo.GetSale(ctx, id)
}

// ListReturns lists returns, optionally by status.
func (s *Service) ListReturns(ctx context.Context, status ReturnStatus, limit int) ([]Return, error) {
	return s.repo.ListReturns(ctx, status, limit)
}

// ReprintReceipt renders a duplicate receipt and logs who asked for it
// and why.
func (s *Service) ReprintReceipt(ctx context.Context, saleID, printedBy, reason string) (string, error) {
	if strings.TrimSpace(reason) == "" {
		return "", fmt.Errorf("%w: reprint reason is required", ErrValidation)
	}
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return "", err
	}
	entry := ReprintEntry{
		ID:        uuid.NewString(),
		SaleID:    sale.ID,
		InvoiceNo: sale.InvoiceNo,
		PrintedBy: printedBy,
		Reason:    strings.TrimSpace(reason),
		CreatedAt: s.now(),
	}
	if err := s.repo.InsertReprint(ctx, entry); err != nil {
		return "", err
	}
	s.recordAudit(ctx, printedBy, "pos.receipt.reprint", sale.ID, map[string]any{
		"invoice_no": sale.InvoiceNo,
		"reason":     entry.Reason,
	})
	return RenderReceipt(sale, true), nil
}

// ListReprints lists the reprint log of a sale.
func (s *Service) ListReprints(ctx context.Context, saleID string) ([]ReprintEntry, error) {
	return s.repo.ListReprints(ctx, saleID)
}

func (s *Service) recordAudit(ctx context.Context, actor, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "pos",
		EntityID: entityID,
		Meta:     meta,
	})
}

func (s *Service) invalidateReports(ctx context.Context) {
	if s.reports == nil {
		return
	}
	_ = s.reports.Invalidate(ctx)
}

// returnType reports FULL when this return, together with everything
// returned before it, covers every sold quantity of the sale.
func returnType(sale Sale, ret Return, previouslyReturned map[string]int) ReturnType {
	covered := make(map[string]int, len(previouslyReturned))
	for lineID, qty := range previouslyReturned {
		covered[lineID] = qty
	}
	for _, line := range ret.Lines {
		covered[line.SaleLineID] += line.Quantity
	}
	for _, sold := range sale.Lines {
		if covered[sold.ID] < sold.Quantity {
			return ReturnPartial
		}
	}
	return ReturnFull
}

// newInvoiceNo builds an invoice number like INV-20260829-1234.
func newInvoiceNo(now time.Time) string {
	return fmt.Sprintf("INV-%s-%04d", now.Format("20060102"), now.UnixNano()%9000+1000)
}

func roundMoney(value float64) float64 {
	return math.Round(value*100) / 100
}
