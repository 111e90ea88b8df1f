package pos

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/doha-roastery/roastery/internal/inventory"
	"github.com/doha-roastery/roastery/internal/masterdata/products"
	mdshared "github.com/doha-roastery/roastery/internal/masterdata/shared"
)

type memoryRepo struct {
	items     map[string]*inventory.Item
	sales     map[string]*Sale
	returns   map[string]*Return
	shifts    map[string]*Shift
	reprints  []ReprintEntry
	movements []CashMovement
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		items:   make(map[string]*inventory.Item),
		sales:   make(map[string]*Sale),
		returns: make(map[string]*Return),
		shifts:  make(map[string]*Shift),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) ListSales(ctx context.Context, filter SaleFilter) ([]Sale, error) {
	var out []Sale
	for _, sale := range r.sales {
		if filter.LocationID != "" && sale.LocationID != filter.LocationID {
			continue
		}
		if filter.ShiftID != "" && sale.ShiftID != filter.ShiftID {
			continue
		}
		out = append(out, *sale)
	}
	return out, nil
}

func (r *memoryRepo) GetSale(ctx context.Context, id string) (Sale, error) {
	sale, ok := r.sales[id]
	if !ok {
		return Sale{}, ErrSaleNotFound
	}
	return *sale, nil
}

func (r *memoryRepo) ListReturns(ctx context.Context, status ReturnStatus, limit int) ([]Return, error) {
	var out []Return
	for _, ret := range r.returns {
		if status != "" && ret.Status != status {
			continue
		}
		out = append(out, *ret)
	}
	return out, nil
}

func (r *memoryRepo) GetOpenShift(ctx context.Context, locationID, cashier string) (Shift, error) {
	for _, shift := range r.shifts {
		if shift.LocationID == locationID && shift.Cashier == cashier && shift.Status == ShiftOpen {
			return *shift, nil
		}
	}
	return Shift{}, ErrShiftNotFound
}

func (r *memoryRepo) InsertShift(ctx context.Context, shift Shift) error {
	stored := shift
	r.shifts[shift.ID] = &stored
	return nil
}

func (r *memoryRepo) InsertReprint(ctx context.Context, entry ReprintEntry) error {
	r.reprints = append(r.reprints, entry)
	return nil
}

func (r *memoryRepo) ListReprints(ctx context.Context, saleID string) ([]ReprintEntry, error) {
	var out []ReprintEntry
	for _, entry := range r.reprints {
		if entry.SaleID == saleID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListCashMovements(ctx context.Context, shiftID string) ([]CashMovement, error) {
	var out []CashMovement
	for _, m := range r.movements {
		if m.ShiftID == shiftID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (t *memoryTx) GetItemForUpdate(ctx context.Context, id string) (inventory.Item, error) {
	item, ok := t.repo.items[id]
	if !ok {
		return inventory.Item{}, inventory.ErrItemNotFound
	}
	return *item, nil
}

func (t *memoryTx) FindItemAtLocationByName(ctx context.Context, locationID, productName string) (inventory.Item, error) {
	var oldest *inventory.Item
	for _, item := range t.repo.items {
		if item.LocationID != locationID || item.ProductName != productName {
			continue
		}
		if oldest == nil || item.CreatedAt.Before(oldest.CreatedAt) {
			oldest = item
		}
	}
	if oldest == nil {
		return inventory.Item{}, inventory.ErrItemNotFound
	}
	return *oldest, nil
}

func (t *memoryTx) UpdateItemQuantity(ctx context.Context, id string, quantity int, version int64) error {
	item, ok := t.repo.items[id]
	if !ok || item.Version != version {
		return inventory.ErrItemNotFound
	}
	item.Quantity = quantity
	item.Version++
	return nil
}

func (t *memoryTx) InsertSale(ctx context.Context, sale Sale) error {
	stored := sale
	t.repo.sales[sale.ID] = &stored
	return nil
}

func (t *memoryTx) GetSaleForUpdate(ctx context.Context, id string) (Sale, error) {
	return t.repo.GetSale(ctx, id)
}

func (t *memoryTx) InsertReturn(ctx context.Context, ret Return) error {
	stored := ret
	t.repo.returns[ret.ID] = &stored
	return nil
}

func (t *memoryTx) GetReturnForUpdate(ctx context.Context, id string) (Return, error) {
	ret, ok := t.repo.returns[id]
	if !ok {
		return Return{}, ErrReturnNotFound
	}
	return *ret, nil
}

func (t *memoryTx) SumReturnedQuantities(ctx context.Context, saleID string) (map[string]int, error) {
	out := make(map[string]int)
	for _, ret := range t.repo.returns {
		if ret.SaleID != saleID || ret.Status == ReturnRejected {
			continue
		}
		for _, line := range ret.Lines {
			out[line.SaleLineID] += line.Quantity
		}
	}
	return out, nil
}

func (t *memoryTx) MarkReturnResolved(ctx context.Context, id string, status ReturnStatus, resolvedBy string, resolvedAt time.Time) error {
	ret, ok := t.repo.returns[id]
	if !ok {
		return ErrReturnNotFound
	}
	if ret.Status != ReturnPending {
		return ErrAlreadyResolved
	}
	ret.Status = status
	ret.ResolvedBy = resolvedBy
	ret.ResolvedAt = resolvedAt
	return nil
}

func (t *memoryTx) GetShiftForUpdate(ctx context.Context, id string) (Shift, error) {
	shift, ok := t.repo.shifts[id]
	if !ok {
		return Shift{}, ErrShiftNotFound
	}
	return *shift, nil
}

func (t *memoryTx) AddShiftCashSales(ctx context.Context, id string, amount float64) error {
	shift, ok := t.repo.shifts[id]
	if !ok {
		return ErrShiftNotFound
	}
	if shift.Status != ShiftOpen {
		return ErrShiftClosed
	}
	shift.CashSales += amount
	return nil
}

func (t *memoryTx) AddShiftCashRefunds(ctx context.Context, id string, amount float64) error {
	shift, ok := t.repo.shifts[id]
	if !ok {
		return ErrShiftNotFound
	}
	if shift.Status != ShiftOpen {
		return ErrShiftClosed
	}
	shift.CashRefunds += amount
	return nil
}

func (t *memoryTx) InsertCashMovement(ctx context.Context, movement CashMovement) error {
	t.repo.movements = append(t.repo.movements, movement)
	return nil
}

func (t *memoryTx) SumCashMovements(ctx context.Context, shiftID string) (float64, float64, error) {
	var in, out float64
	for _, m := range t.repo.movements {
		if m.ShiftID != shiftID {
			continue
		}
		switch m.Direction {
		case MovementIn:
			in += m.Amount
		case MovementOut:
			out += m.Amount
		}
	}
	return in, out, nil
}

func (t *memoryTx) CloseShift(ctx context.Context, shift Shift) error {
	stored, ok := t.repo.shifts[shift.ID]
	if !ok {
		return ErrShiftNotFound
	}
	if stored.Status != ShiftOpen {
		return ErrShiftClosed
	}
	*stored = shift
	return nil
}

type stubCatalog struct {
	products map[string]products.Product
	recipes  map[string]products.Recipe
	addOns   map[string]products.AddOn
}

func (c stubCatalog) Get(ctx context.Context, id string) (products.Product, error) {
	p, ok := c.products[id]
	if !ok {
		return products.Product{}, mdshared.ErrNotFound
	}
	return p, nil
}

func (c stubCatalog) GetRecipe(ctx context.Context, productID string) (products.Recipe, error) {
	r, ok := c.recipes[productID]
	if !ok {
		return products.Recipe{}, mdshared.ErrNotFound
	}
	return r, nil
}

func (c stubCatalog) GetAddOns(ctx context.Context, ids []string) (map[string]products.AddOn, error) {
	out := make(map[string]products.AddOn, len(ids))
	for _, id := range ids {
		if a, ok := c.addOns[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func newDrinkTestService(repo *memoryRepo, catalog stubCatalog) *Service {
	svc := NewService(repo, catalog, nil, nil, nil, nil, ServiceConfig{TaxRate: 0.05})
	svc.now = func() time.Time { return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC) }
	return svc
}

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, nil, nil, nil, nil, nil, ServiceConfig{TaxRate: 0.05})
	svc.now = func() time.Time { return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC) }
	return svc
}

func seedItem(repo *memoryRepo, id, name, sku, locationID string, qty int, price float64) {
	repo.items[id] = &inventory.Item{
		ID:          id,
		ProductID:   "prod-" + id,
		ProductName: name,
		SKU:         sku,
		LocationID:  locationID,
		Quantity:    qty,
		Price:       price,
	}
}

func TestCheckoutComputesTotals(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-1", "Espresso Blend 250g", "ESP250-4821-1001", "loc-cafe", 10, 40)
	seedItem(repo, "item-2", "Ceramic Mug", "MUG-0001", "loc-cafe", 5, 25)
	svc := newTestService(repo)

	sale, err := svc.Checkout(context.Background(), CheckoutInput{
		LocationID:    "loc-cafe",
		Cashier:       "fatima",
		ClientRef:     uuid.NewString(),
		PaymentMethod: PaymentCard,
		Lines: []CheckoutLine{
			{ItemID: "item-1", Quantity: 2},
			{ItemID: "item-2", Quantity: 1},
		},
	})
	require.NoError(t, err)
	require.InDelta(t, 105.0, sale.Subtotal, 1e-9)
	require.InDelta(t, 5.25, sale.TaxAmount, 1e-9)
	require.InDelta(t, 110.25, sale.Total, 1e-9)
	require.True(t, strings.HasPrefix(sale.InvoiceNo, "INV-20260825-"))
	require.Len(t, sale.Lines, 2)
	require.Equal(t, 8, repo.items["item-1"].Quantity)
	require.Equal(t, 4, repo.items["item-2"].Quantity)
}

type recordingReportCache struct {
	calls int
}

func (r *recordingReportCache) Invalidate(ctx context.Context) error {
	r.calls++
	return nil
}

func TestCheckoutInvalidatesReportCache(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-1", "Espresso Blend 250g", "ESP250-4821-1001", "loc-cafe", 10, 40)
	cache := &recordingReportCache{}
	svc := NewService(repo, nil, nil, nil, nil, cache, ServiceConfig{TaxRate: 0.05})
	svc.now = func() time.Time { return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC) }

	_, err := svc.Checkout(context.Background(), CheckoutInput{
		LocationID:    "loc-cafe",
		Cashier:       "fatima",
		ClientRef:     uuid.NewString(),
		PaymentMethod: PaymentCard,
		Lines:         []CheckoutLine{{ItemID: "item-1", Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, cache.calls)

	_, err = svc.Checkout(context.Background(), CheckoutInput{
		LocationID:    "loc-cafe",
		Cashier:       "fatima",
		ClientRef:     uuid.NewString(),
		PaymentMethod: "VOUCHER",
		Lines:         []CheckoutLine{{ItemID: "item-1", Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, 1, cache.calls, "failed checkout must not expire reports")
}

func TestCheckoutCashPaymentTracksChangeAndShift(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-1", "Espresso Blend 250g", "ESP250-4821-1001", "loc-cafe", 10, 40)
	svc := newTestService(repo)

	shift, err := svc.OpenShift(context.Background(), OpenShiftInput{
		LocationID:   "loc-cafe",
		Cashier:      "fatima",
		OpeningFloat: 200,
	})
	require.NoError(t, err)

	sale, err := svc.Checkout(context.Background(), CheckoutInput{
		LocationID:    "loc-cafe",
		ShiftID:       shift.ID,
		Cashier:       "fatima",
		ClientRef:     uuid.NewString(),
		PaymentMethod: PaymentCash,
		CashReceived:  50,
		Lines:         []CheckoutLine{{ItemID: "item-1", Quantity: 1}},
	})
	require.NoError(t, err)
	require.InDelta(t, 42.0, sale.Total, 1e-9)
	require.InDelta(t, 8.0, sale.ChangeDue, 1e-9)
	require.InDelta(t, 42.0, repo.shifts[shift.ID].CashSales, 1e-9)

	_, err = svc.Checkout(context.Background(), CheckoutInput{
		LocationID:    "loc-cafe",
		ShiftID:       shift.ID,
		Cashier:       "fatima",
		ClientRef:     uuid.NewString(),
		PaymentMethod: PaymentCash,
		CashReceived:  10,
		Lines:         []CheckoutLine{{ItemID: "item-1", Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCheckoutClampsOversoldLotAtZero(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-1", "Espresso Blend 250g", "ESP250-4821-1001", "loc-cafe", 3, 40)
	svc := newTestService(repo)

	sale, err := svc.Checkout(context.Background(), CheckoutInput{
		LocationID:    "loc-cafe",
		Cashier:       "fatima",
		ClientRef:     uuid.NewString(),
		PaymentMethod: PaymentCard,
		Lines:         []CheckoutLine{{ItemID: "item-1", Quantity: 4}},
	})
	require.NoError(t, err)
	require.Equal(t, 4, sale.Lines[0].Quantity)
	require.InDelta(t, 160.0, sale.Subtotal, 1e-9)
	require.Equal(t, 0, repo.items["item-1"].Quantity)
}

func TestCheckoutDrinkDrawsRecipeIngredients(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-beans", "Espresso Beans", "ING-BEANS", "loc-cafe", 5000, 0)
	seedItem(repo, "item-milk", "Whole Milk", "ING-MILK", "loc-cafe", 3000, 0)
	catalog := stubCatalog{
		products: map[string]products.Product{
			"prod-latte": {ID: "prod-latte", Name: "Latte", Category: products.CategoryDrink, BasePrice: 20},
		},
		recipes: map[string]products.Recipe{
			"prod-latte": {ProductID: "prod-latte", Ingredients: []products.RecipeIngredient{
				{IngredientID: "item-beans", Name: "Espresso Beans", Amount: 18, Unit: "g"},
				{IngredientID: "item-gone", Name: "Whole Milk", Amount: 200, Unit: "ml"},
			}},
		},
	}
	svc := newDrinkTestService(repo, catalog)

	sale, err := svc.Checkout(context.Background(), CheckoutInput{
		LocationID:    "loc-cafe",
		Cashier:       "fatima",
		ClientRef:     uuid.NewString(),
		PaymentMethod: PaymentCard,
		Lines:         []CheckoutLine{{ProductID: "prod-latte", Size: SizeLarge, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Len(t, sale.Lines, 1)
	require.Empty(t, sale.Lines[0].ItemID)
	require.Empty(t, sale.Lines[0].SKU)
	require.Equal(t, "Latte", sale.Lines[0].ProductName)
	require.InDelta(t, 30.0, sale.Lines[0].UnitPrice, 1e-9)
	require.InDelta(t, 60.0, sale.Subtotal, 1e-9)
	// 18g at the large multiplier for two drinks.
	require.Equal(t, 5000-54, repo.items["item-beans"].Quantity)
	// Milk lot matched by name after the stale ingredient ID missed.
	require.Equal(t, 3000-600, repo.items["item-milk"].Quantity)
}

func TestCheckoutDrinkAddOns(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-beans", "Espresso Beans", "ING-BEANS", "loc-cafe", 1000, 0)
	catalog := stubCatalog{
		products: map[string]products.Product{
			"prod-latte": {ID: "prod-latte", Name: "Latte", Category: products.CategoryDrink, BasePrice: 20},
		},
		recipes: map[string]products.Recipe{
			"prod-latte": {ProductID: "prod-latte", Ingredients: []products.RecipeIngredient{
				{IngredientID: "item-beans", Name: "Espresso Beans", Amount: 18, Unit: "g"},
			}},
		},
		addOns: map[string]products.AddOn{
			"ao-shot":    {ID: "ao-shot", Name: "Espresso Beans", Price: 5, IngredientID: "item-beans"},
			"ao-caramel": {ID: "ao-caramel", Name: "Caramel Syrup", Price: 3},
		},
	}
	svc := newDrinkTestService(repo, catalog)

	sale, err := svc.Checkout(context.Background(), CheckoutInput{
		LocationID:    "loc-cafe",
		Cashier:       "fatima",
		ClientRef:     uuid.NewString(),
		PaymentMethod: PaymentCard,
		Lines: []CheckoutLine{{
			ProductID: "prod-latte",
			AddOnIDs:  []string{"ao-shot", "ao-caramel"},
			Quantity:  2,
		}},
	})
	require.NoError(t, err)
	require.InDelta(t, 28.0, sale.Lines[0].UnitPrice, 1e-9)
	// Recipe draw of 36 plus one extra-shot unit per drink.
	require.Equal(t, 1000-38, repo.items["item-beans"].Quantity)

	_, err = svc.Checkout(context.Background(), CheckoutInput{
		LocationID:    "loc-cafe",
		Cashier:       "fatima",
		ClientRef:     uuid.NewString(),
		PaymentMethod: PaymentCard,
		Lines:         []CheckoutLine{{ProductID: "prod-latte", AddOnIDs: []string{"ao-missing"}, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCheckoutDrinkClampsIngredientAtZero(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-milk", "Whole Milk", "ING-MILK", "loc-cafe", 100, 0)
	catalog := stubCatalog{
		products: map[string]products.Product{
			"prod-latte": {ID: "prod-latte", Name: "Latte", Category: products.CategoryDrink, BasePrice: 20},
		},
		recipes: map[string]products.Recipe{
			"prod-latte": {ProductID: "prod-latte", Ingredients: []products.RecipeIngredient{
				{IngredientID: "item-milk", Name: "Whole Milk", Amount: 200, Unit: "ml"},
			}},
		},
	}
	svc := newDrinkTestService(repo, catalog)

	_, err := svc.Checkout(context.Background(), CheckoutInput{
		LocationID:    "loc-cafe",
		Cashier:       "fatima",
		ClientRef:     uuid.NewString(),
		PaymentMethod: PaymentCard,
		Lines:         []CheckoutLine{{ProductID: "prod-latte", Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, 0, repo.items["item-milk"].Quantity)
}

func TestCheckoutDrinkWithoutRecipeSellsAtBasePrice(t *testing.T) {
	repo := newMemoryRepo()
	catalog := stubCatalog{
		products: map[string]products.Product{
			"prod-tea": {ID: "prod-tea", Name: "Karak Tea", Category: products.CategoryDrink, BasePrice: 8},
		},
	}
	svc := newDrinkTestService(repo, catalog)

	sale, err := svc.Checkout(context.Background(), CheckoutInput{
		LocationID:    "loc-cafe",
		Cashier:       "fatima",
		ClientRef:     uuid.NewString(),
		PaymentMethod: PaymentCard,
		Lines:         []CheckoutLine{{ProductID: "prod-tea", Size: SizeSmall, Quantity: 1}},
	})
	require.NoError(t, err)
	require.InDelta(t, 6.0, sale.Subtotal, 1e-9)
}

func TestCheckoutRejectsStockedProductAsDrink(t *testing.T) {
	repo := newMemoryRepo()
	catalog := stubCatalog{
		products: map[string]products.Product{
			"prod-esp": {ID: "prod-esp", Name: "Espresso Blend 250g", Category: products.CategoryCoffee, BasePrice: 40},
		},
	}
	svc := newDrinkTestService(repo, catalog)

	_, err := svc.Checkout(context.Background(), CheckoutInput{
		LocationID:    "loc-cafe",
		Cashier:       "fatima",
		ClientRef:     uuid.NewString(),
		PaymentMethod: PaymentCard,
		Lines:         []CheckoutLine{{ProductID: "prod-esp", Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Checkout(context.Background(), CheckoutInput{
		LocationID:    "loc-cafe",
		Cashier:       "fatima",
		ClientRef:     uuid.NewString(),
		PaymentMethod: PaymentCard,
		Lines:         []CheckoutLine{{ItemID: "item-1", ProductID: "prod-esp", Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestResolveReturnSkipsDrinkLines(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-milk", "Whole Milk", "ING-MILK", "loc-cafe", 1000, 0)
	catalog := stubCatalog{
		products: map[string]products.Product{
			"prod-latte": {ID: "prod-latte", Name: "Latte", Category: products.CategoryDrink, BasePrice: 20},
		},
		recipes: map[string]products.Recipe{
			"prod-latte": {ProductID: "prod-latte", Ingredients: []products.RecipeIngredient{
				{IngredientID: "item-milk", Name: "Whole Milk", Amount: 200, Unit: "ml"},
			}},
		},
	}
	svc := newDrinkTestService(repo, catalog)
	ctx := context.Background()

	sale, err := svc.Checkout(ctx, CheckoutInput{
		LocationID:    "loc-cafe",
		Cashier:       "fatima",
		ClientRef:     uuid.NewString(),
		PaymentMethod: PaymentCard,
		Lines:         []CheckoutLine{{ProductID: "prod-latte", Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, 800, repo.items["item-milk"].Quantity)

	ret, err := svc.SubmitReturn(ctx, SubmitReturnInput{
		SaleID:      sale.ID,
		Reason:      "spilled at handover",
		RequestedBy: "fatima",
		Lines:       []SubmitReturnLine{{SaleLineID: sale.Lines[0].ID, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Empty(t, ret.Lines[0].ItemID)

	_, err = svc.ResolveReturn(ctx, ResolveReturnInput{ReturnID: ret.ID, Approve: true, ResolvedBy: "marwa"})
	require.NoError(t, err)
	// A prepared drink cannot go back on the shelf.
	require.Equal(t, 800, repo.items["item-milk"].Quantity)
}

func TestCheckoutSplitPayment(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-1", "Espresso Blend 250g", "ESP250-4821-1001", "loc-cafe", 10, 40)
	svc := newTestService(repo)

	shift, err := svc.OpenShift(context.Background(), OpenShiftInput{
		LocationID:   "loc-cafe",
		Cashier:      "fatima",
		OpeningFloat: 100,
	})
	require.NoError(t, err)

	_, err = svc.Checkout(context.Background(), CheckoutInput{
		LocationID:    "loc-cafe",
		ShiftID:       shift.ID,
		Cashier:       "fatima",
		ClientRef:     uuid.NewString(),
		PaymentMethod: PaymentSplit,
		Breakdown:     &PaymentBreakdown{Cash: 10, Card: 10},
		Lines:         []CheckoutLine{{ItemID: "item-1", Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrValidation)

	sale, err := svc.Checkout(context.Background(), CheckoutInput{
		LocationID:    "loc-cafe",
		ShiftID:       shift.ID,
		Cashier:       "fatima",
		ClientRef:     uuid.NewString(),
		PaymentMethod: PaymentSplit,
		Breakdown:     &PaymentBreakdown{Cash: 20, Card: 22, CardReference: "AUTH-991"},
		Lines:         []CheckoutLine{{ItemID: "item-1", Quantity: 1}},
	})
	require.NoError(t, err)
	require.NotNil(t, sale.Breakdown)
	require.InDelta(t, 20.0, sale.Breakdown.Cash, 1e-9)
	require.Equal(t, "AUTH-991", sale.CardReference)
	require.InDelta(t, 20.0, repo.shifts[shift.ID].CashSales, 1e-9)
}

func TestCheckoutRejectsUnknownPaymentMethod(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-1", "Espresso Blend 250g", "ESP250-4821-1001", "loc-cafe", 10, 40)
	svc := newTestService(repo)

	_, err := svc.Checkout(context.Background(), CheckoutInput{
		LocationID:    "loc-cafe",
		Cashier:       "fatima",
		ClientRef:     uuid.NewString(),
		PaymentMethod: PaymentMethod("CHEQUE"),
		Lines:         []CheckoutLine{{ItemID: "item-1", Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCheckoutRejectsItemFromOtherLocation(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-1", "Espresso Blend 250g", "ESP250-4821-1001", "loc-warehouse", 10, 40)
	svc := newTestService(repo)

	_, err := svc.Checkout(context.Background(), CheckoutInput{
		LocationID:    "loc-cafe",
		Cashier:       "fatima",
		ClientRef:     uuid.NewString(),
		PaymentMethod: PaymentCard,
		Lines:         []CheckoutLine{{ItemID: "item-1", Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, 10, repo.items["item-1"].Quantity)
}

func TestShiftCloseReconcilesDrawer(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-1", "Espresso Blend 250g", "ESP250-4821-1001", "loc-cafe", 10, 40)
	svc := newTestService(repo)

	shift, err := svc.OpenShift(context.Background(), OpenShiftInput{
		LocationID:   "loc-cafe",
		Cashier:      "fatima",
		OpeningFloat: 200,
	})
	require.NoError(t, err)

	_, err = svc.OpenShift(context.Background(), OpenShiftInput{
		LocationID:   "loc-cafe",
		Cashier:      "fatima",
		OpeningFloat: 100,
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Checkout(context.Background(), CheckoutInput{
		LocationID:    "loc-cafe",
		ShiftID:       shift.ID,
		Cashier:       "fatima",
		ClientRef:     uuid.NewString(),
		PaymentMethod: PaymentCash,
		CashReceived:  100,
		Lines:         []CheckoutLine{{ItemID: "item-1", Quantity: 2}},
	})
	require.NoError(t, err)

	closed, err := svc.CloseShift(context.Background(), CloseShiftInput{
		ShiftID:     shift.ID,
		CountedCash: 280,
		ClosedBy:    "fatima",
	})
	require.NoError(t, err)
	require.Equal(t, ShiftClosed, closed.Status)
	require.InDelta(t, 284.0, closed.ExpectedCash, 1e-9)
	require.InDelta(t, -4.0, closed.Variance, 1e-9)

	_, err = svc.CloseShift(context.Background(), CloseShiftInput{ShiftID: shift.ID, CountedCash: 280})
	require.ErrorIs(t, err, ErrShiftClosed)
}

func TestCashMovementsAdjustExpectedCash(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	shift, err := svc.OpenShift(context.Background(), OpenShiftInput{
		LocationID:   "loc-cafe",
		Cashier:      "fatima",
		OpeningFloat: 200,
	})
	require.NoError(t, err)

	_, err = svc.RecordCashMovement(context.Background(), CashMovementInput{
		ShiftID:   shift.ID,
		Direction: MovementIn,
		Amount:    50,
		Reason:    "change run from the safe",
		CreatedBy: "fatima",
	})
	require.NoError(t, err)

	_, err = svc.RecordCashMovement(context.Background(), CashMovementInput{
		ShiftID:   shift.ID,
		Direction: MovementOut,
		Amount:    30,
		Reason:    "courier tip payout",
		CreatedBy: "fatima",
	})
	require.NoError(t, err)

	_, err = svc.RecordCashMovement(context.Background(), CashMovementInput{
		ShiftID:   shift.ID,
		Direction: MovementOut,
		Amount:    -5,
		Reason:    "bad amount",
		CreatedBy: "fatima",
	})
	require.ErrorIs(t, err, ErrValidation)

	movements, err := svc.ListCashMovements(context.Background(), shift.ID)
	require.NoError(t, err)
	require.Len(t, movements, 2)

	closed, err := svc.CloseShift(context.Background(), CloseShiftInput{
		ShiftID:     shift.ID,
		CountedCash: 220,
		ClosedBy:    "fatima",
	})
	require.NoError(t, err)
	require.InDelta(t, 220.0, closed.ExpectedCash, 1e-9)
	require.InDelta(t, 0.0, closed.Variance, 1e-9)

	_, err = svc.RecordCashMovement(context.Background(), CashMovementInput{
		ShiftID:   shift.ID,
		Direction: MovementIn,
		Amount:    10,
		Reason:    "late top up",
		CreatedBy: "fatima",
	})
	require.ErrorIs(t, err, ErrShiftClosed)
}

func TestApprovedCashReturnReducesExpectedCash(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-1", "Espresso Blend 250g", "ESP250-4821-1001", "loc-cafe", 10, 40)
	svc := newTestService(repo)

	shift, err := svc.OpenShift(context.Background(), OpenShiftInput{
		LocationID:   "loc-cafe",
		Cashier:      "fatima",
		OpeningFloat: 100,
	})
	require.NoError(t, err)

	sale, err := svc.Checkout(context.Background(), CheckoutInput{
		LocationID:    "loc-cafe",
		ShiftID:       shift.ID,
		Cashier:       "fatima",
		ClientRef:     uuid.NewString(),
		PaymentMethod: PaymentCash,
		CashReceived:  100,
		Lines:         []CheckoutLine{{ItemID: "item-1", Quantity: 2}},
	})
	require.NoError(t, err)

	ret, err := svc.SubmitReturn(context.Background(), SubmitReturnInput{
		SaleID:      sale.ID,
		Reason:      "ground instead of whole bean",
		RequestedBy: "fatima",
		Lines:       []SubmitReturnLine{{SaleLineID: sale.Lines[0].ID, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.ResolveReturn(context.Background(), ResolveReturnInput{
		ReturnID:   ret.ID,
		Approve:    true,
		ResolvedBy: "manager",
	})
	require.NoError(t, err)
	require.InDelta(t, 42.0, repo.shifts[shift.ID].CashRefunds, 1e-9)

	closed, err := svc.CloseShift(context.Background(), CloseShiftInput{
		ShiftID:     shift.ID,
		CountedCash: 142,
		ClosedBy:    "fatima",
	})
	require.NoError(t, err)
	require.InDelta(t, 142.0, closed.ExpectedCash, 1e-9)
}

func TestReturnTypeTracksCoverage(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-1", "Espresso Blend 250g", "ESP250-4821-1001", "loc-cafe", 10, 40)
	svc := newTestService(repo)
	sale := checkoutSale(t, svc)

	partial, err := svc.SubmitReturn(context.Background(), SubmitReturnInput{
		SaleID:      sale.ID,
		Reason:      "one bag was dented",
		RequestedBy: "fatima",
		Lines:       []SubmitReturnLine{{SaleLineID: sale.Lines[0].ID, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, ReturnPartial, partial.Type)

	rest, err := svc.SubmitReturn(context.Background(), SubmitReturnInput{
		SaleID:      sale.ID,
		Reason:      "customer cancelled the order",
		RequestedBy: "fatima",
		Lines:       []SubmitReturnLine{{SaleLineID: sale.Lines[0].ID, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, ReturnFull, rest.Type)
}

func checkoutSale(t *testing.T, svc *Service) Sale {
	t.Helper()
	sale, err := svc.Checkout(context.Background(), CheckoutInput{
		LocationID:    "loc-cafe",
		Cashier:       "fatima",
		ClientRef:     uuid.NewString(),
		PaymentMethod: PaymentCard,
		Lines:         []CheckoutLine{{ItemID: "item-1", Quantity: 3}},
	})
	require.NoError(t, err)
	return sale
}

func TestSubmitReturnCapsAtSoldQuantity(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-1", "Espresso Blend 250g", "ESP250-4821-1001", "loc-cafe", 10, 40)
	svc := newTestService(repo)
	sale := checkoutSale(t, svc)

	ret, err := svc.SubmitReturn(context.Background(), SubmitReturnInput{
		SaleID:      sale.ID,
		Reason:      "customer changed mind",
		RequestedBy: "fatima",
		Lines:       []SubmitReturnLine{{SaleLineID: sale.Lines[0].ID, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, ReturnPending, ret.Status)
	require.InDelta(t, 84.0, ret.RefundTotal, 1e-9)

	_, err = svc.SubmitReturn(context.Background(), SubmitReturnInput{
		SaleID:      sale.ID,
		Reason:      "customer changed mind",
		RequestedBy: "fatima",
		Lines:       []SubmitReturnLine{{SaleLineID: sale.Lines[0].ID, Quantity: 2}},
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.SubmitReturn(context.Background(), SubmitReturnInput{
		SaleID:      sale.ID,
		Reason:      "customer changed mind",
		RequestedBy: "fatima",
		Lines:       []SubmitReturnLine{{SaleLineID: sale.Lines[0].ID, Quantity: 1}},
	})
	require.NoError(t, err)
}

func TestResolveReturnRestocksOnce(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-1", "Espresso Blend 250g", "ESP250-4821-1001", "loc-cafe", 10, 40)
	svc := newTestService(repo)
	sale := checkoutSale(t, svc)
	require.Equal(t, 7, repo.items["item-1"].Quantity)

	ret, err := svc.SubmitReturn(context.Background(), SubmitReturnInput{
		SaleID:      sale.ID,
		Reason:      "stale batch on the shelf",
		RequestedBy: "fatima",
		Lines:       []SubmitReturnLine{{SaleLineID: sale.Lines[0].ID, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, 7, repo.items["item-1"].Quantity)

	resolved, err := svc.ResolveReturn(context.Background(), ResolveReturnInput{
		ReturnID:   ret.ID,
		Approve:    true,
		ResolvedBy: "manager",
	})
	require.NoError(t, err)
	require.Equal(t, ReturnApproved, resolved.Status)
	require.Equal(t, 9, repo.items["item-1"].Quantity)

	_, err = svc.ResolveReturn(context.Background(), ResolveReturnInput{
		ReturnID:   ret.ID,
		Approve:    true,
		ResolvedBy: "manager",
	})
	require.ErrorIs(t, err, ErrAlreadyResolved)
	require.Equal(t, 9, repo.items["item-1"].Quantity)
}

func TestResolveReturnRejectLeavesStock(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-1", "Espresso Blend 250g", "ESP250-4821-1001", "loc-cafe", 10, 40)
	svc := newTestService(repo)
	sale := checkoutSale(t, svc)

	ret, err := svc.SubmitReturn(context.Background(), SubmitReturnInput{
		SaleID:      sale.ID,
		Reason:      "suspected buyer remorse",
		RequestedBy: "fatima",
		Lines:       []SubmitReturnLine{{SaleLineID: sale.Lines[0].ID, Quantity: 3}},
	})
	require.NoError(t, err)

	resolved, err := svc.ResolveReturn(context.Background(), ResolveReturnInput{
		ReturnID:   ret.ID,
		Approve:    false,
		ResolvedBy: "manager",
	})
	require.NoError(t, err)
	require.Equal(t, ReturnRejected, resolved.Status)
	require.Equal(t, 7, repo.items["item-1"].Quantity)
}

func TestReprintReceiptLogsEveryCopy(t *testing.T) {
	repo := newMemoryRepo()
	seedItem(repo, "item-1", "Espresso Blend 250g", "ESP250-4821-1001", "loc-cafe", 10, 40)
	svc := newTestService(repo)
	sale := checkoutSale(t, svc)

	receipt, err := svc.ReprintReceipt(context.Background(), sale.ID, "fatima", "printer jam on first copy")
	require.NoError(t, err)
	require.Contains(t, receipt, "REPRINT")
	require.Contains(t, receipt, sale.InvoiceNo)

	entries, err := svc.ListReprints(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "printer jam on first copy", entries[0].Reason)

	_, err = svc.ReprintReceipt(context.Background(), sale.ID, "fatima", "  ")
	require.ErrorIs(t, err, ErrValidation)
}
