package products

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/doha-roastery/roastery/internal/masterdata/shared"
)

type memoryRepo struct {
	products map[string]Product
	recipes  map[string][]RecipeIngredient
	addOns   map[string]AddOn
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products: make(map[string]Product),
		recipes:  make(map[string][]RecipeIngredient),
		addOns:   make(map[string]AddOn),
	}
}

func (r *memoryRepo) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	var out []Product
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Get(ctx context.Context, id string) (Product, error) {
	p, ok := r.products[id]
	if !ok {
		return Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) GetMany(ctx context.Context, ids []string) (map[string]Product, error) {
	out := make(map[string]Product, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (r *memoryRepo) Create(ctx context.Context, product Product) (Product, error) {
	r.products[product.ID] = product
	return product, nil
}

func (r *memoryRepo) Update(ctx context.Context, id string, product Product) error {
	if _, ok := r.products[id]; !ok {
		return shared.ErrNotFound
	}
	product.ID = id
	r.products[id] = product
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id string) error {
	delete(r.products, id)
	return nil
}

func (r *memoryRepo) GetRecipe(ctx context.Context, productID string) (Recipe, error) {
	ings, ok := r.recipes[productID]
	if !ok {
		return Recipe{}, shared.ErrNotFound
	}
	return Recipe{ProductID: productID, Ingredients: ings}, nil
}

func (r *memoryRepo) ReplaceRecipe(ctx context.Context, productID string, ingredients []RecipeIngredient) error {
	r.recipes[productID] = ingredients
	return nil
}

func (r *memoryRepo) ListAddOns(ctx context.Context) ([]AddOn, error) {
	var out []AddOn
	for _, a := range r.addOns {
		out = append(out, a)
	}
	return out, nil
}

func (r *memoryRepo) GetAddOns(ctx context.Context, ids []string) (map[string]AddOn, error) {
	out := make(map[string]AddOn, len(ids))
	for _, id := range ids {
		if a, ok := r.addOns[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (r *memoryRepo) CreateAddOn(ctx context.Context, addOn AddOn) (AddOn, error) {
	addOn.ID = "ao-" + addOn.Name
	r.addOns[addOn.ID] = addOn
	return addOn, nil
}

func (r *memoryRepo) DeleteAddOn(ctx context.Context, id string) error {
	if _, ok := r.addOns[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.addOns, id)
	return nil
}

func TestReplaceRecipeOnDrinkProduct(t *testing.T) {
	repo := newMemoryRepo()
	repo.products["prod-latte"] = Product{ID: "prod-latte", Name: "Latte", Category: CategoryDrink, BasePrice: 20}
	svc := NewService(repo)
	ctx := context.Background()

	recipe, err := svc.ReplaceRecipe(ctx, "prod-latte", []RecipeIngredient{
		{IngredientID: "item-beans", Name: "Espresso Beans", Amount: 18, Unit: "g"},
		{Name: "Whole Milk", Amount: 200, Unit: "ml"},
	})
	require.NoError(t, err)
	require.Len(t, recipe.Ingredients, 2)

	got, err := svc.GetRecipe(ctx, "prod-latte")
	require.NoError(t, err)
	require.Equal(t, "Espresso Beans", got.Ingredients[0].Name)
}

func TestReplaceRecipeRejectsNonDrink(t *testing.T) {
	repo := newMemoryRepo()
	repo.products["prod-esp"] = Product{ID: "prod-esp", Name: "Espresso Blend 250g", Category: CategoryCoffee, TemplateID: "tpl-250", BasePrice: 40}
	svc := NewService(repo)

	_, err := svc.ReplaceRecipe(context.Background(), "prod-esp", []RecipeIngredient{
		{Name: "Espresso Beans", Amount: 18, Unit: "g"},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestReplaceRecipeValidatesIngredients(t *testing.T) {
	repo := newMemoryRepo()
	repo.products["prod-latte"] = Product{ID: "prod-latte", Name: "Latte", Category: CategoryDrink, BasePrice: 20}
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.ReplaceRecipe(ctx, "prod-latte", nil)
	require.ErrorIs(t, err, shared.ErrRequiredField)

	_, err = svc.ReplaceRecipe(ctx, "prod-latte", []RecipeIngredient{{Name: "Milk", Amount: 0, Unit: "ml"}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.ReplaceRecipe(ctx, "prod-latte", []RecipeIngredient{{Name: "", Amount: 10, Unit: "ml"}})
	require.ErrorIs(t, err, shared.ErrRequiredField)
}

func TestGetRecipeMissing(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	_, err := svc.GetRecipe(context.Background(), "prod-unknown")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAddOnValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.CreateAddOn(ctx, AddOn{Name: "Extra Shot", Price: 5, IngredientID: "item-beans"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	_, err = svc.CreateAddOn(ctx, AddOn{Name: "", Price: 5})
	require.ErrorIs(t, err, shared.ErrRequiredField)

	_, err = svc.CreateAddOn(ctx, AddOn{Name: "Discounted", Price: -1})
	require.ErrorIs(t, err, shared.ErrValidation)

	require.NoError(t, svc.DeleteAddOn(ctx, created.ID))
	require.ErrorIs(t, svc.DeleteAddOn(ctx, created.ID), shared.ErrNotFound)
}
