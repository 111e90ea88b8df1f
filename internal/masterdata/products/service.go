package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/doha-roastery/roastery/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	if strings.TrimSpace(id) == "" {
		return Product{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

// GetMany resolves a set of product IDs in one round trip. Missing IDs
// are absent from the result map.
func (s *Service) GetMany(ctx context.Context, ids []string) (map[string]Product, error) {
	return s.repo.GetMany(ctx, ids)
}

func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, product)
}

func (s *Service) Update(ctx context.Context, id string, product Product) error {
	if strings.TrimSpace(id) == "" {
		return shared.ErrInvalidID
	}
	if err := s.validate(product); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, product)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}

// GetRecipe returns the recipe of a drink product. Drinks without a
// configured recipe return shared.ErrNotFound.
func (s *Service) GetRecipe(ctx context.Context, productID string) (Recipe, error) {
	if strings.TrimSpace(productID) == "" {
		return Recipe{}, shared.ErrInvalidID
	}
	return s.repo.GetRecipe(ctx, productID)
}

// ReplaceRecipe swaps the full ingredient list of a drink product.
func (s *Service) ReplaceRecipe(ctx context.Context, productID string, ingredients []RecipeIngredient) (Recipe, error) {
	product, err := s.Get(ctx, productID)
	if err != nil {
		return Recipe{}, err
	}
	if product.Category != CategoryDrink {
		return Recipe{}, fmt.Errorf("%w: recipes apply to drink products, %s is %s", shared.ErrValidation, product.Name, product.Category)
	}
	if len(ingredients) == 0 {
		return Recipe{}, fmt.Errorf("%w: ingredients", shared.ErrRequiredField)
	}
	for i, ing := range ingredients {
		if strings.TrimSpace(ing.Name) == "" {
			return Recipe{}, fmt.Errorf("%w: ingredient %d name", shared.ErrRequiredField, i)
		}
		if ing.Amount <= 0 {
			return Recipe{}, fmt.Errorf("%w: ingredient %d amount must be positive", shared.ErrValidation, i)
		}
		if strings.TrimSpace(ing.Unit) == "" {
			return Recipe{}, fmt.Errorf("%w: ingredient %d unit", shared.ErrRequiredField, i)
		}
	}
	if err := s.repo.ReplaceRecipe(ctx, productID, ingredients); err != nil {
		return Recipe{}, err
	}
	return Recipe{ProductID: productID, Ingredients: ingredients}, nil
}

func (s *Service) ListAddOns(ctx context.Context) ([]AddOn, error) {
	return s.repo.ListAddOns(ctx)
}

// GetAddOns resolves a set of add-on IDs in one round trip. Missing IDs
// are absent from the result map.
func (s *Service) GetAddOns(ctx context.Context, ids []string) (map[string]AddOn, error) {
	return s.repo.GetAddOns(ctx, ids)
}

func (s *Service) CreateAddOn(ctx context.Context, addOn AddOn) (AddOn, error) {
	if strings.TrimSpace(addOn.Name) == "" {
		return AddOn{}, fmt.Errorf("%w: name", shared.ErrRequiredField)
	}
	if addOn.Price < 0 {
		return AddOn{}, fmt.Errorf("%w: price must not be negative", shared.ErrValidation)
	}
	return s.repo.CreateAddOn(ctx, addOn)
}

func (s *Service) DeleteAddOn(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return shared.ErrInvalidID
	}
	return s.repo.DeleteAddOn(ctx, id)
}

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name", shared.ErrRequiredField)
	}
	switch p.Category {
	case CategoryCoffee, CategoryDrink, CategoryFood, CategoryMerch, CategoryEquip:
	default:
		return fmt.Errorf("%w: unknown category %q", shared.ErrValidation, p.Category)
	}
	// Only packaged coffee flows through batch allocation, so only
	// coffee products carry a packaging template.
	if p.Category == CategoryCoffee && strings.TrimSpace(p.TemplateID) == "" {
		return fmt.Errorf("%w: template_id", shared.ErrRequiredField)
	}
	if p.BasePrice < 0 {
		return fmt.Errorf("%w: base_price must not be negative", shared.ErrValidation)
	}
	return nil
}
