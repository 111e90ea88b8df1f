package templates

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Template, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id string) (Template, error) {
	if strings.TrimSpace(id) == "" {
		return Template{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

// GetMany resolves a set of template IDs in one round trip. Missing IDs
// are simply absent from the result map.
func (s *Service) GetMany(ctx context.Context, ids []string) (map[string]Template, error) {
	return s.repo.GetMany(ctx, ids)
}

func (s *Service) Create(ctx context.Context, tpl Template) (Template, error) {
	if err := s.validate(tpl); err != nil {
		return Template{}, err
	}
	return s.repo.Create(ctx, tpl)
}

func (s *Service) Update(ctx context.Context, id string, tpl Template) error {
	if strings.TrimSpace(id) == "" {
		return shared.ErrInvalidID
	}
	if err := s.validate(tpl); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, tpl)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) validate(t Template) error {
	if strings.TrimSpace(t.SizeLabel) == "" {
		return fmt.Errorf("%w: size_label", shared.ErrRequiredField)
	}
	if strings.TrimSpace(t.SKUPrefix) == "" {
		return fmt.Errorf("%w: sku_prefix", shared.ErrRequiredField)
	}
	if t.WeightKg <= 0 {
		return fmt.Errorf("%w: weight_kg must be positive", shared.ErrValidation)
	}
	if t.UnitCost < 0 {
		return fmt.Errorf("%w: unit_cost must not be negative", shared.ErrValidation)
	}
	if t.ShelfLifeDays <= 0 {
		return fmt.Errorf("%w: shelf_life_days must be positive", shared.ErrValidation)
	}
	return nil
}
