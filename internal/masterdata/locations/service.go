package locations

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Location, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id string) (Location, error) {
	if strings.TrimSpace(id) == "" {
		return Location{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, loc Location) (Location, error) {
	if err := s.validate(loc); err != nil {
		return Location{}, err
	}
	return s.repo.Create(ctx, loc)
}

func (s *Service) Update(ctx context.Context, id string, loc Location) error {
	if strings.TrimSpace(id) == "" {
		return shared.ErrInvalidID
	}
	if err := s.validate(loc); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, loc)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) validate(l Location) error {
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("%w: name", shared.ErrRequiredField)
	}
	if l.Type != TypeCafe && l.Type != TypeWarehouse {
		return fmt.Errorf("%w: unknown location type %q", shared.ErrValidation, l.Type)
	}
	return nil
}
