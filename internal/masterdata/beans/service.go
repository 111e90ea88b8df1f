package beans

import (
	"context"
	"strings"

	"github.com/doha-roastery/roastery/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Bean, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id string) (Bean, error) {
	if strings.TrimSpace(id) == "" {
		return Bean{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, bean Bean) (Bean, error) {
	if err := s.validate(bean); err != nil {
		return Bean{}, err
	}
	return s.repo.Create(ctx, bean)
}

func (s *Service) Update(ctx context.Context, id string, bean Bean) error {
	if strings.TrimSpace(id) == "" {
		return shared.ErrInvalidID
	}
	if err := s.validate(bean); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, bean)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}
