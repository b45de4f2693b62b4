package catalog

import (
	"context"
	"errors"
	"strings"
)

// Service coordinates product registry operations.
type Service struct {
	repo Repository
}

// NewService builds Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Product, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, errors.New("catalog: invalid product id")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	if err := validate(product); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, product)
}

func (s *Service) Update(ctx context.Context, id int64, product Product) error {
	if id <= 0 {
		return errors.New("catalog: invalid product id")
	}
	if err := validate(product); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, product)
}

func validate(p Product) error {
	if strings.TrimSpace(p.ExternalID) == "" {
		return errors.New("catalog: external id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("catalog: product name is required")
	}
	return nil
}
