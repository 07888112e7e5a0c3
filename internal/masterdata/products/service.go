package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/gatepass-erp/gatepass-erp/internal/masterdata/shared"
)

const defaultTopUsedLimit = 10

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, product)
}

func (s *Service) Update(ctx context.Context, id int64, product Product) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.validate(product); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, product)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}

// TopUsed returns the most frequently voucher-referenced products.
func (s *Service) TopUsed(ctx context.Context, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = defaultTopUsedLimit
	}
	return s.repo.TopUsed(ctx, limit)
}

// RecordUsage bumps the usage counter for products placed on a voucher.
func (s *Service) RecordUsage(ctx context.Context, ids []int64) error {
	return s.repo.IncrementUsage(ctx, ids)
}

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name", shared.ErrRequiredField)
	}
	if strings.TrimSpace(p.UnitOfMeasure) == "" {
		return fmt.Errorf("%w: unit_of_measure", shared.ErrRequiredField)
	}
	return nil
}
