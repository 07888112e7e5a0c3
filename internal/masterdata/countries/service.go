package countries

import (
	"context"
	"fmt"
	"strings"

	"github.com/gatepass-erp/gatepass-erp/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Country, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Country, error) {
	if id <= 0 {
		return Country{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, country Country) (Country, error) {
	if err := s.validate(country); err != nil {
		return Country{}, err
	}
	return s.repo.Create(ctx, normalize(country))
}

func (s *Service) Update(ctx context.Context, id int64, country Country) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.validate(country); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, normalize(country))
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) validate(c Country) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name", shared.ErrRequiredField)
	}
	if strings.TrimSpace(c.ISOCode2) == "" {
		return fmt.Errorf("%w: iso_code_2", shared.ErrRequiredField)
	}
	if strings.TrimSpace(c.ISOCode3) == "" {
		return fmt.Errorf("%w: iso_code_3", shared.ErrRequiredField)
	}
	return nil
}

// ISO codes are stored uppercase so the unique indexes match regardless of
// how the caller typed them.
func normalize(c Country) Country {
	c.ISOCode2 = strings.ToUpper(strings.TrimSpace(c.ISOCode2))
	c.ISOCode3 = strings.ToUpper(strings.TrimSpace(c.ISOCode3))
	c.CurrencyCode = strings.ToUpper(strings.TrimSpace(c.CurrencyCode))
	return c
}
