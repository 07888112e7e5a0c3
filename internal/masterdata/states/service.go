package states

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]State, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (State, error) {
	if id <= 0 {
		return State{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) ByCountry(ctx context.Context, countryID int64) ([]State, error) {
	if countryID <= 0 {
		return nil, shared.ErrInvalidID
	}
	return s.repo.ByCountry(ctx, countryID)
}

func (s *Service) Create(ctx context.Context, state State) (State, error) {
	if err := s.validate(state); err != nil {
		return State{}, err
	}
	return s.repo.Create(ctx, state)
}

func (s *Service) Update(ctx context.Context, id int64, state State) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.validate(state); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, state)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) validate(st State) error {
	if strings.TrimSpace(st.Name) == "" {
		return fmt.Errorf("%w: name", shared.ErrRequiredField)
	}
	if st.CountryID <= 0 {
		return fmt.Errorf("%w: country_id", shared.ErrRequiredField)
	}
	return nil
}
