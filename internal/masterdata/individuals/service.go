package individuals

import (
	"context"
	"fmt"
	"strings"

	"github.com/gatepass-erp/gatepass-erp/internal/masterdata/shared"
)

const defaultSearchLimit = 20

// AccountCreator provisions a login account for an individual. Implemented
// by the users service.
type AccountCreator interface {
	CreateAccount(ctx context.Context, email, name, password, roleName string) (int64, error)
}

type Service struct {
	repo     Repository
	accounts AccountCreator
}

// NewService constructs the individuals service. accounts may be nil when
// with-user creation is not wired.
func NewService(repo Repository, accounts AccountCreator) *Service {
	return &Service{repo: repo, accounts: accounts}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Individual, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Individual, error) {
	if id <= 0 {
		return Individual{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, individual Individual) (Individual, error) {
	if err := s.validate(individual); err != nil {
		return Individual{}, err
	}
	return s.repo.Create(ctx, individual)
}

// CreateWithUser creates the individual and a linked login account.
func (s *Service) CreateWithUser(ctx context.Context, individual Individual, password, roleName string) (Individual, error) {
	if s.accounts == nil {
		return Individual{}, fmt.Errorf("%w: account creation not available", shared.ErrValidation)
	}
	if err := s.validate(individual); err != nil {
		return Individual{}, err
	}
	if strings.TrimSpace(individual.Email) == "" {
		return Individual{}, fmt.Errorf("%w: email is required for a login account", shared.ErrValidation)
	}

	userID, err := s.accounts.CreateAccount(ctx, individual.Email, individual.FullName(), password, roleName)
	if err != nil {
		return Individual{}, err
	}
	individual.UserID = &userID

	created, err := s.repo.Create(ctx, individual)
	if err != nil {
		return Individual{}, err
	}
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, individual Individual) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.validate(individual); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, individual)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}

// Verify marks the individual as identity-verified so it may sign vouchers.
func (s *Service) Verify(ctx context.Context, id int64) (Individual, error) {
	if id <= 0 {
		return Individual{}, shared.ErrInvalidID
	}
	if err := s.repo.SetVerified(ctx, id, true); err != nil {
		return Individual{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Search(ctx context.Context, query string, limit int) ([]Individual, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: search query", shared.ErrRequiredField)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return s.repo.Search(ctx, query, limit)
}

func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	return s.repo.Statistics(ctx)
}

func (s *Service) validate(i Individual) error {
	if strings.TrimSpace(i.FirstName) == "" {
		return fmt.Errorf("%w: first_name", shared.ErrRequiredField)
	}
	if strings.TrimSpace(i.LastName) == "" {
		return fmt.Errorf("%w: last_name", shared.ErrRequiredField)
	}
	return nil
}
