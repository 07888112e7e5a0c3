package users

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// RoleSource answers whether a role name exists. Implemented by the
// roles service.
type RoleSource interface {
	RoleExists(ctx context.Context, name string) (bool, error)
}

// Service handles account business logic.
type Service struct {
	repo  Repository
	roles RoleSource
}

// NewService builds a Service instance.
func NewService(repo Repository, roles RoleSource) *Service {
	return &Service{repo: repo, roles: roles}
}

// List returns accounts matching the filters.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]User, int, error) {
	return s.repo.List(ctx, filters)
}

// Get returns a single account.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// FindByEmail looks an account up by email, case insensitively.
func (s *Service) FindByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.FindByEmail(ctx, strings.TrimSpace(email))
}

// Create registers a new account with a hashed password.
func (s *Service) Create(ctx context.Context, form CreateForm) (User, error) {
	if err := s.checkRole(ctx, form.RoleName); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	user := form.toModel()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.PasswordHash = string(hash)
	return s.repo.Create(ctx, user)
}

// CreateAccount registers an account on behalf of another module and
// returns the new user id. It satisfies the account-creator port of
// the individuals service.
func (s *Service) CreateAccount(ctx context.Context, email, name, password, roleName string) (int64, error) {
	user, err := s.Create(ctx, CreateForm{
		Email:    email,
		Name:     name,
		Password: password,
		RoleName: roleName,
	})
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

// Update edits an existing account.
func (s *Service) Update(ctx context.Context, id int64, form UpdateForm) error {
	if err := s.checkRole(ctx, form.RoleName); err != nil {
		return err
	}
	user := form.toModel()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return s.repo.Update(ctx, id, user)
}

// SetPassword resets an account password.
func (s *Service) SetPassword(ctx context.Context, id int64, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, id, string(hash))
}

// Deactivate disables an account. Deactivated accounts cannot log in
// and resolve to no role.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) checkRole(ctx context.Context, name string) error {
	if s.roles == nil {
		return nil
	}
	ok, err := s.roles.RoleExists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("role %q: %w", name, ErrNotFound)
	}
	return nil
}
