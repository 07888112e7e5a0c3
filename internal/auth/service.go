// Package auth implements session based login on top of user accounts.
package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/gatepass-erp/gatepass-erp/internal/shared"
	"github.com/gatepass-erp/gatepass-erp/internal/users"
)

// UserSource looks up candidate accounts during login. Implemented by
// the users service.
type UserSource interface {
	FindByEmail(ctx context.Context, email string) (users.User, error)
}

// Service wraps authentication business rules.
type Service struct {
	source UserSource
}

// NewService constructs a new Service.
func NewService(source UserSource) *Service {
	return &Service{source: source}
}

// Authenticate validates email/password credentials. Unknown accounts,
// deactivated accounts, and wrong passwords all collapse into the same
// error so the response never leaks which part failed.
func (s *Service) Authenticate(ctx context.Context, email, password string) (users.User, error) {
	user, err := s.source.FindByEmail(ctx, email)
	if err != nil {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return users.User{}, shared.ErrInvalidCredentials
	}
	return user, nil
}
