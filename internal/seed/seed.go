// Package seed provisions the baseline data the system needs before it
// can serve a single request: the six fixed roles and the first admin
// account. Running it again is a no-op.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gatepass-erp/gatepass-erp/internal/authz"
	"github.com/gatepass-erp/gatepass-erp/internal/users"
)

var roleDescriptions = []authz.Role{
	{Name: "Admin", Description: "Full access to every entity and the permission system itself"},
	{Name: "Manager", Description: "Operates and approves the daily material flow"},
	{Name: "Collaborator", Description: "Creates and edits operational records"},
	{Name: "Reader", Description: "Read-only visibility"},
	{Name: "Guest", Description: "No access until explicitly granted"},
	{Name: "Checker", Description: "Gate personnel: looks vouchers up and records scans"},
}

// Seeder provisions roles and the first admin account.
type Seeder struct {
	store  authz.Store
	users  *users.Service
	logger *slog.Logger
}

// New builds a Seeder.
func New(store authz.Store, userSvc *users.Service, logger *slog.Logger) *Seeder {
	return &Seeder{store: store, users: userSvc, logger: logger}
}

// Run inserts whatever is missing. Template levels are not seeded
// here; the propagator fills them from the role policy after
// autodiscovery.
func (s *Seeder) Run(ctx context.Context, adminEmail, adminPassword string) error {
	for _, role := range roleDescriptions {
		created, err := s.store.InsertRoleIfAbsent(ctx, role)
		if err != nil {
			return fmt.Errorf("seed role %s: %w", role.Name, err)
		}
		if created {
			s.logger.Info("role seeded", slog.String("role", role.Name))
		}
	}

	return s.seedAdmin(ctx, adminEmail, adminPassword)
}

func (s *Seeder) seedAdmin(ctx context.Context, email, password string) error {
	if email == "" {
		return nil
	}
	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, users.ErrNotFound) {
		return fmt.Errorf("seed admin lookup: %w", err)
	}
	if password == "" {
		s.logger.Warn("admin account missing and no seed password configured", slog.String("email", email))
		return nil
	}

	user, err := s.users.Create(ctx, users.CreateForm{
		Email:    email,
		Name:     "Administrator",
		Password: password,
		RoleName: authz.AdminRole,
	})
	if err != nil {
		if errors.Is(err, users.ErrDuplicate) {
			return nil
		}
		return fmt.Errorf("seed admin: %w", err)
	}
	s.logger.Info("admin account seeded", slog.Int64("user_id", user.ID), slog.String("email", user.Email))
	return nil
}
