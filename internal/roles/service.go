// Package roles exposes role listing and template administration on
// top of the authorization store. Roles are fixed at seed time; only
// their template levels change at runtime.
package roles

import (
	"context"
	"fmt"

	"github.com/gatepass-erp/gatepass-erp/internal/authz"
)

// TemplateView groups a role with its full template matrix.
type TemplateView struct {
	Role  authz.Role           `json:"role"`
	Items []authz.TemplateItem `json:"items"`
}

// Service reads roles and rewrites template levels.
type Service struct {
	store authz.Store
	cache *authz.LevelCache
}

// NewService builds a Service instance.
func NewService(store authz.Store, cache *authz.LevelCache) *Service {
	return &Service{store: store, cache: cache}
}

// List returns all roles.
func (s *Service) List(ctx context.Context) ([]authz.Role, error) {
	return s.store.ListRoles(ctx)
}

// RoleExists reports whether a role name is known. It satisfies the
// role-source port of the users service.
func (s *Service) RoleExists(ctx context.Context, name string) (bool, error) {
	roles, err := s.store.ListRoles(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// Template returns the template matrix for one role.
func (s *Service) Template(ctx context.Context, name string) (TemplateView, error) {
	role, err := s.find(ctx, name)
	if err != nil {
		return TemplateView{}, err
	}
	items, err := s.store.ListTemplateItems(ctx, role.Name)
	if err != nil {
		return TemplateView{}, err
	}
	if items == nil {
		items = []authz.TemplateItem{}
	}
	return TemplateView{Role: role, Items: items}, nil
}

// SetTemplateLevel rewrites one template entry. The permission must be
// registered in the catalog first; templates never reference unknown
// keys. The level cache is flushed because a template edit affects
// every user holding the role.
func (s *Service) SetTemplateLevel(ctx context.Context, roleName, entity, action string, level authz.Level) error {
	if !level.Valid() {
		return fmt.Errorf("%w: invalid level %d", authz.ErrValidation, int(level))
	}
	role, err := s.find(ctx, roleName)
	if err != nil {
		return err
	}
	key := authz.NewKey(entity, action)
	if _, err := s.store.FindDescriptor(ctx, key); err != nil {
		return err
	}
	if err := s.store.SetTemplateLevel(ctx, authz.TemplateItem{
		Role:   role.Name,
		Entity: key.Entity,
		Action: key.Action,
		Level:  level,
	}); err != nil {
		return err
	}
	s.cache.Flush(ctx)
	return nil
}

func (s *Service) find(ctx context.Context, name string) (authz.Role, error) {
	roles, err := s.store.ListRoles(ctx)
	if err != nil {
		return authz.Role{}, err
	}
	for _, r := range roles {
		if r.Name == name {
			return r, nil
		}
	}
	return authz.Role{}, fmt.Errorf("role %q: %w", name, authz.ErrNotFound)
}
