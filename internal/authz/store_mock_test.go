package authz

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// mockStore is a map-backed Store used across the package tests.
type mockStore struct {
	mu sync.Mutex

	descriptors    map[Key]Descriptor
	nextDescriptor int64

	roles         []Role
	templateItems map[string]map[Key]Level

	userRoles map[int64]string

	overrides    map[int64]*Override
	nextOverride int64

	// Error injection.
	findOverrideErr error
	userRoleErr     error
	templateErr     error
}

func newMockStore() *mockStore {
	return &mockStore{
		descriptors:    make(map[Key]Descriptor),
		templateItems:  make(map[string]map[Key]Level),
		userRoles:      make(map[int64]string),
		overrides:      make(map[int64]*Override),
		nextDescriptor: 0,
		nextOverride:   0,
	}
}

func (m *mockStore) WithTx(ctx context.Context, fn func(context.Context, Store) error) error {
	return fn(ctx, m)
}

func (m *mockStore) InsertDescriptor(ctx context.Context, d Descriptor) (Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := d.Key()
	if _, exists := m.descriptors[key]; exists {
		return Descriptor{}, fmt.Errorf("%w: permission %s already registered", ErrConflict, key)
	}
	m.nextDescriptor++
	d.ID = m.nextDescriptor
	d.Entity = key.Entity
	d.Action = key.Action
	d.CreatedAt = time.Now().UTC()
	m.descriptors[key] = d
	return d, nil
}

func (m *mockStore) FindDescriptor(ctx context.Context, key Key) (*Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.descriptors[key]
	if !ok {
		return nil, ErrNotFound
	}
	copied := d
	return &copied, nil
}

func (m *mockStore) ListDescriptors(ctx context.Context) ([]Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]Descriptor, 0, len(m.descriptors))
	for _, d := range m.descriptors {
		result = append(result, d)
	}
	sortDescriptors(result)
	return result, nil
}

func (m *mockStore) ListDescriptorsByEntity(ctx context.Context, entity string) ([]Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	canonical := Canonical(entity)
	var result []Descriptor
	for _, d := range m.descriptors {
		if d.Entity == canonical {
			result = append(result, d)
		}
	}
	sortDescriptors(result)
	return result, nil
}

func sortDescriptors(list []Descriptor) {
	for i := 1; i < len(list); i++ {
		for j := i; j > 0; j-- {
			a, b := list[j-1], list[j]
			if a.Entity < b.Entity || (a.Entity == b.Entity && a.Action <= b.Action) {
				break
			}
			list[j-1], list[j] = b, a
		}
	}
}

func (m *mockStore) ListRoles(ctx context.Context) ([]Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]Role, len(m.roles))
	copy(result, m.roles)
	return result, nil
}

func (m *mockStore) InsertRoleIfAbsent(ctx context.Context, role Role) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if r.Name == role.Name {
			return false, nil
		}
	}
	m.roles = append(m.roles, role)
	return true, nil
}

func (m *mockStore) GetTemplateLevel(ctx context.Context, role string, key Key) (*Level, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.templateErr != nil {
		return nil, m.templateErr
	}
	items, ok := m.templateItems[role]
	if !ok {
		return nil, nil
	}
	lvl, ok := items[key]
	if !ok {
		return nil, nil
	}
	return &lvl, nil
}

func (m *mockStore) ListTemplateItems(ctx context.Context, role string) ([]TemplateItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []TemplateItem
	for key, lvl := range m.templateItems[role] {
		result = append(result, TemplateItem{Role: role, Entity: key.Entity, Action: key.Action, Level: lvl})
	}
	return result, nil
}

func (m *mockStore) InsertTemplateItemIfAbsent(ctx context.Context, item TemplateItem) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items, ok := m.templateItems[item.Role]
	if !ok {
		items = make(map[Key]Level)
		m.templateItems[item.Role] = items
	}
	key := item.Key()
	if _, exists := items[key]; exists {
		return false, nil
	}
	items[key] = item.Level
	return true, nil
}

func (m *mockStore) SetTemplateLevel(ctx context.Context, item TemplateItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items, ok := m.templateItems[item.Role]
	if !ok {
		items = make(map[Key]Level)
		m.templateItems[item.Role] = items
	}
	items[item.Key()] = item.Level
	return nil
}

func (m *mockStore) UserRole(ctx context.Context, userID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userRoleErr != nil {
		return "", m.userRoleErr
	}
	role, ok := m.userRoles[userID]
	if !ok {
		return "", ErrNotFound
	}
	return role, nil
}

func (m *mockStore) GetOverride(ctx context.Context, id int64) (*Override, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.overrides[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *o
	return &copied, nil
}

func (m *mockStore) FindActiveOverride(ctx context.Context, userID int64, key Key) (*Override, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findOverrideErr != nil {
		return nil, m.findOverrideErr
	}
	for _, o := range m.overrides {
		if o.UserID == userID && o.Key() == key && o.IsActive {
			copied := *o
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockStore) InsertOverride(ctx context.Context, o Override) (Override, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := o.Key()
	for _, existing := range m.overrides {
		if existing.UserID == o.UserID && existing.Key() == key && existing.IsActive {
			return Override{}, fmt.Errorf("%w: active override exists for %s", ErrConflict, key)
		}
	}
	m.nextOverride++
	o.ID = m.nextOverride
	o.Entity = key.Entity
	o.Action = key.Action
	o.IsActive = true
	stored := o
	m.overrides[o.ID] = &stored
	return o, nil
}

func (m *mockStore) DeactivateOverride(ctx context.Context, id int64, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.overrides[id]
	if !ok || !o.IsActive {
		return ErrNotFound
	}
	o.IsActive = false
	if note != "" {
		if o.Reason != "" {
			o.Reason += " | "
		}
		o.Reason += note
	}
	return nil
}

func (m *mockStore) UpdateOverrideExpiry(ctx context.Context, id int64, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.overrides[id]
	if !ok || !o.IsActive {
		return ErrNotFound
	}
	t := expiresAt.UTC()
	o.ExpiresAt = &t
	return nil
}

func (m *mockStore) ListOverrides(ctx context.Context, userID int64, activeOnly bool) ([]Override, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Override
	for _, o := range m.overrides {
		if o.UserID != userID {
			continue
		}
		if activeOnly && !o.IsActive {
			continue
		}
		result = append(result, *o)
	}
	return result, nil
}

func (m *mockStore) DeactivateExpiredOverrides(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, o := range m.overrides {
		if o.IsActive && o.Expired(now) {
			o.IsActive = false
			count++
		}
	}
	return count, nil
}

var _ Store = (*mockStore)(nil)
