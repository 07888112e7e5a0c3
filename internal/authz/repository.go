package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatepass-erp/gatepass-erp/internal/platform/db"
)

// Store is the persistence port for the authorization engine. All key
// arguments are canonical; implementations store canonical form only.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, Store) error) error

	// Catalog.
	InsertDescriptor(ctx context.Context, d Descriptor) (Descriptor, error)
	FindDescriptor(ctx context.Context, key Key) (*Descriptor, error)
	ListDescriptors(ctx context.Context) ([]Descriptor, error)
	ListDescriptorsByEntity(ctx context.Context, entity string) ([]Descriptor, error)

	// Roles and templates.
	ListRoles(ctx context.Context) ([]Role, error)
	InsertRoleIfAbsent(ctx context.Context, role Role) (bool, error)
	GetTemplateLevel(ctx context.Context, role string, key Key) (*Level, error)
	ListTemplateItems(ctx context.Context, role string) ([]TemplateItem, error)
	InsertTemplateItemIfAbsent(ctx context.Context, item TemplateItem) (bool, error)
	SetTemplateLevel(ctx context.Context, item TemplateItem) error

	// Role membership, owned by the users module.
	UserRole(ctx context.Context, userID int64) (string, error)

	// Overrides.
	GetOverride(ctx context.Context, id int64) (*Override, error)
	FindActiveOverride(ctx context.Context, userID int64, key Key) (*Override, error)
	InsertOverride(ctx context.Context, o Override) (Override, error)
	DeactivateOverride(ctx context.Context, id int64, note string) error
	UpdateOverrideExpiry(ctx context.Context, id int64, expiresAt time.Time) error
	ListOverrides(ctx context.Context, userID int64, activeOnly bool) ([]Override, error)
	DeactivateExpiredOverrides(ctx context.Context, now time.Time) (int64, error)
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type pgStore struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewStore constructs the PostgreSQL backed Store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{db: pool, pool: pool}
}

func (s *pgStore) WithTx(ctx context.Context, fn func(context.Context, Store) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgStore{db: tx, pool: s.pool})
	})
}

const descriptorColumns = `id, entity, action, endpoint, http_method, description, created_at`

func scanDescriptor(row pgx.Row) (Descriptor, error) {
	var d Descriptor
	err := row.Scan(&d.ID, &d.Entity, &d.Action, &d.Endpoint, &d.HTTPMethod, &d.Description, &d.CreatedAt)
	return d, err
}

func (s *pgStore) InsertDescriptor(ctx context.Context, d Descriptor) (Descriptor, error) {
	const query = `INSERT INTO permissions (entity, action, endpoint, http_method, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	now := time.Now().UTC()
	key := d.Key()
	err := s.db.QueryRow(ctx, query, key.Entity, key.Action, d.Endpoint, d.HTTPMethod, d.Description, now).Scan(&d.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Descriptor{}, fmt.Errorf("%w: permission %s already registered", ErrConflict, key)
		}
		return Descriptor{}, err
	}
	d.Entity = key.Entity
	d.Action = key.Action
	d.CreatedAt = now
	return d, nil
}

func (s *pgStore) FindDescriptor(ctx context.Context, key Key) (*Descriptor, error) {
	const query = `SELECT ` + descriptorColumns + ` FROM permissions WHERE entity = $1 AND action = $2`
	d, err := scanDescriptor(s.db.QueryRow(ctx, query, key.Entity, key.Action))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (s *pgStore) ListDescriptors(ctx context.Context) ([]Descriptor, error) {
	const query = `SELECT ` + descriptorColumns + ` FROM permissions ORDER BY entity, action`
	return s.queryDescriptors(ctx, query)
}

func (s *pgStore) ListDescriptorsByEntity(ctx context.Context, entity string) ([]Descriptor, error) {
	const query = `SELECT ` + descriptorColumns + ` FROM permissions WHERE entity = $1 ORDER BY action`
	return s.queryDescriptors(ctx, query, Canonical(entity))
}

func (s *pgStore) queryDescriptors(ctx context.Context, query string, args ...interface{}) ([]Descriptor, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Descriptor
	for rows.Next() {
		var d Descriptor
		if err := rows.Scan(&d.ID, &d.Entity, &d.Action, &d.Endpoint, &d.HTTPMethod, &d.Description, &d.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *pgStore) ListRoles(ctx context.Context) ([]Role, error) {
	const query = `SELECT name, description, created_at FROM roles ORDER BY name`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.Name, &r.Description, &r.CreatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (s *pgStore) InsertRoleIfAbsent(ctx context.Context, role Role) (bool, error) {
	const query = `INSERT INTO roles (name, description, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING`
	tag, err := s.db.Exec(ctx, query, role.Name, role.Description, time.Now().UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *pgStore) GetTemplateLevel(ctx context.Context, role string, key Key) (*Level, error) {
	const query = `SELECT level FROM role_template_items WHERE role_name = $1 AND entity = $2 AND action = $3`
	var raw int
	err := s.db.QueryRow(ctx, query, role, key.Entity, key.Action).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	level, err := ParseLevel(raw)
	if err != nil {
		return nil, err
	}
	return &level, nil
}

func (s *pgStore) ListTemplateItems(ctx context.Context, role string) ([]TemplateItem, error) {
	const query = `SELECT role_name, entity, action, level FROM role_template_items
		WHERE role_name = $1 ORDER BY entity, action`
	rows, err := s.db.Query(ctx, query, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []TemplateItem
	for rows.Next() {
		var item TemplateItem
		var raw int
		if err := rows.Scan(&item.Role, &item.Entity, &item.Action, &raw); err != nil {
			return nil, err
		}
		if item.Level, err = ParseLevel(raw); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *pgStore) InsertTemplateItemIfAbsent(ctx context.Context, item TemplateItem) (bool, error) {
	const query = `INSERT INTO role_template_items (role_name, entity, action, level, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (role_name, entity, action) DO NOTHING`
	key := item.Key()
	tag, err := s.db.Exec(ctx, query, item.Role, key.Entity, key.Action, int(item.Level), time.Now().UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *pgStore) SetTemplateLevel(ctx context.Context, item TemplateItem) error {
	const query = `INSERT INTO role_template_items (role_name, entity, action, level, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (role_name, entity, action) DO UPDATE SET level = EXCLUDED.level`
	key := item.Key()
	_, err := s.db.Exec(ctx, query, item.Role, key.Entity, key.Action, int(item.Level), time.Now().UTC())
	return err
}

func (s *pgStore) UserRole(ctx context.Context, userID int64) (string, error) {
	const query = `SELECT role_name FROM users WHERE id = $1 AND is_active`
	var role string
	err := s.db.QueryRow(ctx, query, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return role, nil
}

const overrideColumns = `id, user_id, entity, action, level, granted_at, granted_by, reason, expires_at, is_active`

func scanOverride(row pgx.Row) (Override, error) {
	var o Override
	var raw int
	var reason *string
	err := row.Scan(&o.ID, &o.UserID, &o.Entity, &o.Action, &raw, &o.GrantedAt, &o.GrantedBy, &reason, &o.ExpiresAt, &o.IsActive)
	if err != nil {
		return Override{}, err
	}
	if reason != nil {
		o.Reason = *reason
	}
	o.Level, err = ParseLevel(raw)
	return o, err
}

func (s *pgStore) GetOverride(ctx context.Context, id int64) (*Override, error) {
	const query = `SELECT ` + overrideColumns + ` FROM user_overrides WHERE id = $1`
	o, err := scanOverride(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (s *pgStore) FindActiveOverride(ctx context.Context, userID int64, key Key) (*Override, error) {
	const query = `SELECT ` + overrideColumns + ` FROM user_overrides
		WHERE user_id = $1 AND entity = $2 AND action = $3 AND is_active`
	o, err := scanOverride(s.db.QueryRow(ctx, query, userID, key.Entity, key.Action))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// InsertOverride relies on the partial unique index over
// (user_id, entity, action) WHERE is_active to serialize concurrent
// grants for the same key.
func (s *pgStore) InsertOverride(ctx context.Context, o Override) (Override, error) {
	const query = `INSERT INTO user_overrides (user_id, entity, action, level, granted_at, granted_by, reason, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		RETURNING id`
	key := o.Key()
	var reason *string
	if o.Reason != "" {
		reason = &o.Reason
	}
	err := s.db.QueryRow(ctx, query, o.UserID, key.Entity, key.Action, int(o.Level), o.GrantedAt, o.GrantedBy, reason, o.ExpiresAt).Scan(&o.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Override{}, fmt.Errorf("%w: active override exists for %s", ErrConflict, key)
		}
		return Override{}, err
	}
	o.Entity = key.Entity
	o.Action = key.Action
	o.IsActive = true
	return o, nil
}

func (s *pgStore) DeactivateOverride(ctx context.Context, id int64, note string) error {
	const query = `UPDATE user_overrides
		SET is_active = FALSE,
		    reason = CASE WHEN $2 = '' THEN reason ELSE COALESCE(reason, '') || ' | ' || $2 END
		WHERE id = $1 AND is_active`
	tag, err := s.db.Exec(ctx, query, id, note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) UpdateOverrideExpiry(ctx context.Context, id int64, expiresAt time.Time) error {
	const query = `UPDATE user_overrides SET expires_at = $2 WHERE id = $1 AND is_active`
	tag, err := s.db.Exec(ctx, query, id, expiresAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) ListOverrides(ctx context.Context, userID int64, activeOnly bool) ([]Override, error) {
	query := `SELECT ` + overrideColumns + ` FROM user_overrides WHERE user_id = $1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY granted_at DESC`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []Override
	for rows.Next() {
		var o Override
		var raw int
		var reason *string
		if err := rows.Scan(&o.ID, &o.UserID, &o.Entity, &o.Action, &raw, &o.GrantedAt, &o.GrantedBy, &reason, &o.ExpiresAt, &o.IsActive); err != nil {
			return nil, err
		}
		if reason != nil {
			o.Reason = *reason
		}
		if o.Level, err = ParseLevel(raw); err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

func (s *pgStore) DeactivateExpiredOverrides(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE user_overrides
		SET is_active = FALSE,
		    reason = COALESCE(reason, '') || ' | auto-deactivated on expiry'
		WHERE is_active AND expires_at IS NOT NULL AND expires_at < $1`
	tag, err := s.db.Exec(ctx, query, now.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Store = (*pgStore)(nil)
