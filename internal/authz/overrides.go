package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// GrantRequest carries everything needed to create one override.
type GrantRequest struct {
	UserID    int64
	Entity    string
	Action    string
	Level     Level
	GrantedBy int64
	Reason    string
	// TTL of zero means the override is permanent.
	TTL time.Duration
}

// EffectiveEntry is one row of a user's merged permission view.
type EffectiveEntry struct {
	Entity      string     `json:"entity"`
	Action      string     `json:"action"`
	Level       Level      `json:"level"`
	Source      Source     `json:"source"`
	HasOverride bool       `json:"has_override"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// EffectiveView combines all three tiers per catalog key for one user.
type EffectiveView struct {
	UserID      int64            `json:"user_id"`
	Role        string           `json:"role"`
	Permissions []EffectiveEntry `json:"permissions"`
}

// OverrideService owns the override lifecycle: grant, revoke, extend,
// listing and the expiry sweep.
type OverrideService struct {
	store    Store
	catalog  *Catalog
	resolver *Resolver
	cache    *LevelCache
	logger   *slog.Logger
	now      func() time.Time
}

// NewOverrideService constructs an OverrideService. The cache may be nil.
func NewOverrideService(store Store, catalog *Catalog, resolver *Resolver, cache *LevelCache, logger *slog.Logger) *OverrideService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OverrideService{
		store:    store,
		catalog:  catalog,
		resolver: resolver,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

// Grant creates an override with supersede semantics: any existing active
// override for the same key is deactivated in the same transaction, so at
// most one active override per (user, entity, action) ever exists. A
// conflicting concurrent grant is retried once against the fresh state.
func (s *OverrideService) Grant(ctx context.Context, req GrantRequest) (Override, error) {
	if !req.Level.Valid() {
		return Override{}, fmt.Errorf("%w: level %d out of range", ErrValidation, int(req.Level))
	}
	if req.TTL < 0 {
		return Override{}, fmt.Errorf("%w: ttl must not be negative", ErrValidation)
	}
	if req.UserID <= 0 {
		return Override{}, fmt.Errorf("%w: user id required", ErrValidation)
	}

	key := NewKey(req.Entity, req.Action)
	if _, err := s.catalog.FindByKey(ctx, key.Entity, key.Action); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Override{}, fmt.Errorf("%w: permission %s not registered", ErrNotFound, key)
		}
		return Override{}, err
	}

	grantedAt := s.now().UTC()
	var expiresAt *time.Time
	if req.TTL > 0 {
		t := grantedAt.Add(req.TTL)
		expiresAt = &t
	}

	var created Override
	attempt := func() error {
		return s.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
			existing, err := tx.FindActiveOverride(ctx, req.UserID, key)
			if err != nil {
				return err
			}
			if existing != nil {
				if err := tx.DeactivateOverride(ctx, existing.ID, "superseded by new grant"); err != nil {
					return err
				}
			}
			created, err = tx.InsertOverride(ctx, Override{
				UserID:    req.UserID,
				Entity:    key.Entity,
				Action:    key.Action,
				Level:     req.Level,
				GrantedAt: grantedAt,
				GrantedBy: req.GrantedBy,
				Reason:    req.Reason,
				ExpiresAt: expiresAt,
			})
			return err
		})
	}

	err := attempt()
	if errors.Is(err, ErrConflict) {
		// A concurrent grant won the unique index race; supersede it.
		err = attempt()
	}
	if err != nil {
		return Override{}, err
	}

	s.cache.InvalidateUser(ctx, req.UserID)
	s.logger.Info("override granted",
		slog.Int64("user_id", req.UserID),
		slog.String("key", key.String()),
		slog.String("level", created.Level.String()),
		slog.Int64("granted_by", req.GrantedBy))
	return created, nil
}

// Revoke marks an override inactive. The record is retained for audit.
func (s *OverrideService) Revoke(ctx context.Context, overrideID, revokedBy int64, reason string) (Override, error) {
	existing, err := s.store.GetOverride(ctx, overrideID)
	if err != nil {
		return Override{}, err
	}
	if !existing.IsActive {
		return Override{}, fmt.Errorf("%w: override %d already inactive", ErrConflict, overrideID)
	}

	note := fmt.Sprintf("revoked by user %d", revokedBy)
	if reason != "" {
		note += ": " + reason
	}
	if err := s.store.DeactivateOverride(ctx, overrideID, note); err != nil {
		return Override{}, err
	}

	s.cache.InvalidateUser(ctx, existing.UserID)
	s.logger.Info("override revoked",
		slog.Int64("override_id", overrideID),
		slog.Int64("user_id", existing.UserID),
		slog.Int64("revoked_by", revokedBy))

	revoked, err := s.store.GetOverride(ctx, overrideID)
	if err != nil {
		return Override{}, err
	}
	return *revoked, nil
}

// Extend moves the expiry of an active temporal override. Extending a
// permanent or inactive override is a conflict.
func (s *OverrideService) Extend(ctx context.Context, overrideID int64, newExpiresAt time.Time) (Override, error) {
	existing, err := s.store.GetOverride(ctx, overrideID)
	if err != nil {
		return Override{}, err
	}
	if !existing.IsActive {
		return Override{}, fmt.Errorf("%w: cannot extend inactive override %d", ErrConflict, overrideID)
	}
	if !existing.Temporal() {
		return Override{}, fmt.Errorf("%w: cannot extend permanent override %d", ErrConflict, overrideID)
	}
	if !newExpiresAt.After(s.now()) {
		return Override{}, fmt.Errorf("%w: new expiry must be in the future", ErrValidation)
	}

	if err := s.store.UpdateOverrideExpiry(ctx, overrideID, newExpiresAt); err != nil {
		return Override{}, err
	}

	s.cache.InvalidateUser(ctx, existing.UserID)
	updated, err := s.store.GetOverride(ctx, overrideID)
	if err != nil {
		return Override{}, err
	}
	return *updated, nil
}

// ListForUser returns a user's overrides, newest first.
func (s *OverrideService) ListForUser(ctx context.Context, userID int64, activeOnly bool) ([]Override, error) {
	return s.store.ListOverrides(ctx, userID, activeOnly)
}

// CleanupExpired deactivates every active override whose expiry has
// passed and returns the count. Idempotent; safe to run concurrently
// with resolution reads.
func (s *OverrideService) CleanupExpired(ctx context.Context) (int64, error) {
	count, err := s.store.DeactivateExpiredOverrides(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.cache.Flush(ctx)
		s.logger.Info("expired overrides deactivated", slog.Int64("count", count))
	}
	return count, nil
}

// EffectiveViewFor merges all three tiers per catalog key for display
// and audit.
func (s *OverrideService) EffectiveViewFor(ctx context.Context, userID int64) (EffectiveView, error) {
	role, err := s.store.UserRole(ctx, userID)
	if err != nil {
		return EffectiveView{}, err
	}

	descriptors, err := s.catalog.ListAll(ctx)
	if err != nil {
		return EffectiveView{}, err
	}

	view := EffectiveView{UserID: userID, Role: role}
	for _, d := range descriptors {
		res, err := s.resolver.ResolveDetail(ctx, userID, d.Entity, d.Action)
		if err != nil {
			return EffectiveView{}, err
		}
		view.Permissions = append(view.Permissions, EffectiveEntry{
			Entity:      d.Entity,
			Action:      d.Action,
			Level:       res.Level,
			Source:      res.Source,
			HasOverride: res.Source == SourceOverride,
			ExpiresAt:   res.ExpiresAt,
		})
	}
	return view, nil
}
