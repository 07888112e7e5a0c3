package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// EffectiveLevel merges the three permission tiers under fixed priority:
// user override, then role template, then implicit deny. An override is
// authoritative, not a floor: a low override beats a high template entry.
// Nil means "tier has no entry", which is distinct from an explicit
// LevelNone override.
func EffectiveLevel(override, template *Level) Level {
	if override != nil {
		return *override
	}
	if template != nil {
		return *template
	}
	return LevelNone
}

// Resolution is an effective level together with the tier that produced it.
type Resolution struct {
	Level  Level  `json:"level"`
	Source Source `json:"source"`
	// ExpiresAt is set when an active temporal override decided the level.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Resolver computes effective permission levels. Resolution is a pure
// read over current state and is safe under concurrent use.
type Resolver struct {
	store  Store
	cache  *LevelCache
	logger *slog.Logger
	group  singleflight.Group
	now    func() time.Time
}

// NewResolver constructs a Resolver. The cache may be nil.
func NewResolver(store Store, cache *LevelCache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, cache: cache, logger: logger, now: time.Now}
}

// Resolve returns the single authoritative level for (user, entity, action).
// Any inability to determine a level definitively yields LevelNone.
func (r *Resolver) Resolve(ctx context.Context, userID int64, entity, action string) (Level, error) {
	res, err := r.ResolveDetail(ctx, userID, entity, action)
	return res.Level, err
}

// ResolveDetail is Resolve plus the tier that decided the outcome.
func (r *Resolver) ResolveDetail(ctx context.Context, userID int64, entity, action string) (Resolution, error) {
	key := NewKey(entity, action)

	if r.cache != nil {
		if res, ok := r.cache.Get(ctx, userID, key); ok {
			return res, nil
		}
	}

	flightKey := fmt.Sprintf("%d/%s", userID, key)
	v, err, _ := r.group.Do(flightKey, func() (interface{}, error) {
		return r.lookup(ctx, userID, key)
	})
	if err != nil {
		return Resolution{Level: LevelNone, Source: SourceDefault}, err
	}

	res := v.(Resolution)
	if r.cache != nil {
		r.cache.Set(ctx, userID, key, res)
	}
	return res, nil
}

// lookup fetches the override and template tiers and hands the merge to
// EffectiveLevel. An in-effect override decides on its own, so the role
// and template reads are skipped in that case.
func (r *Resolver) lookup(ctx context.Context, userID int64, key Key) (Resolution, error) {
	deny := Resolution{Level: LevelNone, Source: SourceDefault}

	override, err := r.store.FindActiveOverride(ctx, userID, key)
	if err != nil {
		return deny, err
	}

	var overrideLevel *Level
	var expiresAt *time.Time
	if override != nil && !override.Expired(r.now()) {
		overrideLevel = &override.Level
		expiresAt = override.ExpiresAt
	}

	var template *Level
	if overrideLevel == nil {
		role, err := r.store.UserRole(ctx, userID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Unknown or inactive user: deny, not an error.
				return deny, nil
			}
			return deny, err
		}
		template, err = r.store.GetTemplateLevel(ctx, role, key)
		if err != nil {
			return deny, err
		}
	}

	res := Resolution{Level: EffectiveLevel(overrideLevel, template), Source: SourceDefault}
	switch {
	case overrideLevel != nil:
		res.Source = SourceOverride
		res.ExpiresAt = expiresAt
	case template != nil:
		res.Source = SourceTemplate
	}
	return res, nil
}

// Authorize checks (user, entity, action) against a minimum level. Denial
// carries both the held and the required level for actionable errors.
func (r *Resolver) Authorize(ctx context.Context, userID int64, entity, action string, min Level) (Decision, error) {
	res, err := r.ResolveDetail(ctx, userID, entity, action)
	if err != nil {
		return Decision{Allowed: false, Level: LevelNone, Required: min, Source: SourceDefault}, err
	}
	return Decision{
		Allowed:  res.Level >= min,
		Level:    res.Level,
		Required: min,
		Source:   res.Source,
	}, nil
}
