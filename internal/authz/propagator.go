package authz

import (
	"context"
	"log/slog"
)

// Propagator pushes default levels into every existing role template when
// the catalog registers a new permission, so roles never silently lack
// coverage for new endpoints. It only fills gaps and never touches an
// existing, possibly manually-tuned, template entry.
type Propagator struct {
	store  Store
	policy DefaultPolicy
	cache  *LevelCache
	logger *slog.Logger
}

// NewPropagator constructs a Propagator. The cache may be nil.
func NewPropagator(store Store, policy DefaultPolicy, cache *LevelCache, logger *slog.Logger) *Propagator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Propagator{store: store, policy: policy, cache: cache, logger: logger}
}

// OnDiscovered fills the new key into every role template at the role's
// configured default level. Implements DiscoveryListener.
func (p *Propagator) OnDiscovered(ctx context.Context, d Descriptor) error {
	roles, err := p.store.ListRoles(ctx)
	if err != nil {
		return err
	}

	key := d.Key()
	assigned := 0
	for _, role := range roles {
		inserted, err := p.store.InsertTemplateItemIfAbsent(ctx, TemplateItem{
			Role:   role.Name,
			Entity: key.Entity,
			Action: key.Action,
			Level:  p.policy.LevelFor(role.Name, key.Action),
		})
		if err != nil {
			return err
		}
		if inserted {
			assigned++
		}
	}

	if assigned > 0 {
		p.cache.Flush(ctx)
		p.logger.Info("permission propagated to roles",
			slog.String("key", key.String()),
			slog.Int("roles", assigned))
	}
	return nil
}

// Backfill fills gaps for every catalog key across every role. Run at
// startup so templates created before a key existed still get coverage.
// Idempotent.
func (p *Propagator) Backfill(ctx context.Context) (int, error) {
	descriptors, err := p.store.ListDescriptors(ctx)
	if err != nil {
		return 0, err
	}
	roles, err := p.store.ListRoles(ctx)
	if err != nil {
		return 0, err
	}

	filled := 0
	for _, d := range descriptors {
		key := d.Key()
		for _, role := range roles {
			inserted, err := p.store.InsertTemplateItemIfAbsent(ctx, TemplateItem{
				Role:   role.Name,
				Entity: key.Entity,
				Action: key.Action,
				Level:  p.policy.LevelFor(role.Name, key.Action),
			})
			if err != nil {
				return filled, err
			}
			if inserted {
				filled++
			}
		}
	}

	if filled > 0 {
		p.cache.Flush(ctx)
		p.logger.Info("role templates backfilled", slog.Int("entries", filled))
	}
	return filled, nil
}
