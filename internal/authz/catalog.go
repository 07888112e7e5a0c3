package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// RegisterOutcome describes the result of a catalog registration.
type RegisterOutcome string

const (
	// RegisterCreated means a brand-new (entity, action) key was stored.
	RegisterCreated RegisterOutcome = "created"
	// RegisterExists means the key was already present with matching metadata.
	RegisterExists RegisterOutcome = "already_exists"
	// RegisterDiverged means the key exists but now maps to a different
	// endpoint or method; identity wins and the new metadata is skipped.
	RegisterDiverged RegisterOutcome = "diverged"
)

// DiscoveryListener is notified once for every brand-new catalog key.
type DiscoveryListener interface {
	OnDiscovered(ctx context.Context, d Descriptor) error
}

// Catalog is the canonical registry of (entity, action) permission keys.
// Entries are created by the scanner only and never deleted automatically.
type Catalog struct {
	store     Store
	logger    *slog.Logger
	listeners []DiscoveryListener
}

// NewCatalog constructs a Catalog over the given store.
func NewCatalog(store Store, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{store: store, logger: logger}
}

// Subscribe registers a listener for newly discovered permissions.
func (c *Catalog) Subscribe(l DiscoveryListener) {
	if l != nil {
		c.listeners = append(c.listeners, l)
	}
}

// Register inserts a descriptor keyed by canonical (entity, action).
// Idempotent: an existing key is left untouched. A key whose recorded
// endpoint or method differs from the incoming one is reported as
// diverged and its stored metadata is kept.
func (c *Catalog) Register(ctx context.Context, d Descriptor) (Descriptor, RegisterOutcome, error) {
	key := d.Key()
	if key.Entity == "" || key.Action == "" {
		return Descriptor{}, "", fmt.Errorf("%w: entity and action required", ErrValidation)
	}

	existing, err := c.store.FindDescriptor(ctx, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Descriptor{}, "", err
	}
	if existing != nil {
		if existing.Endpoint != d.Endpoint || existing.HTTPMethod != d.HTTPMethod {
			c.logger.Warn("permission endpoint diverged",
				slog.String("key", key.String()),
				slog.String("recorded", existing.HTTPMethod+" "+existing.Endpoint),
				slog.String("observed", d.HTTPMethod+" "+d.Endpoint))
			return *existing, RegisterDiverged, nil
		}
		return *existing, RegisterExists, nil
	}

	created, err := c.store.InsertDescriptor(ctx, d)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			// Lost a race with a concurrent registration of the same key.
			if current, findErr := c.store.FindDescriptor(ctx, key); findErr == nil {
				return *current, RegisterExists, nil
			}
		}
		return Descriptor{}, "", err
	}

	for _, l := range c.listeners {
		if err := l.OnDiscovered(ctx, created); err != nil {
			c.logger.Error("propagate discovered permission",
				slog.String("key", key.String()), slog.Any("error", err))
		}
	}
	return created, RegisterCreated, nil
}

// ListAll returns every descriptor ordered by entity then action.
func (c *Catalog) ListAll(ctx context.Context) ([]Descriptor, error) {
	return c.store.ListDescriptors(ctx)
}

// FindByEntity returns all descriptors for one entity.
func (c *Catalog) FindByEntity(ctx context.Context, entity string) ([]Descriptor, error) {
	return c.store.ListDescriptorsByEntity(ctx, entity)
}

// FindByKey looks up one descriptor; returns ErrNotFound when absent.
func (c *Catalog) FindByKey(ctx context.Context, entity, action string) (*Descriptor, error) {
	return c.store.FindDescriptor(ctx, NewKey(entity, action))
}
