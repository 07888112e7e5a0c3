package authz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOverrideFixture(t *testing.T) (*mockStore, *Catalog, *Resolver, *OverrideService) {
	t.Helper()
	store := newMockStore()
	catalog := NewCatalog(store, testLogger())
	resolver := NewResolver(store, nil, testLogger())
	svc := NewOverrideService(store, catalog, resolver, nil, testLogger())
	return store, catalog, resolver, svc
}

func registerKey(t *testing.T, catalog *Catalog, entity, action string) {
	t.Helper()
	_, outcome, err := catalog.Register(context.Background(), Descriptor{
		Entity:     entity,
		Action:     action,
		Endpoint:   "/" + entity,
		HTTPMethod: "GET",
	})
	require.NoError(t, err)
	require.Equal(t, RegisterCreated, outcome)
}

func TestGrantValidation(t *testing.T) {
	_, catalog, _, svc := newOverrideFixture(t)
	registerKey(t, catalog, "companies", "delete")
	ctx := context.Background()

	_, err := svc.Grant(ctx, GrantRequest{UserID: 7, Entity: "companies", Action: "delete", Level: Level(9), GrantedBy: 1})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Grant(ctx, GrantRequest{UserID: 7, Entity: "companies", Action: "delete", Level: LevelRead, GrantedBy: 1, TTL: -time.Hour})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Grant(ctx, GrantRequest{Entity: "companies", Action: "delete", Level: LevelRead, GrantedBy: 1})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGrantRequiresRegisteredPermission(t *testing.T) {
	_, _, _, svc := newOverrideFixture(t)

	_, err := svc.Grant(context.Background(), GrantRequest{UserID: 7, Entity: "ghosts", Action: "list", Level: LevelRead, GrantedBy: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGrantSupersedesExistingOverride(t *testing.T) {
	store, catalog, _, svc := newOverrideFixture(t)
	registerKey(t, catalog, "companies", "delete")
	ctx := context.Background()

	first, err := svc.Grant(ctx, GrantRequest{UserID: 7, Entity: "companies", Action: "delete", Level: LevelRead, GrantedBy: 1, Reason: "initial"})
	require.NoError(t, err)

	second, err := svc.Grant(ctx, GrantRequest{UserID: 7, Entity: "companies", Action: "delete", Level: LevelDelete, GrantedBy: 1, Reason: "escalated"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// The superseded record is retired, not deleted, and carries the note.
	old, err := store.GetOverride(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, old.IsActive)
	assert.Contains(t, old.Reason, "superseded by new grant")

	active, err := store.FindActiveOverride(ctx, 7, NewKey("companies", "delete"))
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)
	assert.Equal(t, LevelDelete, active.Level)
}

func TestGrantCanonicalizesKey(t *testing.T) {
	store, catalog, _, svc := newOverrideFixture(t)
	registerKey(t, catalog, "products", "view_top_used")
	ctx := context.Background()

	created, err := svc.Grant(ctx, GrantRequest{UserID: 7, Entity: "Products", Action: "View-Top-Used", Level: LevelRead, GrantedBy: 1})
	require.NoError(t, err)
	assert.Equal(t, "products", created.Entity)
	assert.Equal(t, "view_top_used", created.Action)

	active, err := store.FindActiveOverride(ctx, 7, NewKey("products", "view_top_used"))
	require.NoError(t, err)
	require.NotNil(t, active)
}

func TestRevoke(t *testing.T) {
	store, catalog, _, svc := newOverrideFixture(t)
	registerKey(t, catalog, "companies", "delete")
	ctx := context.Background()

	granted, err := svc.Grant(ctx, GrantRequest{UserID: 7, Entity: "companies", Action: "delete", Level: LevelDelete, GrantedBy: 1, Reason: "audit fix"})
	require.NoError(t, err)

	revoked, err := svc.Revoke(ctx, granted.ID, 2, "no longer needed")
	require.NoError(t, err)
	assert.False(t, revoked.IsActive)
	assert.Contains(t, revoked.Reason, "revoked by user 2: no longer needed")

	// Revoking twice is a conflict.
	_, err = svc.Revoke(ctx, granted.ID, 2, "")
	assert.ErrorIs(t, err, ErrConflict)

	active, err := store.FindActiveOverride(ctx, 7, NewKey("companies", "delete"))
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestExtend(t *testing.T) {
	_, catalog, _, svc := newOverrideFixture(t)
	registerKey(t, catalog, "companies", "delete")
	ctx := context.Background()

	temporal, err := svc.Grant(ctx, GrantRequest{UserID: 7, Entity: "companies", Action: "delete", Level: LevelDelete, GrantedBy: 1, TTL: time.Hour})
	require.NoError(t, err)
	require.NotNil(t, temporal.ExpiresAt)

	newExpiry := time.Now().Add(48 * time.Hour)
	updated, err := svc.Extend(ctx, temporal.ID, newExpiry)
	require.NoError(t, err)
	require.NotNil(t, updated.ExpiresAt)
	assert.WithinDuration(t, newExpiry, *updated.ExpiresAt, time.Second)

	_, err = svc.Extend(ctx, temporal.ID, time.Now().Add(-time.Hour))
	assert.ErrorIs(t, err, ErrValidation)

	// Permanent overrides cannot be extended.
	permanent, err := svc.Grant(ctx, GrantRequest{UserID: 8, Entity: "companies", Action: "delete", Level: LevelDelete, GrantedBy: 1})
	require.NoError(t, err)
	_, err = svc.Extend(ctx, permanent.ID, newExpiry)
	assert.ErrorIs(t, err, ErrConflict)

	// Neither can revoked ones.
	_, err = svc.Revoke(ctx, temporal.ID, 1, "")
	require.NoError(t, err)
	_, err = svc.Extend(ctx, temporal.ID, newExpiry)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCleanupExpired(t *testing.T) {
	store, catalog, _, svc := newOverrideFixture(t)
	registerKey(t, catalog, "companies", "delete")
	ctx := context.Background()

	expired := time.Now().Add(-time.Minute)
	_, err := store.InsertOverride(ctx, Override{UserID: 7, Entity: "companies", Action: "delete", Level: LevelDelete, GrantedAt: expired.Add(-time.Hour), GrantedBy: 1, ExpiresAt: &expired})
	require.NoError(t, err)

	future := time.Now().Add(time.Hour)
	keep, err := store.InsertOverride(ctx, Override{UserID: 8, Entity: "companies", Action: "delete", Level: LevelDelete, GrantedAt: time.Now(), GrantedBy: 1, ExpiresAt: &future})
	require.NoError(t, err)

	count, err := svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Idempotent: nothing left to sweep.
	count, err = svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	still, err := store.GetOverride(ctx, keep.ID)
	require.NoError(t, err)
	assert.True(t, still.IsActive)
}

func TestEffectiveViewFor(t *testing.T) {
	store, catalog, _, svc := newOverrideFixture(t)
	registerKey(t, catalog, "companies", "list")
	registerKey(t, catalog, "companies", "delete")
	ctx := context.Background()

	store.userRoles[7] = "Manager"
	_, err := store.InsertTemplateItemIfAbsent(ctx, TemplateItem{Role: "Manager", Entity: "companies", Action: "list", Level: LevelCreate})
	require.NoError(t, err)

	_, err = svc.Grant(ctx, GrantRequest{UserID: 7, Entity: "companies", Action: "delete", Level: LevelDelete, GrantedBy: 1, TTL: time.Hour})
	require.NoError(t, err)

	view, err := svc.EffectiveViewFor(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Manager", view.Role)
	require.Len(t, view.Permissions, 2)

	byKey := make(map[string]EffectiveEntry)
	for _, e := range view.Permissions {
		byKey[e.Entity+":"+e.Action] = e
	}
	assert.Equal(t, LevelDelete, byKey["companies:delete"].Level)
	assert.Equal(t, SourceOverride, byKey["companies:delete"].Source)
	assert.True(t, byKey["companies:delete"].HasOverride)
	assert.NotNil(t, byKey["companies:delete"].ExpiresAt)
	assert.Equal(t, LevelCreate, byKey["companies:list"].Level)
	assert.Equal(t, SourceTemplate, byKey["companies:list"].Source)
}

// Full lifecycle: template denies, grant allows, revoke denies again.
func TestGrantRevokeAuthorizeScenario(t *testing.T) {
	store, catalog, resolver, svc := newOverrideFixture(t)
	registerKey(t, catalog, "companies", "delete")
	ctx := context.Background()

	store.userRoles[7] = "Manager"
	_, err := store.InsertTemplateItemIfAbsent(ctx, TemplateItem{Role: "Manager", Entity: "companies", Action: "delete", Level: LevelCreate})
	require.NoError(t, err)

	decision, err := resolver.Authorize(ctx, 7, "companies", "delete", LevelDelete)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, LevelCreate, decision.Level)

	granted, err := svc.Grant(ctx, GrantRequest{UserID: 7, Entity: "companies", Action: "delete", Level: LevelDelete, GrantedBy: 1, Reason: "quarter close"})
	require.NoError(t, err)

	decision, err = resolver.Authorize(ctx, 7, "companies", "delete", LevelDelete)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, SourceOverride, decision.Source)

	_, err = svc.Revoke(ctx, granted.ID, 1, "done")
	require.NoError(t, err)

	decision, err = resolver.Authorize(ctx, 7, "companies", "delete", LevelDelete)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, LevelCreate, decision.Level)
	assert.Equal(t, SourceTemplate, decision.Source)
}
