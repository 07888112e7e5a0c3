package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	discovered []Descriptor
	err        error
}

func (l *recordingListener) OnDiscovered(ctx context.Context, d Descriptor) error {
	l.discovered = append(l.discovered, d)
	return l.err
}

func TestCatalogRegisterIdempotent(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog(newMockStore(), testLogger())

	d := Descriptor{Entity: "companies", Action: "list", Endpoint: "/companies", HTTPMethod: "GET"}

	created, outcome, err := catalog.Register(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, RegisterCreated, outcome)
	assert.NotZero(t, created.ID)

	again, outcome, err := catalog.Register(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, RegisterExists, outcome)
	assert.Equal(t, created.ID, again.ID)
}

func TestCatalogRegisterCanonicalizesKey(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog(newMockStore(), testLogger())

	created, outcome, err := catalog.Register(ctx, Descriptor{
		Entity: "Products", Action: "View-Top-Used", Endpoint: "/products/top-used", HTTPMethod: "GET",
	})
	require.NoError(t, err)
	assert.Equal(t, RegisterCreated, outcome)
	assert.Equal(t, "products", created.Entity)
	assert.Equal(t, "view_top_used", created.Action)

	// Any spelling of the key finds the stored canonical entry.
	found, err := catalog.FindByKey(ctx, "PRODUCTS", "view-top-used")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}

func TestCatalogRegisterDiverged(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog(newMockStore(), testLogger())

	first, _, err := catalog.Register(ctx, Descriptor{Entity: "companies", Action: "list", Endpoint: "/companies", HTTPMethod: "GET"})
	require.NoError(t, err)

	kept, outcome, err := catalog.Register(ctx, Descriptor{Entity: "companies", Action: "list", Endpoint: "/v2/companies", HTTPMethod: "GET"})
	require.NoError(t, err)
	assert.Equal(t, RegisterDiverged, outcome)
	// Identity wins; the recorded endpoint is kept.
	assert.Equal(t, first.Endpoint, kept.Endpoint)
}

func TestCatalogRegisterRequiresKey(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog(newMockStore(), testLogger())

	_, _, err := catalog.Register(ctx, Descriptor{Entity: "", Action: "list"})
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = catalog.Register(ctx, Descriptor{Entity: "companies", Action: "  "})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCatalogNotifiesListenersOnCreate(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog(newMockStore(), testLogger())
	listener := &recordingListener{}
	catalog.Subscribe(listener)

	d := Descriptor{Entity: "companies", Action: "list", Endpoint: "/companies", HTTPMethod: "GET"}
	_, _, err := catalog.Register(ctx, d)
	require.NoError(t, err)
	require.Len(t, listener.discovered, 1)
	assert.Equal(t, "companies", listener.discovered[0].Entity)

	// Re-registration is not a discovery.
	_, _, err = catalog.Register(ctx, d)
	require.NoError(t, err)
	assert.Len(t, listener.discovered, 1)
}

func TestCatalogListenerErrorDoesNotFailRegistration(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog(newMockStore(), testLogger())
	catalog.Subscribe(&recordingListener{err: ErrConflict})

	_, outcome, err := catalog.Register(ctx, Descriptor{Entity: "companies", Action: "list", Endpoint: "/companies", HTTPMethod: "GET"})
	require.NoError(t, err)
	assert.Equal(t, RegisterCreated, outcome)
}

func TestCatalogFindByEntity(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog(newMockStore(), testLogger())

	for _, action := range []string{"list", "get", "create"} {
		_, _, err := catalog.Register(ctx, Descriptor{Entity: "branches", Action: action, Endpoint: "/branches", HTTPMethod: "GET"})
		require.NoError(t, err)
	}
	_, _, err := catalog.Register(ctx, Descriptor{Entity: "companies", Action: "list", Endpoint: "/companies", HTTPMethod: "GET"})
	require.NoError(t, err)

	branches, err := catalog.FindByEntity(ctx, "branches")
	require.NoError(t, err)
	assert.Len(t, branches, 3)
}
