package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScannerClassify(t *testing.T) {
	s := NewScanner(nil, testLogger())

	tests := []struct {
		method string
		path   string
		entity string
		action string
	}{
		{"GET", "/companies", "companies", "list"},
		{"GET", "/companies/{companyID}", "companies", "get"},
		{"GET", "/products/top-used", "products", "view_top_used"},
		{"GET", "/individuals/search", "individuals", "search"},
		{"GET", "/individuals/by-document", "individuals", "search"},
		{"GET", "/vouchers/statistics", "vouchers", "view_statistics"},
		{"GET", "/permissions/levels", "permissions", "levels"},
		{"POST", "/companies", "companies", "create"},
		{"POST", "/individuals/with-user", "individuals", "create_with_user"},
		{"POST", "/vouchers/{voucherID}/approve", "vouchers", "approve"},
		{"POST", "/vouchers/{voucherID}/scan-exit", "vouchers", "scan_exit"},
		{"PUT", "/companies/{companyID}", "companies", "update"},
		{"PATCH", "/vouchers/{voucherID}/close", "vouchers", "close"},
		{"DELETE", "/companies/{companyID}", "companies", "delete"},
	}
	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			d, ok := s.Classify(Route{Method: tc.method, Path: tc.path})
			require.True(t, ok)
			assert.Equal(t, tc.entity, d.Entity)
			assert.Equal(t, tc.action, d.Action)
			assert.Equal(t, tc.method, d.HTTPMethod)
			assert.Equal(t, tc.path, d.Endpoint)
			assert.NotEmpty(t, d.Description)
		})
	}
}

func TestScannerClassifyRejectsUnknownShapes(t *testing.T) {
	s := NewScanner(nil, testLogger())

	for _, route := range []Route{
		{Method: "OPTIONS", Path: "/companies"},
		{Method: "HEAD", Path: "/companies"},
		{Method: "GET", Path: "/"},
		{Method: "GET", Path: "/{param}"},
	} {
		_, ok := s.Classify(route)
		assert.False(t, ok, "%s", route)
	}
}

func TestScannerDryRun(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	catalog := NewCatalog(store, testLogger())
	s := NewScanner(catalog, testLogger(), "/healthz", "/auth")

	routes := []Route{
		{Method: "GET", Path: "/healthz"},
		{Method: "POST", Path: "/auth/login"},
		{Method: "GET", Path: "/companies"},
		{Method: "GET", Path: "/companies/{companyID}"},
		{Method: "OPTIONS", Path: "/companies"},
	}

	diff, err := s.DryRun(ctx, routes)
	require.NoError(t, err)
	assert.Len(t, diff.ToAdd, 2)
	assert.Len(t, diff.Unclassified, 1)
	assert.Zero(t, diff.Existing)

	// Dry run never mutates the catalog.
	all, err := catalog.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestScannerApplyIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	catalog := NewCatalog(store, testLogger())
	s := NewScanner(catalog, testLogger())

	routes := []Route{
		{Method: "GET", Path: "/companies"},
		{Method: "POST", Path: "/companies"},
		{Method: "DELETE", Path: "/companies/{companyID}"},
	}

	diff, err := s.Apply(ctx, routes)
	require.NoError(t, err)
	assert.Len(t, diff.ToAdd, 3)

	again, err := s.Apply(ctx, routes)
	require.NoError(t, err)
	assert.Empty(t, again.ToAdd)
	assert.Equal(t, 3, again.Existing)

	all, err := catalog.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestScannerReportsStaleEntries(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	catalog := NewCatalog(store, testLogger())
	s := NewScanner(catalog, testLogger())

	_, _, err := catalog.Register(ctx, Descriptor{Entity: "legacy", Action: "list", Endpoint: "/legacy", HTTPMethod: "GET"})
	require.NoError(t, err)

	diff, err := s.DryRun(ctx, []Route{{Method: "GET", Path: "/companies"}})
	require.NoError(t, err)
	require.Len(t, diff.Stale, 1)
	assert.Equal(t, "legacy", diff.Stale[0].Entity)

	// Stale entries are report-only; apply must not purge them.
	_, err = s.Apply(ctx, []Route{{Method: "GET", Path: "/companies"}})
	require.NoError(t, err)
	_, err = catalog.FindByKey(ctx, "legacy", "list")
	require.NoError(t, err)
}

func TestScannerDeduplicatesRoutesSharingAKey(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	catalog := NewCatalog(store, testLogger())
	s := NewScanner(catalog, testLogger())

	// Both routes classify to vouchers:get; only one descriptor results.
	diff, err := s.Apply(ctx, []Route{
		{Method: "GET", Path: "/vouchers/{voucherID}"},
		{Method: "GET", Path: "/vouchers/{voucherID}/{detailID}"},
	})
	require.NoError(t, err)
	assert.Len(t, diff.ToAdd, 1)
}
