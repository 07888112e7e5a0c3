package authz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatepass-erp/gatepass-erp/internal/shared"
)

func authedRequest(t *testing.T, method, target string, userID int64) *http.Request {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "test_session", time.Hour, false)

	req := httptest.NewRequest(method, target, nil)
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetUserID(userID)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireUnauthenticated(t *testing.T) {
	store := newMockStore()
	mw := Middleware{Resolver: NewResolver(store, nil, testLogger()), Store: store, Logger: testLogger()}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/companies", nil)
	mw.Require("companies", "list", LevelRead)(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireDeniedReportsLevels(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	store.userRoles[7] = "Reader"
	_, err := store.InsertTemplateItemIfAbsent(ctx, TemplateItem{Role: "Reader", Entity: "companies", Action: "delete", Level: LevelRead})
	require.NoError(t, err)

	mw := Middleware{Resolver: NewResolver(store, nil, testLogger()), Store: store, Logger: testLogger()}

	rec := httptest.NewRecorder()
	req := authedRequest(t, http.MethodDelete, "/companies/1", 7)
	mw.Require("companies", "delete", LevelDelete)(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"actual":1`)
	assert.Contains(t, rec.Body.String(), `"required":4`)
}

func TestRequireAllowed(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	store.userRoles[7] = "Manager"
	_, err := store.InsertTemplateItemIfAbsent(ctx, TemplateItem{Role: "Manager", Entity: "companies", Action: "create", Level: LevelCreate})
	require.NoError(t, err)

	mw := Middleware{Resolver: NewResolver(store, nil, testLogger()), Store: store, Logger: testLogger()}

	rec := httptest.NewRecorder()
	req := authedRequest(t, http.MethodPost, "/companies", 7)
	mw.Require("companies", "create", LevelCreate)(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	store := newMockStore()
	store.userRoles[1] = "Admin"
	store.userRoles[7] = "Manager"

	mw := Middleware{Resolver: NewResolver(store, nil, testLogger()), Store: store, Logger: testLogger()}

	rec := httptest.NewRecorder()
	mw.RequireAdmin(okHandler()).ServeHTTP(rec, authedRequest(t, http.MethodGet, "/permissions", 1))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	mw.RequireAdmin(okHandler()).ServeHTTP(rec, authedRequest(t, http.MethodGet, "/permissions", 7))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Unknown user id resolves to forbidden, not an internal error.
	rec = httptest.NewRecorder()
	mw.RequireAdmin(okHandler()).ServeHTTP(rec, authedRequest(t, http.MethodGet, "/permissions", 99))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	mw.RequireAdmin(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/permissions", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
