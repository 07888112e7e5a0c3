package authz

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerFixture struct {
	store  *mockStore
	router chi.Router
}

func newHandlerFixture(t *testing.T, routes []Route) *handlerFixture {
	t.Helper()
	store := newMockStore()
	store.userRoles[1] = "Admin"

	catalog := NewCatalog(store, testLogger())
	scanner := NewScanner(catalog, testLogger(), "/healthz", "/auth")
	resolver := NewResolver(store, nil, testLogger())
	overrides := NewOverrideService(store, catalog, resolver, nil, testLogger())
	mw := Middleware{Resolver: resolver, Store: store, Logger: testLogger()}

	h := NewHandler(testLogger(), catalog, scanner, overrides, mw, func() []Route { return routes })
	router := chi.NewRouter()
	h.MountRoutes(router)
	return &handlerFixture{store: store, router: router}
}

func (f *handlerFixture) do(t *testing.T, method, target, body string, userID int64) *httptest.ResponseRecorder {
	t.Helper()
	req := authedRequest(t, method, target, userID)
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body)).WithContext(req.Context())
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerRequiresAdmin(t *testing.T) {
	f := newHandlerFixture(t, nil)
	f.store.userRoles[7] = "Manager"

	rec := f.do(t, http.MethodGet, "/permissions", "", 7)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	anon := httptest.NewRecorder()
	f.router.ServeHTTP(anon, httptest.NewRequest(http.MethodGet, "/permissions", nil))
	assert.Equal(t, http.StatusUnauthorized, anon.Code)
}

func TestHandlerListLevels(t *testing.T) {
	f := newHandlerFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/permissions/levels", "", 1)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Levels []LevelInfo `json:"levels"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Levels, 5)
}

func TestHandlerAutodiscover(t *testing.T) {
	routes := []Route{
		{Method: "GET", Path: "/companies"},
		{Method: "POST", Path: "/companies"},
		{Method: "GET", Path: "/healthz"},
	}
	f := newHandlerFixture(t, routes)

	rec := f.do(t, http.MethodPost, "/permissions/autodiscover", `{"dry_run": true}`, 1)
	require.Equal(t, http.StatusOK, rec.Code)
	var dry struct {
		DryRun bool         `json:"dry_run"`
		ToAdd  []Descriptor `json:"to_add"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dry))
	assert.True(t, dry.DryRun)
	assert.Len(t, dry.ToAdd, 2)

	// Dry run registered nothing.
	list := f.do(t, http.MethodGet, "/permissions", "", 1)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), `"permissions":[]`)

	rec = f.do(t, http.MethodPost, "/permissions/autodiscover", `{"dry_run": false}`, 1)
	require.Equal(t, http.StatusOK, rec.Code)

	list = f.do(t, http.MethodGet, "/permissions?entity=companies", "", 1)
	require.Equal(t, http.StatusOK, list.Code)
	var resp struct {
		Permissions []Descriptor `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &resp))
	assert.Len(t, resp.Permissions, 2)
}

func TestHandlerGrantLifecycle(t *testing.T) {
	f := newHandlerFixture(t, []Route{{Method: "DELETE", Path: "/companies/{companyID}"}})
	f.store.userRoles[7] = "Manager"

	rec := f.do(t, http.MethodPost, "/permissions/autodiscover", "", 1)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/user-permissions/grant/7",
		`{"entity": "companies", "action": "delete", "level": 4, "hours": 24, "reason": "quarter close"}`, 1)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created Override
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, int64(7), created.UserID)
	assert.Equal(t, LevelDelete, created.Level)
	assert.Equal(t, int64(1), created.GrantedBy)
	require.NotNil(t, created.ExpiresAt)

	rec = f.do(t, http.MethodGet, "/user-permissions/user/7", "", 1)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Overrides []Override `json:"overrides"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Overrides, 1)

	rec = f.do(t, http.MethodGet, "/user-permissions/user/7/effective", "", 1)
	require.Equal(t, http.StatusOK, rec.Code)
	var view EffectiveView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Permissions, 1)
	assert.Equal(t, SourceOverride, view.Permissions[0].Source)

	overridePath := "/user-permissions/" + strconv.FormatInt(created.ID, 10)
	rec = f.do(t, http.MethodDelete, overridePath, `{"reason": "done"}`, 1)
	require.Equal(t, http.StatusOK, rec.Code)

	// Second revoke conflicts.
	rec = f.do(t, http.MethodDelete, overridePath, "", 1)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerGrantValidation(t *testing.T) {
	f := newHandlerFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/user-permissions/grant/7", `{"action": "delete", "level": 4}`, 1)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/user-permissions/grant/7", `{"entity": "companies", "action": "delete", "level": 9}`, 1)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/user-permissions/grant/abc", `{"entity": "companies", "action": "delete", "level": 4}`, 1)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown permission key.
	rec = f.do(t, http.MethodPost, "/user-permissions/grant/7", `{"entity": "ghosts", "action": "delete", "level": 4}`, 1)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerCleanupExpired(t *testing.T) {
	f := newHandlerFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/user-permissions/cleanup-expired", "", 1)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deactivated":0`)
}
