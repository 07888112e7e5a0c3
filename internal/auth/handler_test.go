package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gatepass-erp/gatepass-erp/internal/shared"
	"github.com/gatepass-erp/gatepass-erp/internal/users"
)

type staticUsers map[string]users.User

func (s staticUsers) FindByEmail(_ context.Context, email string) (users.User, error) {
	u, ok := s[strings.ToLower(email)]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

func (s staticUsers) Get(_ context.Context, id int64) (users.User, error) {
	for _, u := range s {
		if u.ID == id {
			return u, nil
		}
	}
	return users.User{}, users.ErrNotFound
}

type authFixture struct {
	router   chi.Router
	sessions *shared.SessionManager
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)

	accounts := staticUsers{
		"ana@example.com": {ID: 7, Email: "ana@example.com", Name: "Ana", PasswordHash: string(hash), RoleName: "Manager", IsActive: true},
		"off@example.com": {ID: 8, Email: "off@example.com", Name: "Off", PasswordHash: string(hash), RoleName: "Reader", IsActive: false},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, NewService(accounts), accounts)

	router := chi.NewRouter()
	handler.MountRoutes(router)

	return authFixture{
		router:   router,
		sessions: shared.NewSessionManager(client, "gatepass_session", time.Hour, false),
	}
}

func (f authFixture) do(t *testing.T, method, target, body string, sess *shared.Session) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if sess == nil {
		sess = &shared.Session{}
	}
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestLoginBindsSession(t *testing.T) {
	f := newAuthFixture(t)
	sess := &shared.Session{}

	rec := f.do(t, http.MethodPost, "/auth/login", `{"email":"ana@example.com","password":"correct-horse"}`, sess)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"role_name":"Manager"`)
	require.Equal(t, int64(7), sess.UserID())
}

func TestLoginWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	sess := &shared.Session{}

	rec := f.do(t, http.MethodPost, "/auth/login", `{"email":"ana@example.com","password":"wrong"}`, sess)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Zero(t, sess.UserID())
}

func TestLoginUnknownEmailSameResponse(t *testing.T) {
	f := newAuthFixture(t)

	known := f.do(t, http.MethodPost, "/auth/login", `{"email":"ana@example.com","password":"wrong"}`, nil)
	unknown := f.do(t, http.MethodPost, "/auth/login", `{"email":"ghost@example.com","password":"wrong"}`, nil)
	require.Equal(t, http.StatusUnauthorized, known.Code)
	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	require.Equal(t, known.Body.String(), unknown.Body.String())
}

func TestLoginDeactivatedAccount(t *testing.T) {
	f := newAuthFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/login", `{"email":"off@example.com","password":"correct-horse"}`, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginValidation(t *testing.T) {
	f := newAuthFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/login", `{"email":"not-an-email","password":"x"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/login", `{notjson`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMe(t *testing.T) {
	f := newAuthFixture(t)

	sess := &shared.Session{}
	sess.SetUserID(7)
	rec := f.do(t, http.MethodGet, "/auth/me", "", sess)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"email":"ana@example.com"`)

	rec = f.do(t, http.MethodGet, "/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutDestroysSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := f.sessions.Load(ctx, req)
	require.NoError(t, err)
	sess.SetUserID(7)

	rec := f.do(t, http.MethodPost, "/auth/logout", "", sess)
	require.Equal(t, http.StatusNoContent, rec.Code)

	commit := httptest.NewRecorder()
	require.NoError(t, f.sessions.Commit(ctx, commit, sess))
	cookies := commit.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, -1, cookies[0].MaxAge)
}
