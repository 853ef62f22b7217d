package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/medb/medb/internal/config"
	"github.com/medb/medb/internal/plugin/route/auth"
	"github.com/medb/medb/internal/plugin/session/redis"
	"github.com/medb/medb/internal/plugin/store/memory"
	"github.com/medb/medb/internal/security"
	"github.com/medb/medb/internal/service"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct{}

func (fakeProvider) AuthCodeURL(state string) string {
	return "https://idp.test/authorize?state=" + url.QueryEscape(state)
}

func (fakeProvider) Exchange(_ context.Context, code string) (*security.Profile, error) {
	if code != "good" {
		return nil, errors.New("invalid_grant")
	}
	return &security.Profile{Subject: "sub-1", Name: "Ada Lovelace", Email: "ada@example.com"}, nil
}

type env struct {
	router *gin.Engine
	store  *memory.Store
	cfg    *config.Config
}

func setup(t *testing.T, provider security.IdentityProvider) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	sessions, err := redis.LoadFromURL(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sessions.Close() })

	cfg := config.DefaultConfig()
	cfg.ClientURL = "http://app.test"
	store := memory.New()
	r := gin.New()
	r.Use(security.SessionMiddleware(sessions, security.SessionOptions{CookieName: cfg.SessionCookieName}))
	auth.MountRoutes(r, &cfg, provider, service.NewAccountService(store), store, sessions)
	return &env{router: r, store: store, cfg: &cfg}
}

func (e *env) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func cookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func TestLoginFlow(t *testing.T) {
	e := setup(t, fakeProvider{})

	w := e.get("/auth/login/success")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"success":false,"message":"failure","user":null}`, w.Body.String())

	w = e.get("/auth/google")
	require.Equal(t, http.StatusFound, w.Code)
	state := cookie(t, w, "medb.oauth_state")
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, state.Value, loc.Query().Get("state"))

	w = e.get("/auth/google/callback?code=good&state="+url.QueryEscape(state.Value), state)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "http://app.test/home", w.Header().Get("Location"))
	session := cookie(t, w, e.cfg.SessionCookieName)
	require.True(t, session.HttpOnly)
	require.NotEmpty(t, session.Value)

	u, err := e.store.GetUser(context.Background(), "sub-1")
	require.NoError(t, err)
	require.Equal(t, "Ada Lovelace", u.DisplayName)
	require.NotEmpty(t, u.Username)

	w = e.get("/auth/login/success", session)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"success":true`)
	require.Contains(t, w.Body.String(), `"id":"sub-1"`)

	w = e.get("/auth/logout", session)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "http://app.test", w.Header().Get("Location"))
	require.Less(t, cookie(t, w, e.cfg.SessionCookieName).MaxAge, 0)

	w = e.get("/auth/login/success", session)
	require.Contains(t, w.Body.String(), `"success":false`)
}

func TestCallbackFailures(t *testing.T) {
	e := setup(t, fakeProvider{})
	state := &http.Cookie{Name: "medb.oauth_state", Value: "s1", Expires: time.Now().Add(time.Minute)}

	for name, path := range map[string]string{
		"missing state":  "/auth/google/callback?code=good&state=s1",
		"state mismatch": "/auth/google/callback?code=good&state=s2",
		"bad code":       "/auth/google/callback?code=bad&state=s1",
		"denied":         "/auth/google/callback?error=access_denied&state=s1",
	} {
		t.Run(name, func(t *testing.T) {
			var w *httptest.ResponseRecorder
			if name == "missing state" {
				w = e.get(path)
			} else {
				w = e.get(path, state)
			}
			require.Equal(t, http.StatusFound, w.Code)
			require.Equal(t, "/auth/login/failed", w.Header().Get("Location"))
		})
	}

	_, err := e.store.GetUser(context.Background(), "sub-1")
	require.Error(t, err)

	w := e.get("/auth/login/failed")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"success":false,"message":"failure"}`, w.Body.String())
}

func TestGoogleDisabled(t *testing.T) {
	e := setup(t, nil)
	w := e.get("/auth/google")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = e.get("/auth/health")
	require.Equal(t, http.StatusOK, w.Code)
}
