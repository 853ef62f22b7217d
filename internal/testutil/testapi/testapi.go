// Package testapi builds gin engines and requests for route tests.
package testapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medb/medb/internal/model"
	"github.com/medb/medb/internal/plugin/store/memory"
	"github.com/medb/medb/internal/security"
	"github.com/stretchr/testify/require"
)

// Env is a test engine over a memory store. Requests pick their caller with
// the testing-mode user header.
type Env struct {
	Router *gin.Engine
	Store  *memory.Store
	Auth   gin.HandlerFunc
}

// New returns an Env with the session middleware installed in testing mode.
func New(t *testing.T) *Env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memory.New()
	r := gin.New()
	r.Use(security.SessionMiddleware(nil, security.SessionOptions{TestingMode: true}))
	return &Env{Router: r, Store: store, Auth: security.RequireAuth(store, 5*time.Minute)}
}

// CreateUser stores a fresh user with the given id and username.
func (e *Env) CreateUser(t *testing.T, id, username string) *model.User {
	t.Helper()
	u := model.NewUser(id, "Test "+id, id+"@example.com", "", time.Now().UTC())
	u.Username = username
	require.NoError(t, e.Store.CreateUser(context.Background(), u))
	return u
}

// Do sends a request as userID (anonymous when empty). body is JSON-encoded
// unless it is nil.
func (e *Env) Do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(security.TestUserHeader, userID)
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// JSON decodes the response body into a generic map.
func JSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

// RequireStatus fails with the response body when the status differs.
func RequireStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, w.Code, "body: %s", w.Body.String())
}

// Anonymous is the empty caller id.
const Anonymous = ""
