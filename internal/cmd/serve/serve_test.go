package serve

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medb/medb/internal/config"
	"github.com/medb/medb/internal/model"
	"github.com/medb/medb/internal/security"
	"github.com/stretchr/testify/require"
)

func TestMaxBodySizeMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(maxBodySizeMiddleware(4))
	router.POST("/api/media", readBodyLengthHandler)

	req := httptest.NewRequest(http.MethodPost, "/api/media", strings.NewReader("0123456789"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/media", strings.NewReader("0123"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "4", rec.Body.String())
}

func readBodyLengthHandler(c *gin.Context) {
	n, err := io.Copy(io.Discard, c.Request.Body)
	if err != nil {
		c.Status(http.StatusRequestEntityTooLarge)
		return
	}
	c.String(http.StatusOK, "%d", n)
}

func TestValidate(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DBURL = "mongodb://localhost:27017/medb"
	cfg.SessionSecret = "0123456789abcdef0123"
	require.NoError(t, validate(&cfg))

	bad := cfg
	bad.Mode = "dev"
	require.ErrorContains(t, validate(&bad), "invalid --mode")

	bad = cfg
	bad.DBURL = ""
	require.ErrorContains(t, validate(&bad), "--db-url")

	bad = cfg
	bad.SessionType = "redis"
	require.ErrorContains(t, validate(&bad), "--redis-url")

	bad = cfg
	bad.SessionSecret = ""
	require.ErrorContains(t, validate(&bad), "--session-secret")

	bad.Mode = config.ModeTesting
	bad.DatastoreType = "memory"
	bad.DBURL = ""
	require.NoError(t, validate(&bad))
}

func startTestServer(t *testing.T, mutate func(cfg *config.Config)) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeTesting
	cfg.DatastoreType = "memory"
	cfg.SessionType = "cookie"
	cfg.SessionSecret = "serve-test-secret-0123456789"
	cfg.Listener.Port = 0
	if mutate != nil {
		mutate(&cfg)
	}
	ctx := config.WithContext(context.Background(), &cfg)
	srv, err := StartServer(ctx, &cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func TestStartServer_ServesAPIAndProbes(t *testing.T) {
	srv := startTestServer(t, nil)
	base := fmt.Sprintf("http://127.0.0.1:%d", srv.Running.Port)

	resp, err := http.Get(base + "/ready")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	u := model.NewUser("u1", "Serve Tester", "serve@example.com", "", time.Now().UTC())
	require.NoError(t, srv.Store.CreateUser(context.Background(), u))

	body, err := json.Marshal(map[string]any{"category": "movies", "title": "Alien", "tier": "S", "year": 1979})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, base+"/api/media", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(security.TestUserHeader, "u1")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	var created map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, created["id"])

	resp, err = http.Get(base + "/api/media/movies/collection")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	tlsClient := &http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}}
	resp, err = tlsClient.Get(fmt.Sprintf("https://127.0.0.1:%d/health", srv.Running.Port))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStartServer_ManagementPort(t *testing.T) {
	srv := startTestServer(t, func(cfg *config.Config) {
		cfg.ManagementListenerEnabled = true
		cfg.ManagementListener.Port = 0
		cfg.ManagementListener.EnableTLS = false
	})

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", srv.Running.Port))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStartServer_UnknownStore(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DatastoreType = "nope"
	cfg.Listener.Port = 0
	_, err := StartServer(config.WithContext(context.Background(), &cfg), &cfg)
	require.ErrorContains(t, err, "unknown store")
}
