package system

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	registryroute "github.com/medb/medb/internal/registry/route"
	"github.com/stretchr/testify/require"
)

func TestManagementRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	for _, load := range registryroute.ManagementRouteLoaders() {
		require.NoError(t, load(r))
	}
	get := func(path string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w.Code
	}
	t.Cleanup(func() {
		ready.Store(false)
		SetReadinessProbe(nil)
	})

	require.Equal(t, http.StatusOK, get("/health"))
	require.Equal(t, http.StatusOK, get("/metrics"))
	require.Equal(t, http.StatusServiceUnavailable, get("/ready"))

	MarkReady()
	require.Equal(t, http.StatusOK, get("/ready"))

	SetReadinessProbe(func(context.Context) error { return errors.New("store down") })
	require.Equal(t, http.StatusServiceUnavailable, get("/ready"))

	SetReadinessProbe(func(context.Context) error { return nil })
	require.Equal(t, http.StatusOK, get("/ready"))
}
