package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestAllowBurstThenReject(t *testing.T) {
	krl := New(0.001, 3)
	defer krl.Stop()

	for i := 0; i < 3; i++ {
		require.True(t, krl.Allow("1.2.3.4"), "request %d", i)
	}
	require.False(t, krl.Allow("1.2.3.4"))
	require.True(t, krl.Allow("5.6.7.8"), "keys are independent")
}

func TestEvictIdle(t *testing.T) {
	krl := New(1, 1)
	defer krl.Stop()
	now := time.Now()
	krl.now = func() time.Time { return now }

	krl.Allow("a")
	now = now.Add(idleTTL / 2)
	krl.Allow("b")
	now = now.Add(idleTTL/2 + time.Second)
	krl.evictIdle()

	require.Equal(t, 1, krl.Len())
}

func TestStopIsIdempotent(t *testing.T) {
	krl := New(1, 1)
	krl.Stop()
	krl.Stop()
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	krl := New(0.001, 1)
	defer krl.Stop()

	r := gin.New()
	r.GET("/x", Middleware(krl), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Contains(t, w.Body.String(), "Too many requests")
}
