package system

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	registryroute "github.com/medb/medb/internal/registry/route"
)

const probeTimeout = 2 * time.Second

// Probe checks a dependency the service needs to serve traffic.
type Probe func(ctx context.Context) error

var (
	ready atomic.Bool
	probe atomic.Pointer[Probe]
)

// MarkReady signals that the service has finished initializing and is ready to
// serve traffic. Call this once StartServer has completed successfully.
func MarkReady() {
	ready.Store(true)
}

// SetReadinessProbe installs a check run on every /ready request after
// MarkReady. A nil probe removes it.
func SetReadinessProbe(p Probe) {
	if p == nil {
		probe.Store(nil)
		return
	}
	probe.Store(&p)
}

func readiness(c *gin.Context) {
	if !ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
		return
	}
	if p := probe.Load(); p != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
		defer cancel()
		if err := (*p)(ctx); err != nil {
			log.Warn("Readiness probe failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func init() {
	registryroute.Register(registryroute.Plugin{
		Name:  "system",
		Order: 0,
		Type:  registryroute.RouteTypeManagement,
		Loader: func(r *gin.Engine) error {
			// Liveness: process is up
			r.GET("/health", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"status": "ok"})
			})

			// Readiness: initialized and the store answers
			r.GET("/ready", readiness)

			r.GET("/metrics", gin.WrapH(promhttp.Handler()))

			return nil
		},
	})
}
