package stats

import (
	"context"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/medb/medb/internal/model"
	registrystore "github.com/medb/medb/internal/registry/store"
	"github.com/medb/medb/internal/security"
	"github.com/medb/medb/internal/service"
)

// ItemLister lists a user's items.
type ItemLister interface {
	ListItems(ctx context.Context, q registrystore.ItemQuery) ([]model.Item, error)
}

// MountRoutes mounts the statistics route.
func MountRoutes(r *gin.Engine, items ItemLister, auth gin.HandlerFunc) {
	r.GET("/api/stats", auth, func(c *gin.Context) {
		user := security.GetUser(c)
		all, err := items.ListItems(c.Request.Context(), registrystore.ItemQuery{UserID: user.ID})
		if err != nil {
			status := http.StatusInternalServerError
			var unavailable *registrystore.UnavailableError
			if errors.As(err, &unavailable) {
				status = http.StatusServiceUnavailable
			}
			log.Error("Stats API error", "user", user.ID, "err", err)
			c.JSON(status, gin.H{"success": false, "message": "Error fetching statistics"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": service.ComputeStats(user, all)})
	})
}
