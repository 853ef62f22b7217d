package admin

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/medb/medb/internal/config"
	registrystore "github.com/medb/medb/internal/registry/store"
	"github.com/medb/medb/internal/security"
)

const (
	defaultRangeDays = 30
	usersPageSize    = 10
)

var validSortFields = map[string]bool{"lastActiveAt": true, "createdAt": true, "totalRecords": true}

// MountRoutes mounts the admin dashboard routes. Only users whose email is
// in cfg.AdminEmails get through.
func MountRoutes(r *gin.Engine, store registrystore.AdminStore, cfg *config.Config, auth gin.HandlerFunc) {
	h := &handler{store: store, now: time.Now}
	g := r.Group("/api/admin", auth, security.RequireAdmin(cfg.AdminEmailSet()), security.AdminAuditMiddleware())

	g.GET("/stats", h.stats)
	g.GET("/users", h.users)

	ops := newOpsHandler(cfg)
	g.GET("/ops/request-rate", ops.rangeHandler(requestRateQuery, "request_rate", "requests/sec"))
	g.GET("/ops/error-rate", ops.rangeHandler(errorRateQuery, "error_rate", "percent"))
	g.GET("/ops/latency-p95", ops.rangeHandler(latencyP95Query, "latency_p95", "seconds"))
	g.GET("/ops/allocation-rate", ops.rangeHandler(allocationRateQuery, "allocation_rate", "allocations/sec"))
	g.GET("/ops/store-latency-p95", ops.multiSeriesHandler(storeLatencyP95Query, "store_latency_p95", "seconds", "operation"))
	g.GET("/ops/store-throughput", ops.multiSeriesHandler(storeThroughputQuery, "store_throughput", "operations/sec", "operation"))
}

type handler struct {
	store registrystore.AdminStore
	now   func() time.Time
}

type dayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type monthCount struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

func (h *handler) stats(c *gin.Context) {
	ctx := c.Request.Context()
	days := queryInt(c, "range", defaultRangeDays)
	if days <= 0 {
		days = defaultRangeDays
	}
	since := h.now().UTC().AddDate(0, 0, -days)

	total, err := h.store.CountUsers(ctx)
	if err != nil {
		handleError(c, err)
		return
	}
	daily, err := h.store.CountActivity(ctx, registrystore.ActivityLastActive, since, registrystore.PeriodDay)
	if err != nil {
		handleError(c, err)
		return
	}
	monthly, err := h.store.CountActivity(ctx, registrystore.ActivityLastActive, since, registrystore.PeriodMonth)
	if err != nil {
		handleError(c, err)
		return
	}
	signups, err := h.store.CountActivity(ctx, registrystore.ActivityCreated, since, registrystore.PeriodDay)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"totalUsers":         total,
		"dailyActiveUsers":   toDays(daily),
		"monthlyActiveUsers": toMonths(monthly),
		"newSignupsPerDay":   toDays(signups),
	})
}

func toDays(in []registrystore.PeriodCount) []dayCount {
	out := make([]dayCount, 0, len(in))
	for _, p := range in {
		out = append(out, dayCount{Date: p.Period, Count: p.Count})
	}
	return out
}

func toMonths(in []registrystore.PeriodCount) []monthCount {
	out := make([]monthCount, 0, len(in))
	for _, p := range in {
		out = append(out, monthCount{Month: p.Period, Count: p.Count})
	}
	return out
}

func (h *handler) users(c *gin.Context) {
	ctx := c.Request.Context()
	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	sortField := c.Query("sort")
	if !validSortFields[sortField] {
		sortField = "lastActiveAt"
	}

	users, err := h.store.ListUsersPage(ctx, registrystore.AdminUserQuery{
		Page:  page,
		Limit: usersPageSize,
		Sort:  sortField,
		Asc:   c.Query("order") == "asc",
	})
	if err != nil {
		handleError(c, err)
		return
	}
	total, err := h.store.CountUsers(ctx)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"users":      users,
		"total":      total,
		"page":       page,
		"totalPages": int64(math.Ceil(float64(total) / usersPageSize)),
	})
}

func handleError(c *gin.Context, err error) {
	var unavailable *registrystore.UnavailableError
	switch {
	case errors.As(err, &unavailable), errors.Is(err, context.DeadlineExceeded):
		log.Warn("Admin API store unavailable", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "Service temporarily unavailable"})
	default:
		log.Error("Admin API error", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
