package share

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/medb/medb/internal/model"
	registrystore "github.com/medb/medb/internal/registry/store"
	"github.com/medb/medb/internal/security"
)

// tokenAttempts bounds retries when a generated token collides.
const tokenAttempts = 3

// Store is the persistence the share routes need.
type Store interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
	ListItems(ctx context.Context, q registrystore.ItemQuery) ([]model.Item, error)
	registrystore.ShareStore
}

// MountRoutes mounts the share link routes. publicLimit guards the
// unauthenticated token lookup.
func MountRoutes(r *gin.Engine, store Store, auth, publicLimit gin.HandlerFunc) {
	h := &handler{store: store, newToken: func() (string, error) { return gonanoid.New() }}

	g := r.Group("/api/share")
	g.POST("", auth, h.create)
	g.GET("/status/:category", auth, h.status)
	g.DELETE("/:category", auth, h.revoke)
	g.GET("/:token", publicLimit, h.view)
}

type handler struct {
	store    Store
	newToken func() (string, error)
}

type createRequest struct {
	Category    string             `json:"category"`
	ShareConfig *model.ShareConfig `json:"shareConfig"`
}

func (h *handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid share configuration"})
		return
	}
	req.Category = strings.TrimSpace(req.Category)
	if req.Category == "" || req.ShareConfig == nil || !req.ShareConfig.Any() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid share configuration"})
		return
	}
	user := security.GetUser(c)
	if _, ok := user.Ref(req.Category); !ok {
		handleError(c, &registrystore.NotFoundError{Resource: "category", ID: req.Category})
		return
	}

	var (
		link    *model.ShareLink
		existed bool
		err     error
	)
	for attempt := 0; attempt < tokenAttempts; attempt++ {
		token, genErr := h.newToken()
		if genErr != nil {
			handleError(c, fmt.Errorf("generate share token: %w", genErr))
			return
		}
		link, existed, err = h.store.UpsertShareLink(c.Request.Context(), &model.ShareLink{
			Token:       token,
			UserID:      user.ID,
			Category:    req.Category,
			ShareConfig: *req.ShareConfig,
			CreatedAt:   time.Now().UTC(),
		})
		var conflict *registrystore.ConflictError
		if errors.As(err, &conflict) && conflict.Code == "token_exists" {
			log.Warn("Share token collision, retrying", "attempt", attempt+1)
			continue
		}
		break
	}
	if err != nil {
		handleError(c, err)
		return
	}
	resp := gin.H{"success": true, "token": link.Token}
	if existed {
		resp["isExisting"] = true
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) status(c *gin.Context) {
	link, err := h.store.GetShareLink(c.Request.Context(), security.GetUserID(c), c.Param("category"))
	if err != nil {
		var notFound *registrystore.NotFoundError
		if errors.As(err, &notFound) {
			c.JSON(http.StatusOK, gin.H{"exists": false})
			return
		}
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": true, "token": link.Token, "shareConfig": link.ShareConfig})
}

func (h *handler) revoke(c *gin.Context) {
	if err := h.store.DeleteShareLink(c.Request.Context(), security.GetUserID(c), c.Param("category")); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handler) view(c *gin.Context) {
	ctx := c.Request.Context()
	link, err := h.store.GetShareLinkByToken(ctx, c.Param("token"))
	if err != nil {
		var notFound *registrystore.NotFoundError
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Share link not found or expired"})
			return
		}
		handleError(c, err)
		return
	}

	media, err := h.store.ListItems(ctx, registrystore.ItemQuery{
		UserID:   link.UserID,
		Category: link.Category,
		ToDo:     link.ShareConfig.ToDoFilter(),
	})
	if err != nil {
		handleError(c, err)
		return
	}

	ownerName := "User"
	collectionTitles, todoTitles := map[string]string{}, map[string]string{}
	owner, err := h.store.GetUser(ctx, link.UserID)
	switch {
	case err == nil:
		ownerName = OwnerName(owner.DisplayName)
		if ref, ok := owner.Ref(link.Category); ok {
			if b := owner.Bucket(ref); b != nil {
				collectionTitles, todoTitles = b.Labels(false), b.Labels(true)
			}
		}
	default:
		var notFound *registrystore.NotFoundError
		if !errors.As(err, &notFound) {
			handleError(c, err)
			return
		}
	}
	tierTitles := collectionTitles
	if !link.ShareConfig.Collection && link.ShareConfig.Todo {
		tierTitles = todoTitles
	}

	c.JSON(http.StatusOK, gin.H{
		"success":              true,
		"media":                media,
		"shareConfig":          link.ShareConfig,
		"category":             link.Category,
		"ownerName":            ownerName,
		"tierTitles":           tierTitles,
		"collectionTierTitles": collectionTitles,
		"todoTierTitles":       todoTitles,
	})
}

// OwnerName is the first word of a display name, or "User" when it is blank.
func OwnerName(displayName string) string {
	if fields := strings.Fields(displayName); len(fields) > 0 {
		return fields[0]
	}
	return "User"
}

func handleError(c *gin.Context, err error) {
	var notFound *registrystore.NotFoundError
	var validationErr *registrystore.ValidationError
	var conflict *registrystore.ConflictError
	var unavailable *registrystore.UnavailableError
	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Message})
	case errors.As(err, &unavailable):
		log.Warn("Share API store unavailable", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
	default:
		log.Error("Share API error", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
	}
}
