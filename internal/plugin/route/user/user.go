package user

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/medb/medb/internal/catalog"
	"github.com/medb/medb/internal/model"
	registrystore "github.com/medb/medb/internal/registry/store"
	"github.com/medb/medb/internal/security"
	"github.com/medb/medb/internal/validation"
)

// Store is the persistence the profile routes need.
type Store interface {
	SetUsername(ctx context.Context, userID, username string) error
	UpdateProfile(ctx context.Context, userID string, update registrystore.ProfileUpdate) (*model.User, error)
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListShareLinks(ctx context.Context, userID string) ([]model.ShareLink, error)
}

// MountRoutes mounts the profile routes. publicLimit guards the
// unauthenticated public profile lookup.
func MountRoutes(r *gin.Engine, store Store, svc *catalog.Service, v *validation.Validator, auth, publicLimit gin.HandlerFunc) {
	h := &handler{store: store, svc: svc, v: v}

	r.GET("/api/user/public/:username", publicLimit, h.publicProfile)

	g := r.Group("/api/user", auth)
	g.PUT("/username", h.setUsername)
	g.PUT("/profile", h.updateProfile)
	g.PUT("/:category/:group/:tier", h.renameTier)
}

type handler struct {
	store Store
	svc   *catalog.Service
	v     *validation.Validator
}

type usernameRequest struct {
	Username string `json:"username"`
}

func (h *handler) setUsername(c *gin.Context) {
	var req usernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name, err := h.v.Username(req.Username)
	if err != nil {
		handleError(c, err)
		return
	}
	user := security.GetUser(c)
	if user.Username != name {
		if err := h.store.SetUsername(c.Request.Context(), user.ID, name); err != nil {
			var conflict *registrystore.ConflictError
			if errors.As(err, &conflict) {
				c.JSON(http.StatusConflict, gin.H{"error": "Username is already taken"})
				return
			}
			handleError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"username": name})
}

type profileRequest struct {
	IsPublicProfile  *bool    `json:"isPublicProfile"`
	SharedListsOrder []string `json:"sharedListsOrder" validate:"max=100,dive,max=40"`
}

func (h *handler) updateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.v.Validate(&req); err != nil {
		handleError(c, err)
		return
	}
	updated, err := h.store.UpdateProfile(c.Request.Context(), security.GetUserID(c), registrystore.ProfileUpdate{
		IsPublicProfile:  req.IsPublicProfile,
		SharedListsOrder: req.SharedListsOrder,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"isPublicProfile":  updated.IsPublicProfile,
		"sharedListsOrder": updated.SharedListsOrder,
	})
}

type renameRequest struct {
	NewTitle string `json:"newTitle"`
}

func (h *handler) renameTier(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.svc.RenameTier(c.Request.Context(), security.GetUser(c),
		c.Param("category"), c.Param("group"), c.Param("tier"), req.NewTitle)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "User Tier changed successfully!"})
}

// sharedList is one entry of a public profile.
type sharedList struct {
	Category    string            `json:"category"`
	Token       string            `json:"token"`
	ShareConfig model.ShareConfig `json:"shareConfig"`
}

func (h *handler) publicProfile(c *gin.Context) {
	ctx := c.Request.Context()
	owner, err := h.store.FindUserByUsername(ctx, strings.TrimSpace(c.Param("username")))
	if err != nil {
		var notFound *registrystore.NotFoundError
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
			return
		}
		handleError(c, err)
		return
	}
	if !owner.IsPublicProfile {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "This profile is private"})
		return
	}
	links, err := h.store.ListShareLinks(ctx, owner.ID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"user":        owner.Public(),
		"sharedLists": orderSharedLists(links, owner.SharedListsOrder),
	})
}

// orderSharedLists puts links in the owner's chosen category order. Links
// for categories missing from order keep their creation order at the end.
func orderSharedLists(links []model.ShareLink, order []string) []sharedList {
	byCategory := make(map[string]model.ShareLink, len(links))
	for _, l := range links {
		byCategory[l.Category] = l
	}
	out := make([]sharedList, 0, len(links))
	used := map[string]bool{}
	for _, cat := range order {
		l, ok := byCategory[cat]
		if !ok || used[cat] {
			continue
		}
		used[cat] = true
		out = append(out, sharedList{Category: l.Category, Token: l.Token, ShareConfig: l.ShareConfig})
	}
	for _, l := range links {
		if used[l.Category] {
			continue
		}
		out = append(out, sharedList{Category: l.Category, Token: l.Token, ShareConfig: l.ShareConfig})
	}
	return out
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
		log.Warn("User API store unavailable", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
	default:
		log.Error("User API error", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to Update User"})
	}
}
