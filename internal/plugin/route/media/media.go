package media

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/medb/medb/internal/catalog"
	"github.com/medb/medb/internal/model"
	registrystore "github.com/medb/medb/internal/registry/store"
	"github.com/medb/medb/internal/security"
	"github.com/medb/medb/internal/validation"
)

// MountRoutes mounts the media item routes.
func MountRoutes(r *gin.Engine, svc *catalog.Service, v *validation.Validator, auth gin.HandlerFunc) {
	h := &handler{svc: svc, v: v}
	g := r.Group("/api/media", auth)

	g.GET("/export", h.export)
	g.POST("", h.create)
	g.POST("/types", h.defineType)
	g.DELETE("/types/:name", h.removeType)
	// :key is an item id, except on reorder where it names the group.
	// gin requires one wildcard name per path position.
	g.GET("/:category/:key", h.get)
	g.PUT("/:category/:key", h.update)
	g.DELETE("/:category/:key", h.delete)
	g.PUT("/:category/:key/:tier/reorder", h.reorder)
}

type handler struct {
	svc *catalog.Service
	v   *validation.Validator
}

type createRequest struct {
	Category    string   `json:"category" validate:"required"`
	Title       string   `json:"title" validate:"required,max=500"`
	Tier        string   `json:"tier" validate:"required,fieldkey"`
	IsToDo      bool     `json:"isToDo"`
	Year        any      `json:"year"`
	Tags        []string `json:"tags" validate:"max=50"`
	Description string   `json:"description" validate:"max=5000"`
}

func (h *handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.v.Validate(&req); err != nil {
		handleError(c, err)
		return
	}
	year, err := catalog.ParseYear(req.Year)
	if err != nil {
		handleError(c, err)
		return
	}
	item, err := h.svc.CreateItem(c.Request.Context(), security.GetUser(c), catalog.NewItem{
		Category:    req.Category,
		Title:       req.Title,
		Tier:        req.Tier,
		ToDo:        req.IsToDo,
		Year:        year,
		Tags:        req.Tags,
		Description: req.Description,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Media added successfully!", "id": item.ID})
}

func (h *handler) get(c *gin.Context) {
	ctx := c.Request.Context()
	userID := security.GetUserID(c)
	category := c.Param("category")
	key := c.Param("key")

	if toDo, ok := model.ParseGroup(key); ok {
		items, tags, err := h.svc.ListItems(ctx, userID, category, toDo)
		if err != nil {
			handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"media": items, "uniqueTags": tags})
		return
	}

	id, ok := parseSeq(key)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid media id"})
		return
	}
	item, err := h.svc.GetItem(ctx, userID, category, id)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

type updateRequest struct {
	Title       *string         `json:"title"`
	Tier        *string         `json:"tier" validate:"omitempty,fieldkey"`
	ToDo        *bool           `json:"toDo"`
	IsToDo      *bool           `json:"isToDo"`
	OrderIndex  *float64        `json:"orderIndex"`
	Year        json.RawMessage `json:"year"`
	Tags        *[]string       `json:"tags"`
	Description *string         `json:"description"`
}

func (req *updateRequest) patch() (catalog.ItemPatch, error) {
	p := catalog.ItemPatch{
		Title:       req.Title,
		Tier:        req.Tier,
		ToDo:        req.ToDo,
		OrderIndex:  req.OrderIndex,
		Tags:        req.Tags,
		Description: req.Description,
	}
	if p.ToDo == nil {
		p.ToDo = req.IsToDo
	}
	if len(req.Year) > 0 {
		var raw any
		if err := json.Unmarshal(req.Year, &raw); err != nil {
			return p, &registrystore.ValidationError{Field: "year", Message: "invalid year"}
		}
		year, err := catalog.ParseYear(raw)
		if err != nil {
			return p, err
		}
		if year == nil {
			p.ClearYear = true
		} else {
			p.Year = year
		}
	}
	return p, nil
}

func (h *handler) update(c *gin.Context) {
	id, ok := parseSeq(c.Param("key"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid media id"})
		return
	}
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.v.Validate(&req); err != nil {
		handleError(c, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		handleError(c, err)
		return
	}
	item, err := h.svc.UpdateItem(c.Request.Context(), security.GetUserID(c), c.Param("category"), id, patch)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Updated successfully", "media": item})
}

func (h *handler) delete(c *gin.Context) {
	id, ok := parseSeq(c.Param("key"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid media id"})
		return
	}
	deleted, err := h.svc.DeleteItem(c.Request.Context(), security.GetUser(c), c.Param("category"), id)
	if err != nil {
		var notFound *registrystore.NotFoundError
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No such a media"})
			return
		}
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Media entry deleted successfully", "toDo": deleted.ToDo})
}

type reorderRequest struct {
	OrderedIDs seqList `json:"orderedIds"`
}

func (h *handler) reorder(c *gin.Context) {
	toDo, ok := model.ParseGroup(c.Param("key"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group"})
		return
	}
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	key := model.ListKey{
		UserID:   security.GetUserID(c),
		Category: c.Param("category"),
		ToDo:     toDo,
		Tier:     c.Param("tier"),
	}
	res, err := h.svc.Reorder(c.Request.Context(), key, req.OrderedIDs)
	if err != nil {
		handleError(c, err)
		return
	}
	if res.NoChanges {
		c.JSON(http.StatusOK, gin.H{"msg": "No changes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Reordered successfully"})
}

func (h *handler) export(c *gin.Context) {
	csv, err := h.svc.Export(c.Request.Context(), security.GetUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "csv": csv})
}

type typeRequest struct {
	Name string `json:"name" validate:"required"`
}

func (h *handler) defineType(c *gin.Context) {
	var req typeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.v.Validate(&req); err != nil {
		handleError(c, err)
		return
	}
	name, err := h.svc.DefineCategory(c.Request.Context(), security.GetUserID(c), req.Name)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "name": name})
}

func (h *handler) removeType(c *gin.Context) {
	if err := h.svc.RemoveCategory(c.Request.Context(), security.GetUser(c), c.Param("name")); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func handleError(c *gin.Context, err error) {
	var notFound *registrystore.NotFoundError
	var validationErr *registrystore.ValidationError
	var conflict *registrystore.ConflictError
	var forbidden *registrystore.ForbiddenError
	var unavailable *registrystore.UnavailableError
	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Message})
	case errors.As(err, &forbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.As(err, &unavailable):
		log.Warn("Media API store unavailable", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
	default:
		log.Error("Media API error", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
	}
}
