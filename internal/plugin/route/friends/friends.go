package friends

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/medb/medb/internal/model"
	registrystore "github.com/medb/medb/internal/registry/store"
	"github.com/medb/medb/internal/security"
)

// Store is the persistence the friends routes need.
type Store interface {
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUsers(ctx context.Context, userIDs []string) ([]model.User, error)
	registrystore.FriendStore
}

// MountRoutes mounts the friends routes. Every route requires a session.
func MountRoutes(r *gin.Engine, store Store, auth gin.HandlerFunc) {
	h := &handler{store: store}
	g := r.Group("/api/friends", auth)

	g.GET("", h.list)
	g.GET("/requests", h.requests)
	g.POST("/request/:username", h.request)
	g.POST("/accept/:username", h.accept)
	g.POST("/reject/:username", h.reject)
	g.DELETE("/:username", h.remove)
}

type handler struct {
	store Store
}

func reply(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": status < http.StatusBadRequest, "message": message})
}

// lookup resolves the :username parameter. It writes the 404 itself and
// returns nil when the user does not exist.
func (h *handler) lookup(c *gin.Context) *model.User {
	target, err := h.store.FindUserByUsername(c.Request.Context(), strings.TrimSpace(c.Param("username")))
	if err != nil {
		var notFound *registrystore.NotFoundError
		if errors.As(err, &notFound) {
			reply(c, http.StatusNotFound, "User not found")
			return nil
		}
		handleError(c, err)
		return nil
	}
	return target
}

func (h *handler) request(c *gin.Context) {
	me := security.GetUser(c)
	if me.Username != "" && strings.EqualFold(me.Username, c.Param("username")) {
		reply(c, http.StatusBadRequest, "Cannot send friend request to yourself")
		return
	}
	target := h.lookup(c)
	if target == nil {
		return
	}
	switch {
	case target.ID == me.ID:
		reply(c, http.StatusBadRequest, "Cannot send friend request to yourself")
		return
	case me.IsFriend(target.ID):
		reply(c, http.StatusBadRequest, "Already friends with this user")
		return
	case me.PendingRequest(me.ID, target.ID) != nil:
		reply(c, http.StatusBadRequest, "Friend request already exists")
		return
	}
	req := model.FriendRequest{
		From:      me.ID,
		To:        target.ID,
		Status:    model.FriendRequestPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.AddFriendRequest(c.Request.Context(), req); err != nil {
		handleError(c, err)
		return
	}
	log.Info("Friend request sent", "from", me.ID, "to", target.ID)
	reply(c, http.StatusOK, "Friend request sent successfully")
}

func (h *handler) accept(c *gin.Context) {
	h.resolve(c, model.FriendRequestAccepted, "Friend request accepted")
}

func (h *handler) reject(c *gin.Context) {
	h.resolve(c, model.FriendRequestRejected, "Friend request rejected")
}

// resolve answers the pending request the :username user sent to the caller.
func (h *handler) resolve(c *gin.Context, status model.FriendRequestStatus, message string) {
	me := security.GetUser(c)
	sender := h.lookup(c)
	if sender == nil {
		return
	}
	ctx := c.Request.Context()
	found, err := h.store.ResolveFriendRequest(ctx, sender.ID, me.ID, status)
	if err != nil {
		handleError(c, err)
		return
	}
	if !found {
		reply(c, http.StatusNotFound, "Friend request not found")
		return
	}
	if status == model.FriendRequestAccepted {
		if err := h.store.AddFriendship(ctx, me.ID, sender.ID); err != nil {
			handleError(c, err)
			return
		}
	}
	reply(c, http.StatusOK, message)
}

func (h *handler) remove(c *gin.Context) {
	me := security.GetUser(c)
	target := h.lookup(c)
	if target == nil {
		return
	}
	if err := h.store.RemoveFriendship(c.Request.Context(), me.ID, target.ID); err != nil {
		handleError(c, err)
		return
	}
	reply(c, http.StatusOK, "Friend removed successfully")
}

func (h *handler) list(c *gin.Context) {
	me := security.GetUser(c)
	friends := []model.PublicUser{}
	if len(me.Friends) > 0 {
		users, err := h.store.GetUsers(c.Request.Context(), me.Friends)
		if err != nil {
			handleError(c, err)
			return
		}
		byID := indexUsers(users)
		for _, id := range me.Friends {
			if u, ok := byID[id]; ok {
				friends = append(friends, u.Public())
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "friends": friends})
}

type incomingRequest struct {
	From      model.PublicUser `json:"from"`
	CreatedAt time.Time        `json:"createdAt"`
}

type outgoingRequest struct {
	To        model.PublicUser `json:"to"`
	CreatedAt time.Time        `json:"createdAt"`
}

func (h *handler) requests(c *gin.Context) {
	me := security.GetUser(c)
	var pending []model.FriendRequest
	var ids []string
	for _, r := range me.FriendRequests {
		if r.Status != model.FriendRequestPending {
			continue
		}
		switch me.ID {
		case r.To:
			pending = append(pending, r)
			ids = append(ids, r.From)
		case r.From:
			pending = append(pending, r)
			ids = append(ids, r.To)
		}
	}

	byID := map[string]*model.User{}
	if len(ids) > 0 {
		users, err := h.store.GetUsers(c.Request.Context(), ids)
		if err != nil {
			handleError(c, err)
			return
		}
		byID = indexUsers(users)
	}

	incoming := []incomingRequest{}
	outgoing := []outgoingRequest{}
	for _, r := range pending {
		if r.To == me.ID {
			incoming = append(incoming, incomingRequest{From: publicOrUnknown(byID, r.From), CreatedAt: r.CreatedAt})
		} else {
			outgoing = append(outgoing, outgoingRequest{To: publicOrUnknown(byID, r.To), CreatedAt: r.CreatedAt})
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "incoming": incoming, "outgoing": outgoing})
}

func indexUsers(users []model.User) map[string]*model.User {
	out := make(map[string]*model.User, len(users))
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out
}

// publicOrUnknown returns the public view of id, with placeholders for users
// that no longer exist.
func publicOrUnknown(users map[string]*model.User, id string) model.PublicUser {
	u, ok := users[id]
	if !ok {
		return model.PublicUser{ID: id, Username: "Unknown", DisplayName: "Unknown User"}
	}
	p := u.Public()
	if p.Username == "" {
		p.Username = "Unknown"
	}
	if p.DisplayName == "" {
		p.DisplayName = "Unknown User"
	}
	return p
}

func handleError(c *gin.Context, err error) {
	var notFound *registrystore.NotFoundError
	var unavailable *registrystore.UnavailableError
	switch {
	case errors.As(err, &notFound):
		reply(c, http.StatusNotFound, "User not found")
	case errors.As(err, &unavailable):
		log.Warn("Friends API store unavailable", "err", err)
		reply(c, http.StatusServiceUnavailable, "Service temporarily unavailable")
	default:
		log.Error("Friends API error", "err", err)
		reply(c, http.StatusInternalServerError, "Internal server error")
	}
}
