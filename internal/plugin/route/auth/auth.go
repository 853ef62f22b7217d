package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/medb/medb/internal/config"
	"github.com/medb/medb/internal/model"
	registrysession "github.com/medb/medb/internal/registry/session"
	registrystore "github.com/medb/medb/internal/registry/store"
	"github.com/medb/medb/internal/security"
)

const (
	stateCookie = "medb.oauth_state"
	stateMaxAge = 10 * time.Minute
	failedPath  = "/auth/login/failed"
)

// Accounts provisions users on login.
type Accounts interface {
	Provision(ctx context.Context, p *security.Profile) (*model.User, bool, error)
}

// UserLoader loads the user of the current session.
type UserLoader interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
}

// MountRoutes mounts the login routes. provider is nil when Google login is
// not configured; the /auth/google routes then answer 503.
func MountRoutes(r *gin.Engine, cfg *config.Config, provider security.IdentityProvider, accounts Accounts, users UserLoader, sessions registrysession.Store) {
	h := &handler{cfg: cfg, provider: provider, accounts: accounts, users: users, sessions: sessions}
	g := r.Group("/auth")

	g.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	g.GET("/login/failed", func(c *gin.Context) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "failure"})
	})
	g.GET("/login/success", h.loginSuccess)
	g.GET("/google", h.login)
	g.GET("/google/callback", h.callback)
	g.GET("/logout", h.logout)
}

type handler struct {
	cfg      *config.Config
	provider security.IdentityProvider
	accounts Accounts
	users    UserLoader
	sessions registrysession.Store
}

func (h *handler) loginSuccess(c *gin.Context) {
	failure := gin.H{"success": false, "message": "failure", "user": nil}
	userID := security.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusOK, failure)
		return
	}
	user, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		var notFound *registrystore.NotFoundError
		if !errors.As(err, &notFound) {
			log.Error("Failed to load session user", "user", userID, "err", err)
		}
		c.JSON(http.StatusOK, failure)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "successful", "user": user})
}

func (h *handler) setCookie(c *gin.Context, name, value string, maxAge time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	seconds := int(maxAge / time.Second)
	if maxAge < 0 {
		seconds = -1
	}
	c.SetCookie(name, value, seconds, "/", "", h.cfg.SessionCookieSecure, true)
}

func (h *handler) login(c *gin.Context) {
	if h.provider == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "Google login is not configured"})
		return
	}
	state := uuid.NewString()
	h.setCookie(c, stateCookie, state, stateMaxAge)
	c.Redirect(http.StatusFound, h.provider.AuthCodeURL(state))
}

func (h *handler) callback(c *gin.Context) {
	if h.provider == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "Google login is not configured"})
		return
	}
	ctx := c.Request.Context()
	expected, _ := c.Cookie(stateCookie)
	h.setCookie(c, stateCookie, "", -1)
	if expected == "" || c.Query("state") != expected {
		log.Warn("OAuth callback rejected: state mismatch", "clientIP", c.ClientIP())
		c.Redirect(http.StatusFound, failedPath)
		return
	}
	if e := c.Query("error"); e != "" {
		log.Info("OAuth login declined", "error", e)
		c.Redirect(http.StatusFound, failedPath)
		return
	}

	profile, err := h.provider.Exchange(ctx, c.Query("code"))
	if err != nil {
		log.Warn("OAuth code exchange failed", "err", err)
		c.Redirect(http.StatusFound, failedPath)
		return
	}
	user, created, err := h.accounts.Provision(ctx, profile)
	if err != nil {
		log.Error("Failed to provision user", "subject", profile.Subject, "err", err)
		c.Redirect(http.StatusFound, failedPath)
		return
	}
	token, err := h.sessions.Create(ctx, user.ID, h.cfg.SessionTTL)
	if err != nil {
		log.Error("Failed to create session", "user", user.ID, "err", err)
		c.Redirect(http.StatusFound, failedPath)
		return
	}
	h.setCookie(c, h.cfg.SessionCookieName, token, h.cfg.SessionTTL)
	log.Info("User logged in", "user", user.ID, "created", created)
	c.Redirect(http.StatusFound, strings.TrimRight(h.cfg.ClientURL, "/")+"/home")
}

func (h *handler) logout(c *gin.Context) {
	if token := security.SessionToken(c, h.cfg.SessionCookieName); token != "" && h.sessions != nil {
		if err := h.sessions.Delete(c.Request.Context(), token); err != nil {
			log.Warn("Failed to delete session", "err", err)
		}
	}
	h.setCookie(c, h.cfg.SessionCookieName, "", -1)
	c.Redirect(http.StatusFound, h.cfg.ClientURL)
}
