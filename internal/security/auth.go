package security

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/medb/medb/internal/model"
	registrysession "github.com/medb/medb/internal/registry/session"
	registrystore "github.com/medb/medb/internal/registry/store"
)

const (
	// ContextKeyUserID is the gin context key for the authenticated user ID.
	ContextKeyUserID = "userID"
	// ContextKeyUser is the gin context key for the user record loaded by RequireAuth.
	ContextKeyUser = "user"
	// ContextKeySessionToken is the gin context key for the raw session token.
	ContextKeySessionToken = "sessionToken"

	// TestUserHeader carries the caller identity in testing mode.
	TestUserHeader = "X-Test-User-ID"
)

// ErrUnauthenticated is returned when a request carries no valid session.
var ErrUnauthenticated = errors.New("authentication required")

// UserLoader is the identity store surface the auth middleware needs.
type UserLoader interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
	TouchLastActive(ctx context.Context, userID string, at time.Time) error
}

// SessionOptions configures SessionMiddleware.
type SessionOptions struct {
	CookieName  string
	TestingMode bool
}

// GetUserID returns the authenticated user ID from the gin context.
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

// GetUser returns the user loaded by RequireAuth, or nil.
func GetUser(c *gin.Context) *model.User {
	v, ok := c.Get(ContextKeyUser)
	if !ok {
		return nil
	}
	u, _ := v.(*model.User)
	return u
}

// SessionToken extracts the session token from the cookie or a Bearer header.
func SessionToken(c *gin.Context, cookieName string) string {
	if cookieName != "" {
		if v, err := c.Cookie(cookieName); err == nil && v != "" {
			return v
		}
	}
	if auth := c.GetHeader("Authorization"); auth != "" {
		if token := strings.TrimPrefix(auth, "Bearer "); token != auth {
			return strings.TrimSpace(token)
		}
	}
	return ""
}

// SessionMiddleware resolves the caller's session into ContextKeyUserID. It
// never rejects a request; protected routes add RequireAuth.
func SessionMiddleware(sessions registrysession.Store, opts SessionOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts.TestingMode {
			if id := strings.TrimSpace(c.GetHeader(TestUserHeader)); id != "" {
				c.Set(ContextKeyUserID, id)
				c.Next()
				return
			}
		}
		token := SessionToken(c, opts.CookieName)
		if token == "" || sessions == nil {
			c.Next()
			return
		}
		sess, err := sessions.Lookup(c.Request.Context(), token)
		switch {
		case err == nil:
			c.Set(ContextKeyUserID, sess.UserID)
			c.Set(ContextKeySessionToken, token)
		case errors.Is(err, registrysession.ErrNotFound):
			log.Debug("Session not found", "path", c.Request.URL.Path)
		default:
			log.Warn("Session lookup failed", "path", c.Request.URL.Path, "err", err)
		}
		c.Next()
	}
}

func abortUnauthenticated(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authentication required"})
}

// RequireAuth rejects requests without a session and loads the caller's user
// record fresh from the store for this request. lastActiveAt is refreshed
// when it is older than touchAfter.
func RequireAuth(users UserLoader, touchAfter time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := GetUserID(c)
		if userID == "" {
			abortUnauthenticated(c)
			return
		}
		user, err := users.GetUser(c.Request.Context(), userID)
		if err != nil {
			var notFound *registrystore.NotFoundError
			if errors.As(err, &notFound) {
				log.Info("Auth rejected: session user no longer exists", "user", userID)
				abortUnauthenticated(c)
				return
			}
			log.Error("Auth: failed to load user", "user", userID, "err", err)
			status := http.StatusInternalServerError
			var unavailable *registrystore.UnavailableError
			if errors.As(err, &unavailable) {
				status = http.StatusServiceUnavailable
			}
			c.AbortWithStatusJSON(status, gin.H{"success": false, "message": "Failed to load user"})
			return
		}
		now := time.Now().UTC()
		if user.LastActiveAt == nil || now.Sub(*user.LastActiveAt) > touchAfter {
			if err := users.TouchLastActive(c.Request.Context(), userID, now); err != nil {
				log.Warn("Failed to update lastActiveAt", "user", userID, "err", err)
			} else {
				user.LastActiveAt = &now
			}
		}
		c.Set(ContextKeyUser, user)
		c.Next()
	}
}

// RequireAdmin allows only users whose email is in adminEmails. It must run
// after RequireAuth.
func RequireAdmin(adminEmails map[string]bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetUser(c)
		if user == nil || user.Email == "" || !adminEmails[strings.ToLower(user.Email)] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "Forbidden"})
			return
		}
		c.Next()
	}
}
