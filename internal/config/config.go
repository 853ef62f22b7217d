package config

import (
	"context"
	"strings"
	"time"
)

// ListenerConfig holds the network/TLS settings for a single listener (main or management).
type ListenerConfig struct {
	Port              int
	EnablePlainText   bool
	EnableTLS         bool
	TLSCertFile       string
	TLSKeyFile        string
	ReadHeaderTimeout time.Duration
}

type contextKey struct{}

// WithContext returns a new context carrying the given Config.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the Config from the context.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

const (
	ModeProd    = "prod"
	ModeTesting = "testing"
)

// Config holds all configuration for the medb server.
type Config struct {
	// Mode controls security behavior: "prod" (default) or "testing".
	// In testing mode the X-Test-User-ID header is accepted as an identity.
	Mode string

	// Datastore backend type: "mongo" or "memory".
	DatastoreType string

	// Mongo connection URL.
	DBURL string
	// DBName overrides the database named in DBURL.
	DBName string

	// Run datastore migrations on startup.
	DatastoreMigrateAtStart bool

	// DB pool
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Session backend type: "redis" or "cookie".
	SessionType string
	RedisURL    string
	// SessionSecret is a comma-separated list of secrets. The first signs new
	// session cookies; all of them are accepted when verifying.
	SessionSecret     string
	SessionTTL        time.Duration
	SessionCookieName string
	// SessionCookieSecure sets the Secure attribute on the session cookie.
	SessionCookieSecure bool

	// Google OAuth
	GoogleClientID     string
	GoogleClientSecret string
	// OAuthCallbackURL is the public URL of /auth/google/callback.
	OAuthCallbackURL string
	// ClientURL is the frontend origin redirected to after login and logout.
	ClientURL string

	// AdminEmails is a comma-separated list of emails allowed on /api/admin.
	AdminEmails string

	// Public endpoint rate limiting (share views, public profiles).
	PublicRateLimit float64 // requests per second per client IP
	PublicRateBurst int

	// LastActiveInterval is the minimum age of lastActiveAt before it is refreshed.
	LastActiveInterval time.Duration

	// PrometheusURL is the Prometheus server queried by the admin ops charts.
	PrometheusURL string

	// MetricsLabels is a comma-separated list of key=value pairs added as
	// constant labels to all Prometheus metrics. Values support ${VAR} expansion.
	// Defaults to "service=medb".
	MetricsLabels string

	// Server
	Listener           ListenerConfig
	ManagementListener ListenerConfig
	// ManagementListenerEnabled is true when --management-port (or MEDB_MANAGEMENT_PORT)
	// was explicitly provided. When false, management endpoints are served on the main port.
	ManagementListenerEnabled bool
	// ManagementAccessLog enables HTTP access logging for management endpoints (/health, /ready, /metrics).
	// Disabled by default to suppress high-frequency probe noise from the access log.
	ManagementAccessLog bool
	CORSEnabled         bool
	CORSOrigins         string

	// Body size limit (bytes)
	MaxBodySize int64

	// Graceful shutdown drain timeout (seconds)
	DrainTimeout int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Mode:                    ModeProd,
		DatastoreType:           "mongo",
		DatastoreMigrateAtStart: true,
		DBMaxOpenConns:          25,
		DBMaxIdleConns:          5,
		SessionType:             "cookie",
		SessionTTL:              24 * time.Hour,
		SessionCookieName:       "medb.sid",
		ClientURL:               "http://localhost:3000",
		PublicRateLimit:         5,
		PublicRateBurst:         20,
		LastActiveInterval:      5 * time.Minute,
		Listener: ListenerConfig{
			Port:              8080,
			EnablePlainText:   true,
			EnableTLS:         true,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ManagementListener: ListenerConfig{
			EnablePlainText: true,
			EnableTLS:       true,
		},
		MaxBodySize:  1024 * 1024,
		DrainTimeout: 30,
	}
}

// AdminEmailSet returns the lower-cased admin emails.
func (c *Config) AdminEmailSet() map[string]bool {
	result := map[string]bool{}
	if c == nil {
		return result
	}
	for _, part := range strings.Split(c.AdminEmails, ",") {
		email := strings.ToLower(strings.TrimSpace(part))
		if email == "" {
			continue
		}
		result[email] = true
	}
	return result
}

// GoogleOAuthEnabled reports whether Google login is configured.
func (c *Config) GoogleOAuthEnabled() bool {
	return c != nil && c.GoogleClientID != "" && c.GoogleClientSecret != ""
}
