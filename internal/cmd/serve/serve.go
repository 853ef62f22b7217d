package serve

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/medb/medb/internal/config"
	registrysession "github.com/medb/medb/internal/registry/session"
	registrystore "github.com/medb/medb/internal/registry/store"
	"github.com/urfave/cli/v3"

	// Import all plugins to trigger init() registration
	_ "github.com/medb/medb/internal/plugin/route/system"
	_ "github.com/medb/medb/internal/plugin/session/cookie"
	_ "github.com/medb/medb/internal/plugin/session/redis"
	_ "github.com/medb/medb/internal/plugin/store/memory"
	_ "github.com/medb/medb/internal/plugin/store/mongo"
)

// Command returns the serve sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	readHeaderTimeoutSecs := 5
	logLevel := "info"
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the medb HTTP server",
		Flags: flags(&cfg, &readHeaderTimeoutSecs, &logLevel),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			lvl, err := log.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid --log-level: %w", err)
			}
			log.SetLevel(lvl)
			if err := cfg.ApplyEnv(); err != nil {
				return err
			}
			if err := validate(&cfg); err != nil {
				return err
			}
			cfg.Listener.ReadHeaderTimeout = time.Duration(readHeaderTimeoutSecs) * time.Second
			cfg.ManagementListener.ReadHeaderTimeout = cfg.Listener.ReadHeaderTimeout
			cfg.ManagementListenerEnabled = cmd.IsSet("management-port")
			return run(config.WithContext(ctx, &cfg), cfg)
		},
	}
}

func validate(cfg *config.Config) error {
	switch cfg.Mode {
	case config.ModeProd, config.ModeTesting:
	default:
		return fmt.Errorf("invalid --mode %q; valid: %s|%s", cfg.Mode, config.ModeProd, config.ModeTesting)
	}
	if cfg.DatastoreType == "mongo" && strings.TrimSpace(cfg.DBURL) == "" {
		return fmt.Errorf("--db-url (or MONGO_URI) is required for the mongo store")
	}
	if cfg.SessionType == "redis" && strings.TrimSpace(cfg.RedisURL) == "" {
		return fmt.Errorf("--redis-url (or REDIS_URL) is required for redis sessions")
	}
	if cfg.Mode == config.ModeProd && cfg.SessionType == "cookie" && strings.TrimSpace(cfg.SessionSecret) == "" {
		return fmt.Errorf("--session-secret (or SESSION_SECRET) is required for cookie sessions")
	}
	return nil
}

func flags(cfg *config.Config, readHeaderTimeoutSecs *int, logLevel *string) []cli.Flag {
	return []cli.Flag{

		// ── Server ────────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "mode",
			Category:    "Server:",
			Sources:     cli.EnvVars("MEDB_MODE"),
			Destination: &cfg.Mode,
			Value:       cfg.Mode,
			Usage:       "Security mode (prod|testing); testing accepts the X-Test-User-ID header",
		},
		&cli.StringFlag{
			Name:        "log-level",
			Category:    "Server:",
			Sources:     cli.EnvVars("MEDB_LOG_LEVEL"),
			Destination: logLevel,
			Value:       *logLevel,
			Usage:       "Log level (debug|info|warn|error)",
		},
		&cli.StringFlag{
			Name:        "tls-cert-file",
			Category:    "Server:",
			Sources:     cli.EnvVars("MEDB_TLS_CERT_FILE"),
			Destination: &cfg.Listener.TLSCertFile,
			Usage:       "TLS certificate file; a self-signed one is generated when unset",
		},
		&cli.StringFlag{
			Name:        "tls-key-file",
			Category:    "Server:",
			Sources:     cli.EnvVars("MEDB_TLS_KEY_FILE"),
			Destination: &cfg.Listener.TLSKeyFile,
			Usage:       "TLS private key file",
		},
		&cli.IntFlag{
			Name:        "read-header-timeout-seconds",
			Category:    "Server:",
			Sources:     cli.EnvVars("MEDB_READ_HEADER_TIMEOUT_SECONDS"),
			Destination: readHeaderTimeoutSecs,
			Value:       *readHeaderTimeoutSecs,
			Usage:       "HTTP read header timeout in seconds",
		},
		&cli.Int64Flag{
			Name:        "max-body-size",
			Category:    "Server:",
			Sources:     cli.EnvVars("MEDB_MAX_BODY_SIZE"),
			Destination: &cfg.MaxBodySize,
			Value:       cfg.MaxBodySize,
			Usage:       "Maximum request body size in bytes",
		},
		&cli.IntFlag{
			Name:        "drain-timeout-seconds",
			Category:    "Server:",
			Sources:     cli.EnvVars("MEDB_DRAIN_TIMEOUT_SECONDS"),
			Destination: &cfg.DrainTimeout,
			Value:       cfg.DrainTimeout,
			Usage:       "Graceful shutdown drain timeout in seconds",
		},
		&cli.BoolFlag{
			Name:        "management-access-log",
			Category:    "Server:",
			Sources:     cli.EnvVars("MEDB_MANAGEMENT_ACCESS_LOG"),
			Destination: &cfg.ManagementAccessLog,
			Usage:       "Enable HTTP access logging for management endpoints (/health, /ready, /metrics)",
		},

		// ── Network Listener ──────────────────────────────────────
		&cli.IntFlag{
			Name:        "port",
			Category:    "Network Listener:",
			Sources:     cli.EnvVars("MEDB_PORT"),
			Destination: &cfg.Listener.Port,
			Value:       cfg.Listener.Port,
			Usage:       "HTTP server port",
		},
		&cli.BoolFlag{
			Name:        "plain-text",
			Category:    "Network Listener:",
			Sources:     cli.EnvVars("MEDB_PLAIN_TEXT"),
			Destination: &cfg.Listener.EnablePlainText,
			Value:       cfg.Listener.EnablePlainText,
			Usage:       "Enable plaintext HTTP/1.1 + h2c",
		},
		&cli.BoolFlag{
			Name:        "tls",
			Category:    "Network Listener:",
			Sources:     cli.EnvVars("MEDB_TLS"),
			Destination: &cfg.Listener.EnableTLS,
			Value:       cfg.Listener.EnableTLS,
			Usage:       "Enable TLS HTTP/1.1 + HTTP/2",
		},

		// ── Management Network Listener ───────────────────────────
		&cli.IntFlag{
			Name:        "management-port",
			Category:    "Management Network Listener:",
			Sources:     cli.EnvVars("MEDB_MANAGEMENT_PORT"),
			Destination: &cfg.ManagementListener.Port,
			Value:       cfg.ManagementListener.Port,
			Usage:       "Dedicated port for health and metrics (0 = OS-assigned random port); when unset, served on the main port",
		},
		&cli.BoolFlag{
			Name:        "management-plain-text",
			Category:    "Management Network Listener:",
			Sources:     cli.EnvVars("MEDB_MANAGEMENT_PLAIN_TEXT"),
			Destination: &cfg.ManagementListener.EnablePlainText,
			Value:       cfg.ManagementListener.EnablePlainText,
			Usage:       "Enable plaintext HTTP for management server",
		},
		&cli.BoolFlag{
			Name:        "management-tls",
			Category:    "Management Network Listener:",
			Sources:     cli.EnvVars("MEDB_MANAGEMENT_TLS"),
			Destination: &cfg.ManagementListener.EnableTLS,
			Value:       cfg.ManagementListener.EnableTLS,
			Usage:       "Enable TLS for management server",
		},

		// ── Database ───────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "db-kind",
			Category:    "Database:",
			Sources:     cli.EnvVars("MEDB_DB_KIND"),
			Destination: &cfg.DatastoreType,
			Value:       cfg.DatastoreType,
			Usage:       "Backend store (" + strings.Join(registrystore.Names(), "|") + ")",
		},
		&cli.StringFlag{
			Name:        "db-url",
			Category:    "Database:",
			Sources:     cli.EnvVars("MEDB_DB_URL"),
			Destination: &cfg.DBURL,
			Usage:       "MongoDB connection URL",
		},
		&cli.IntFlag{
			Name:        "db-max-open-conns",
			Category:    "Database:",
			Sources:     cli.EnvVars("MEDB_DB_MAX_OPEN_CONNS"),
			Destination: &cfg.DBMaxOpenConns,
			Value:       cfg.DBMaxOpenConns,
			Usage:       "Maximum connection pool size",
		},
		&cli.IntFlag{
			Name:        "db-max-idle-conns",
			Category:    "Database:",
			Sources:     cli.EnvVars("MEDB_DB_MAX_IDLE_CONNS"),
			Destination: &cfg.DBMaxIdleConns,
			Value:       cfg.DBMaxIdleConns,
			Usage:       "Minimum connection pool size",
		},

		// ── Sessions ──────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "session-kind",
			Category:    "Sessions:",
			Sources:     cli.EnvVars("MEDB_SESSION_KIND"),
			Destination: &cfg.SessionType,
			Value:       cfg.SessionType,
			Usage:       "Session store (" + strings.Join(registrysession.Names(), "|") + ")",
		},
		&cli.StringFlag{
			Name:        "redis-url",
			Category:    "Sessions:",
			Sources:     cli.EnvVars("MEDB_REDIS_URL"),
			Destination: &cfg.RedisURL,
			Usage:       "Redis connection URL for the redis session store",
		},
		&cli.StringFlag{
			Name:        "session-secret",
			Category:    "Sessions:",
			Sources:     cli.EnvVars("MEDB_SESSION_SECRET"),
			Destination: &cfg.SessionSecret,
			Usage:       "Comma-separated cookie signing secrets; the first signs new sessions",
		},
		&cli.StringFlag{
			Name:        "session-cookie-name",
			Category:    "Sessions:",
			Sources:     cli.EnvVars("MEDB_SESSION_COOKIE_NAME"),
			Destination: &cfg.SessionCookieName,
			Value:       cfg.SessionCookieName,
			Usage:       "Name of the session cookie",
		},

		// ── Authentication ────────────────────────────────────────
		&cli.StringFlag{
			Name:        "google-client-id",
			Category:    "Authentication:",
			Sources:     cli.EnvVars("MEDB_GOOGLE_CLIENT_ID"),
			Destination: &cfg.GoogleClientID,
			Usage:       "Google OAuth client id (enables Google login)",
		},
		&cli.StringFlag{
			Name:        "google-client-secret",
			Category:    "Authentication:",
			Sources:     cli.EnvVars("MEDB_GOOGLE_CLIENT_SECRET"),
			Destination: &cfg.GoogleClientSecret,
			Usage:       "Google OAuth client secret",
		},
		&cli.StringFlag{
			Name:        "oauth-callback-url",
			Category:    "Authentication:",
			Sources:     cli.EnvVars("MEDB_OAUTH_CALLBACK_URL"),
			Destination: &cfg.OAuthCallbackURL,
			Value:       "http://localhost:8080/auth/google/callback",
			Usage:       "Public URL of /auth/google/callback",
		},
		&cli.StringFlag{
			Name:        "client-url",
			Category:    "Authentication:",
			Sources:     cli.EnvVars("MEDB_CLIENT_URL"),
			Destination: &cfg.ClientURL,
			Value:       cfg.ClientURL,
			Usage:       "Frontend origin redirected to after login and logout",
		},
		&cli.StringFlag{
			Name:        "admin-emails",
			Category:    "Authentication:",
			Sources:     cli.EnvVars("MEDB_ADMIN_EMAILS"),
			Destination: &cfg.AdminEmails,
			Usage:       "Comma-separated emails allowed on the admin API",
		},
		&cli.FloatFlag{
			Name:        "public-rate-limit",
			Category:    "Authentication:",
			Sources:     cli.EnvVars("MEDB_PUBLIC_RATE_LIMIT"),
			Destination: &cfg.PublicRateLimit,
			Value:       cfg.PublicRateLimit,
			Usage:       "Requests per second per client IP on public share and profile pages",
		},
		&cli.IntFlag{
			Name:        "public-rate-burst",
			Category:    "Authentication:",
			Sources:     cli.EnvVars("MEDB_PUBLIC_RATE_BURST"),
			Destination: &cfg.PublicRateBurst,
			Value:       cfg.PublicRateBurst,
			Usage:       "Burst size of the public rate limit",
		},

		// ── Monitoring ────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "prometheus-url",
			Category:    "Monitoring:",
			Sources:     cli.EnvVars("MEDB_PROMETHEUS_URL"),
			Destination: &cfg.PrometheusURL,
			Usage:       "Prometheus base URL for the admin ops charts (e.g. http://prometheus:9090)",
		},
		&cli.StringFlag{
			Name:        "metrics-labels",
			Category:    "Monitoring:",
			Sources:     cli.EnvVars("MEDB_METRICS_LABELS"),
			Destination: &cfg.MetricsLabels,
			Value:       "service=medb",
			Usage:       "Comma-separated key=value pairs added as constant labels to all Prometheus metrics. Supports ${VAR} expansion.",
		},
	}
}

func run(ctx context.Context, cfg config.Config) error {
	srv, err := StartServer(ctx, &cfg)
	if err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("Shutting down...")

	drainCtx, drainCancel := context.WithTimeout(context.Background(), time.Duration(cfg.DrainTimeout)*time.Second)
	defer drainCancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		log.Error("Shutdown error", "err", err)
	}
	log.Info("Server stopped")
	return nil
}

func maxBodySizeMiddleware(maxBodySize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBodySize > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)
		}
		c.Next()
	}
}
