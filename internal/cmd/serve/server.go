package serve

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/medb/medb/internal/catalog"
	"github.com/medb/medb/internal/config"
	"github.com/medb/medb/internal/plugin/route/admin"
	routeauth "github.com/medb/medb/internal/plugin/route/auth"
	"github.com/medb/medb/internal/plugin/route/friends"
	"github.com/medb/medb/internal/plugin/route/media"
	"github.com/medb/medb/internal/plugin/route/share"
	"github.com/medb/medb/internal/plugin/route/stats"
	routesystem "github.com/medb/medb/internal/plugin/route/system"
	"github.com/medb/medb/internal/plugin/route/user"
	storemetrics "github.com/medb/medb/internal/plugin/store/metrics"
	"github.com/medb/medb/internal/ratelimit"
	registrymigrate "github.com/medb/medb/internal/registry/migrate"
	registryroute "github.com/medb/medb/internal/registry/route"
	registrysession "github.com/medb/medb/internal/registry/session"
	registrystore "github.com/medb/medb/internal/registry/store"
	"github.com/medb/medb/internal/security"
	"github.com/medb/medb/internal/service"
	"github.com/medb/medb/internal/validation"
)

// Server holds the running server and its subsystems.
type Server struct {
	Config          *config.Config
	Store           registrystore.CatalogStore
	Sessions        registrysession.Store
	Router          *gin.Engine
	Running         *RunningServers
	limiter         *ratelimit.KeyedRateLimiter
	closeManagement func(context.Context) error
}

// Shutdown stops the listeners, then releases the stores.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.closeManagement != nil {
		_ = s.closeManagement(ctx)
	}
	err := s.Running.Close(ctx)
	s.limiter.Stop()
	if cerr := s.Sessions.Close(); cerr != nil {
		log.Warn("Failed to close session store", "err", cerr)
	}
	if cerr := s.Store.Close(ctx); cerr != nil {
		log.Warn("Failed to close store", "err", cerr)
	}
	return err
}

// StartServer initializes all subsystems and starts serving.
// Use cfg.Listener.Port=0 for a random port. Actual port: Server.Running.Port.
func StartServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	log.Info("Starting medb",
		"port", cfg.Listener.Port,
		"db", cfg.DatastoreType,
		"sessions", cfg.SessionType,
		"mode", cfg.Mode,
	)

	metricsLabels, err := security.ParseMetricsLabels(cfg.MetricsLabels)
	if err != nil {
		return nil, fmt.Errorf("invalid --metrics-labels: %w", err)
	}
	security.InitMetrics(metricsLabels)

	if err := registrymigrate.RunAll(ctx); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	storeLoader, err := registrystore.Select(cfg.DatastoreType)
	if err != nil {
		return nil, err
	}
	store, err := storeLoader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	store = storemetrics.Wrap(store)
	routesystem.SetReadinessProbe(store.Ping)

	sessionLoader, err := registrysession.Select(cfg.SessionType)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}
	sessions, err := sessionLoader(ctx)
	if err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	// Google login is optional; without it only the testing header can authenticate.
	var provider security.IdentityProvider
	if cfg.GoogleOAuthEnabled() {
		oidcProvider, err := security.NewOIDCProvider(ctx, security.GoogleIssuer, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthCallbackURL)
		if err != nil {
			log.Warn("Google login not available", "err", err)
		} else {
			provider = oidcProvider
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.ManagementAccessLog {
		router.Use(security.AccessLogMiddleware())
	} else {
		router.Use(security.AccessLogMiddleware("/health", "/ready", "/metrics"))
	}
	router.Use(security.MetricsMiddleware())
	router.Use(maxBodySizeMiddleware(cfg.MaxBodySize))
	if cfg.CORSEnabled {
		router.Use(corsMiddleware(cfg.CORSOrigins))
	}
	router.Use(security.SessionMiddleware(sessions, security.SessionOptions{
		CookieName:  cfg.SessionCookieName,
		TestingMode: cfg.Mode == config.ModeTesting,
	}))

	for _, loader := range registryroute.MainRouteLoaders() {
		if err := loader(router); err != nil {
			return nil, fmt.Errorf("failed to load routes: %w", err)
		}
	}

	auth := security.RequireAuth(store, cfg.LastActiveInterval)
	limiter := ratelimit.New(cfg.PublicRateLimit, cfg.PublicRateBurst)
	publicLimit := ratelimit.Middleware(limiter)
	svc := catalog.NewService(store)
	v := validation.New()

	routeauth.MountRoutes(router, cfg, provider, service.NewAccountService(store), store, sessions)
	media.MountRoutes(router, svc, v, auth)
	user.MountRoutes(router, store, svc, v, auth, publicLimit)
	share.MountRoutes(router, store, auth, publicLimit)
	friends.MountRoutes(router, store, auth)
	stats.MountRoutes(router, store, auth)
	admin.MountRoutes(router, store, cfg, auth)

	// With a dedicated management port the probes and metrics get their own
	// bare engine; otherwise they share the main router.
	var closeManagement func(context.Context) error
	if cfg.ManagementListenerEnabled {
		mgmtRouter := gin.New()
		mgmtRouter.Use(gin.Recovery())
		if cfg.ManagementAccessLog {
			mgmtRouter.Use(security.AccessLogMiddleware())
		}
		for _, loader := range registryroute.ManagementRouteLoaders() {
			if err := loader(mgmtRouter); err != nil {
				return nil, fmt.Errorf("failed to load management routes: %w", err)
			}
		}
		mgmtCfg := cfg.ManagementListener
		mgmtCfg.TLSCertFile = cfg.Listener.TLSCertFile
		mgmtCfg.TLSKeyFile = cfg.Listener.TLSKeyFile
		mgmt, err := StartListener("management", mgmtCfg, mgmtRouter)
		if err != nil {
			return nil, fmt.Errorf("failed to start management server: %w", err)
		}
		log.Info("Management server listening", "port", mgmt.Port)
		closeManagement = mgmt.Close
	} else {
		for _, loader := range registryroute.ManagementRouteLoaders() {
			if err := loader(router); err != nil {
				return nil, fmt.Errorf("failed to load management routes: %w", err)
			}
		}
	}

	running, err := StartListener("main", cfg.Listener, router)
	if err != nil {
		if closeManagement != nil {
			_ = closeManagement(ctx)
		}
		return nil, err
	}
	log.Info("Server listening",
		"port", running.Port,
		"plaintext", cfg.Listener.EnablePlainText,
		"tls", cfg.Listener.EnableTLS,
		"googleLogin", provider != nil,
	)

	routesystem.MarkReady()
	return &Server{
		Config:          cfg,
		Store:           store,
		Sessions:        sessions,
		Router:          router,
		Running:         running,
		limiter:         limiter,
		closeManagement: closeManagement,
	}, nil
}
