package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/brickd-project/brickd/internal/config"
	"github.com/brickd-project/brickd/internal/events"
	"github.com/brickd-project/brickd/internal/health"
	intnet "github.com/brickd-project/brickd/internal/network"
	"github.com/brickd-project/brickd/internal/server"
	"github.com/brickd-project/brickd/internal/telemetry"
	"github.com/brickd-project/brickd/internal/util"
)

// Server is the operator REST API.
type Server struct {
	cfg      *config.Config
	eventBus *events.EventBus
	manager  *server.Manager
	metrics  *telemetry.Metrics
	lag      *server.LagMonitor
	health   *health.Manager
	version  string

	httpServer *http.Server
	router     *gin.Engine
}

// NewServer creates a new API server. metrics and lag may be nil.
func NewServer(cfg *config.Config, eventBus *events.EventBus, manager *server.Manager, metrics *telemetry.Metrics, lag *server.LagMonitor, version string) *Server {
	if cfg.GetApplicationData().Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:      cfg,
		eventBus: eventBus,
		manager:  manager,
		metrics:  metrics,
		lag:      lag,
		version:  version,
	}
	s.router = s.buildRouter()
	return s
}

// SetHealth attaches the health check manager reported by the health route.
func (s *Server) SetHealth(h *health.Manager) {
	s.health = h
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured port and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	app := s.cfg.GetApplicationData()
	addr := fmt.Sprintf(":%d", app.API.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if app.Security.TLSEnabled {
		if _, err := util.EnsureSelfSignedCert(app.Security.TLSCertFile, app.Security.TLSKeyFile, "localhost"); err != nil {
			return fmt.Errorf("failed to prepare API TLS certificate: %w", err)
		}
		cert, err := tls.LoadX509KeyPair(app.Security.TLSCertFile, app.Security.TLSKeyFile)
		if err != nil {
			return fmt.Errorf("failed to load API TLS certificate: %w", err)
		}
		s.httpServer.TLSConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}
	}

	lc := intnet.ReuseAddrListenConfig(0)
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("API server error: %w", err)
	}

	log.Info().Str("addr", addr).Bool("tls", app.Security.TLSEnabled).Msg("REST API server starting")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if app.Security.TLSEnabled {
		err = s.httpServer.Serve(tls.NewListener(ln, s.httpServer.TLSConfig))
	} else {
		err = s.httpServer.Serve(ln)
	}
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

// buildRouter creates the Gin router with all routes and middleware.
func (s *Server) buildRouter() *gin.Engine {
	security := s.cfg.GetApplicationData().Security
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(SecurityHeaders())

	allowedOrigins := security.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(NewRateLimiter(security.RateLimitRPS).Middleware())

	auth := NewAuthMiddleware(s.cfg)

	public := router.Group("/api/public")
	{
		public.GET("/ping", s.handlePing)
		public.GET("/server_info", s.handleGetServerInfo)
	}

	protected := router.Group("/api")
	protected.Use(auth.IPWhitelist(), auth.RequireAuth())

	monitor := protected.Group("/monitor")
	{
		monitor.GET("/status", s.handleGetStatus)
		monitor.GET("/players", s.handleGetPlayers)
		monitor.GET("/connections", s.handleGetConnections)
		monitor.GET("/world", s.handleGetWorld)
		monitor.GET("/lag", s.handleGetLag)
		monitor.GET("/health", s.handleGetHealth)
		monitor.GET("/chat", s.handleGetChat)
		monitor.GET("/sessions", s.handleGetSessions)
		monitor.GET("/memory", s.handleGetMemoryUsage)
	}

	control := protected.Group("/control")
	{
		control.POST("/kick/:net_id", s.handleKick)
		control.POST("/message", s.handleMessage)
		control.GET("/bans", s.handleGetBans)
		control.POST("/bans", s.handleBan)
		control.DELETE("/bans/:user_id", s.handleUnban)
	}

	configure := protected.Group("/configure")
	{
		configure.GET("/config", s.handleGetConfig)
		configure.POST("/game_field", s.handleSetGameField)
	}

	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "brickd API is running"})
	})

	return router
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
