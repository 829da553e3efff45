package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"event-planner-core/config"
	"event-planner-core/internal/clients"
	"event-planner-core/internal/handler"
	"event-planner-core/internal/middleware"
	"event-planner-core/internal/transport/httpdto"
	"event-planner-core/pkg/database"
	"event-planner-core/pkg/logger"
)

const routeTimeout = 30 * time.Second

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Job       *handler.JobHandler
	Webhook   *handler.WebhookHandler
	Payment   *handler.PaymentHandler
	Scan      *handler.ScanHandler
	Watch     *handler.WatchHandler
	Activity  *handler.ActivityHandler
	AuthCache *handler.AuthCacheHandler
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.AppPort),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func (s *Server) SetupRoutes(handlers *Handlers, auth clients.AuthClient, permCache middleware.PermissionCache, db *sql.DB) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(c.Request.Context(), db); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Webhooks authenticate by signature, not by token, and are exempt from
	// the route timeout guard only in the sense that reconciliation itself
	// is bounded by its own deadlines.
	internal := s.engine.Group("/api/internal")
	internal.Use(middleware.TimeoutMiddleware(routeTimeout))
	{
		internal.POST("/ticket-generation-webhook", handlers.Webhook.TicketGeneration)
		internal.POST("/scans/validate", handlers.Scan.Validate)
		// The Auth service posts here on logout/deactivation so cached
		// permission decisions die before their TTL.
		internal.POST("/auth/cache-invalidate", handlers.AuthCache.Invalidate)
	}
	// Historic alias kept for senders configured before the path moved.
	s.engine.POST("/ticket-webhook", middleware.TimeoutMiddleware(routeTimeout), handlers.Webhook.TicketGeneration)

	v1 := s.engine.Group("/api/v1")

	v1.POST("/payments/webhooks", middleware.TimeoutMiddleware(routeTimeout), handlers.Payment.Webhook)

	authed := v1.Group("")
	authed.Use(middleware.AuthMiddleware(auth, s.logger))

	// The watch stream stays open until the job settles, so it must not run
	// under the route deadline. Everything else gets the timeout guard.
	authed.GET("/tickets/generation-jobs/:id/watch", handlers.Watch.Watch)

	canGenerate := middleware.RequirePermission("tickets:generate", auth, permCache, s.logger)

	timed := authed.Group("")
	timed.Use(middleware.TimeoutMiddleware(routeTimeout))
	{
		jobs := timed.Group("/tickets/generation-jobs")
		{
			jobs.POST("", canGenerate, handlers.Job.Create)
			jobs.GET("", handlers.Job.List)
			jobs.GET("/failed", handlers.Job.ListFailed)
			jobs.GET("/stats", handlers.Job.Stats)
			jobs.GET("/:id", handlers.Job.Get)
			jobs.GET("/:id/deliveries", handlers.Job.Deliveries)
			jobs.GET("/:id/activity", handlers.Activity.JobActivity)
			jobs.POST("/:id/retry", canGenerate, handlers.Job.Retry)
			jobs.POST("/:id/cancel", canGenerate, handlers.Job.Cancel)
		}

		events := timed.Group("/events/:event_id")
		{
			events.GET("/generation-jobs", handlers.Job.ListByEvent)
			events.GET("/tickets/generation-status", handlers.Job.GenerationStatus)
			events.GET("/tickets/:ticket_id/download", handlers.Job.DownloadTicket)
			events.GET("/scan/history", handlers.Scan.History)
		}
	}
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.AppPort)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}
