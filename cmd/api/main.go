package main

import (
	"context"
	"log"

	"event-planner-core/config"
	"event-planner-core/internal/clients"
	"event-planner-core/internal/handler"
	"event-planner-core/internal/middleware"
	"event-planner-core/internal/monitoring"
	"event-planner-core/internal/rabbit"
	appredis "event-planner-core/internal/redis"
	"event-planner-core/internal/repository"
	"event-planner-core/internal/server"
	"event-planner-core/internal/services"
	"event-planner-core/internal/storage"
	"event-planner-core/pkg/database"
	"event-planner-core/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	logMode := logger.DevelopmentMode
	if cfg.AppMode == server.ReleaseMode {
		logMode = logger.ProductionMode
	}
	l := logger.New(logMode)
	logger.SetGlobalLogger(l)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Repositories
	jobRepo := repository.NewJobRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	eventRepo := repository.NewEventRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	logRepo := repository.NewSystemLogRepository(db)
	txRunner := repository.NewTxRunner(db)

	monitor := monitoring.NewMonitor()

	// Collaborator clients
	authClient := clients.NewHTTPAuthClient(cfg.AuthServiceURL, []byte(cfg.JWTSecret))
	notifier := clients.NewHTTPNotificationClient(cfg.NotificationServiceURL)
	scanClient := clients.NewHTTPScanClient(cfg.ScanServiceURL)

	var generator clients.GeneratorClient
	var publisher *rabbit.Publisher
	if cfg.DispatchMode == "queue" {
		publisher, err = rabbit.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue, l)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer publisher.Close()
		generator = publisher
	} else {
		generator = clients.NewHTTPGeneratorClient(cfg.TicketGeneratorURL)
	}

	// Permission cache is optional; without Redis every check hits Auth.
	var permCache *appredis.PermissionCache
	if cfg.RedisHost != "" {
		redisClient := appredis.NewClient(appredis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		permCache = appredis.NewPermissionCache(redisClient, appredis.DefaultPermissionCacheConfig())
		if err := permCache.Ping(context.Background()); err != nil {
			l.Warnf("Redis unavailable, permission caching disabled: %v", err)
			permCache = nil
		}
	}

	// Ticket file storage is optional in the same way: without it, downloads
	// fall back to the public URL the generator reported.
	var s3Client *storage.Client
	if cfg.S3Bucket != "" {
		s3Client, err = storage.NewClient(context.Background(), storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PresignTTL: cfg.S3PresignTTL,
		})
		if err != nil {
			log.Fatalf("Failed to initialize S3 client: %v", err)
		}
	}
	var presigner services.Presigner
	if s3Client != nil {
		presigner = s3Client
	}

	// The cache is a typed pointer; interface consumers must see a true nil
	// when Redis is absent.
	var permissions middleware.PermissionCache
	var userCache services.UserCache
	var invalidator handler.CacheInvalidator
	if permCache != nil {
		permissions = permCache
		userCache = permCache
		invalidator = permCache
	}

	// Services
	callbackURL := cfg.CallbackBaseURL + "/api/internal/ticket-generation-webhook"
	dispatchService := services.NewDispatchService(jobRepo, ticketRepo, generator, callbackURL, monitor, l)
	jobService := services.NewJobService(jobRepo, ticketRepo, eventRepo, deliveryRepo, logRepo, txRunner, notifier, dispatchService, presigner, monitor, l)
	reconcileService := services.NewReconcileService(jobRepo, ticketRepo, deliveryRepo, txRunner, []byte(cfg.WebhookSecret), monitor, l)
	paymentService := services.NewPaymentService(paymentRepo, ticketRepo, []byte(cfg.PaymentWebhookSecret), l)
	scanService := services.NewScanService(ticketRepo, eventRepo, scanClient, l)
	activityService := services.NewActivityService(logRepo, jobRepo, authClient, userCache, l)

	dispatchService.Start()
	defer dispatchService.Stop()

	handlers := &server.Handlers{
		Job:       handler.NewJobHandler(jobService),
		Webhook:   handler.NewWebhookHandler(reconcileService),
		Payment:   handler.NewPaymentHandler(paymentService),
		Scan:      handler.NewScanHandler(scanService),
		Watch:     handler.NewWatchHandler(jobService, l),
		Activity:  handler.NewActivityHandler(activityService),
		AuthCache: handler.NewAuthCacheHandler(invalidator, l),
	}

	srv := server.New(cfg, l)
	srv.SetupRoutes(handlers, authClient, permissions, db)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
