package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/straye-as/salesflow-api/internal/auth"
	"github.com/straye-as/salesflow-api/internal/cache"
	"github.com/straye-as/salesflow-api/internal/config"
	"github.com/straye-as/salesflow-api/internal/database"
	"github.com/straye-as/salesflow-api/internal/http/handler"
	"github.com/straye-as/salesflow-api/internal/http/middleware"
	"github.com/straye-as/salesflow-api/internal/http/router"
	"github.com/straye-as/salesflow-api/internal/logger"
	"github.com/straye-as/salesflow-api/internal/metrics"
	"github.com/straye-as/salesflow-api/internal/notify"
	"github.com/straye-as/salesflow-api/internal/repository"
	"github.com/straye-as/salesflow-api/internal/service"
	"go.uber.org/zap"
)

// @title Salesflow API
// @version 1.0
// @description Sales pipeline API for leads, opportunities, deals, clients, projects and proposals

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Basic configuration first, for logging setup
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	// Staging and production resolve credentials from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.Database.Driver == "sqlite" {
		if err := database.AutoMigrate(db); err != nil {
			return err
		}
	}

	m := metrics.New()

	// Repositories
	assignmentRepo := repository.NewAssignmentRepository(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db, log)

	// Permission lookups go through Redis when it is configured
	var permissions auth.PermissionLoader = roleRepo
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.Warn("Redis unavailable, reading permissions from the database", zap.Error(err))
		} else {
			permissions = cache.NewPermissionCache(redisClient, roleRepo, cfg.Redis.PermissionTTLDuration(), m, log)
			log.Info("Permission cache enabled", zap.Duration("ttl", cfg.Redis.PermissionTTLDuration()))
		}
	}

	// Notification fan-out over NATS is optional; rows are always stored
	var publisher notify.Publisher = notify.NoopPublisher{}
	var natsConn *nats.Conn
	if cfg.NATS.Enabled {
		natsConn, err = notify.Connect(&cfg.NATS, log)
		if err != nil {
			log.Warn("NATS unavailable, notifications will not be published", zap.Error(err))
		} else {
			publisher = notify.NewNATSPublisher(natsConn, cfg.NATS.SubjectPrefix, notify.NewCircuitBreaker("notifications"), log)
		}
	}

	// Services
	guard := service.NewAccessGuard(assignmentRepo, log)
	notificationService := service.NewNotificationService(repository.NewNotificationRepository(db), publisher, log)
	assignmentService := service.NewAssignmentService(guard, notificationService, m, log, db)
	lifecycleService := service.NewProposalLifecycleService(assignmentRepo, assignmentService, guard, m, log, db)
	conversionService := service.NewConversionService(assignmentRepo, assignmentService, guard, m, log, db)
	leadService := service.NewLeadService(repository.NewLeadRepository(db), assignmentRepo, assignmentService, guard, log, db)
	opportunityService := service.NewOpportunityService(repository.NewOpportunityRepository(db), assignmentRepo, guard, log)
	dealService := service.NewDealService(repository.NewDealRepository(db), assignmentRepo, assignmentService, guard, log, db)
	clientService := service.NewClientService(repository.NewClientRepository(db), assignmentRepo, guard, log)
	projectService := service.NewProjectService(repository.NewProjectRepository(db), lifecycleService, guard, log, db)
	proposalService := service.NewProposalService(
		repository.NewProposalRepository(db),
		repository.NewProposalLogRepository(db),
		assignmentRepo,
		assignmentService,
		guard,
		log,
		db,
	)
	auditLogService := service.NewAuditLogService(repository.NewAuditLogRepository(db), guard, log, db)

	// Middleware
	authMiddleware := auth.NewMiddleware(auth.NewJWTValidator(&cfg.Auth), userRepo, permissions, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	rt := router.NewRouter(cfg, log, db, m, authMiddleware, rateLimiter, router.Handlers{
		Lead:         handler.NewLeadHandler(leadService, conversionService, log),
		Opportunity:  handler.NewOpportunityHandler(opportunityService, conversionService, log),
		Deal:         handler.NewDealHandler(dealService, conversionService, log),
		Client:       handler.NewClientHandler(clientService, log),
		Project:      handler.NewProjectHandler(projectService, log),
		Proposal:     handler.NewProposalHandler(proposalService, lifecycleService, log),
		Notification: handler.NewNotificationHandler(notificationService, log),
		Assignment:   handler.NewAssignmentHandler(assignmentService, log),
		Audit:        handler.NewAuditHandler(auditLogService, log),
		Auth:         handler.NewAuthHandler(),
	})
	if redisClient != nil {
		rt.AddReadinessCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	if natsConn != nil {
		rt.AddReadinessCheck("nats", func(context.Context) error {
			if !natsConn.IsConnected() {
				return fmt.Errorf("nats status %s", natsConn.Status())
			}
			return nil
		})
	}

	var h http.Handler = rt.Setup()
	if timeout := cfg.Server.RequestTimeoutDuration(); timeout > 0 {
		h = http.TimeoutHandler(h, timeout, `{"error":"Service Unavailable","message":"Request timed out"}`)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}
	}

	if natsConn != nil {
		if err := natsConn.Drain(); err != nil {
			log.Warn("Error draining NATS connection", zap.Error(err))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Warn("Error closing Redis client", zap.Error(err))
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Info("Server stopped gracefully")
	return nil
}
