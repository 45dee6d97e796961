package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "cellarledger/docs"
	"cellarledger/internal/caching"
	"cellarledger/internal/config"
	"cellarledger/internal/handlers"
	"cellarledger/internal/jobs"
	"cellarledger/internal/jobs/background"
	"cellarledger/internal/locking"
	applogger "cellarledger/internal/logger"
	"cellarledger/internal/middleware"
	"cellarledger/internal/repositories"
	"cellarledger/internal/repositories/memory"
	"cellarledger/internal/services"
	"cellarledger/pkg/database"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := applogger.New(cfg.Logger, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var checks []handlers.DependencyCheck

	// Storage
	var (
		store          repositories.Store
		permissionRepo repositories.PermissionRepository
	)
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := database.NewPool(ctx, cfg.Postgres, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		if cfg.Postgres.AutoMigrate {
			if err := database.Migrate(ctx, pool); err != nil {
				return err
			}
			logger.Info("database schema applied")
		}
		store = repositories.NewStore(pool)
		permissionRepo = repositories.NewPermissionRepo(pool)
		checks = append(checks, postgresCheck(pool))
	default:
		logger.Warn("using in-memory storage; data is lost on restart")
		store = memory.NewStore()
		permissionRepo = memory.NewPermissions()
	}

	// Redis backs the location cache, the override rate limit and unit locks
	cacheService := caching.NewMemoryCacheService()
	locker := locking.NewLocalLocker()
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		cacheService = caching.NewRedisCacheService(redisClient)
		locker = locking.NewRedisLocker(redisClient, cfg.Locking.TTL, cfg.Locking.Retries, logger)
		checks = append(checks, handlers.DependencyCheck{
			Name:     "redis",
			Critical: true,
			Check:    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	} else {
		logger.Warn("redis disabled; locks and rate limits are local to this process")
	}

	// Services
	rbacService := services.NewRBACService(permissionRepo, logger)
	commitmentService := services.NewCommitmentService(store, cfg.Commitment.AtRiskThreshold)
	svc := handlers.Services{
		Ledger:     services.NewLedgerService(store, rbacService, logger),
		Commitment: commitmentService,
		Movements:  services.NewMovementService(store, commitmentService, rbacService, locker, logger),
		Overrides:  services.NewOverrideService(store, rbacService, locker, cacheService, cfg.Override, logger),
		Audit:      services.NewAuditService(store, rbacService, logger),
		Locations:  services.NewLocationService(store.Locations(), cacheService, rbacService, cfg.Jobs.LocationCacheTTL, logger),
	}

	if cfg.Auth.BootstrapAdminID != "" {
		adminID, err := uuid.Parse(cfg.Auth.BootstrapAdminID)
		if err != nil {
			return fmt.Errorf("invalid bootstrap admin id: %w", err)
		}
		if err := rbacService.BootstrapAdmin(ctx, adminID); err != nil {
			return err
		}
	}

	// Archive storage
	var archiver *jobs.MovementArchiver
	if cfg.Minio.Enabled {
		minioSvc, err := services.NewMinioService(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.Bucket, cfg.Minio.UseSSL)
		if err != nil {
			return fmt.Errorf("failed to initialize MinIO service: %w", err)
		}
		if err := minioSvc.EnsureBucketExists(ctx); err != nil {
			return fmt.Errorf("failed to prepare archive bucket: %w", err)
		}
		archiver = jobs.NewMovementArchiver(store.Movements(), minioSvc, logger)
		svc.Archive = archiver
		checks = append(checks, handlers.DependencyCheck{
			Name: "storage",
			Check: func(ctx context.Context) error {
				_, err := minioSvc.ObjectExists(ctx, jobs.ArchiveObjectName(time.Now()))
				return err
			},
		})
	}

	// Background jobs
	if cfg.Jobs.Enabled {
		alerts := jobs.NewCommitmentAlertService(commitmentService, logger)
		scheduler, err := background.NewJobScheduler(cfg.Jobs, alerts, archiver, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize job scheduler: %w", err)
		}
		scheduler.Start()
		svc.Jobs = scheduler
		defer func() {
			if err := scheduler.Stop(); err != nil {
				logger.Warn("job scheduler shutdown failed", zap.Error(err))
			}
		}()
	}

	// Auth
	var jwks *keyfunc.JWKS
	if cfg.JWT.JWKSURL != "" {
		var err error
		jwks, err = middleware.NewJWKS(cfg.JWT.JWKSURL, logger)
		if err != nil {
			return fmt.Errorf("failed to load jwks: %w", err)
		}
		defer jwks.EndBackground()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewCustomValidator()
	e.HTTPErrorHandler = handlers.HTTPErrorHandler(logger)

	e.Use(echoMiddleware.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Pre(echoMiddleware.RemoveTrailingSlash())

	handlers.RegisterRoutes(e, svc,
		middleware.JWTMiddleware(middleware.JWTConfig(cfg.JWT.Secret, jwks)),
		middleware.NewRBACMiddleware(rbacService),
		handlers.NewHealthHandlers(version, checks...),
	)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("cellarledger server starting",
			zap.String("version", version),
			zap.String("port", cfg.Server.Port),
			zap.String("storage", cfg.Storage.Driver),
		)
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func postgresCheck(pool *pgxpool.Pool) handlers.DependencyCheck {
	return handlers.DependencyCheck{
		Name:     "postgres",
		Critical: true,
		Check:    pool.Ping,
	}
}
