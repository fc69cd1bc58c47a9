package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"escrow-marketplace/config"
	"escrow-marketplace/internal/api/handlers"
	"escrow-marketplace/internal/app"
	"escrow-marketplace/internal/database"
	"escrow-marketplace/internal/idempotency"
	"escrow-marketplace/internal/metrics"
	"escrow-marketplace/internal/notify"
	"escrow-marketplace/internal/server"
	"escrow-marketplace/internal/services"
	"escrow-marketplace/internal/settlement"
	"escrow-marketplace/internal/signer"
	"escrow-marketplace/internal/storage"
	"escrow-marketplace/internal/storage/memory"
	"escrow-marketplace/internal/storage/postgres"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// @title           Escrow Marketplace API
// @version         1.0
// @description     Agreement lifecycle and escrow settlement coordinator for a freelance marketplace.

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the wallet JWT.
func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()

	// --- Ledger store ---
	var store storage.Store
	var dbPool *pgxpool.Pool
	healthChecks := map[string]handlers.HealthCheck{}
	switch cfg.DB.Driver {
	case "memory":
		logger.Warn("Using the in-memory ledger; data is lost on restart")
		store = memory.NewStore()
	default:
		dbPool, err = database.NewConnectionPool(cfg.DB, logger)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer dbPool.Close()
		if err := database.Migrate(ctx, dbPool, logger); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		store = postgres.NewStore(dbPool, logger)
		healthChecks["database"] = dbPool.Ping
	}

	// --- Idempotency store ---
	var idemStore idempotency.Store = idempotency.NewMemoryStore()
	if cfg.Redis.Enabled {
		redisClient, err := database.NewRedisClient(cfg.Redis, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		idemStore = idempotency.NewRedisStore(redisClient)
		healthChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// --- Settlement rail and platform signer ---
	gateway := settlement.NewClient(settlement.Options{
		BaseURL:        cfg.Settlement.APIURL,
		APIKey:         cfg.Settlement.APIKey,
		Timeout:        cfg.Settlement.Timeout,
		RateLimitRPS:   cfg.Settlement.RateLimitRPS,
		RateLimitBurst: cfg.Settlement.RateLimitBurst,
		Logger:         logger.Named("settlement"),
		Metrics:        m,
	})

	var trusted services.TrustedSigner
	platformSigner, err := signer.FromSeed(cfg.Platform.SigningKey, cfg.Settlement.NetworkPassphrase)
	switch {
	case errors.Is(err, signer.ErrNoKey):
		logger.Warn("Platform signing key not configured; releases are disabled")
	case err != nil:
		logger.Fatal("Failed to load platform signing key", zap.Error(err))
	case cfg.Platform.Address != "" && cfg.Platform.Address != platformSigner.Address():
		logger.Fatal("Platform signing key does not match platform address",
			zap.String("configured", cfg.Platform.Address),
			zap.String("derived", platformSigner.Address()))
	default:
		trusted = platformSigner
		logger.Info("Platform signer loaded", zap.String("address", platformSigner.Address()))
	}

	// --- Notifications ---
	var notifier services.Notifier
	if cfg.Notifications.UseQueue && dbPool != nil {
		if err := database.MigrateQueue(ctx, dbPool, logger); err != nil {
			logger.Fatal("Failed to migrate notification queue", zap.Error(err))
		}
		queue, insert, err := notify.NewQueue(dbPool, store.Repos().Notifications, cfg.Notifications.Workers)
		if err != nil {
			logger.Fatal("Failed to create notification queue", zap.Error(err))
		}
		if err := queue.Start(ctx); err != nil {
			logger.Fatal("Failed to start notification queue", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := queue.Stop(stopCtx); err != nil {
				logger.Error("Notification queue did not stop cleanly", zap.Error(err))
			}
		}()
		notifier = notify.NewQueueNotifier(insert, logger, m)
	} else {
		if cfg.Notifications.UseQueue {
			logger.Warn("Notification queue requires the postgres driver; writing notifications directly")
		}
		storeNotifier := notify.NewStoreNotifier(store.Repos().Notifications, logger, m)
		defer storeNotifier.Close()
		notifier = storeNotifier
	}

	// --- Services ---
	coordinator := services.NewCoordinator(store, gateway, trusted, notifier, services.SagaSettings{
		PlatformAddress:               cfg.Platform.Address,
		FeeRate:                       decimal.NewFromFloat(cfg.Platform.FeeRate),
		TrustlineSymbol:               cfg.Settlement.TrustlineSymbol,
		TrustlineAddress:              cfg.Settlement.TrustlineAddress,
		MilestoneDescription:          cfg.Settlement.MilestoneDescription,
		RequireDeliveryBeforeApproval: cfg.Saga.RequireDeliveryBeforeApproval,
		StrictRequestChanges:          cfg.Saga.StrictRequestChanges,
		LedgerRetryMax:                cfg.Saga.LedgerRetryMax,
		LedgerRetryInitialInterval:    cfg.Saga.LedgerRetryInitialInterval,
	}, logger, m)

	application := &app.Application{
		Config:              cfg,
		Logger:              logger,
		Validator:           validator.New(),
		Registry:            registry,
		Idempotency:         idemStore,
		HealthChecks:        healthChecks,
		EscrowService:       coordinator,
		AgreementService:    coordinator,
		JobService:          services.NewJobService(store, logger),
		ApplicationService:  services.NewApplicationService(store, notifier, logger),
		UserService:         services.NewUserService(store),
		NotificationService: services.NewNotificationService(store),
	}

	srv := server.NewServer(application)

	// --- Graceful Shutdown Handling ---
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("Server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shut down", zap.Error(err))
	}

	logger.Info("Application gracefully stopped.")
}
