package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"rideshare/internal/app"
	"rideshare/internal/config"
	"rideshare/internal/domain"
	"rideshare/internal/handler"
	"rideshare/internal/middleware"
	"rideshare/internal/mq"
	internalRedis "rideshare/internal/redis"
	"rideshare/internal/repository"
	"rideshare/internal/repository/memory"
	"rideshare/internal/repository/postgres"
	"rideshare/internal/rideclient"
	"rideshare/internal/service"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	logger, err := app.NewLogger(cfg.Log, "rideshare-server")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", zap.Error(err))
		} else {
			logger.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	var store repository.Store
	switch cfg.Store {
	case config.StorePostgres:
		db, err := app.NewDatabase(ctx, cfg.Database, nrApp, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		logger.Info("connected to PostgreSQL")
		store = postgres.NewStore(db)
	default:
		logger.Warn("using in-memory store, data is lost on restart")
		store = memory.NewStore()
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Info("connected to Redis")
	}

	var publisher service.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		p := mq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, logger)
		defer p.Close()
		publisher = p
	}

	server, reconciler := wireServer(store, redisClient, publisher, nrApp, cfg, logger)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		reconciler.Run(runCtx)
	}()

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	stop()
	wg.Wait()

	logger.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server and the
// compensation reconciler.
func wireServer(
	store repository.Store,
	redisClient *redis.Client,
	publisher service.EventPublisher,
	nrApp *newrelic.Application,
	cfg *config.Config,
	logger *zap.Logger,
) (*http.Server, *service.Reconciler) {
	var cache internalRedis.RideCacheInterface
	var locks internalRedis.LockStoreInterface
	if redisClient != nil {
		cache = internalRedis.NewCacheStore(redisClient)
		locks = internalRedis.NewLockStore(redisClient)
	}

	notificationService := service.NewNotificationService(logger, publisher)
	psp := service.NewMockPSP()

	rideService := service.NewRideService(store, cache, notificationService, logger, cfg.Booking.MaxSeats)
	walletService := service.NewWalletService(store, psp, notificationService, logger, cfg.Wallet.Currency, cfg.Wallet.MinTopUp)
	paymentService := service.NewPaymentService(store, psp, notificationService, logger, cfg.Wallet.Currency)

	var lookup service.RideLookup
	if cfg.RideServiceURL != "" {
		secret := cfg.Auth.JWTSecret
		lookup = rideclient.New(cfg.RideServiceURL, cfg.Booking.LookupTimeout, cfg.Booking.LookupRetries,
			rideclient.WithLogger(logger),
			rideclient.WithTokenSource(func() (string, error) {
				return middleware.NewToken(secret, "booking-service", domain.RoleSystem, 5*time.Minute)
			}),
		)
		logger.Info("using remote inventory ledger", zap.String("url", cfg.RideServiceURL))
	} else {
		lookup = service.NewLocalRideLookup(rideService, cfg.Booking.LookupTimeout)
	}

	compensator := service.NewCompensator(store, lookup, paymentService, logger, cfg.Reconciler.MaxAttempts)
	bookingService := service.NewBookingService(store, lookup, paymentService, compensator, notificationService, logger, service.BookingConfig{
		MaxSeats:         cfg.Booking.MaxSeats,
		ChargeOnApproval: cfg.Booking.ChargeOnApproval,
		ApprovalLease:    cfg.Booking.ApprovalLease,
	})
	reconciler := service.NewReconciler(store, compensator, locks, logger, cfg.Reconciler.Interval, cfg.Reconciler.BatchSize)

	router := app.NewRouter(app.RouterDeps{
		RideHandler:      handler.NewRideHandler(rideService),
		BookingHandler:   handler.NewBookingHandler(bookingService),
		WalletHandler:    handler.NewWalletHandler(walletService),
		PaymentHandler:   handler.NewPaymentHandler(paymentService),
		InventoryHandler: handler.NewInventoryHandler(rideService),
		RedisClient:      redisClient,
		NewRelicApp:      nrApp,
		JWTSecret:        cfg.Auth.JWTSecret,
		Log:              logger,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, reconciler
}
