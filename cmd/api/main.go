package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mobile-money-ledger/config"
	httpHandler "mobile-money-ledger/internal/adapter/http/handler"
	"mobile-money-ledger/internal/adapter/metrics"
	"mobile-money-ledger/internal/adapter/notifier"
	"mobile-money-ledger/internal/adapter/storage/memory"
	pgStorage "mobile-money-ledger/internal/adapter/storage/postgres"
	redisStorage "mobile-money-ledger/internal/adapter/storage/redis"
	"mobile-money-ledger/internal/core/ports"
	"mobile-money-ledger/internal/service"
	"mobile-money-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// storage bundles the repositories of the selected backend.
type storage struct {
	users      ports.UserRepository
	accounts   ports.AccountRepository
	ledger     ports.LedgerRepository
	transactor ports.DBTransactor
	health     ports.HealthChecker
	close      func()
}

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Msg("Starting Mobile Money Ledger")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret is required (set MML_JWT_SECRET)")
	}

	ctx := context.Background()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise storage")
	}
	defer store.close()

	healthCheckers := []ports.HealthChecker{store.health}

	// Redis backs idempotency and rate limiting; both degrade to off when disabled.
	var (
		idempotencyCache ports.IdempotencyCache
		rateLimitStore   ports.RateLimitStore
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		idempotencyCache = redisStorage.NewIdempotencyCache(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled: idempotency keys and rate limits are not enforced")
	}

	sender, closeSender, err := notifier.New(cfg.SMS, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise SMS notifier")
	}
	defer closeSender()

	var (
		recorder      ports.Metrics = metrics.Nop{}
		metricsExport httpHandler.MetricsExporter
	)
	if cfg.Metrics.Enabled {
		r := metrics.NewRecorder()
		recorder, metricsExport = r, r
	}

	sms := service.NewSMSDispatcher(sender, recorder, cfg.SMS.Timeout, log)
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	accountSvc := service.NewAccountService(
		store.users,
		store.accounts,
		store.transactor,
		service.NewArgon2HashService(service.DefaultArgon2Params()),
		rateLimitStore,
		sms,
		recorder,
		cfg.Ledger,
		log,
	)
	transferSvc := service.NewTransferService(store.accounts, store.ledger, store.transactor, recorder, log)
	paymentSvc := service.NewPaymentService(
		store.users,
		store.accounts,
		transferSvc,
		idempotencyCache,
		sms,
		cfg.Ledger,
		log,
	)
	merchantSvc := service.NewMerchantService(store.users, store.accounts, store.transactor, log)
	reportingSvc := service.NewReportingService(store.users, store.accounts, store.ledger)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AccountSvc:     accountSvc,
		TransferSvc:    transferSvc,
		PaymentSvc:     paymentSvc,
		MerchantSvc:    merchantSvc,
		ReportingSvc:   reportingSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: healthCheckers,
		Metrics:        metricsExport,
		Logger:         log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let queued SMS finish before the notifier is closed.
	sms.Wait()

	log.Info().Msg("Server exited")
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn().Msg("Using in-memory storage: data is lost on restart")
		s := memory.NewStore()
		return &storage{
			users:      memory.NewUserRepo(s),
			accounts:   memory.NewAccountRepo(s),
			ledger:     memory.NewLedgerRepo(s),
			transactor: s,
			health:     s,
			close:      func() {},
		}, nil
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := pgStorage.Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &storage{
		users:      pgStorage.NewUserRepo(pool),
		accounts:   pgStorage.NewAccountRepo(pool),
		ledger:     pgStorage.NewLedgerRepo(pool),
		transactor: pgStorage.NewTransactor(pool),
		health:     pgStorage.NewHealthCheck(pool),
		close:      pool.Close,
	}, nil
}
