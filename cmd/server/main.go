package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/tradeledger/internal/adapter/http"
	"github.com/iho/tradeledger/internal/adapter/http/handler"
	"github.com/iho/tradeledger/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/tradeledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/tradeledger/internal/adapter/repository/redis"
	"github.com/iho/tradeledger/internal/infrastructure/auth"
	"github.com/iho/tradeledger/internal/infrastructure/config"
	"github.com/iho/tradeledger/internal/infrastructure/eventpublisher"
	"github.com/iho/tradeledger/internal/infrastructure/logger"
	"github.com/iho/tradeledger/internal/infrastructure/logging"
	"github.com/iho/tradeledger/internal/infrastructure/metrics"
	"github.com/iho/tradeledger/internal/infrastructure/postgres"
	"github.com/iho/tradeledger/internal/infrastructure/redis"
	"github.com/iho/tradeledger/internal/usecase"
)

const limiterIdleTimeout = 10 * time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	workerLog := logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	slog.SetDefault(workerLog.Logger)

	if err := run(cfg, log, workerLog); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg *config.Config, log zerolog.Logger, workerLog *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AutoMigrate {
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			return err
		}
	}

	// Connect to PostgreSQL
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL, redis.WithPoolSize(cfg.RedisPoolSize))
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	m := metrics.New()

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool)
	entityRepo := postgresRepo.NewEntityRepository(pool)
	sourceRepo := postgresRepo.NewDebtSourceRepository(pool)
	entryRepo := postgresRepo.NewEntryRepository(pool)
	movementRepo := postgresRepo.NewCashMovementRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	auditRepo := postgresRepo.NewAuditRepository(pool)
	ledgerRepo := postgresRepo.NewLedgerRepository(pool)
	retrier := postgresRepo.NewRetrier(
		postgresRepo.WithMaxRetries(cfg.DBMaxRetries),
		postgresRepo.WithRetryLogger(workerLog),
	)
	idGen := postgresRepo.NewULIDGenerator()

	cache := redisRepo.NewCache(redisClient)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)

	// Initialize use cases
	allocation, rollback, err := cfg.Policies()
	if err != nil {
		return err
	}
	ledgerUC := usecase.NewLedgerUseCase(txManager, entityRepo, sourceRepo, entryRepo, outboxRepo, auditRepo, idGen, m).
		WithPolicies(allocation, rollback)
	entityUC := usecase.NewEntityUseCase(ledgerUC, entityRepo, entryRepo)
	saleUC := usecase.NewSaleUseCase(ledgerUC, sourceRepo)
	purchaseUC := usecase.NewPurchaseUseCase(ledgerUC, sourceRepo)
	cashUC := usecase.NewCashMovementUseCase(ledgerUC, movementRepo, entryRepo)
	reconUC := usecase.NewReconciliationUseCase(entityRepo, sourceRepo, entryRepo, ledgerRepo, cache, m).
		WithRetrier(retrier)

	// Background workers
	publisher, err := newPublisher(cfg, redisClient, workerLog.Logger)
	if err != nil {
		return err
	}
	go func() {
		ep := eventpublisher.NewEventPublisher(eventpublisher.Config{
			OutboxRepo: outboxRepo,
			Publisher:  publisher,
			Logger:     workerLog,
			BatchSize:  cfg.OutboxBatchSize,
			Interval:   cfg.OutboxInterval,
			Retention:  cfg.OutboxRetention,
		})
		if err := ep.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			workerLog.Error("event publisher stopped", slog.String("error", err.Error()))
		}
	}()

	if cfg.ReconcileInterval > 0 {
		go every(ctx, cfg.ReconcileInterval, func() {
			scheduledReconcile(ctx, reconUC, idGen, workerLog)
		})
	}

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).WithMetrics(m)
	go every(ctx, limiterIdleTimeout, func() {
		if n := rateLimiter.CleanupLimiters(limiterIdleTimeout); n > 0 {
			workerLog.Debug("rate limiters evicted", slog.Int("count", n))
		}
	})

	var jwtManager *auth.JWTManager
	if cfg.AuthEnabled {
		jwtManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	}

	// Create router
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		EntityHandler:       handler.NewEntityHandler(entityUC),
		SaleHandler:         handler.NewSaleHandler(saleUC),
		PurchaseHandler:     handler.NewPurchaseHandler(purchaseUC),
		CashMovementHandler: handler.NewCashMovementHandler(cashUC),
		LedgerHandler:       handler.NewLedgerHandler(ledgerUC, reconUC),
		HealthHandler:       handler.NewHealthHandler(pool, redisClient),
		ActorMiddleware:     middleware.NewActorMiddleware(jwtManager, m),
		IdempotencyStore:    idempotencyStore,
		IdempotencyTTL:      cfg.IdempotencyTTL,
		RateLimiter:         rateLimiter,
		Logger:              &log,
		Metrics:             m,
		CORSOrigins:         cfg.CORSAllowedOrigins,
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Bool("auth", cfg.AuthEnabled).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

// newPublisher picks where outbox events are relayed.
func newPublisher(cfg *config.Config, client goredis.Cmdable, l *slog.Logger) (eventpublisher.Publisher, error) {
	switch cfg.EventSink {
	case "stream":
		return eventpublisher.NewStreamPublisher(client, cfg.EventStream, cfg.EventStreamMax), nil
	case "log":
		return eventpublisher.NewLogPublisher(l), nil
	default:
		return nil, fmt.Errorf("unknown EVENT_SINK %q", cfg.EventSink)
	}
}

type reportGenerator interface {
	GenerateReport(ctx context.Context) (*usecase.ReconciliationReport, error)
}

type idGenerator interface {
	Generate() string
}

// scheduledReconcile runs one reconciliation report as the scheduler actor.
// Every log line of the run, retries included, carries the same run ID.
func scheduledReconcile(ctx context.Context, recon reportGenerator, ids idGenerator, l *logging.Logger) {
	ctx = logging.WithRequestID(ctx, "reconcile-"+ids.Generate())
	ctx = logging.WithActor(ctx, logging.SchedulerActor)

	report, err := recon.GenerateReport(ctx)
	if err != nil {
		l.ErrorCtx(ctx, "scheduled reconciliation failed", slog.String("error", err.Error()))
		return
	}
	l.InfoCtx(ctx, "scheduled reconciliation finished",
		slog.Int("entities", report.TotalEntities),
		slog.Int("reconciled", report.ReconciledEntities),
		slog.Bool("ledger_consistent", report.LedgerConsistent))
}

// every runs fn on each tick of interval until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
