package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/tradeledger/internal/adapter/http/handler"
	"github.com/iho/tradeledger/internal/adapter/http/middleware"
	"github.com/iho/tradeledger/internal/domain"
	"github.com/iho/tradeledger/internal/infrastructure/metrics"
	"github.com/iho/tradeledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	EntityHandler       *handler.EntityHandler
	SaleHandler         *handler.SaleHandler
	PurchaseHandler     *handler.PurchaseHandler
	CashMovementHandler *handler.CashMovementHandler
	LedgerHandler       *handler.LedgerHandler
	HealthHandler       *handler.HealthHandler

	ActorMiddleware  *middleware.ActorMiddleware
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	Logger           *zerolog.Logger
	Metrics          *metrics.Metrics
	MetricsHandler   http.Handler
	CORSOrigins      []string
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	if cfg.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(*cfg.Logger).Wrap)
	}
	r.Use(middleware.Recovery)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.IdempotencyKeyHeader, middleware.ActorIDHeader, middleware.ActorRoleHeader},
			ExposedHeaders:   []string{middleware.IdempotencyReplayHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.ActorMiddleware != nil {
			r.Use(cfg.ActorMiddleware.Wrap)
		}

		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL).Wrap)
		}

		write := middleware.RequireRole(domain.RoleOperator)
		admin := middleware.RequireRole(domain.RoleAdmin)

		// Customers and suppliers
		r.Route("/entities", func(r chi.Router) {
			r.With(write).Post("/", cfg.EntityHandler.Create)
			r.Get("/", cfg.EntityHandler.List)
			r.Get("/{id}", cfg.EntityHandler.Get)
			r.With(write).Put("/{id}", cfg.EntityHandler.Update)
			r.With(admin).Delete("/{id}", cfg.EntityHandler.Deactivate)
			r.Get("/{id}/statement", cfg.EntityHandler.Statement)
			r.Get("/{id}/balance/at", cfg.EntityHandler.BalanceAt)
			r.Get("/{id}/reconcile", cfg.LedgerHandler.ReconcileEntity)
			r.With(write).Post("/{id}/payments", cfg.LedgerHandler.ApplyPayment)
			r.With(admin).Post("/{id}/legacy-reversals", cfg.CashMovementHandler.ReverseLegacy)
			r.Get("/{id}/sales", cfg.SaleHandler.ListByCustomer)
			r.Get("/{id}/purchases", cfg.PurchaseHandler.ListBySupplier)
			r.Get("/{id}/cash-movements", cfg.CashMovementHandler.ListByEntity)
		})

		// Sales
		r.Route("/sales", func(r chi.Router) {
			r.With(write).Post("/", cfg.SaleHandler.Create)
			r.Get("/open", cfg.SaleHandler.ListOpen)
			r.Get("/{id}", cfg.SaleHandler.Get)
			r.With(write).Put("/{id}/items/{productId}", cfg.SaleHandler.AdjustItem)
			r.With(admin).Post("/{id}/cancel", cfg.SaleHandler.Cancel)
			r.With(admin).Delete("/{id}", cfg.SaleHandler.Delete)
		})

		// Purchase batches
		r.Route("/purchases", func(r chi.Router) {
			r.With(write).Post("/", cfg.PurchaseHandler.Create)
			r.Get("/{id}", cfg.PurchaseHandler.Get)
			r.With(admin).Delete("/{id}", cfg.PurchaseHandler.Delete)
		})

		// Cash movements
		r.Route("/cash-movements", func(r chi.Router) {
			r.With(write).Post("/", cfg.CashMovementHandler.Create)
			r.Get("/{id}", cfg.CashMovementHandler.Get)
			r.With(write).Put("/{id}", cfg.CashMovementHandler.Edit)
			r.With(admin).Delete("/{id}", cfg.CashMovementHandler.Delete)
		})

		// Ledger-wide checks
		r.Route("/ledger", func(r chi.Router) {
			r.Get("/consistency", cfg.LedgerHandler.CheckConsistency)
			r.Get("/report", cfg.LedgerHandler.Report)
		})
	})

	return r
}
