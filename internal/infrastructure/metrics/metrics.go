package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Ledger metrics
	DebtAccrued       *prometheus.CounterVec
	AccrualsReversed  *prometheus.CounterVec
	AccrualsAdjusted  prometheus.Counter
	PaymentsApplied   *prometheus.CounterVec
	PaymentsReversed  prometheus.Counter
	PaymentAmount     *prometheus.HistogramVec
	Unallocated       *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	InvariantFailures *prometheus.CounterVec
	LegacyMatches     *prometheus.CounterVec
	ReconcileMismatch prometheus.Counter
	ReconcileDuration prometheus.Histogram

	// Entity metrics
	EntitiesCreated     *prometheus.CounterVec
	EntitiesDeactivated prometheus.Counter

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Database metrics
	DBQueries     *prometheus.CounterVec
	DBDuration    *prometheus.HistogramVec
	DBConnections prometheus.Gauge
	DBErrors      *prometheus.CounterVec

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisErrors     *prometheus.CounterVec

	// Authentication metrics
	AuthFailures *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// Outbox metrics
	OutboxPublished prometheus.Counter
}

// New creates and registers all Prometheus metrics on the default registerer
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics and registers them on reg
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		DebtAccrued: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeledger_debt_accrued_total",
				Help: "Total number of debt sources accrued",
			},
			[]string{"kind"},
		),
		AccrualsReversed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeledger_accruals_reversed_total",
				Help: "Total number of accrual reversals by mode",
			},
			[]string{"kind", "mode"},
		),
		AccrualsAdjusted: f.NewCounter(prometheus.CounterOpts{
			Name: "tradeledger_accruals_adjusted_total",
			Help: "Total number of accrual adjustments",
		}),
		PaymentsApplied: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeledger_payments_applied_total",
				Help: "Total number of payments applied",
			},
			[]string{"currency", "direction"},
		),
		PaymentsReversed: f.NewCounter(prometheus.CounterOpts{
			Name: "tradeledger_payments_reversed_total",
			Help: "Total number of payments reversed",
		}),
		PaymentAmount: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradeledger_payment_amount",
				Help:    "Payment amounts",
				Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"currency"},
		),
		Unallocated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeledger_prepayments_total",
				Help: "Payments that left an unallocated remainder",
			},
			[]string{"currency"},
		),
		OperationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradeledger_operation_duration_seconds",
				Help:    "Duration of ledger operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		InvariantFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeledger_invariant_violations_total",
				Help: "Operations aborted by an invariant check",
			},
			[]string{"operation"},
		),
		LegacyMatches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeledger_legacy_matches_total",
				Help: "Legacy entry lookups by outcome",
			},
			[]string{"outcome"},
		),
		ReconcileMismatch: f.NewCounter(prometheus.CounterOpts{
			Name: "tradeledger_reconcile_mismatches_total",
			Help: "Entities whose balance did not match the replayed entries",
		}),
		ReconcileDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradeledger_reconcile_duration_seconds",
			Help:    "Duration of reconciliation reports",
			Buckets: prometheus.DefBuckets,
		}),

		EntitiesCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeledger_entities_created_total",
				Help: "Total number of customers and suppliers created",
			},
			[]string{"kind"},
		),
		EntitiesDeactivated: f.NewCounter(prometheus.CounterOpts{
			Name: "tradeledger_entities_deactivated_total",
			Help: "Total number of entities deactivated",
		}),

		// API metrics
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradeledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Database metrics
		DBQueries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeledger_db_queries_total",
				Help: "Total database queries",
			},
			[]string{"operation", "table"},
		),
		DBDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradeledger_db_query_duration_seconds",
				Help:    "Database query duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),
		DBConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "tradeledger_db_connections",
			Help: "Current number of database connections",
		}),
		DBErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeledger_db_errors_total",
				Help: "Total database errors",
			},
			[]string{"operation"},
		),

		// Redis metrics
		RedisOperations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeledger_redis_operations_total",
				Help: "Total Redis operations",
			},
			[]string{"operation"},
		),
		RedisErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeledger_redis_errors_total",
				Help: "Total Redis errors",
			},
			[]string{"operation"},
		),

		AuthFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeledger_auth_failures_total",
				Help: "Total authentication failures",
			},
			[]string{"reason"},
		),

		RateLimitHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeledger_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"path"},
		),

		OutboxPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "tradeledger_outbox_published_total",
			Help: "Total outbox events published",
		}),
	}
}
