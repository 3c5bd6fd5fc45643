package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking entity rows
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// ReportCacheTTL is how long the last reconciliation report is kept
	ReportCacheTTL = time.Hour

	// ReportCacheKey is the cache key of the last reconciliation report
	ReportCacheKey = "reconciliation:last"

	// reconcileBatchSize is the page size used when walking all entities
	reconcileBatchSize = 500

	// SystemActor is recorded on operations started from the CLI
	SystemActor = "system"
)
