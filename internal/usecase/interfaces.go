package usecase

import (
	"context"
	"time"

	"github.com/iho/tradeledger/internal/domain"
)

// EntityRepository defines data access for customers and suppliers.
type EntityRepository interface {
	Create(ctx context.Context, tx Transaction, entity *domain.Entity) error
	GetByID(ctx context.Context, id string) (*domain.Entity, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Entity, error)
	UpdateBalance(ctx context.Context, tx Transaction, id string, balance domain.Amounts, updatedAt time.Time) error
	SetActive(ctx context.Context, tx Transaction, id string, active bool, updatedAt time.Time) error
	// UpdateProfile changes the name and phone and nothing else.
	UpdateProfile(ctx context.Context, tx Transaction, id, name, phone string, updatedAt time.Time) error
	List(ctx context.Context, kind domain.EntityKind, limit, offset int) ([]*domain.Entity, error)
}

// DebtSourceRepository defines data access for sales and purchase batches.
type DebtSourceRepository interface {
	Create(ctx context.Context, tx Transaction, source *domain.DebtSource) error
	GetByID(ctx context.Context, id string) (*domain.DebtSource, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.DebtSource, error)
	// ListByEntityForUpdate locks every record of the entity that is not deleted.
	ListByEntityForUpdate(ctx context.Context, tx Transaction, entityID string) ([]*domain.DebtSource, error)
	Update(ctx context.Context, tx Transaction, source *domain.DebtSource) error
	ListByEntity(ctx context.Context, entityID string, limit, offset int) ([]*domain.DebtSource, error)
	// ListByEntityAndKind pages through the records of one kind only.
	ListByEntityAndKind(ctx context.Context, entityID string, kind domain.SourceKind, limit, offset int) ([]*domain.DebtSource, error)
	// ListOpen returns completed records of kind with debt left in any currency.
	ListOpen(ctx context.Context, kind domain.SourceKind, limit, offset int) ([]*domain.DebtSource, error)
}

// EntryRepository defines data access for ledger entries.
type EntryRepository interface {
	Create(ctx context.Context, tx Transaction, entry *domain.LedgerEntry) error
	// ListByEntity returns entries newest first.
	ListByEntity(ctx context.Context, entityID string, limit, offset int) ([]*domain.LedgerEntry, error)
	// ListAllByEntity returns every entry of the entity oldest first.
	ListAllByEntity(ctx context.Context, entityID string) ([]*domain.LedgerEntry, error)
	ListAllByEntityTx(ctx context.Context, tx Transaction, entityID string) ([]*domain.LedgerEntry, error)
	ListByReference(ctx context.Context, tx Transaction, entityID, referenceID string) ([]*domain.LedgerEntry, error)
	// SumUntil returns the signed sum of entries with event time at or before at.
	SumUntil(ctx context.Context, entityID string, at time.Time) (domain.Amounts, error)
}

// CashMovementRepository defines data access for cash movements.
type CashMovementRepository interface {
	Create(ctx context.Context, tx Transaction, movement *domain.CashMovement) error
	GetByID(ctx context.Context, id string) (*domain.CashMovement, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.CashMovement, error)
	Update(ctx context.Context, tx Transaction, movement *domain.CashMovement) error
	ListByEntity(ctx context.Context, entityID string, limit, offset int) ([]*domain.CashMovement, error)
}

// LedgerRepository defines data access for ledger-wide operations.
type LedgerRepository interface {
	// CheckConsistency returns, per currency, the sum of (balance - opening)
	// over all entities and the signed sum of all entries.
	CheckConsistency(ctx context.Context) (balanceDelta, entrySum domain.Amounts, err error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error)
	DeletePublished(ctx context.Context, before time.Time) error
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
	CreateTx(ctx context.Context, tx Transaction, log *domain.AuditLog) error
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
	GetByResourceID(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditLog, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Retrier re-runs an operation on transient storage failures.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a key whose request failed so the client may retry.
	Release(ctx context.Context, key string) error
}
