package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/tradeledger/internal/domain"
	"github.com/iho/tradeledger/internal/usecase"
)

const entityColumns = `id, kind, name, phone, balance_uzs, balance_usd, opening_uzs, opening_usd, active, version, created_at, updated_at`

const createEntity = `
INSERT INTO entities (` + entityColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

const getEntityByID = `SELECT ` + entityColumns + ` FROM entities WHERE id = $1`

const getEntityByIDForUpdate = getEntityByID + ` FOR UPDATE`

const updateEntityBalance = `
UPDATE entities
SET balance_uzs = $2, balance_usd = $3, version = version + 1, updated_at = $4
WHERE id = $1
`

const setEntityActive = `
UPDATE entities SET active = $2, version = version + 1, updated_at = $3 WHERE id = $1
`

const updateEntityProfile = `
UPDATE entities SET name = $2, phone = $3, version = version + 1, updated_at = $4 WHERE id = $1
`

const listEntities = `
SELECT ` + entityColumns + ` FROM entities
WHERE ($1 = '' OR kind = $1)
ORDER BY created_at, id
LIMIT $2 OFFSET $3
`

// EntityRepository implements usecase.EntityRepository.
type EntityRepository struct {
	db querier
}

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(pool *pgxpool.Pool) *EntityRepository {
	return &EntityRepository{db: pool}
}

// Create inserts a new entity within a transaction.
func (r *EntityRepository) Create(ctx context.Context, tx usecase.Transaction, entity *domain.Entity) error {
	q, err := requireTx(tx)
	if err != nil {
		return err
	}

	balUZS, balUSD := amountColumns(entity.Balance)
	openUZS, openUSD := amountColumns(entity.OpeningBalance)

	_, err = q.Exec(ctx, createEntity,
		entity.ID,
		string(entity.Kind),
		entity.Name,
		entity.Phone,
		balUZS,
		balUSD,
		openUZS,
		openUSD,
		entity.Active,
		entity.Version,
		timeToPgTimestamptz(entity.CreatedAt),
		timeToPgTimestamptz(entity.UpdatedAt),
	)
	return err
}

// GetByID retrieves an entity by ID.
func (r *EntityRepository) GetByID(ctx context.Context, id string) (*domain.Entity, error) {
	return scanEntity(r.db.QueryRow(ctx, getEntityByID, id))
}

// GetByIDForUpdate retrieves an entity by ID with a FOR UPDATE lock.
func (r *EntityRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Entity, error) {
	q, err := requireTx(tx)
	if err != nil {
		return nil, err
	}
	return scanEntity(q.QueryRow(ctx, getEntityByIDForUpdate, id))
}

// UpdateBalance writes both currency balances of an entity.
func (r *EntityRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, id string, balance domain.Amounts, updatedAt time.Time) error {
	q, err := requireTx(tx)
	if err != nil {
		return err
	}

	uzs, usd := amountColumns(balance)
	tag, err := q.Exec(ctx, updateEntityBalance, id, uzs, usd, timeToPgTimestamptz(updatedAt))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

// UpdateProfile rewrites the name and phone of an entity. Balances are not
// touched.
func (r *EntityRepository) UpdateProfile(ctx context.Context, tx usecase.Transaction, id, name, phone string, updatedAt time.Time) error {
	q, err := requireTx(tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, updateEntityProfile, id, name, phone, timeToPgTimestamptz(updatedAt))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

// SetActive flips the active flag of an entity.
func (r *EntityRepository) SetActive(ctx context.Context, tx usecase.Transaction, id string, active bool, updatedAt time.Time) error {
	q, err := requireTx(tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, setEntityActive, id, active, timeToPgTimestamptz(updatedAt))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

// List lists entities with pagination. An empty kind lists both sides.
func (r *EntityRepository) List(ctx context.Context, kind domain.EntityKind, limit, offset int) ([]*domain.Entity, error) {
	rows, err := r.db.Query(ctx, listEntities, string(kind), int32(limit), int32(offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entities := make([]*domain.Entity, 0, limit)
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}

	return entities, rows.Err()
}

func scanEntity(row pgx.Row) (*domain.Entity, error) {
	var (
		e                                domain.Entity
		kind                             string
		balUZS, balUSD, openUZS, openUSD pgtype.Numeric
		createdAt, updatedAt             pgtype.Timestamptz
	)

	err := row.Scan(
		&e.ID,
		&kind,
		&e.Name,
		&e.Phone,
		&balUZS,
		&balUSD,
		&openUZS,
		&openUSD,
		&e.Active,
		&e.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, err
	}

	e.Kind = domain.EntityKind(kind)
	e.Balance = columnsToAmounts(balUZS, balUSD)
	e.OpeningBalance = columnsToAmounts(openUZS, openUSD)
	e.CreatedAt = createdAt.Time
	e.UpdatedAt = updatedAt.Time

	return &e, nil
}
