package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/tradeledger/internal/domain"
	"github.com/iho/tradeledger/internal/usecase"
)

const movementColumns = `id, entity_id, entity_kind, currency, amount, method, payment_date, note, status, created_by, created_at, updated_at`

const createCashMovement = `
INSERT INTO cash_movements (` + movementColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

const getCashMovementByID = `SELECT ` + movementColumns + ` FROM cash_movements WHERE id = $1`

const getCashMovementByIDForUpdate = getCashMovementByID + ` FOR UPDATE`

const updateCashMovement = `
UPDATE cash_movements
SET currency = $2, amount = $3, method = $4, payment_date = $5, note = $6, status = $7, updated_at = $8
WHERE id = $1
`

const listCashMovementsByEntity = `
SELECT ` + movementColumns + ` FROM cash_movements
WHERE entity_id = $1 AND status <> 'DELETED'
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3
`

// CashMovementRepository implements usecase.CashMovementRepository.
type CashMovementRepository struct {
	db querier
}

// NewCashMovementRepository creates a new CashMovementRepository.
func NewCashMovementRepository(pool *pgxpool.Pool) *CashMovementRepository {
	return &CashMovementRepository{db: pool}
}

// Create inserts a cash movement within a transaction.
func (r *CashMovementRepository) Create(ctx context.Context, tx usecase.Transaction, m *domain.CashMovement) error {
	q, err := requireTx(tx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, createCashMovement,
		m.ID,
		m.EntityID,
		string(m.EntityKind),
		string(m.Currency),
		decimalToNumeric(m.Amount),
		string(m.Method),
		timeToPgTimestamptz(m.PaymentDate),
		m.Note,
		string(m.Status),
		m.CreatedBy,
		timeToPgTimestamptz(m.CreatedAt),
		timeToPgTimestamptz(m.UpdatedAt),
	)
	return err
}

// GetByID retrieves a cash movement by ID.
func (r *CashMovementRepository) GetByID(ctx context.Context, id string) (*domain.CashMovement, error) {
	return scanCashMovement(r.db.QueryRow(ctx, getCashMovementByID, id))
}

// GetByIDForUpdate retrieves a cash movement by ID with a FOR UPDATE lock.
func (r *CashMovementRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.CashMovement, error) {
	q, err := requireTx(tx)
	if err != nil {
		return nil, err
	}
	return scanCashMovement(q.QueryRow(ctx, getCashMovementByIDForUpdate, id))
}

// Update writes the editable fields and status of a cash movement.
func (r *CashMovementRepository) Update(ctx context.Context, tx usecase.Transaction, m *domain.CashMovement) error {
	q, err := requireTx(tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, updateCashMovement,
		m.ID,
		string(m.Currency),
		decimalToNumeric(m.Amount),
		string(m.Method),
		timeToPgTimestamptz(m.PaymentDate),
		m.Note,
		string(m.Status),
		timeToPgTimestamptz(m.UpdatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCashMovementNotFound
	}
	return nil
}

// ListByEntity lists active cash movements of an entity, newest first.
func (r *CashMovementRepository) ListByEntity(ctx context.Context, entityID string, limit, offset int) ([]*domain.CashMovement, error) {
	rows, err := r.db.Query(ctx, listCashMovementsByEntity, entityID, int32(limit), int32(offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []*domain.CashMovement
	for rows.Next() {
		m, err := scanCashMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}

	return movements, rows.Err()
}

func scanCashMovement(row pgx.Row) (*domain.CashMovement, error) {
	var (
		m                                    domain.CashMovement
		entityKind, currency, method, status string
		amount                               pgtype.Numeric
		paymentDate, createdAt, updatedAt    pgtype.Timestamptz
	)

	err := row.Scan(
		&m.ID,
		&m.EntityID,
		&entityKind,
		&currency,
		&amount,
		&method,
		&paymentDate,
		&m.Note,
		&status,
		&m.CreatedBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCashMovementNotFound
		}
		return nil, err
	}

	m.EntityKind = domain.EntityKind(entityKind)
	m.Currency = domain.Currency(currency)
	m.Method = domain.PaymentMethod(method)
	m.Status = domain.CashMovementStatus(status)
	m.Amount = numericToDecimal(amount)
	m.PaymentDate = paymentDate.Time
	m.CreatedAt = createdAt.Time
	m.UpdatedAt = updatedAt.Time

	return &m, nil
}
