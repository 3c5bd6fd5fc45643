package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/tradeledger/internal/domain"
	"github.com/iho/tradeledger/internal/usecase"
)

const sourceColumns = `id, kind, entity_id, number, business_date, status, return_state, items, discount, totals, note, created_by, version, created_at, updated_at`

const createDebtSource = `
INSERT INTO debt_sources (` + sourceColumns + `, debt_uzs, debt_usd)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
`

const getDebtSourceByID = `SELECT ` + sourceColumns + ` FROM debt_sources WHERE id = $1`

const getDebtSourceByIDForUpdate = getDebtSourceByID + ` FOR UPDATE`

const listDebtSourcesByEntityForUpdate = `
SELECT ` + sourceColumns + ` FROM debt_sources
WHERE entity_id = $1 AND status <> 'DELETED'
ORDER BY business_date, created_at, id
FOR UPDATE
`

const updateDebtSource = `
UPDATE debt_sources
SET status = $2, return_state = $3, items = $4, discount = $5, totals = $6,
    debt_uzs = $7, debt_usd = $8, note = $9, version = version + 1, updated_at = $10
WHERE id = $1
`

const listDebtSourcesByEntity = `
SELECT ` + sourceColumns + ` FROM debt_sources
WHERE entity_id = $1
ORDER BY created_at, id
LIMIT $2 OFFSET $3
`

const listDebtSourcesByEntityAndKind = `
SELECT ` + sourceColumns + ` FROM debt_sources
WHERE entity_id = $1 AND kind = $2
ORDER BY created_at, id
LIMIT $3 OFFSET $4
`

const listOpenDebtSources = `
SELECT ` + sourceColumns + ` FROM debt_sources
WHERE kind = $1 AND status = 'COMPLETED' AND (debt_uzs > 0 OR debt_usd > 0)
ORDER BY business_date, created_at, id
LIMIT $2 OFFSET $3
`

// DebtSourceRepository implements usecase.DebtSourceRepository.
// Items and per-currency totals are stored as JSONB; the open debt per
// currency is mirrored into columns so open records can be indexed.
type DebtSourceRepository struct {
	db querier
}

// NewDebtSourceRepository creates a new DebtSourceRepository.
func NewDebtSourceRepository(pool *pgxpool.Pool) *DebtSourceRepository {
	return &DebtSourceRepository{db: pool}
}

// Create inserts a sale or purchase batch within a transaction.
func (r *DebtSourceRepository) Create(ctx context.Context, tx usecase.Transaction, source *domain.DebtSource) error {
	q, err := requireTx(tx)
	if err != nil {
		return err
	}

	items, totals, err := encodeSource(source)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, createDebtSource,
		source.ID,
		string(source.Kind),
		source.EntityID,
		source.Number,
		timeToPgTimestamptz(source.BusinessDate),
		string(source.Status),
		string(source.ReturnState),
		items,
		decimalToNumeric(source.Discount),
		totals,
		source.Note,
		source.CreatedBy,
		source.Version,
		timeToPgTimestamptz(source.CreatedAt),
		timeToPgTimestamptz(source.UpdatedAt),
		decimalToNumeric(source.Debt(domain.CurrencyUZS)),
		decimalToNumeric(source.Debt(domain.CurrencyUSD)),
	)
	return err
}

// GetByID retrieves a debt source by ID.
func (r *DebtSourceRepository) GetByID(ctx context.Context, id string) (*domain.DebtSource, error) {
	return scanDebtSource(r.db.QueryRow(ctx, getDebtSourceByID, id))
}

// GetByIDForUpdate retrieves a debt source by ID with a FOR UPDATE lock.
func (r *DebtSourceRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.DebtSource, error) {
	q, err := requireTx(tx)
	if err != nil {
		return nil, err
	}
	return scanDebtSource(q.QueryRow(ctx, getDebtSourceByIDForUpdate, id))
}

// ListByEntityForUpdate locks every record of the entity that is not deleted.
func (r *DebtSourceRepository) ListByEntityForUpdate(ctx context.Context, tx usecase.Transaction, entityID string) ([]*domain.DebtSource, error) {
	q, err := requireTx(tx)
	if err != nil {
		return nil, err
	}
	return collectDebtSources(q.Query(ctx, listDebtSourcesByEntityForUpdate, entityID))
}

// Update writes the mutable state of a debt source.
func (r *DebtSourceRepository) Update(ctx context.Context, tx usecase.Transaction, source *domain.DebtSource) error {
	q, err := requireTx(tx)
	if err != nil {
		return err
	}

	items, totals, err := encodeSource(source)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, updateDebtSource,
		source.ID,
		string(source.Status),
		string(source.ReturnState),
		items,
		decimalToNumeric(source.Discount),
		totals,
		decimalToNumeric(source.Debt(domain.CurrencyUZS)),
		decimalToNumeric(source.Debt(domain.CurrencyUSD)),
		source.Note,
		timeToPgTimestamptz(source.UpdatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSourceNotFound
	}
	return nil
}

// ListByEntity lists the records of an entity in creation order.
func (r *DebtSourceRepository) ListByEntity(ctx context.Context, entityID string, limit, offset int) ([]*domain.DebtSource, error) {
	return collectDebtSources(r.db.Query(ctx, listDebtSourcesByEntity, entityID, int32(limit), int32(offset)))
}

// ListByEntityAndKind lists the records of one kind of an entity in creation order.
func (r *DebtSourceRepository) ListByEntityAndKind(ctx context.Context, entityID string, kind domain.SourceKind, limit, offset int) ([]*domain.DebtSource, error) {
	return collectDebtSources(r.db.Query(ctx, listDebtSourcesByEntityAndKind, entityID, string(kind), int32(limit), int32(offset)))
}

// ListOpen returns completed records of kind with debt left, oldest first.
func (r *DebtSourceRepository) ListOpen(ctx context.Context, kind domain.SourceKind, limit, offset int) ([]*domain.DebtSource, error) {
	return collectDebtSources(r.db.Query(ctx, listOpenDebtSources, string(kind), int32(limit), int32(offset)))
}

func encodeSource(source *domain.DebtSource) (items, totals []byte, err error) {
	if items, err = encodeItems(source.Items); err != nil {
		return nil, nil, fmt.Errorf("encode items of %s: %w", source.ID, err)
	}
	if totals, err = encodeTotals(source.Totals); err != nil {
		return nil, nil, fmt.Errorf("encode totals of %s: %w", source.ID, err)
	}
	return items, totals, nil
}

func collectDebtSources(rows pgx.Rows, err error) ([]*domain.DebtSource, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*domain.DebtSource
	for rows.Next() {
		s, err := scanDebtSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}

	return sources, rows.Err()
}

func scanDebtSource(row pgx.Row) (*domain.DebtSource, error) {
	var (
		s                                  domain.DebtSource
		kind, status, returnState          string
		items, totals                      []byte
		discount                           pgtype.Numeric
		businessDate, createdAt, updatedAt pgtype.Timestamptz
	)

	err := row.Scan(
		&s.ID,
		&kind,
		&s.EntityID,
		&s.Number,
		&businessDate,
		&status,
		&returnState,
		&items,
		&discount,
		&totals,
		&s.Note,
		&s.CreatedBy,
		&s.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSourceNotFound
		}
		return nil, err
	}

	if s.Items, err = decodeItems(items); err != nil {
		return nil, fmt.Errorf("decode items of %s: %w", s.ID, err)
	}
	if s.Totals, err = decodeTotals(totals); err != nil {
		return nil, fmt.Errorf("decode totals of %s: %w", s.ID, err)
	}

	s.Kind = domain.SourceKind(kind)
	s.Status = domain.SourceStatus(status)
	s.ReturnState = domain.ReturnState(returnState)
	s.Discount = numericToDecimal(discount)
	s.BusinessDate = businessDate.Time
	s.CreatedAt = createdAt.Time
	s.UpdatedAt = updatedAt.Time

	return &s, nil
}
