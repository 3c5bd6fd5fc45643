package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/tradeledger/internal/domain"
	"github.com/iho/tradeledger/internal/usecase"
)

const entryColumns = `id, entity_id, entity_kind, currency, amount, direction, note, reference_id, reverses_entry_id, actor_id, balance_after, event_at, created_at`

const createEntry = `
INSERT INTO ledger_entries (` + entryColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

const listEntriesByEntity = `
SELECT ` + entryColumns + ` FROM ledger_entries
WHERE entity_id = $1
ORDER BY seq DESC
LIMIT $2 OFFSET $3
`

const listAllEntriesByEntity = `
SELECT ` + entryColumns + ` FROM ledger_entries
WHERE entity_id = $1
ORDER BY seq
`

const listEntriesByReference = `
SELECT ` + entryColumns + ` FROM ledger_entries
WHERE entity_id = $1 AND reference_id = $2
ORDER BY seq
`

const sumEntriesUntil = `
SELECT currency,
       COALESCE(SUM(CASE WHEN direction IN ('DEBT', 'REVERSAL') THEN amount ELSE -amount END), 0)
FROM ledger_entries
WHERE entity_id = $1 AND event_at <= $2
GROUP BY currency
`

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	db querier
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return &EntryRepository{db: pool}
}

// Create appends an entry within a transaction.
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	q, err := requireTx(tx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, createEntry,
		entry.ID,
		entry.EntityID,
		string(entry.EntityKind),
		string(entry.Currency),
		decimalToNumeric(entry.Amount),
		string(entry.Direction),
		entry.Note,
		nullableText(entry.ReferenceID),
		nullableText(entry.ReversesEntryID),
		entry.ActorID,
		decimalToNumeric(entry.BalanceAfter),
		timeToPgTimestamptz(entry.EventAt),
		timeToPgTimestamptz(entry.CreatedAt),
	)
	return err
}

// ListByEntity returns entries newest first.
func (r *EntryRepository) ListByEntity(ctx context.Context, entityID string, limit, offset int) ([]*domain.LedgerEntry, error) {
	return collectEntries(r.db.Query(ctx, listEntriesByEntity, entityID, int32(limit), int32(offset)))
}

// ListAllByEntity returns every entry of the entity oldest first.
func (r *EntryRepository) ListAllByEntity(ctx context.Context, entityID string) ([]*domain.LedgerEntry, error) {
	return r.ListAllByEntityTx(ctx, nil, entityID)
}

// ListAllByEntityTx is ListAllByEntity inside tx.
func (r *EntryRepository) ListAllByEntityTx(ctx context.Context, tx usecase.Transaction, entityID string) ([]*domain.LedgerEntry, error) {
	return collectEntries(on(r.db, tx).Query(ctx, listAllEntriesByEntity, entityID))
}

// ListByReference returns the entries written for one business record.
func (r *EntryRepository) ListByReference(ctx context.Context, tx usecase.Transaction, entityID, referenceID string) ([]*domain.LedgerEntry, error) {
	return collectEntries(on(r.db, tx).Query(ctx, listEntriesByReference, entityID, referenceID))
}

// SumUntil returns the signed sum of entries with event time at or before at.
func (r *EntryRepository) SumUntil(ctx context.Context, entityID string, at time.Time) (domain.Amounts, error) {
	rows, err := r.db.Query(ctx, sumEntriesUntil, entityID, timeToPgTimestamptz(at))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sums := domain.NewAmounts()
	for rows.Next() {
		var (
			currency string
			sum      pgtype.Numeric
		)
		if err := rows.Scan(&currency, &sum); err != nil {
			return nil, err
		}
		sums[domain.Currency(currency)] = numericToDecimal(sum)
	}

	return sums, rows.Err()
}

func collectEntries(rows pgx.Rows, err error) ([]*domain.LedgerEntry, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.LedgerEntry
	for rows.Next() {
		var (
			e                               domain.LedgerEntry
			entityKind, currency, direction string
			referenceID, reversesID         pgtype.Text
			amount, balanceAfter            pgtype.Numeric
			eventAt, createdAt              pgtype.Timestamptz
		)

		err := rows.Scan(
			&e.ID,
			&e.EntityID,
			&entityKind,
			&currency,
			&amount,
			&direction,
			&e.Note,
			&referenceID,
			&reversesID,
			&e.ActorID,
			&balanceAfter,
			&eventAt,
			&createdAt,
		)
		if err != nil {
			return nil, err
		}

		e.EntityKind = domain.EntityKind(entityKind)
		e.Currency = domain.Currency(currency)
		e.Direction = domain.Direction(direction)
		e.Amount = numericToDecimal(amount)
		e.BalanceAfter = numericToDecimal(balanceAfter)
		e.ReferenceID = referenceID.String
		e.ReversesEntryID = reversesID.String
		e.EventAt = eventAt.Time
		e.CreatedAt = createdAt.Time

		entries = append(entries, &e)
	}

	return entries, rows.Err()
}
