package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/tradeledger/internal/domain"
)

const checkLedgerConsistency = `
SELECT
    (SELECT COALESCE(SUM(balance_uzs - opening_uzs), 0) FROM entities),
    (SELECT COALESCE(SUM(balance_usd - opening_usd), 0) FROM entities),
    (SELECT COALESCE(SUM(CASE WHEN direction IN ('DEBT', 'REVERSAL') THEN amount ELSE -amount END), 0)
       FROM ledger_entries WHERE currency = 'UZS'),
    (SELECT COALESCE(SUM(CASE WHEN direction IN ('DEBT', 'REVERSAL') THEN amount ELSE -amount END), 0)
       FROM ledger_entries WHERE currency = 'USD')
`

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	db querier
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{db: pool}
}

// CheckConsistency returns, per currency, how far balances moved from their
// opening values and the signed sum of all entries.
func (r *LedgerRepository) CheckConsistency(ctx context.Context) (balanceDelta, entrySum domain.Amounts, err error) {
	var deltaUZS, deltaUSD, sumUZS, sumUSD pgtype.Numeric

	err = r.db.QueryRow(ctx, checkLedgerConsistency).Scan(&deltaUZS, &deltaUSD, &sumUZS, &sumUSD)
	if err != nil {
		return nil, nil, err
	}

	return columnsToAmounts(deltaUZS, deltaUSD), columnsToAmounts(sumUZS, sumUSD), nil
}
