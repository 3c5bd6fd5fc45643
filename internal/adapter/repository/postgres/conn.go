package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/tradeledger/internal/domain"
	"github.com/iho/tradeledger/internal/usecase"
)

// querier is the subset of pgxpool.Pool and pgx.Tx the repositories use.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// on returns the transaction's connection, or db when tx is nil.
func on(db querier, tx usecase.Transaction) querier {
	if t, ok := tx.(*Tx); ok && t != nil {
		return t.tx
	}
	return db
}

// requireTx unwraps tx for statements that must not run outside one.
func requireTx(tx usecase.Transaction) (querier, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil {
		return nil, errNoTransaction
	}
	return t.tx, nil
}

var errNoTransaction = errors.New("postgres: operation requires a transaction")

// Type conversion helpers.
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: !t.IsZero()}
}

func nullableText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// amountColumns splits a per-currency map into the UZS and USD columns.
func amountColumns(a domain.Amounts) (uzs, usd pgtype.Numeric) {
	return decimalToNumeric(a.Get(domain.CurrencyUZS)), decimalToNumeric(a.Get(domain.CurrencyUSD))
}

func columnsToAmounts(uzs, usd pgtype.Numeric) domain.Amounts {
	return domain.Amounts{
		domain.CurrencyUZS: numericToDecimal(uzs),
		domain.CurrencyUSD: numericToDecimal(usd),
	}
}

// itemRecord and totalsRecord are the JSONB shapes of debt source columns.
type itemRecord struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Currency  string `json:"currency"`
	Quantity  string `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type totalsRecord struct {
	Subtotal   string `json:"subtotal"`
	Discount   string `json:"discount"`
	GrandTotal string `json:"grand_total"`
	Paid       string `json:"paid"`
	Debt       string `json:"debt"`
}

func encodeItems(items []domain.LineItem) ([]byte, error) {
	out := make([]itemRecord, 0, len(items))
	for _, it := range items {
		out = append(out, itemRecord{
			ProductID: it.ProductID,
			Name:      it.Name,
			Currency:  string(it.Currency),
			Quantity:  it.Quantity.String(),
			UnitPrice: it.UnitPrice.String(),
			Subtotal:  it.Subtotal.String(),
		})
	}
	return json.Marshal(out)
}

func decodeItems(data []byte) ([]domain.LineItem, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var records []itemRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	items := make([]domain.LineItem, 0, len(records))
	for _, r := range records {
		qty, err := decimal.NewFromString(r.Quantity)
		if err != nil {
			return nil, err
		}
		price, err := decimal.NewFromString(r.UnitPrice)
		if err != nil {
			return nil, err
		}
		subtotal, err := decimal.NewFromString(r.Subtotal)
		if err != nil {
			return nil, err
		}
		items = append(items, domain.LineItem{
			ProductID: r.ProductID,
			Name:      r.Name,
			Currency:  domain.Currency(r.Currency),
			Quantity:  qty,
			UnitPrice: price,
			Subtotal:  subtotal,
		})
	}
	return items, nil
}

func encodeTotals(totals map[domain.Currency]*domain.CurrencyTotals) ([]byte, error) {
	out := make(map[string]totalsRecord, len(totals))
	for c, t := range totals {
		out[string(c)] = totalsRecord{
			Subtotal:   t.Subtotal.String(),
			Discount:   t.Discount.String(),
			GrandTotal: t.GrandTotal.String(),
			Paid:       t.Paid.String(),
			Debt:       t.Debt.String(),
		}
	}
	return json.Marshal(out)
}

func decodeTotals(data []byte) (map[domain.Currency]*domain.CurrencyTotals, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var records map[string]totalsRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	out := make(map[domain.Currency]*domain.CurrencyTotals, len(records))
	for c, r := range records {
		var t domain.CurrencyTotals
		fields := []struct {
			src string
			dst *decimal.Decimal
		}{
			{r.Subtotal, &t.Subtotal},
			{r.Discount, &t.Discount},
			{r.GrandTotal, &t.GrandTotal},
			{r.Paid, &t.Paid},
			{r.Debt, &t.Debt},
		}
		for _, f := range fields {
			d, err := decimal.NewFromString(f.src)
			if err != nil {
				return nil, err
			}
			*f.dst = d
		}
		out[domain.Currency(c)] = &t
	}
	return out, nil
}
