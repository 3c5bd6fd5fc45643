package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"

	"github.com/iho/tradeledger/internal/domain"
)

var fixedTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func num(s string) pgtype.Numeric {
	return decimalToNumeric(decimal.RequireFromString(s))
}

func ts(t time.Time) pgtype.Timestamptz {
	return timeToPgTimestamptz(t)
}

func beginTx(t *testing.T, mock pgxmock.PgxPoolIface) *Tx {
	t.Helper()
	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	return &Tx{tx: tx}
}

func TestEntityRepositoryGetByID(t *testing.T) {
	mock := newMockPool(t)
	repo := &EntityRepository{db: mock}

	rows := pgxmock.NewRows([]string{"id", "kind", "name", "phone", "balance_uzs", "balance_usd", "opening_uzs", "opening_usd", "active", "version", "created_at", "updated_at"}).
		AddRow("cust-1", "customer", "Bakhrom", "", num("150.50"), num("-20"), num("0"), num("0"), true, int64(3), ts(fixedTime), ts(fixedTime))

	mock.ExpectQuery(regexp.QuoteMeta("FROM entities WHERE id = $1")).
		WithArgs("cust-1").
		WillReturnRows(rows)

	e, err := repo.GetByID(context.Background(), "cust-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if e.Kind != domain.EntityKindCustomer {
		t.Errorf("expected customer, got %s", e.Kind)
	}
	if !e.Balance.Get(domain.CurrencyUZS).Equal(decimal.RequireFromString("150.5")) {
		t.Errorf("unexpected UZS balance %s", e.Balance.Get(domain.CurrencyUZS))
	}
	if !e.Balance.Get(domain.CurrencyUSD).Equal(decimal.NewFromInt(-20)) {
		t.Errorf("unexpected USD balance %s", e.Balance.Get(domain.CurrencyUSD))
	}
	if e.Version != 3 || !e.CreatedAt.Equal(fixedTime) {
		t.Errorf("unexpected metadata %+v", e)
	}

	assertExpectations(t, mock)
}

func TestEntityRepositoryGetByIDNotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := &EntityRepository{db: mock}

	mock.ExpectQuery(regexp.QuoteMeta("FROM entities WHERE id = $1")).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrEntityNotFound) {
		t.Fatalf("expected entity not found, got %v", err)
	}
}

func TestEntityRepositoryUpdateBalance(t *testing.T) {
	mock := newMockPool(t)
	repo := &EntityRepository{db: mock}
	tx := beginTx(t, mock)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE entities")).
		WithArgs("cust-1", num("40"), num("0"), ts(fixedTime)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE entities")).
		WithArgs("ghost", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	balance := domain.Amounts{domain.CurrencyUZS: decimal.NewFromInt(40)}
	if err := repo.UpdateBalance(context.Background(), tx, "cust-1", balance, fixedTime); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := repo.UpdateBalance(context.Background(), tx, "ghost", balance, fixedTime)
	if !errors.Is(err, domain.ErrEntityNotFound) {
		t.Fatalf("expected entity not found, got %v", err)
	}

	assertExpectations(t, mock)
}

func TestEntityRepositoryUpdateProfile(t *testing.T) {
	mock := newMockPool(t)
	repo := &EntityRepository{db: mock}
	tx := beginTx(t, mock)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE entities SET name = $2, phone = $3")).
		WithArgs("cust-1", "Bakhrom aka", "+998901234567", ts(fixedTime)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE entities SET name = $2, phone = $3")).
		WithArgs("ghost", "x", "", ts(fixedTime)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.UpdateProfile(context.Background(), tx, "cust-1", "Bakhrom aka", "+998901234567", fixedTime); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := repo.UpdateProfile(context.Background(), tx, "ghost", "x", "", fixedTime)
	if !errors.Is(err, domain.ErrEntityNotFound) {
		t.Fatalf("expected entity not found, got %v", err)
	}
	if err := repo.UpdateProfile(context.Background(), nil, "cust-1", "x", "", fixedTime); !errors.Is(err, errNoTransaction) {
		t.Fatalf("expected errNoTransaction, got %v", err)
	}

	assertExpectations(t, mock)
}

func TestWritesRequireTransaction(t *testing.T) {
	mock := newMockPool(t)
	ctx := context.Background()

	checks := map[string]error{
		"entity":        (&EntityRepository{db: mock}).Create(ctx, nil, &domain.Entity{ID: "e"}),
		"debt source":   (&DebtSourceRepository{db: mock}).Update(ctx, nil, &domain.DebtSource{ID: "s"}),
		"entry":         (&EntryRepository{db: mock}).Create(ctx, nil, &domain.LedgerEntry{ID: "l"}),
		"cash movement": (&CashMovementRepository{db: mock}).Create(ctx, nil, &domain.CashMovement{ID: "m"}),
		"outbox":        (&OutboxRepository{db: mock}).Create(ctx, nil, &domain.OutboxEvent{ID: "o"}),
	}

	for name, err := range checks {
		if !errors.Is(err, errNoTransaction) {
			t.Errorf("%s: expected errNoTransaction, got %v", name, err)
		}
	}

	assertExpectations(t, mock)
}

func TestDebtSourceRepositoryRoundTrip(t *testing.T) {
	mock := newMockPool(t)
	repo := &DebtSourceRepository{db: mock}
	tx := beginTx(t, mock)

	source := &domain.DebtSource{
		ID:           "sale-1",
		Kind:         domain.SourceKindSale,
		EntityID:     "cust-1",
		BusinessDate: fixedTime,
		Status:       domain.SourceStatusCompleted,
		ReturnState:  domain.ReturnStateNone,
		Items: []domain.LineItem{{
			ProductID: "rice",
			Currency:  domain.CurrencyUZS,
			Quantity:  decimal.NewFromInt(4),
			UnitPrice: decimal.NewFromInt(25),
			Subtotal:  decimal.NewFromInt(100),
		}},
		Totals: map[domain.Currency]*domain.CurrencyTotals{
			domain.CurrencyUZS: {
				Subtotal:   decimal.NewFromInt(100),
				Discount:   decimal.Zero,
				GrandTotal: decimal.NewFromInt(100),
				Paid:       decimal.NewFromInt(30),
				Debt:       decimal.NewFromInt(70),
			},
		},
		CreatedBy: "op-1",
		CreatedAt: fixedTime,
		UpdatedAt: fixedTime,
	}

	items, totals, err := encodeSource(source)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO debt_sources")).
		WithArgs(
			"sale-1", "sale", "cust-1", "", ts(fixedTime), "COMPLETED", "NONE",
			items, num("0"), totals, "", "op-1", int64(0), ts(fixedTime), ts(fixedTime),
			num("70"), num("0"),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), tx, source); err != nil {
		t.Fatalf("create: %v", err)
	}

	rows := pgxmock.NewRows([]string{"id", "kind", "entity_id", "number", "business_date", "status", "return_state", "items", "discount", "totals", "note", "created_by", "version", "created_at", "updated_at"}).
		AddRow("sale-1", "sale", "cust-1", "", ts(fixedTime), "COMPLETED", "NONE", items, num("0"), totals, "", "op-1", int64(0), ts(fixedTime), ts(fixedTime))

	mock.ExpectQuery(regexp.QuoteMeta("WHERE kind = $1 AND status = 'COMPLETED'")).
		WithArgs("sale", int32(10), int32(0)).
		WillReturnRows(rows)

	open, err := repo.ListOpen(context.Background(), domain.SourceKindSale, 10, 0)
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected 1 source, got %d", len(open))
	}

	got := open[0]
	if !got.Debt(domain.CurrencyUZS).Equal(decimal.NewFromInt(70)) || !got.Paid(domain.CurrencyUZS).Equal(decimal.NewFromInt(30)) {
		t.Errorf("unexpected totals %+v", got.Totals[domain.CurrencyUZS])
	}
	if len(got.Items) != 1 || got.Items[0].ProductID != "rice" || !got.Items[0].Quantity.Equal(decimal.NewFromInt(4)) {
		t.Errorf("unexpected items %+v", got.Items)
	}
	if err := got.CheckInvariants(); err != nil {
		t.Errorf("decoded source breaks invariants: %v", err)
	}

	assertExpectations(t, mock)
}

func TestDebtSourceRepositoryListByEntityAndKind(t *testing.T) {
	mock := newMockPool(t)
	repo := &DebtSourceRepository{db: mock}

	items, totals, err := encodeSource(&domain.DebtSource{ID: "buy-1"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	rows := pgxmock.NewRows([]string{"id", "kind", "entity_id", "number", "business_date", "status", "return_state", "items", "discount", "totals", "note", "created_by", "version", "created_at", "updated_at"}).
		AddRow("buy-1", "purchase", "sup-1", "", ts(fixedTime), "COMPLETED", "NONE", items, num("0"), totals, "", "op-1", int64(0), ts(fixedTime), ts(fixedTime))

	mock.ExpectQuery(regexp.QuoteMeta("WHERE entity_id = $1 AND kind = $2")).
		WithArgs("sup-1", "purchase", int32(20), int32(40)).
		WillReturnRows(rows)

	got, err := repo.ListByEntityAndKind(context.Background(), "sup-1", domain.SourceKindPurchase, 20, 40)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Kind != domain.SourceKindPurchase {
		t.Fatalf("unexpected sources %+v", got)
	}

	assertExpectations(t, mock)
}

func TestEntryRepositoryListByReference(t *testing.T) {
	mock := newMockPool(t)
	repo := &EntryRepository{db: mock}

	rows := pgxmock.NewRows([]string{"id", "entity_id", "entity_kind", "currency", "amount", "direction", "note", "reference_id", "reverses_entry_id", "actor_id", "balance_after", "event_at", "created_at"}).
		AddRow("e1", "cust-1", "customer", "UZS", num("60"), "PAYMENT", "", pgtype.Text{String: "cm-1", Valid: true}, pgtype.Text{}, "op-1", num("40"), ts(fixedTime), ts(fixedTime)).
		AddRow("e2", "cust-1", "customer", "UZS", num("60"), "REVERSAL", "", pgtype.Text{String: "cm-1", Valid: true}, pgtype.Text{String: "e1", Valid: true}, "op-1", num("100"), ts(fixedTime), ts(fixedTime))

	mock.ExpectQuery(regexp.QuoteMeta("WHERE entity_id = $1 AND reference_id = $2")).
		WithArgs("cust-1", "cm-1").
		WillReturnRows(rows)

	entries, err := repo.ListByReference(context.Background(), nil, "cust-1", "cm-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ReversesEntryID != "" || entries[1].ReversesEntryID != "e1" {
		t.Errorf("unexpected reversal links %q %q", entries[0].ReversesEntryID, entries[1].ReversesEntryID)
	}
	if entries[1].SignedAmount().Sign() <= 0 {
		t.Errorf("expected reversal to carry a positive sign")
	}

	assertExpectations(t, mock)
}

func TestEntryRepositorySumUntil(t *testing.T) {
	mock := newMockPool(t)
	repo := &EntryRepository{db: mock}

	rows := pgxmock.NewRows([]string{"currency", "sum"}).
		AddRow("UZS", num("40")).
		AddRow("USD", num("-5.25"))

	mock.ExpectQuery(regexp.QuoteMeta("event_at <= $2")).
		WithArgs("cust-1", ts(fixedTime)).
		WillReturnRows(rows)

	sums, err := repo.SumUntil(context.Background(), "cust-1", fixedTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sums.Get(domain.CurrencyUSD).Equal(decimal.RequireFromString("-5.25")) {
		t.Errorf("unexpected USD sum %s", sums.Get(domain.CurrencyUSD))
	}

	assertExpectations(t, mock)
}

func TestLedgerRepositoryCheckConsistency(t *testing.T) {
	mock := newMockPool(t)
	repo := &LedgerRepository{db: mock}

	mock.ExpectQuery(regexp.QuoteMeta("FROM entities")).
		WillReturnRows(pgxmock.NewRows([]string{"d_uzs", "d_usd", "s_uzs", "s_usd"}).
			AddRow(num("500"), num("20"), num("450"), num("20")))

	delta, sum, err := repo.CheckConsistency(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delta.Equal(sum) {
		t.Fatal("expected UZS drift to be visible")
	}
	if !delta.Get(domain.CurrencyUSD).Equal(sum.Get(domain.CurrencyUSD)) {
		t.Errorf("expected USD to match")
	}

	assertExpectations(t, mock)
}

func TestCashMovementRepositoryUpdateMissing(t *testing.T) {
	mock := newMockPool(t)
	repo := &CashMovementRepository{db: mock}
	tx := beginTx(t, mock)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE cash_movements")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), tx, &domain.CashMovement{ID: "cm-1", Amount: decimal.NewFromInt(1)})
	if !errors.Is(err, domain.ErrCashMovementNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAuditRepositoryListBuildsFilter(t *testing.T) {
	mock := newMockPool(t)
	repo := &AuditRepository{db: mock}

	mock.ExpectQuery(regexp.QuoteMeta("AND actor_id = $1 AND resource_type = $2 ORDER BY created_at DESC LIMIT $3")).
		WithArgs("op-1", "debt_source", 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "actor_id", "action", "resource_type", "resource_id", "request_id", "before_state", "after_state", "status", "error_message", "created_at"}).
			AddRow("a1", "op-1", "debt.accrue", "debt_source", "sale-1", "", []byte(nil), []byte(`{"status":"COMPLETED"}`), "success", "", ts(fixedTime)))

	logs, err := repo.List(context.Background(), domain.AuditFilter{ActorID: "op-1", ResourceType: "debt_source", Limit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 1 || logs[0].AfterState["status"] != "COMPLETED" {
		t.Fatalf("unexpected logs %+v", logs)
	}

	assertExpectations(t, mock)
}

func TestDecodeTotalsRejectsGarbage(t *testing.T) {
	if _, err := decodeTotals([]byte(`{"UZS":{"debt":"abc"}}`)); err == nil {
		t.Fatal("expected malformed decimal to fail")
	}
	if totals, err := decodeTotals(nil); err != nil || totals != nil {
		t.Fatalf("expected empty totals, got %v %v", totals, err)
	}
}
