package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iho/tradeledger/internal/domain"
	"github.com/iho/tradeledger/internal/infrastructure/metrics"
	"github.com/iho/tradeledger/internal/usecase"
	"github.com/iho/tradeledger/internal/usecase/mocks"
)

const actor = "op-1"

type engine struct {
	mem       *mocks.Ledger
	ledger    *usecase.LedgerUseCase
	sales     *usecase.SaleUseCase
	purchases *usecase.PurchaseUseCase
	cash      *usecase.CashMovementUseCase
	entities  *usecase.EntityUseCase
	recon     *usecase.ReconciliationUseCase
	cache     *mocks.MemCache
	metrics   *metrics.Metrics
}

func newEngine(t *testing.T) *engine {
	t.Helper()

	mem := mocks.NewLedger()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	cache := mocks.NewMemCache()

	ledger := usecase.NewLedgerUseCase(mem.TxManager, mem.Entities, mem.Sources, mem.Entries, mem.Outbox, mem.Audit, mem.IDs, m)

	return &engine{
		mem:       mem,
		ledger:    ledger,
		sales:     usecase.NewSaleUseCase(ledger, mem.Sources),
		purchases: usecase.NewPurchaseUseCase(ledger, mem.Sources),
		cash:      usecase.NewCashMovementUseCase(ledger, mem.Movements, mem.Entries),
		entities:  usecase.NewEntityUseCase(ledger, mem.Entities, mem.Entries),
		recon:     usecase.NewReconciliationUseCase(mem.Entities, mem.Sources, mem.Entries, mem.LedgerRepo, cache, m),
		cache:     cache,
		metrics:   m,
	}
}

func (e *engine) customer(t *testing.T, id string) {
	t.Helper()
	e.mem.Store.PutEntity(&domain.Entity{
		ID:      id,
		Kind:    domain.EntityKindCustomer,
		Name:    "Customer " + id,
		Balance: domain.NewAmounts(),
		Active:  true,
	})
}

func (e *engine) supplier(t *testing.T, id string) {
	t.Helper()
	e.mem.Store.PutEntity(&domain.Entity{
		ID:      id,
		Kind:    domain.EntityKindSupplier,
		Name:    "Supplier " + id,
		Balance: domain.NewAmounts(),
		Active:  true,
	})
}

func (e *engine) balance(t *testing.T, id string, c domain.Currency) decimal.Decimal {
	t.Helper()
	ent := e.mem.Store.Entity(id)
	require.NotNil(t, ent)
	return ent.Balance.Get(c)
}

// sale records a single-line UZS sale of amount on the given day.
func (e *engine) sale(t *testing.T, customerID, amount string, day int) *domain.DebtSource {
	t.Helper()
	at := date(day)
	s, err := e.sales.CreateSale(context.Background(), usecase.CreateSaleInput{
		ActorID:    actor,
		CustomerID: customerID,
		SaleDate:   &at,
		Items:      []domain.LineItem{uzsItem("p-1", "1", amount)},
	})
	require.NoError(t, err)
	return s
}

func (e *engine) pay(t *testing.T, entityID, amount string) *usecase.CashMovementResult {
	t.Helper()
	res, err := e.cash.Create(context.Background(), usecase.CreateCashMovementInput{
		ActorID:  actor,
		EntityID: entityID,
		Currency: domain.CurrencyUZS,
		Amount:   dec(amount),
	})
	require.NoError(t, err)
	return res
}

func uzsItem(product, qty, price string) domain.LineItem {
	return domain.LineItem{ProductID: product, Name: product, Currency: domain.CurrencyUZS, Quantity: dec(qty), UnitPrice: dec(price)}
}

func usdItem(product, qty, price string) domain.LineItem {
	return domain.LineItem{ProductID: product, Name: product, Currency: domain.CurrencyUSD, Quantity: dec(qty), UnitPrice: dec(price)}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(day int) time.Time {
	return time.Date(2024, time.March, day, 10, 0, 0, 0, time.UTC)
}

func requireDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}
