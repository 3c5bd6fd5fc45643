package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/tradeledger/internal/domain"
	"github.com/iho/tradeledger/internal/usecase"
)

func TestSaleUseCase_AdjustItemQuantity(t *testing.T) {
	e := newEngine(t)
	e.customer(t, "cust-1")
	ctx := context.Background()

	s, err := e.sales.CreateSale(ctx, usecase.CreateSaleInput{
		ActorID:    actor,
		CustomerID: "cust-1",
		Items: []domain.LineItem{
			uzsItem("rice", "4", "25"),
			usdItem("oil", "2", "10"),
		},
	})
	require.NoError(t, err)

	res, err := e.sales.AdjustItemQuantity(ctx, usecase.AdjustItemQuantityInput{
		ActorID:   actor,
		SaleID:    s.ID,
		ProductID: "rice",
		Quantity:  dec("2"),
	})
	require.NoError(t, err)
	requireDec(t, "-50", res.BalanceDelta.Get(domain.CurrencyUZS))
	requireDec(t, "0", res.BalanceDelta.Get(domain.CurrencyUSD))
	requireDec(t, "50", res.NewBalance.Get(domain.CurrencyUZS))
	requireDec(t, "20", res.NewBalance.Get(domain.CurrencyUSD))

	got := e.mem.Store.Source(s.ID)
	assert.Equal(t, domain.ReturnStatePartial, got.ReturnState)
	requireDec(t, "50", got.TotalsFor(domain.CurrencyUZS).Subtotal)
	requireDec(t, "50", got.Debt(domain.CurrencyUZS))

	_, err = e.sales.AdjustItemQuantity(ctx, usecase.AdjustItemQuantityInput{
		ActorID:   actor,
		SaleID:    s.ID,
		ProductID: "oil",
		Quantity:  dec("0"),
	})
	require.NoError(t, err)
	got = e.mem.Store.Source(s.ID)
	require.Len(t, got.Items, 1)
	requireDec(t, "0", got.Debt(domain.CurrencyUSD))
	requireDec(t, "0", e.balance(t, "cust-1", domain.CurrencyUSD))

	_, err = e.sales.AdjustItemQuantity(ctx, usecase.AdjustItemQuantityInput{
		ActorID:   actor,
		SaleID:    s.ID,
		ProductID: "rice",
		Quantity:  dec("0"),
	})
	require.NoError(t, err)
	got = e.mem.Store.Source(s.ID)
	assert.Empty(t, got.Items)
	assert.Equal(t, domain.ReturnStateFull, got.ReturnState)
	assert.True(t, e.mem.Store.Entity("cust-1").Balance.IsZero())
}

func TestSaleUseCase_AdjustItemQuantityKeepsDiscount(t *testing.T) {
	e := newEngine(t)
	e.customer(t, "cust-1")
	ctx := context.Background()

	s, err := e.sales.CreateSale(ctx, usecase.CreateSaleInput{
		ActorID:    actor,
		CustomerID: "cust-1",
		Items: []domain.LineItem{
			uzsItem("rice", "1", "300"),
			usdItem("oil", "1", "100"),
		},
		Discount: dec("40"),
	})
	require.NoError(t, err)

	res, err := e.sales.AdjustItemQuantity(ctx, usecase.AdjustItemQuantityInput{
		ActorID:   actor,
		SaleID:    s.ID,
		ProductID: "rice",
		Quantity:  dec("2"),
	})
	require.NoError(t, err)

	requireDec(t, "300", res.BalanceDelta.Get(domain.CurrencyUZS))
	got := e.mem.Store.Source(s.ID)
	requireDec(t, "30", got.TotalsFor(domain.CurrencyUZS).Discount)
	requireDec(t, "570", got.TotalsFor(domain.CurrencyUZS).GrandTotal)
	assert.Equal(t, domain.ReturnStateNone, got.ReturnState)
}

func TestSaleUseCase_AdjustItemQuantityErrors(t *testing.T) {
	e := newEngine(t)
	e.customer(t, "cust-1")
	s := e.sale(t, "cust-1", "100", 1)

	tests := []struct {
		name    string
		input   usecase.AdjustItemQuantityInput
		wantErr error
	}{
		{
			name:    "unknown product",
			input:   usecase.AdjustItemQuantityInput{ActorID: actor, SaleID: s.ID, ProductID: "salt", Quantity: dec("1")},
			wantErr: domain.ErrItemNotInSource,
		},
		{
			name:    "same quantity",
			input:   usecase.AdjustItemQuantityInput{ActorID: actor, SaleID: s.ID, ProductID: "p-1", Quantity: dec("1")},
			wantErr: domain.ErrQuantityUnchanged,
		},
		{
			name:    "negative quantity",
			input:   usecase.AdjustItemQuantityInput{ActorID: actor, SaleID: s.ID, ProductID: "p-1", Quantity: dec("-1")},
			wantErr: domain.ErrInvalidQuantity,
		},
		{
			name:    "missing sale",
			input:   usecase.AdjustItemQuantityInput{ActorID: actor, SaleID: "nope", ProductID: "p-1", Quantity: dec("2")},
			wantErr: domain.ErrSourceNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.sales.AdjustItemQuantity(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	requireDec(t, "100", e.balance(t, "cust-1", domain.CurrencyUZS))
}

func TestSaleUseCase_GetSaleRejectsPurchases(t *testing.T) {
	e := newEngine(t)
	e.supplier(t, "sup-1")

	p, err := e.purchases.CreatePurchase(context.Background(), usecase.CreatePurchaseInput{
		ActorID:    actor,
		SupplierID: "sup-1",
		Items:      []domain.LineItem{uzsItem("flour", "1", "10")},
	})
	require.NoError(t, err)

	_, err = e.sales.GetSale(context.Background(), p.ID)
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)

	_, err = e.sales.CancelSale(context.Background(), actor, p.ID, "")
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestSaleUseCase_ListOpenSales(t *testing.T) {
	e := newEngine(t)
	e.customer(t, "cust-1")
	e.customer(t, "cust-2")
	paid := e.sale(t, "cust-1", "40", 1)
	open := e.sale(t, "cust-2", "70", 2)
	e.pay(t, "cust-1", "40")

	list, err := e.sales.ListOpenSales(context.Background(), 0, 0)
	require.NoError(t, err)

	require.Len(t, list, 1)
	assert.Equal(t, open.ID, list[0].ID)
	assert.NotEqual(t, paid.ID, list[0].ID)

	byCustomer, err := e.sales.ListSalesByCustomer(context.Background(), "cust-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, byCustomer, 1)
	assert.Equal(t, domain.PaymentStatePaid, byCustomer[0].PaymentState())
}

func TestListsByEntityKeepTheirKind(t *testing.T) {
	e := newEngine(t)
	e.customer(t, "cust-1")
	e.supplier(t, "sup-1")
	ctx := context.Background()

	s := e.sale(t, "cust-1", "40", 1)
	p, err := e.purchases.CreatePurchase(ctx, usecase.CreatePurchaseInput{
		ActorID:    actor,
		SupplierID: "sup-1",
		Items:      []domain.LineItem{uzsItem("flour", "1", "10")},
	})
	require.NoError(t, err)

	// Records of the other kind on the same entities.
	e.mem.Store.PutSource(&domain.DebtSource{ID: "stray-buy", Kind: domain.SourceKindPurchase, EntityID: "cust-1", Status: domain.SourceStatusCompleted})
	e.mem.Store.PutSource(&domain.DebtSource{ID: "stray-sale", Kind: domain.SourceKindSale, EntityID: "sup-1", Status: domain.SourceStatusCompleted})

	sales, err := e.sales.ListSalesByCustomer(ctx, "cust-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, s.ID, sales[0].ID)

	purchases, err := e.purchases.ListPurchasesBySupplier(ctx, "sup-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, p.ID, purchases[0].ID)
}
