package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/tradeledger/internal/domain"
	"github.com/iho/tradeledger/internal/usecase"
)

func TestCashMovement_CreateAllocatesAndLinksEntries(t *testing.T) {
	e := newEngine(t)
	e.customer(t, "cust-1")
	s := e.sale(t, "cust-1", "100", 1)

	res := e.pay(t, "cust-1", "60")

	requireDec(t, "40", res.NewBalance)
	require.Len(t, res.Allocations, 1)
	assert.Equal(t, s.ID, res.Allocations[0].SourceID)
	assert.Equal(t, domain.PaymentMethodCash, res.Movement.Method)

	stored := e.mem.Store.Movement(res.Movement.ID)
	require.NotNil(t, stored)
	assert.Equal(t, domain.CashMovementActive, stored.Status)

	linked, err := e.mem.Entries.ListByReference(context.Background(), nil, "cust-1", res.Movement.ID)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, domain.DirectionPayment, linked[0].Direction)
}

func TestCashMovement_PrepaymentWithoutDebt(t *testing.T) {
	e := newEngine(t)
	e.customer(t, "cust-1")

	res, err := e.cash.Create(context.Background(), usecase.CreateCashMovementInput{
		ActorID:    actor,
		EntityID:   "cust-1",
		Currency:   domain.CurrencyUSD,
		Amount:     dec("25"),
		Method:     domain.PaymentMethodCard,
		Prepayment: true,
	})
	require.NoError(t, err)

	requireDec(t, "-25", res.NewBalance)
	requireDec(t, "25", res.Unallocated)
	assert.Empty(t, res.Allocations)
}

func TestCashMovement_EditReappliesAmount(t *testing.T) {
	e := newEngine(t)
	e.customer(t, "cust-1")
	s := e.sale(t, "cust-1", "100", 1)
	created := e.pay(t, "cust-1", "60")

	res, err := e.cash.Edit(context.Background(), usecase.EditCashMovementInput{
		ActorID:  actor,
		ID:       created.Movement.ID,
		Currency: domain.CurrencyUZS,
		Amount:   dec("30"),
	})
	require.NoError(t, err)

	requireDec(t, "70", res.NewBalance)
	requireDec(t, "30", e.mem.Store.Source(s.ID).Paid(domain.CurrencyUZS))
	requireDec(t, "30", e.mem.Store.Movement(created.Movement.ID).Amount)

	linked, err := e.mem.Entries.ListByReference(context.Background(), nil, "cust-1", created.Movement.ID)
	require.NoError(t, err)
	require.Len(t, linked, 3)
	assert.Equal(t, domain.DirectionReversal, linked[1].Direction)
	assert.Equal(t, linked[0].ID, linked[1].ReversesEntryID)
	assert.Equal(t, domain.DirectionPayment, linked[2].Direction)
}

func TestCashMovement_EditCannotMoveEntity(t *testing.T) {
	e := newEngine(t)
	e.customer(t, "cust-1")
	e.customer(t, "cust-2")
	created := e.pay(t, "cust-1", "10")

	_, err := e.cash.Edit(context.Background(), usecase.EditCashMovementInput{
		ActorID:  actor,
		ID:       created.Movement.ID,
		EntityID: "cust-2",
		Currency: domain.CurrencyUZS,
		Amount:   dec("10"),
	})
	assert.ErrorIs(t, err, domain.ErrEntityChangeOnEdit)
}

func TestCashMovement_DeleteRollsBackNewestFirst(t *testing.T) {
	e := newEngine(t)
	e.customer(t, "cust-1")
	s1 := e.sale(t, "cust-1", "100", 1)
	s2 := e.sale(t, "cust-1", "100", 2)

	first := e.pay(t, "cust-1", "100")
	e.pay(t, "cust-1", "50")
	requireDec(t, "50", e.balance(t, "cust-1", domain.CurrencyUZS))

	res, err := e.cash.Delete(context.Background(), actor, first.Movement.ID)
	require.NoError(t, err)
	assert.False(t, res.AlreadyReversed)
	requireDec(t, "150", res.NewBalance)

	got1 := e.mem.Store.Source(s1.ID)
	got2 := e.mem.Store.Source(s2.ID)
	requireDec(t, "50", got1.Paid(domain.CurrencyUZS))
	requireDec(t, "50", got1.Debt(domain.CurrencyUZS))
	requireDec(t, "0", got2.Paid(domain.CurrencyUZS))
	requireDec(t, "100", got2.Debt(domain.CurrencyUZS))

	assert.Equal(t, domain.CashMovementDeleted, e.mem.Store.Movement(first.Movement.ID).Status)
}

func TestCashMovement_DeleteTwiceIsNoOp(t *testing.T) {
	e := newEngine(t)
	e.customer(t, "cust-1")
	e.sale(t, "cust-1", "100", 1)
	created := e.pay(t, "cust-1", "40")

	_, err := e.cash.Delete(context.Background(), actor, created.Movement.ID)
	require.NoError(t, err)
	count := len(e.mem.Store.Entries("cust-1"))

	res, err := e.cash.Delete(context.Background(), actor, created.Movement.ID)
	require.NoError(t, err)
	assert.True(t, res.AlreadyReversed)
	assert.Len(t, e.mem.Store.Entries("cust-1"), count)
	requireDec(t, "100", e.balance(t, "cust-1", domain.CurrencyUZS))

	_, err = e.cash.Edit(context.Background(), usecase.EditCashMovementInput{
		ActorID:  actor,
		ID:       created.Movement.ID,
		Currency: domain.CurrencyUZS,
		Amount:   dec("10"),
	})
	assert.ErrorIs(t, err, domain.ErrCashMovementNotFound)
}

func TestCashMovement_ReverseLegacyPayment(t *testing.T) {
	e := newEngine(t)
	e.mem.Store.PutEntity(&domain.Entity{
		ID:             "cust-1",
		Kind:           domain.EntityKindCustomer,
		Balance:        domain.Amounts{domain.CurrencyUZS: dec("-20")},
		OpeningBalance: domain.NewAmounts(),
		Active:         true,
	})
	morning := date(5).Add(-time.Hour)
	evening := date(5).Add(5 * time.Hour)
	for id, at := range map[string]time.Time{"legacy-1": morning, "legacy-2": evening} {
		e.mem.Store.PutEntry(&domain.LedgerEntry{
			ID:        id,
			EntityID:  "cust-1",
			Currency:  domain.CurrencyUZS,
			Amount:    dec("10"),
			Direction: domain.DirectionPayment,
			EventAt:   at,
			CreatedAt: at,
		})
	}
	ctx := context.Background()

	res, err := e.cash.ReverseLegacyPayment(ctx, usecase.ReverseLegacyInput{
		ActorID:  actor,
		EntityID: "cust-1",
		Currency: domain.CurrencyUZS,
		Amount:   dec("10"),
		Day:      date(5),
	})
	require.NoError(t, err)
	assert.True(t, res.Ambiguous)
	assert.Equal(t, 2, res.Candidates)
	assert.Equal(t, "legacy-2", res.ReversedEntryID)
	requireDec(t, "-10", res.NewBalance)

	_, err = e.cash.ReverseLegacyPayment(ctx, usecase.ReverseLegacyInput{ActorID: actor, EntityID: "cust-1", EntryID: "legacy-2"})
	assert.ErrorIs(t, err, domain.ErrAlreadyReversed)

	res, err = e.cash.ReverseLegacyPayment(ctx, usecase.ReverseLegacyInput{ActorID: actor, EntityID: "cust-1", EntryID: "legacy-1"})
	require.NoError(t, err)
	assert.False(t, res.Ambiguous)
	requireDec(t, "0", res.NewBalance)

	_, err = e.cash.ReverseLegacyPayment(ctx, usecase.ReverseLegacyInput{
		ActorID:  actor,
		EntityID: "cust-1",
		Currency: domain.CurrencyUZS,
		Amount:   dec("10"),
		Day:      date(5),
	})
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestCashMovement_ReverseLegacyRejectsLinkedEntries(t *testing.T) {
	e := newEngine(t)
	e.customer(t, "cust-1")
	s := e.sale(t, "cust-1", "100", 1)
	ctx := context.Background()

	var accrual *domain.LedgerEntry
	for _, en := range e.mem.Store.Entries("cust-1") {
		if en.ReferenceID == s.ID && en.Direction == domain.DirectionDebt {
			accrual = en
		}
	}
	require.NotNil(t, accrual)

	_, err := e.cash.ReverseLegacyPayment(ctx, usecase.ReverseLegacyInput{ActorID: actor, EntityID: "cust-1", EntryID: accrual.ID})
	assert.ErrorIs(t, err, domain.ErrUnsupportedReversal)
	requireDec(t, "100", e.balance(t, "cust-1", domain.CurrencyUZS))
	requireDec(t, "100", e.mem.Store.Source(s.ID).Debt(domain.CurrencyUZS))

	m := e.pay(t, "cust-1", "40")
	linked, err := e.mem.Entries.ListByReference(ctx, nil, "cust-1", m.Movement.ID)
	require.NoError(t, err)
	require.Len(t, linked, 1)

	_, err = e.cash.ReverseLegacyPayment(ctx, usecase.ReverseLegacyInput{ActorID: actor, EntityID: "cust-1", EntryID: linked[0].ID})
	assert.ErrorIs(t, err, domain.ErrUnsupportedReversal)

	_, err = e.cash.ReverseLegacyPayment(ctx, usecase.ReverseLegacyInput{
		ActorID:  actor,
		EntityID: "cust-1",
		Currency: domain.CurrencyUZS,
		Amount:   dec("40"),
		Day:      linked[0].EventAt,
	})
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	requireDec(t, "60", e.balance(t, "cust-1", domain.CurrencyUZS))
	res, err := e.cash.Delete(ctx, actor, m.Movement.ID)
	require.NoError(t, err)
	requireDec(t, "100", res.NewBalance)

	result, err := e.recon.ReconcileEntity(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, result.IsReconciled)
}

func TestCashMovement_ReverseManualPayment(t *testing.T) {
	e := newEngine(t)
	e.customer(t, "cust-1")
	e.sale(t, "cust-1", "100", 1)
	ctx := context.Background()

	paid, err := e.ledger.ApplyPayment(ctx, usecase.ApplyPaymentInput{
		ActorID:   actor,
		EntityID:  "cust-1",
		Currency:  domain.CurrencyUZS,
		Amount:    dec("30"),
		Direction: domain.DirectionPayment,
	})
	require.NoError(t, err)
	assert.Equal(t, paid.EntryID, paid.ReferenceID)

	res, err := e.cash.ReverseLegacyPayment(ctx, usecase.ReverseLegacyInput{ActorID: actor, EntityID: "cust-1", EntryID: paid.EntryID})
	require.NoError(t, err)
	requireDec(t, "100", res.NewBalance)

	_, err = e.cash.ReverseLegacyPayment(ctx, usecase.ReverseLegacyInput{ActorID: actor, EntityID: "cust-1", EntryID: res.ReversalEntryID})
	assert.ErrorIs(t, err, domain.ErrUnsupportedReversal)
}
