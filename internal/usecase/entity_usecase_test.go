package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/tradeledger/internal/domain"
	"github.com/iho/tradeledger/internal/usecase"
	"github.com/iho/tradeledger/internal/usecase/mocks"
)

func TestEntityUseCase_CreateEntity(t *testing.T) {
	e := newEngine(t)

	ent, err := e.entities.CreateEntity(context.Background(), usecase.CreateEntityInput{
		ActorID:        actor,
		Kind:           "Customer",
		Name:           "  Bakhrom  ",
		OpeningBalance: domain.Amounts{domain.CurrencyUZS: dec("1500.004")},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.EntityKindCustomer, ent.Kind)
	assert.Equal(t, "Bakhrom", ent.Name)
	assert.True(t, ent.Active)
	requireDec(t, "1500", ent.Balance.Get(domain.CurrencyUZS))
	requireDec(t, "1500", ent.OpeningBalance.Get(domain.CurrencyUZS))

	stored := e.mem.Store.Entity(ent.ID)
	require.NotNil(t, stored)
	assert.True(t, stored.Balance.Equal(stored.OpeningBalance))

	events := e.mem.Store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeEntityCreated, events[0].EventType)
}

func TestEntityUseCase_CreateEntityValidation(t *testing.T) {
	e := newEngine(t)

	tests := []struct {
		name    string
		input   usecase.CreateEntityInput
		wantErr error
	}{
		{name: "no actor", input: usecase.CreateEntityInput{Kind: domain.EntityKindCustomer, Name: "A"}, wantErr: domain.ErrMissingActor},
		{name: "bad kind", input: usecase.CreateEntityInput{ActorID: actor, Kind: "partner", Name: "A"}, wantErr: domain.ErrInvalidEntityKind},
		{name: "empty name", input: usecase.CreateEntityInput{ActorID: actor, Kind: domain.EntityKindSupplier, Name: " "}, wantErr: domain.ErrInvalidName},
		{
			name: "bad opening currency",
			input: usecase.CreateEntityInput{
				ActorID:        actor,
				Kind:           domain.EntityKindSupplier,
				Name:           "A",
				OpeningBalance: domain.Amounts{"RUB": decimal.NewFromInt(1)},
			},
			wantErr: domain.ErrInvalidCurrency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.entities.CreateEntity(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEntityUseCase_DeactivateEntity(t *testing.T) {
	e := newEngine(t)
	e.customer(t, "cust-1")
	s := e.sale(t, "cust-1", "100", 1)
	ctx := context.Background()

	_, err := e.entities.DeactivateEntity(ctx, actor, "cust-1")
	assert.ErrorIs(t, err, domain.ErrNonZeroBalance)
	assert.True(t, e.mem.Store.Entity("cust-1").Active)

	_, err = e.sales.DeleteSale(ctx, usecase.DeleteSaleInput{ActorID: actor, SaleID: s.ID})
	require.NoError(t, err)

	ent, err := e.entities.DeactivateEntity(ctx, actor, "cust-1")
	require.NoError(t, err)
	assert.False(t, ent.Active)
	assert.False(t, e.mem.Store.Entity("cust-1").Active)

	again, err := e.entities.DeactivateEntity(ctx, actor, "cust-1")
	require.NoError(t, err)
	assert.False(t, again.Active)

	_, err = e.ledger.ApplyPayment(ctx, usecase.ApplyPaymentInput{
		ActorID:   actor,
		EntityID:  "cust-1",
		Currency:  domain.CurrencyUZS,
		Amount:    dec("1"),
		Direction: domain.DirectionPayment,
	})
	assert.ErrorIs(t, err, domain.ErrEntityInactive)
}

func TestEntityUseCase_UpdateEntity(t *testing.T) {
	e := newEngine(t)
	e.customer(t, "cust-1")
	e.sale(t, "cust-1", "250", 1)
	e.pay(t, "cust-1", "100")
	ctx := context.Background()
	entriesBefore := len(e.mem.Store.Entries("cust-1"))

	name := "  Bakhrom aka  "
	phone := "+998 90 123 45 67"
	ent, err := e.entities.UpdateEntity(ctx, usecase.UpdateEntityInput{ActorID: actor, ID: "cust-1", Name: &name, Phone: &phone})
	require.NoError(t, err)

	assert.Equal(t, "Bakhrom aka", ent.Name)
	stored := e.mem.Store.Entity("cust-1")
	assert.Equal(t, "Bakhrom aka", stored.Name)
	assert.Equal(t, phone, stored.Phone)
	assert.True(t, stored.Active)
	requireDec(t, "150", stored.Balance.Get(domain.CurrencyUZS))
	assert.Len(t, e.mem.Store.Entries("cust-1"), entriesBefore)

	var updated int
	for _, ev := range e.mem.Store.Events() {
		if ev.EventType == domain.EventTypeEntityUpdated {
			updated++
		}
	}
	assert.Equal(t, 1, updated)

	var audited bool
	for _, a := range e.mem.Store.Audits() {
		audited = audited || a.Action == string(domain.AuditActionEntityUpdate)
	}
	assert.True(t, audited)

	// Same values again change nothing.
	_, err = e.entities.UpdateEntity(ctx, usecase.UpdateEntityInput{ActorID: actor, ID: "cust-1", Name: &name})
	require.NoError(t, err)
	updated = 0
	for _, ev := range e.mem.Store.Events() {
		if ev.EventType == domain.EventTypeEntityUpdated {
			updated++
		}
	}
	assert.Equal(t, 1, updated)

	result, err := e.recon.ReconcileEntity(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, result.IsReconciled)
}

func TestEntityUseCase_UpdateEntityValidation(t *testing.T) {
	e := newEngine(t)
	e.customer(t, "cust-1")
	empty := "   "
	name := "Dilnoza"

	tests := []struct {
		name    string
		input   usecase.UpdateEntityInput
		wantErr error
	}{
		{name: "nothing to change", input: usecase.UpdateEntityInput{ActorID: actor, ID: "cust-1"}, wantErr: domain.ErrValidation},
		{name: "blank name", input: usecase.UpdateEntityInput{ActorID: actor, ID: "cust-1", Name: &empty}, wantErr: domain.ErrInvalidName},
		{name: "missing actor", input: usecase.UpdateEntityInput{ID: "cust-1", Name: &name}, wantErr: domain.ErrMissingActor},
		{name: "unknown entity", input: usecase.UpdateEntityInput{ActorID: actor, ID: "ghost", Name: &name}, wantErr: domain.ErrEntityNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.entities.UpdateEntity(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Equal(t, "Customer cust-1", e.mem.Store.Entity("cust-1").Name)
}

func TestEntityUseCase_BalanceAt(t *testing.T) {
	e := newEngine(t)
	e.customer(t, "cust-1")
	e.sale(t, "cust-1", "100", 1)
	e.pay(t, "cust-1", "60")

	before, err := e.entities.BalanceAt(context.Background(), "cust-1", date(2))
	require.NoError(t, err)
	requireDec(t, "100", before.Get(domain.CurrencyUZS))

	now, err := e.entities.BalanceAt(context.Background(), "cust-1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	requireDec(t, "40", now.Get(domain.CurrencyUZS))
	assert.True(t, now.Equal(e.mem.Store.Entity("cust-1").Balance))
}

func TestEntityUseCase_Statement(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	entityRepo := mocks.NewMockEntityRepository(ctrl)
	entryRepo := mocks.NewMockEntryRepository(ctrl)

	entityRepo.EXPECT().GetByID(gomock.Any(), "cust-1").Return(&domain.Entity{ID: "cust-1"}, nil)
	entryRepo.EXPECT().ListByEntity(gomock.Any(), "cust-1", 100, 0).Return([]*domain.LedgerEntry{
		{ID: "e2", EntityID: "cust-1", Amount: decimal.NewFromInt(40), Direction: domain.DirectionPayment},
		{ID: "e1", EntityID: "cust-1", Amount: decimal.NewFromInt(100), Direction: domain.DirectionDebt},
	}, nil)

	uc := usecase.NewEntityUseCase(nil, entityRepo, entryRepo)

	entries, err := uc.Statement(context.Background(), usecase.StatementInput{EntityID: "cust-1", Limit: 500, Offset: -3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(entries))
	}
}

func TestEntityUseCase_StatementUnknownEntity(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	entityRepo := mocks.NewMockEntityRepository(ctrl)
	entryRepo := mocks.NewMockEntryRepository(ctrl)

	entityRepo.EXPECT().GetByID(gomock.Any(), "ghost").Return(nil, domain.ErrEntityNotFound)

	uc := usecase.NewEntityUseCase(nil, entityRepo, entryRepo)

	_, err := uc.Statement(context.Background(), usecase.StatementInput{EntityID: "ghost"})
	if !errorsIsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func errorsIsNotFound(err error) bool {
	return domain.KindOf(err) == domain.KindNotFound
}
