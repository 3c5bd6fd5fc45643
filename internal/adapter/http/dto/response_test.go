package dto

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/tradeledger/internal/domain"
	"github.com/iho/tradeledger/internal/usecase"
)

func TestEntityFromDomain_FillsCurrencies(t *testing.T) {
	now := time.Now()
	resp := EntityFromDomain(&domain.Entity{
		ID:        "cust-1",
		Kind:      domain.EntityKindCustomer,
		Name:      "Bakhrom",
		Balance:   domain.Amounts{domain.CurrencyUZS: decimal.NewFromInt(100)},
		Active:    true,
		CreatedAt: now,
	})

	if len(resp.Balance) != len(domain.Currencies) {
		t.Fatalf("expected every currency in balance, got %v", resp.Balance)
	}

	body, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(body), `"USD":"0"`) || !strings.Contains(string(body), `"UZS":"100"`) {
		t.Fatalf("unexpected balance encoding: %s", body)
	}
}

func TestDebtSourceFromDomain(t *testing.T) {
	src := &domain.DebtSource{
		ID:       "sale-1",
		Kind:     domain.SourceKindSale,
		EntityID: "cust-1",
		Status:   domain.SourceStatusCompleted,
		Items: []domain.LineItem{
			{ProductID: "rice", Currency: domain.CurrencyUZS, Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(50), Subtotal: decimal.NewFromInt(100)},
		},
		Totals: map[domain.Currency]*domain.CurrencyTotals{
			domain.CurrencyUZS: {
				Subtotal:   decimal.NewFromInt(100),
				GrandTotal: decimal.NewFromInt(100),
				Paid:       decimal.NewFromInt(40),
				Debt:       decimal.NewFromInt(60),
			},
		},
	}

	resp := DebtSourceFromDomain(src)

	if resp.Kind != "sale" || resp.Status != "COMPLETED" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.PaymentState != string(domain.PaymentStatePartial) {
		t.Fatalf("expected partial payment state, got %s", resp.PaymentState)
	}
	if !resp.Totals["UZS"].Debt.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected debt 60, got %s", resp.Totals["UZS"].Debt)
	}
	if len(resp.Items) != 1 || resp.Items[0].Currency != "UZS" {
		t.Fatalf("unexpected items %+v", resp.Items)
	}
}

func TestCashMovementResultFromUseCase(t *testing.T) {
	resp := CashMovementResultFromUseCase(&usecase.CashMovementResult{
		Movement:   &domain.CashMovement{ID: "cm-1", Currency: domain.CurrencyUSD, Amount: decimal.NewFromInt(5)},
		NewBalance: decimal.NewFromInt(-5),
		Allocations: []domain.Allocation{
			{SourceID: "sale-1", Amount: decimal.NewFromInt(5)},
		},
	})

	if resp.Movement.ID != "cm-1" || resp.Movement.Currency != "USD" {
		t.Fatalf("unexpected movement %+v", resp.Movement)
	}
	if len(resp.Allocations) != 1 || resp.Allocations[0].SourceID != "sale-1" {
		t.Fatalf("unexpected allocations %+v", resp.Allocations)
	}

	deleted := CashMovementResultFromUseCase(&usecase.CashMovementResult{AlreadyReversed: true})
	if deleted.Movement != nil || !deleted.AlreadyReversed {
		t.Fatalf("unexpected response %+v", deleted)
	}
}
