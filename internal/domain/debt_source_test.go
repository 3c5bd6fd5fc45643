package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

func TestComputeTotals(t *testing.T) {
	t.Parallel()

	items := []LineItem{
		{ProductID: "rice", Currency: CurrencyUZS, Quantity: dec("3"), UnitPrice: dec("20000")},
		{ProductID: "oil", Currency: CurrencyUSD, Quantity: dec("2"), UnitPrice: dec("15.50")},
	}

	totals := ComputeTotals(items, decimal.Zero)

	if !items[0].Subtotal.Equal(dec("60000")) {
		t.Fatalf("expected item subtotal 60000, got %s", items[0].Subtotal)
	}
	uzs := totals[CurrencyUZS]
	if !uzs.GrandTotal.Equal(dec("60000")) || !uzs.Debt.Equal(dec("60000")) || !uzs.Paid.IsZero() {
		t.Fatalf("unexpected UZS totals %+v", uzs)
	}
	usd := totals[CurrencyUSD]
	if !usd.GrandTotal.Equal(dec("31")) {
		t.Fatalf("expected USD grand 31, got %s", usd.GrandTotal)
	}
}

func TestComputeTotalsDiscountNeverNegative(t *testing.T) {
	t.Parallel()

	items := []LineItem{{ProductID: "p", Currency: CurrencyUSD, Quantity: dec("1"), UnitPrice: dec("100")}}
	totals := ComputeTotals(items, dec("10"))

	if !totals[CurrencyUSD].Discount.Equal(dec("10")) {
		t.Fatalf("expected USD discount 10, got %s", totals[CurrencyUSD].Discount)
	}
	if !totals[CurrencyUZS].Discount.IsZero() || !totals[CurrencyUZS].GrandTotal.IsZero() {
		t.Fatalf("expected zero UZS totals, got %+v", totals[CurrencyUZS])
	}

	// discount larger than subtotal after a quantity cut clamps at zero
	items[0].Quantity = dec("0.05")
	recomputed := RecomputeTotals(items, totals)
	if !recomputed[CurrencyUSD].GrandTotal.IsZero() {
		t.Fatalf("expected clamped grand total 0, got %s", recomputed[CurrencyUSD].GrandTotal)
	}
}

func TestCheckInvariants(t *testing.T) {
	t.Parallel()

	s := &DebtSource{
		ID: "S-1",
		Totals: map[Currency]*CurrencyTotals{
			CurrencyUZS: {GrandTotal: dec("100"), Paid: dec("-10"), Debt: dec("110")},
			CurrencyUSD: {GrandTotal: dec("10"), Paid: dec("5"), Debt: dec("4")},
		},
	}

	err := s.CheckInvariants()
	if err == nil {
		t.Fatal("expected violations")
	}
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("expected 2 violations, got %d: %v", got, err)
	}

	s.Totals[CurrencyUZS].Paid = dec("10")
	s.Totals[CurrencyUZS].Debt = dec("90")
	s.Totals[CurrencyUSD].Debt = dec("5")
	if err := s.CheckInvariants(); err != nil {
		t.Fatalf("expected no violations, got %v", err)
	}
}

func TestPaymentState(t *testing.T) {
	t.Parallel()

	s := source("P1", 1, "100", "0")
	if s.PaymentState() != PaymentStateDebt {
		t.Fatalf("expected DEBT, got %s", s.PaymentState())
	}

	s.Totals[CurrencyUZS].Paid = dec("40")
	s.Totals[CurrencyUZS].Debt = dec("60")
	if s.PaymentState() != PaymentStatePartial {
		t.Fatalf("expected PARTIAL, got %s", s.PaymentState())
	}
	if !s.HasPayments() {
		t.Fatal("expected HasPayments")
	}

	s.Totals[CurrencyUZS].Paid = dec("100")
	s.Totals[CurrencyUZS].Debt = decimal.Zero
	if s.PaymentState() != PaymentStatePaid {
		t.Fatalf("expected PAID, got %s", s.PaymentState())
	}
}

func TestSourceKindEntityKind(t *testing.T) {
	t.Parallel()

	if SourceKindPurchase.EntityKind() != EntityKindSupplier {
		t.Fatal("purchase belongs to supplier")
	}
	if EntityKindCustomer.SourceKind() != SourceKindSale {
		t.Fatal("customer accrues sales")
	}
}
