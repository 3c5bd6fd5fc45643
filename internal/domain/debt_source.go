package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// SourceKind is the type of record that carries debt.
type SourceKind string

const (
	SourceKindSale     SourceKind = "sale"
	SourceKindPurchase SourceKind = "purchase"
)

// EntityKind returns the entity side a source kind belongs to.
func (k SourceKind) EntityKind() EntityKind {
	if k == SourceKindPurchase {
		return EntityKindSupplier
	}
	return EntityKindCustomer
}

// SourceStatus is the lifecycle state of a debt source.
type SourceStatus string

const (
	SourceStatusCompleted SourceStatus = "COMPLETED"
	SourceStatusCanceled  SourceStatus = "CANCELED"
	SourceStatusDeleted   SourceStatus = "DELETED"
)

// PaymentState is the derived settlement state of a purchase batch.
type PaymentState string

const (
	PaymentStateDebt    PaymentState = "DEBT"
	PaymentStatePartial PaymentState = "PARTIAL"
	PaymentStatePaid    PaymentState = "PAID"
)

// ReturnState records whether line items were reduced after the sale.
type ReturnState string

const (
	ReturnStateNone    ReturnState = "NONE"
	ReturnStatePartial ReturnState = "PARTIAL_RETURN"
	ReturnStateFull    ReturnState = "FULL_RETURN"
)

// LineItem is one product line of a sale or purchase.
type LineItem struct {
	ProductID string
	Name      string
	Currency  Currency
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// Recompute sets Subtotal from quantity and unit price.
func (li *LineItem) Recompute() {
	li.Subtotal = RoundMoney(li.Quantity.Mul(li.UnitPrice))
}

// CurrencyTotals is the paid/debt split of one currency on a record.
type CurrencyTotals struct {
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	GrandTotal decimal.Decimal
	Paid       decimal.Decimal
	Debt       decimal.Decimal
}

// DebtSource is a sale (customer side) or purchase batch (supplier side).
type DebtSource struct {
	ID           string
	Kind         SourceKind
	EntityID     string
	Number       string
	BusinessDate time.Time
	Status       SourceStatus
	ReturnState  ReturnState
	Items        []LineItem
	Discount     decimal.Decimal
	Totals       map[Currency]*CurrencyTotals
	Note         string
	CreatedBy    string
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TotalsFor returns the totals of currency c, creating zero totals if absent.
func (s *DebtSource) TotalsFor(c Currency) *CurrencyTotals {
	if s.Totals == nil {
		s.Totals = make(map[Currency]*CurrencyTotals, len(Currencies))
	}
	t, ok := s.Totals[c]
	if !ok {
		t = &CurrencyTotals{}
		s.Totals[c] = t
	}
	return t
}

// Debt returns the open debt in currency c.
func (s *DebtSource) Debt(c Currency) decimal.Decimal {
	if t, ok := s.Totals[c]; ok {
		return t.Debt
	}
	return decimal.Zero
}

// Paid returns the amount paid in currency c.
func (s *DebtSource) Paid(c Currency) decimal.Decimal {
	if t, ok := s.Totals[c]; ok {
		return t.Paid
	}
	return decimal.Zero
}

// IsLive reports whether the record still takes part in allocation.
func (s *DebtSource) IsLive() bool {
	return s.Status == SourceStatusCompleted
}

// HasPayments reports whether any currency carries a paid amount.
func (s *DebtSource) HasPayments() bool {
	for _, t := range s.Totals {
		if t.Paid.IsPositive() {
			return true
		}
	}
	return false
}

// PaymentState derives the settlement state across currencies.
func (s *DebtSource) PaymentState() PaymentState {
	var paid, debt bool
	for _, t := range s.Totals {
		if t.Paid.IsPositive() {
			paid = true
		}
		if t.Debt.IsPositive() {
			debt = true
		}
	}
	switch {
	case debt && paid:
		return PaymentStatePartial
	case debt:
		return PaymentStateDebt
	default:
		return PaymentStatePaid
	}
}

// CheckInvariants verifies grand = paid + debt with both parts non-negative
// for every currency and returns all violations combined.
func (s *DebtSource) CheckInvariants() error {
	var err error
	for _, c := range Currencies {
		t, ok := s.Totals[c]
		if !ok {
			continue
		}
		if t.Paid.IsNegative() {
			err = multierr.Append(err, fmt.Errorf("%s %s: paid %s is negative", s.ID, c, t.Paid))
		}
		if t.Debt.IsNegative() {
			err = multierr.Append(err, fmt.Errorf("%s %s: debt %s is negative", s.ID, c, t.Debt))
		}
		if !t.GrandTotal.Equal(t.Paid.Add(t.Debt)) {
			err = multierr.Append(err, fmt.Errorf("%s %s: grand total %s != paid %s + debt %s",
				s.ID, c, t.GrandTotal, t.Paid, t.Debt))
		}
	}
	return err
}

// ComputeTotals builds per-currency totals from line items and a blended
// discount. Grand totals never go below zero and start fully unpaid.
func ComputeTotals(items []LineItem, discount decimal.Decimal) map[Currency]*CurrencyTotals {
	subtotals := NewAmounts()
	for i := range items {
		items[i].Recompute()
		subtotals.Add(items[i].Currency, items[i].Subtotal)
	}

	discounts := ProrateDiscount(discount, subtotals)
	return buildTotals(subtotals, discounts)
}

// RecomputeTotals rebuilds subtotals from the current items while keeping
// the discount already stored per currency. Paid amounts are left as they
// are; the returned map carries the new grand totals only.
func RecomputeTotals(items []LineItem, current map[Currency]*CurrencyTotals) map[Currency]*CurrencyTotals {
	subtotals := NewAmounts()
	for i := range items {
		items[i].Recompute()
		subtotals.Add(items[i].Currency, items[i].Subtotal)
	}

	discounts := NewAmounts()
	for c, t := range current {
		discounts[c] = t.Discount
	}
	return buildTotals(subtotals, discounts)
}

func buildTotals(subtotals, discounts Amounts) map[Currency]*CurrencyTotals {
	out := make(map[Currency]*CurrencyTotals, len(Currencies))
	for _, c := range Currencies {
		sub := RoundMoney(subtotals.Get(c))
		disc := discounts.Get(c)
		grand := RoundMoney(sub.Sub(disc))
		if grand.IsNegative() {
			grand = decimal.Zero
		}
		out[c] = &CurrencyTotals{
			Subtotal:   sub,
			Discount:   disc,
			GrandTotal: grand,
			Debt:       grand,
			Paid:       decimal.Zero,
		}
	}
	return out
}
