package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EntityKind distinguishes the two sides of the trade.
type EntityKind string

const (
	EntityKindCustomer EntityKind = "customer"
	EntityKindSupplier EntityKind = "supplier"
)

// ParseEntityKind validates an entity kind.
func ParseEntityKind(s string) (EntityKind, error) {
	k := EntityKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case EntityKindCustomer, EntityKindSupplier:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEntityKind, s)
}

// SourceKind returns the kind of debt source this entity accrues.
func (k EntityKind) SourceKind() SourceKind {
	if k == EntityKindSupplier {
		return SourceKindPurchase
	}
	return SourceKindSale
}

// Entity is a customer or supplier holding a balance per currency.
// A positive balance means the entity owes the business.
type Entity struct {
	ID             string
	Kind           EntityKind
	Name           string
	Phone          string
	Balance        Amounts
	OpeningBalance Amounts
	Active         bool
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ApplyDelta adds delta to the balance of currency c and returns the new value.
func (e *Entity) ApplyDelta(c Currency, delta decimal.Decimal) decimal.Decimal {
	if e.Balance == nil {
		e.Balance = NewAmounts()
	}
	e.Balance.Add(c, delta)
	return e.Balance.Get(c)
}

// CanDeactivate reports whether the entity has no open balance left.
func (e *Entity) CanDeactivate() error {
	if !e.Balance.IsZero() {
		return fmt.Errorf("%w: balance is %s UZS, %s USD", ErrNonZeroBalance,
			e.Balance.Get(CurrencyUZS).StringFixed(MoneyScale),
			e.Balance.Get(CurrencyUSD).StringFixed(MoneyScale))
	}
	return nil
}
