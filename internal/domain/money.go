package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits kept on every stored amount.
const MoneyScale = 2

// Currency is one of the two currencies the ledger trades in.
type Currency string

const (
	CurrencyUZS Currency = "UZS"
	CurrencyUSD Currency = "USD"
)

// Currencies lists every supported currency in a stable order.
var Currencies = []Currency{CurrencyUZS, CurrencyUSD}

// ParseCurrency normalizes and validates a currency code.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, s)
	}
	return c, nil
}

// Valid reports whether c is a supported currency.
func (c Currency) Valid() bool {
	return c == CurrencyUZS || c == CurrencyUSD
}

// Money is an exact decimal amount tagged with a currency.
type Money struct {
	Amount   decimal.Decimal
	Currency Currency
}

// NewMoney returns a Money rounded to MoneyScale.
func NewMoney(amount decimal.Decimal, currency Currency) Money {
	return Money{Amount: RoundMoney(amount), Currency: currency}
}

// ZeroMoney returns zero in the given currency.
func ZeroMoney(currency Currency) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

// Add returns m + o. Mixing currencies panics.
func (m Money) Add(o Money) Money {
	m.mustMatch(o)
	return Money{Amount: m.Amount.Add(o.Amount), Currency: m.Currency}
}

// Sub returns m - o. Mixing currencies panics.
func (m Money) Sub(o Money) Money {
	m.mustMatch(o)
	return Money{Amount: m.Amount.Sub(o.Amount), Currency: m.Currency}
}

// ScaleByRatio returns m * ratio rounded to MoneyScale.
func (m Money) ScaleByRatio(ratio decimal.Decimal) Money {
	return Money{Amount: RoundMoney(m.Amount.Mul(ratio)), Currency: m.Currency}
}

// Min returns the smaller of m and o. Mixing currencies panics.
func (m Money) Min(o Money) Money {
	m.mustMatch(o)
	if o.Amount.LessThan(m.Amount) {
		return o
	}
	return m
}

func (m Money) IsZero() bool     { return m.Amount.IsZero() }
func (m Money) IsPositive() bool { return m.Amount.IsPositive() }
func (m Money) IsNegative() bool { return m.Amount.IsNegative() }

func (m Money) String() string {
	return m.Amount.StringFixed(MoneyScale) + " " + string(m.Currency)
}

func (m Money) mustMatch(o Money) {
	if m.Currency != o.Currency {
		panic(fmt.Sprintf("money: currency mismatch %s vs %s", m.Currency, o.Currency))
	}
}

// RoundMoney rounds d to MoneyScale fractional digits.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// Amounts holds one signed amount per currency.
type Amounts map[Currency]decimal.Decimal

// NewAmounts returns amounts with every currency set to zero.
func NewAmounts() Amounts {
	a := make(Amounts, len(Currencies))
	for _, c := range Currencies {
		a[c] = decimal.Zero
	}
	return a
}

// Get returns the amount for c, zero if absent.
func (a Amounts) Get(c Currency) decimal.Decimal {
	if v, ok := a[c]; ok {
		return v
	}
	return decimal.Zero
}

// Money returns the amount for c as Money.
func (a Amounts) Money(c Currency) Money {
	return Money{Amount: a.Get(c), Currency: c}
}

// Add adds delta to the amount for c.
func (a Amounts) Add(c Currency, delta decimal.Decimal) {
	a[c] = a.Get(c).Add(delta)
}

// Clone returns a copy with every currency populated.
func (a Amounts) Clone() Amounts {
	out := NewAmounts()
	for c, v := range a {
		out[c] = v
	}
	return out
}

// IsZero reports whether every currency is exactly zero.
func (a Amounts) IsZero() bool {
	for _, v := range a {
		if !v.IsZero() {
			return false
		}
	}
	return true
}

// Equal compares a and b currency by currency.
func (a Amounts) Equal(b Amounts) bool {
	for _, c := range Currencies {
		if !a.Get(c).Equal(b.Get(c)) {
			return false
		}
	}
	return true
}

// ProrateDiscount splits a blended discount across currencies by each
// currency's share of the combined subtotal. A zero combined subtotal or a
// non-positive discount leaves every currency at zero.
func ProrateDiscount(discount decimal.Decimal, subtotals Amounts) Amounts {
	out := NewAmounts()
	if !discount.IsPositive() {
		return out
	}

	total := decimal.Zero
	for _, c := range Currencies {
		total = total.Add(subtotals.Get(c))
	}
	if !total.IsPositive() {
		return out
	}

	for _, c := range Currencies {
		ratio := subtotals.Get(c).Div(total)
		out[c] = NewMoney(discount, c).ScaleByRatio(ratio).Amount
	}
	return out
}
