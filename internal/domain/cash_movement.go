package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how cash changed hands.
type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "CASH"
	PaymentMethodCard PaymentMethod = "CARD"
)

// ParsePaymentMethod validates a payment method, defaulting to cash.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case "":
		return PaymentMethodCash, nil
	case PaymentMethodCash, PaymentMethodCard:
		return m, nil
	}
	return "", fmt.Errorf("%w: payment method %q", ErrValidation, s)
}

// CashMovementStatus is the lifecycle state of a cash movement.
type CashMovementStatus string

const (
	CashMovementActive  CashMovementStatus = "ACTIVE"
	CashMovementDeleted CashMovementStatus = "DELETED"
)

// CashMovement is money received from a customer or paid to a supplier.
type CashMovement struct {
	ID          string
	EntityID    string
	EntityKind  EntityKind
	Currency    Currency
	Amount      decimal.Decimal
	Method      PaymentMethod
	PaymentDate time.Time
	Note        string
	Status      CashMovementStatus
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Money returns the movement amount as Money.
func (m *CashMovement) Money() Money {
	return Money{Amount: m.Amount, Currency: m.Currency}
}
