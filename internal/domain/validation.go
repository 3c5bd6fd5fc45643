package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation constants
const (
	MaxNameLength  = 255
	MinNameLength  = 1
	MaxPhoneLength = 32
	MaxNoteLength = 1024
	MaxIDLength   = 64
	MaxAmount     = "1000000000000000" // 10^15, covers UZS wholesale volumes
)

var idRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateName validates an entity name
func ValidateName(name string) error {
	name = strings.TrimSpace(name)

	if len(name) < MinNameLength {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}

	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, MaxNameLength)
	}

	return nil
}

// ValidatePhone validates an optional contact phone
func ValidatePhone(phone string) error {
	if len(strings.TrimSpace(phone)) > MaxPhoneLength {
		return fmt.Errorf("%w: phone exceeds %d characters", ErrValidation, MaxPhoneLength)
	}
	return nil
}

// ValidateID rejects empty or malformed identifiers
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidID)
	}

	if len(id) > MaxIDLength || !idRegex.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	return nil
}

// ValidateActor checks that an operation names who performs it
func ValidateActor(actorID string) error {
	if strings.TrimSpace(actorID) == "" {
		return ErrMissingActor
	}
	return nil
}

// ValidateAmount validates a payment or accrual amount
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	maxAmount, _ := decimal.NewFromString(MaxAmount)
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxAmount)
	}

	if !RoundMoney(amount).Equal(amount) {
		return fmt.Errorf("%w: at most %d fractional digits", ErrInvalidAmount, MoneyScale)
	}

	return nil
}

// ValidateNonNegative validates a discount or grand total
func ValidateNonNegative(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: must not be negative", ErrInvalidAmount)
	}
	return nil
}

// ValidateNote bounds free-text notes
func ValidateNote(note string) error {
	if len(note) > MaxNoteLength {
		return fmt.Errorf("%w: note exceeds %d characters", ErrValidation, MaxNoteLength)
	}
	return nil
}

// ValidateItems validates sale or purchase line items
func ValidateItems(items []LineItem) error {
	if len(items) == 0 {
		return ErrEmptyItems
	}

	for i, it := range items {
		if !it.Currency.Valid() {
			return fmt.Errorf("%w: item %d currency %q", ErrInvalidCurrency, i, it.Currency)
		}
		if !it.Quantity.IsPositive() {
			return fmt.Errorf("%w: item %d quantity must be positive", ErrInvalidQuantity, i)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %d price must not be negative", ErrInvalidAmount, i)
		}
	}

	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}
