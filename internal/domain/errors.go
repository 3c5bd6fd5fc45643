package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for callers.
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindNotFound           ErrorKind = "not_found"
	KindInvariantViolation ErrorKind = "invariant_violation"
	KindAlreadyReversed    ErrorKind = "already_reversed"
)

// Error is a structured failure carrying a kind and a human message.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is reports whether target is the kind sentinel of e.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Kind sentinels. errors.Is(err, ErrNotFound) matches every not-found error.
var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvariantViolation = &Error{Kind: KindInvariantViolation}
	ErrAlreadyReversed    = &Error{Kind: KindAlreadyReversed}
)

var (
	// Validation errors
	ErrInvalidAmount       = &Error{Kind: KindValidation, Message: "amount must be positive"}
	ErrInvalidCurrency     = &Error{Kind: KindValidation, Message: "invalid currency code"}
	ErrInvalidID           = &Error{Kind: KindValidation, Message: "invalid ID format"}
	ErrInvalidDirection    = &Error{Kind: KindValidation, Message: "invalid entry direction"}
	ErrInvalidEntityKind   = &Error{Kind: KindValidation, Message: "invalid entity kind"}
	ErrInvalidName         = &Error{Kind: KindValidation, Message: "invalid name"}
	ErrInvalidQuantity     = &Error{Kind: KindValidation, Message: "invalid quantity"}
	ErrEmptyItems          = &Error{Kind: KindValidation, Message: "items must not be empty"}
	ErrAmountTooLarge      = &Error{Kind: KindValidation, Message: "amount exceeds maximum allowed"}
	ErrMissingActor        = &Error{Kind: KindValidation, Message: "actor is required"}
	ErrEntityKindMismatch  = &Error{Kind: KindValidation, Message: "entity kind does not match operation"}
	ErrEntityInactive      = &Error{Kind: KindValidation, Message: "entity is inactive"}
	ErrNonZeroBalance      = &Error{Kind: KindValidation, Message: "entity balance must be zero"}
	ErrSourceNotEditable   = &Error{Kind: KindValidation, Message: "only completed records can be edited"}
	ErrSourceHasPayments   = &Error{Kind: KindValidation, Message: "record has payments and cannot be deleted"}
	ErrQuantityUnchanged   = &Error{Kind: KindValidation, Message: "quantity unchanged"}
	ErrItemNotInSource     = &Error{Kind: KindValidation, Message: "product is not part of the record"}
	ErrEntityChangeOnEdit  = &Error{Kind: KindValidation, Message: "cash movement cannot be moved to another entity"}
	ErrUnsupportedReversal = &Error{Kind: KindValidation, Message: "reversal mode not supported for this record"}

	// Not found errors
	ErrEntityNotFound       = &Error{Kind: KindNotFound, Message: "entity not found"}
	ErrSourceNotFound       = &Error{Kind: KindNotFound, Message: "debt source not found"}
	ErrCashMovementNotFound = &Error{Kind: KindNotFound, Message: "cash movement not found"}
	ErrEntryNotFound        = &Error{Kind: KindNotFound, Message: "ledger entry not found"}
)

// NewInvariantViolation builds an invariant violation error.
func NewInvariantViolation(format string, args ...any) error {
	return &Error{Kind: KindInvariantViolation, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or an empty kind for unclassified errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
