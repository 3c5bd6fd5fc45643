package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction tells which way an entry moves the balance. Amounts are
// always non-negative; the sign lives here.
type Direction string

const (
	DirectionDebt       Direction = "DEBT"
	DirectionPayment    Direction = "PAYMENT"
	DirectionPrepayment Direction = "PREPAYMENT"
	DirectionRollback   Direction = "ROLLBACK"
	DirectionPrepaid    Direction = "PREPAID"
	DirectionReversal   Direction = "REVERSAL"
)

// ParseDirection validates a direction name.
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToUpper(strings.TrimSpace(s)))
	if d.Sign() == 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
	return d, nil
}

// Sign is +1 for directions that increase what the entity owes, -1 for
// directions that decrease it and 0 for unknown directions.
func (d Direction) Sign() int {
	switch d {
	case DirectionDebt, DirectionReversal:
		return 1
	case DirectionPayment, DirectionPrepayment, DirectionRollback, DirectionPrepaid:
		return -1
	}
	return 0
}

// PaysDown reports whether a payment in this direction reduces debt.
func (d Direction) PaysDown() bool {
	return d == DirectionPayment || d == DirectionPrepayment
}

// LedgerEntry is one immutable balance change for one entity.
type LedgerEntry struct {
	ID              string
	EntityID        string
	EntityKind      EntityKind
	Currency        Currency
	Amount          decimal.Decimal
	Direction       Direction
	Note            string
	ReferenceID     string
	ReversesEntryID string
	ActorID         string
	BalanceAfter    decimal.Decimal
	EventAt         time.Time
	CreatedAt       time.Time
}

// SignedAmount returns the amount with the direction's sign applied.
func (e *LedgerEntry) SignedAmount() decimal.Decimal {
	if e.Direction.Sign() < 0 {
		return e.Amount.Neg()
	}
	return e.Amount
}

// Standalone reports whether the entry belongs to no sale, purchase or cash
// movement: legacy entries without a reference and manual entries that
// reference themselves. Only these can be reversed on their own.
func (e *LedgerEntry) Standalone() bool {
	if e.ReversesEntryID != "" {
		return false
	}
	return e.ReferenceID == "" || e.ReferenceID == e.ID
}

// Replay sums opening balances and the signed amounts of entries.
func Replay(opening Amounts, entries []*LedgerEntry) Amounts {
	out := opening.Clone()
	for _, e := range entries {
		out.Add(e.Currency, e.SignedAmount())
	}
	return out
}

// LegacyMatch identifies an entry written before references were required.
type LegacyMatch struct {
	Currency  Currency
	Amount    decimal.Decimal
	Direction Direction
	Day       time.Time
}

// MatchLegacyEntries returns the standalone, not yet reversed entries that
// match the tuple, newest first. More than one result means the match is
// ambiguous.
func MatchLegacyEntries(entries []*LedgerEntry, m LegacyMatch) []*LedgerEntry {
	reversed := make(map[string]bool)
	for _, e := range entries {
		if e.ReversesEntryID != "" {
			reversed[e.ReversesEntryID] = true
		}
	}

	y, mo, d := m.Day.UTC().Date()
	var out []*LedgerEntry
	for _, e := range entries {
		if !e.Standalone() || reversed[e.ID] {
			continue
		}
		if e.Currency != m.Currency || e.Direction != m.Direction || !e.Amount.Equal(m.Amount) {
			continue
		}
		ey, emo, ed := e.EventAt.UTC().Date()
		if ey != y || emo != mo || ed != d {
			continue
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EventAt.After(out[j].EventAt)
	})
	return out
}
