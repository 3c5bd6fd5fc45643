package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// OrderingPolicy decides the order in which debt sources are visited.
type OrderingPolicy interface {
	Name() string
	Order(sources []*DebtSource)
}

type fifoPolicy struct{}

// FIFO visits the oldest business date first.
var FIFO OrderingPolicy = fifoPolicy{}

func (fifoPolicy) Name() string { return "fifo" }

func (fifoPolicy) Order(sources []*DebtSource) {
	sort.SliceStable(sources, func(i, j int) bool {
		return olderThan(sources[i], sources[j])
	})
}

type lifoPolicy struct{}

// LIFO visits the newest business date first.
var LIFO OrderingPolicy = lifoPolicy{}

func (lifoPolicy) Name() string { return "lifo" }

func (lifoPolicy) Order(sources []*DebtSource) {
	sort.SliceStable(sources, func(i, j int) bool {
		return olderThan(sources[j], sources[i])
	})
}

func olderThan(a, b *DebtSource) bool {
	if !a.BusinessDate.Equal(b.BusinessDate) {
		return a.BusinessDate.Before(b.BusinessDate)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// ParseOrderingPolicy resolves a policy by name.
func ParseOrderingPolicy(name string) (OrderingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fifo":
		return FIFO, nil
	case "lifo":
		return LIFO, nil
	}
	return nil, fmt.Errorf("unknown ordering policy %q", name)
}

// Allocation is the share of an amount applied to (or taken back from) one record.
type Allocation struct {
	SourceID     string
	SourceNumber string
	Amount       decimal.Decimal
	DebtBefore   decimal.Decimal
	DebtAfter    decimal.Decimal
}

// AllocationResult summarizes a walk over debt sources.
type AllocationResult struct {
	Allocations []Allocation
	Applied     decimal.Decimal
	Remaining   decimal.Decimal
}

// Allocate applies amount against open debt in currency c, visiting
// sources in policy order. It never takes a record's debt below zero;
// whatever is left once all debt is covered is returned as Remaining.
func Allocate(sources []*DebtSource, c Currency, amount decimal.Decimal, policy OrderingPolicy) AllocationResult {
	open := make([]*DebtSource, 0, len(sources))
	for _, s := range sources {
		if s.IsLive() && s.Debt(c).IsPositive() {
			open = append(open, s)
		}
	}
	policy.Order(open)

	res := AllocationResult{Applied: decimal.Zero, Remaining: amount}
	for _, s := range open {
		if !res.Remaining.IsPositive() {
			break
		}
		t := s.TotalsFor(c)
		use := decimal.Min(res.Remaining, t.Debt)

		before := t.Debt
		t.Paid = t.Paid.Add(use)
		t.Debt = t.Debt.Sub(use)
		res.Remaining = res.Remaining.Sub(use)
		res.Applied = res.Applied.Add(use)

		res.Allocations = append(res.Allocations, Allocation{
			SourceID:     s.ID,
			SourceNumber: s.Number,
			Amount:       use,
			DebtBefore:   before,
			DebtAfter:    t.Debt,
		})
	}
	return res
}

// Rollback takes amount back from paid portions in currency c, visiting
// sources in policy order. Paid never goes below zero; the part of amount
// that exceeds the total paid is returned as Remaining.
func Rollback(sources []*DebtSource, c Currency, amount decimal.Decimal, policy OrderingPolicy) AllocationResult {
	paid := make([]*DebtSource, 0, len(sources))
	for _, s := range sources {
		if s.Status != SourceStatusDeleted && s.Paid(c).IsPositive() {
			paid = append(paid, s)
		}
	}
	policy.Order(paid)

	res := AllocationResult{Applied: decimal.Zero, Remaining: amount}
	for _, s := range paid {
		if !res.Remaining.IsPositive() {
			break
		}
		t := s.TotalsFor(c)
		give := decimal.Min(res.Remaining, t.Paid)

		before := t.Debt
		t.Paid = t.Paid.Sub(give)
		t.Debt = t.Debt.Add(give)
		res.Remaining = res.Remaining.Sub(give)
		res.Applied = res.Applied.Add(give)

		res.Allocations = append(res.Allocations, Allocation{
			SourceID:     s.ID,
			SourceNumber: s.Number,
			Amount:       give,
			DebtBefore:   before,
			DebtAfter:    t.Debt,
		})
	}
	return res
}
