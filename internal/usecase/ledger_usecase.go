package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/tradeledger/internal/domain"
	"github.com/iho/tradeledger/internal/infrastructure/metrics"
)

// LedgerUseCase is the debt-ledger engine. Every exported operation is one
// atomic unit of work against a single entity.
type LedgerUseCase struct {
	txManager  TransactionManager
	entityRepo EntityRepository
	sourceRepo DebtSourceRepository
	entryRepo  EntryRepository
	outboxRepo OutboxRepository
	auditRepo  AuditRepository
	idGen      IDGenerator
	metrics    *metrics.Metrics

	allocationPolicy domain.OrderingPolicy
	rollbackPolicy   domain.OrderingPolicy
}

// NewLedgerUseCase creates a new LedgerUseCase with FIFO allocation and
// LIFO rollback.
func NewLedgerUseCase(
	txManager TransactionManager,
	entityRepo EntityRepository,
	sourceRepo DebtSourceRepository,
	entryRepo EntryRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	idGen IDGenerator,
	metrics *metrics.Metrics,
) *LedgerUseCase {
	return &LedgerUseCase{
		txManager:        txManager,
		entityRepo:       entityRepo,
		sourceRepo:       sourceRepo,
		entryRepo:        entryRepo,
		outboxRepo:       outboxRepo,
		auditRepo:        auditRepo,
		idGen:            idGen,
		metrics:          metrics,
		allocationPolicy: domain.FIFO,
		rollbackPolicy:   domain.LIFO,
	}
}

// WithPolicies overrides the allocation and rollback ordering.
func (uc *LedgerUseCase) WithPolicies(allocation, rollback domain.OrderingPolicy) *LedgerUseCase {
	if allocation != nil {
		uc.allocationPolicy = allocation
	}
	if rollback != nil {
		uc.rollbackPolicy = rollback
	}
	return uc
}

// AccrueDebtInput represents input for recording a sale or purchase.
type AccrueDebtInput struct {
	ActorID      string
	EntityID     string
	Kind         domain.SourceKind
	Number       string
	BusinessDate time.Time
	Items        []domain.LineItem
	Discount     decimal.Decimal
	Note         string
}

// AccrueDebt creates a debt source with paid=0 and debt=grand total and
// raises the entity balance by the grand total in each currency.
func (uc *LedgerUseCase) AccrueDebt(ctx context.Context, input AccrueDebtInput) (*domain.DebtSource, error) {
	if err := domain.ValidateID(input.EntityID); err != nil {
		return nil, err
	}
	if err := domain.ValidateItems(input.Items); err != nil {
		return nil, err
	}
	if err := domain.ValidateNonNegative(input.Discount); err != nil {
		return nil, err
	}
	if err := domain.ValidateNote(input.Note); err != nil {
		return nil, err
	}
	if input.Kind != domain.SourceKindSale && input.Kind != domain.SourceKindPurchase {
		return nil, fmt.Errorf("%w: source kind %q", domain.ErrValidation, input.Kind)
	}

	var source *domain.DebtSource

	err := uc.run(ctx, input.EntityID, input.ActorID, "accrue_debt", func(w *unitOfWork) error {
		if w.entity.Kind != input.Kind.EntityKind() {
			return fmt.Errorf("%w: %s cannot carry a %s", domain.ErrEntityKindMismatch, w.entity.Kind, input.Kind)
		}
		if !w.entity.Active {
			return domain.ErrEntityInactive
		}

		items := make([]domain.LineItem, len(input.Items))
		copy(items, input.Items)

		businessDate := input.BusinessDate
		if businessDate.IsZero() {
			businessDate = w.now
		}

		source = &domain.DebtSource{
			ID:           uc.idGen.Generate(),
			Kind:         input.Kind,
			EntityID:     w.entity.ID,
			Number:       input.Number,
			BusinessDate: businessDate.UTC(),
			Status:       domain.SourceStatusCompleted,
			ReturnState:  domain.ReturnStateNone,
			Items:        items,
			Discount:     domain.RoundMoney(input.Discount),
			Totals:       domain.ComputeTotals(items, input.Discount),
			Note:         input.Note,
			CreatedBy:    w.actorID,
		}
		if source.Number == "" {
			source.Number = source.ID
		}
		w.addSource(source)

		grand := domain.NewAmounts()
		for _, c := range domain.Currencies {
			g := source.TotalsFor(c).GrandTotal
			grand[c] = g
			w.post(entryInput{
				currency:    c,
				amount:      g,
				direction:   domain.DirectionDebt,
				note:        fmt.Sprintf("%s %s", source.Kind, source.Number),
				referenceID: source.ID,
				eventAt:     source.BusinessDate,
			})
		}

		w.emit(domain.AggregateTypeDebtSource, source.ID, domain.EventTypeDebtAccrued, map[string]any{
			"source_id":   source.ID,
			"source_kind": string(source.Kind),
			"entity_id":   source.EntityID,
			"totals":      amountsPayload(grand),
			"actor_id":    w.actorID,
		})
		w.audit(domain.AuditActionDebtAccrue, domain.AggregateTypeDebtSource, source.ID, nil, source)

		w.onCommit(func() {
			if uc.metrics != nil {
				uc.metrics.DebtAccrued.WithLabelValues(string(source.Kind)).Inc()
			}
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return source, nil
}

// ApplyPaymentInput represents input for a manual payment or debt entry.
type ApplyPaymentInput struct {
	ActorID     string
	EntityID    string
	Currency    domain.Currency
	Amount      decimal.Decimal
	Direction   domain.Direction
	Note        string
	ReferenceID string
	EventAt     *time.Time
}

// PaymentResult is the outcome of ApplyPayment.
type PaymentResult struct {
	EntryID     string
	ReferenceID string
	Currency    domain.Currency
	NewBalance  decimal.Decimal
	Allocations []domain.Allocation
	Allocated   decimal.Decimal
	Unallocated decimal.Decimal
}

// ApplyPayment records a balance change declared by the caller. PAYMENT and
// PREPAYMENT pay open debt down with the allocation policy and lower the
// balance; any excess becomes prepayment. DEBT raises the balance without
// touching any record.
func (uc *LedgerUseCase) ApplyPayment(ctx context.Context, input ApplyPaymentInput) (*PaymentResult, error) {
	if err := validatePayment(input.EntityID, input.Currency, input.Amount, input.Direction); err != nil {
		return nil, err
	}
	if err := domain.ValidateNote(input.Note); err != nil {
		return nil, err
	}

	var result *PaymentResult

	err := uc.run(ctx, input.EntityID, input.ActorID, "apply_payment", func(w *unitOfWork) error {
		if !w.entity.Active {
			return domain.ErrEntityInactive
		}

		var eventAt time.Time
		if input.EventAt != nil {
			eventAt = input.EventAt.UTC()
		}

		entry, res, err := w.applyPayment(input.Currency, input.Amount, input.Direction, input.Note, input.ReferenceID, eventAt)
		if err != nil {
			return err
		}

		result = &PaymentResult{
			EntryID:     entry.ID,
			ReferenceID: entry.ReferenceID,
			Currency:    input.Currency,
			NewBalance:  entry.BalanceAfter,
			Allocations: res.Allocations,
			Allocated:   res.Applied,
			Unallocated: res.Remaining,
		}

		w.emitPayment(entry, res)
		w.audit(domain.AuditActionPaymentApply, domain.AggregateTypeEntity, w.entity.ID, nil, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (w *unitOfWork) emitPayment(entry *domain.LedgerEntry, res domain.AllocationResult) {
	w.emit(domain.AggregateTypeEntity, w.entity.ID, domain.EventTypePaymentApplied, map[string]any{
		"entity_id":    w.entity.ID,
		"reference_id": entry.ReferenceID,
		"currency":     string(entry.Currency),
		"amount":       entry.Amount.StringFixed(domain.MoneyScale),
		"direction":    string(entry.Direction),
		"allocated":    res.Applied.StringFixed(domain.MoneyScale),
		"actor_id":     w.actorID,
	})

	m := w.uc.metrics
	w.onCommit(func() {
		if m == nil {
			return
		}
		m.PaymentsApplied.WithLabelValues(string(entry.Currency), string(entry.Direction)).Inc()
		amount, _ := entry.Amount.Float64()
		m.PaymentAmount.WithLabelValues(string(entry.Currency)).Observe(amount)
		if entry.Direction.PaysDown() && res.Remaining.IsPositive() {
			m.Unallocated.WithLabelValues(string(entry.Currency)).Inc()
		}
	})
}

func validatePayment(entityID string, c domain.Currency, amount decimal.Decimal, dir domain.Direction) error {
	if err := domain.ValidateID(entityID); err != nil {
		return err
	}
	if !c.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidCurrency, c)
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return err
	}
	if !dir.PaysDown() && dir != domain.DirectionDebt {
		return fmt.Errorf("%w: %q is not a payment direction", domain.ErrInvalidDirection, dir)
	}
	return nil
}

// ReversalMode selects how an accrual is reversed.
type ReversalMode string

const (
	ReversalDelete ReversalMode = "delete"
	ReversalCancel ReversalMode = "cancel"
)

// ReverseAccrualInput represents input for deleting or canceling a record.
type ReverseAccrualInput struct {
	ActorID  string
	SourceID string
	Mode     ReversalMode
	// RefundPaid also records the paid part as returned cash, so the
	// customer keeps no credit from a deleted sale.
	RefundPaid bool
	Note       string
}

// ReversalResult is the outcome of ReverseAccrual.
type ReversalResult struct {
	SourceID        string
	Status          domain.SourceStatus
	NewBalance      domain.Amounts
	AlreadyReversed bool
}

// ReverseAccrual deletes or cancels a debt source. A record that is no
// longer completed is reported as already reversed and left untouched.
func (uc *LedgerUseCase) ReverseAccrual(ctx context.Context, input ReverseAccrualInput) (*ReversalResult, error) {
	if err := domain.ValidateID(input.SourceID); err != nil {
		return nil, err
	}
	if input.Mode != ReversalDelete && input.Mode != ReversalCancel {
		return nil, fmt.Errorf("%w: mode %q", domain.ErrUnsupportedReversal, input.Mode)
	}

	snapshot, err := uc.sourceRepo.GetByID(ctx, input.SourceID)
	if err != nil {
		return nil, err
	}

	var result *ReversalResult

	err = uc.run(ctx, snapshot.EntityID, input.ActorID, "reverse_accrual", func(w *unitOfWork) error {
		s, err := w.lockSource(input.SourceID)
		if err != nil {
			return err
		}

		if !s.IsLive() {
			return fmt.Errorf("%w: %s is %s", domain.ErrAlreadyReversed, s.ID, s.Status)
		}

		before := cloneSource(s)

		switch {
		case s.Kind == domain.SourceKindSale && input.Mode == ReversalDelete:
			w.deleteSale(s, input.RefundPaid, input.Note)
		case s.Kind == domain.SourceKindSale && input.Mode == ReversalCancel:
			w.cancelSale(s, input.Note)
		case s.Kind == domain.SourceKindPurchase && input.Mode == ReversalDelete:
			if err := w.deletePurchase(s, input.Note); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: %s %s", domain.ErrUnsupportedReversal, input.Mode, s.Kind)
		}
		w.touch(s.ID)

		result = &ReversalResult{
			SourceID:   s.ID,
			Status:     s.Status,
			NewBalance: w.entity.Balance.Clone(),
		}

		w.emit(domain.AggregateTypeDebtSource, s.ID, domain.EventTypeAccrualReversed, map[string]any{
			"source_id": s.ID,
			"entity_id": s.EntityID,
			"mode":      string(input.Mode),
			"refund":    input.RefundPaid,
			"actor_id":  w.actorID,
		})
		w.audit(domain.AuditActionDebtReverse, domain.AggregateTypeDebtSource, s.ID, before, s)

		w.onCommit(func() {
			if uc.metrics != nil {
				uc.metrics.AccrualsReversed.WithLabelValues(string(s.Kind), string(input.Mode)).Inc()
			}
		})
		return nil
	})
	if errors.Is(err, domain.ErrAlreadyReversed) {
		current, getErr := uc.sourceRepo.GetByID(ctx, input.SourceID)
		if getErr != nil {
			return nil, getErr
		}
		entity, getErr := uc.entityRepo.GetByID(ctx, current.EntityID)
		if getErr != nil {
			return nil, getErr
		}
		return &ReversalResult{
			SourceID:        current.ID,
			Status:          current.Status,
			NewBalance:      entity.Balance,
			AlreadyReversed: true,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	return result, nil
}

// deleteSale rolls the whole record off the balance: remaining debt as
// ROLLBACK, the paid part as PREPAID credit.
func (w *unitOfWork) deleteSale(s *domain.DebtSource, refundPaid bool, note string) {
	for _, c := range domain.Currencies {
		t := s.TotalsFor(c)

		w.post(entryInput{
			currency:    c,
			amount:      t.Debt,
			direction:   domain.DirectionRollback,
			note:        noteOr(note, "sale "+s.Number+" deleted"),
			referenceID: s.ID,
		})
		w.post(entryInput{
			currency:    c,
			amount:      t.Paid,
			direction:   domain.DirectionPrepaid,
			note:        noteOr(note, "sale "+s.Number+" paid part credited"),
			referenceID: s.ID,
		})
		if refundPaid {
			w.post(entryInput{
				currency:    c,
				amount:      t.Paid,
				direction:   domain.DirectionReversal,
				note:        "sale " + s.Number + " paid part refunded",
				referenceID: s.ID,
			})
		}

		t.GrandTotal = decimal.Zero
		t.Paid = decimal.Zero
		t.Debt = decimal.Zero
	}
	s.Status = domain.SourceStatusDeleted
}

// cancelSale keeps the record but takes its debt off the balance, never
// pushing the balance below zero by itself.
func (w *unitOfWork) cancelSale(s *domain.DebtSource, note string) {
	for _, c := range domain.Currencies {
		debt := s.Debt(c)
		bal := w.entity.Balance.Get(c)
		if !bal.IsPositive() {
			continue
		}

		w.post(entryInput{
			currency:    c,
			amount:      decimal.Min(debt, bal),
			direction:   domain.DirectionRollback,
			note:        noteOr(note, "sale "+s.Number+" canceled"),
			referenceID: s.ID,
		})
	}
	s.Status = domain.SourceStatusCanceled
}

// deletePurchase rolls the unpaid part off the balance. Batches that were
// already paid against cannot be deleted.
func (w *unitOfWork) deletePurchase(s *domain.DebtSource, note string) error {
	if s.HasPayments() {
		return fmt.Errorf("%w: purchase %s", domain.ErrSourceHasPayments, s.Number)
	}

	for _, c := range domain.Currencies {
		t := s.TotalsFor(c)
		w.post(entryInput{
			currency:    c,
			amount:      t.Debt,
			direction:   domain.DirectionRollback,
			note:        noteOr(note, "purchase "+s.Number+" deleted"),
			referenceID: s.ID,
		})
		t.GrandTotal = decimal.Zero
		t.Debt = decimal.Zero
	}
	s.Status = domain.SourceStatusDeleted
	return nil
}

// AdjustAccrualInput represents input for changing a record's grand totals.
type AdjustAccrualInput struct {
	ActorID        string
	SourceID       string
	NewGrandTotals domain.Amounts
	Note           string
}

// AdjustResult is the outcome of AdjustAccrual.
type AdjustResult struct {
	SourceID     string
	BalanceDelta domain.Amounts
	NewBalance   domain.Amounts
}

// AdjustAccrual moves a completed record to new grand totals. The paid part
// is kept; the new debt is the new grand total minus paid.
func (uc *LedgerUseCase) AdjustAccrual(ctx context.Context, input AdjustAccrualInput) (*AdjustResult, error) {
	if err := domain.ValidateID(input.SourceID); err != nil {
		return nil, err
	}
	for c, g := range input.NewGrandTotals {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCurrency, c)
		}
		if err := domain.ValidateNonNegative(g); err != nil {
			return nil, err
		}
	}

	return uc.adjust(ctx, input.ActorID, input.SourceID, input.Note, func(s *domain.DebtSource) (domain.Amounts, error) {
		return input.NewGrandTotals, nil
	})
}

// adjust runs the shared adjust flow; mutate may change the record (items,
// totals) and returns the grand totals to settle on.
func (uc *LedgerUseCase) adjust(ctx context.Context, actorID, sourceID, note string, mutate func(s *domain.DebtSource) (domain.Amounts, error)) (*AdjustResult, error) {
	snapshot, err := uc.sourceRepo.GetByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	var result *AdjustResult

	err = uc.run(ctx, snapshot.EntityID, actorID, "adjust_accrual", func(w *unitOfWork) error {
		s, err := w.lockSource(sourceID)
		if err != nil {
			return err
		}
		if !s.IsLive() {
			return fmt.Errorf("%w: %s is %s", domain.ErrSourceNotEditable, s.ID, s.Status)
		}

		before := cloneSource(s)

		grands, err := mutate(s)
		if err != nil {
			return err
		}

		delta := domain.NewAmounts()
		for _, c := range domain.Currencies {
			g, ok := grands[c]
			if !ok {
				continue
			}
			t := s.TotalsFor(c)
			newGrand := domain.RoundMoney(g)
			newDebt := newGrand.Sub(t.Paid)
			if newDebt.IsNegative() {
				return domain.NewInvariantViolation("%s %s: new grand total %s is below paid %s",
					s.Number, c, newGrand.StringFixed(domain.MoneyScale), t.Paid.StringFixed(domain.MoneyScale))
			}

			d := newDebt.Sub(t.Debt)
			delta[c] = d
			t.GrandTotal = newGrand
			t.Debt = newDebt

			switch {
			case d.IsNegative():
				w.post(entryInput{
					currency:    c,
					amount:      d.Neg(),
					direction:   domain.DirectionPayment,
					note:        noteOr(note, s.Number+" reduced"),
					referenceID: s.ID,
				})
			case d.IsPositive():
				w.post(entryInput{
					currency:    c,
					amount:      d,
					direction:   domain.DirectionDebt,
					note:        noteOr(note, s.Number+" increased"),
					referenceID: s.ID,
				})
			}
		}
		w.touch(s.ID)

		result = &AdjustResult{
			SourceID:     s.ID,
			BalanceDelta: delta,
			NewBalance:   w.entity.Balance.Clone(),
		}

		w.emit(domain.AggregateTypeDebtSource, s.ID, domain.EventTypeAccrualAdjusted, map[string]any{
			"source_id": s.ID,
			"entity_id": s.EntityID,
			"delta":     amountsPayload(delta),
			"actor_id":  w.actorID,
		})
		w.audit(domain.AuditActionDebtAdjust, domain.AggregateTypeDebtSource, s.ID, before, s)

		w.onCommit(func() {
			if uc.metrics != nil {
				uc.metrics.AccrualsAdjusted.Inc()
			}
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func noteOr(note, fallback string) string {
	if note != "" {
		return note
	}
	return fallback
}

func cloneSource(s *domain.DebtSource) *domain.DebtSource {
	c := *s
	c.Items = append([]domain.LineItem(nil), s.Items...)
	c.Totals = make(map[domain.Currency]*domain.CurrencyTotals, len(s.Totals))
	for cur, t := range s.Totals {
		tc := *t
		c.Totals[cur] = &tc
	}
	return &c
}
