package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/tradeledger/internal/domain"
)

// CashMovementUseCase handles money received from customers and paid to
// suppliers. Every movement owns the ledger entries that carry its ID as
// reference.
type CashMovementUseCase struct {
	ledger       *LedgerUseCase
	movementRepo CashMovementRepository
	entryRepo    EntryRepository
}

// NewCashMovementUseCase creates a new CashMovementUseCase.
func NewCashMovementUseCase(ledger *LedgerUseCase, movementRepo CashMovementRepository, entryRepo EntryRepository) *CashMovementUseCase {
	return &CashMovementUseCase{
		ledger:       ledger,
		movementRepo: movementRepo,
		entryRepo:    entryRepo,
	}
}

// CreateCashMovementInput represents input for recording a cash movement.
type CreateCashMovementInput struct {
	ActorID     string
	EntityID    string
	Currency    domain.Currency
	Amount      decimal.Decimal
	Method      domain.PaymentMethod
	Prepayment  bool
	PaymentDate *time.Time
	Note        string
}

// CashMovementResult is the outcome of a cash movement operation.
type CashMovementResult struct {
	Movement        *domain.CashMovement
	NewBalance      decimal.Decimal
	Allocations     []domain.Allocation
	Unallocated     decimal.Decimal
	AlreadyReversed bool
}

// Create records a cash movement and applies it as a payment.
func (uc *CashMovementUseCase) Create(ctx context.Context, input CreateCashMovementInput) (*CashMovementResult, error) {
	dir := domain.DirectionPayment
	if input.Prepayment {
		dir = domain.DirectionPrepayment
	}
	if err := validatePayment(input.EntityID, input.Currency, input.Amount, dir); err != nil {
		return nil, err
	}
	if err := domain.ValidateNote(input.Note); err != nil {
		return nil, err
	}
	method, err := domain.ParsePaymentMethod(string(input.Method))
	if err != nil {
		return nil, err
	}

	var result *CashMovementResult

	err = uc.ledger.run(ctx, input.EntityID, input.ActorID, "cash_movement_create", func(w *unitOfWork) error {
		if !w.entity.Active {
			return domain.ErrEntityInactive
		}

		paymentDate := w.now
		if input.PaymentDate != nil {
			paymentDate = input.PaymentDate.UTC()
		}

		m := &domain.CashMovement{
			ID:          w.uc.idGen.Generate(),
			EntityID:    w.entity.ID,
			EntityKind:  w.entity.Kind,
			Currency:    input.Currency,
			Amount:      input.Amount,
			Method:      method,
			PaymentDate: paymentDate,
			Note:        input.Note,
			Status:      domain.CashMovementActive,
			CreatedBy:   w.actorID,
			CreatedAt:   w.now,
			UpdatedAt:   w.now,
		}

		entry, res, err := w.applyPayment(m.Currency, m.Amount, dir, m.Note, m.ID, m.PaymentDate)
		if err != nil {
			return err
		}

		w.write(func() error { return uc.movementRepo.Create(w.ctx, w.tx, m) })
		w.emitPayment(entry, res)
		w.emit(domain.AggregateTypeCashMovement, m.ID, domain.EventTypeCashMovementRecorded, map[string]any{
			"movement_id": m.ID,
			"entity_id":   m.EntityID,
			"currency":    string(m.Currency),
			"amount":      m.Amount.StringFixed(domain.MoneyScale),
			"method":      string(m.Method),
		})
		w.audit(domain.AuditActionPaymentApply, domain.AggregateTypeCashMovement, m.ID, nil, m)

		result = &CashMovementResult{
			Movement:    m,
			NewBalance:  entry.BalanceAfter,
			Allocations: res.Allocations,
			Unallocated: res.Remaining,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// EditCashMovementInput represents input for correcting a cash movement.
type EditCashMovementInput struct {
	ActorID     string
	ID          string
	EntityID    string
	Currency    domain.Currency
	Amount      decimal.Decimal
	Method      domain.PaymentMethod
	PaymentDate *time.Time
	Note        string
}

// Edit replaces a movement's amount or currency: the old entries are
// neutralized and the new amount applied, in one transaction.
func (uc *CashMovementUseCase) Edit(ctx context.Context, input EditCashMovementInput) (*CashMovementResult, error) {
	current, err := uc.get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if input.EntityID != "" && input.EntityID != current.EntityID {
		return nil, domain.ErrEntityChangeOnEdit
	}
	if err := validatePayment(current.EntityID, input.Currency, input.Amount, domain.DirectionPayment); err != nil {
		return nil, err
	}
	if err := domain.ValidateNote(input.Note); err != nil {
		return nil, err
	}
	method, err := domain.ParsePaymentMethod(string(input.Method))
	if err != nil {
		return nil, err
	}

	var result *CashMovementResult

	err = uc.ledger.run(ctx, current.EntityID, input.ActorID, "cash_movement_edit", func(w *unitOfWork) error {
		m, err := uc.lock(w, input.ID)
		if err != nil {
			return err
		}
		before := *m

		dir, err := uc.neutralizeMovement(w, m, "cash movement edited")
		if err != nil {
			return err
		}

		m.Currency = input.Currency
		m.Amount = input.Amount
		m.Method = method
		m.Note = input.Note
		if input.PaymentDate != nil {
			m.PaymentDate = input.PaymentDate.UTC()
		}
		m.UpdatedAt = w.now

		entry, res, err := w.applyPayment(m.Currency, m.Amount, dir, m.Note, m.ID, m.PaymentDate)
		if err != nil {
			return err
		}

		w.write(func() error { return uc.movementRepo.Update(w.ctx, w.tx, m) })
		w.emitPayment(entry, res)
		w.audit(domain.AuditActionPaymentEdit, domain.AggregateTypeCashMovement, m.ID, &before, m)

		result = &CashMovementResult{
			Movement:    m,
			NewBalance:  w.entity.Balance.Get(m.Currency),
			Allocations: res.Allocations,
			Unallocated: res.Remaining,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Delete neutralizes a movement's entries and soft-deletes it. Deleting an
// already deleted movement changes nothing.
func (uc *CashMovementUseCase) Delete(ctx context.Context, actorID, id string) (*CashMovementResult, error) {
	current, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.CashMovementDeleted {
		return &CashMovementResult{Movement: current, AlreadyReversed: true}, nil
	}

	var result *CashMovementResult

	err = uc.ledger.run(ctx, current.EntityID, actorID, "cash_movement_delete", func(w *unitOfWork) error {
		m, err := uc.lock(w, id)
		if err != nil {
			return err
		}
		before := *m

		if _, err := uc.neutralizeMovement(w, m, "cash movement deleted"); err != nil {
			return err
		}

		m.Status = domain.CashMovementDeleted
		m.UpdatedAt = w.now

		w.write(func() error { return uc.movementRepo.Update(w.ctx, w.tx, m) })
		w.audit(domain.AuditActionPaymentReverse, domain.AggregateTypeCashMovement, m.ID, &before, m)

		result = &CashMovementResult{
			Movement:   m,
			NewBalance: w.entity.Balance.Get(m.Currency),
		}
		return nil
	})
	if errors.Is(err, domain.ErrAlreadyReversed) {
		current.Status = domain.CashMovementDeleted
		return &CashMovementResult{Movement: current, AlreadyReversed: true}, nil
	}
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Get returns a cash movement by ID.
func (uc *CashMovementUseCase) Get(ctx context.Context, id string) (*domain.CashMovement, error) {
	if err := domain.ValidateID(id); err != nil {
		return nil, err
	}
	return uc.movementRepo.GetByID(ctx, id)
}

// ListByEntity lists the cash movements of one entity.
func (uc *CashMovementUseCase) ListByEntity(ctx context.Context, entityID string, limit, offset int) ([]*domain.CashMovement, error) {
	limit, offset, err := domain.ValidatePagination(limit, offset)
	if err != nil {
		return nil, err
	}
	return uc.movementRepo.ListByEntity(ctx, entityID, limit, offset)
}

// ReverseLegacyInput identifies an entry written without a reference,
// either directly by ID or by its {currency, amount, direction, day} tuple.
type ReverseLegacyInput struct {
	ActorID   string
	EntityID  string
	EntryID   string
	Currency  domain.Currency
	Amount    decimal.Decimal
	Direction domain.Direction
	Day       time.Time
	Note      string
}

// LegacyReversalResult is the outcome of ReverseLegacyPayment. Ambiguous is
// set when the tuple matched more than one entry; the newest was reversed.
type LegacyReversalResult struct {
	ReversedEntryID string
	ReversalEntryID string
	Candidates      int
	Ambiguous       bool
	NewBalance      decimal.Decimal
}

// ReverseLegacyPayment neutralizes a payment recorded before references
// were required. The tuple match is a degraded lookup and may be ambiguous.
func (uc *CashMovementUseCase) ReverseLegacyPayment(ctx context.Context, input ReverseLegacyInput) (*LegacyReversalResult, error) {
	if err := domain.ValidateID(input.EntityID); err != nil {
		return nil, err
	}
	if input.EntryID == "" {
		if !input.Currency.Valid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCurrency, input.Currency)
		}
		if err := domain.ValidateAmount(input.Amount); err != nil {
			return nil, err
		}
		if input.Day.IsZero() {
			return nil, fmt.Errorf("%w: day is required", domain.ErrValidation)
		}
		if input.Direction == "" {
			input.Direction = domain.DirectionPayment
		}
	}

	var result *LegacyReversalResult
	outcome := "not_found"

	err := uc.ledger.run(ctx, input.EntityID, input.ActorID, "legacy_reversal", func(w *unitOfWork) error {
		entries, err := uc.entryRepo.ListAllByEntityTx(w.ctx, w.tx, w.entity.ID)
		if err != nil {
			return err
		}

		var target *domain.LedgerEntry
		candidates := 1

		if input.EntryID != "" {
			target, err = findUnreversed(entries, input.EntryID)
			if err != nil {
				return err
			}
		} else {
			matches := domain.MatchLegacyEntries(entries, domain.LegacyMatch{
				Currency:  input.Currency,
				Amount:    input.Amount,
				Direction: input.Direction,
				Day:       input.Day,
			})
			if len(matches) == 0 {
				return fmt.Errorf("%w: no standalone %s %s %s on %s", domain.ErrEntryNotFound,
					input.Direction, input.Amount.StringFixed(domain.MoneyScale), input.Currency, input.Day.Format(time.DateOnly))
			}
			target = matches[0]
			candidates = len(matches)
		}

		rev, err := w.neutralize(target, noteOr(input.Note, "legacy entry reversed"))
		if err != nil {
			return err
		}

		result = &LegacyReversalResult{
			ReversedEntryID: target.ID,
			ReversalEntryID: rev.ID,
			Candidates:      candidates,
			Ambiguous:       candidates > 1,
			NewBalance:      rev.BalanceAfter,
		}
		if result.Ambiguous {
			outcome = "ambiguous"
		} else {
			outcome = "matched"
		}

		w.emit(domain.AggregateTypeEntity, w.entity.ID, domain.EventTypePaymentReversed, map[string]any{
			"entity_id":         w.entity.ID,
			"reversed_entry_id": target.ID,
			"ambiguous":         result.Ambiguous,
			"actor_id":          w.actorID,
		})
		w.audit(domain.AuditActionPaymentReverse, domain.AggregateTypeEntity, w.entity.ID, target, rev)
		return nil
	})

	if uc.ledger.metrics != nil {
		uc.ledger.metrics.LegacyMatches.WithLabelValues(outcome).Inc()
	}
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (uc *CashMovementUseCase) get(ctx context.Context, id string) (*domain.CashMovement, error) {
	m, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status == domain.CashMovementDeleted {
		return nil, fmt.Errorf("%w: %s is deleted", domain.ErrCashMovementNotFound, id)
	}
	return m, nil
}

// lock re-reads the movement under the entity lock.
func (uc *CashMovementUseCase) lock(w *unitOfWork, id string) (*domain.CashMovement, error) {
	m, err := uc.movementRepo.GetByIDForUpdate(w.ctx, w.tx, id)
	if err != nil {
		return nil, err
	}
	if m.EntityID != w.entity.ID {
		return nil, domain.ErrEntityChangeOnEdit
	}
	if m.Status == domain.CashMovementDeleted {
		return nil, fmt.Errorf("%w: cash movement %s", domain.ErrAlreadyReversed, id)
	}
	return m, nil
}

// neutralizeMovement reverses every live entry the movement wrote and
// returns the direction it was recorded with.
func (uc *CashMovementUseCase) neutralizeMovement(w *unitOfWork, m *domain.CashMovement, note string) (domain.Direction, error) {
	entries, err := uc.entryRepo.ListByReference(w.ctx, w.tx, w.entity.ID, m.ID)
	if err != nil {
		return "", err
	}

	reversed := make(map[string]bool)
	for _, e := range entries {
		if e.ReversesEntryID != "" {
			reversed[e.ReversesEntryID] = true
		}
	}

	dir := domain.DirectionPayment
	found := false
	for _, e := range entries {
		if e.ReversesEntryID != "" || reversed[e.ID] {
			continue
		}
		if _, err := w.neutralize(e, note); err != nil {
			return "", err
		}
		dir = e.Direction
		found = true
	}

	if !found {
		return "", domain.NewInvariantViolation("cash movement %s has no live ledger entry", m.ID)
	}

	w.emit(domain.AggregateTypeCashMovement, m.ID, domain.EventTypePaymentReversed, map[string]any{
		"movement_id": m.ID,
		"entity_id":   m.EntityID,
		"actor_id":    w.actorID,
	})

	met := w.uc.metrics
	w.onCommit(func() {
		if met != nil {
			met.PaymentsReversed.Inc()
		}
	})
	return dir, nil
}

func findUnreversed(entries []*domain.LedgerEntry, id string) (*domain.LedgerEntry, error) {
	var target *domain.LedgerEntry
	for _, e := range entries {
		if e.ID == id {
			target = e
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrEntryNotFound, id)
	}
	if !target.Standalone() {
		return nil, fmt.Errorf("%w: entry %s belongs to %s", domain.ErrUnsupportedReversal, id, target.ReferenceID)
	}
	for _, e := range entries {
		if e.ReversesEntryID == id {
			return nil, fmt.Errorf("%w: entry %s", domain.ErrAlreadyReversed, id)
		}
	}
	return target, nil
}
