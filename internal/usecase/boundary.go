package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/tradeledger/internal/domain"
)

// unitOfWork is the in-memory state of one ledger operation. The entity row
// is locked for its whole lifetime; debt sources are locked after it.
// Nothing is written until flush, which runs only after validate passes.
type unitOfWork struct {
	ctx     context.Context
	tx      Transaction
	uc      *LedgerUseCase
	actorID string
	now     time.Time

	entity  *domain.Entity
	opening domain.Amounts // balance at lock time

	sourcesLoaded bool
	sources       []*domain.DebtSource
	byID          map[string]*domain.DebtSource
	created       map[string]bool
	touched       map[string]bool

	entries []*domain.LedgerEntry
	events  []*domain.OutboxEvent
	audits  []*domain.AuditLog

	writes      []func() error
	afterCommit []func()
}

// run executes fn as one atomic unit against entityID: lock, mutate in
// memory, re-validate, write everything, commit. Any error aborts the whole
// unit and nothing is persisted.
func (uc *LedgerUseCase) run(ctx context.Context, entityID, actorID, operation string, fn func(w *unitOfWork) error) error {
	if err := domain.ValidateActor(actorID); err != nil {
		return err
	}

	start := time.Now()

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	entity, err := uc.entityRepo.GetByIDForUpdate(txCtx, tx, entityID)
	if err != nil {
		return err
	}
	if entity.Balance == nil {
		entity.Balance = domain.NewAmounts()
	}

	w := &unitOfWork{
		ctx:     txCtx,
		tx:      tx,
		uc:      uc,
		actorID: actorID,
		now:     time.Now().UTC(),
		entity:  entity,
		opening: entity.Balance.Clone(),
		byID:    make(map[string]*domain.DebtSource),
		created: make(map[string]bool),
		touched: make(map[string]bool),
	}

	if err := fn(w); err != nil {
		return err
	}

	if err := w.validate(); err != nil {
		if uc.metrics != nil && errors.Is(err, domain.ErrInvariantViolation) {
			uc.metrics.InvariantFailures.WithLabelValues(operation).Inc()
		}
		return err
	}

	if err := w.flush(); err != nil {
		return err
	}

	if err := tx.Commit(txCtx); err != nil {
		return err
	}

	if uc.metrics != nil {
		uc.metrics.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
	for _, f := range w.afterCommit {
		f()
	}

	return nil
}

// loadSources locks every non-deleted record of the entity.
func (w *unitOfWork) loadSources() error {
	if w.sourcesLoaded {
		return nil
	}

	list, err := w.uc.sourceRepo.ListByEntityForUpdate(w.ctx, w.tx, w.entity.ID)
	if err != nil {
		return err
	}
	for _, s := range list {
		w.remember(s)
	}
	w.sourcesLoaded = true
	return nil
}

// lockSource returns the record with id, locking it if not loaded yet.
func (w *unitOfWork) lockSource(id string) (*domain.DebtSource, error) {
	if s, ok := w.byID[id]; ok {
		return s, nil
	}

	s, err := w.uc.sourceRepo.GetByIDForUpdate(w.ctx, w.tx, id)
	if err != nil {
		return nil, err
	}
	if s.EntityID != w.entity.ID {
		return nil, fmt.Errorf("%w: %s does not belong to entity %s", domain.ErrSourceNotFound, id, w.entity.ID)
	}
	w.remember(s)
	return s, nil
}

func (w *unitOfWork) remember(s *domain.DebtSource) {
	if _, ok := w.byID[s.ID]; ok {
		return
	}
	w.byID[s.ID] = s
	w.sources = append(w.sources, s)
}

func (w *unitOfWork) addSource(s *domain.DebtSource) {
	w.remember(s)
	w.created[s.ID] = true
}

func (w *unitOfWork) touch(id string) {
	if !w.created[id] {
		w.touched[id] = true
	}
}

// allocate pays amount down across open records with the allocation policy.
func (w *unitOfWork) allocate(c domain.Currency, amount decimal.Decimal) (domain.AllocationResult, error) {
	if err := w.loadSources(); err != nil {
		return domain.AllocationResult{}, err
	}

	res := domain.Allocate(w.sources, c, amount, w.uc.allocationPolicy)
	for _, a := range res.Allocations {
		w.touch(a.SourceID)
	}
	return res, nil
}

// rollback takes amount back from paid records with the rollback policy.
func (w *unitOfWork) rollback(c domain.Currency, amount decimal.Decimal) (domain.AllocationResult, error) {
	if err := w.loadSources(); err != nil {
		return domain.AllocationResult{}, err
	}

	res := domain.Rollback(w.sources, c, amount, w.uc.rollbackPolicy)
	for _, a := range res.Allocations {
		w.touch(a.SourceID)
	}
	return res, nil
}

// entryInput describes one balance change.
type entryInput struct {
	currency    domain.Currency
	amount      decimal.Decimal
	direction   domain.Direction
	note        string
	referenceID string
	reverses    string
	eventAt     time.Time
}

// post applies a signed change to the entity balance and queues the entry.
// Zero amounts are skipped and return nil.
func (w *unitOfWork) post(in entryInput) *domain.LedgerEntry {
	if in.amount.IsZero() {
		return nil
	}

	id := w.uc.idGen.Generate()
	ref := in.referenceID
	if ref == "" {
		ref = id
	}
	eventAt := in.eventAt
	if eventAt.IsZero() {
		eventAt = w.now
	}

	entry := &domain.LedgerEntry{
		ID:              id,
		EntityID:        w.entity.ID,
		EntityKind:      w.entity.Kind,
		Currency:        in.currency,
		Amount:          in.amount,
		Direction:       in.direction,
		Note:            in.note,
		ReferenceID:     ref,
		ReversesEntryID: in.reverses,
		ActorID:         w.actorID,
		EventAt:         eventAt,
		CreatedAt:       w.now,
	}
	entry.BalanceAfter = w.entity.ApplyDelta(in.currency, entry.SignedAmount())
	w.entries = append(w.entries, entry)
	return entry
}

// applyPayment records a payment-style entry, allocating it FIFO when it
// pays debt down.
func (w *unitOfWork) applyPayment(c domain.Currency, amount decimal.Decimal, dir domain.Direction, note, ref string, eventAt time.Time) (*domain.LedgerEntry, domain.AllocationResult, error) {
	res := domain.AllocationResult{Applied: decimal.Zero, Remaining: amount}
	if dir.PaysDown() {
		var err error
		res, err = w.allocate(c, amount)
		if err != nil {
			return nil, res, err
		}
	}

	entry := w.post(entryInput{
		currency:    c,
		amount:      amount,
		direction:   dir,
		note:        note,
		referenceID: ref,
		eventAt:     eventAt,
	})
	return entry, res, nil
}

// neutralize appends the compensating entry for a manual payment or debt
// entry. Payments get a REVERSAL and their allocation rolled back; manual
// debt gets a ROLLBACK.
func (w *unitOfWork) neutralize(entry *domain.LedgerEntry, note string) (*domain.LedgerEntry, error) {
	var dir domain.Direction
	switch {
	case entry.Direction.PaysDown():
		if _, err := w.rollback(entry.Currency, entry.Amount); err != nil {
			return nil, err
		}
		dir = domain.DirectionReversal
	case entry.Direction == domain.DirectionDebt:
		dir = domain.DirectionRollback
	default:
		return nil, fmt.Errorf("%w: %s entries cannot be neutralized", domain.ErrUnsupportedReversal, entry.Direction)
	}

	rev := w.post(entryInput{
		currency:    entry.Currency,
		amount:      entry.Amount,
		direction:   dir,
		note:        note,
		referenceID: entry.ReferenceID,
		reverses:    entry.ID,
	})
	return rev, nil
}

func (w *unitOfWork) emit(aggregateType, aggregateID, eventType string, payload map[string]any) {
	w.events = append(w.events, &domain.OutboxEvent{
		ID:            w.uc.idGen.Generate(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     w.now,
	})
}

func (w *unitOfWork) audit(action domain.AuditAction, resourceType, resourceID string, before, after any) {
	if w.uc.auditRepo == nil {
		return
	}
	w.audits = append(w.audits, &domain.AuditLog{
		ID:           w.uc.idGen.Generate(),
		ActorID:      w.actorID,
		Action:       string(action),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		BeforeState:  domain.MarshalState(before),
		AfterState:   domain.MarshalState(after),
		Status:       string(domain.AuditStatusSuccess),
		CreatedAt:    w.now,
	})
}

// write queues an extra write that runs after the ledger writes, inside
// the same transaction.
func (w *unitOfWork) write(f func() error) {
	w.writes = append(w.writes, f)
}

func (w *unitOfWork) onCommit(f func()) {
	w.afterCommit = append(w.afterCommit, f)
}

// validate re-checks every record this unit changed and the entity balance
// against the entries it queued.
func (w *unitOfWork) validate() error {
	for id := range w.byID {
		if !w.created[id] && !w.touched[id] {
			continue
		}
		if err := w.byID[id].CheckInvariants(); err != nil {
			return domain.NewInvariantViolation("debt source %s: %v", id, err)
		}
	}

	expected := domain.Replay(w.opening, w.entries)
	if !expected.Equal(w.entity.Balance) {
		return domain.NewInvariantViolation("entity %s balance does not match queued entries", w.entity.ID)
	}

	return nil
}

func (w *unitOfWork) flush() error {
	for _, s := range w.sources {
		switch {
		case w.created[s.ID]:
			s.CreatedAt = w.now
			s.UpdatedAt = w.now
			if err := w.uc.sourceRepo.Create(w.ctx, w.tx, s); err != nil {
				return err
			}
		case w.touched[s.ID]:
			s.UpdatedAt = w.now
			if err := w.uc.sourceRepo.Update(w.ctx, w.tx, s); err != nil {
				return err
			}
		}
	}

	for _, e := range w.entries {
		if err := w.uc.entryRepo.Create(w.ctx, w.tx, e); err != nil {
			return err
		}
	}

	if len(w.entries) > 0 {
		if err := w.uc.entityRepo.UpdateBalance(w.ctx, w.tx, w.entity.ID, w.entity.Balance, w.now); err != nil {
			return err
		}
	}

	for _, ev := range w.events {
		if err := w.uc.outboxRepo.Create(w.ctx, w.tx, ev); err != nil {
			return err
		}
	}

	for _, f := range w.writes {
		if err := f(); err != nil {
			return err
		}
	}

	for _, a := range w.audits {
		if err := w.uc.auditRepo.CreateTx(w.ctx, w.tx, a); err != nil {
			return err
		}
	}

	return nil
}

func amountsPayload(a domain.Amounts) map[string]any {
	out := make(map[string]any, len(domain.Currencies))
	for _, c := range domain.Currencies {
		out[string(c)] = a.Get(c).StringFixed(domain.MoneyScale)
	}
	return out
}
