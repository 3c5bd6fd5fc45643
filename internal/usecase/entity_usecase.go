package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iho/tradeledger/internal/domain"
)

// EntityUseCase handles customers and suppliers and their balance history.
type EntityUseCase struct {
	ledger     *LedgerUseCase
	entityRepo EntityRepository
	entryRepo  EntryRepository
}

// NewEntityUseCase creates a new EntityUseCase.
func NewEntityUseCase(ledger *LedgerUseCase, entityRepo EntityRepository, entryRepo EntryRepository) *EntityUseCase {
	return &EntityUseCase{
		ledger:     ledger,
		entityRepo: entityRepo,
		entryRepo:  entryRepo,
	}
}

// CreateEntityInput represents input for creating a customer or supplier.
type CreateEntityInput struct {
	ActorID        string
	Kind           domain.EntityKind
	Name           string
	Phone          string
	OpeningBalance domain.Amounts
}

// CreateEntity creates an entity. The opening balance is fixed at creation
// and is the starting point for every replay of its entries.
func (uc *EntityUseCase) CreateEntity(ctx context.Context, input CreateEntityInput) (*domain.Entity, error) {
	if err := domain.ValidateActor(input.ActorID); err != nil {
		return nil, err
	}
	kind, err := domain.ParseEntityKind(string(input.Kind))
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateName(input.Name); err != nil {
		return nil, err
	}
	if err := domain.ValidatePhone(input.Phone); err != nil {
		return nil, err
	}

	opening := domain.NewAmounts()
	for c, v := range input.OpeningBalance {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCurrency, c)
		}
		opening[c] = domain.RoundMoney(v)
	}

	l := uc.ledger

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := l.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	now := time.Now().UTC()
	entity := &domain.Entity{
		ID:             l.idGen.Generate(),
		Kind:           kind,
		Name:           strings.TrimSpace(input.Name),
		Phone:          strings.TrimSpace(input.Phone),
		Balance:        opening.Clone(),
		OpeningBalance: opening,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := uc.entityRepo.Create(txCtx, tx, entity); err != nil {
		return nil, err
	}

	event := &domain.OutboxEvent{
		ID:            l.idGen.Generate(),
		AggregateID:   entity.ID,
		AggregateType: domain.AggregateTypeEntity,
		EventType:     domain.EventTypeEntityCreated,
		Payload: map[string]any{
			"entity_id": entity.ID,
			"kind":      string(entity.Kind),
			"name":      entity.Name,
			"opening":   amountsPayload(opening),
		},
		CreatedAt: now,
	}
	if err := l.outboxRepo.Create(txCtx, tx, event); err != nil {
		return nil, err
	}

	if l.auditRepo != nil {
		auditLog := &domain.AuditLog{
			ID:           l.idGen.Generate(),
			ActorID:      input.ActorID,
			Action:       string(domain.AuditActionEntityCreate),
			ResourceType: domain.AggregateTypeEntity,
			ResourceID:   entity.ID,
			AfterState:   domain.MarshalState(entity),
			Status:       string(domain.AuditStatusSuccess),
			CreatedAt:    now,
		}
		if err := l.auditRepo.CreateTx(txCtx, tx, auditLog); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	if l.metrics != nil {
		l.metrics.EntitiesCreated.WithLabelValues(string(entity.Kind)).Inc()
	}

	return entity, nil
}

// GetEntity retrieves an entity by ID.
func (uc *EntityUseCase) GetEntity(ctx context.Context, id string) (*domain.Entity, error) {
	if err := domain.ValidateID(id); err != nil {
		return nil, err
	}
	return uc.entityRepo.GetByID(ctx, id)
}

// ListEntitiesInput represents input for listing entities. An empty kind
// lists both customers and suppliers.
type ListEntitiesInput struct {
	Kind   domain.EntityKind
	Limit  int
	Offset int
}

// ListEntities lists entities with pagination.
func (uc *EntityUseCase) ListEntities(ctx context.Context, input ListEntitiesInput) ([]*domain.Entity, error) {
	if input.Kind != "" {
		kind, err := domain.ParseEntityKind(string(input.Kind))
		if err != nil {
			return nil, err
		}
		input.Kind = kind
	}
	limit, offset, err := domain.ValidatePagination(input.Limit, input.Offset)
	if err != nil {
		return nil, err
	}
	return uc.entityRepo.List(ctx, input.Kind, limit, offset)
}

// UpdateEntityInput carries profile edits. Nil fields are left as they are.
type UpdateEntityInput struct {
	ActorID string
	ID      string
	Name    *string
	Phone   *string
}

// UpdateEntity edits the name and phone of an entity. Balances, the opening
// balance and the active flag are not part of the profile.
func (uc *EntityUseCase) UpdateEntity(ctx context.Context, input UpdateEntityInput) (*domain.Entity, error) {
	if err := domain.ValidateID(input.ID); err != nil {
		return nil, err
	}
	if input.Name == nil && input.Phone == nil {
		return nil, fmt.Errorf("%w: nothing to update", domain.ErrValidation)
	}
	if input.Name != nil {
		if err := domain.ValidateName(*input.Name); err != nil {
			return nil, err
		}
	}
	if input.Phone != nil {
		if err := domain.ValidatePhone(*input.Phone); err != nil {
			return nil, err
		}
	}

	var entity *domain.Entity

	err := uc.ledger.run(ctx, input.ID, input.ActorID, "update_entity", func(w *unitOfWork) error {
		name, phone := w.entity.Name, w.entity.Phone
		if input.Name != nil {
			name = strings.TrimSpace(*input.Name)
		}
		if input.Phone != nil {
			phone = strings.TrimSpace(*input.Phone)
		}

		entity = w.entity
		if name == w.entity.Name && phone == w.entity.Phone {
			return nil
		}

		before := *w.entity
		w.entity.Name = name
		w.entity.Phone = phone
		w.entity.UpdatedAt = w.now

		w.write(func() error { return uc.entityRepo.UpdateProfile(w.ctx, w.tx, w.entity.ID, name, phone, w.now) })
		w.emit(domain.AggregateTypeEntity, w.entity.ID, domain.EventTypeEntityUpdated, map[string]any{
			"entity_id": w.entity.ID,
			"name":      name,
			"phone":     phone,
			"actor_id":  w.actorID,
		})
		w.audit(domain.AuditActionEntityUpdate, domain.AggregateTypeEntity, w.entity.ID, &before, w.entity)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entity, nil
}

// DeactivateEntity marks an entity inactive. Its balance must be zero in
// every currency.
func (uc *EntityUseCase) DeactivateEntity(ctx context.Context, actorID, id string) (*domain.Entity, error) {
	if err := domain.ValidateID(id); err != nil {
		return nil, err
	}

	var entity *domain.Entity

	err := uc.ledger.run(ctx, id, actorID, "deactivate_entity", func(w *unitOfWork) error {
		if !w.entity.Active {
			entity = w.entity
			return nil
		}
		if err := w.entity.CanDeactivate(); err != nil {
			return err
		}

		before := *w.entity
		w.entity.Active = false
		w.entity.UpdatedAt = w.now
		entity = w.entity

		w.write(func() error { return uc.entityRepo.SetActive(w.ctx, w.tx, w.entity.ID, false, w.now) })
		w.emit(domain.AggregateTypeEntity, w.entity.ID, domain.EventTypeEntityDeactivated, map[string]any{
			"entity_id": w.entity.ID,
			"actor_id":  w.actorID,
		})
		w.audit(domain.AuditActionEntityDeactivate, domain.AggregateTypeEntity, w.entity.ID, &before, w.entity)
		w.onCommit(func() {
			if uc.ledger.metrics != nil {
				uc.ledger.metrics.EntitiesDeactivated.Inc()
			}
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entity, nil
}

// StatementInput represents input for listing an entity's ledger entries.
type StatementInput struct {
	EntityID string
	Limit    int
	Offset   int
}

// Statement lists ledger entries of an entity, newest first.
func (uc *EntityUseCase) Statement(ctx context.Context, input StatementInput) ([]*domain.LedgerEntry, error) {
	if err := domain.ValidateID(input.EntityID); err != nil {
		return nil, err
	}
	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}
	if input.Offset < 0 {
		input.Offset = 0
	}
	if _, err := uc.entityRepo.GetByID(ctx, input.EntityID); err != nil {
		return nil, err
	}
	return uc.entryRepo.ListByEntity(ctx, input.EntityID, input.Limit, input.Offset)
}

// BalanceAt returns the balance of an entity as it was at a point in time.
func (uc *EntityUseCase) BalanceAt(ctx context.Context, entityID string, at time.Time) (domain.Amounts, error) {
	if err := domain.ValidateID(entityID); err != nil {
		return nil, err
	}

	entity, err := uc.entityRepo.GetByID(ctx, entityID)
	if err != nil {
		return nil, err
	}

	sum, err := uc.entryRepo.SumUntil(ctx, entityID, at)
	if err != nil {
		return nil, err
	}

	out := entity.OpeningBalance.Clone()
	for _, c := range domain.Currencies {
		out[c] = out.Get(c).Add(sum.Get(c))
	}
	return out, nil
}
