package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/tradeledger/internal/adapter/http/dto"
	"github.com/iho/tradeledger/internal/domain"
	"github.com/iho/tradeledger/internal/usecase"
)

// EntityService defines the behavior needed by EntityHandler.
type EntityService interface {
	CreateEntity(ctx context.Context, input usecase.CreateEntityInput) (*domain.Entity, error)
	GetEntity(ctx context.Context, id string) (*domain.Entity, error)
	ListEntities(ctx context.Context, input usecase.ListEntitiesInput) ([]*domain.Entity, error)
	UpdateEntity(ctx context.Context, input usecase.UpdateEntityInput) (*domain.Entity, error)
	DeactivateEntity(ctx context.Context, actorID, id string) (*domain.Entity, error)
	Statement(ctx context.Context, input usecase.StatementInput) ([]*domain.LedgerEntry, error)
	BalanceAt(ctx context.Context, entityID string, at time.Time) (domain.Amounts, error)
}

// EntityHandler handles customer and supplier requests.
type EntityHandler struct {
	entityUC EntityService
}

// NewEntityHandler creates a new EntityHandler.
func NewEntityHandler(entityUC EntityService) *EntityHandler {
	return &EntityHandler{entityUC: entityUC}
}

// Create creates a new entity.
func (h *EntityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateEntityRequest
	if err := dto.Decode(r, &req); err != nil {
		writeDomainError(w, r, err, "invalid request body")
		return
	}

	entity, err := h.entityUC.CreateEntity(r.Context(), req.ToUseCaseInput(actorID(r)))
	if err != nil {
		writeDomainError(w, r, err, "failed to create entity")
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntityFromDomain(entity))
}

// Get retrieves an entity by ID.
func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	entity, err := h.entityUC.GetEntity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err, "failed to get entity")
		return
	}

	writeJSON(w, http.StatusOK, dto.EntityFromDomain(entity))
}

// List lists entities, optionally filtered by kind.
func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
	entities, err := h.entityUC.ListEntities(r.Context(), usecase.ListEntitiesInput{
		Kind:   domain.EntityKind(r.URL.Query().Get("kind")),
		Limit:  parseIntQuery(r, "limit", 20),
		Offset: parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, r, err, "failed to list entities")
		return
	}

	writeJSON(w, http.StatusOK, dto.ListEntitiesResponse{
		Entities: dto.EntitiesFromDomain(entities),
		Total:    int64(len(entities)),
	})
}

// Update edits the name or phone of an entity.
func (h *EntityHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateEntityRequest
	if err := dto.Decode(r, &req); err != nil {
		writeDomainError(w, r, err, "invalid request body")
		return
	}

	entity, err := h.entityUC.UpdateEntity(r.Context(), req.ToUseCaseInput(actorID(r), chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, r, err, "failed to update entity")
		return
	}

	writeJSON(w, http.StatusOK, dto.EntityFromDomain(entity))
}

// Deactivate deactivates an entity whose balance is zero.
func (h *EntityHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	entity, err := h.entityUC.DeactivateEntity(r.Context(), actorID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err, "failed to deactivate entity")
		return
	}

	writeJSON(w, http.StatusOK, dto.EntityFromDomain(entity))
}

// Statement lists the ledger entries of an entity, newest first.
func (h *EntityHandler) Statement(w http.ResponseWriter, r *http.Request) {
	entries, err := h.entityUC.Statement(r.Context(), usecase.StatementInput{
		EntityID: chi.URLParam(r, "id"),
		Limit:    parseIntQuery(r, "limit", 50),
		Offset:   parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, r, err, "failed to list entries")
		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}

// BalanceAt returns the balance of an entity at the "at" query time.
func (h *EntityHandler) BalanceAt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	at, err := parseTimeQuery(r, "at", time.Now())
	if err != nil {
		writeDomainError(w, r, err, "invalid query")
		return
	}

	balance, err := h.entityUC.BalanceAt(r.Context(), id, at)
	if err != nil {
		writeDomainError(w, r, err, "failed to get balance")
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceResponse{
		EntityID: id,
		At:       at,
		Balance:  balance.Clone(),
	})
}
