package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/tradeledger/internal/adapter/http/dto"
	"github.com/iho/tradeledger/internal/domain"
	"github.com/iho/tradeledger/internal/usecase"
)

// CashMovementService defines the behavior needed by CashMovementHandler.
type CashMovementService interface {
	Create(ctx context.Context, input usecase.CreateCashMovementInput) (*usecase.CashMovementResult, error)
	Edit(ctx context.Context, input usecase.EditCashMovementInput) (*usecase.CashMovementResult, error)
	Delete(ctx context.Context, actorID, id string) (*usecase.CashMovementResult, error)
	Get(ctx context.Context, id string) (*domain.CashMovement, error)
	ListByEntity(ctx context.Context, entityID string, limit, offset int) ([]*domain.CashMovement, error)
	ReverseLegacyPayment(ctx context.Context, input usecase.ReverseLegacyInput) (*usecase.LegacyReversalResult, error)
}

// CashMovementHandler handles money received from customers and paid to
// suppliers.
type CashMovementHandler struct {
	cashUC CashMovementService
}

// NewCashMovementHandler creates a new CashMovementHandler.
func NewCashMovementHandler(cashUC CashMovementService) *CashMovementHandler {
	return &CashMovementHandler{cashUC: cashUC}
}

// Create records a cash movement and allocates it against open debt.
func (h *CashMovementHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateCashMovementRequest
	if err := dto.Decode(r, &req); err != nil {
		writeDomainError(w, r, err, "invalid request body")
		return
	}

	result, err := h.cashUC.Create(r.Context(), req.ToUseCaseInput(actorID(r)))
	if err != nil {
		writeDomainError(w, r, err, "failed to create cash movement")
		return
	}

	writeJSON(w, http.StatusCreated, dto.CashMovementResultFromUseCase(result))
}

// Get retrieves a cash movement by ID.
func (h *CashMovementHandler) Get(w http.ResponseWriter, r *http.Request) {
	movement, err := h.cashUC.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err, "failed to get cash movement")
		return
	}

	writeJSON(w, http.StatusOK, dto.CashMovementFromDomain(movement))
}

// Edit replaces the amount or currency of a cash movement.
func (h *CashMovementHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var req dto.EditCashMovementRequest
	if err := dto.Decode(r, &req); err != nil {
		writeDomainError(w, r, err, "invalid request body")
		return
	}

	result, err := h.cashUC.Edit(r.Context(), req.ToUseCaseInput(actorID(r), chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, r, err, "failed to edit cash movement")
		return
	}

	writeJSON(w, http.StatusOK, dto.CashMovementResultFromUseCase(result))
}

// Delete reverses a cash movement. Deleting twice is a no-op.
func (h *CashMovementHandler) Delete(w http.ResponseWriter, r *http.Request) {
	result, err := h.cashUC.Delete(r.Context(), actorID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err, "failed to delete cash movement")
		return
	}

	writeJSON(w, http.StatusOK, dto.CashMovementResultFromUseCase(result))
}

// ListByEntity lists the active cash movements of an entity.
func (h *CashMovementHandler) ListByEntity(w http.ResponseWriter, r *http.Request) {
	movements, err := h.cashUC.ListByEntity(r.Context(), chi.URLParam(r, "id"),
		parseIntQuery(r, "limit", 20), parseIntQuery(r, "offset", 0))
	if err != nil {
		writeDomainError(w, r, err, "failed to list cash movements")
		return
	}

	writeJSON(w, http.StatusOK, dto.CashMovementsFromDomain(movements))
}

// ReverseLegacy reverses a payment that was recorded without a reference.
func (h *CashMovementHandler) ReverseLegacy(w http.ResponseWriter, r *http.Request) {
	var req dto.LegacyReversalRequest
	if err := dto.Decode(r, &req); err != nil {
		writeDomainError(w, r, err, "invalid request body")
		return
	}

	input, err := req.ToUseCaseInput(actorID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err, "invalid request body")
		return
	}

	result, err := h.cashUC.ReverseLegacyPayment(r.Context(), input)
	if err != nil {
		writeDomainError(w, r, err, "failed to reverse payment")
		return
	}

	writeJSON(w, http.StatusOK, dto.LegacyReversalFromUseCase(result))
}
