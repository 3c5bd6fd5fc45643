package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/tradeledger/internal/adapter/http/dto"
	"github.com/iho/tradeledger/internal/domain"
	"github.com/iho/tradeledger/internal/usecase"
)

// PurchaseService defines the behavior needed by PurchaseHandler.
type PurchaseService interface {
	CreatePurchase(ctx context.Context, input usecase.CreatePurchaseInput) (*domain.DebtSource, error)
	GetPurchase(ctx context.Context, id string) (*domain.DebtSource, error)
	ListPurchasesBySupplier(ctx context.Context, supplierID string, limit, offset int) ([]*domain.DebtSource, error)
	DeletePurchase(ctx context.Context, actorID, purchaseID, note string) (*usecase.ReversalResult, error)
}

// PurchaseHandler handles purchase batch requests.
type PurchaseHandler struct {
	purchaseUC PurchaseService
}

// NewPurchaseHandler creates a new PurchaseHandler.
func NewPurchaseHandler(purchaseUC PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{purchaseUC: purchaseUC}
}

// Create records a purchase batch.
func (h *PurchaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePurchaseRequest
	if err := dto.Decode(r, &req); err != nil {
		writeDomainError(w, r, err, "invalid request body")
		return
	}

	purchase, err := h.purchaseUC.CreatePurchase(r.Context(), req.ToUseCaseInput(actorID(r)))
	if err != nil {
		writeDomainError(w, r, err, "failed to create purchase")
		return
	}

	writeJSON(w, http.StatusCreated, dto.DebtSourceFromDomain(purchase))
}

// Get retrieves a purchase by ID.
func (h *PurchaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	purchase, err := h.purchaseUC.GetPurchase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err, "failed to get purchase")
		return
	}

	writeJSON(w, http.StatusOK, dto.DebtSourceFromDomain(purchase))
}

// ListBySupplier lists the purchases of a supplier.
func (h *PurchaseHandler) ListBySupplier(w http.ResponseWriter, r *http.Request) {
	purchases, err := h.purchaseUC.ListPurchasesBySupplier(r.Context(), chi.URLParam(r, "id"),
		parseIntQuery(r, "limit", 20), parseIntQuery(r, "offset", 0))
	if err != nil {
		writeDomainError(w, r, err, "failed to list purchases")
		return
	}

	writeJSON(w, http.StatusOK, dto.DebtSourcesFromDomain(purchases))
}

// Delete soft-deletes a purchase batch.
func (h *PurchaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	result, err := h.purchaseUC.DeletePurchase(r.Context(), actorID(r), chi.URLParam(r, "id"), r.URL.Query().Get("note"))
	if err != nil {
		writeDomainError(w, r, err, "failed to delete purchase")
		return
	}

	writeJSON(w, http.StatusOK, dto.ReversalFromUseCase(result))
}
