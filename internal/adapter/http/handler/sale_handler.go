package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/tradeledger/internal/adapter/http/dto"
	"github.com/iho/tradeledger/internal/domain"
	"github.com/iho/tradeledger/internal/usecase"
)

// SaleService defines the behavior needed by SaleHandler.
type SaleService interface {
	CreateSale(ctx context.Context, input usecase.CreateSaleInput) (*domain.DebtSource, error)
	GetSale(ctx context.Context, id string) (*domain.DebtSource, error)
	ListSalesByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*domain.DebtSource, error)
	ListOpenSales(ctx context.Context, limit, offset int) ([]*domain.DebtSource, error)
	AdjustItemQuantity(ctx context.Context, input usecase.AdjustItemQuantityInput) (*usecase.AdjustResult, error)
	CancelSale(ctx context.Context, actorID, saleID, note string) (*usecase.ReversalResult, error)
	DeleteSale(ctx context.Context, input usecase.DeleteSaleInput) (*usecase.ReversalResult, error)
}

// SaleHandler handles sale requests.
type SaleHandler struct {
	saleUC SaleService
}

// NewSaleHandler creates a new SaleHandler.
func NewSaleHandler(saleUC SaleService) *SaleHandler {
	return &SaleHandler{saleUC: saleUC}
}

// Create records a sale.
func (h *SaleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateSaleRequest
	if err := dto.Decode(r, &req); err != nil {
		writeDomainError(w, r, err, "invalid request body")
		return
	}

	sale, err := h.saleUC.CreateSale(r.Context(), req.ToUseCaseInput(actorID(r)))
	if err != nil {
		writeDomainError(w, r, err, "failed to create sale")
		return
	}

	writeJSON(w, http.StatusCreated, dto.DebtSourceFromDomain(sale))
}

// Get retrieves a sale by ID.
func (h *SaleHandler) Get(w http.ResponseWriter, r *http.Request) {
	sale, err := h.saleUC.GetSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err, "failed to get sale")
		return
	}

	writeJSON(w, http.StatusOK, dto.DebtSourceFromDomain(sale))
}

// ListByCustomer lists the sales of a customer.
func (h *SaleHandler) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	sales, err := h.saleUC.ListSalesByCustomer(r.Context(), chi.URLParam(r, "id"),
		parseIntQuery(r, "limit", 20), parseIntQuery(r, "offset", 0))
	if err != nil {
		writeDomainError(w, r, err, "failed to list sales")
		return
	}

	writeJSON(w, http.StatusOK, dto.DebtSourcesFromDomain(sales))
}

// ListOpen lists sales that still carry debt.
func (h *SaleHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	sales, err := h.saleUC.ListOpenSales(r.Context(), parseIntQuery(r, "limit", 20), parseIntQuery(r, "offset", 0))
	if err != nil {
		writeDomainError(w, r, err, "failed to list sales")
		return
	}

	writeJSON(w, http.StatusOK, dto.DebtSourcesFromDomain(sales))
}

// AdjustItem changes the quantity of one product on a sale.
func (h *SaleHandler) AdjustItem(w http.ResponseWriter, r *http.Request) {
	var req dto.AdjustItemRequest
	if err := dto.Decode(r, &req); err != nil {
		writeDomainError(w, r, err, "invalid request body")
		return
	}

	input := req.ToUseCaseInput(actorID(r), chi.URLParam(r, "id"), chi.URLParam(r, "productId"))
	result, err := h.saleUC.AdjustItemQuantity(r.Context(), input)
	if err != nil {
		writeDomainError(w, r, err, "failed to adjust sale")
		return
	}

	writeJSON(w, http.StatusOK, dto.AdjustFromUseCase(result))
}

// Cancel cancels a sale that has no payments.
func (h *SaleHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req dto.NoteRequest
	if err := decodeOptional(r, &req); err != nil {
		writeDomainError(w, r, err, "invalid request body")
		return
	}

	result, err := h.saleUC.CancelSale(r.Context(), actorID(r), chi.URLParam(r, "id"), req.Note)
	if err != nil {
		writeDomainError(w, r, err, "failed to cancel sale")
		return
	}

	writeJSON(w, http.StatusOK, dto.ReversalFromUseCase(result))
}

// Delete soft-deletes a sale. refund=true also returns the paid part.
func (h *SaleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	result, err := h.saleUC.DeleteSale(r.Context(), usecase.DeleteSaleInput{
		ActorID:    actorID(r),
		SaleID:     chi.URLParam(r, "id"),
		RefundPaid: parseBoolQuery(r, "refund"),
		Note:       r.URL.Query().Get("note"),
	})
	if err != nil {
		writeDomainError(w, r, err, "failed to delete sale")
		return
	}

	writeJSON(w, http.StatusOK, dto.ReversalFromUseCase(result))
}
