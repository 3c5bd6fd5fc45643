package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/tradeledger/internal/adapter/http/dto"
	"github.com/iho/tradeledger/internal/usecase"
)

// PaymentService defines the manual balance change used by LedgerHandler.
type PaymentService interface {
	ApplyPayment(ctx context.Context, input usecase.ApplyPaymentInput) (*usecase.PaymentResult, error)
}

// ReconciliationService defines the checks used by LedgerHandler.
type ReconciliationService interface {
	ReconcileEntity(ctx context.Context, entityID string) (*usecase.ReconciliationResult, error)
	CheckLedgerConsistency(ctx context.Context) error
	GenerateReport(ctx context.Context) (*usecase.ReconciliationReport, error)
	LastReport(ctx context.Context) (*usecase.ReconciliationReport, error)
}

// LedgerHandler handles payments and ledger-wide checks.
type LedgerHandler struct {
	paymentUC PaymentService
	reconUC   ReconciliationService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(paymentUC PaymentService, reconUC ReconciliationService) *LedgerHandler {
	return &LedgerHandler{paymentUC: paymentUC, reconUC: reconUC}
}

// ApplyPayment records a manual payment, prepayment or debt on an entity.
func (h *LedgerHandler) ApplyPayment(w http.ResponseWriter, r *http.Request) {
	var req dto.ApplyPaymentRequest
	if err := dto.Decode(r, &req); err != nil {
		writeDomainError(w, r, err, "invalid request body")
		return
	}

	input, err := req.ToUseCaseInput(actorID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err, "invalid request body")
		return
	}

	result, err := h.paymentUC.ApplyPayment(r.Context(), input)
	if err != nil {
		writeDomainError(w, r, err, "failed to apply payment")
		return
	}

	writeJSON(w, http.StatusCreated, dto.PaymentFromUseCase(result))
}

// ReconcileEntity replays an entity's entries against its stored balance.
func (h *LedgerHandler) ReconcileEntity(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconUC.ReconcileEntity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err, "failed to reconcile entity")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// CheckConsistency checks if the ledger is consistent.
func (h *LedgerHandler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	err := h.reconUC.CheckLedgerConsistency(r.Context())
	if err != nil {
		if errors.Is(err, usecase.ErrInconsistentLedger) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"status":     "inconsistent",
				"consistent": false,
				"message":    err.Error(),
			})
			return
		}
		writeDomainError(w, r, err, "failed to check consistency")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "consistent",
		"consistent": true,
	})
}

// Report runs a full reconciliation. cached=true returns the last report
// instead of running a new one.
func (h *LedgerHandler) Report(w http.ResponseWriter, r *http.Request) {
	var (
		report *usecase.ReconciliationReport
		err    error
	)
	if parseBoolQuery(r, "cached") {
		report, err = h.reconUC.LastReport(r.Context())
	} else {
		report, err = h.reconUC.GenerateReport(r.Context())
	}
	if err != nil {
		writeDomainError(w, r, err, "failed to get reconciliation report")
		return
	}

	writeJSON(w, http.StatusOK, report)
}
