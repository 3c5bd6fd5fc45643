package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/tradeledger/internal/domain"
)

// PurchaseUseCase handles supplier purchase batches.
type PurchaseUseCase struct {
	ledger     *LedgerUseCase
	sourceRepo DebtSourceRepository
	now        func() time.Time
}

// NewPurchaseUseCase creates a new PurchaseUseCase.
func NewPurchaseUseCase(ledger *LedgerUseCase, sourceRepo DebtSourceRepository) *PurchaseUseCase {
	return &PurchaseUseCase{
		ledger:     ledger,
		sourceRepo: sourceRepo,
		now:        time.Now,
	}
}

// CreatePurchaseInput represents input for recording a purchase batch.
type CreatePurchaseInput struct {
	ActorID      string
	SupplierID   string
	BatchNumber  string
	PurchaseDate *time.Time
	Items        []domain.LineItem
	Note         string
}

// CreatePurchase records a batch bought on credit; the totals per currency
// are the sum of quantity times buy price.
func (uc *PurchaseUseCase) CreatePurchase(ctx context.Context, input CreatePurchaseInput) (*domain.DebtSource, error) {
	if input.SupplierID == "" {
		return nil, fmt.Errorf("%w: supplier is required", domain.ErrInvalidID)
	}

	now := uc.now().UTC()
	purchaseDate := now
	if input.PurchaseDate != nil {
		purchaseDate = input.PurchaseDate.UTC()
	}

	number := input.BatchNumber
	if number == "" {
		number = fmt.Sprintf("P-%d", now.UnixMilli())
	}

	return uc.ledger.AccrueDebt(ctx, AccrueDebtInput{
		ActorID:      input.ActorID,
		EntityID:     input.SupplierID,
		Kind:         domain.SourceKindPurchase,
		Number:       number,
		BusinessDate: purchaseDate,
		Items:        input.Items,
		Discount:     decimal.Zero,
		Note:         input.Note,
	})
}

// DeletePurchase soft-deletes an unpaid batch and rolls its debt off the
// supplier balance.
func (uc *PurchaseUseCase) DeletePurchase(ctx context.Context, actorID, purchaseID, note string) (*ReversalResult, error) {
	if _, err := uc.GetPurchase(ctx, purchaseID); err != nil {
		return nil, err
	}

	return uc.ledger.ReverseAccrual(ctx, ReverseAccrualInput{
		ActorID:  actorID,
		SourceID: purchaseID,
		Mode:     ReversalDelete,
		Note:     note,
	})
}

// GetPurchase returns a purchase batch by ID.
func (uc *PurchaseUseCase) GetPurchase(ctx context.Context, id string) (*domain.DebtSource, error) {
	if err := domain.ValidateID(id); err != nil {
		return nil, err
	}
	s, err := uc.sourceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Kind != domain.SourceKindPurchase {
		return nil, domain.ErrSourceNotFound
	}
	return s, nil
}

// ListPurchasesBySupplier lists the batches of one supplier.
func (uc *PurchaseUseCase) ListPurchasesBySupplier(ctx context.Context, supplierID string, limit, offset int) ([]*domain.DebtSource, error) {
	limit, offset, err := domain.ValidatePagination(limit, offset)
	if err != nil {
		return nil, err
	}
	return uc.sourceRepo.ListByEntityAndKind(ctx, supplierID, domain.SourceKindPurchase, limit, offset)
}
