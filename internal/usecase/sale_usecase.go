package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/tradeledger/internal/domain"
)

// SaleUseCase handles customer sales on top of the ledger engine.
type SaleUseCase struct {
	ledger     *LedgerUseCase
	sourceRepo DebtSourceRepository
	now        func() time.Time
}

// NewSaleUseCase creates a new SaleUseCase.
func NewSaleUseCase(ledger *LedgerUseCase, sourceRepo DebtSourceRepository) *SaleUseCase {
	return &SaleUseCase{
		ledger:     ledger,
		sourceRepo: sourceRepo,
		now:        time.Now,
	}
}

// CreateSaleInput represents input for recording a sale.
type CreateSaleInput struct {
	ActorID    string
	CustomerID string
	SaleDate   *time.Time
	Items      []domain.LineItem
	Discount   decimal.Decimal
	Note       string
}

// CreateSale records a sale and accrues its grand totals as customer debt.
func (uc *SaleUseCase) CreateSale(ctx context.Context, input CreateSaleInput) (*domain.DebtSource, error) {
	if input.CustomerID == "" {
		return nil, fmt.Errorf("%w: customer is required", domain.ErrInvalidID)
	}

	now := uc.now().UTC()
	saleDate := now
	if input.SaleDate != nil {
		saleDate = input.SaleDate.UTC()
	}

	return uc.ledger.AccrueDebt(ctx, AccrueDebtInput{
		ActorID:      input.ActorID,
		EntityID:     input.CustomerID,
		Kind:         domain.SourceKindSale,
		Number:       fmt.Sprintf("S-%d", now.UnixMilli()),
		BusinessDate: saleDate,
		Items:        input.Items,
		Discount:     input.Discount,
		Note:         input.Note,
	})
}

// AdjustItemQuantityInput represents input for changing one sold line.
type AdjustItemQuantityInput struct {
	ActorID   string
	SaleID    string
	ProductID string
	Quantity  decimal.Decimal
	Note      string
}

// AdjustItemQuantity changes the quantity of one line of a completed sale.
// Quantity zero removes the line. The stored per-currency discount is kept
// and the customer balance moves by the change in debt.
func (uc *SaleUseCase) AdjustItemQuantity(ctx context.Context, input AdjustItemQuantityInput) (*AdjustResult, error) {
	if input.ProductID == "" {
		return nil, fmt.Errorf("%w: product is required", domain.ErrInvalidID)
	}
	if input.Quantity.IsNegative() {
		return nil, domain.ErrInvalidQuantity
	}

	return uc.ledger.adjust(ctx, input.ActorID, input.SaleID, input.Note, func(s *domain.DebtSource) (domain.Amounts, error) {
		if s.Kind != domain.SourceKindSale {
			return nil, fmt.Errorf("%w: %s is not a sale", domain.ErrSourceNotFound, s.ID)
		}

		idx := -1
		for i := range s.Items {
			if s.Items[i].ProductID == input.ProductID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", domain.ErrItemNotInSource, input.ProductID)
		}

		old := s.Items[idx].Quantity
		if old.Equal(input.Quantity) {
			return nil, domain.ErrQuantityUnchanged
		}

		if input.Quantity.IsZero() {
			s.Items = append(s.Items[:idx], s.Items[idx+1:]...)
		} else {
			s.Items[idx].Quantity = input.Quantity
		}

		totals := domain.RecomputeTotals(s.Items, s.Totals)
		grands := domain.NewAmounts()
		for _, c := range domain.Currencies {
			s.TotalsFor(c).Subtotal = totals[c].Subtotal
			grands[c] = totals[c].GrandTotal
		}

		switch {
		case len(s.Items) == 0:
			s.ReturnState = domain.ReturnStateFull
		case input.Quantity.LessThan(old):
			s.ReturnState = domain.ReturnStatePartial
		}

		return grands, nil
	})
}

// CancelSale marks a sale canceled and takes its debt off the balance.
func (uc *SaleUseCase) CancelSale(ctx context.Context, actorID, saleID, note string) (*ReversalResult, error) {
	if err := uc.ensureSale(ctx, saleID); err != nil {
		return nil, err
	}

	return uc.ledger.ReverseAccrual(ctx, ReverseAccrualInput{
		ActorID:  actorID,
		SourceID: saleID,
		Mode:     ReversalCancel,
		Note:     note,
	})
}

// DeleteSaleInput represents input for deleting a sale.
type DeleteSaleInput struct {
	ActorID    string
	SaleID     string
	RefundPaid bool
	Note       string
}

// DeleteSale soft-deletes a sale and reverses everything it put on the
// customer balance.
func (uc *SaleUseCase) DeleteSale(ctx context.Context, input DeleteSaleInput) (*ReversalResult, error) {
	if err := uc.ensureSale(ctx, input.SaleID); err != nil {
		return nil, err
	}

	return uc.ledger.ReverseAccrual(ctx, ReverseAccrualInput{
		ActorID:    input.ActorID,
		SourceID:   input.SaleID,
		Mode:       ReversalDelete,
		RefundPaid: input.RefundPaid,
		Note:       input.Note,
	})
}

// GetSale returns a sale by ID.
func (uc *SaleUseCase) GetSale(ctx context.Context, id string) (*domain.DebtSource, error) {
	if err := domain.ValidateID(id); err != nil {
		return nil, err
	}
	s, err := uc.sourceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Kind != domain.SourceKindSale {
		return nil, domain.ErrSourceNotFound
	}
	return s, nil
}

// ListSalesByCustomer lists the sales of one customer. Other records of the
// entity are left out.
func (uc *SaleUseCase) ListSalesByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*domain.DebtSource, error) {
	limit, offset, err := domain.ValidatePagination(limit, offset)
	if err != nil {
		return nil, err
	}
	return uc.sourceRepo.ListByEntityAndKind(ctx, customerID, domain.SourceKindSale, limit, offset)
}

// ListOpenSales lists completed sales that still carry debt.
func (uc *SaleUseCase) ListOpenSales(ctx context.Context, limit, offset int) ([]*domain.DebtSource, error) {
	limit, offset, err := domain.ValidatePagination(limit, offset)
	if err != nil {
		return nil, err
	}
	return uc.sourceRepo.ListOpen(ctx, domain.SourceKindSale, limit, offset)
}

func (uc *SaleUseCase) ensureSale(ctx context.Context, id string) error {
	_, err := uc.GetSale(ctx, id)
	return err
}
