package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/tradeledger/internal/domain"
	"github.com/iho/tradeledger/internal/usecase"
)

// CreateEntityRequest represents a request to create a customer or supplier.
type CreateEntityRequest struct {
	Kind           string                     `json:"kind" validate:"required"`
	Name           string                     `json:"name" validate:"required,max=200"`
	Phone          string                     `json:"phone,omitempty" validate:"max=32"`
	OpeningBalance map[string]decimal.Decimal `json:"opening_balance,omitempty" validate:"dive,keys,oneof=UZS USD,endkeys"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateEntityRequest) ToUseCaseInput(actorID string) usecase.CreateEntityInput {
	return usecase.CreateEntityInput{
		ActorID:        actorID,
		Kind:           domain.EntityKind(r.Kind),
		Name:           r.Name,
		Phone:          r.Phone,
		OpeningBalance: toAmounts(r.OpeningBalance),
	}
}

// UpdateEntityRequest edits the profile of an entity. Omitted fields keep
// their value; an empty phone clears it.
type UpdateEntityRequest struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Phone *string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// ToUseCaseInput converts to use case input.
func (r *UpdateEntityRequest) ToUseCaseInput(actorID, id string) usecase.UpdateEntityInput {
	return usecase.UpdateEntityInput{
		ActorID: actorID,
		ID:      id,
		Name:    r.Name,
		Phone:   r.Phone,
	}
}

// LineItemRequest is one product line of a sale or purchase.
type LineItemRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	Name      string          `json:"name,omitempty"`
	Currency  string          `json:"currency" validate:"required,oneof=UZS USD"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func toLineItems(items []LineItemRequest) []domain.LineItem {
	out := make([]domain.LineItem, len(items))
	for i, it := range items {
		out[i] = domain.LineItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Currency:  domain.Currency(it.Currency),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
	}
	return out
}

// CreateSaleRequest represents a request to record a sale.
type CreateSaleRequest struct {
	CustomerID string            `json:"customer_id" validate:"required"`
	SaleDate   *time.Time        `json:"sale_date,omitempty"`
	Items      []LineItemRequest `json:"items" validate:"required,min=1,dive"`
	Discount   decimal.Decimal   `json:"discount"`
	Note       string            `json:"note,omitempty" validate:"max=500"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateSaleRequest) ToUseCaseInput(actorID string) usecase.CreateSaleInput {
	return usecase.CreateSaleInput{
		ActorID:    actorID,
		CustomerID: r.CustomerID,
		SaleDate:   r.SaleDate,
		Items:      toLineItems(r.Items),
		Discount:   r.Discount,
		Note:       r.Note,
	}
}

// AdjustItemRequest sets the new quantity of one sold product.
type AdjustItemRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
	Note     string          `json:"note,omitempty" validate:"max=500"`
}

// ToUseCaseInput converts to use case input.
func (r *AdjustItemRequest) ToUseCaseInput(actorID, saleID, productID string) usecase.AdjustItemQuantityInput {
	return usecase.AdjustItemQuantityInput{
		ActorID:   actorID,
		SaleID:    saleID,
		ProductID: productID,
		Quantity:  r.Quantity,
		Note:      r.Note,
	}
}

// NoteRequest carries the optional note of a cancel or delete.
type NoteRequest struct {
	Note string `json:"note,omitempty" validate:"max=500"`
}

// CreatePurchaseRequest represents a request to record a purchase batch.
type CreatePurchaseRequest struct {
	SupplierID   string            `json:"supplier_id" validate:"required"`
	BatchNumber  string            `json:"batch_number,omitempty" validate:"max=64"`
	PurchaseDate *time.Time        `json:"purchase_date,omitempty"`
	Items        []LineItemRequest `json:"items" validate:"required,min=1,dive"`
	Note         string            `json:"note,omitempty" validate:"max=500"`
}

// ToUseCaseInput converts to use case input.
func (r *CreatePurchaseRequest) ToUseCaseInput(actorID string) usecase.CreatePurchaseInput {
	return usecase.CreatePurchaseInput{
		ActorID:      actorID,
		SupplierID:   r.SupplierID,
		BatchNumber:  r.BatchNumber,
		PurchaseDate: r.PurchaseDate,
		Items:        toLineItems(r.Items),
		Note:         r.Note,
	}
}

// CreateCashMovementRequest represents money received or paid out.
type CreateCashMovementRequest struct {
	EntityID    string          `json:"entity_id" validate:"required"`
	Currency    string          `json:"currency" validate:"required,oneof=UZS USD"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method,omitempty"`
	Prepayment  bool            `json:"prepayment,omitempty"`
	PaymentDate *time.Time      `json:"payment_date,omitempty"`
	Note        string          `json:"note,omitempty" validate:"max=500"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateCashMovementRequest) ToUseCaseInput(actorID string) usecase.CreateCashMovementInput {
	return usecase.CreateCashMovementInput{
		ActorID:     actorID,
		EntityID:    r.EntityID,
		Currency:    domain.Currency(r.Currency),
		Amount:      r.Amount,
		Method:      domain.PaymentMethod(r.Method),
		Prepayment:  r.Prepayment,
		PaymentDate: r.PaymentDate,
		Note:        r.Note,
	}
}

// EditCashMovementRequest replaces the amount or currency of a movement.
type EditCashMovementRequest struct {
	EntityID    string          `json:"entity_id,omitempty"`
	Currency    string          `json:"currency" validate:"required,oneof=UZS USD"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method,omitempty"`
	PaymentDate *time.Time      `json:"payment_date,omitempty"`
	Note        string          `json:"note,omitempty" validate:"max=500"`
}

// ToUseCaseInput converts to use case input.
func (r *EditCashMovementRequest) ToUseCaseInput(actorID, id string) usecase.EditCashMovementInput {
	return usecase.EditCashMovementInput{
		ActorID:     actorID,
		ID:          id,
		EntityID:    r.EntityID,
		Currency:    domain.Currency(r.Currency),
		Amount:      r.Amount,
		Method:      domain.PaymentMethod(r.Method),
		PaymentDate: r.PaymentDate,
		Note:        r.Note,
	}
}

// ApplyPaymentRequest is a manual balance change on an entity.
type ApplyPaymentRequest struct {
	Currency    string          `json:"currency" validate:"required,oneof=UZS USD"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   string          `json:"direction" validate:"required"`
	ReferenceID string          `json:"reference_id,omitempty"`
	EventAt     *time.Time      `json:"event_at,omitempty"`
	Note        string          `json:"note,omitempty" validate:"max=500"`
}

// ToUseCaseInput converts to use case input. The direction is parsed here
// so lower-case names are accepted.
func (r *ApplyPaymentRequest) ToUseCaseInput(actorID, entityID string) (usecase.ApplyPaymentInput, error) {
	dir, err := domain.ParseDirection(r.Direction)
	if err != nil {
		return usecase.ApplyPaymentInput{}, err
	}
	return usecase.ApplyPaymentInput{
		ActorID:     actorID,
		EntityID:    entityID,
		Currency:    domain.Currency(r.Currency),
		Amount:      r.Amount,
		Direction:   dir,
		Note:        r.Note,
		ReferenceID: r.ReferenceID,
		EventAt:     r.EventAt,
	}, nil
}

// LegacyReversalRequest identifies an unreferenced payment either by entry
// ID or by its currency, amount, direction and day.
type LegacyReversalRequest struct {
	EntryID   string          `json:"entry_id,omitempty"`
	Currency  string          `json:"currency,omitempty" validate:"omitempty,oneof=UZS USD"`
	Amount    decimal.Decimal `json:"amount"`
	Direction string          `json:"direction,omitempty"`
	Day       time.Time       `json:"day"`
	Note      string          `json:"note,omitempty" validate:"max=500"`
}

// ToUseCaseInput converts to use case input.
func (r *LegacyReversalRequest) ToUseCaseInput(actorID, entityID string) (usecase.ReverseLegacyInput, error) {
	input := usecase.ReverseLegacyInput{
		ActorID:  actorID,
		EntityID: entityID,
		EntryID:  r.EntryID,
		Currency: domain.Currency(r.Currency),
		Amount:   r.Amount,
		Day:      r.Day,
		Note:     r.Note,
	}
	if r.Direction != "" {
		dir, err := domain.ParseDirection(r.Direction)
		if err != nil {
			return usecase.ReverseLegacyInput{}, err
		}
		input.Direction = dir
	}
	return input, nil
}

func toAmounts(m map[string]decimal.Decimal) domain.Amounts {
	out := domain.NewAmounts()
	for c, v := range m {
		out[domain.Currency(c)] = v
	}
	return out
}

