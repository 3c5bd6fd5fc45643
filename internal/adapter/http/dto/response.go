package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/tradeledger/internal/domain"
	"github.com/iho/tradeledger/internal/usecase"
)

// EntityResponse represents a customer or supplier in API responses.
type EntityResponse struct {
	ID             string         `json:"id"`
	Kind           string         `json:"kind"`
	Name           string         `json:"name"`
	Phone          string         `json:"phone,omitempty"`
	Balance        domain.Amounts `json:"balance"`
	OpeningBalance domain.Amounts `json:"opening_balance"`
	Active         bool           `json:"active"`
	Version        int64          `json:"version"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// EntityFromDomain converts a domain entity to a response.
func EntityFromDomain(e *domain.Entity) *EntityResponse {
	return &EntityResponse{
		ID:             e.ID,
		Kind:           string(e.Kind),
		Name:           e.Name,
		Phone:          e.Phone,
		Balance:        e.Balance.Clone(),
		OpeningBalance: e.OpeningBalance.Clone(),
		Active:         e.Active,
		Version:        e.Version,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

// EntitiesFromDomain converts domain entities to responses.
func EntitiesFromDomain(entities []*domain.Entity) []*EntityResponse {
	result := make([]*EntityResponse, len(entities))
	for i, e := range entities {
		result[i] = EntityFromDomain(e)
	}
	return result
}

// ListEntitiesResponse is a page of entities.
type ListEntitiesResponse struct {
	Entities []*EntityResponse `json:"entities"`
	Total    int64             `json:"total"`
}

// LineItemResponse is one product line.
type LineItemResponse struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Currency  string          `json:"currency"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// TotalsResponse is the paid/debt split of one currency.
type TotalsResponse struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	Paid       decimal.Decimal `json:"paid"`
	Debt       decimal.Decimal `json:"debt"`
}

// DebtSourceResponse represents a sale or purchase batch.
type DebtSourceResponse struct {
	ID           string                     `json:"id"`
	Kind         string                     `json:"kind"`
	EntityID     string                     `json:"entity_id"`
	Number       string                     `json:"number,omitempty"`
	BusinessDate time.Time                  `json:"business_date"`
	Status       string                     `json:"status"`
	PaymentState string                     `json:"payment_state"`
	ReturnState  string                     `json:"return_state"`
	Items        []LineItemResponse         `json:"items"`
	Discount     decimal.Decimal            `json:"discount"`
	Totals       map[string]*TotalsResponse `json:"totals"`
	Note         string                     `json:"note,omitempty"`
	CreatedBy    string                     `json:"created_by"`
	Version      int64                      `json:"version"`
	CreatedAt    time.Time                  `json:"created_at"`
	UpdatedAt    time.Time                  `json:"updated_at"`
}

// DebtSourceFromDomain converts a domain debt source to a response.
func DebtSourceFromDomain(s *domain.DebtSource) *DebtSourceResponse {
	items := make([]LineItemResponse, len(s.Items))
	for i, it := range s.Items {
		items[i] = LineItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Currency:  string(it.Currency),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		}
	}

	totals := make(map[string]*TotalsResponse, len(s.Totals))
	for c, t := range s.Totals {
		totals[string(c)] = &TotalsResponse{
			Subtotal:   t.Subtotal,
			Discount:   t.Discount,
			GrandTotal: t.GrandTotal,
			Paid:       t.Paid,
			Debt:       t.Debt,
		}
	}

	return &DebtSourceResponse{
		ID:           s.ID,
		Kind:         string(s.Kind),
		EntityID:     s.EntityID,
		Number:       s.Number,
		BusinessDate: s.BusinessDate,
		Status:       string(s.Status),
		PaymentState: string(s.PaymentState()),
		ReturnState:  string(s.ReturnState),
		Items:        items,
		Discount:     s.Discount,
		Totals:       totals,
		Note:         s.Note,
		CreatedBy:    s.CreatedBy,
		Version:      s.Version,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// DebtSourcesFromDomain converts domain debt sources to responses.
func DebtSourcesFromDomain(sources []*domain.DebtSource) []*DebtSourceResponse {
	result := make([]*DebtSourceResponse, len(sources))
	for i, s := range sources {
		result[i] = DebtSourceFromDomain(s)
	}
	return result
}

// EntryResponse represents a ledger entry in API responses.
type EntryResponse struct {
	ID              string          `json:"id"`
	EntityID        string          `json:"entity_id"`
	Currency        string          `json:"currency"`
	Amount          decimal.Decimal `json:"amount"`
	Direction       string          `json:"direction"`
	Note            string          `json:"note,omitempty"`
	ReferenceID     string          `json:"reference_id,omitempty"`
	ReversesEntryID string          `json:"reverses_entry_id,omitempty"`
	ActorID         string          `json:"actor_id"`
	BalanceAfter    decimal.Decimal `json:"balance_after"`
	EventAt         time.Time       `json:"event_at"`
	CreatedAt       time.Time       `json:"created_at"`
}

// EntryFromDomain converts a domain entry to a response.
func EntryFromDomain(e *domain.LedgerEntry) *EntryResponse {
	return &EntryResponse{
		ID:              e.ID,
		EntityID:        e.EntityID,
		Currency:        string(e.Currency),
		Amount:          e.Amount,
		Direction:       string(e.Direction),
		Note:            e.Note,
		ReferenceID:     e.ReferenceID,
		ReversesEntryID: e.ReversesEntryID,
		ActorID:         e.ActorID,
		BalanceAfter:    e.BalanceAfter,
		EventAt:         e.EventAt,
		CreatedAt:       e.CreatedAt,
	}
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.LedgerEntry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// CashMovementResponse represents a cash movement in API responses.
type CashMovementResponse struct {
	ID          string          `json:"id"`
	EntityID    string          `json:"entity_id"`
	EntityKind  string          `json:"entity_kind"`
	Currency    string          `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	PaymentDate time.Time       `json:"payment_date"`
	Note        string          `json:"note,omitempty"`
	Status      string          `json:"status"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CashMovementFromDomain converts a domain cash movement to a response.
func CashMovementFromDomain(m *domain.CashMovement) *CashMovementResponse {
	return &CashMovementResponse{
		ID:          m.ID,
		EntityID:    m.EntityID,
		EntityKind:  string(m.EntityKind),
		Currency:    string(m.Currency),
		Amount:      m.Amount,
		Method:      string(m.Method),
		PaymentDate: m.PaymentDate,
		Note:        m.Note,
		Status:      string(m.Status),
		CreatedBy:   m.CreatedBy,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// CashMovementsFromDomain converts domain cash movements to responses.
func CashMovementsFromDomain(movements []*domain.CashMovement) []*CashMovementResponse {
	result := make([]*CashMovementResponse, len(movements))
	for i, m := range movements {
		result[i] = CashMovementFromDomain(m)
	}
	return result
}

// AllocationResponse is the share of a payment applied to one record.
type AllocationResponse struct {
	SourceID     string          `json:"source_id"`
	SourceNumber string          `json:"source_number,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	DebtBefore   decimal.Decimal `json:"debt_before"`
	DebtAfter    decimal.Decimal `json:"debt_after"`
}

func allocationsFromDomain(allocs []domain.Allocation) []AllocationResponse {
	result := make([]AllocationResponse, len(allocs))
	for i, a := range allocs {
		result[i] = AllocationResponse{
			SourceID:     a.SourceID,
			SourceNumber: a.SourceNumber,
			Amount:       a.Amount,
			DebtBefore:   a.DebtBefore,
			DebtAfter:    a.DebtAfter,
		}
	}
	return result
}

// CashMovementResultResponse is the outcome of a cash movement operation.
type CashMovementResultResponse struct {
	Movement        *CashMovementResponse `json:"movement"`
	NewBalance      decimal.Decimal       `json:"new_balance"`
	Allocations     []AllocationResponse  `json:"allocations"`
	Unallocated     decimal.Decimal       `json:"unallocated"`
	AlreadyReversed bool                  `json:"already_reversed,omitempty"`
}

// CashMovementResultFromUseCase converts a use case result to a response.
func CashMovementResultFromUseCase(r *usecase.CashMovementResult) *CashMovementResultResponse {
	resp := &CashMovementResultResponse{
		NewBalance:      r.NewBalance,
		Allocations:     allocationsFromDomain(r.Allocations),
		Unallocated:     r.Unallocated,
		AlreadyReversed: r.AlreadyReversed,
	}
	if r.Movement != nil {
		resp.Movement = CashMovementFromDomain(r.Movement)
	}
	return resp
}

// PaymentResponse is the outcome of a manual payment.
type PaymentResponse struct {
	EntryID     string               `json:"entry_id"`
	ReferenceID string               `json:"reference_id,omitempty"`
	Currency    string               `json:"currency"`
	NewBalance  decimal.Decimal      `json:"new_balance"`
	Allocations []AllocationResponse `json:"allocations"`
	Allocated   decimal.Decimal      `json:"allocated"`
	Unallocated decimal.Decimal      `json:"unallocated"`
}

// PaymentFromUseCase converts a use case result to a response.
func PaymentFromUseCase(r *usecase.PaymentResult) *PaymentResponse {
	return &PaymentResponse{
		EntryID:     r.EntryID,
		ReferenceID: r.ReferenceID,
		Currency:    string(r.Currency),
		NewBalance:  r.NewBalance,
		Allocations: allocationsFromDomain(r.Allocations),
		Allocated:   r.Allocated,
		Unallocated: r.Unallocated,
	}
}

// ReversalResponse is the outcome of deleting or canceling a record.
type ReversalResponse struct {
	SourceID        string         `json:"source_id"`
	Status          string         `json:"status"`
	NewBalance      domain.Amounts `json:"new_balance"`
	AlreadyReversed bool           `json:"already_reversed"`
}

// ReversalFromUseCase converts a use case result to a response.
func ReversalFromUseCase(r *usecase.ReversalResult) *ReversalResponse {
	return &ReversalResponse{
		SourceID:        r.SourceID,
		Status:          string(r.Status),
		NewBalance:      r.NewBalance.Clone(),
		AlreadyReversed: r.AlreadyReversed,
	}
}

// AdjustResponse is the outcome of changing a record's totals.
type AdjustResponse struct {
	SourceID     string         `json:"source_id"`
	BalanceDelta domain.Amounts `json:"balance_delta"`
	NewBalance   domain.Amounts `json:"new_balance"`
}

// AdjustFromUseCase converts a use case result to a response.
func AdjustFromUseCase(r *usecase.AdjustResult) *AdjustResponse {
	return &AdjustResponse{
		SourceID:     r.SourceID,
		BalanceDelta: r.BalanceDelta.Clone(),
		NewBalance:   r.NewBalance.Clone(),
	}
}

// LegacyReversalResponse is the outcome of reversing an unreferenced payment.
type LegacyReversalResponse struct {
	ReversedEntryID string          `json:"reversed_entry_id"`
	ReversalEntryID string          `json:"reversal_entry_id"`
	Candidates      int             `json:"candidates"`
	Ambiguous       bool            `json:"ambiguous"`
	NewBalance      decimal.Decimal `json:"new_balance"`
}

// LegacyReversalFromUseCase converts a use case result to a response.
func LegacyReversalFromUseCase(r *usecase.LegacyReversalResult) *LegacyReversalResponse {
	return &LegacyReversalResponse{
		ReversedEntryID: r.ReversedEntryID,
		ReversalEntryID: r.ReversalEntryID,
		Candidates:      r.Candidates,
		Ambiguous:       r.Ambiguous,
		NewBalance:      r.NewBalance,
	}
}

// BalanceResponse is an entity's balance at a point in time.
type BalanceResponse struct {
	EntityID string         `json:"entity_id"`
	At       time.Time      `json:"at"`
	Balance  domain.Amounts `json:"balance"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`
}
