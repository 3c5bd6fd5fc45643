package domain

import "time"

// Event types
const (
	EventTypeDebtAccrued          = "debt.accrued"
	EventTypeAccrualAdjusted      = "debt.adjusted"
	EventTypeAccrualReversed      = "debt.reversed"
	EventTypePaymentApplied       = "payment.applied"
	EventTypePaymentReversed      = "payment.reversed"
	EventTypeEntityCreated        = "entity.created"
	EventTypeEntityDeactivated    = "entity.deactivated"
	EventTypeEntityUpdated        = "entity.updated"
	EventTypeCashMovementRecorded = "cash_movement.recorded"
)

// Aggregate types
const (
	AggregateTypeEntity       = "entity"
	AggregateTypeDebtSource   = "debt_source"
	AggregateTypeCashMovement = "cash_movement"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// DebtAccruedEvent payload
type DebtAccruedEvent struct {
	SourceID   string            `json:"source_id"`
	SourceKind string            `json:"source_kind"`
	EntityID   string            `json:"entity_id"`
	Totals     map[string]string `json:"totals"`
	ActorID    string            `json:"actor_id"`
}

// PaymentAppliedEvent payload
type PaymentAppliedEvent struct {
	EntityID    string `json:"entity_id"`
	ReferenceID string `json:"reference_id"`
	Currency    string `json:"currency"`
	Amount      string `json:"amount"`
	Direction   string `json:"direction"`
	Allocated   string `json:"allocated"`
	ActorID     string `json:"actor_id"`
}

// AccrualReversedEvent payload
type AccrualReversedEvent struct {
	SourceID string `json:"source_id"`
	EntityID string `json:"entity_id"`
	Mode     string `json:"mode"`
	ActorID  string `json:"actor_id"`
}
