package events

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is the interface all domain events must implement.
type DomainEvent interface {
	EventID() string
	EventType() string
	AggregateID() string
	AggregateType() string
	TenantID() string
	OccurredAt() time.Time
}

// BaseEvent provides a default implementation of DomainEvent. Its fields are
// exported so that embedding events serialise the envelope alongside their payload.
type BaseEvent struct {
	ID        string    `json:"event_id"`
	Type      string    `json:"event_type"`
	Aggregate string    `json:"aggregate_id"`
	Kind      string    `json:"aggregate_type"`
	Tenant    string    `json:"tenant_id"`
	At        time.Time `json:"occurred_at"`
}

// NewBaseEvent creates a new BaseEvent with a generated UUID.
func NewBaseEvent(eventType, aggregateID, aggregateType, tenantID string, occurredAt time.Time) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Aggregate: aggregateID,
		Kind:      aggregateType,
		Tenant:    tenantID,
		At:        occurredAt.UTC(),
	}
}

func (e BaseEvent) EventID() string       { return e.ID }
func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) AggregateID() string   { return e.Aggregate }
func (e BaseEvent) AggregateType() string { return e.Kind }
func (e BaseEvent) TenantID() string      { return e.Tenant }
func (e BaseEvent) OccurredAt() time.Time { return e.At }
