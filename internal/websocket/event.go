package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the kind of change the event describes
type EventType string

const (
	EventTypeCreated     EventType = "created"
	EventTypeUpdated     EventType = "updated"
	EventTypeDeleted     EventType = "deleted"
	EventTypePaid        EventType = "paid"
	EventTypeSynced      EventType = "synced"
	EventTypeRegenerated EventType = "regenerated"
)

// EntityType represents the entity the event is about
type EntityType string

const (
	EntityTypeLoan        EntityType = "loan"
	EntityTypeInstallment EntityType = "installment"
	EntityTypeSchedule    EntityType = "schedule"
)

// Event represents a WebSocket event message sent to clients
// Format: { type, entity, payload, timestamp }
type Event struct {
	Type      string      `json:"type"`      // Combined type e.g. "loan.synced"
	Entity    EntityType  `json:"entity"`    // Entity type e.g. "loan"
	Payload   interface{} `json:"payload"`   // Full entity data
	Timestamp time.Time   `json:"timestamp"` // Event timestamp
}

// NewEvent creates a new event with the given type, entity, and payload
func NewEvent(eventType EventType, entityType EntityType, payload interface{}) Event {
	return Event{
		Type:      fmt.Sprintf("%s.%s", entityType, eventType),
		Entity:    entityType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LoanCreated creates a loan.created event
func LoanCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeLoan, payload)
}

// LoanSynced creates a loan.synced event carrying the fresh aggregate
func LoanSynced(payload interface{}) Event {
	return NewEvent(EventTypeSynced, EntityTypeLoan, payload)
}

// LoanDeleted creates a loan.deleted event
func LoanDeleted(payload interface{}) Event {
	return NewEvent(EventTypeDeleted, EntityTypeLoan, payload)
}

// InstallmentPaid creates an installment.paid event
func InstallmentPaid(payload interface{}) Event {
	return NewEvent(EventTypePaid, EntityTypeInstallment, payload)
}

// InstallmentUpdated creates an installment.updated event
func InstallmentUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeInstallment, payload)
}

// InstallmentDeleted creates an installment.deleted event
func InstallmentDeleted(payload interface{}) Event {
	return NewEvent(EventTypeDeleted, EntityTypeInstallment, payload)
}

// ScheduleRegenerated creates a schedule.regenerated event
func ScheduleRegenerated(payload interface{}) Event {
	return NewEvent(EventTypeRegenerated, EntityTypeSchedule, payload)
}
