package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents what happened to the entity
type EventType string

const (
	EventTypeCreated   EventType = "created"
	EventTypeDeleted   EventType = "deleted"
	EventTypeGenerated EventType = "generated"
	EventTypeProgress  EventType = "progress"
	EventTypeCompleted EventType = "completed"
	EventTypeFailed    EventType = "failed"
)

// EntityType represents the type of entity the event is about
type EntityType string

const (
	EntityTypeTransaction EntityType = "transaction"
	EntityTypeWaterBill   EntityType = "water_bill"
	EntityTypePayment     EntityType = "payment"
	EntityTypeImportJob   EntityType = "import_job"
	EntityTypePurgeJob    EntityType = "purge_job"
	EntityTypePenaltyRun  EntityType = "penalty_run"
)

// Event represents a WebSocket event message sent to clients
// Format: { type, entity, payload, timestamp }
type Event struct {
	Type      string      `json:"type"`      // Combined type e.g. "import_job.progress"
	Entity    EntityType  `json:"entity"`    // Entity type e.g. "import_job"
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

// TransactionCreated creates a transaction.created event
func TransactionCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeTransaction, payload)
}

// TransactionDeleted creates a transaction.deleted event
func TransactionDeleted(payload interface{}) Event {
	return NewEvent(EventTypeDeleted, EntityTypeTransaction, payload)
}

// WaterBillGenerated creates a water_bill.generated event
func WaterBillGenerated(payload interface{}) Event {
	return NewEvent(EventTypeGenerated, EntityTypeWaterBill, payload)
}

// PaymentCreated creates a payment.created event
func PaymentCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypePayment, payload)
}

// ImportProgress creates an import_job.progress event
func ImportProgress(payload interface{}) Event {
	return NewEvent(EventTypeProgress, EntityTypeImportJob, payload)
}

// ImportCompleted creates an import_job.completed event
func ImportCompleted(payload interface{}) Event {
	return NewEvent(EventTypeCompleted, EntityTypeImportJob, payload)
}

// ImportFailed creates an import_job.failed event
func ImportFailed(payload interface{}) Event {
	return NewEvent(EventTypeFailed, EntityTypeImportJob, payload)
}

// PurgeProgress creates a purge_job.progress event
func PurgeProgress(payload interface{}) Event {
	return NewEvent(EventTypeProgress, EntityTypePurgeJob, payload)
}

// PurgeCompleted creates a purge_job.completed event
func PurgeCompleted(payload interface{}) Event {
	return NewEvent(EventTypeCompleted, EntityTypePurgeJob, payload)
}

// PenaltyRunCompleted creates a penalty_run.completed event
func PenaltyRunCompleted(payload interface{}) Event {
	return NewEvent(EventTypeCompleted, EntityTypePenaltyRun, payload)
}
