package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
)

// Event is a business event raised by the sales pipeline or the CRM.
// Payload carries the entity snapshot handed to workflows as event data.
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	EntityID      int64                  `json:"entity_id"`
	Condition     string                 `json:"condition,omitempty"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, entityID int64, payload map[string]interface{}) *Event {
	id := uuid.NewString()
	return &Event{
		ID:            id,
		Type:          eventType,
		EntityID:      entityID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: id,
	}
}

// NewEventWithCorrelation creates an event linked to a correlation chain
func NewEventWithCorrelation(eventType Type, entityID int64, payload map[string]interface{}, correlationID string) *Event {
	evt := NewEvent(eventType, entityID, payload)
	evt.CorrelationID = correlationID
	return evt
}

// WithCondition returns a copy of the event carrying a trigger condition,
// e.g. the new stage of a lead
func (e *Event) WithCondition(condition string) *Event {
	cp := *e
	cp.Condition = condition
	return &cp
}

// WithPayload returns a new Event with an added payload key-value pair
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	cp := *e
	cp.Payload = newPayload
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	return cast.ToString(e.Payload[key])
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	return cast.ToInt64(e.Payload[key])
}

// GetPayloadFloat retrieves a float64 value from the payload
func (e *Event) GetPayloadFloat(key string) float64 {
	return cast.ToFloat64(e.Payload[key])
}

// GetPayloadBool retrieves a bool value from the payload
func (e *Event) GetPayloadBool(key string) bool {
	return cast.ToBool(e.Payload[key])
}
