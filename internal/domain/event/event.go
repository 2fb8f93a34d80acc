package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is something that happened to an expense or rule
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	ExpenseID     string                 `json:"expense_id,omitempty"`
	OrgID         string                 `json:"org_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates an event that starts its own correlation chain
func NewEvent(eventType Type, orgID, expenseID string, payload map[string]interface{}) *Event {
	id := uuid.NewString()
	return newEvent(eventType, orgID, expenseID, payload, id, id)
}

// NewEventWithCorrelation creates an event inside an existing chain, e.g.
// expense.approved following the decision that caused it
func NewEventWithCorrelation(eventType Type, orgID, expenseID string, payload map[string]interface{}, correlationID string) *Event {
	return newEvent(eventType, orgID, expenseID, payload, uuid.NewString(), correlationID)
}

func newEvent(eventType Type, orgID, expenseID string, payload map[string]interface{}, id, correlationID string) *Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Event{
		ID:            id,
		Type:          eventType,
		ExpenseID:     expenseID,
		OrgID:         orgID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
	}
}

// WithPayload returns a copy with one more payload entry; the receiver is unchanged
func (e *Event) WithPayload(key string, value interface{}) *Event {
	payload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	payload[key] = value

	c := *e
	c.Payload = payload
	return &c
}

// GetPayloadString retrieves a string value, accepting string-kinded types
func (e *Event) GetPayloadString(key string) string {
	switch v := e.Payload[key].(type) {
	case string:
		return v
	case interface{ String() string }:
		return v.String()
	}
	return ""
}

// GetPayloadInt retrieves an integer value
func (e *Event) GetPayloadInt(key string) int64 {
	switch v := e.Payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
