package model

import (
	"encoding/json"
	"time"
)

// EventType is the discriminant carried by every lifecycle envelope.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type EventType string

const (
	EventCreated                EventType = "created"
	EventUpdated                EventType = "updated"
	EventValidationCompleted    EventType = "validation_completed"
	EventValidationFailed       EventType = "validation_failed"
	EventHARProcessingCompleted EventType = "har_processing_completed"
	EventHARProcessingFailed    EventType = "har_processing_failed"
	EventHARReviewRequested     EventType = "har_review_requested"
)

// EventTypes returns the registered event types in a stable order.
func EventTypes() []EventType {
	return []EventType{
		EventCreated,
		EventUpdated,
		EventValidationCompleted,
		EventValidationFailed,
		EventHARProcessingCompleted,
		EventHARProcessingFailed,
		EventHARReviewRequested,
	}
}

// Valid reports whether t is a registered event type.
func (t EventType) Valid() bool {
	switch t {
	case EventCreated, EventUpdated, EventValidationCompleted, EventValidationFailed,
		EventHARProcessingCompleted, EventHARProcessingFailed, EventHARReviewRequested:
		return true
	default:
		return false
	}
}

// Envelope is an inbound lifecycle notification tagged with its event type.
// CorrelationID is the specification, validation-run or HAR-upload id depending on EventType.
type Envelope struct {
	EventType     EventType       `json:"event_type"`
	CorrelationID int64           `json:"correlation_id,omitempty"`
	UserID        string          `json:"user_id,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}
